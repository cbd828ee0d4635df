// Package idle defines how the idle time of a desktop session is obtained.
//
// A [Provider] answers with the time since the last keyboard, mouse or pointer input, or with an
// error wrapping [ErrUnavailable] when its mechanism is not present on this system.
// A [Chain] tries providers in a fixed order and returns the first answer.
//
// The platform implementations live in the sub packages:
//   - sessionbus: GNOME Mutter IdleMonitor and [org.freedesktop.ScreenSaver] over the session bus
//   - wayland: the [ext-idle-notify-v1] protocol
//   - x11: the MIT-SCREEN-SAVER extension
//   - logind: the IdleHint of the [org.freedesktop.login1] session
//   - evdev: raw input events, tracked by the tracker package
//
// [org.freedesktop.ScreenSaver]: https://specifications.freedesktop.org/idle-inhibit-spec/latest/
// [ext-idle-notify-v1]: https://wayland.app/protocols/ext-idle-notify-v1
// [org.freedesktop.login1]: https://www.freedesktop.org/software/systemd/man/latest/org.freedesktop.login1.html
package idle
