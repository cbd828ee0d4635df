// Package logind reads the idle hint that desktops publish on their systemd-logind session using
// the D-Bus interface [org.freedesktop.login1].
//
// [org.freedesktop.login1]: https://www.freedesktop.org/software/systemd/man/latest/org.freedesktop.login1.html
package logind
