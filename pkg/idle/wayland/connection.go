package wayland

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MatthiasKunnen/go-wayland/wayland/client"
	idleNotify "github.com/MatthiasKunnen/go-wayland/wayland/staging/ext-idle-notify-v1"
	"go.uber.org/zap"
)

// connection owns one Wayland display connection with a single input idle notification.
// After connect returns, only the dispatch goroutine talks to the compositor.
type connection struct {
	// closeReq hands the release of the Wayland objects to the dispatch goroutine.
	closeReq  chan chan error
	closeOnce sync.Once
	running   bool
	broken    atomic.Bool
	logger    *zap.Logger

	display      *client.Display
	notification *idleNotify.IdleNotification
	notifier     *idleNotify.IdleNotifier
	registry     *client.Registry
	seat         *client.Seat

	// idleSince is the moment the seat idled. nil while the seat is active.
	idleSince atomic.Pointer[time.Time]
}

// connect connects to the compositor socket at addr and requests an input idle notification for
// thresholdMs. The initial idle state is known when connect returns.
func connect(addr string, thresholdMs uint32, now func() time.Time, logger *zap.Logger) (*connection, error) {
	c := &connection{
		closeReq: make(chan chan error),
		logger:   logger,
	}
	var err error
	c.display, err = client.Connect(addr)
	if err != nil {
		return nil, fmt.Errorf("error connecting to Wayland server: %w", err)
	}

	c.registry, err = c.display.GetRegistry()
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("error getting Wayland registry: %w", err),
			c.Close(),
		)
	}

	var globalHandlerError error
	c.registry.SetGlobalHandler(func(e client.RegistryGlobalEvent) {
		switch e.Interface {
		case idleNotify.IdleNotifierInterfaceName:
			notifier := idleNotify.NewIdleNotifier(c.context())
			err := c.registry.Bind(e.Name, idleNotify.IdleNotifierInterfaceName, e.Version, notifier)
			if err != nil {
				globalHandlerError = errors.Join(
					globalHandlerError,
					fmt.Errorf("unable to bind %s interface: %v", idleNotify.IdleNotifierInterfaceName, err),
				)
				return
			}
			c.notifier = notifier
		case client.SeatInterfaceName:
			if c.seat != nil {
				// Only the first seat is tracked.
				return
			}
			seat := client.NewSeat(c.context())
			err := c.registry.Bind(e.Name, e.Interface, e.Version, seat)
			if err != nil {
				globalHandlerError = errors.Join(
					globalHandlerError,
					fmt.Errorf("unable to bind %s interface: %v", client.SeatInterfaceName, err),
				)
				return
			}
			c.seat = seat
		}
	})

	for i := 1; i <= 2; i++ {
		if err := c.display.Roundtrip(); err != nil {
			return nil, errors.Join(fmt.Errorf("failed roundtrip %d: %w", i, err), c.Close())
		}
		if globalHandlerError != nil {
			return nil, errors.Join(
				fmt.Errorf("error in registry GlobalHandler after roundtrip %d: %w", i, globalHandlerError),
				c.Close(),
			)
		}
	}

	if c.notifier == nil {
		return nil, errors.Join(
			errors.New("no notifier was set, ext-idle-notify might not be supported"),
			c.Close(),
		)
	}
	if c.seat == nil {
		return nil, errors.Join(errors.New("compositor did not advertise a seat"), c.Close())
	}

	c.notification, err = c.notifier.GetIdleNotification(thresholdMs, c.seat)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("unable to get idle notification: %w", err), c.Close())
	}

	threshold := time.Duration(thresholdMs) * time.Millisecond
	c.notification.SetIdledHandler(func(event idleNotify.IdleNotificationIdledEvent) {
		since := now().Add(-threshold)
		c.idleSince.Store(&since)
	})
	c.notification.SetResumedHandler(func(event idleNotify.IdleNotificationResumedEvent) {
		c.idleSince.Store(nil)
	})

	// Lets the compositor deliver an immediate idled event for a zero threshold.
	if err := c.display.Roundtrip(); err != nil {
		return nil, errors.Join(fmt.Errorf("failed roundtrip after notification: %w", err), c.Close())
	}

	c.running = true
	go c.dispatch()

	return c, nil
}

func (c *connection) context() *client.Context {
	return c.display.Context()
}

// dispatch runs the handlers of incoming events and, on Close, releases the Wayland objects.
// Reading happens on a separate goroutine since it blocks.
func (c *connection) dispatch() {
	events := make(chan func() error)
	stopRead := make(chan struct{})
	go c.read(events, stopRead)

	for {
		select {
		case handle := <-events:
			err := handle()
			switch {
			case err == nil:
			case errors.Is(err, client.ErrDispatchUnableToReadMsg):
				c.logger.Warn("Wayland connection lost, reconnecting on next query", zap.Error(err))
				c.broken.Store(true)
				close(stopRead)
				events = nil
			default:
				c.logger.Debug("unable to dispatch Wayland event", zap.Error(err))
			}
		case done := <-c.closeReq:
			if events != nil {
				close(stopRead)
			}
			done <- c.release()
			return
		}
	}
}

// read passes every incoming message to dispatch until stop is closed.
func (c *connection) read(events chan<- func() error, stop <-chan struct{}) {
	for {
		handle := c.context().GetDispatch()

		select {
		case events <- handle:
		case <-stop:
			return
		}
	}
}

func (c *connection) isBroken() bool {
	return c.broken.Load()
}

// Close releases all Wayland objects and closes the connection. It is safe to call more than once.
func (c *connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.broken.Store(true)
		if !c.running {
			err = c.release()
			return
		}

		done := make(chan error, 1)
		c.closeReq <- done
		err = <-done
	})

	return err
}

// release must run on the goroutine that owns the Context.
func (c *connection) release() error {
	var totalError error
	if c.notification != nil {
		if err := c.notification.Destroy(); err != nil {
			totalError = errors.Join(totalError, fmt.Errorf("error destroying idle notification: %w", err))
		}
	}
	if c.seat != nil {
		if err := c.seat.Release(); err != nil {
			totalError = errors.Join(totalError, fmt.Errorf("error releasing seat: %w", err))
		}
	}
	if c.notifier != nil {
		if err := c.notifier.Destroy(); err != nil {
			totalError = errors.Join(totalError, fmt.Errorf(
				"unable to destroy %s: %w",
				idleNotify.IdleNotifierInterfaceName,
				err,
			))
		}
	}
	if c.display != nil {
		if err := c.display.Destroy(); err != nil {
			totalError = errors.Join(totalError, fmt.Errorf("error destroying display: %w", err))
		}
		if err := c.context().Close(); err != nil {
			totalError = errors.Join(totalError, fmt.Errorf("error closing wayland connection: %w", err))
		}
	}

	return totalError
}
