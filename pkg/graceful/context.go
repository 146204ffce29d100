package graceful

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Context returns a context that is canceled when SIGINT or SIGTERM arrives.
// A second signal terminates the process without waiting for cleanup.
func Context(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			log.Println("Received termination signal, shutting down...")
			cancel()
		case <-ctx.Done():
			signal.Stop(sigChan)
			return
		}
		select {
		case <-sigChan:
			log.Println("Received second termination signal, exiting now.")
			os.Exit(1)
		case <-time.After(30 * time.Second):
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// Closer releases one resource before the process exits.
type Closer func(ctx context.Context) error

// Shutdown runs closers in reverse order under a shared deadline so that
// resources are released opposite to the order they were acquired. Every
// closer runs even if an earlier one fails.
func Shutdown(timeout time.Duration, closers ...Closer) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Func adapts a cleanup function without an error result.
func Func(fn func()) Closer {
	return func(context.Context) error {
		fn()
		return nil
	}
}
