// Package listener runs a single consumer goroutine over an input channel.
package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrStopped may be returned by a handler to end the loop without an error.
var ErrStopped = errors.New("listener stopped")

type Job interface {
	Start(ctx context.Context)
	Stop()
}

type Listener[T any] struct {
	handler     func(input T) error
	stopHandler func()

	in     <-chan T
	wg     sync.WaitGroup
	cancel func()
	done   chan struct{}
	once   sync.Once
}

func New[T any](
	in <-chan T,
	handler func(T) error,
	stopHandler ...func(),
) *Listener[T] {
	if len(stopHandler) == 0 {
		stopHandler = []func(){func() {}}
	}

	return &Listener[T]{
		in:          in,
		handler:     handler,
		cancel:      func() {},
		stopHandler: stopHandler[0],
		done:        make(chan struct{}),
	}
}

// Start runs the loop until the context is cancelled, Stop is called or the
// handler returns ErrStopped. Any other handler error panics.
func (l *Listener[T]) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	l.wg.Add(1)

	go func() {
		defer l.wg.Done()
		defer l.finish()
		for {
			err := l.run(ctx)
			switch {
			case errors.Is(err, ErrStopped):
				return
			case err != nil:
				panic("channel listener error: " + err.Error())
			}
		}
	}()
}

func (l *Listener[T]) run(ctx context.Context) error {
	select {
	case inp := <-l.in:
		err := l.handler(inp)
		if errors.Is(err, ErrStopped) {
			return err
		}
		if err != nil {
			return fmt.Errorf("failed to handle input: %w", err)
		}
	case <-ctx.Done():
		return ErrStopped
	}

	return nil
}

func (l *Listener[T]) finish() {
	l.once.Do(func() {
		l.stopHandler()
		close(l.done)
	})
}

// Done is closed once the loop has exited and the stop handler has run.
func (l *Listener[T]) Done() <-chan struct{} {
	return l.done
}

func (l *Listener[T]) Stop() {
	l.cancel()
	l.wg.Wait()
	l.finish()
}
