package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"spesa/internal/core"
	applog "spesa/internal/log"
)

var (
	ErrObserverBusy   = errors.New("change queue full, change dropped")
	ErrObserverClosed = errors.New("change observer closed")
)

// AsyncObserver hands changes to another Observer on a background goroutine,
// so a slow observer never holds up a mutation. Changes are delivered in
// order; when the queue is full new changes are dropped.
type AsyncObserver struct {
	next   Observer
	logger *applog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan core.Change
	done   chan struct{}

	dropped int64
}

// NewAsyncObserver starts delivering to next with room for buffer pending
// changes.
func NewAsyncObserver(next Observer, buffer int, logger *applog.Logger) *AsyncObserver {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	a := &AsyncObserver{
		next:   next,
		logger: logger.WithComponent(applog.ComponentStore),
		queue:  make(chan core.Change, buffer),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// ItemsChanged queues c without waiting for delivery.
func (a *AsyncObserver) ItemsChanged(_ context.Context, c core.Change) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrObserverClosed
	}
	select {
	case a.queue <- c:
		return nil
	default:
		atomic.AddInt64(&a.dropped, 1)
		return ErrObserverBusy
	}
}

func (a *AsyncObserver) run() {
	defer close(a.done)
	for c := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := a.next.ItemsChanged(ctx, c); err != nil {
			a.logger.WarnContext(ctx, "Change observer failed",
				applog.FieldOperation, string(c.Op), applog.FieldItemID, c.ItemID, applog.FieldError, err)
		}
		cancel()
	}
}

// Dropped returns how many changes were refused because the queue was full.
func (a *AsyncObserver) Dropped() int64 { return atomic.LoadInt64(&a.dropped) }

// Close stops accepting changes and waits for the queued ones to be
// delivered. It is safe to call more than once.
func (a *AsyncObserver) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
	return nil
}
