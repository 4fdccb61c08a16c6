package webhooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/angelmondragon/wacommerce-backend/internal/orchestrator"
	"github.com/angelmondragon/wacommerce-backend/pkg/logger"
)

const (
	defaultConcurrency = 32
	defaultTimeout     = 90 * time.Second
)

// MessageHandler processes one normalized message.
type MessageHandler interface {
	Handle(ctx context.Context, msg orchestrator.Inbound) (string, error)
}

// Dispatcher runs each message in its own goroutine, at most concurrency at
// a time, detached from the webhook request that delivered it.
type Dispatcher struct {
	handler MessageHandler
	sem     *semaphore.Weighted
	timeout time.Duration
	logg    *logger.Logger

	// base is canceled on Close; queued messages stop waiting for a slot.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDispatcher(handler MessageHandler, concurrency int64, timeout time.Duration, logg *logger.Logger) (*Dispatcher, error) {
	if handler == nil {
		return nil, fmt.Errorf("message handler required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		handler: handler,
		sem:     semaphore.NewWeighted(concurrency),
		timeout: timeout,
		logg:    logg,
		base:    base,
		cancel:  cancel,
	}, nil
}

// Dispatch queues msgs and returns immediately. Request-scoped log fields
// are carried over; cancellation is not.
func (d *Dispatcher) Dispatch(ctx context.Context, msgs ...orchestrator.Inbound) {
	detached := context.WithoutCancel(ctx)
	for _, msg := range msgs {
		d.wg.Add(1)
		go d.run(detached, msg)
	}
}

func (d *Dispatcher) run(parent context.Context, msg orchestrator.Inbound) {
	defer d.wg.Done()
	ctx, stop := context.WithCancel(parent)
	defer stop()
	unhook := context.AfterFunc(d.base, stop)
	defer unhook()
	ctx = d.logg.WithFields(ctx, map[string]any{"message_id": msg.MessageID, "routing_key": msg.RoutingKey})

	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.logg.Warn(ctx, "dispatcher closed before message ran")
		return
	}
	defer d.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			d.logg.Error(ctx, "message handler panicked", fmt.Errorf("panic: %v", rec))
		}
	}()

	start := time.Now()
	outcome, err := d.handler.Handle(ctx, msg)
	ctx = d.logg.WithFields(ctx, map[string]any{"outcome": outcome, "duration_ms": time.Since(start).Milliseconds()})
	if err != nil {
		d.logg.Error(ctx, "inbound message failed", err)
		return
	}
	d.logg.Debug(ctx, "inbound message processed")
}

// Close stops accepting queued work and waits up to ctx for running messages.
func (d *Dispatcher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}
