package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"
)

const (
	defaultQueueSize = 100
	defaultWorkers   = 1
	defaultTimeout   = 60 * time.Second
)

// DispatcherOptions tunes the queue. Zero values select defaults.
type DispatcherOptions struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
}

// Stats are cumulative delivery counters.
type Stats struct {
	Sent    uint64
	Failed  uint64
	Dropped uint64
}

// Dispatcher queues notifications and delivers them on background workers.
type Dispatcher struct {
	notifier Notifier
	queue    chan *Notification
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// NewDispatcher starts the workers.
func NewDispatcher(n Notifier, opts DispatcherOptions) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	d := &Dispatcher{
		notifier: n,
		queue:    make(chan *Notification, opts.QueueSize),
		timeout:  opts.Timeout,
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Notifier returns the channel notifications are delivered to.
func (d *Dispatcher) Notifier() Notifier { return d.notifier }

// Submit enqueues n without blocking. It returns an error wrapping
// ErrNotificationFailed when the queue is full or the dispatcher is closed.
func (d *Dispatcher) Submit(n *Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Inc()
		return fmt.Errorf("%w: dispatcher closed", ErrNotificationFailed)
	}
	select {
	case d.queue <- n:
		return nil
	default:
		d.dropped.Inc()
		slog.Warn("notification queue full, dropping",
			"notifier", d.notifier.Name(),
			"message_id", n.Message.ID,
		)
		return fmt.Errorf("%w: queue full", ErrNotificationFailed)
	}
}

// Close stops accepting notifications and waits for queued ones to be
// delivered, or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification queue not drained: %w", ctx.Err())
	}
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Sent:    d.sent.Load(),
		Failed:  d.failed.Load(),
		Dropped: d.dropped.Load(),
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n *Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	if err := d.notifier.Notify(ctx, n); err != nil {
		d.failed.Inc()
		slog.Error("notification failed",
			"notifier", d.notifier.Name(),
			"message_id", n.Message.ID,
			"error", err,
		)
		return
	}
	d.sent.Inc()
	slog.Info("notification sent",
		"notifier", d.notifier.Name(),
		"message_id", n.Message.ID,
		"duration", time.Since(start),
	)
}
