package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"storyforest/api/internal/metrics"
)

// Dispatcher persists secondary notifications in the background, each in
// its own write, so a failure can never undo the action that caused it.
type Dispatcher struct {
	sink    Sink
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(sink Sink, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sink: sink, logger: logger, timeout: 5 * time.Second}
}

func (d *Dispatcher) Publish(ctx context.Context, n Notification) {
	if n.SelfDirected() {
		return
	}
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		deliver(ctx, d.sink, d.logger, n, "persist")
	}()
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func deliver(ctx context.Context, sink Sink, logger *slog.Logger, n Notification, stage string) {
	if _, err := Emit(ctx, sink, n); err != nil {
		metrics.NotificationsDropped.WithLabelValues(string(n.Type), stage).Inc()
		logger.WarnContext(ctx, "notification dropped",
			"type", n.Type,
			"receiver_id", n.ReceiverID,
			"error", err,
		)
	}
}
