// Package editqueue buffers outgoing entity edits between the sync loop and
// the storage backend.
package editqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/openworld/physync/internal/queue"
	"github.com/openworld/physync/pkg/core"
)

// ErrQueueFull is returned when the queue is full of edits that must not be
// dropped.
var ErrQueueFull = errors.New("edit queue full")

// Sink receives flushed edits in the order they were queued.
type Sink interface {
	RecordEdits(edits []core.EntityEdit) error
}

// Stats is a snapshot of the queue counters.
type Stats struct {
	Pending int
	Queued  uint64
	Dropped uint64
	Flushed uint64
}

// Queue is a bounded, thread-safe queue of outgoing edits. When full it
// drops the oldest edit that only carries motion; ownership releases are
// kept.
type Queue struct {
	items    *queue.Queue[core.EntityEdit]
	capacity int
	sink     Sink
	logger   *slog.Logger

	queued  atomic.Uint64
	dropped atomic.Uint64
	flushed atomic.Uint64

	queuedCounter  metric.Int64Counter
	droppedCounter metric.Int64Counter
	flushedCounter metric.Int64Counter
}

// New creates a queue that flushes into sink. A capacity <= 0 is unbounded.
func New(capacity int, sink Sink, logger *slog.Logger) (*Queue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		items:    queue.New[core.EntityEdit](),
		capacity: capacity,
		sink:     sink,
		logger:   logger,
	}

	m := meter()
	var err error
	q.queuedCounter, err = m.Int64Counter(
		"editqueue.edits.queued",
		metric.WithDescription("Total entity edits queued"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queued counter: %w", err)
	}
	q.droppedCounter, err = m.Int64Counter(
		"editqueue.edits.dropped",
		metric.WithDescription("Total entity edits dropped because the queue was full"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	q.flushedCounter, err = m.Int64Counter(
		"editqueue.edits.flushed",
		metric.WithDescription("Total entity edits written to storage"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating flushed counter: %w", err)
	}
	return q, nil
}

// droppable reports whether an edit may be evicted. Releases of ownership
// tell the server to stop waiting for us and must get through.
func droppable(e core.EntityEdit) bool {
	sim := e.Properties.SimulatorID
	return sim == nil || *sim != core.NoSession
}

// Push queues edit, evicting the oldest droppable edit when full.
func (q *Queue) Push(edit core.EntityEdit) error {
	evicted, added := q.items.PushBounded(edit, q.capacity, droppable)
	if evicted {
		q.dropped.Add(1)
		q.droppedCounter.Add(context.Background(), 1)
	}
	if !added {
		q.dropped.Add(1)
		q.droppedCounter.Add(context.Background(), 1)
		return ErrQueueFull
	}
	q.queued.Add(1)
	q.queuedCounter.Add(context.Background(), 1)
	return nil
}

// QueueEditEntityMessage queues edit and logs when it had to be dropped.
func (q *Queue) QueueEditEntityMessage(edit core.EntityEdit) {
	if err := q.Push(edit); err != nil {
		q.logger.Warn("dropping entity edit", "entity", edit.EntityID, "step", edit.Step, "error", err)
	}
}

// Flush writes every pending edit to the sink. On failure the batch is put
// back at the front of the queue.
func (q *Queue) Flush(ctx context.Context) (int, error) {
	edits := q.items.GetAndEmpty()
	if len(edits) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		q.items.PushFront(edits...)
		return 0, err
	}
	if err := q.sink.RecordEdits(edits); err != nil {
		q.items.PushFront(edits...)
		return 0, fmt.Errorf("flushing %d edits: %w", len(edits), err)
	}
	q.flushed.Add(uint64(len(edits)))
	q.flushedCounter.Add(ctx, int64(len(edits)))
	return len(edits), nil
}

// Run flushes every interval until ctx is done, then flushes once more.
func (q *Queue) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if _, err := q.Flush(context.Background()); err != nil {
				q.logger.Error("final edit flush failed", "error", err)
			}
			return
		case <-ticker.C:
			if _, err := q.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
				q.logger.Warn("edit flush failed", "error", err)
			}
		}
	}
}

func (q *Queue) Len() int { return q.items.Len() }

func (q *Queue) Stats() Stats {
	return Stats{
		Pending: q.items.Len(),
		Queued:  q.queued.Load(),
		Dropped: q.dropped.Load(),
		Flushed: q.flushed.Load(),
	}
}
