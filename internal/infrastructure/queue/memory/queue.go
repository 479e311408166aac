// Package memory provides an in-process pipeline queue for single-binary
// deployments. A bounded channel applies backpressure to ingestion and a
// fixed worker pool caps transcription concurrency.
package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/avdeenko/call-intake/internal/core/domain"
)

var errQueueClosed = errors.New("queue closed")

type Queue struct {
	jobs    chan domain.PipelineJob
	workers int
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

func New(size, workers int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = 64
	}
	if workers <= 0 {
		workers = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		jobs:    make(chan domain.PipelineJob, size),
		workers: workers,
		logger:  logger,
	}
}

// PublishCallAccepted blocks when the buffer is full so a burst of
// detected files slows ingestion instead of growing memory unbounded.
// After Close the publish is refused rather than accepted into a queue
// nobody will drain.
func (q *Queue) PublishCallAccepted(ctx context.Context, job domain.PipelineJob) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return domain.WrapError(domain.ErrTemporary, "enqueue pipeline job", errQueueClosed)
	}

	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return domain.WrapError(domain.ErrTemporary, "enqueue pipeline job", ctx.Err())
	}
}

// SubscribeCallAccepted runs the worker pool until ctx is cancelled,
// then waits for in-flight handlers to finish.
func (q *Queue) SubscribeCallAccepted(ctx context.Context, handler func(context.Context, domain.PipelineJob) error) error {
	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-q.jobs:
					if err := handler(ctx, job); err != nil {
						q.logger.Error("pipeline handler failed",
							"call_id", job.CallID,
							"error", err)
					}
				}
			}
		}()
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

// Close stops accepting jobs. The channel itself stays open: workers
// leave via their context, and a publisher that raced past shutdown gets
// an error instead of a send on a closed channel. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}
