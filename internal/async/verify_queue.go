package async

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/joseph-ayodele/photo-receipts/constants"
)

// Checker reports whether a retrieval URL answers.
type Checker interface {
	Check(ctx context.Context, url string) (constants.VerifyStatus, error)
}

// HTTPChecker issues a HEAD request and treats any 2xx as reachable.
type HTTPChecker struct {
	Client *http.Client
}

func (c HTTPChecker) Check(ctx context.Context, url string) (constants.VerifyStatus, error) {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return constants.VerifyStatusFailed, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return constants.VerifyStatusFailed, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return constants.VerifyStatusUnreachable, fmt.Errorf("status %d", resp.StatusCode)
	}
	return constants.VerifyStatusReachable, nil
}

// VerifyQueue checks retrieval URLs in the background so receipts never wait on them.
// Outcomes are only logged; the queue keeps no per-photo state.
type VerifyQueue struct {
	checker Checker
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*VerifyQueue)

func WithWorkers(n int) Option {
	return func(q *VerifyQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *VerifyQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithCheckTimeout(d time.Duration) Option {
	return func(q *VerifyQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewVerifyQueue(checker Checker, logger *slog.Logger, opts ...Option) *VerifyQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &VerifyQueue{
		checker: checker,
		logger:  logger,
		workers: 2,
		timeout: 10 * time.Second,
		ch:      make(chan Job, 128),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *VerifyQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("verify.worker.started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Debug("verify.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *VerifyQueue) run(workerID int, job Job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	status, err := q.checker.Check(ctx, job.URL)
	cancel()

	if err != nil {
		q.logger.Warn("verify.url.unreachable",
			"worker_id", workerID,
			"trace_id", job.TraceID,
			"photo_id", job.PhotoID,
			"group_id", job.GroupID,
			"url", job.URL,
			"status", status,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return
	}
	q.logger.Info("verify.url.ok",
		"worker_id", workerID,
		"status", status,
		"trace_id", job.TraceID,
		"photo_id", job.PhotoID,
		"group_id", job.GroupID,
		"queued_ms", start.Sub(job.SubmittedAt).Milliseconds(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

// Enqueue never blocks. A full or closed queue returns an error and logs the dropped job.
func (q *VerifyQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("verify.enqueue.closed", "photo_id", job.PhotoID, "url", job.URL)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Debug("verify.enqueue.ok", "photo_id", job.PhotoID, "trace_id", job.TraceID)
		return nil
	default:
		q.logger.Warn("verify.enqueue.dropped", "photo_id", job.PhotoID, "url", job.URL, "reason", "queue full")
		return ErrQueueFull
	}
}

func (q *VerifyQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("verify.shutdown.interrupted")
	case <-done:
		q.logger.Info("verify.shutdown.drained")
	}
}

var _ Queue = (*VerifyQueue)(nil)
