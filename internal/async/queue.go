package async

import (
	"context"
	"errors"
	"time"
)

// Job asks for one retrieval URL to be checked after its receipt was issued.
type Job struct {
	PhotoID     string
	GroupID     string
	URL         string
	SubmittedAt time.Time
	TraceID     string
}

// ErrQueueFull is returned when a job could not be queued without blocking the caller.
var ErrQueueFull = errors.New("verification queue is full")

// ErrQueueClosed is returned after Shutdown.
var ErrQueueClosed = errors.New("verification queue is shutting down")

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
