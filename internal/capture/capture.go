package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/joseph-ayodele/photo-receipts/internal/common"
)

// Device errors. Each maps to a remedial message shown to the booth user.
var (
	ErrPermissionDenied = fmt.Errorf("%w: permission denied", common.ErrCapture)
	ErrNoDevice         = fmt.Errorf("%w: no camera found", common.ErrCapture)
	ErrDeviceBusy       = fmt.Errorf("%w: camera in use", common.ErrCapture)
	ErrNoActiveStream   = errors.New("no active stream")
)

// Message returns the user-facing text for a capture failure.
func Message(err error) string {
	const prefix = "Could not access camera. "
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return prefix + "Please allow camera permissions in your browser settings."
	case errors.Is(err, ErrNoDevice):
		return prefix + "No camera found. Please connect a camera."
	case errors.Is(err, ErrDeviceBusy):
		return prefix + "Camera is being used by another application."
	default:
		return prefix + err.Error()
	}
}

// Stream is a live source of still frames. Stop releases the underlying device.
type Stream interface {
	Frame(ctx context.Context) (*image.NRGBA, error)
	Stop() error
}

// Device acquires streams.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Session owns at most one active stream. Starting again releases the previous
// stream first; Close releases whatever is active.
type Session struct {
	device Device
	logger *slog.Logger

	mu     sync.Mutex
	stream Stream
}

func NewSession(device Device, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{device: device, logger: logger}
}

// Start acquires a fresh stream, stopping any stream the session already holds.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.releaseLocked(); err != nil {
		s.logger.Warn("capture.release_failed", "error", err)
	}
	stream, err := s.device.Open(ctx)
	if err != nil {
		s.logger.Error("capture.open_failed", "error", err, "message", Message(err))
		return err
	}
	s.stream = stream
	s.logger.Info("capture.started")
	return nil
}

// Capture grabs one frame from the active stream.
func (s *Session) Capture(ctx context.Context) (*image.NRGBA, error) {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()

	if stream == nil {
		return nil, ErrNoActiveStream
	}
	frame, err := stream.Frame(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture frame: %w", err)
	}
	s.logger.Info("capture.frame", "width", frame.Rect.Dx(), "height", frame.Rect.Dy())
	return frame, nil
}

// Active reports whether the session currently holds a stream.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

// Close releases the active stream, if any.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked()
}

func (s *Session) releaseLocked() error {
	if s.stream == nil {
		return nil
	}
	err := s.stream.Stop()
	s.stream = nil
	s.logger.Info("capture.stopped")
	return err
}
