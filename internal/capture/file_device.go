package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/joseph-ayodele/photo-receipts/constants"
)

// FileDevice serves still frames from image files on disk, one per Frame call,
// cycling through Paths. It backs the batch CLI where no camera is attached.
type FileDevice struct {
	Paths []string
}

func (d FileDevice) Open(ctx context.Context) (Stream, error) {
	if len(d.Paths) == 0 {
		return nil, ErrNoDevice
	}
	for _, p := range d.Paths {
		if !constants.IsAllowedExt(filepath.Ext(p)) {
			return nil, fmt.Errorf("%w: unsupported image type %s", ErrNoDevice, p)
		}
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, p)
			}
			return nil, fmt.Errorf("%w: %s", ErrNoDevice, p)
		}
	}
	return &fileStream{paths: d.Paths}, nil
}

type fileStream struct {
	mu      sync.Mutex
	paths   []string
	next    int
	stopped bool
}

func (s *fileStream) Frame(ctx context.Context) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrNoActiveStream
	}
	path := s.paths[s.next%len(s.paths)]
	s.next++
	s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return dec.Image, nil
}

func (s *fileStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}
