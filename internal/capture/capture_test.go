package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeStream struct {
	id      int
	stopped bool
}

func (s *fakeStream) Frame(context.Context) (*image.NRGBA, error) {
	return image.NewNRGBA(image.Rect(0, 0, 4, 3)), nil
}

func (s *fakeStream) Stop() error {
	s.stopped = true
	return nil
}

type fakeDevice struct {
	opened []*fakeStream
	err    error
}

func (d *fakeDevice) Open(context.Context) (Stream, error) {
	if d.err != nil {
		return nil, d.err
	}
	s := &fakeStream{id: len(d.opened)}
	d.opened = append(d.opened, s)
	return s, nil
}

func TestSessionReleasesBeforeReacquire(t *testing.T) {
	dev := &fakeDevice{}
	s := NewSession(dev, nil)
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("second Start() failed: %v", err)
	}
	if len(dev.opened) != 2 {
		t.Fatalf("opened %d streams, want 2", len(dev.opened))
	}
	if !dev.opened[0].stopped {
		t.Errorf("first stream was not stopped before reacquiring")
	}
	if dev.opened[1].stopped {
		t.Errorf("active stream stopped too early")
	}

	frame, err := s.Capture(ctx)
	if err != nil {
		t.Fatalf("Capture() failed: %v", err)
	}
	if frame.Rect.Dx() != 4 || frame.Rect.Dy() != 3 {
		t.Errorf("frame size = %v", frame.Rect)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if !dev.opened[1].stopped {
		t.Errorf("Close() did not stop the active stream")
	}
	if s.Active() {
		t.Errorf("session still active after Close()")
	}
	if _, err := s.Capture(ctx); !errors.Is(err, ErrNoActiveStream) {
		t.Errorf("Capture() after Close() error = %v, want ErrNoActiveStream", err)
	}
}

func TestSessionStartFailure(t *testing.T) {
	s := NewSession(&fakeDevice{err: ErrDeviceBusy}, nil)
	err := s.Start(context.Background())
	if !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("Start() error = %v, want ErrDeviceBusy", err)
	}
	if s.Active() {
		t.Errorf("session active after failed Start()")
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrPermissionDenied, "allow camera permissions"},
		{ErrNoDevice, "No camera found"},
		{ErrDeviceBusy, "another application"},
		{errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		if got := Message(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("Message(%v) = %q, want it to contain %q", tt.err, got, tt.want)
		}
	}
	if Message(nil) != "" {
		t.Errorf("Message(nil) should be empty")
	}
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.SetNRGBA(1, 1, color.NRGBA{R: 9, G: 8, B: 7, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	dec, err := DecodeBytes(encodePNG(t, 6, 4))
	if err != nil {
		t.Fatalf("DecodeBytes() failed: %v", err)
	}
	if dec.Format != "png" || dec.Width() != 6 || dec.Height() != 4 {
		t.Errorf("decoded = %s %dx%d", dec.Format, dec.Width(), dec.Height())
	}
	if got := dec.Image.NRGBAAt(1, 1); got != (color.NRGBA{R: 9, G: 8, B: 7, A: 255}) {
		t.Errorf("pixel = %v", got)
	}

	if _, err := DecodeBytes([]byte("not an image")); err == nil {
		t.Errorf("DecodeBytes(garbage) should fail")
	}
}

func TestFileDevice(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "still.png")
	if err := os.WriteFile(path, encodePNG(t, 3, 2), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := NewSession(FileDevice{Paths: []string{path}}, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer s.Close()

	frame, err := s.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture() failed: %v", err)
	}
	if frame.Rect.Dx() != 3 || frame.Rect.Dy() != 2 {
		t.Errorf("frame size = %v", frame.Rect)
	}

	_, err = FileDevice{Paths: []string{filepath.Join(dir, "missing.png")}}.Open(context.Background())
	if !errors.Is(err, ErrNoDevice) {
		t.Errorf("Open(missing) error = %v, want ErrNoDevice", err)
	}
	if _, err := (FileDevice{Paths: []string{filepath.Join(dir, "notes.txt")}}).Open(context.Background()); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Open(txt) error = %v, want ErrNoDevice", err)
	}
	if _, err := (FileDevice{}).Open(context.Background()); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Open(empty) error = %v, want ErrNoDevice", err)
	}
}
