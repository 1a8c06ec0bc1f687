package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/photo-receipts/constants"
	"github.com/joseph-ayodele/photo-receipts/internal/common"
)

func TestWithin(t *testing.T) {
	tests := []struct {
		path, dir string
		want      bool
	}{
		{"/tmp/hot/media", "/tmp/hot", true},
		{"/tmp/hot", "/tmp/hot", true},
		{"/tmp/out/media", "/tmp/hot", false},
		{"/tmp/hotter/media", "/tmp/hot", false},
	}
	for _, tt := range tests {
		if got := within(tt.path, tt.dir); got != tt.want {
			t.Errorf("within(%q, %q) = %v, want %v", tt.path, tt.dir, got, tt.want)
		}
	}
}

func TestDrainHotFolderAfterErrorsClose(t *testing.T) {
	events := make(chan string)
	errs := make(chan error)
	close(errs)

	var handled []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		drainHotFolder(events, errs, func(p string) { handled = append(handled, p) }, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	// errs is already closed; events must still be served
	time.Sleep(20 * time.Millisecond)
	events <- "/hot/a.jpg"
	events <- "/hot/b.png"
	close(events)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("drainHotFolder did not return after events closed")
	}
	if len(handled) != 2 || handled[0] != "/hot/a.jpg" || handled[1] != "/hot/b.png" {
		t.Errorf("handled = %v", handled)
	}
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 24, 16))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(1, 1, color.NRGBA{R: 10, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunOffline(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "shot.png")
	writePNG(t, photo)
	out := filepath.Join(dir, "out")
	xlsx := filepath.Join(dir, "receipts.xlsx")

	cfg := &common.Config{
		Registry: common.RegistryConfig{URL: "memory"},
		Server:   common.ServerConfig{PublicOrigin: "http://localhost:3000"},
		Receipt:  common.ReceiptConfig{Timezone: "UTC"},
	}
	opts := batchOptions{inmem: true, offline: true, filter: constants.FilterSepia, out: out, xlsxOut: xlsx, paths: []string{photo}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := run(context.Background(), cfg, opts, logger); err != nil {
		t.Fatalf("run() = %v", err)
	}

	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	var pdfs int
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".pdf") {
			pdfs++
			data, _ := os.ReadFile(filepath.Join(out, e.Name()))
			if !bytes.HasPrefix(data, []byte("%PDF-")) {
				t.Errorf("%s is not a PDF", e.Name())
			}
		}
	}
	if pdfs != 1 {
		t.Errorf("receipts written = %d, want 1", pdfs)
	}
	if media, err := os.ReadDir(filepath.Join(out, "media")); err != nil || len(media) != 1 {
		t.Errorf("offline media = %v, %v", media, err)
	}
	if data, err := os.ReadFile(xlsx); err != nil || !bytes.HasPrefix(data, []byte("PK")) {
		t.Errorf("export not written: %v", err)
	}
}

func TestRunRejectsBeforeOpening(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	tests := []struct {
		name string
		opts batchOptions
		want string
	}{
		{"upload without credentials", batchOptions{out: dir, paths: []string{"x.png"}}, "CLOUDINARY_CLOUD_NAME"},
		{"offline media inside hot folder", batchOptions{offline: true, out: filepath.Join(dir, "hot"), watchDir: dir}, "--watch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &common.Config{Registry: common.RegistryConfig{URL: "memory"}}
			err := run(context.Background(), cfg, tt.opts, logger)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("run() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}
