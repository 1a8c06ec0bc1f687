package main

import (
	"context"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/joseph-ayodele/photo-receipts/internal/transport"
)

func TestDirUploader(t *testing.T) {
	u := &dirUploader{dir: t.TempDir()}
	res, err := u.Upload(context.Background(), transport.Upload{Filename: "booth-1-0.jpg", ContentType: "image/jpeg", Data: []byte("jpeg")})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.ID != "local/booth-1-0" || res.Format != "jpg" {
		t.Errorf("result = %+v", res)
	}
	parsed, err := url.Parse(res.RetrievalURL)
	if err != nil || parsed.Scheme != "file" || !strings.HasSuffix(parsed.Path, "/booth-1-0.jpg") {
		t.Fatalf("retrieval url = %q", res.RetrievalURL)
	}
	data, err := os.ReadFile(parsed.Path)
	if err != nil || string(data) != "jpeg" {
		t.Errorf("stored file = %q, %v", data, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := u.Upload(ctx, transport.Upload{Filename: "x.jpg"}); err == nil {
		t.Error("expected error for cancelled context")
	}
}
