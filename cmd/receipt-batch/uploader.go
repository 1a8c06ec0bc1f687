package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/photo-receipts/internal/compose"
	"github.com/joseph-ayodele/photo-receipts/internal/transport"
)

// dirUploader stands in for the media host when running offline: files land in dir and are
// addressed by file:// URLs.
type dirUploader struct {
	dir string
}

func (u *dirUploader) Upload(ctx context.Context, up transport.Upload) (transport.Result, error) {
	if err := ctx.Err(); err != nil {
		return transport.Result{}, err
	}
	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return transport.Result{}, fmt.Errorf("%w: %v", transport.ErrUpload, err)
	}
	id := compose.SafeID(strings.TrimSuffix(up.Filename, filepath.Ext(up.Filename)))
	path, err := filepath.Abs(filepath.Join(u.dir, id+filepath.Ext(up.Filename)))
	if err != nil {
		return transport.Result{}, fmt.Errorf("%w: %v", transport.ErrUpload, err)
	}
	if err := os.WriteFile(path, up.Data, 0o644); err != nil {
		return transport.Result{}, fmt.Errorf("%w: %v", transport.ErrUpload, err)
	}
	return transport.Result{
		ID:           "local/" + id,
		RetrievalURL: (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(),
		Format:       strings.TrimPrefix(filepath.Ext(up.Filename), "."),
	}, nil
}
