// Package cloudinary uploads photos to Cloudinary with an unsigned upload preset.
package cloudinary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/photo-receipts/internal/common"
	"github.com/joseph-ayodele/photo-receipts/internal/transport"
)

var responseSchema = common.MustCompileSchema("cloudinary-upload.json", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"public_id":  map[string]any{"type": "string", "minLength": 1},
		"secure_url": map[string]any{"type": "string", "minLength": 1},
		"format":     map[string]any{"type": "string"},
		"width":      map[string]any{"type": "number", "minimum": 0},
		"height":     map[string]any{"type": "number", "minimum": 0},
	},
	"required": []string{"public_id", "secure_url"},
})

type uploadResponse struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	Format    string `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Upload implements transport.Uploader.
func (c *Client) Upload(ctx context.Context, u transport.Upload) (transport.Result, error) {
	start := time.Now()
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + c.cfg.CloudName + "/image/upload"

	fields := map[string]string{"upload_preset": c.cfg.UploadPreset}
	if c.cfg.Folder != "" {
		fields["folder"] = c.cfg.Folder
	}
	raw, status, err := transport.SendMultipart(ctx, c.http, endpoint, fields, transport.File{
		Field:       "file",
		Filename:    u.Filename,
		ContentType: u.ContentType,
		Data:        u.Data,
	}, c.logger)
	if err != nil {
		if msg := providerError(raw); msg != "" {
			err = fmt.Errorf("%w: status %d: %s", transport.ErrUpload, status, msg)
		}
		c.logger.Error("cloudinary.upload.http_error",
			"filename", u.Filename, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return transport.Result{}, err
	}

	if msg := providerError(raw); msg != "" {
		c.logger.Error("cloudinary.upload.provider_error",
			"filename", u.Filename, "message", msg,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return transport.Result{}, fmt.Errorf("%w: %s", transport.ErrUpload, msg)
	}

	if err := common.ValidateJSON(responseSchema, raw); err != nil {
		c.logger.Error("cloudinary.upload.schema_validation_failed",
			"filename", u.Filename, "error", err, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return transport.Result{}, fmt.Errorf("%w: unexpected response: %w", transport.ErrUpload, err)
	}

	var out uploadResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return transport.Result{}, fmt.Errorf("%w: decode response: %v", transport.ErrUpload, err)
	}
	if !transport.HostAllowed(out.SecureURL, c.cfg.MediaHosts) {
		c.logger.Error("cloudinary.upload.host_not_allowed",
			"filename", u.Filename, "secure_url", out.SecureURL,
		)
		return transport.Result{}, fmt.Errorf("%w: %w: %s", transport.ErrUpload, transport.ErrHostNotAllowed, out.SecureURL)
	}

	c.logger.Info("cloudinary.upload.ok",
		"filename", u.Filename,
		"public_id", out.PublicID,
		"format", out.Format,
		"width", out.Width,
		"height", out.Height,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return transport.Result{
		ID:           out.PublicID,
		RetrievalURL: out.SecureURL,
		Format:       out.Format,
		Width:        out.Width,
		Height:       out.Height,
	}, nil
}

// providerError extracts Cloudinary's {"error":{"message":...}} text, if any.
func providerError(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var body struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == nil {
		return ""
	}
	if body.Error.Message == "" {
		return "unknown provider error"
	}
	return body.Error.Message
}

var _ transport.Uploader = (*Client)(nil)
