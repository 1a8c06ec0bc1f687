// Package transport moves encoded photos to the hosted media store.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/photo-receipts/internal/common"
)

// ErrUpload marks a failed upload. It wraps common.ErrUpstream.
var ErrUpload = fmt.Errorf("upload failed: %w", common.ErrUpstream)

// ErrHostNotAllowed is returned when a retrieval URL points outside the allowed media hosts.
var ErrHostNotAllowed = errors.New("retrieval url host not allowed")

// Upload is one encoded image to send.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Result is what the media host reports back. RetrievalURL is authoritative.
type Result struct {
	ID           string
	RetrievalURL string
	Format       string
	Width        int
	Height       int
}

// Uploader sends one image to the media host.
type Uploader interface {
	Upload(ctx context.Context, u Upload) (Result, error)
}

// File is the file part of a multipart request.
type File struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// SendMultipart posts form fields plus one file to endpoint and returns the raw response body.
// A non-2xx status returns the body together with an ErrUpload error.
func SendMultipart(ctx context.Context, client *http.Client, endpoint string, fields map[string]string, file File, logger *slog.Logger) ([]byte, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
	}
	start := time.Now()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, fields[k]); err != nil {
			return nil, 0, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Filename))
	if file.ContentType != "" {
		h.Set("Content-Type", file.ContentType)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, 0, fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, 0, fmt.Errorf("write file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, 0, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		logger.Error("transport.http.build_request_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	logger.Info("transport.http.request",
		"req_id", reqID,
		"receipt_id", common.ReceiptIDFromContext(ctx),
		"url", endpoint,
		"filename", file.Filename,
		"content_length", body.Len(),
	)

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("transport.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, fmt.Errorf("%w: %v", ErrUpload, err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			logger.Warn("transport.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Error("transport.http.read_error", "req_id", reqID, "status", resp.StatusCode, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, resp.StatusCode, fmt.Errorf("%w: read body: %v", ErrUpload, err)
	}

	logger.Info("transport.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("%w: status %d: %s", ErrUpload, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, resp.StatusCode, nil
}

// HostAllowed reports whether raw is an https URL whose host is one of hosts or a subdomain of one.
func HostAllowed(raw string, hosts []string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
