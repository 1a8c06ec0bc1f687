package cloudinary

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joseph-ayodele/photo-receipts/internal/common"
	"github.com/joseph-ayodele/photo-receipts/internal/transport"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		CloudName:    "demo",
		UploadPreset: "booth_unsigned",
		BaseURL:      srv.URL,
	}, nil)
}

func TestUploadSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/demo/image/upload" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if got := r.FormValue("upload_preset"); got != "booth_unsigned" {
			t.Errorf("upload_preset = %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("file part missing: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		if string(data) != "jpegbytes" || hdr.Filename != "photo-1.jpg" {
			t.Errorf("file = %q (%s)", data, hdr.Filename)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"public_id":"booth/abc","secure_url":"https://res.cloudinary.com/demo/image/upload/v1/booth/abc.jpg","format":"jpg","width":640,"height":480}`)
	})

	res, err := c.Upload(context.Background(), transport.Upload{Filename: "photo-1.jpg", ContentType: "image/jpeg", Data: []byte("jpegbytes")})
	if err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}
	want := transport.Result{
		ID:           "booth/abc",
		RetrievalURL: "https://res.cloudinary.com/demo/image/upload/v1/booth/abc.jpg",
		Format:       "jpg",
		Width:        640,
		Height:       480,
	}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}
}

func TestUploadFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
		wantErr error
	}{
		{"non-2xx", http.StatusInternalServerError, `oops`, "status 500", nil},
		{"provider error with 400", http.StatusBadRequest, `{"error":{"message":"Upload preset not found"}}`, "Upload preset not found", nil},
		{"provider error with 200", http.StatusOK, `{"error":{"message":"Invalid image file"}}`, "Invalid image file", nil},
		{"missing secure_url", http.StatusOK, `{"public_id":"abc"}`, "unexpected response", common.ErrValidation},
		{"missing public_id", http.StatusOK, `{"secure_url":"https://res.cloudinary.com/x.jpg"}`, "unexpected response", common.ErrValidation},
		{"foreign host", http.StatusOK, `{"public_id":"abc","secure_url":"https://evil.example.com/x.jpg"}`, "evil.example.com", transport.ErrHostNotAllowed},
		{"plain http", http.StatusOK, `{"public_id":"abc","secure_url":"http://res.cloudinary.com/x.jpg"}`, "not allowed", transport.ErrHostNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.Upload(context.Background(), transport.Upload{Filename: "a.jpg", Data: []byte("x")})
			if !errors.Is(err, transport.ErrUpload) {
				t.Fatalf("error = %v, want ErrUpload", err)
			}
			if !errors.Is(err, common.ErrUpstream) {
				t.Errorf("error %v does not map to an upstream failure", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v in chain", err, tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err, tt.wantMsg)
			}
		})
	}
}
