package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHostAllowed(t *testing.T) {
	hosts := []string{"res.cloudinary.com", " Media.Example.org "}
	tests := []struct {
		raw  string
		want bool
	}{
		{"https://res.cloudinary.com/demo/a.jpg", true},
		{"https://RES.cloudinary.com/demo/a.jpg", true},
		{"https://cdn.media.example.org/a.jpg", true},
		{"http://res.cloudinary.com/demo/a.jpg", false},
		{"https://res.cloudinary.com.evil.net/a.jpg", false},
		{"https://notres.cloudinary.com/a.jpg", false},
		{"/relative/a.jpg", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := HostAllowed(tt.raw, hosts); got != tt.want {
			t.Errorf("HostAllowed(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestSendMultipartStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("upload_preset") == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, "missing preset")
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	file := File{Field: "file", Filename: "a.jpg", ContentType: "image/jpeg", Data: []byte("x")}

	raw, status, err := SendMultipart(context.Background(), nil, srv.URL, map[string]string{"upload_preset": "p"}, file, nil)
	if err != nil || status != http.StatusOK || string(raw) != "ok" {
		t.Fatalf("SendMultipart() = %q, %d, %v", raw, status, err)
	}

	raw, status, err = SendMultipart(context.Background(), nil, srv.URL, nil, file, nil)
	if !errors.Is(err, ErrUpload) {
		t.Fatalf("error = %v, want ErrUpload", err)
	}
	if status != http.StatusBadRequest || string(raw) != "missing preset" {
		t.Errorf("got %d %q", status, raw)
	}
}

func TestSendMultipartTruncatedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		_, _ = io.WriteString(w, `{"public_id":`)
	}))
	defer srv.Close()

	file := File{Field: "file", Filename: "a.jpg", ContentType: "image/jpeg", Data: []byte("x")}
	raw, _, err := SendMultipart(context.Background(), nil, srv.URL, nil, file, nil)
	if !errors.Is(err, ErrUpload) {
		t.Fatalf("error = %v, want ErrUpload", err)
	}
	if !strings.Contains(err.Error(), "read body") {
		t.Errorf("error %q does not report the failed read", err)
	}
	if raw != nil {
		t.Errorf("raw = %q, want nil on a failed read", raw)
	}
}
