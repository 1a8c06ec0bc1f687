package cloudinary

import (
	"log/slog"
	"net/http"
	"time"
)

// Config for the Cloudinary unsigned upload client.
type Config struct {
	CloudName    string
	UploadPreset string        // unsigned preset configured in the Cloudinary console
	BaseURL      string        // default https://api.cloudinary.com/v1_1
	Timeout      time.Duration // http client timeout
	MediaHosts   []string      // hosts a secure_url may point at; default res.cloudinary.com
	Folder       string        // optional target folder
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cloudinary.com/v1_1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if len(cfg.MediaHosts) == 0 {
		cfg.MediaHosts = []string{"res.cloudinary.com"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}
