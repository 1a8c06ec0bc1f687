package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Registry RegistryConfig
	Server   ServerConfig
	Upload   UploadConfig
	Receipt  ReceiptConfig
	Verify   VerifyConfig
}

// RegistryConfig holds metadata registry configuration. URL selects the backend:
// "memory", "sqlite:<path>", "file:<path>", "postgres://..." or "dynamodb://<table>".
type RegistryConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr     string
	GRPCAddr     string
	PublicOrigin string
	MaxUploadMB  int
}

// UploadConfig holds the hosted media (Cloudinary) configuration
type UploadConfig struct {
	CloudName    string
	UploadPreset string
	BaseURL      string
	Timeout      time.Duration
	MediaHosts   []string
}

// ReceiptConfig holds receipt rendering configuration
type ReceiptConfig struct {
	Title    string
	Footer   string
	Timezone string
}

// VerifyConfig holds the retrieval URL verification queue configuration
type VerifyConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Registry: RegistryConfig{
			URL:             getEnv("REGISTRY_URL", "memory"),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			HTTPAddr:     getEnv("HTTP_ADDR", ":3000"),
			GRPCAddr:     getEnv("GRPC_ADDR", ":9090"),
			PublicOrigin: strings.TrimRight(getEnv("PUBLIC_ORIGIN", "http://localhost:3000"), "/"),
			MaxUploadMB:  getEnvAsInt("MAX_UPLOAD_MB", 25),
		},
		Upload: UploadConfig{
			CloudName:    getEnv("CLOUDINARY_CLOUD_NAME", ""),
			UploadPreset: getEnv("CLOUDINARY_UPLOAD_PRESET", ""),
			BaseURL:      getEnv("CLOUDINARY_BASE_URL", "https://api.cloudinary.com/v1_1"),
			Timeout:      getEnvAsDuration("UPLOAD_TIMEOUT", 60*time.Second),
			MediaHosts:   getEnvAsList("MEDIA_HOSTS", []string{"res.cloudinary.com"}),
		},
		Receipt: ReceiptConfig{
			Title:    getEnv("RECEIPT_TITLE", "PHOTO BOOTH"),
			Footer:   getEnv("RECEIPT_FOOTER", "Thanks for stopping by!"),
			Timezone: getEnv("RECEIPT_TIMEZONE", "UTC"),
		},
		Verify: VerifyConfig{
			Workers:   getEnvAsInt("VERIFY_WORKERS", 2),
			QueueSize: getEnvAsInt("VERIFY_QUEUE_SIZE", 128),
			Timeout:   getEnvAsDuration("VERIFY_TIMEOUT", 10*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Location resolves the receipt timezone, falling back to UTC.
func (c ReceiptConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Registry.URL == "" {
		return NewAppError("CONFIG_ERROR", "REGISTRY_URL is required", ErrInvalidInput)
	}
	if c.Upload.CloudName == "" || c.Upload.UploadPreset == "" {
		return NewAppError("CONFIG_ERROR", "CLOUDINARY_CLOUD_NAME and CLOUDINARY_UPLOAD_PRESET are required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if !strings.HasPrefix(c.Server.PublicOrigin, "http://") && !strings.HasPrefix(c.Server.PublicOrigin, "https://") {
		return NewAppError("CONFIG_ERROR", "PUBLIC_ORIGIN must be an absolute http(s) origin", ErrInvalidInput)
	}
	if _, err := time.LoadLocation(c.Receipt.Timezone); err != nil {
		return NewAppError("CONFIG_ERROR", "RECEIPT_TIMEZONE is not a known location", err)
	}
	return nil
}
