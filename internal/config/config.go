package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr   = ":8080"
	defaultDBPath       = "duckview.db"
	defaultQueryTimeout = 30 * time.Second
	defaultMaxDatasetMB = 64
	defaultBundleOrder  = "duckdb,sqlite"
	bytesPerMB          = 1 << 20
	envListenAddr       = "DUCKVIEW_LISTEN_ADDR"
	envDBPath           = "DUCKVIEW_DB_PATH"
	envLogLevel         = "DUCKVIEW_LOG_LEVEL"
	envBundles          = "DUCKVIEW_BUNDLES"
	envProfiles         = "DUCKVIEW_PROFILES"
	envQueryTimeout     = "DUCKVIEW_QUERY_TIMEOUT"
	envWorkDir          = "DUCKVIEW_WORK_DIR"
	envMaxDatasetMB     = "DUCKVIEW_MAX_DATASET_MB"
	envS3Endpoint       = "DUCKVIEW_S3_ENDPOINT"
	envS3Region         = "DUCKVIEW_S3_REGION"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	// Bundles is the ordered list of engine bundles to try when a session is
	// initialized. The first one whose probe succeeds is used.
	Bundles []string

	// ProfilesPath is an optional YAML file with extra view profiles.
	ProfilesPath string

	// QueryTimeout bounds a single query. Zero disables the limit.
	QueryTimeout time.Duration

	// WorkDir is the parent directory for per-session engine files.
	WorkDir string

	MaxDatasetBytes int64
	S3Endpoint      string
	S3Region        string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:      defaultListenAddr,
		DBPath:          defaultDBPath,
		LogLevel:        slog.LevelInfo,
		Bundles:         parseList(defaultBundleOrder),
		QueryTimeout:    defaultQueryTimeout,
		WorkDir:         os.TempDir(),
		MaxDatasetBytes: defaultMaxDatasetMB * bytesPerMB,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envBundles); v != "" {
		if list := parseList(v); len(list) > 0 {
			cfg.Bundles = list
		}
	}
	if v := os.Getenv(envProfiles); v != "" {
		cfg.ProfilesPath = v
	}
	if v := os.Getenv(envQueryTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.QueryTimeout = d
		}
	}
	if v := os.Getenv(envWorkDir); v != "" {
		cfg.WorkDir = v
	}
	if v := os.Getenv(envMaxDatasetMB); v != "" {
		if mb, err := strconv.Atoi(v); err == nil && mb > 0 {
			cfg.MaxDatasetBytes = int64(mb) * bytesPerMB
		}
	}
	if v := os.Getenv(envS3Endpoint); v != "" {
		cfg.S3Endpoint = v
	}
	if v := os.Getenv(envS3Region); v != "" {
		cfg.S3Region = v
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseList splits a comma separated list, dropping blanks.
func parseList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(strings.ToLower(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
