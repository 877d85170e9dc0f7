// Package config collects the runtime configuration the process reads
// from its environment.
package config

import (
	"os"
	"time"
)

// Config is the process-wide runtime configuration.
type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string

	// BrowserRemoteURL is the remote browser-automation endpoint scans
	// connect to. Required at scan time; its absence surfaces as a
	// connection error when a session is opened.
	BrowserRemoteURL string

	// SettingsDir is the directory of scanner settings JSON documents.
	SettingsDir string

	// StorageRoot is where the run history database lives.
	StorageRoot string

	// MaxAttempts, RetryDelay and AttemptTimeout tune the task retry
	// policy; zero values fall back to the queue defaults.
	MaxAttempts    int
	RetryDelay     time.Duration
	AttemptTimeout time.Duration
}

// FromEnv builds a Config from environment variables with development
// defaults for everything but credentials.
func FromEnv() *Config {
	return &Config{
		ListenAddr:       envOr("LISTEN_ADDR", ":8080"),
		BrowserRemoteURL: os.Getenv("BROWSER_REMOTE_URL"),
		SettingsDir:      envOr("SCANNER_SETTINGS", "./scanner_settings"),
		StorageRoot:      envOr("STORAGE_ROOT", "./data"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
