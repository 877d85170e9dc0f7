package server

import (
	"upscan/internal/config"
	"upscan/internal/interfaces"
)

// Config wires the server to the rest of the process.
type Config struct {
	// App is the process configuration (listen address, settings
	// directory, browser endpoint, storage root).
	App *config.Config

	// Logger is optional; a stdout logger is used when nil.
	Logger interfaces.Logger

	// OpenSession overrides how browser sessions are acquired. Tests
	// inject dummies here; when nil the remote chromedp opener bound to
	// App.BrowserRemoteURL is used.
	OpenSession interfaces.OpenSession
}
