package interfaces

import (
	"context"

	"upscan/internal/model"
)

// BrowserSession is a single remote, scriptable browser instance. All
// outbound HTTP during a scan happens through this interface (navigation or
// in-page fetch), so every request carries the browser's own cookie jar,
// TLS stack and device fingerprint.
type BrowserSession interface {
	// Navigate loads a URL and blocks until the page load settles.
	Navigate(ctx context.Context, url string) error

	// Cookies returns the cookies currently held by the browser.
	Cookies(ctx context.Context) ([]model.Cookie, error)

	// ExecuteScript evaluates an in-page expression and unmarshals its
	// resolved value into out. A throw inside the page surfaces as a
	// *browser.ScriptExecutionError.
	ExecuteScript(ctx context.Context, script string, out any) error

	// Fetch issues an HTTP request from inside the page via fetch(),
	// returning decoded JSON (any) or the raw body text depending on the
	// response content type.
	Fetch(ctx context.Context, req *model.FetchRequest) (any, error)

	// Close releases the remote session. Safe to call more than once.
	Close() error
}

// OpenSession acquires a fresh BrowserSession. Each scan opens exactly one
// session and closes it before the scan returns.
type OpenSession func(ctx context.Context) (BrowserSession, error)
