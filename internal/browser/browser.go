// Package browser drives a remote Chrome instance over the DevTools
// protocol. All chromedp usage is isolated here so the scanning logic
// depends only on the interfaces.BrowserSession contract.
package browser

import (
	"context"
	"errors"
	"sync"

	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"upscan/internal/interfaces"
	"upscan/internal/model"
)

// RemoteSession is one tab on a remote browser, acquired from the
// automation endpoint and released by Close. It implements
// interfaces.BrowserSession.
type RemoteSession struct {
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	logger    interfaces.Logger
}

// Desktop viewport declared on every session so the fingerprint the site
// observes is consistent across scans.
const (
	viewportWidth  = 1280
	viewportHeight = 800
)

// Open connects to the remote browser-automation endpoint and allocates a
// fresh session. An unset or unreachable endpoint fails with a
// *ConnectionError wrapping the cause.
func Open(ctx context.Context, endpoint string, logger interfaces.Logger) (*RemoteSession, error) {
	if endpoint == "" {
		return nil, &ConnectionError{Err: errors.New("endpoint URL is empty")}
	}

	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.Background(), endpoint)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	cancel := func() {
		cancelTab()
		cancelAlloc()
	}

	// Force the connection now and declare the device profile, so an
	// unreachable endpoint surfaces here rather than mid-pipeline.
	if err := chromedp.Run(tabCtx, chromedp.EmulateViewport(viewportWidth, viewportHeight)); err != nil {
		cancel()
		return nil, &ConnectionError{Endpoint: endpoint, Err: err}
	}

	if logger != nil {
		logger.Debug("remote browser session opened", interfaces.Field{Key: "endpoint", Value: endpoint})
	}

	return &RemoteSession{ctx: tabCtx, cancel: cancel, logger: logger}, nil
}

// Navigate loads url and blocks until the page load event fires.
func (s *RemoteSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(s.ctx, chromedp.Navigate(url))
}

// Cookies returns the name/value pairs of every cookie the browser holds.
func (s *RemoteSession) Cookies(ctx context.Context) ([]model.Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []model.Cookie
	err := chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			out = append(out, model.Cookie{Name: c.Name, Value: c.Value})
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExecuteScript evaluates script in the page, awaiting any promise it
// resolves to, and unmarshals the value into out. A throw inside the page
// is returned as a *ScriptExecutionError.
func (s *RemoteSession) ExecuteScript(ctx context.Context, script string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := chromedp.Run(s.ctx, chromedp.Evaluate(script, out,
		func(p *cdpruntime.EvaluateParams) *cdpruntime.EvaluateParams {
			return p.WithAwaitPromise(true).WithReturnByValue(true)
		}))
	if err == nil {
		return nil
	}

	var exc *cdpruntime.ExceptionDetails
	if errors.As(err, &exc) {
		return &ScriptExecutionError{Err: err}
	}
	return err
}

// Close releases the remote session. Idempotent: closing twice is a no-op.
func (s *RemoteSession) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.logger != nil {
			s.logger.Debug("remote browser session closed")
		}
	})
	return nil
}

// Opener returns an interfaces.OpenSession bound to endpoint, the form the
// scanner pipeline consumes.
func Opener(endpoint string, logger interfaces.Logger) interfaces.OpenSession {
	return func(ctx context.Context) (interfaces.BrowserSession, error) {
		return Open(ctx, endpoint, logger)
	}
}
