// Package upwork implements the reference scraping strategy: a
// credential login against Upwork through a remote browser, followed by
// an authenticated profile fetch, normalized into model.Profile.
package upwork

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"upscan/internal/browser"
	"upscan/internal/interfaces"
	"upscan/internal/model"
	"upscan/internal/scanner"
	"upscan/internal/settings"

	"github.com/PuerkitoBio/goquery"
)

const (
	baseURL           = "https://www.upwork.com"
	bestMatchesURL    = "https://www.upwork.com/nx/find-work/best-matches"
	profileDetailsURL = "https://www.upwork.com/freelancers/api/v1/freelancer/profile/%s/details?excludeAssignments=True"
)

// SessionTokens holds the anti-fraud tokens harvested from browser
// cookies. Lookups on missing tokens yield the empty string; the login
// call tolerates absent tokens rather than failing fast.
type SessionTokens map[string]string

// Get returns the named token or the empty string.
func (t SessionTokens) Get(name string) string { return t[name] }

// Scraper runs the full Upwork pipeline over one browser session.
type Scraper struct {
	settings settings.ScannerSettings
	open     interfaces.OpenSession
	logger   interfaces.Logger
}

func NewScraper(s settings.ScannerSettings, open interfaces.OpenSession, logger interfaces.Logger) *Scraper {
	return &Scraper{settings: s, open: open, logger: logger}
}

// Run executes the scan end to end: open session, navigate, harvest
// tokens, login, resolve the profile ciphertext, fetch and normalize the
// profile. The browser session is closed on every exit path, exactly
// once, and any failure is consolidated into a *scanner.ScrapeError.
func (s *Scraper) Run(ctx context.Context) (*model.Profile, error) {
	sess, err := s.open(ctx)
	if err != nil {
		return nil, &scanner.ScrapeError{Step: "session open", Cause: err}
	}
	defer sess.Close()

	profile, err := s.scrape(ctx, sess)
	if err != nil {
		var scriptErr *browser.ScriptExecutionError
		if errors.As(err, &scriptErr) {
			return nil, &scanner.ScrapeError{Step: "script execution", Cause: err}
		}
		return nil, &scanner.ScrapeError{Cause: err}
	}
	return profile, nil
}

func (s *Scraper) scrape(ctx context.Context, sess interfaces.BrowserSession) (*model.Profile, error) {
	if err := sess.Navigate(ctx, baseURL); err != nil {
		return nil, fmt.Errorf("navigating to %s: %w", baseURL, err)
	}

	cookies, err := sess.Cookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading session cookies: %w", err)
	}
	tokens := tokensFromCookies(cookies)

	if err := s.login(ctx, sess, tokens); err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}

	ciphertext, err := s.resolveCiphertext(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("resolving profile ciphertext: %w", err)
	}
	if ciphertext == "" {
		return nil, &scanner.NotFoundError{What: "profile ciphertext"}
	}

	raw, err := s.profileDetails(ctx, sess, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("fetching profile details: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("profile scraped", interfaces.Field{Key: "ciphertext", Value: ciphertext})
	}
	return parseProfile(raw), nil
}

// tokensFromCookies classifies cookies into named tokens. The "xsrf" and
// "gql" checks are case-insensitive substring matches on the cookie name;
// "forterToken" and "iovation" are case-sensitive. When several cookies
// match the same rule the last one in list order wins.
func tokensFromCookies(cookies []model.Cookie) SessionTokens {
	tokens := SessionTokens{}
	for _, c := range cookies {
		lower := strings.ToLower(c.Name)
		switch {
		case strings.Contains(lower, "xsrf"):
			tokens["csrf_token"] = c.Value
		case strings.Contains(lower, "gql"):
			tokens["visitor_gql_token"] = c.Value
		case strings.Contains(c.Name, "forterToken"):
			tokens["forterToken"] = c.Value
		case strings.Contains(c.Name, "iovation"):
			tokens["iovation"] = c.Value
		}
	}
	return tokens
}

// login posts the credentials through the in-page fetch. The fingerprint
// headers are replayed verbatim; only the CSRF header varies per run. The
// response is deliberately not inspected: a failed login only becomes
// visible downstream, when ciphertext resolution comes back empty.
func (s *Scraper) login(ctx context.Context, sess interfaces.BrowserSession, tokens SessionTokens) error {
	body := loginPayload{
		Login: loginBody{
			Mode:                     "password",
			Iovation:                 tokens.Get("iovation"),
			Username:                 s.settings.Get("username"),
			ElapsedTime:              28952,
			ForterToken:              tokens.Get("forterToken"),
			DeviceType:               "desktop",
			Password:                 s.settings.Get("password"),
			SecurityCheckCertificate: tokens.Get("securityCheckCertificate"),
			AuthToken:                tokens.Get("authToken"),
		},
	}

	req := &model.FetchRequest{
		URL:    s.settings.Get("url"),
		Method: "POST",
		Headers: []model.Header{
			{Name: "accept", Value: "*/*"},
			{Name: "accept-language", Value: "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7"},
			{Name: "content-type", Value: "application/json"},
			{Name: "priority", Value: "u=1, i"},
			{Name: "sec-ch-ua-mobile", Value: "?0"},
			{Name: "sec-ch-ua-platform", Value: "macOS"},
			{Name: "sec-ch-viewport-width", Value: "1120"},
			{Name: "sec-fetch-dest", Value: "empty"},
			{Name: "sec-fetch-mode", Value: "cors"},
			{Name: "sec-fetch-site", Value: "same-origin"},
			{Name: "x-odesk-csrf-token", Value: tokens.Get("csrf_token")},
			{Name: "x-requested-with", Value: "XMLHttpRequest"},
		},
		Body: body,
	}

	_, err := sess.Fetch(ctx, req)
	return err
}

type loginPayload struct {
	Login loginBody `json:"login"`
}

type loginBody struct {
	Mode                     string `json:"mode"`
	Iovation                 string `json:"iovation"`
	Username                 string `json:"username"`
	ElapsedTime              int    `json:"elapsedTime"`
	ForterToken              string `json:"forterToken"`
	DeviceType               string `json:"deviceType"`
	Password                 string `json:"password"`
	SecurityCheckCertificate string `json:"securityCheckCertificate"`
	AuthToken                string `json:"authToken"`
}

// resolveCiphertext fetches the best-matches page with a document
// navigation header profile and scrapes the profile link out of it. An
// empty return means "not found"; the caller decides that is fatal.
func (s *Scraper) resolveCiphertext(ctx context.Context, sess interfaces.BrowserSession) (string, error) {
	req := &model.FetchRequest{
		URL:    bestMatchesURL,
		Method: "GET",
		Headers: []model.Header{
			{Name: "accept", Value: "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7"},
			{Name: "accept-language", Value: "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7"},
			{Name: "cache-control", Value: "max-age=0"},
			{Name: "priority", Value: "u=0, i"},
			{Name: "sec-ch-ua-mobile", Value: "?0"},
			{Name: "sec-ch-ua-platform", Value: "macOS"},
			{Name: "sec-fetch-dest", Value: "document"},
			{Name: "sec-fetch-mode", Value: "navigate"},
			{Name: "sec-fetch-site", Value: "same-origin"},
			{Name: "sec-fetch-user", Value: "?1"},
			{Name: "upgrade-insecure-requests", Value: "1"},
		},
	}

	res, err := sess.Fetch(ctx, req)
	if err != nil {
		return "", err
	}
	page, _ := res.(string)
	return extractCiphertext(page), nil
}

// extractCiphertext finds the first hyperlink whose visible text is
// exactly "Profile" and returns the final path segment of its href.
func extractCiphertext(page string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return ""
	}

	for _, n := range doc.Find("a[href]").Nodes {
		if nodeText(n) != "Profile" {
			continue
		}
		for _, attr := range n.Attr {
			if attr.Key == "href" {
				parts := strings.Split(attr.Val, "/")
				return parts[len(parts)-1]
			}
		}
	}
	return ""
}

// nodeText concatenates the text nodes under n.
func nodeText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		} else {
			b.WriteString(nodeText(c))
		}
	}
	return b.String()
}

// profileDetails fetches the raw profile JSON for the given ciphertext.
// No retry at this layer.
func (s *Scraper) profileDetails(ctx context.Context, sess interfaces.BrowserSession, ciphertext string) (any, error) {
	req := &model.FetchRequest{
		URL:    fmt.Sprintf(profileDetailsURL, ciphertext),
		Method: "GET",
		Headers: []model.Header{
			{Name: "accept", Value: "application/json, text/plain, */*"},
			{Name: "accept-language", Value: "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7"},
			{Name: "priority", Value: "u=1, i"},
			{Name: "sec-ch-ua-mobile", Value: "?0"},
			{Name: "sec-ch-ua-platform", Value: "macOS"},
			{Name: "sec-ch-viewport-width", Value: "1120"},
			{Name: "sec-fetch-dest", Value: "empty"},
			{Name: "sec-fetch-mode", Value: "cors"},
			{Name: "sec-fetch-site", Value: "same-origin"},
			{Name: "x-odesk-user-agent", Value: "oDesk LM"},
			{Name: "x-requested-with", Value: "XMLHttpRequest"},
			{Name: "x-upwork-accept-language", Value: "en-US"},
		},
	}
	return sess.Fetch(ctx, req)
}
