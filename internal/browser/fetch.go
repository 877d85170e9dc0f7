package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"upscan/internal/model"
)

// Fetch replays req from inside the current page via fetch(). The call
// always sets mode=cors and credentials=include so the browser attaches
// its own cookies, and the response is JSON-decoded or returned as raw
// text depending on its content type. Issuing the request in-page rather
// than from a separate HTTP client keeps the site-observed fingerprint
// (TLS, cookies, device) identical to the logged-in browser's.
func (s *RemoteSession) Fetch(ctx context.Context, req *model.FetchRequest) (any, error) {
	script, err := fetchScript(req)
	if err != nil {
		return nil, err
	}

	var out any
	if err := s.ExecuteScript(ctx, script, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// fetchScript renders req into a single self-contained fetch expression.
// Headers are written in declaration order; the body, when present, is
// JSON-encoded into a string literal.
func fetchScript(req *model.FetchRequest) (string, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = "GET"
	}
	if method != "GET" && method != "POST" {
		return "", fmt.Errorf("unsupported fetch method %q", req.Method)
	}

	var headers strings.Builder
	headers.WriteByte('{')
	for i, h := range req.Headers {
		if i > 0 {
			headers.WriteByte(',')
		}
		name, err := json.Marshal(h.Name)
		if err != nil {
			return "", err
		}
		value, err := json.Marshal(h.Value)
		if err != nil {
			return "", err
		}
		headers.Write(name)
		headers.WriteByte(':')
		headers.Write(value)
	}
	headers.WriteByte('}')

	body := "null"
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return "", fmt.Errorf("encoding fetch body: %w", err)
		}
		// Re-marshal so the JSON text becomes a JS string literal.
		literal, err := json.Marshal(string(encoded))
		if err != nil {
			return "", err
		}
		body = string(literal)
	}

	url, err := json.Marshal(req.URL)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`fetch(%s, {
  "headers": %s,
  "method": %q,
  "body": %s,
  "mode": "cors",
  "credentials": "include"
}).then((response) => {
  const type = response.headers.get("content-type");
  if (type && type.includes("application/json")) {
    return response.json();
  }
  return response.text();
})`, url, headers.String(), method, body), nil
}
