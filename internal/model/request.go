package model

// Cookie is a name/value pair read from the remote browser.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Header is a single request header. Headers are kept as a slice rather
// than a map so the order they are written into the in-page fetch call
// matches the order they were declared in.
type Header struct {
	Name  string
	Value string
}

// FetchRequest describes one HTTP request to be replayed from inside the
// browser page. Transient: built per call, never persisted.
type FetchRequest struct {
	URL     string
	Method  string
	Headers []Header

	// Body is JSON-serialized into the fetch body when non-nil.
	Body any
}
