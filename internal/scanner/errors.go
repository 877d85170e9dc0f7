package scanner

import "fmt"

// NotFoundError reports a lookup that came back empty: an unregistered
// scanner name, or an identifier the pipeline could not scrape.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.What)
}

// ScrapeError is the consolidated failure the pipeline raises after
// cleanup. It wraps whichever component error ended the scan.
type ScrapeError struct {
	Step  string
	Cause error
}

func (e *ScrapeError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("scraper failed during %s: %v", e.Step, e.Cause)
	}
	return fmt.Sprintf("scraper failed: %v", e.Cause)
}

func (e *ScrapeError) Unwrap() error { return e.Cause }
