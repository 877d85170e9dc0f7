package upwork

import (
	"upscan/internal/interfaces"
	"upscan/internal/scanner"
	"upscan/internal/settings"
)

// Creator builds Upwork scrapers bound to a browser session source. It is
// registered in the scanner registry under the name "upwork".
type Creator struct {
	open   interfaces.OpenSession
	logger interfaces.Logger
}

func NewCreator(open interfaces.OpenSession, logger interfaces.Logger) *Creator {
	return &Creator{open: open, logger: logger}
}

func (c *Creator) Create(s settings.ScannerSettings) (scanner.Scanner, error) {
	return NewScraper(s, c.open, c.logger), nil
}
