package convert

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// preflightPDF parses the document header and page tree so that corrupt
// uploads fail here, with a clear error, instead of surfacing later as an
// opaque index-service rejection.
func preflightPDF(path string) error {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return fmt.Errorf("unreadable pdf: %w", err)
	}
	defer f.Close()

	if reader.NumPage() < 1 {
		return fmt.Errorf("pdf has no pages")
	}
	return nil
}
