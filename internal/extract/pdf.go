package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/claimlens/claimlens/internal/models"
)

// extractPDF extracts text from PDF bytes. A structurally valid PDF whose pages
// yield no text is treated as a scan and flagged NeedsOCR rather than failing.
func extractPDF(content []byte) (*Result, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: open PDF: %v", models.ErrCorruptDocument, err)
	}
	var buf bytes.Buffer
	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("%w: PDF has no pages", models.ErrCorruptDocument)
	}
	for i := 0; i < numPages; i++ {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A page that cannot be decoded is typically image-only content.
			continue
		}
		buf.WriteString(text)
		if i < numPages-1 {
			buf.WriteByte('\n')
		}
	}
	text := normalize(buf.String())
	if text == "" {
		// Valid container, no text layer: scanned document needing OCR.
		return &Result{NeedsOCR: true}, nil
	}
	return &Result{Text: text}, nil
}
