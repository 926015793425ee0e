// Package extract provides text extraction from uploaded claim documents.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/claimlens/claimlens/internal/models"
)

// Result is the outcome of text extraction. NeedsOCR is true when the document
// parsed successfully but carries no machine-extractable text (image-only PDF
// or scan); such documents continue through the pipeline flagged for OCR.
type Result struct {
	Text     string
	NeedsOCR bool
}

// Extractor extracts normalized plain text from document bytes.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// KindFromFilename maps a filename extension to a MimeKind.
// Returns models.ErrUnsupportedFormat for unrecognized extensions.
func KindFromFilename(filename string) (models.MimeKind, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return models.MimePDF, nil
	case ".doc":
		return models.MimeDOC, nil
	case ".docx":
		return models.MimeDOCX, nil
	case ".txt", ".md", "":
		return models.MimeTXT, nil
	case ".xlsx":
		return models.MimeXLSX, nil
	default:
		return "", fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// Extract extracts normalized text from content of the given kind.
// Fails with models.ErrUnsupportedFormat for unknown kinds and
// models.ErrCorruptDocument when the content cannot be parsed at all.
func (e *Extractor) Extract(content []byte, kind models.MimeKind) (*Result, error) {
	switch kind {
	case models.MimePDF:
		return extractPDF(content)
	case models.MimeDOCX:
		text, err := extractDOCX(content)
		if err != nil {
			return nil, err
		}
		return &Result{Text: normalize(text)}, nil
	case models.MimeDOC:
		text, err := extractDOC(content)
		if err != nil {
			return nil, err
		}
		return &Result{Text: normalize(text)}, nil
	case models.MimeXLSX:
		text, err := extractExcel(content)
		if err != nil {
			return nil, err
		}
		return &Result{Text: normalize(text)}, nil
	case models.MimeTXT:
		return &Result{Text: normalize(extractPlain(content))}, nil
	default:
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, kind)
	}
}

// normalize canonicalizes line endings and trims trailing whitespace per line.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
