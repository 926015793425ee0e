package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/claimlens/claimlens/internal/models"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

// wtTag matches <w:t>text</w:t> including attributed forms like
// <w:t xml:space="preserve">.
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// wpClose matches paragraph ends so paragraphs become line breaks.
var wpClose = regexp.MustCompile(`</w:p>`)

// extractDOCX extracts text from .docx bytes. DOCX is a ZIP containing
// word/document.xml (OOXML); all <w:t> text nodes are collected regardless of
// run attributes, with paragraph boundaries mapped to newlines.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: DOCX is not a zip: %v", models.ErrCorruptDocument, err)
	}
	var docXML []byte
	for _, f := range zr.File {
		if f.Name != docxDocumentXMLPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("%w: open %s: %v", models.ErrCorruptDocument, f.Name, err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			_ = rc.Close()
			return "", fmt.Errorf("%w: read %s: %v", models.ErrCorruptDocument, f.Name, err)
		}
		_ = rc.Close()
		docXML = buf.Bytes()
		break
	}
	if docXML == nil {
		return "", fmt.Errorf("%w: %s not found", models.ErrCorruptDocument, docxDocumentXMLPath)
	}

	body := wpClose.ReplaceAllString(string(docXML), "</w:p>\n")
	var out strings.Builder
	for _, line := range strings.Split(body, "\n") {
		matches := wtTag.FindAllStringSubmatch(line, -1)
		if len(matches) == 0 {
			continue
		}
		for _, m := range matches {
			out.WriteString(unescapeXML(m[1]))
		}
		out.WriteByte('\n')
	}
	text := out.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: DOCX contains no text", models.ErrCorruptDocument)
	}
	return text, nil
}

var xmlEscapes = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

func unescapeXML(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return xmlEscapes.Replace(s)
}
