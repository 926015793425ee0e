package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/claimlens/claimlens/internal/models"
)

func TestKindFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     models.MimeKind
		wantErr  bool
	}{
		{"Policy_Terms_2024.pdf", models.MimePDF, false},
		{"claim.DOCX", models.MimeDOCX, false},
		{"old_policy.doc", models.MimeDOC, false},
		{"notes.txt", models.MimeTXT, false},
		{"claims.xlsx", models.MimeXLSX, false},
		{"photo.png", "", true},
		{"archive.zip", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := KindFromFilename(tt.filename)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, models.ErrUnsupportedFormat) {
					t.Errorf("error should wrap ErrUnsupportedFormat: %v", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("kind = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestExtract_plainText(t *testing.T) {
	e := NewExtractor()
	res, err := e.Extract([]byte("Clause 4.3 covers knee surgery.\r\nLimit applies.  \n"), models.MimeTXT)
	if err != nil {
		t.Fatal(err)
	}
	if res.NeedsOCR {
		t.Error("plain text should not need OCR")
	}
	want := "Clause 4.3 covers knee surgery.\nLimit applies."
	if res.Text != want {
		t.Errorf("text = %q, want %q", res.Text, want)
	}
}

func TestExtract_invalidUTF8Replaced(t *testing.T) {
	e := NewExtractor()
	res, err := e.Extract([]byte{'o', 'k', 0xff, 0xfe, '!'}, models.MimeTXT)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Text, "�") {
		t.Errorf("invalid bytes should be replaced: %q", res.Text)
	}
}

func TestExtract_unsupportedKind(t *testing.T) {
	e := NewExtractor()
	_, err := e.Extract([]byte("x"), models.MimeKind("png"))
	if !errors.Is(err, models.ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestExtract_corruptPDF(t *testing.T) {
	e := NewExtractor()
	_, err := e.Extract([]byte("not a pdf at all"), models.MimePDF)
	if !errors.Is(err, models.ErrCorruptDocument) {
		t.Errorf("err = %v, want ErrCorruptDocument", err)
	}
}

// buildDOCX assembles a minimal OOXML package with the given document.xml body.
func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtract_docx(t *testing.T) {
	e := NewExtractor()
	xml := `<w:document><w:body>` +
		`<w:p w:rsidR="00A"><w:r><w:t>Orthopedic surgeries are covered</w:t></w:r>` +
		`<w:r><w:t xml:space="preserve"> after 90 days.</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Limit: &#8377;1,00,000 &amp; pre-auth required.</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	res, err := e.Extract(buildDOCX(t, xml), models.MimeDOCX)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Text, "Orthopedic surgeries are covered after 90 days.") {
		t.Errorf("attributed runs lost: %q", res.Text)
	}
	if !strings.Contains(res.Text, "& pre-auth required") {
		t.Errorf("entities not unescaped: %q", res.Text)
	}
	// Paragraphs become separate lines.
	if len(strings.Split(res.Text, "\n")) != 2 {
		t.Errorf("expected 2 lines, got %q", res.Text)
	}
}

func TestExtract_docxEmpty(t *testing.T) {
	e := NewExtractor()
	_, err := e.Extract(buildDOCX(t, `<w:document><w:body></w:body></w:document>`), models.MimeDOCX)
	if !errors.Is(err, models.ErrCorruptDocument) {
		t.Errorf("err = %v, want ErrCorruptDocument", err)
	}
}

func TestExtract_docxNotAZip(t *testing.T) {
	e := NewExtractor()
	_, err := e.Extract([]byte("plain bytes"), models.MimeDOCX)
	if !errors.Is(err, models.ErrCorruptDocument) {
		t.Errorf("err = %v, want ErrCorruptDocument", err)
	}
}

func TestExtract_docNotOLE(t *testing.T) {
	e := NewExtractor()
	_, err := e.Extract([]byte("plain bytes, not compound file"), models.MimeDOC)
	if !errors.Is(err, models.ErrCorruptDocument) {
		t.Errorf("err = %v, want ErrCorruptDocument", err)
	}
}

func TestScrapeASCIIRuns(t *testing.T) {
	stream := append([]byte{0x01, 0x02}, []byte("Coverage is subject to policy terms.")...)
	stream = append(stream, 0x00, 0x03)
	stream = append(stream, []byte("short")...) // below minRun, dropped
	got := scrapeASCIIRuns(stream)
	if !strings.Contains(got, "Coverage is subject to policy terms.") {
		t.Errorf("long run lost: %q", got)
	}
	if strings.Contains(got, "short") {
		t.Errorf("short run should be dropped: %q", got)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a\r\nb", "a\nb"},
		{"a\rb", "a\nb"},
		{"line  \t\nnext", "line\nnext"},
		{"  padded  ", "padded"},
	}
	for _, tt := range tests {
		if got := normalize(tt.in); got != tt.want {
			t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
