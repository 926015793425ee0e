package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"

	"github.com/claimlens/claimlens/internal/models"
)

// wordStreamName is the main text stream inside a legacy .doc compound file.
const wordStreamName = "WordDocument"

// extractDOC extracts text from legacy .doc bytes. The format is an OLE
// compound file; the WordDocument stream holds the piece table and text runs.
// Rather than implementing the full FIB piece table, printable runs (CP-1252
// and UTF-16LE) are scraped from the stream, which recovers body text from
// documents Word itself wrote contiguously.
func extractDOC(content []byte) (string, error) {
	r, err := mscfb.New(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("%w: DOC is not an OLE compound file: %v", models.ErrCorruptDocument, err)
	}
	var stream []byte
	for entry, err := r.Next(); err == nil; entry, err = r.Next() {
		if entry.Name != wordStreamName {
			continue
		}
		buf := make([]byte, entry.Size)
		n, readErr := io.ReadFull(entry, buf)
		if readErr != nil && readErr != io.ErrUnexpectedEOF {
			return "", fmt.Errorf("%w: read %s: %v", models.ErrCorruptDocument, wordStreamName, readErr)
		}
		stream = buf[:n]
		break
	}
	if stream == nil {
		return "", fmt.Errorf("%w: %s stream not found", models.ErrCorruptDocument, wordStreamName)
	}

	text := scrapeTextRuns(stream)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: DOC contains no text", models.ErrCorruptDocument)
	}
	return text, nil
}

// minRun is the minimum run length (in characters) kept by the scraper;
// shorter runs are almost always structure bytes, not prose.
const minRun = 8

// scrapeTextRuns pulls printable character runs out of a WordDocument stream,
// trying UTF-16LE first (modern Word) and falling back to single-byte text.
func scrapeTextRuns(stream []byte) string {
	if text := scrapeUTF16Runs(stream); text != "" {
		return text
	}
	return scrapeASCIIRuns(stream)
}

func scrapeUTF16Runs(stream []byte) string {
	var out strings.Builder
	var run []uint16
	flush := func() {
		if len(run) >= minRun {
			out.WriteString(string(utf16.Decode(run)))
			out.WriteByte('\n')
		}
		run = run[:0]
	}
	for i := 0; i+1 < len(stream); i += 2 {
		u := uint16(stream[i]) | uint16(stream[i+1])<<8
		if printableUTF16(u) {
			run = append(run, u)
		} else {
			flush()
		}
	}
	flush()
	return strings.TrimSpace(out.String())
}

func scrapeASCIIRuns(stream []byte) string {
	var out strings.Builder
	var run []byte
	flush := func() {
		if len(run) >= minRun {
			out.Write(run)
			out.WriteByte('\n')
		}
		run = run[:0]
	}
	for _, b := range stream {
		if b == '\r' {
			run = append(run, '\n')
			continue
		}
		if b >= 0x20 && b < 0x7f || b == '\t' {
			run = append(run, b)
		} else {
			flush()
		}
	}
	flush()
	return strings.TrimSpace(out.String())
}

func printableUTF16(u uint16) bool {
	if u == '\r' || u == '\t' {
		return true
	}
	if u < 0x20 || u == 0xfffd {
		return false
	}
	return unicode.IsPrint(rune(u))
}
