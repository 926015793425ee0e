package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/claimlens/claimlens/internal/models"
)

// extractExcel extracts cell text from .xlsx claim sheets, one row per line
// with tab-separated cells.
func extractExcel(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("%w: open xlsx: %v", models.ErrCorruptDocument, err)
	}
	defer f.Close()

	var buf strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("%w: sheet %q: %v", models.ErrCorruptDocument, sheet, err)
		}
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
	}
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", fmt.Errorf("%w: xlsx contains no cell text", models.ErrCorruptDocument)
	}
	return text, nil
}
