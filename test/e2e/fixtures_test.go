package e2e

import (
	"strings"
	"testing"

	"github.com/claimlens/claimlens/internal/extract"
)

func TestBuildFileExtractsClauseHeadings(t *testing.T) {
	e := extract.NewExtractor()
	text := "POLICY WORDING\n\n4.3 Knee surgery is covered up to a limit of Rs 1,00,000.\n"
	for _, ext := range GeneratedExtensions {
		t.Run(ext, func(t *testing.T) {
			content, err := BuildFile(ext, text)
			if err != nil {
				t.Fatalf("BuildFile: %v", err)
			}
			kind, err := extract.KindFromFilename("policy" + ext)
			if err != nil {
				t.Fatalf("KindFromFilename: %v", err)
			}
			result, err := e.Extract(content, kind)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			found := false
			for _, line := range strings.Split(result.Text, "\n") {
				if strings.HasPrefix(strings.TrimSpace(line), "4.3 ") {
					found = true
				}
			}
			if !found {
				t.Errorf("extracted text lost the clause heading:\n%s", result.Text)
			}
		})
	}
}
