package evaluator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/claimlens/claimlens/internal/models"
)

// Claim queries arrive as shorthand like "46M, knee surgery in Pune,
// 3-month-old insurance policy". These patterns pull the structured fields out.
var (
	compactAgeGender = regexp.MustCompile(`\b(\d{1,3})\s*[-/ ]?\s*([MF])\b`)
	longAge          = regexp.MustCompile(`(?i)\b(\d{1,3})[- ]year[- ]old\b`)
	genderWord       = regexp.MustCompile(`(?i)\b(male|female)\b`)
	locationPattern  = regexp.MustCompile(`\bin\s+([A-Z][A-Za-z]+(?:\s+[A-Z][A-Za-z]+)?)`)
	policyMonths     = regexp.MustCompile(`(?i)\b(\d{1,3})[- ]month(?:s)?(?:[- ]old)?\b[^.]*?\b(?:policy|insurance|cover)`)
	policyYears      = regexp.MustCompile(`(?i)\b(\d{1,2})[- ]year(?:s)?(?:[- ]old)?\b[^.]*?\b(?:policy|insurance|cover)`)
)

// ExtractEntities parses the structured claim fields out of free query text.
// Fields that cannot be found are left at their zero values; the caller
// decides whether the extraction is complete enough to evaluate.
func ExtractEntities(text string) models.Entities {
	var e models.Entities

	if m := compactAgeGender.FindStringSubmatch(text); m != nil {
		e.Age, _ = strconv.Atoi(m[1])
		if m[2] == "M" {
			e.Gender = "male"
		} else {
			e.Gender = "female"
		}
	} else if m := longAge.FindStringSubmatch(text); m != nil {
		e.Age, _ = strconv.Atoi(m[1])
	}
	if e.Gender == "" {
		if m := genderWord.FindStringSubmatch(text); m != nil {
			e.Gender = strings.ToLower(m[1])
		}
	}

	if proc, ok := LookupProcedure(text); ok {
		e.Procedure = proc.Name
	}

	if m := locationPattern.FindStringSubmatch(text); m != nil {
		e.Location = m[1]
	}

	if m := policyMonths.FindStringSubmatch(text); m != nil {
		e.PolicyMonths, _ = strconv.Atoi(m[1])
		e.PolicyDuration = m[1] + " months"
	} else if m := policyYears.FindStringSubmatch(text); m != nil {
		years, _ := strconv.Atoi(m[1])
		e.PolicyMonths = years * 12
		e.PolicyDuration = m[1] + " years"
	}

	return e
}
