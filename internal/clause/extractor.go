// Package clause extracts numbered policy clauses and their coverage
// conditions from document text.
package clause

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/claimlens/claimlens/internal/models"
)

// clauseHeading matches a clause number at the start of a line, e.g. "4.3" or
// "2.1.5", optionally followed by a title on the same line.
var clauseHeading = regexp.MustCompile(`(?m)^\s*(\d+(?:\.\d+)+)[.)]?\s+`)

var (
	waitingPattern = regexp.MustCompile(`(?i)(?:waiting period of|after|for the first)\s+(\d+)\s*(day|month|year)s?`)
	// Indian grouping: 1,00,000. Western grouping and plain digits also accepted.
	limitPattern     = regexp.MustCompile(`(?i)(?:₹|rs\.?|inr)\s*([\d,]+)`)
	limitCuePattern  = regexp.MustCompile(`(?i)limit|up to|maximum|capped|not exceed`)
	networkPattern   = regexp.MustCompile(`(?i)network hospital`)
	exclusionPattern = regexp.MustCompile(`(?i)\bnot covered\b|\bexcluded\b|\bexclusion\b|\bshall not be payable\b`)
)

// categoryKeywords maps procedure categories to the terms that signal them in
// clause text. Keyed lowercase.
var categoryKeywords = map[string][]string{
	"orthopedic": {"orthopedic", "orthopaedic", "knee", "hip", "joint replacement", "fracture", "arthroscopy"},
	"cardiac":    {"cardiac", "heart", "bypass", "angioplasty", "cabg"},
	"maternity":  {"maternity", "childbirth", "caesarean", "delivery", "pregnancy"},
	"dental":     {"dental", "tooth", "teeth"},
	"ophthalmic": {"ophthalmic", "cataract", "eye surgery", "lasik"},
	"cosmetic":   {"cosmetic", "plastic surgery", "aesthetic"},
	"general":    {"general surgery", "appendectomy", "hernia"},
}

// Extract splits text into numbered clauses and parses each clause's coverage
// conditions. Text before the first numbered heading is skipped. Clause IDs
// are "<documentID>_<number>".
func Extract(documentID, text string) []*models.Clause {
	matches := clauseHeading.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}
	now := time.Now()
	clauses := make([]*models.Clause, 0, len(matches))
	for i, m := range matches {
		start := m[0]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		number := text[m[2]:m[3]]
		body := strings.TrimSpace(text[start:end])
		if body == "" {
			continue
		}
		clauses = append(clauses, &models.Clause{
			ID:         fmt.Sprintf("%s_%s", documentID, number),
			DocumentID: documentID,
			Number:     number,
			Text:       body,
			Conditions: ParseConditions(body),
			CreatedAt:  now,
		})
	}
	return clauses
}

// ParseConditions extracts structured coverage conditions from clause text.
func ParseConditions(text string) models.ClauseConditions {
	var cond models.ClauseConditions

	if m := waitingPattern.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			switch strings.ToLower(m[2]) {
			case "day":
				cond.WaitingDays = n
			case "month":
				cond.WaitingDays = n * 30
			case "year":
				cond.WaitingDays = n * 365
			}
		}
	}

	if limitCuePattern.MatchString(text) {
		if m := limitPattern.FindStringSubmatch(text); m != nil {
			if amount, err := ParseRupees(m[1]); err == nil {
				cond.CoverageLimit = amount
			}
		}
	}

	lower := strings.ToLower(text)
	for category, keywords := range categoryKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				cond.Categories = append(cond.Categories, category)
				break
			}
		}
	}
	sort.Strings(cond.Categories)

	cond.NetworkOnly = networkPattern.MatchString(text)
	cond.Exclusion = exclusionPattern.MatchString(text)
	return cond
}

// ParseRupees parses a rupee amount with optional Indian ("1,00,000") or
// Western ("100,000") digit grouping.
func ParseRupees(s string) (int64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" {
		return 0, fmt.Errorf("empty amount")
	}
	amount, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return amount, nil
}
