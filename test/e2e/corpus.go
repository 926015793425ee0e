// Package e2e provides end-to-end tests over a multi-policy corpus and a set
// of claim queries with known outcomes.
package e2e

import (
	"strings"

	"github.com/claimlens/claimlens/internal/models"
)

// PolicyDocument is a policy entry in the corpus. Each document covers a
// disjoint set of procedure categories so claim outcomes are unambiguous.
type PolicyDocument struct {
	ID       string
	Filename string
	Text     string
}

// ClaimTestCase is a claim query and the decision it must produce.
// Amount is nil unless the expected decision is approved. CitedNumber is the
// clause number that must appear among the cited clauses; empty means no
// citation is expected.
type ClaimTestCase struct {
	Query       string
	Decision    models.Decision
	Amount      *int64
	CitedNumber string
	Description string
}

// Corpus holds policy documents and claim test cases for E2E tests.
type Corpus struct {
	Policies []PolicyDocument
	Claims   []ClaimTestCase
}

// BuildCorpus returns the standard E2E corpus: five policy documents covering
// orthopedic, cardiac, ophthalmic, and maternity procedures plus an exclusion
// rider, and claim queries exercising approval, waiting periods, coverage
// limits, exclusions, and uncovered categories.
func BuildCorpus() *Corpus {
	policies := []PolicyDocument{
		{
			ID:       "policy-orthopedic",
			Filename: "medisure-orthopedic",
			Text: `MEDISURE GROUP HEALTH POLICY
SECTION A - HOSPITALISATION BENEFITS

2.1 Planned treatment must be availed at a network hospital for
cashless settlement.

4.3 Orthopedic procedures, including knee replacement, knee surgery,
hip replacement and arthroscopy, are covered after a waiting period of
90 days, up to a limit of Rs 1,00,000.
`,
		},
		{
			ID:       "policy-cardiac",
			Filename: "medisure-cardiac",
			Text: `MEDISURE GROUP HEALTH POLICY
SECTION B - CARDIAC CARE

5.1 Cardiac procedures, including bypass surgery and angioplasty, are
covered after a waiting period of 180 days, up to a limit of
Rs 2,00,000.
`,
		},
		{
			ID:       "policy-ophthalmic",
			Filename: "medisure-ophthalmic",
			Text: `MEDISURE GROUP HEALTH POLICY
SECTION C - DAY CARE

3.2 Ophthalmic day-care procedures such as cataract surgery are
covered up to a limit of Rs 30,000 per eye.
`,
		},
		{
			ID:       "policy-maternity",
			Filename: "medisure-maternity",
			Text: `MEDISURE GROUP HEALTH POLICY
SECTION D - MATERNITY

7.1 Maternity benefits, including normal delivery and caesarean
delivery, are covered after a waiting period of 9 months, up to a
limit of Rs 60,000.
`,
		},
		{
			ID:       "policy-exclusions",
			Filename: "medisure-exclusions",
			Text: `MEDISURE GROUP HEALTH POLICY
SECTION E - EXCLUSIONS

6.2 Cosmetic surgery and aesthetic treatments are not covered under
this policy.

6.4 Dental treatment, including root canal procedures, is not covered
unless necessitated by accidental injury.
`,
		},
	}

	claims := []ClaimTestCase{
		{
			Query:       "46M, knee surgery in Pune, 3-month-old insurance policy",
			Decision:    models.DecisionApproved,
			Amount:      rupees(75000),
			CitedNumber: "4.3",
			Description: "knee surgery past the waiting period is approved at customary cost",
		},
		{
			Query:       "52F, knee replacement in Delhi, 2-month-old policy",
			Decision:    models.DecisionRejected,
			CitedNumber: "4.3",
			Description: "knee replacement within the 90-day waiting period is rejected",
		},
		{
			Query:       "58M, bypass surgery in Chennai, 12-month-old policy",
			Decision:    models.DecisionApproved,
			Amount:      rupees(150000),
			CitedNumber: "5.1",
			Description: "bypass surgery past the cardiac waiting period is approved",
		},
		{
			Query:       "61M, angioplasty in Kolkata, 4-month-old policy",
			Decision:    models.DecisionRejected,
			CitedNumber: "5.1",
			Description: "angioplasty within the 180-day waiting period is rejected",
		},
		{
			Query:       "64F, cataract surgery in Jaipur, 1-month-old policy",
			Decision:    models.DecisionApproved,
			Amount:      rupees(30000),
			CitedNumber: "3.2",
			Description: "cataract surgery is approved capped at the clause limit",
		},
		{
			Query:       "29F, caesarean delivery in Nagpur, 5-month-old policy",
			Decision:    models.DecisionRejected,
			CitedNumber: "7.1",
			Description: "caesarean delivery within the 9-month waiting period is rejected",
		},
		{
			Query:       "31F, caesarean delivery in Indore, 10-month-old policy",
			Decision:    models.DecisionApproved,
			Amount:      rupees(60000),
			CitedNumber: "7.1",
			Description: "caesarean delivery past the waiting period is approved at the limit",
		},
		{
			Query:       "33F, cosmetic surgery in Mumbai, 24-month-old policy",
			Decision:    models.DecisionRejected,
			CitedNumber: "6.2",
			Description: "cosmetic surgery is rejected by the exclusion rider",
		},
		{
			Query:       "41M, root canal in Kochi, 18-month-old policy",
			Decision:    models.DecisionRejected,
			CitedNumber: "6.4",
			Description: "dental treatment is rejected by the exclusion rider",
		},
		{
			Query:       "50M, hernia surgery in Surat, 12-month-old policy",
			Decision:    models.DecisionRejected,
			Description: "a category no clause authorizes is rejected",
		},
	}

	return &Corpus{Policies: policies, Claims: claims}
}

func rupees(n int64) *int64 { return &n }

// ContainsClauseNumber reports whether any of the cited clause IDs ends in the
// given clause number. Clause IDs are "<documentID>_<number>", so the suffix
// check works for both fixed and path-derived document IDs.
func ContainsClauseNumber(clauseIDs []string, number string) bool {
	for _, id := range clauseIDs {
		if strings.HasSuffix(id, "_"+number) {
			return true
		}
	}
	return false
}
