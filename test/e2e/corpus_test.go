package e2e

import (
	"testing"

	"github.com/claimlens/claimlens/internal/clause"
	"github.com/claimlens/claimlens/internal/evaluator"
	"github.com/claimlens/claimlens/internal/models"
)

func TestBuildCorpusClaimQueriesAreComplete(t *testing.T) {
	c := BuildCorpus()
	if len(c.Claims) == 0 {
		t.Fatal("corpus has no claim test cases")
	}
	for _, tc := range c.Claims {
		entities := evaluator.ExtractEntities(tc.Query)
		if missing := entities.Missing(); len(missing) > 0 {
			t.Errorf("claim %q: entities missing %v", tc.Query, missing)
		}
	}
}

func TestBuildCorpusAmountsMatchDecisions(t *testing.T) {
	c := BuildCorpus()
	for _, tc := range c.Claims {
		approved := tc.Decision == models.DecisionApproved
		if approved && tc.Amount == nil {
			t.Errorf("claim %q: approved without an amount", tc.Query)
		}
		if !approved && tc.Amount != nil {
			t.Errorf("claim %q: amount set for %s decision", tc.Query, tc.Decision)
		}
	}
}

func TestBuildCorpusCitedClausesExist(t *testing.T) {
	c := BuildCorpus()
	numbers := make(map[string]bool)
	for _, p := range c.Policies {
		clauses := clause.Extract(p.ID, p.Text)
		if len(clauses) == 0 {
			t.Errorf("policy %s yields no clauses", p.ID)
		}
		for _, cl := range clauses {
			numbers[cl.Number] = true
		}
	}
	for _, tc := range c.Claims {
		if tc.CitedNumber != "" && !numbers[tc.CitedNumber] {
			t.Errorf("claim %q cites clause %s, which no policy contains", tc.Query, tc.CitedNumber)
		}
	}
}

func TestContainsClauseNumber(t *testing.T) {
	ids := []string{"policy-orthopedic_4.3", "policy-orthopedic_2.1"}
	if !ContainsClauseNumber(ids, "4.3") {
		t.Error("expected 4.3 to be found")
	}
	if ContainsClauseNumber(ids, "6.2") {
		t.Error("did not expect 6.2 to be found")
	}
	if ContainsClauseNumber(ids, "3") {
		t.Error("suffix match must cover the whole clause number")
	}
}
