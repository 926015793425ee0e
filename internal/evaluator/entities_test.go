package evaluator

import (
	"testing"

	"github.com/claimlens/claimlens/internal/models"
)

func TestExtractEntities(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.Entities
	}{
		{
			name: "compact shorthand",
			text: "46M, knee surgery in Pune, 3-month-old insurance policy",
			want: models.Entities{
				Age: 46, Gender: "male", Procedure: "knee surgery",
				Location: "Pune", PolicyMonths: 3, PolicyDuration: "3 months",
			},
		},
		{
			name: "spelled out",
			text: "62-year-old female, cataract surgery in Chennai, 2-year-old policy",
			want: models.Entities{
				Age: 62, Gender: "female", Procedure: "cataract surgery",
				Location: "Chennai", PolicyMonths: 24, PolicyDuration: "2 years",
			},
		},
		{
			name: "female shorthand",
			text: "30F, hip replacement in Navi Mumbai, 6-month policy",
			want: models.Entities{
				Age: 30, Gender: "female", Procedure: "hip replacement",
				Location: "Navi Mumbai", PolicyMonths: 6, PolicyDuration: "6 months",
			},
		},
		{
			name: "nothing extractable",
			text: "please help",
			want: models.Entities{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractEntities(tt.text)
			if got != tt.want {
				t.Errorf("ExtractEntities(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestEntitiesMissing(t *testing.T) {
	complete := ExtractEntities("46M, knee surgery in Pune, 3-month-old insurance policy")
	if missing := complete.Missing(); len(missing) != 0 {
		t.Errorf("Missing() = %v, want none", missing)
	}
	partial := ExtractEntities("knee surgery in Pune")
	missing := partial.Missing()
	if len(missing) == 0 {
		t.Error("expected missing fields for partial query")
	}
}

func TestLookupProcedure(t *testing.T) {
	p, ok := LookupProcedure("needs knee replacement surgery soon")
	if !ok {
		t.Fatal("procedure not found")
	}
	if p.Category != "orthopedic" || p.Cost != 75000 {
		t.Errorf("got %+v, want orthopedic at 75000", p)
	}
	if _, ok := LookupProcedure("routine checkup"); ok {
		t.Error("unknown procedure should not match")
	}
}
