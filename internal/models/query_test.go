package models

import "testing"

func TestQueryStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from QueryStatus
		to   QueryStatus
		want bool
	}{
		{QueryPending, QueryProcessing, true},
		{QueryProcessing, QueryCompleted, true},
		{QueryProcessing, QueryFailed, true},
		{QueryPending, QueryCompleted, false},
		{QueryCompleted, QueryProcessing, false},
		{QueryFailed, QueryProcessing, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestQuery_Validate(t *testing.T) {
	amount := int64(75000)
	tests := []struct {
		name    string
		query   *Query
		wantErr bool
	}{
		{"approved with amount", &Query{ID: "q1", Decision: DecisionApproved, Amount: &amount}, false},
		{"approved without amount", &Query{ID: "q2", Decision: DecisionApproved}, true},
		{"rejected with amount", &Query{ID: "q3", Decision: DecisionRejected, Amount: &amount}, true},
		{"rejected without amount", &Query{ID: "q4", Decision: DecisionRejected}, false},
		{"pending without amount", &Query{ID: "q5", Decision: DecisionPending}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.query.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEntities_Missing(t *testing.T) {
	full := Entities{Age: 46, Gender: "Male", Procedure: "knee surgery", Location: "Pune", PolicyMonths: 3}
	if m := full.Missing(); len(m) != 0 {
		t.Errorf("complete entities reported missing: %v", m)
	}
	partial := Entities{Procedure: "knee surgery"}
	missing := partial.Missing()
	want := map[string]bool{"age": true, "gender": true, "location": true, "policy_duration": true}
	if len(missing) != len(want) {
		t.Fatalf("missing = %v, want %d fields", missing, len(want))
	}
	for _, f := range missing {
		if !want[f] {
			t.Errorf("unexpected missing field %q", f)
		}
	}
}
