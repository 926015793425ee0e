package evaluator

import "strings"

// Procedure is a recognized medical procedure with its coverage category and
// customary cost in rupees. The customary cost bounds approved amounts when a
// clause states no limit.
type Procedure struct {
	Name     string
	Category string
	Cost     int64
}

// procedures is ordered by phrase length so the longest phrase in the query
// wins (e.g. "knee replacement surgery" before "knee surgery").
var procedures = []Procedure{
	{"knee replacement surgery", "orthopedic", 75000},
	{"knee replacement", "orthopedic", 75000},
	{"knee surgery", "orthopedic", 75000},
	{"hip replacement", "orthopedic", 90000},
	{"arthroscopy", "orthopedic", 60000},
	{"fracture treatment", "orthopedic", 35000},
	{"bypass surgery", "cardiac", 150000},
	{"heart surgery", "cardiac", 150000},
	{"angioplasty", "cardiac", 120000},
	{"cataract surgery", "ophthalmic", 40000},
	{"lasik", "ophthalmic", 45000},
	{"caesarean delivery", "maternity", 60000},
	{"normal delivery", "maternity", 40000},
	{"root canal", "dental", 15000},
	{"dental treatment", "dental", 25000},
	{"hernia surgery", "general", 50000},
	{"appendectomy", "general", 45000},
	{"plastic surgery", "cosmetic", 80000},
	{"cosmetic surgery", "cosmetic", 80000},
}

// LookupProcedure finds the first known procedure phrase in text.
func LookupProcedure(text string) (Procedure, bool) {
	lower := strings.ToLower(text)
	for _, p := range procedures {
		if strings.Contains(lower, p.Name) {
			return p, true
		}
	}
	return Procedure{}, false
}
