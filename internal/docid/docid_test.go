package docid

import (
	"strings"
	"testing"
)

func TestFromPath(t *testing.T) {
	id1 := FromPath("/intake/claim.pdf")
	id2 := FromPath("/intake/claim.pdf")
	if id1 != id2 {
		t.Errorf("same path should give same ID: %q vs %q", id1, id2)
	}
	if !strings.HasPrefix(id1, prefix) {
		t.Errorf("ID should have prefix %q: got %q", prefix, id1)
	}
	if FromPath("/intake/other.pdf") == id1 {
		t.Error("different paths should give different IDs")
	}
}

func TestFromPathNormalized(t *testing.T) {
	id1 := FromPath("/intake/claim.pdf")
	id2 := FromPath("/intake/./claim.pdf")
	id3 := FromPath("/intake//claim.pdf")
	if id1 != id2 || id1 != id3 {
		t.Errorf("equivalent paths should give the same ID: %q %q %q", id1, id2, id3)
	}
}
