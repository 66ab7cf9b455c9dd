package idgen

import (
	"strings"
	"testing"
)

func TestNewIsNamespaced(t *testing.T) {
	id := New(Session)
	if !strings.HasPrefix(id, "ssn_") {
		t.Errorf("expected ssn_ prefix, got %s", id)
	}
	if len(id) != len("ssn_")+16 {
		t.Errorf("unexpected id length: %s", id)
	}
}

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New(Agent)
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}
