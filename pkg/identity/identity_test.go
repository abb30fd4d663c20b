package identity

import (
	"strings"
	"testing"
)

func TestGeneratorPrefix(t *testing.T) {
	g := NewGenerator("sensor")
	id := g.Next()
	if !strings.HasPrefix(id, "sensor-1-") {
		t.Errorf("Next() = %q, want sensor-1- prefix", id)
	}
}

func TestGeneratorDefaultPrefix(t *testing.T) {
	g := NewGenerator("")
	if !strings.HasPrefix(g.Next(), DefaultPrefix+"-") {
		t.Error("empty prefix should fall back to the default")
	}
}

func TestGeneratorDistinct(t *testing.T) {
	g := NewGenerator("c")
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := g.Next()
		if seen[id] {
			t.Fatalf("duplicate identity %q", id)
		}
		seen[id] = true
	}
}

func TestGeneratorCounterAdvances(t *testing.T) {
	g := NewGenerator("c")
	first := g.Next()
	second := g.Next()
	if !strings.HasPrefix(first, "c-1-") || !strings.HasPrefix(second, "c-2-") {
		t.Errorf("counter did not advance: %q, %q", first, second)
	}
}

func TestFixed(t *testing.T) {
	g := Fixed("client-under-test")
	if g.Next() != "client-under-test" || g.Next() != "client-under-test" {
		t.Error("Fixed should always return the same identity")
	}
}
