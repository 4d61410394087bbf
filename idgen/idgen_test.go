package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7_Version(t *testing.T) {
	id := UUIDv7()()
	if len(id) != 36 {
		t.Fatalf("UUIDv7: got length %d, want 36", len(id))
	}
	if id[14] != '7' {
		t.Errorf("UUIDv7: version nibble got %q, want '7' in %q", id[14], id)
	}
}

func TestUUIDv7_Sortable(t *testing.T) {
	gen := UUIDv7()
	prev := gen()
	for i := 0; i < 100; i++ {
		id := gen()
		if id <= prev {
			t.Fatalf("UUIDv7 not increasing: %q after %q", id, prev)
		}
		prev = id
	}
}

func TestEventGenerators(t *testing.T) {
	if id := BoundID(); !strings.HasPrefix(id, "bnd_") {
		t.Errorf("BoundID: got %q, want bnd_ prefix", id)
	}
	if id := ScanID(); !strings.HasPrefix(id, "scn_") {
		t.Errorf("ScanID: got %q, want scn_ prefix", id)
	}
}

func TestNew_BareUUID(t *testing.T) {
	id := New()
	if len(id) != 36 || strings.Contains(id, "_") {
		t.Errorf("New: got %q, want a bare UUID", id)
	}
}
