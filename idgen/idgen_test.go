package idgen

import (
	"strings"
	"testing"
)

func TestNanoID_LengthAndAlphabet(t *testing.T) {
	for _, length := range []int{8, 16, 100} {
		id := NanoID(length)()
		if len(id) != length {
			t.Fatalf("NanoID(%d): got length %d", length, len(id))
		}
		for _, c := range id {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
				t.Fatalf("NanoID: unexpected character %q in %q", c, id)
			}
		}
	}
}

func TestUUIDv7_Uniqueness(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := gen()
		if len(id) != 36 {
			t.Fatalf("UUIDv7: expected length 36, got %d in %q", len(id), id)
		}
		if _, ok := seen[id]; ok {
			t.Fatalf("UUIDv7: duplicate at iteration %d", i)
		}
		seen[id] = struct{}{}
	}
}

func TestRunID(t *testing.T) {
	// WHAT: Run ids carry the run_ prefix and a parseable UUID.
	id := RunID()
	if !strings.HasPrefix(id, "run_") {
		t.Fatalf("RunID: expected prefix run_, got %q", id)
	}
	parsed, err := Parse(id)
	if err != nil {
		t.Fatalf("Parse(%q): %v", id, err)
	}
	if parsed != id {
		t.Fatalf("Parse: got %q, want %q", parsed, id)
	}
}

func TestTraceID(t *testing.T) {
	id := TraceID()
	if !strings.HasPrefix(id, "trc_") || len(id) != 4+16 {
		t.Fatalf("TraceID: got %q", id)
	}
}

func TestFixed(t *testing.T) {
	gen := Fixed("run_test")
	if gen() != "run_test" || gen() != "run_test" {
		t.Fatal("Fixed: id changed between calls")
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, s := range []string{"not-a-uuid", "", "run_" + strings.Repeat("z", 36)} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q): expected error", s)
		}
	}
}
