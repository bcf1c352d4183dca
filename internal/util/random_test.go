package util

import (
	"strings"
	"testing"
)

func TestGenerateRandomID(t *testing.T) {
	id := GenerateRandomID("apt", 16)
	if !strings.HasPrefix(id, "apt") {
		t.Errorf("expected apt prefix, got %q", id)
	}
	if len(id) != 3+16 {
		t.Errorf("expected 19 characters, got %d", len(id))
	}
	for _, c := range id[3:] {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("non-hex character %q in %q", c, id)
		}
	}
}

func TestGenerateReferralCode(t *testing.T) {
	const charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code := GenerateReferralCode(8)
		if len(code) != 8 {
			t.Fatalf("expected 8 characters, got %q", code)
		}
		for _, c := range code {
			if !strings.ContainsRune(charset, c) {
				t.Fatalf("unexpected character %q in %q", c, code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 199 {
		t.Errorf("expected distinct codes, got %d distinct of 200", len(seen))
	}

	if GenerateReferralCode(0) != "" {
		t.Error("expected empty code for zero length")
	}
}
