package otp

import "testing"

func TestNewCode(t *testing.T) {
	for _, digits := range []int{6, 8, 10} {
		code, err := NewCode(digits)
		if err != nil {
			t.Fatalf("NewCode(%d) failed: %v", digits, err)
		}
		if len(code) != digits {
			t.Fatalf("NewCode(%d) = %q, wrong length", digits, code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("NewCode(%d) = %q, non-digit %q", digits, code, r)
			}
		}
	}
}

func TestNewCodeBounds(t *testing.T) {
	for _, digits := range []int{0, 5, 11} {
		if _, err := NewCode(digits); err == nil {
			t.Fatalf("NewCode(%d): expected rejection", digits)
		}
	}
}

func TestNewCodeVaries(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := NewCode(6)
		if err != nil {
			t.Fatalf("NewCode failed: %v", err)
		}
		seen[code] = true
	}
	// 50 draws from a million values colliding down to a handful would mean
	// a broken generator.
	if len(seen) < 40 {
		t.Fatalf("only %d distinct codes in 50 draws", len(seen))
	}
}
