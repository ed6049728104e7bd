package ingest_test

import (
	"testing"

	"github.com/prepnexus/qbank/internal/ingest"
)

func TestFingerprint_StableUnderFormatting(t *testing.T) {
	base := ingest.Fingerprint("Discuss the independence of the judiciary.", "Polity")

	same := []struct {
		text, subject string
	}{
		{"  Discuss the independence of the judiciary.  ", "Polity"},
		{"discuss THE independence of the judiciary.", "polity"},
		{"Discuss\tthe   independence\nof the judiciary.", "Polity"},
	}
	for _, tt := range same {
		if got := ingest.Fingerprint(tt.text, tt.subject); got != base {
			t.Errorf("Fingerprint(%q, %q) = %s, want %s", tt.text, tt.subject, got, base)
		}
	}
}

func TestFingerprint_Distinguishes(t *testing.T) {
	base := ingest.Fingerprint("Discuss the independence of the judiciary.", "Polity")

	if got := ingest.Fingerprint("Discuss the independence of the judiciary.", "Economy"); got == base {
		t.Error("different subjects must not collide")
	}
	if got := ingest.Fingerprint("Discuss judicial review.", "Polity"); got == base {
		t.Error("different texts must not collide")
	}
}

func TestFingerprint_HexLength(t *testing.T) {
	if got := ingest.Fingerprint("x", "y"); len(got) != 64 {
		t.Errorf("Fingerprint() length = %d, want 64 hex chars", len(got))
	}
}
