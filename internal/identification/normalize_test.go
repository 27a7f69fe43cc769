package identification

import "testing"

func TestNormalizeNameCaseAndSymbols(t *testing.T) {
	cases := map[string]string{
		"Rosa damascena":    "rosadamascena",
		"ROSA  DAMASCENA":   "rosadamascena",
		"Rosa × damascena": "rosadamascena",
		"Black & Blue Sage": "blackandbluesage",
		"   ":               "",
		"":                  "",
	}
	for input, want := range cases {
		if got := NormalizeName(input); got != want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestIdentityKeyPrefersScientificName(t *testing.T) {
	s := Suggestion{ScientificName: "Rosa damascena", CommonNames: []string{"Damask rose"}}
	if got := s.IdentityKey(); got != "rosadamascena" {
		t.Fatalf("unexpected identity key %q", got)
	}
}

func TestIdentityKeyFallsBackToCommonName(t *testing.T) {
	s := Suggestion{CommonNames: []string{"  ", "Damask Rose"}}
	if got := s.IdentityKey(); got != "damaskrose" {
		t.Fatalf("unexpected identity key %q", got)
	}
}

func TestIdentityKeyEmptyWhenNothingUsable(t *testing.T) {
	s := Suggestion{CommonNames: []string{"  "}}
	if got := s.IdentityKey(); got != "" {
		t.Fatalf("expected empty key, got %q", got)
	}
}
