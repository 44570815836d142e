package credential

import (
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		wantLen int
	}{
		{"default", DefaultLength, 8},
		{"short", 6, 6},
		{"seven", 7, 7},
		{"too short falls back", 3, DefaultLength},
		{"too long falls back", 12, DefaultLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iss := NewIssuer(tt.length)
			code, err := iss.Generate()
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if len(code) != tt.wantLen {
				t.Errorf("Generate() length = %d, want %d", len(code), tt.wantLen)
			}
			if !Valid(code) {
				t.Errorf("Generate() = %q, not valid", code)
			}
		})
	}
}

func TestGenerateAvoidsAmbiguousGlyphs(t *testing.T) {
	iss := NewIssuer(DefaultLength)
	for i := 0; i < 500; i++ {
		code, err := iss.Generate()
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if strings.ContainsAny(code, "IL0O1") {
			t.Fatalf("Generate() = %q contains an ambiguous glyph", code)
		}
	}
}

func TestGenerateCoversAlphabet(t *testing.T) {
	iss := NewIssuer(DefaultLength)
	seen := map[rune]bool{}
	for i := 0; i < 2000; i++ {
		code, _ := iss.Generate()
		for _, r := range code {
			seen[r] = true
		}
	}
	if len(seen) != len(Alphabet) {
		t.Errorf("saw %d distinct characters, want %d", len(seen), len(Alphabet))
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  ab3k9mqz \n"); got != "AB3K9MQZ" {
		t.Errorf("Normalize() = %q", got)
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"ABCDEFGH", true},
		{"ABC234", true},
		{"ABC23", false},
		{"ABCDEFGHJ", false},
		{"ABCDEFG0", false},
		{"abcdefgh", false},
	}
	for _, tt := range tests {
		if got := Valid(tt.code); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
