package textindex

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"John Heyder Oliveira de Medeiros Galvão", "john heyder oliveira de medeiros galvao"},
		{"ãéîõü", "aeiou"},
		{"ABC", "abc"},
		{"já 123", "ja 123"},
		{"", ""},
		{"no-accents here", "no-accents here"},
		{"币", ""}, // no base Latin letter to keep
	}
	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"John Heyder Oliveira de Medeiros Galvão",
		"Recém-nascido",
		"ÀÇÑ œ fi ½",
		"plain ascii",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestOnlyDigits(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"12345/0", "123450"},
		{"12.345-0", "123450"},
		{"abc", ""},
		{"", ""},
		{"00 17", "0017"},
		{"a1b2c3", "123"},
	}
	for _, tt := range tests {
		if got := OnlyDigits(tt.input); got != tt.want {
			t.Errorf("OnlyDigits(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestWindowDerivation(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantMin int
		wantMax int
	}{
		{"both zero", Options{}, 4, 8},
		{"only min", Options{Min: 4}, 4, 8},
		{"only min large", Options{Min: 10}, 10, 14},
		{"only max", Options{Max: 6}, 2, 6},
		{"only max small clamps", Options{Max: 2}, 1, 2},
		{"both given", Options{Min: 4, Max: 16}, 4, 16},
	}
	for _, tt := range tests {
		min, max := tt.opts.window()
		if min != tt.wantMin || max != tt.wantMax {
			t.Errorf("%s: window() = (%d, %d), want (%d, %d)", tt.name, min, max, tt.wantMin, tt.wantMax)
		}
	}
}

func TestTokenizeMinimumLength(t *testing.T) {
	set := Tokenize("john heyder oliveira", Options{Min: 4, Max: 16, OnlyWordStart: true, CombineWords: true})
	for tok := range set {
		if len(tok) < 4 {
			t.Errorf("token %q shorter than minimum", tok)
		}
	}
	if !set.Contains("john") {
		t.Error("expected 4-char prefix token \"john\"")
	}
	if !set.Contains("heyd") {
		t.Error("expected prefix token \"heyd\" from second word")
	}
}

func TestTokenizePrefixesOnlyFromWordStart(t *testing.T) {
	set := Tokenize("galvao", Options{Min: 4, Max: 16, OnlyWordStart: true})
	for _, want := range []string{"galv", "galva", "galvao"} {
		if !set.Contains(want) {
			t.Errorf("missing prefix token %q", want)
		}
	}
	if set.Contains("alva") {
		t.Error("mid-word token emitted despite OnlyWordStart")
	}
}

func TestTokenizeMidWordStarts(t *testing.T) {
	set := Tokenize("galvao", Options{Min: 4, Max: 6, OnlyWordStart: false})
	if !set.Contains("alva") {
		t.Error("expected mid-word token \"alva\" when starts are unrestricted")
	}
}

func TestTokenizeCombinations(t *testing.T) {
	set := Tokenize("ana bela costa", Options{Min: 4, Max: 16, OnlyWordStart: true, CombineWords: true})
	for _, want := range []string{"ana bela costa", "ana costa", "bela costa", "ana bela"} {
		if !set.Contains(want) {
			t.Errorf("missing word combination %q", want)
		}
	}
}

func TestTokenizeWithoutCombinations(t *testing.T) {
	set := Tokenize("ana bela", Options{Min: 4, Max: 4, OnlyWordStart: true, CombineWords: false})
	if !set.Contains("ana") {
		t.Error("individual word \"ana\" should be emitted when not combining")
	}
	if set.Contains("ana bela") {
		t.Error("joined combination emitted despite CombineWords=false")
	}
}

func TestTokenizeCodeWindow(t *testing.T) {
	// default window (4..8) over a digit-only code
	set := Tokenize("123450", Options{OnlyWordStart: true, CombineWords: true})
	for _, want := range []string{"1234", "12345", "123450"} {
		if !set.Contains(want) {
			t.Errorf("missing code token %q", want)
		}
	}
	if set.Contains("123") {
		t.Error("code token shorter than minimum emitted")
	}
}

func TestTokenizeShortPhrase(t *testing.T) {
	// a phrase shorter than the minimum passes through the word stage only;
	// the window stage contributes nothing
	set := Tokenize("ab", Options{Min: 4, Max: 8, OnlyWordStart: true})
	if len(set) != 1 || !set.Contains("ab") {
		t.Errorf("expected only the bare word, got %v", set.Slice())
	}
}

func TestTokenizeEmpty(t *testing.T) {
	if got := len(Tokenize("", Options{})); got != 0 {
		t.Errorf("expected empty set for empty phrase, got %d tokens", got)
	}
}

func TestSetSlice(t *testing.T) {
	s := make(Set)
	s.Add("one")
	s.Add("one")
	s.Add("two")
	s.Add("")
	if len(s.Slice()) != 2 {
		t.Errorf("expected 2 unique tokens, got %d", len(s.Slice()))
	}
}
