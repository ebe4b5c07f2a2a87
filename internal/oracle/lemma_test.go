package oracle

import "testing"

func TestGuessLemma(t *testing.T) {
	m := &Model{
		dim: 1,
		vectors: map[string][]float32{
			"cat": {1}, "city": {1}, "run": {1}, "make": {1},
			"save": {1}, "quick": {1}, "tall": {1}, "tie": {1},
		},
		lexicon: map[string]lexEntry{},
	}

	cases := []struct {
		word string
		want string
	}{
		{"cats", "cat"},
		{"cities", "city"},
		{"ties", "tie"},
		{"running", "run"},
		{"making", "make"},
		{"saved", "save"},
		{"quickly", "quick"},
		{"taller", "tall"},
		{"tallest", "tall"},
		// No known stem: the word is its own lemma.
		{"boxes", "boxes"},
		{"zigzag", "zigzag"},
		// Too short to strip.
		{"as", "as"},
	}
	for _, tc := range cases {
		if got := m.Lemma(tc.word); got != tc.want {
			t.Errorf("Lemma(%q) = %q, want %q", tc.word, got, tc.want)
		}
	}
}
