package oracle

import "strings"

// suffixRules are tried in order; the first candidate the model knows wins.
var suffixRules = []struct {
	suffix  string
	replace string
}{
	{"ies", "y"},
	{"ies", "ie"},
	{"sses", "ss"},
	{"es", ""},
	{"es", "e"},
	{"s", ""},
	{"ing", ""},
	{"ing", "e"},
	{"ed", ""},
	{"ed", "e"},
	{"est", ""},
	{"er", ""},
	{"ly", ""},
}

// guessLemma maps an inflected form onto a known word via suffix rules.
// Words the rules cannot resolve are their own lemma.
func (m *Model) guessLemma(word string) string {
	for _, rule := range suffixRules {
		if !strings.HasSuffix(word, rule.suffix) {
			continue
		}
		stem := word[:len(word)-len(rule.suffix)] + rule.replace
		if len(stem) < 2 {
			continue
		}
		if m.known(stem) {
			return stem
		}
		// Undo consonant doubling: running → runn → run.
		if rule.replace == "" && len(stem) >= 3 && stem[len(stem)-1] == stem[len(stem)-2] {
			undoubled := stem[:len(stem)-1]
			if m.known(undoubled) {
				return undoubled
			}
		}
	}
	return word
}
