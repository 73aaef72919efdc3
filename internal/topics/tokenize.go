package topics

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

const minTokenLength = 3

// stopwords are dropped before counting. English function words plus the
// boilerplate vocabulary of abstracts, which would otherwise top every topic.
var stopwords = toSet(`
a about above after again against all also although among an and any are as
at be because been before being below between both but by can could did do
does doing down during each either et few for from further had has have having
here how however i if in into is it its itself just may might more most much
must no nor not now of off on once one only or other our out over own same
several she should since so some such than that the their them then there these
they this those through thus to too two under until up upon us very via was we
were what when where whether which while who whom why will with within without
would yet

abstract al approach based case cases consider considered different due
employ find first found framework given introduce known large new novel obtain
obtained paper present presented problem propose proposed provide result
results second several show shown study studied significant suggest therefore
three use used uses using well work
`)

func toSet(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}

// tokenizer splits text into case-folded terms. Not safe for concurrent use.
type tokenizer struct {
	fold cases.Caser
}

func newTokenizer() *tokenizer {
	return &tokenizer{fold: cases.Fold()}
}

// Tokens returns the terms of text in order. Tokens are runs of letters and
// digits (an inner hyphen splits), shorter than minTokenLength runes, purely
// numeric or stopwords are dropped.
func (t *tokenizer) Tokens(text string) []string {
	folded := t.fold.String(text)
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minTokenLength || isNumeric(f) {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
