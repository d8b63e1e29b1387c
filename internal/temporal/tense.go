package temporal

import (
	"regexp"
	"strings"
)

var (
	pastIndicators = [][]string{
		{"was", "were", "did", "had", "went", "came", "happened", "occurred", "took", "found", "made", "got", "became"},
		{"tha", "thi", "the", "gaya", "gai", "hui", "hua", "raha", "rahi", "rahe"},
	}
	futureIndicators = [][]string{
		{"will", "going to", "shall", "is going", "are going", "would", "planning", "supposed to", "gonna"},
		{"hoga", "hogi", "honge", "hain", "hai", "baad mein", "ayenge"},
	}
	immediatePastIndicators = [][]string{
		{"just", "recently", "just now", "few moments ago", "earlier"},
		{"abhi", "abhi hi", "abhi-abhi", "ek dum", "thodi der pehle"},
	}
)

// TenseScores are normalized tense weights for a context window.
type TenseScores struct {
	Past    float64 `json:"past"`
	Future  float64 `json:"future"`
	Present float64 `json:"present"`
}

// Dominant returns "past", "future" or "present".
func (s TenseScores) Dominant() string {
	switch {
	case s.Past > s.Future && s.Past > s.Present:
		return "past"
	case s.Future > s.Past && s.Future > s.Present:
		return "future"
	default:
		return "present"
	}
}

type lexicon []*regexp.Regexp

func newLexicon(groups [][]string) lexicon {
	seen := make(map[string]struct{})
	var out lexicon
	for _, words := range groups {
		for _, w := range words {
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			expr := `\b` + strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`) + `\b`
			out = append(out, regexp.MustCompile(expr))
		}
	}
	return out
}

func (l lexicon) count(text string) int {
	n := 0
	for _, re := range l {
		n += len(re.FindAllStringIndex(text, -1))
	}
	return n
}

type tenseAnalyzer struct {
	past, future, immediate lexicon
}

func newTenseAnalyzer() *tenseAnalyzer {
	return &tenseAnalyzer{
		past:      newLexicon(pastIndicators),
		future:    newLexicon(futureIndicators),
		immediate: newLexicon(immediatePastIndicators),
	}
}

func (a *tenseAnalyzer) analyze(window string) TenseScores {
	lower := strings.ToLower(window)
	past := a.past.count(lower) + 2*a.immediate.count(lower)
	future := a.future.count(lower)

	total := float64(past + future + 1)
	s := TenseScores{
		Past:   float64(past) / total,
		Future: float64(future) / total,
	}
	s.Present = 1 - s.Past - s.Future
	return s
}

type ambiguousWord struct {
	re         *regexp.Regexp
	pastDays   int
	futureDays int
}

// Longest forms first so "kal se" wins over "kal".
var ambiguousWords = []ambiguousWord{
	{regexp.MustCompile(`(?i)\bkal\s+se\b`), -1, 1},
	{regexp.MustCompile(`(?i)\bkal\b`), -1, 1},
	{regexp.MustCompile(`(?i)\bparso\b`), -2, 2},
}

// resolveAmbiguous returns a day offset for a word that means either
// "yesterday" or "tomorrow". Ties go to the past.
func resolveAmbiguous(phrase string, tense TenseScores) (int, bool) {
	for _, w := range ambiguousWords {
		if !w.re.MatchString(phrase) {
			continue
		}
		if tense.Future > tense.Past {
			return w.futureDays, true
		}
		return w.pastDays, true
	}
	return 0, false
}
