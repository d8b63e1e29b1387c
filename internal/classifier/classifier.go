package classifier

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/xaenox/emotrack/internal/models"
)

// ErrEmptyResult is returned when a backend answered but detected nothing.
var ErrEmptyResult = errors.New("classifier returned no emotions")

// EmotionClassifier maps text to emotion label probabilities. Empty text
// yields an empty distribution.
type EmotionClassifier interface {
	Classify(ctx context.Context, text string) (models.Distribution, error)
}

var lexicon = map[string][]string{
	"admiration":     {"admire", "impressive", "respect", "inspiring"},
	"amusement":      {"funny", "lol", "haha", "hilarious", "hasi"},
	"anger":          {"angry", "furious", "mad", "hate", "rage", "gussa", "naraz", "गुस्सा"},
	"annoyance":      {"annoyed", "annoying", "irritated", "irritating", "pareshan", "chid"},
	"approval":       {"agree", "approve", "sahi", "theek"},
	"caring":         {"take care", "care", "khayal", "dhyan rakhna"},
	"confusion":      {"confused", "confusing", "uljhan", "samajh nahi"},
	"curiosity":      {"curious", "wondering", "kya hoga"},
	"desire":         {"wish", "want", "chahiye", "chahta", "chahti"},
	"disappointment": {"disappointed", "let down", "failed", "fail", "nirash"},
	"disapproval":    {"disapprove", "wrong", "galat"},
	"disgust":        {"disgusting", "gross", "ghin", "chhi"},
	"embarrassment":  {"embarrassed", "awkward", "sharam", "sharminda"},
	"excitement":     {"excited", "thrilled", "can't wait", "josh"},
	"fear":           {"scared", "afraid", "fear", "terrified", "dar", "darr", "डर"},
	"gratitude":      {"thanks", "thank you", "grateful", "shukriya", "dhanyavaad"},
	"grief":          {"passed away", "died", "death", "funeral", "guzar gaye", "nahi rahe"},
	"joy":            {"happy", "glad", "joy", "great", "awesome", "wonderful", "accha", "achha", "acha", "khush", "khushi", "maza", "mazaa", "badhiya", "खुश"},
	"love":           {"love", "loved", "pyaar", "pyar", "ishq", "adore"},
	"nervousness":    {"nervous", "anxious", "tension", "worried", "stress", "stressed", "ghabrahat"},
	"optimism":       {"hope", "hopeful", "umeed", "ummeed"},
	"pride":          {"proud", "promoted", "promotion", "garv"},
	"realization":    {"realized", "realised", "samajh aaya"},
	"relief":         {"relieved", "relief", "sukoon", "chain mila"},
	"remorse":        {"sorry", "regret", "guilty", "maafi"},
	"sadness":        {"sad", "unhappy", "depressed", "cry", "crying", "cried", "lonely", "udaas", "dukhi", "dukh", "akela", "दुखी"},
	"surprise":       {"surprised", "shocked", "unexpected", "wow"},
}

var intensifiers = []string{"very", "so", "really", "extremely", "bahut", "bohot", "bohat", "bahot", "itna", "bht", "बहुत"}

// KeywordClassifier scores labels by lexicon hits over English, romanised
// Hindi and Devanagari keywords.
type KeywordClassifier struct {
	neutral float64
}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{neutral: 0.5}
}

func (c *KeywordClassifier) Classify(ctx context.Context, text string) (models.Distribution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dist := make(models.Distribution)
	norm := normalize(text)
	if strings.TrimSpace(norm) == "" {
		return dist, nil
	}

	boost := 0.0
	for _, w := range intensifiers {
		if strings.Contains(norm, " "+w+" ") {
			boost = 0.5
			break
		}
	}

	hits := make(map[string]float64)
	var total float64
	for label, words := range lexicon {
		var n int
		for _, w := range words {
			n += strings.Count(norm, " "+w+" ")
		}
		if n == 0 {
			continue
		}
		weight := float64(n) + boost
		hits[label] = weight
		total += weight
	}

	if total == 0 {
		dist["neutral"] = c.neutral
		return dist, nil
	}
	for label, w := range hits {
		dist[label] = w / (total + 1)
	}
	return dist, nil
}

// normalize lower-cases text and rewrites it as space-separated tokens with a
// leading and trailing space, so keywords can be matched as " word ".
func normalize(text string) string {
	var b strings.Builder
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsMark(r) || unicode.IsDigit(r) || r == '\'' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}
