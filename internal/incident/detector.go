// Package incident detects whether a message talks about something the user
// has already mentioned.
package incident

import (
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/xaenox/emotrack/internal/models"
)

// DefaultSimilarityThreshold is the Jaccard similarity that counts as a repeat.
const DefaultSimilarityThreshold = 0.2

var defaultKeywords = []string{
	"died", "death", "passed away", "passed", "loss",
	"broken", "heartbroken", "sad", "sadness",
	"miss", "missing", "gone",
	"accident", "injury", "hurt", "pain",
	"promoted", "promotion", "success", "achievement", "won",
	"celebration", "happy", "joy", "celebrate",
	"grandmother", "grandfather", "father", "mother",
	"brother", "sister", "friend", "love", "loved",
	"breakup", "broke up", "divorced", "separated",
	"exam", "job", "fired", "hospital",
	"papa", "mummy", "dadi", "nani", "dost",
}

// Candidate is a past message to compare against.
type Candidate struct {
	Text      string
	Timestamp time.Time
	Entities  []string
	Emotions  models.Distribution
}

// Match is a past message similar enough to count as the same incident.
type Match struct {
	Text       string              `json:"message"`
	Timestamp  time.Time           `json:"timestamp"`
	Similarity float64             `json:"similarity"`
	Emotions   models.Distribution `json:"emotions,omitempty"`
}

type Result struct {
	IncidentCount     int      `json:"incident_count"`
	SimilarMessages   []Match  `json:"similar_messages,omitempty"`
	TopEntities       []string `json:"top_entities,omitempty"`
	AverageSimilarity float64  `json:"average_similarity"`
	MaxSimilarity     float64  `json:"max_similarity"`
	Compared          int      `json:"compared"`
}

type Detector struct {
	keywords []string
}

func NewDetector() *Detector {
	return &Detector{keywords: defaultKeywords}
}

// WithKeywords returns a detector that also looks for the given keywords.
func (d *Detector) WithKeywords(extra ...string) *Detector {
	kw := make([]string, 0, len(d.keywords)+len(extra))
	kw = append(kw, d.keywords...)
	for _, k := range extra {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			kw = append(kw, k)
		}
	}
	return &Detector{keywords: kw}
}

// ExtractEntities returns capitalised tokens and salient keywords found in
// text, lower-cased, de-duplicated and sorted.
func (d *Detector) ExtractEntities(text string) []string {
	set := make(map[string]struct{})

	for _, word := range strings.Fields(text) {
		clean := strings.Trim(word, ".,!?;:\"'()")
		if utf8.RuneCountInString(clean) <= 1 {
			continue
		}
		first, _ := utf8.DecodeRuneInString(clean)
		if unicode.IsUpper(first) {
			set[strings.ToLower(clean)] = struct{}{}
		}
	}

	lower := strings.ToLower(text)
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			set[kw] = struct{}{}
		}
	}

	entities := make([]string, 0, len(set))
	for e := range set {
		entities = append(entities, e)
	}
	sort.Strings(entities)
	return entities
}

// Similarity is the Jaccard index of two entity sets.
func Similarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, e := range a {
		setA[e] = struct{}{}
	}
	union := len(setA)
	inter := 0
	seen := make(map[string]struct{}, len(b))
	for _, e := range b {
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		if _, ok := setA[e]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// FindRepeated compares text against history. A message without entities is
// always a first occurrence.
func (d *Detector) FindRepeated(text string, history []Candidate, threshold float64) Result {
	entities := d.ExtractEntities(text)
	return d.FindRepeatedEntities(entities, history, threshold)
}

// FindRepeatedEntities is FindRepeated for pre-extracted entities.
func (d *Detector) FindRepeatedEntities(entities []string, history []Candidate, threshold float64) Result {
	res := Result{IncidentCount: 1, TopEntities: entities}
	if len(entities) == 0 || len(history) == 0 {
		return res
	}

	var total float64
	for _, h := range history {
		past := h.Entities
		if past == nil {
			past = d.ExtractEntities(h.Text)
		}
		sim := Similarity(entities, past)
		res.Compared++
		if sim > res.MaxSimilarity {
			res.MaxSimilarity = sim
		}
		if sim < threshold {
			continue
		}
		res.SimilarMessages = append(res.SimilarMessages, Match{
			Text:       h.Text,
			Timestamp:  h.Timestamp,
			Similarity: sim,
			Emotions:   h.Emotions,
		})
		total += sim
	}

	res.IncidentCount = 1 + len(res.SimilarMessages)
	if n := len(res.SimilarMessages); n > 0 {
		res.AverageSimilarity = total / float64(n)
	}
	return res
}
