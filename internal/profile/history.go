package profile

import (
	"sort"
	"time"

	"github.com/xaenox/emotrack/internal/incident"
	"github.com/xaenox/emotrack/internal/models"
)

// Entry is one processed message kept in a profile's history.
type Entry struct {
	Text      string              `json:"message"`
	Timestamp time.Time           `json:"timestamp"`
	Emotions  models.Distribution `json:"emotions_detected"`
	Impact    float64             `json:"impact_score"`
	Age       models.AgeCategory  `json:"temporal_category"`
	Entities  []string            `json:"entities,omitempty"`
}

// FrequencyScore is how often a label was detected and its average score.
type FrequencyScore struct {
	Label        string  `json:"label"`
	Count        int     `json:"frequency"`
	AverageScore float64 `json:"avg_score"`
}

// History is a fixed-size ring of entries with label frequency counters kept
// in step with what the ring holds.
type History struct {
	entries []Entry
	start   int
	size    int
	counts  map[string]int
	sums    map[string]float64
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultConfig().HistorySize
	}
	return &History{
		entries: make([]Entry, capacity),
		counts:  make(map[string]int),
		sums:    make(map[string]float64),
	}
}

func (h *History) Len() int      { return h.size }
func (h *History) Capacity() int { return len(h.entries) }

// Append adds e, evicting the oldest entry when full.
func (h *History) Append(e Entry) {
	if h.size == len(h.entries) {
		h.forget(h.entries[h.start])
		h.entries[h.start] = e
		h.start = (h.start + 1) % len(h.entries)
	} else {
		h.entries[(h.start+h.size)%len(h.entries)] = e
		h.size++
	}
	for label, score := range e.Emotions {
		h.counts[label]++
		h.sums[label] += score
	}
}

func (h *History) forget(e Entry) {
	for label, score := range e.Emotions {
		h.counts[label]--
		h.sums[label] -= score
		if h.counts[label] <= 0 {
			delete(h.counts, label)
			delete(h.sums, label)
		}
	}
}

// Entries returns the history oldest first.
func (h *History) Entries() []Entry {
	out := make([]Entry, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.entries[(h.start+i)%len(h.entries)]
	}
	return out
}

// Recent returns up to n entries, newest first.
func (h *History) Recent(n int) []Entry {
	if n > h.size || n < 0 {
		n = h.size
	}
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = h.entries[(h.start+h.size-1-i)%len(h.entries)]
	}
	return out
}

// Candidates converts the history for recurrence detection.
func (h *History) Candidates() []incident.Candidate {
	out := make([]incident.Candidate, 0, h.size)
	for _, e := range h.Entries() {
		out = append(out, incident.Candidate{
			Text:      e.Text,
			Timestamp: e.Timestamp,
			Entities:  e.Entities,
			Emotions:  e.Emotions,
		})
	}
	return out
}

// TopByFrequency ranks labels by how many entries contain them, then by
// average score.
func (h *History) TopByFrequency(n int) []FrequencyScore {
	out := make([]FrequencyScore, 0, len(h.counts))
	for label, count := range h.counts {
		out = append(out, FrequencyScore{
			Label:        label,
			Count:        count,
			AverageScore: h.sums[label] / float64(count),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].AverageScore != out[j].AverageScore {
			return out[i].AverageScore > out[j].AverageScore
		}
		return out[i].Label < out[j].Label
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
