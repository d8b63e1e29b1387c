package incident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractEntities(t *testing.T) {
	d := NewDetector()

	got := d.ExtractEntities("My father passed away last year, Rahul said.")
	assert.Equal(t, []string{"father", "my", "passed", "passed away", "rahul"}, got)

	assert.Empty(t, d.ExtractEntities("ok"))
	assert.Empty(t, d.ExtractEntities(""))
	assert.NotContains(t, d.ExtractEntities("I went out"), "i", "single letters are skipped")
}

func TestWithKeywords(t *testing.T) {
	d := NewDetector().WithKeywords("Interview", " ")
	assert.Contains(t, d.ExtractEntities("big interview tomorrow"), "interview")
	assert.NotContains(t, NewDetector().ExtractEntities("big interview tomorrow"), "interview")
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{"identical", []string{"a", "b"}, []string{"b", "a"}, 1},
		{"disjoint", []string{"a"}, []string{"b"}, 0},
		{"half", []string{"a", "b"}, []string{"a", "c"}, 1.0 / 3},
		{"empty left", nil, []string{"a"}, 0},
		{"empty right", []string{"a"}, nil, 0},
		{"duplicates ignored", []string{"a"}, []string{"a", "a"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestFindRepeated(t *testing.T) {
	d := NewDetector()
	msg := "My father passed away last year"
	history := []Candidate{
		{Text: msg},
		{Text: "Got promoted at work today!"},
	}

	res := d.FindRepeated(msg, history, DefaultSimilarityThreshold)
	assert.Equal(t, 2, res.IncidentCount)
	require.Len(t, res.SimilarMessages, 1)
	assert.Equal(t, msg, res.SimilarMessages[0].Text)
	assert.InDelta(t, 1.0, res.AverageSimilarity, 1e-9)
	assert.InDelta(t, 1.0, res.MaxSimilarity, 1e-9)
	assert.Equal(t, 2, res.Compared)
}

func TestFindRepeatedSingleton(t *testing.T) {
	d := NewDetector()

	res := d.FindRepeated("ok", []Candidate{{Text: "ok"}}, DefaultSimilarityThreshold)
	assert.Equal(t, 1, res.IncidentCount)
	assert.Empty(t, res.SimilarMessages)

	res = d.FindRepeated("My father passed away", nil, DefaultSimilarityThreshold)
	assert.Equal(t, 1, res.IncidentCount)
	assert.Zero(t, res.AverageSimilarity)
}

func TestFindRepeatedUsesStoredEntities(t *testing.T) {
	d := NewDetector()
	history := []Candidate{{Text: "unrelated", Entities: []string{"father", "passed away"}}}

	res := d.FindRepeatedEntities([]string{"father", "passed away"}, history, 0.5)
	assert.Equal(t, 2, res.IncidentCount)
}
