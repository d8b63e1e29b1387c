package models

import "time"

// AnalysisRecord is the per-message row handed to telemetry sinks and storage.
type AnalysisRecord struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Message        string     `json:"message"`
	ImpactScore    float64    `json:"impact_score"`
	Current        TopByScale `json:"current"`
	Profile        TopByScale `json:"profile"`
	MidTermActive  bool       `json:"mid_term_active"`
	LongTermActive bool       `json:"long_term_active"`
	ProfileAgeDays int        `json:"profile_age_days"`
	MessageCount   int        `json:"message_count"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TopByScale holds the top emotion of each timescale.
type TopByScale struct {
	ShortTerm EmotionScore `json:"short_term"`
	MidTerm   EmotionScore `json:"mid_term"`
	LongTerm  EmotionScore `json:"long_term"`
}

func (t *TopByScale) Set(scale Timescale, score EmotionScore) {
	switch scale {
	case ShortTerm:
		t.ShortTerm = score
	case MidTerm:
		t.MidTerm = score
	case LongTerm:
		t.LongTerm = score
	}
}

func (t TopByScale) Get(scale Timescale) EmotionScore {
	switch scale {
	case MidTerm:
		return t.MidTerm
	case LongTerm:
		return t.LongTerm
	default:
		return t.ShortTerm
	}
}
