package temporal

import (
	"fmt"
	"regexp"
)

// Category is the kind of temporal expression a pattern matches.
type Category string

const (
	Absolute Category = "absolute"
	Relative Category = "relative"
	Vague    Category = "vague"
)

// Language tags the language a pattern was written for.
type Language string

const (
	English  Language = "en"
	Hindi    Language = "hi"
	Hinglish Language = "hinglish"
	Mixed    Language = "mixed"
)

// Pattern is an uncompiled registry entry. Extra patterns from configuration
// use the same shape.
type Pattern struct {
	Name     string   `mapstructure:"name"`
	Expr     string   `mapstructure:"expr"`
	Category Category `mapstructure:"category"`
	Language Language `mapstructure:"language"`
}

type group struct {
	category Category
	language Language
	patterns []Pattern
}

var registry = []group{
	{Relative, English, []Pattern{
		{Name: "relative_quantity", Expr: `\b(\d+)\s+(years?|months?|weeks?|days?|hours?|minutes?|seconds?)\s+ago\b`},
		{Name: "relative_quantity_abbrev", Expr: `\b(\d+)\s+(yrs?|mos?|wks?|hrs?|mins?)\s+ago\b`},
		{Name: "relative_named", Expr: `\b(last|previous)\s+(year|month|week|day|night)\b`},
		{Name: "relative_this", Expr: `\bthis\s+(year|month|week|day)\b`},
		{Name: "relative_next", Expr: `\bnext\s+(year|month|week|day)\b`},
		{Name: "simple_relative", Expr: `\b(yesterday|today|tomorrow)\b`},
		{Name: "before_yesterday", Expr: `\b(day\s+)?before\s+yesterday\b`},
		{Name: "after_tomorrow", Expr: `\b(day\s+)?after\s+tomorrow\b`},
	}},
	{Absolute, English, []Pattern{
		{Name: "year_only", Expr: `\b(19\d{2}|20\d{2})\b`},
		{Name: "year_with_in", Expr: `\bin\s+(19\d{2}|20\d{2})\b`},
		{Name: "numeric_date", Expr: `\b(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})\b`},
	}},
	{Relative, Hindi, []Pattern{
		{Name: "hindi_quantity", Expr: `\b(\d+)\s+(saal|sal|mahine|mahina|hafte|hafta|din)\s+(pehle|pahle|baad)\b`},
		{Name: "hindi_relative_named", Expr: `\b(pichle|agle|is)\s+(saal|sal|mahine|mahina|hafte|hafta|din)\b`},
		{Name: "hindi_ambiguous_kal", Expr: `\bkal(\s+se)?\b`},
		{Name: "hindi_ambiguous_parso", Expr: `\bparso\b`},
		{Name: "hindi_simple", Expr: `\baaj\b`},
		{Name: "hindi_immediate", Expr: `\babhi\b`},
	}},
	{Relative, Hinglish, []Pattern{
		{Name: "hinglish_mixed", Expr: `\b(\d+)\s+(years?|saal|sal|months?|mahina|mahine|weeks?|hafta|hafte|days?|din)\s+(ago|pehle|pahle|back|baad)\b`},
		{Name: "hinglish_last", Expr: `\blast\s+(year|saal|month|mahina|week|hafta|day|din)\b`},
		{Name: "hinglish_next", Expr: `\bnext\s+(year|saal|month|mahina|week|hafta|day|din)\b`},
	}},
	{Vague, Mixed, []Pattern{
		{Name: "vague_long", Expr: `\b(long\s+time|very\s+long\s+time)\s+ago\b`},
		{Name: "vague_childhood", Expr: `\bwhen\s+i\s+was\s+(young|a\s+kid|a\s+child|small)\b`},
		{Name: "vague_years_back", Expr: `\byears?\s+back\b`},
	}},
}

type compiledPattern struct {
	name     string
	re       *regexp.Regexp
	category Category
	language Language
}

func compile(p Pattern) (compiledPattern, error) {
	re, err := regexp.Compile(`(?i)` + p.Expr)
	if err != nil {
		return compiledPattern{}, fmt.Errorf("compile pattern %q: %w", p.Name, err)
	}
	switch p.Category {
	case Absolute, Relative, Vague:
	default:
		return compiledPattern{}, fmt.Errorf("pattern %q: unknown category %q", p.Name, p.Category)
	}
	lang := p.Language
	if lang == "" {
		lang = Mixed
	}
	return compiledPattern{name: p.Name, re: re, category: p.Category, language: lang}, nil
}
