// Package temporal finds time expressions in English, Hindi and Hinglish text
// and dates them relative to a reference time.
package temporal

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"go.uber.org/zap"

	"github.com/xaenox/emotrack/internal/models"
)

// Resolution methods.
const (
	MethodAmbiguity = "ambiguity_resolver"
	MethodDateParse = "dateparse"
	MethodCustom    = "custom"
	MethodVague     = "vague_heuristic"
	MethodFailed    = "failed"
)

const (
	contextRunes = 100
	day          = 24 * time.Hour
	maxOffset    = 100 * 366
)

// DateParser parses a free-form calendar expression in loc.
type DateParser func(text string, loc *time.Location) (time.Time, error)

// TimePhrase is a matched temporal expression.
type TimePhrase struct {
	Text     string   `json:"text"`
	Start    int      `json:"start"`
	End      int      `json:"end"`
	Category Category `json:"type"`
	Language Language `json:"language"`
	Pattern  string   `json:"pattern"`
	Context  string   `json:"-"`
}

// ParsedTemporal is a TimePhrase resolved against the reference time. Date
// and DaysAgo are nil when resolution failed.
type ParsedTemporal struct {
	Phrase     string             `json:"phrase"`
	Date       *time.Time         `json:"parsed_date"`
	DaysAgo    *int               `json:"time_gap_days"`
	Age        models.AgeCategory `json:"age_category"`
	Confidence float64            `json:"confidence"`
	Method     string             `json:"parse_method"`
}

func (p ParsedTemporal) Resolved() bool { return p.Date != nil }

type Resolution struct {
	Phrases    []TimePhrase     `json:"time_phrases_detected"`
	Parsed     []ParsedTemporal `json:"parsed_dates"`
	Confidence float64          `json:"overall_confidence"`

	// SkippedPatterns names patterns that failed while matching this text.
	SkippedPatterns []string `json:"skipped_patterns,omitempty"`
}

// Primary returns the most confident resolved reference, preferring the
// earliest one on ties.
func (r Resolution) Primary() (ParsedTemporal, bool) {
	var (
		best  ParsedTemporal
		found bool
	)
	for _, p := range r.Parsed {
		if !p.Resolved() {
			continue
		}
		if !found || p.Confidence > best.Confidence {
			best, found = p, true
		}
	}
	return best, found
}

// Failed returns the phrases that matched but could not be dated.
func (r Resolution) Failed() []ParsedTemporal {
	var out []ParsedTemporal
	for _, p := range r.Parsed {
		if !p.Resolved() {
			out = append(out, p)
		}
	}
	return out
}

type Options struct {
	ExtraPatterns []Pattern

	// DateParser overrides the general calendar parser. Nil uses dateparse.
	DateParser DateParser

	// DisableDateParser skips the general calendar parser step.
	DisableDateParser bool
}

type Resolver struct {
	patterns   []compiledPattern
	tense      *tenseAnalyzer
	dateParser DateParser
	logger     *zap.Logger
}

func NewResolver(logger *zap.Logger, opts Options) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		tense:      newTenseAnalyzer(),
		dateParser: opts.DateParser,
		logger:     logger,
	}
	if r.dateParser == nil && !opts.DisableDateParser {
		r.dateParser = func(text string, loc *time.Location) (time.Time, error) {
			return dateparse.ParseIn(text, loc,
				dateparse.PreferMonthFirst(false),
				dateparse.RetryAmbiguousDateWithSwap(true))
		}
	}

	for _, g := range registry {
		for _, p := range g.patterns {
			p.Category, p.Language = g.category, g.language
			cp, err := compile(p)
			if err != nil {
				// registry entries are static
				panic(err)
			}
			r.patterns = append(r.patterns, cp)
		}
	}
	for _, p := range opts.ExtraPatterns {
		cp, err := compile(p)
		if err != nil {
			logger.Warn("Skipping temporal pattern",
				zap.String("kind", "pattern_error"),
				zap.String("pattern", p.Name),
				zap.Error(err))
			continue
		}
		r.patterns = append(r.patterns, cp)
	}
	return r
}

// Resolve extracts every temporal phrase in text and dates it relative to ref.
func (r *Resolver) Resolve(text string, ref time.Time) Resolution {
	phrases, skipped := r.Extract(text)
	res := Resolution{Phrases: phrases, SkippedPatterns: skipped}

	var sum float64
	var n int
	for _, p := range phrases {
		parsed := r.parse(p, ref)
		res.Parsed = append(res.Parsed, parsed)
		if parsed.Resolved() {
			sum += parsed.Confidence
			n++
		}
	}
	if n > 0 {
		res.Confidence = sum / float64(n)
	}
	return res
}

// Extract returns the non-overlapping temporal phrases in text and the names
// of any patterns that failed while matching.
func (r *Resolver) Extract(text string) ([]TimePhrase, []string) {
	var (
		phrases []TimePhrase
		skipped []string
	)
	for _, p := range r.patterns {
		locs, err := r.match(p, text)
		if err != nil {
			r.logger.Warn("Temporal pattern failed",
				zap.String("kind", "pattern_error"),
				zap.String("pattern", p.name),
				zap.Error(err))
			skipped = append(skipped, p.name)
			continue
		}
		for _, loc := range locs {
			phrases = append(phrases, TimePhrase{
				Text:     text[loc[0]:loc[1]],
				Start:    loc[0],
				End:      loc[1],
				Category: p.category,
				Language: p.language,
				Pattern:  p.name,
				Context:  contextWindow(text, loc[0], loc[1]),
			})
		}
	}
	return dedupe(phrases), skipped
}

func (r *Resolver) match(p compiledPattern, text string) (locs [][]int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic while matching: %v", rec)
		}
	}()
	return p.re.FindAllStringIndex(text, -1), nil
}

// dedupe keeps the earliest, longest match and drops anything overlapping it.
func dedupe(phrases []TimePhrase) []TimePhrase {
	sort.SliceStable(phrases, func(i, j int) bool {
		if phrases[i].Start != phrases[j].Start {
			return phrases[i].Start < phrases[j].Start
		}
		return phrases[i].End-phrases[i].Start > phrases[j].End-phrases[j].Start
	})

	var out []TimePhrase
	for _, p := range phrases {
		overlap := false
		for _, kept := range out {
			if p.Start < kept.End && p.End > kept.Start {
				overlap = true
				break
			}
		}
		if !overlap {
			out = append(out, p)
		}
	}
	return out
}

func contextWindow(text string, start, end int) string {
	from := start
	for i := 0; i < contextRunes && from > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:from])
		from -= size
	}
	to := end
	for i := 0; i < contextRunes && to < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[to:])
		to += size
	}
	return strings.TrimSpace(text[from:to])
}

func (r *Resolver) parse(p TimePhrase, ref time.Time) ParsedTemporal {
	if p.Language == Hindi || p.Language == Hinglish {
		if offset, ok := resolveAmbiguous(p.Text, r.tense.analyze(p.Context)); ok {
			return r.resolved(p, ref, ref.Add(time.Duration(offset)*day), MethodAmbiguity)
		}
	}

	if date, ok := r.tryDateParser(p.Text, ref.Location()); ok {
		return r.resolved(p, ref, date, MethodDateParse)
	}

	if date, ok := customParse(p, ref); ok {
		return r.resolved(p, ref, date, MethodCustom)
	}

	if p.Category == Vague {
		if offset, ok := vagueOffset(p.Text); ok {
			return r.resolved(p, ref, ref.Add(time.Duration(offset)*day), MethodVague)
		}
	}

	return ParsedTemporal{
		Phrase: p.Text,
		Age:    models.AgeUnknown,
		Method: MethodFailed,
	}
}

func (r *Resolver) tryDateParser(text string, loc *time.Location) (t time.Time, ok bool) {
	if r.dateParser == nil {
		return time.Time{}, false
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Debug("Date parser panicked", zap.String("text", text), zap.Any("panic", rec))
			t, ok = time.Time{}, false
		}
	}()
	parsed, err := r.dateParser(text, loc)
	if err != nil || parsed.IsZero() {
		return time.Time{}, false
	}
	return parsed, true
}

func (r *Resolver) resolved(p TimePhrase, ref, date time.Time, method string) ParsedTemporal {
	gap := DaysBetween(date, ref)
	return ParsedTemporal{
		Phrase:     p.Text,
		Date:       &date,
		DaysAgo:    &gap,
		Age:        ClassifyAge(gap),
		Confidence: confidence(p, method),
		Method:     method,
	}
}

// DaysBetween is the floor of whole days from date to ref. Positive means the
// date is in the past.
func DaysBetween(date, ref time.Time) int {
	return int(math.Floor(ref.Sub(date).Hours() / 24))
}

func ClassifyAge(gap int) models.AgeCategory {
	switch {
	case gap < 0:
		return models.AgeFuture
	case gap <= 30:
		return models.AgeRecent
	case gap <= 365:
		return models.AgeMedium
	default:
		return models.AgeDistant
	}
}

var (
	fourDigits = regexp.MustCompile(`\d{4}`)
	anyDigit   = regexp.MustCompile(`\d`)
)

var methodBonus = map[string]float64{
	MethodAmbiguity: 0.15,
	MethodDateParse: 0.2,
	MethodCustom:    0.15,
	MethodVague:     0.0,
	MethodFailed:    -0.5,
}

func confidence(p TimePhrase, method string) float64 {
	c := 0.5
	switch p.Category {
	case Absolute:
		c += 0.35
	case Relative:
		c += 0.25
	case Vague:
		c -= 0.2
	}
	c += methodBonus[method]

	switch {
	case fourDigits.MatchString(p.Text):
		c += 0.2
	case anyDigit.MatchString(p.Text):
		c += 0.1
	}

	switch p.Language {
	case English:
		c += 0.05
	case Hindi, Hinglish:
		c += 0.02
	}
	return math.Max(0, math.Min(1, c))
}

var dayWords = map[string]int{
	"today":     0,
	"aaj":       0,
	"abhi":      0,
	"yesterday": -1,
	"kal":       -1,
	"tomorrow":  1,
	"parso":     -2,
}

var periodDirection = map[string]int{
	"last": -1, "previous": -1, "pichle": -1,
	"this": 0, "is": 0,
	"next": 1, "agle": 1,
}

var (
	beforeYesterday = regexp.MustCompile(`before\s+yesterday`)
	afterTomorrow   = regexp.MustCompile(`after\s+tomorrow`)
	periodRe        = regexp.MustCompile(`\b(last|previous|pichle|this|is|next|agle)\s+(year|saal|sal|month|mahina|mahine|week|hafta|hafte|day|din|night)\b`)
	quantityRe      = regexp.MustCompile(`(\d+)\s+(years?|yrs?|months?|mos?|weeks?|wks?|days?|hours?|hrs?|minutes?|mins?|seconds?|secs?|saal|sal|mahine|mahina|hafte|hafta|din)\s+(ago|pehle|pahle|back|baad|later|after)`)
	numericDateRe   = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})\b`)
	yearRe          = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
)

var unitDays = map[string]int{
	"year": 365, "years": 365, "yr": 365, "yrs": 365, "saal": 365, "sal": 365,
	"month": 30, "months": 30, "mo": 30, "mos": 30, "mahina": 30, "mahine": 30,
	"week": 7, "weeks": 7, "wk": 7, "wks": 7, "hafta": 7, "hafte": 7,
	"day": 1, "days": 1, "din": 1, "night": 1,
	"hour": 0, "hours": 0, "hr": 0, "hrs": 0,
	"minute": 0, "minutes": 0, "min": 0, "mins": 0,
	"second": 0, "seconds": 0, "sec": 0, "secs": 0,
}

func customParse(p TimePhrase, ref time.Time) (time.Time, bool) {
	text := strings.ToLower(p.Text)
	offset := func(days int) time.Time { return ref.Add(time.Duration(days) * day) }

	if m := quantityRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		unit := unitDays[m[2]]
		if n < 0 || (unit > 0 && n > maxOffset/unit) {
			return time.Time{}, false
		}
		days := n * unit
		switch m[3] {
		case "baad", "later", "after":
			return offset(days), true
		default:
			return offset(-days), true
		}
	}

	if m := periodRe.FindStringSubmatch(text); m != nil {
		return offset(periodDirection[m[1]] * unitDays[m[2]]), true
	}

	switch {
	case beforeYesterday.MatchString(text):
		return offset(-2), true
	case afterTomorrow.MatchString(text):
		return offset(2), true
	}
	for _, w := range strings.Fields(text) {
		if d, ok := dayWords[w]; ok {
			return offset(d), true
		}
	}

	if m := numericDateRe.FindStringSubmatch(text); m != nil {
		if t, ok := numericDate(m[1], m[2], m[3], ref.Location()); ok {
			return t, true
		}
	}

	if p.Category == Absolute {
		if m := yearRe.FindStringSubmatch(text); m != nil {
			year, _ := strconv.Atoi(m[1])
			return time.Date(year, time.January, 1, 0, 0, 0, 0, ref.Location()), true
		}
	}
	return time.Time{}, false
}

// numericDate reads day/month/year, falling back to month/day/year when the
// first reading is not a real date.
func numericDate(a, b, y string, loc *time.Location) (time.Time, bool) {
	first, _ := strconv.Atoi(a)
	second, _ := strconv.Atoi(b)
	year, _ := strconv.Atoi(y)
	if len(y) == 2 {
		year += 2000
	}
	valid := func(d, m int) (time.Time, bool) {
		t := time.Date(year, time.Month(m), d, 0, 0, 0, 0, loc)
		if t.Day() != d || int(t.Month()) != m {
			return time.Time{}, false
		}
		return t, true
	}
	if t, ok := valid(first, second); ok {
		return t, true
	}
	return valid(second, first)
}

var vagueOffsets = []struct {
	re   *regexp.Regexp
	days int
}{
	{regexp.MustCompile(`(?i)long\s+time`), -730},
	{regexp.MustCompile(`(?i)when\s+i\s+was\s+(young|a\s+kid|a\s+child|small)`), -7300},
	{regexp.MustCompile(`(?i)years?\s+back`), -1825},
}

func vagueOffset(text string) (int, bool) {
	for _, v := range vagueOffsets {
		if v.re.MatchString(text) {
			return v.days, true
		}
	}
	return 0, false
}
