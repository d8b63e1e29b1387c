package bot

import (
	"fmt"
	"strings"

	"github.com/xaenox/emotrack/internal/models"
	"github.com/xaenox/emotrack/internal/orchestrator"
	"github.com/xaenox/emotrack/internal/profile"
)

var timescaleTitles = map[models.Timescale]string{
	models.ShortTerm: "Short term",
	models.MidTerm:   "Mid term",
	models.LongTerm:  "Long term",
}

// escapeMarkdown escapes special characters for MarkdownV2
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func score(v float64) string {
	return escapeMarkdown(fmt.Sprintf("%.2f", v))
}

func emotionTag(label string) string {
	if label == models.NotApplicable {
		return escapeMarkdown(label)
	}
	return escapeMarkdown("#" + label)
}

func formatAnalysis(a *orchestrator.IncidentAnalysis) string {
	if a.Failed(orchestrator.ClassificationFailure) {
		return escapeMarkdown("I couldn't read any emotion in that message, so your profile is unchanged.")
	}

	var b strings.Builder
	top := a.Emotions.Top(3)
	tags := make([]string, len(top))
	for i, s := range top {
		tags[i] = fmt.Sprintf("%s %s", emotionTag(s.Label), score(s.Score))
	}
	fmt.Fprintf(&b, "*Emotions:* %s\n", strings.Join(tags, ", "))
	fmt.Fprintf(&b, "*Impact:* %s\n", score(a.ImpactScore))
	fmt.Fprintf(&b, "*When:* %s", escapeMarkdown(string(a.AgeCategory)))
	if a.DaysAgo != 0 {
		fmt.Fprintf(&b, " \\(%s days\\)", escapeMarkdown(fmt.Sprintf("%d", a.DaysAgo)))
	}
	b.WriteString("\n")
	if a.RecurrenceCount > 1 {
		fmt.Fprintf(&b, "*Mentioned:* %d times\n", a.RecurrenceCount)
	}
	fmt.Fprintf(&b, "\n_%s_", escapeMarkdown(a.Summary))
	return b.String()
}

func formatProfile(tops map[models.Timescale][]models.EmotionScore) string {
	var b strings.Builder
	b.WriteString("*Your emotional profile:*\n")
	for _, t := range models.Timescales {
		parts := make([]string, 0, len(tops[t]))
		for _, s := range tops[t] {
			if s.Label == models.NotApplicable {
				parts = append(parts, escapeMarkdown("not active yet"))
				continue
			}
			parts = append(parts, fmt.Sprintf("%s %s", emotionTag(s.Label), score(s.Score)))
		}
		fmt.Fprintf(&b, "\n*%s:* %s", timescaleTitles[t], strings.Join(parts, ", "))
	}
	return b.String()
}

func formatStatus(report map[models.Timescale]profile.ActivationInfo, messageCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Messages analysed:* %d\n", messageCount)
	for _, t := range models.Timescales {
		if t == models.ShortTerm {
			continue
		}
		info := report[t]
		if info.Active {
			fmt.Fprintf(&b, "\n*%s:* active \\(by %s\\)", timescaleTitles[t], escapeMarkdown(info.ActivatedBy))
			continue
		}
		fmt.Fprintf(&b, "\n*%s:* %s days or %s messages to go",
			timescaleTitles[t],
			escapeMarkdown(fmt.Sprintf("%d", info.DaysRemaining)),
			escapeMarkdown(fmt.Sprintf("%d", info.MessagesRemaining)))
	}
	return b.String()
}

func formatFrequent(freq []profile.FrequencyScore) string {
	var b strings.Builder
	b.WriteString("*Your most frequent emotions:*\n")
	for _, f := range freq {
		fmt.Fprintf(&b, "\n%s × %d, avg %s", emotionTag(f.Label), f.Count, score(f.AverageScore))
	}
	return b.String()
}

func formatHistory(records []*models.AnalysisRecord) string {
	var b strings.Builder
	b.WriteString("*Your recent messages:*\n")
	for _, r := range records {
		fmt.Fprintf(&b, "\n*%s* %s, impact %s\n",
			escapeMarkdown(r.CreatedAt.Format("2006-01-02 15:04")),
			emotionTag(r.Current.ShortTerm.Label),
			score(r.ImpactScore))
		fmt.Fprintf(&b, "_%s_\n", escapeMarkdown(r.Message))
	}
	return b.String()
}
