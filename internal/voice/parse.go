package voice

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vbonduro/inspectflow/internal/domain"
)

// Field weights for the confidence heuristic.
const (
	weightComponent   = 0.4
	weightCondition   = 0.3
	weightMeasurement = 0.2
	weightAction      = 0.1
)

// Parse extracts a structured finding from a free-text inspection note.
// It is pure: the same text always yields the same finding. Text with no
// recognisable content yields an empty finding with zero confidence; only
// blank input is an error.
func Parse(text string) (domain.Finding, error) {
	normalized := Normalize(text)
	if normalized == "" {
		return domain.Finding{}, domain.Invalid("text", "must not be empty")
	}

	f := domain.Finding{
		Component:          extractComponent(normalized),
		ConditionCandidate: extractCondition(normalized),
		Measurement:        extractMeasurement(normalized),
		Action:             extractAction(normalized),
	}
	f.Confidence = Score(f)
	return f, nil
}

// Normalize lowercases text and collapses runs of whitespace.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func extractComponent(text string) string {
	for _, c := range components {
		loc := c.pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if pos := positionBefore(text, loc[0]); pos != "" {
			return pos + " " + c.label
		}
		return c.label
	}
	return ""
}

// positionBefore collects the position qualifiers found in the window that
// ends where the component match starts.
func positionBefore(text string, end int) string {
	start := max(end-positionWindow, 0)
	for start < end && !utf8.RuneStart(text[start]) {
		start++
	}
	// A window that opens mid-word drops the partial word, so the tail of
	// "upfront" is not read as "front".
	if start > 0 {
		if prev, _ := utf8.DecodeLastRuneInString(text[:start]); isWordRune(prev) {
			cut := strings.IndexFunc(text[start:end], func(r rune) bool { return !isWordRune(r) })
			if cut < 0 {
				return ""
			}
			start += cut
		}
	}

	var found []string
	for _, q := range positionPattern.FindAllString(text[start:end], -1) {
		if !slices.Contains(found, q) {
			found = append(found, q)
		}
	}
	return strings.Join(found, " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func extractCondition(text string) domain.Condition {
	stripped := negatedPoor.ReplaceAllString(text, " ")
	for _, b := range conditionBuckets {
		if b.pattern.MatchString(stripped) {
			return b.condition
		}
	}
	if stripped != text {
		return domain.ConditionFair
	}
	return ""
}

func extractAction(text string) domain.Action {
	for _, a := range actionPhrases {
		if a.pattern.MatchString(text) {
			return a.action
		}
	}
	return ""
}

// Score is the confidence heuristic: the weights of the fields present,
// divided by a quarter per present field, clamped to [0, 1]. It is a
// ranking signal, not a calibrated probability.
func Score(f domain.Finding) float64 {
	var sum float64
	var present int
	if f.Component != "" {
		sum += weightComponent
		present++
	}
	if f.ConditionCandidate != "" {
		sum += weightCondition
		present++
	}
	if f.Measurement != nil {
		sum += weightMeasurement
		present++
	}
	if f.Action != "" {
		sum += weightAction
		present++
	}
	if present == 0 {
		return 0
	}

	score := sum / (float64(present) * 0.25)
	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}
