package voice

import (
	"context"
	"strings"

	"github.com/vbonduro/inspectflow/internal/domain"
)

// ExtractionPrompt asks a language model to restate a note in the line format
// ParseExtraction reads.
const ExtractionPrompt = `You convert automotive inspection notes into one structured line.
Respond with exactly one line in the format:
component | condition | measurement | action
- component: the automotive part, with position (front/rear/left/right/driver/passenger) if stated
- condition: one of good, fair, poor, needs_immediate, or none
- measurement: a number followed by one of mm, inches, percent, psi, or none
- action: one of replace, inspect, monitor, top_off, rotate, or none
Do not add any other text.

Note: `

// Refiner is an optional second opinion for notes the heuristic parser scores
// poorly on.
type Refiner interface {
	Refine(ctx context.Context, text string) (domain.Finding, error)
}

// ParseExtraction reads the first "component | condition | measurement |
// action" line of a model response. The finding is rescored with Score so it
// is comparable to Parse output.
func ParseExtraction(raw string) (domain.Finding, bool) {
	for _, line := range strings.Split(raw, "\n") {
		if f, ok := ParseExtractionLine(line); ok {
			return f, true
		}
	}
	return domain.Finding{}, false
}

// extractionHeader is the column list from ExtractionPrompt. Models sometimes
// echo it back ahead of the real row.
var extractionHeader = []string{"component", "condition", "measurement", "action"}

// ParseExtractionLine returns false for lines that are not pipe-separated
// extraction rows, such as preamble or an echoed header.
func ParseExtractionLine(line string) (domain.Finding, bool) {
	line = Normalize(line)
	if !strings.Contains(line, "|") {
		return domain.Finding{}, false
	}

	parts := strings.Split(line, "|")
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	for n := range parts {
		parts[n] = strings.TrimSpace(parts[n])
		if parts[n] == "none" || parts[n] == "n/a" || parts[n] == "-" {
			parts[n] = ""
		}
	}

	if isHeader(parts) {
		return domain.Finding{}, false
	}

	var f domain.Finding
	if parts[0] != "" {
		f.Component = extractComponent(parts[0])
	}
	if parts[1] != "" {
		if c, err := domain.ParseCondition(strings.ReplaceAll(parts[1], " ", "_")); err == nil {
			f.ConditionCandidate = c
		} else {
			f.ConditionCandidate = extractCondition(parts[1])
		}
	}
	if parts[2] != "" {
		f.Measurement = extractMeasurement(parts[2])
	}
	if parts[3] != "" {
		f.Action = parseAction(parts[3])
	}
	// An unrecognised part name is kept only when the row says something
	// else recognisable about it.
	if f.Component == "" && parts[0] != "" && (f.ConditionCandidate != "" || f.Measurement != nil || f.Action != "") {
		f.Component = parts[0]
	}

	f.Confidence = Score(f)
	return f, true
}

func isHeader(parts []string) bool {
	for n, label := range extractionHeader {
		if parts[n] != "" && parts[n] != label {
			return false
		}
	}
	return parts[0] == extractionHeader[0]
}

func parseAction(s string) domain.Action {
	switch a := domain.Action(strings.ReplaceAll(s, " ", "_")); a {
	case domain.ActionReplace, domain.ActionInspect, domain.ActionMonitor, domain.ActionTopOff, domain.ActionRotate:
		return a
	}
	return extractAction(s)
}
