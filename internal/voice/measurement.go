package voice

import (
	"math"
	"regexp"
	"strconv"

	"github.com/vbonduro/inspectflow/internal/domain"
)

const number = `(\d+(?:\.\d+)?)`

type unitPattern struct {
	unit    domain.Unit
	pattern *regexp.Regexp
}

// unitPatterns are tried in order; the first match wins.
var unitPatterns = []unitPattern{
	{domain.UnitMillimeters, regexp.MustCompile(number + `\s*(?:mm|millimeters?|millimetres?|mil)\b`)},
	{domain.UnitInches, regexp.MustCompile(number + `\s*(?:inches|inch|in\.|")`)},
	{domain.UnitPercent, regexp.MustCompile(number + `\s*(?:%|percent|per cent)`)},
	{domain.UnitPSI, regexp.MustCompile(number + `\s*(?:psi|pounds)\b`)},
}

var (
	fractionPattern      = regexp.MustCompile(`(\d+)\s*/\s*(\d+)(?:\s*(?:nds|ths|s))?(?:\s+(?:of\s+an?\s+)?(?:inch|inches|in)\b)?`)
	thirtySecondsPattern = regexp.MustCompile(`\b(\d+|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)\s+thirty[- ]seconds?\b`)
	voltagePattern       = regexp.MustCompile(number + `\s*(?:v|volts?)\b`)
)

var numberWords = map[string]float64{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

func extractMeasurement(text string) *domain.Measurement {
	for _, up := range unitPatterns {
		if v, ok := findNumber(up.pattern, text); ok {
			return &domain.Measurement{Value: round(v), Unit: up.unit}
		}
	}

	if m := fractionPattern.FindStringSubmatch(text); m != nil {
		num, _ := strconv.ParseFloat(m[1], 64)
		den, _ := strconv.ParseFloat(m[2], 64)
		if den != 0 {
			return &domain.Measurement{Value: round(num / den), Unit: domain.UnitInches}
		}
	}

	if m := thirtySecondsPattern.FindStringSubmatch(text); m != nil {
		n, ok := numberWords[m[1]]
		if !ok {
			n, _ = strconv.ParseFloat(m[1], 64)
		}
		return &domain.Measurement{Value: round(n / 32), Unit: domain.UnitInches}
	}

	return nil
}

// findNumber returns the first match of p whose number is not the tail of a
// fraction such as the 32 in "4/32 inch".
func findNumber(p *regexp.Regexp, text string) (float64, bool) {
	for _, loc := range p.FindAllStringSubmatchIndex(text, -1) {
		start := loc[2]
		if start > 0 {
			prev := text[start-1]
			if prev == '/' || prev == '.' || (prev >= '0' && prev <= '9') {
				continue
			}
		}
		v, err := strconv.ParseFloat(text[loc[2]:loc[3]], 64)
		if err != nil {
			continue
		}
		return v, true
	}
	return 0, false
}

func extractVoltage(text string) (float64, bool) {
	return findNumber(voltagePattern, text)
}

func round(v float64) float64 {
	return math.Round(v*10000) / 10000
}
