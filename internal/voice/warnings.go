package voice

import (
	"fmt"
	"strings"

	"github.com/vbonduro/inspectflow/internal/domain"
)

// Advisory limits. Crossing one produces a warning; it never rejects a note.
const (
	MinBrakePadMM      = 3.0
	MinTreadInches     = 4.0 / 32.0
	MinBatteryVolts    = 12.0
	MaxBatteryVolts    = 14.5
	millimetersPerInch = 25.4
)

// Warnings checks a finding against shop safety limits. rawText is consulted
// for readings the finding has no unit for, such as battery voltage.
func Warnings(f domain.Finding, rawText string) []string {
	var out []string

	m := f.Measurement
	switch {
	case strings.Contains(f.Component, "brake") && m != nil && m.Unit == domain.UnitMillimeters:
		if m.Value < MinBrakePadMM {
			out = append(out, fmt.Sprintf("brake pad thickness %.1fmm is below the %.0fmm minimum", m.Value, MinBrakePadMM))
		}
	case strings.Contains(f.Component, "tire") && m != nil:
		if tread, ok := treadInches(*m); ok && tread < MinTreadInches {
			out = append(out, fmt.Sprintf("tire tread %s is below the 4/32in minimum", describeTread(*m)))
		}
	case strings.Contains(f.Component, "battery"):
		if volts, ok := extractVoltage(Normalize(rawText)); ok && (volts < MinBatteryVolts || volts > MaxBatteryVolts) {
			out = append(out, fmt.Sprintf("battery voltage %.1fV is outside the %.1f-%.1fV range", volts, MinBatteryVolts, MaxBatteryVolts))
		}
	}

	return out
}

func treadInches(m domain.Measurement) (float64, bool) {
	switch m.Unit {
	case domain.UnitInches:
		return m.Value, true
	case domain.UnitMillimeters:
		return m.Value / millimetersPerInch, true
	}
	return 0, false
}

func describeTread(m domain.Measurement) string {
	if m.Unit == domain.UnitMillimeters {
		return fmt.Sprintf("%.1fmm", m.Value)
	}
	return fmt.Sprintf("%.0f/32in", m.Value*32)
}
