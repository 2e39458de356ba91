package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarnings(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"thin brake pads", "front brake pads at 2mm", "brake pad thickness 2.0mm is below the 3mm minimum"},
		{"brake pads at limit", "front brake pads at 3mm", ""},
		{"shallow tread in thirty-seconds", "rear tires at 3/32", "tire tread 3/32in is below the 4/32in minimum"},
		{"tread at limit", "rear tires at 4/32", ""},
		{"shallow tread in millimeters", "tire tread 2 mm", "tire tread 2.0mm is below the 4/32in minimum"},
		{"deep tread in millimeters", "tire tread 5 mm", ""},
		{"low battery", "battery 11.8 volts, failing", "battery voltage 11.8V is outside the 12.0-14.5V range"},
		{"overcharged battery", "battery reading 15.2v", "battery voltage 15.2V is outside the 12.0-14.5V range"},
		{"healthy battery", "battery reads 12.6 volts", ""},
		{"no component", "2mm of something", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse(tt.text)
			require.NoError(t, err)
			got := Warnings(f, tt.text)
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, []string{tt.want}, got)
		})
	}
}
