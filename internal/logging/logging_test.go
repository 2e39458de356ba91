package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("info"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestContextLoggers(t *testing.T) {
	var buf bytes.Buffer
	l := WithTenant(WithComponent(newLogger(&buf, "debug"), "queue"), "shop-1", "tech-1")
	l.Debug().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "queue", line["component"])
	assert.Equal(t, "shop-1", line["tenant_id"])
	assert.Equal(t, "tech-1", line["actor_id"])
	assert.Equal(t, "debug", line["level"])
	assert.Contains(t, line, "time")
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "warn")
	l.Info().Msg("quiet")
	assert.Zero(t, buf.Len())
	l.Warn().Msg("loud")
	assert.NotZero(t, buf.Len())
}

func TestNewWritesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inspectd.log")
	l, cleanup, err := New("info", path)
	require.NoError(t, err)
	l.Info().Msg("to file")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestNewBadLogFile(t *testing.T) {
	_, _, err := New("info", filepath.Join(t.TempDir(), "missing", "dir", "x.log"))
	assert.Error(t, err)
}
