package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOutput("debug", "json", &buf)
	require.NoError(t, err)

	log.WithFields(logrus.Fields{FieldTicker: "AAPL", FieldPeriod: "2024q1"}).Debug("fetched")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "fetched", entry["msg"])
	assert.Equal(t, "AAPL", entry[FieldTicker])
	assert.Equal(t, "2024q1", entry[FieldPeriod])
	assert.Equal(t, "debug", entry["level"])
}

func TestNewWithOutputText(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOutput("warn", "text", &buf)
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.Contains(out, "shown"), "warn entry missing: %q", out)
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOutput("chatty", "text", &buf)
	assert.Error(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}
