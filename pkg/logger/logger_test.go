package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockpool/pkg/config"
)

// capture builds a logger writing JSON entries into buf
func capture(buf *bytes.Buffer) *Logger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	return &Logger{zlog: zerolog.New(buf).With().Timestamp().Logger()}
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewSetsGlobalLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log := New(&config.Config{Env: "test", LogLevel: tt.level, LogFormat: "json"})
			require.NotNil(t, log)
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.input))
		})
	}
}

func TestLevelMethods(t *testing.T) {
	var buf bytes.Buffer
	log := capture(&buf)

	tests := []struct {
		level string
		fn    func(string)
	}{
		{"debug", log.Debug},
		{"info", log.Info},
		{"warn", log.Warn},
		{"error", log.Error},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf.Reset()
			tt.fn("pool rebuilt")

			entry := lastEntry(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "pool rebuilt", entry["message"])
		})
	}
}

func TestWithFieldsCarriesContext(t *testing.T) {
	var buf bytes.Buffer
	log := capture(&buf)

	log.WithFields(map[string]interface{}{
		"instrument": "000001.XSHE",
		"indicator":  "RSI_14",
		"layer":      2,
	}).Info("indicator computed")

	entry := lastEntry(t, &buf)
	assert.Equal(t, "000001.XSHE", entry["instrument"])
	assert.Equal(t, "RSI_14", entry["indicator"])
	assert.Equal(t, float64(2), entry["layer"])
}

func TestWithErrorAttachesError(t *testing.T) {
	var buf bytes.Buffer
	log := capture(&buf)

	log.WithError(errors.New("vendor fetch failed")).Error("bar refresh failed")

	entry := lastEntry(t, &buf)
	assert.Equal(t, "vendor fetch failed", entry["error"])
}

func TestNop(t *testing.T) {
	log := Nop()
	// Must not panic and must swallow everything
	log.WithField("instrument", "000001.XSHE").Info("discarded")
	log.WithError(errors.New("discarded")).Error("discarded")
}
