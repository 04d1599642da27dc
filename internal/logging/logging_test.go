package logging_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bons/internal/logging"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]struct {
		lvl zerolog.Level
		ok  bool
	}{
		"":        {zerolog.InfoLevel, false},
		"debug":   {zerolog.DebugLevel, true},
		" WARN ":  {zerolog.WarnLevel, true},
		"warning": {zerolog.WarnLevel, true},
		"off":     {zerolog.Disabled, true},
		"loud":    {zerolog.InfoLevel, false},
	}
	for raw, want := range cases {
		lvl, ok := logging.ParseLevel(raw)
		assert.Equal(t, want.ok, ok, raw)
		assert.Equal(t, want.lvl, lvl, raw)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(logging.EnvLogLevel, "error")
	t.Setenv(logging.EnvLogNoColor, "true")
	t.Setenv(logging.EnvLogTimestamp, "nope")

	cfg := logging.DefaultConfig("bons", logging.ProfileRuntime)
	logging.ApplyEnv(&cfg)
	assert.Equal(t, zerolog.ErrorLevel, cfg.Level)
	assert.True(t, cfg.NoColor)
	assert.True(t, cfg.Timestamp)
}

func TestNewWritesAtLevel(t *testing.T) {
	t.Setenv(logging.EnvLogLevel, "")
	var buf bytes.Buffer
	cfg := logging.DefaultConfig("bons", logging.ProfileTest)
	cfg.Out = &buf
	cfg.Level = zerolog.InfoLevel
	log := logging.New(cfg)

	log.Debug().Msg("hidden")
	log.Info().Str("voucher", "ab12").Msg("visible")

	out := buf.String()
	require.Contains(t, out, "visible")
	assert.Contains(t, out, "voucher=ab12")
	assert.NotContains(t, out, "hidden")
}
