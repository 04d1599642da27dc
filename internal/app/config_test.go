package app_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bons/internal/app"
	"bons/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), app.ConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigMissingFileKeepsDefaults(t *testing.T) {
	def := app.DefaultConfig("/tmp/bons")
	cfg, err := app.LoadConfig(filepath.Join(t.TempDir(), "absent.toml"), def)
	require.NoError(t, err)
	assert.Equal(t, def, cfg)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
store = "file"
public_log = "http://log.example:9000"
offer_ttl = "90s"
attempt_timeout = "5s"
log_level = "debug"
`)
	def := app.DefaultConfig("/tmp/bons")
	cfg, err := app.LoadConfig(path, def)
	require.NoError(t, err)

	assert.Equal(t, app.StoreFile, cfg.Store)
	assert.Equal(t, "http://log.example:9000", cfg.PublicLogURL)
	assert.Equal(t, 90*time.Second, cfg.Transfer.OfferTTL)
	assert.Equal(t, 5*time.Second, cfg.Transfer.AttemptTimeout)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)

	assert.Equal(t, def.Transfer.LockTTL, cfg.Transfer.LockTTL)
	assert.Equal(t, def.Transfer.FetchTimeout, cfg.Transfer.FetchTimeout)
}

func TestLoadConfigEmptyPublicLog(t *testing.T) {
	cfg, err := app.LoadConfig(writeConfig(t, `public_log = ""`), app.DefaultConfig("/tmp/bons"))
	require.NoError(t, err)
	assert.Empty(t, cfg.PublicLogURL)
}

func TestLoadConfigRejects(t *testing.T) {
	for name, body := range map[string]string{
		"store":    `store = "postgres"`,
		"duration": `offer_ttl = "two minutes"`,
		"negative": `clock_skew = "-1s"`,
		"level":    `log_level = "shouty"`,
		"unknown":  `colour = "blue"`,
		"syntax":   `store = `,
	} {
		_, err := app.LoadConfig(writeConfig(t, body), app.DefaultConfig("/tmp/bons"))
		assert.True(t, errors.ErrInvalidInput.Is(err), "%s: %v", name, err)
	}
}

func TestLoadConfigLockOutlastsAcceptWindow(t *testing.T) {
	cfg, err := app.LoadConfig(writeConfig(t, `
offer_ttl = "150s"
clock_skew = "20s"
`), app.DefaultConfig("/tmp/bons"))
	require.NoError(t, err)
	assert.Equal(t, 150*time.Second+20*time.Second+cfg.Transfer.AttemptTimeout, cfg.Transfer.LockTTL)
	require.NoError(t, cfg.Transfer.Validate())
}

func TestLoadConfigRejectsShortLock(t *testing.T) {
	_, err := app.LoadConfig(writeConfig(t, `
lock_ttl = "100s"
offer_ttl = "90s"
`), app.DefaultConfig("/tmp/bons"))
	assert.True(t, errors.ErrInvalidInput.Is(err), "got %v", err)
}
