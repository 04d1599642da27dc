package app

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"bons/internal/errors"
	"bons/internal/logging"
	"bons/internal/services/transfer"
)

// Store backends.
const (
	StoreLevelDB = "leveldb"
	StoreFile    = "file"
	StoreMemory  = "memory"
)

// ConfigFile is the name of the optional config file inside Home.
const ConfigFile = "config.toml"

// Config holds runtime wiring options for building the app.
type Config struct {
	Home         string // state directory, e.g. $HOME/.bons
	Store        string // leveldb | file | memory
	Passphrase   string // seals the file store; unused by other backends
	PublicLogURL string // e.g. http://127.0.0.1:8080; empty keeps an in-process log
	LogLevel     zerolog.Level
	Transfer     transfer.Config
	HTTP         *http.Client // optional; defaults to a client with FetchTimeout
}

// DefaultConfig returns the defaults for home.
func DefaultConfig(home string) Config {
	return Config{
		Home:         home,
		Store:        StoreLevelDB,
		PublicLogURL: "http://127.0.0.1:8080",
		LogLevel:     zerolog.InfoLevel,
		Transfer:     transfer.DefaultConfig(),
	}
}

// DefaultHome is $BONS_HOME or ~/.bons.
func DefaultHome() (string, error) {
	if h := strings.TrimSpace(os.Getenv("BONS_HOME")); h != "" {
		return h, nil
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".bons"), nil
}

type fileConfig struct {
	Store          string `toml:"store"`
	PublicLog      string `toml:"public_log"`
	LockTTL        string `toml:"lock_ttl"`
	OfferTTL       string `toml:"offer_ttl"`
	AttemptTimeout string `toml:"attempt_timeout"`
	FetchTimeout   string `toml:"fetch_timeout"`
	ClockSkew      string `toml:"clock_skew"`
	LogLevel       string `toml:"log_level"`
}

// LoadConfig overlays the TOML file at path onto cfg. Keys absent from the
// file keep their value in cfg; a missing file is not an error.
func LoadConfig(path string, cfg Config) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, errors.Wrapf(errors.ErrInvalidInput, "load config %s: %v", path, err)
	}

	if meta.IsDefined("store") {
		switch s := strings.ToLower(strings.TrimSpace(raw.Store)); s {
		case StoreLevelDB, StoreFile, StoreMemory:
			cfg.Store = s
		default:
			return Config{}, errors.ErrInvalidInput.Newf("store %q: want leveldb, file or memory", raw.Store)
		}
	}

	if meta.IsDefined("public_log") {
		cfg.PublicLogURL = strings.TrimSpace(raw.PublicLog)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"lock_ttl", raw.LockTTL, &cfg.Transfer.LockTTL},
		{"offer_ttl", raw.OfferTTL, &cfg.Transfer.OfferTTL},
		{"attempt_timeout", raw.AttemptTimeout, &cfg.Transfer.AttemptTimeout},
		{"fetch_timeout", raw.FetchTimeout, &cfg.Transfer.FetchTimeout},
		{"clock_skew", raw.ClockSkew, &cfg.Transfer.ClockSkew},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, errors.Wrapf(errors.ErrInvalidInput, "parse %s: %v", d.key, err)
		}
		if v < 0 {
			return Config{}, errors.ErrInvalidInput.Newf("%s must not be negative", d.key)
		}
		*d.dst = v
	}
	if !meta.IsDefined("lock_ttl") {
		cfg.Transfer.LockTTL = max(cfg.Transfer.LockTTL, cfg.Transfer.AcceptWindow())
	}
	if err := cfg.Transfer.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "load config %s", path)
	}

	if meta.IsDefined("log_level") {
		lvl, ok := logging.ParseLevel(raw.LogLevel)
		if !ok {
			return Config{}, errors.ErrInvalidInput.Newf("log_level %q", raw.LogLevel)
		}
		cfg.LogLevel = lvl
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.ErrInvalidInput.Newf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
