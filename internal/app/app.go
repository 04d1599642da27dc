package app

import (
	"time"

	"github.com/rs/zerolog"

	"bons/internal/domain"
)

// App is an opened device: its wiring plus the settings it was built from.
type App struct {
	*Wire
	Config Config
	Log    zerolog.Logger
}

// Open builds the device from cfg and clears transfer locks left expired
// by an earlier crash.
func Open(cfg Config, logger zerolog.Logger, pub domain.PublicLog) (*App, error) {
	w, err := NewWire(cfg, logger, pub)
	if err != nil {
		return nil, err
	}
	n, err := w.Ledger.Recover(time.Now())
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	if n > 0 {
		logger.Info().Int("locks", n).Msg("expired transfer locks cleared")
	}
	return &App{Wire: w, Config: cfg, Log: logger}, nil
}
