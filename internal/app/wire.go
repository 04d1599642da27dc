package app

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"bons/internal/domain"
	"bons/internal/errors"
	"bons/internal/ledger"
	"bons/internal/metrics"
	"bons/internal/publog"
	"bons/internal/sealing"
	identitysvc "bons/internal/services/identity"
	issuancesvc "bons/internal/services/issuance"
	transfersvc "bons/internal/services/transfer"
	"bons/internal/shares"
	"bons/internal/store"
)

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	KV        store.KV
	Ledger    *ledger.Ledger
	Identity  domain.IdentityService
	PublicLog domain.PublicLog
	Transfer  *transfersvc.Service
	Issuance  *issuancesvc.Service
	HTTP      *http.Client
}

// NewWire constructs the dependency graph from cfg. pub, when not nil,
// replaces the public log named in cfg.
func NewWire(cfg Config, logger zerolog.Logger, pub domain.PublicLog) (*Wire, error) {
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "create home %s: %v", cfg.Home, err)
	}

	kv, err := openKV(cfg)
	if err != nil {
		return nil, err
	}
	l := ledger.New(kv, nil)

	// Ensure an HTTP client is available for outbound calls
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Transfer.FetchTimeout}
	}

	if pub == nil {
		if cfg.PublicLogURL == "" {
			logger.Warn().Msg("no public log configured; witness records stay in this process")
			pub = publog.NewMemory()
		} else {
			pub = publog.NewHTTP(cfg.PublicLogURL, httpClient)
		}
	}

	codec := shares.NewCodec()
	ids := identitysvc.New(store.NewIdentityFileStore(cfg.Home))
	xfer := transfersvc.New(transfersvc.Deps{
		Codec:     codec,
		Cipher:    sealing.New(),
		Ledger:    l,
		PublicLog: pub,
		Logger:    logger.With().Str("component", "transfer").Logger(),
		Metrics:   metrics.Prometheus{},
	}, cfg.Transfer)
	iss := issuancesvc.New(issuancesvc.Deps{
		Identity:   ids,
		Codec:      codec,
		Ledger:     l,
		PublicLog:  pub,
		Logger:     logger.With().Str("component", "issuance").Logger(),
		LogTimeout: cfg.Transfer.FetchTimeout,
	})

	return &Wire{
		KV:        kv,
		Ledger:    l,
		Identity:  ids,
		PublicLog: pub,
		Transfer:  xfer,
		Issuance:  iss,
		HTTP:      httpClient,
	}, nil
}

// Close releases the store.
func (w *Wire) Close() error { return w.KV.Close() }

func openKV(cfg Config) (store.KV, error) {
	switch cfg.Store {
	case StoreLevelDB, "":
		return store.OpenLevelKV(filepath.Join(cfg.Home, "ledger"))
	case StoreFile:
		return store.OpenFileKV(cfg.Home, cfg.Passphrase)
	case StoreMemory:
		return store.NewMemKV(), nil
	}
	return nil, errors.ErrInvalidInput.Newf("unknown store %q", cfg.Store)
}
