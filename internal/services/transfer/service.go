package transfer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bons/internal/crypto"
	"bons/internal/domain"
	"bons/internal/errors"
	"bons/internal/metrics"
	"bons/internal/publog"
)

// Config holds handshake timing.
type Config struct {
	// LockTTL bounds a donor handshake from lock to commit.
	LockTTL time.Duration
	// OfferTTL is how long after its timestamp a receiver accepts an offer.
	OfferTTL time.Duration
	// ClockSkew tolerates offers stamped slightly in the future.
	ClockSkew time.Duration
	// AttemptTimeout bounds one transport send or receive.
	AttemptTimeout time.Duration
	// FetchTimeout bounds one public log call.
	FetchTimeout time.Duration
}

// DefaultConfig returns the timings used when none are configured.
func DefaultConfig() Config {
	return Config{
		LockTTL:        120 * time.Second,
		OfferTTL:       90 * time.Second,
		ClockSkew:      15 * time.Second,
		AttemptTimeout: 15 * time.Second,
		FetchTimeout:   10 * time.Second,
	}
}

// AcceptWindow is the longest a donor lock must survive after its offer
// was stamped: a receiver whose clock trails by up to ClockSkew may accept
// until OfferTTL has passed on its own clock, and its ack then needs one
// attempt to arrive.
func (c Config) AcceptWindow() time.Duration {
	return c.OfferTTL + c.ClockSkew + c.AttemptTimeout
}

// Validate reports timings under which a receiver could still accept an
// offer after the donor lock lapsed, leaving both sides holding the voucher.
func (c Config) Validate() error {
	if c.LockTTL <= 0 || c.OfferTTL <= 0 || c.AttemptTimeout <= 0 || c.FetchTimeout <= 0 {
		return errors.ErrInvalidInput.New("transfer timings must be positive")
	}
	if c.ClockSkew < 0 {
		return errors.ErrInvalidInput.New("clock skew must not be negative")
	}
	if w := c.AcceptWindow(); w > c.LockTTL {
		return errors.ErrInvalidInput.Newf(
			"lock ttl %s is shorter than offer ttl + clock skew + attempt timeout (%s)", c.LockTTL, w)
	}
	return nil
}

// withDefaults fills unset timings. An unset LockTTL covers the accept
// window; an explicit LockTTL too short for it shrinks OfferTTL instead.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.OfferTTL <= 0 {
		c.OfferTTL = d.OfferTTL
	}
	if c.ClockSkew < 0 {
		c.ClockSkew = 0
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = d.AttemptTimeout
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = max(d.LockTTL, c.AcceptWindow())
	}
	if c.AcceptWindow() > c.LockTTL {
		c.OfferTTL = max(c.LockTTL-c.ClockSkew-c.AttemptTimeout, 0)
	}
	return c
}

// Deps are the collaborators of a Service. Codec, Cipher, Ledger and
// PublicLog are required.
type Deps struct {
	Codec     domain.ShareCodec
	Cipher    domain.ShareCipher
	Ledger    domain.Ledger
	PublicLog domain.PublicLog
	Now       func() time.Time
	Logger    zerolog.Logger
	Metrics   metrics.Recorder
	NewID     func() string
}

// Service runs both handshake roles for one device.
type Service struct {
	codec   domain.ShareCodec
	cipher  domain.ShareCipher
	ledger  domain.Ledger
	pub     domain.PublicLog
	now     func() time.Time
	log     zerolog.Logger
	metrics metrics.Recorder
	newID   func() string
	cfg     Config
}

// New returns a Service. Zero optional dependencies fall back to the wall
// clock, a discarding recorder and random UUIDs.
func New(d Deps, cfg Config) *Service {
	s := &Service{
		codec:   d.Codec,
		cipher:  d.Cipher,
		ledger:  d.Ledger,
		pub:     d.PublicLog,
		now:     d.Now,
		log:     d.Logger,
		metrics: d.Metrics,
		newID:   d.NewID,
		cfg:     cfg.withDefaults(),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Config returns the effective timings.
func (s *Service) Config() Config { return s.cfg }

// Result summarises a finished handshake.
type Result struct {
	VoucherID     domain.VoucherID
	Role          domain.Role
	Value         domain.Amount
	IssuerName    string
	TransferCount uint32
	Duration      time.Duration
}

// fetchWitness returns the verified witness record for id. Any reason the
// log cannot produce it now is ErrMissingWitnessShare.
func (s *Service) fetchWitness(ctx context.Context, id domain.VoucherID) (domain.WitnessRecord, error) {
	fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	rec, err := s.pub.Fetch(fctx, id)
	switch {
	case err == nil:
	case errors.ErrNotFound.Is(err),
		errors.ErrTransportUnavailable.Is(err),
		errors.ErrTransportTimeout.Is(err):
		return domain.WitnessRecord{}, errors.Wrapf(errors.ErrMissingWitnessShare, "%v", err)
	default:
		return domain.WitnessRecord{}, err
	}
	if rec.VoucherID != id {
		return domain.WitnessRecord{}, errors.ErrInvalidInput.New("witness record names another voucher")
	}
	if err := publog.VerifyRecord(rec); err != nil {
		return domain.WitnessRecord{}, err
	}
	return rec, nil
}

// appendEvent records ev on the public log. Failure is logged and
// otherwise ignored: the local commit already happened.
func (s *Service) appendEvent(ctx context.Context, id domain.VoucherID, kind domain.EventKind, count uint32) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FetchTimeout)
	defer cancel()

	ev := domain.AuditEvent{
		ID:            s.newID(),
		VoucherID:     id,
		Kind:          kind,
		TransferCount: count,
		At:            s.now().UTC(),
	}
	if err := s.pub.Append(ctx, ev); err != nil {
		s.log.Warn().Err(err).
			Str("voucher", crypto.VoucherFingerprint(id)).
			Str("event", string(kind)).
			Msg("audit event not appended")
	}
}

// release drops the lock after a failure. A release error is logged: the
// lock still expires on its own.
func (s *Service) release(id domain.VoucherID, role domain.Role) {
	if err := s.ledger.Cancel(id); err != nil {
		s.log.Error().Err(err).
			Str("voucher", crypto.VoucherFingerprint(id)).
			Str("role", role.String()).
			Msg("lock release failed")
	}
}

func (s *Service) logState(id domain.VoucherID, role domain.Role, state string) *zerolog.Event {
	return s.log.Debug().
		Str("voucher", crypto.VoucherFingerprint(id)).
		Str("role", role.String()).
		Str("state", state)
}

// outcome maps a handshake error to a metrics label.
func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeCommitted
	case errors.ErrDeclined.Is(err):
		return metrics.OutcomeDeclined
	case errors.ErrCancelled.Is(err):
		return metrics.OutcomeCancelled
	case errors.ErrExpired.Is(err), errors.ErrOfferStale.Is(err):
		return metrics.OutcomeExpired
	}
	return metrics.OutcomeFailed
}
