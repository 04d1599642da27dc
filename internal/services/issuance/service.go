package issuance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bons/internal/crypto"
	"bons/internal/domain"
	"bons/internal/errors"
	"bons/internal/publog"
)

// Ledger is the slice of the transfer ledger issuance needs.
type Ledger interface {
	domain.Ledger
	Sweep(now time.Time) ([]domain.VoucherID, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Identity  domain.IdentityService
	Codec     domain.ShareCodec
	Ledger    Ledger
	PublicLog domain.PublicLog
	Now       func() time.Time
	Logger    zerolog.Logger
	NewID     func() string
	// LogTimeout bounds each public log call. Zero means ten seconds.
	LogTimeout time.Duration
}

// Service issues and retires vouchers.
type Service struct {
	ids     domain.IdentityService
	codec   domain.ShareCodec
	ledger  Ledger
	pub     domain.PublicLog
	now     func() time.Time
	log     zerolog.Logger
	newID   func() string
	timeout time.Duration
}

// New returns a Service over d.
func New(d Deps) *Service {
	s := &Service{
		ids:     d.Identity,
		codec:   d.Codec,
		ledger:  d.Ledger,
		pub:     d.PublicLog,
		now:     d.Now,
		log:     d.Logger,
		newID:   d.NewID,
		timeout: d.LogTimeout,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.timeout <= 0 {
		s.timeout = 10 * time.Second
	}
	return s
}

// Issue creates a voucher worth value minor units, valid for validity
// (zero never expires). The witness record is published before anything
// is stored, so a voucher that exists locally is always transferable.
func (s *Service) Issue(
	ctx context.Context,
	passphrase string,
	value domain.Amount,
	validity time.Duration,
) (domain.Voucher, error) {
	if value == 0 {
		return domain.Voucher{}, errors.ErrInvalidInput.New("voucher value must be positive")
	}
	if validity < 0 {
		return domain.Voucher{}, errors.ErrInvalidInput.New("validity must not be negative")
	}
	issuer, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return domain.Voucher{}, err
	}
	defer crypto.Wipe(issuer.EdPriv[:])

	scalar, err := s.codec.NewScalar()
	if err != nil {
		return domain.Voucher{}, err
	}
	defer crypto.Wipe(scalar)
	id, err := s.codec.PublicKey(scalar)
	if err != nil {
		return domain.Voucher{}, err
	}
	set, err := s.codec.Split(scalar)
	if err != nil {
		return domain.Voucher{}, err
	}
	defer func() {
		crypto.WipeShare(&set.Anchor)
		crypto.WipeShare(&set.Traveler)
		crypto.WipeShare(&set.Witness)
	}()

	now := s.now().UTC().Truncate(time.Second)
	v := domain.Voucher{
		ID:              id,
		Value:           value,
		IssuerPublicKey: issuer.EdPub,
		IssuerName:      issuer.Name,
		CreatedAt:       now,
		Status:          domain.StatusActive,
		TravelerShare:   &set.Traveler,
		WitnessShare:    &set.Witness,
		AnchorShare:     &set.Anchor,
	}
	rec := domain.WitnessRecord{
		VoucherID:       id,
		Witness:         set.Witness,
		Value:           value,
		IssuerPublicKey: issuer.EdPub,
		IssuerName:      issuer.Name,
		CreatedAt:       now.Unix(),
	}
	if validity > 0 {
		v.ExpiresAt = now.Add(validity)
		rec.ExpiresAt = v.ExpiresAt.Unix()
	}
	rec, err = publog.SignRecord(rec, issuer)
	if err != nil {
		return domain.Voucher{}, err
	}

	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.pub.Publish(pctx, rec); err != nil {
		return domain.Voucher{}, errors.Wrap(err, "publish witness record")
	}
	if err := s.ledger.Put(v); err != nil {
		return domain.Voucher{}, err
	}

	s.appendEvent(ctx, id, domain.EventIssued, 0)
	s.log.Info().
		Str("voucher", crypto.VoucherFingerprint(id)).
		Str("value", value.Display()).
		Time("expires", v.ExpiresAt).
		Msg("voucher issued")
	return v.Copy(), nil
}

// redeemTTL bounds the lock Redeem holds while it proves and burns.
const redeemTTL = 30 * time.Second

// Redeem burns a voucher that has come back to its issuer. The anchor and
// the returned traveler share must rebuild the voucher key.
func (s *Service) Redeem(ctx context.Context, id domain.VoucherID) (domain.Voucher, error) {
	challenge, err := crypto.NewChallenge()
	if err != nil {
		return domain.Voucher{}, err
	}
	// The donor lock keeps a concurrent handshake off the voucher.
	locked, err := s.ledger.Lock(id, challenge, redeemTTL, domain.RoleDonor, nil)
	if err != nil {
		return domain.Voucher{}, err
	}
	defer func() {
		if err := s.ledger.Cancel(id); err != nil {
			s.log.Error().Err(err).Str("voucher", crypto.VoucherFingerprint(id)).Msg("lock release failed")
		}
	}()

	v := locked.Voucher
	if v.AnchorShare == nil {
		return domain.Voucher{}, errors.ErrInvalidState.New("no anchor share: not issued here")
	}
	scalar, err := s.codec.Combine(id, v.AnchorShare, v.TravelerShare, nil)
	if err != nil {
		return domain.Voucher{}, err
	}
	crypto.Wipe(scalar)

	crypto.WipeShare(v.TravelerShare)
	crypto.WipeShare(v.AnchorShare)
	crypto.WipeShare(v.WitnessShare)
	v.TravelerShare, v.AnchorShare, v.WitnessShare = nil, nil, nil
	v.Status = domain.StatusBurned
	if err := s.ledger.Put(v); err != nil {
		return domain.Voucher{}, err
	}

	s.appendEvent(ctx, id, domain.EventRedeemed, v.TransferCount)
	s.log.Info().
		Str("voucher", crypto.VoucherFingerprint(id)).
		Str("value", v.Value.Display()).
		Uint32("transfers", v.TransferCount).
		Msg("voucher redeemed")
	return v, nil
}

// Sweep revokes every local voucher whose validity has ended and returns
// their ids.
func (s *Service) Sweep(ctx context.Context) ([]domain.VoucherID, error) {
	ids, err := s.ledger.Sweep(s.now())
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		v, _, err := s.ledger.Get(id)
		if err != nil {
			return ids, err
		}
		s.appendEvent(ctx, id, domain.EventRevoked, v.TransferCount)
	}
	if len(ids) > 0 {
		s.log.Info().Int("count", len(ids)).Msg("expired vouchers revoked")
	}
	return ids, nil
}

func (s *Service) appendEvent(ctx context.Context, id domain.VoucherID, kind domain.EventKind, count uint32) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
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
