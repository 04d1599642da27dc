package transfer

import (
	"context"
	"crypto/ed25519"
	"sync"
	"time"

	"bons/internal/crypto"
	"bons/internal/domain"
	"bons/internal/errors"
	"bons/internal/wire"
)

// ReceiverState is the progress of the receiving side of a handshake.
type ReceiverState int

const (
	ReceiverIdle ReceiverState = iota
	ReceiverOfferScanned
	ReceiverValidating
	ReceiverAccepted
	ReceiverAckSent
	ReceiverDone
	ReceiverDeclined
	ReceiverFailed
)

var receiverStateNames = [...]string{
	ReceiverIdle:         "idle",
	ReceiverOfferScanned: "offer_scanned",
	ReceiverValidating:   "validating",
	ReceiverAccepted:     "accepted",
	ReceiverAckSent:      "ack_sent",
	ReceiverDone:         "done",
	ReceiverDeclined:     "declined",
	ReceiverFailed:       "failed",
}

func (s ReceiverState) String() string {
	if int(s) < len(receiverStateNames) {
		return receiverStateNames[s]
	}
	return "unknown"
}

// Details is what a receiver shows its user before accepting.
type Details struct {
	VoucherID         domain.VoucherID
	Value             domain.Amount
	IssuerName        string
	IssuerPublicKey   domain.Ed25519Public
	IssuerFingerprint domain.Fingerprint
	CreatedAt         time.Time
	ExpiresAt         time.Time
	OfferExpiresAt    time.Time
}

// ReceiverSession is one receiving handshake. It is safe for concurrent
// use.
type ReceiverSession struct {
	svc     *Service
	offer   domain.Offer
	record  domain.WitnessRecord
	started time.Time

	mu       sync.Mutex
	state    ReceiverState
	traveler domain.Share
}

// Scan decodes and validates a scanned offer. On success the traveler
// share has been unsealed and proven to rebuild the voucher key, and the
// session waits for Accept or Decline.
func (s *Service) Scan(ctx context.Context, raw []byte) (*ReceiverSession, error) {
	offer, err := wire.DecodeOffer(raw)
	if err != nil {
		return nil, err
	}
	sess := &ReceiverSession{svc: s, offer: offer, started: s.now(), state: ReceiverOfferScanned}
	id := offer.VoucherID
	s.logState(id, domain.RoleReceiver, sess.state.String()).Msg("offer scanned")

	if err := s.validate(ctx, sess); err != nil {
		crypto.WipeShare(&sess.traveler)
		sess.state = ReceiverFailed
		s.metrics.Transfer(domain.RoleReceiver.String(), outcome(err), s.now().Sub(sess.started))
		s.log.Warn().Err(err).
			Str("voucher", crypto.VoucherFingerprint(id)).
			Str("role", domain.RoleReceiver.String()).
			Msg("offer rejected")
		return nil, err
	}
	s.logState(id, domain.RoleReceiver, sess.state.String()).
		Str("value", offer.Value.Display()).
		Msg("offer validated")
	return sess, nil
}

func (s *Service) validate(ctx context.Context, sess *ReceiverSession) error {
	offer := sess.offer
	id := offer.VoucherID

	msg, err := wire.OfferSigningBytes(offer)
	if err != nil {
		return err
	}
	if !crypto.VerifyVoucher(id, msg, offer.Signature[:]) {
		return errors.ErrInvalidSignature.New("offer signature does not verify against the voucher key")
	}
	// Freshness is the only replay defence, so it is enforced on offers
	// whose signature is valid.
	now := s.now()
	issued := offer.IssuedAt()
	if now.After(issued.Add(s.cfg.OfferTTL)) {
		return errors.ErrOfferStale.Newf("offer issued %s ago", now.Sub(issued).Round(time.Second))
	}
	if issued.After(now.Add(s.cfg.ClockSkew)) {
		return errors.ErrOfferStale.Newf("offer issued %s in the future", issued.Sub(now).Round(time.Second))
	}

	sess.state = ReceiverValidating
	rec, err := s.fetchWitness(ctx, id)
	if err != nil {
		return err
	}
	if rec.Value != offer.Value ||
		rec.IssuerPublicKey != offer.IssuerPublicKey ||
		wire.TruncateName(rec.IssuerName) != offer.IssuerName {
		return errors.ErrInvalidInput.New("offer does not match the published witness record")
	}
	if rec.ExpiresAt != 0 && !now.Before(time.Unix(rec.ExpiresAt, 0)) {
		return errors.ErrExpired.New("voucher validity has ended")
	}
	sess.record = rec

	traveler, err := s.cipher.Open(id, offer.Sealed, rec.Witness)
	if err != nil {
		return err
	}
	sess.traveler = traveler

	scalar, err := s.codec.Combine(id, nil, &sess.traveler, &rec.Witness)
	if err != nil {
		return err
	}
	crypto.Wipe(scalar)
	return nil
}

// State returns the current state.
func (r *ReceiverSession) State() ReceiverState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Details describes the offered voucher.
func (r *ReceiverSession) Details() Details {
	d := Details{
		VoucherID:         r.offer.VoucherID,
		Value:             r.offer.Value,
		IssuerName:        r.record.IssuerName,
		IssuerPublicKey:   r.offer.IssuerPublicKey,
		IssuerFingerprint: crypto.Fingerprint(r.offer.IssuerPublicKey.Slice()),
		CreatedAt:         time.Unix(r.record.CreatedAt, 0).UTC(),
		OfferExpiresAt:    r.offer.IssuedAt().Add(r.svc.cfg.OfferTTL).UTC(),
	}
	if r.record.ExpiresAt != 0 {
		d.ExpiresAt = time.Unix(r.record.ExpiresAt, 0).UTC()
	}
	return d
}

// Accept takes ownership: it locks as receiver with the donor's challenge,
// signs the acknowledgement with the rebuilt voucher key and commits. The
// returned ack must then be delivered to the donor. Any failure releases
// the lock.
func (r *ReceiverSession) Accept(ctx context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != ReceiverValidating {
		return nil, errors.ErrInvalidState.Newf("receiver session is %s", r.state)
	}
	s := r.svc
	id := r.offer.VoucherID
	challenge := r.offer.Challenge

	remaining := r.offer.IssuedAt().Add(s.cfg.OfferTTL).Sub(s.now())
	if remaining <= 0 {
		return nil, r.failLocked(errors.ErrOfferStale.New("offer expired before acceptance"), false)
	}

	incoming := r.incoming()
	_, err := s.ledger.Lock(id, challenge, remaining, domain.RoleReceiver, &incoming)
	crypto.WipeShare(incoming.TravelerShare)
	if err != nil {
		return nil, r.failLocked(err, false)
	}
	r.state = ReceiverAccepted
	s.logState(id, domain.RoleReceiver, r.state.String()).Msg("voucher locked")

	witness := r.record.Witness
	defer crypto.WipeShare(&witness)
	scalar, err := s.codec.Combine(id, nil, &r.traveler, &witness)
	if err != nil {
		return nil, r.failLocked(err, true)
	}
	ack := domain.Ack{VoucherID: id, Status: domain.AckReceived}
	msg := wire.AckSigningBytes(id, challenge)
	err = crypto.WithVoucherKey(scalar, func(key ed25519.PrivateKey) error {
		copy(ack.Signature[:], ed25519.Sign(key, msg))
		return nil
	})
	if err != nil {
		return nil, r.failLocked(err, true)
	}
	raw, err := wire.EncodeAck(ack)
	if err != nil {
		return nil, r.failLocked(err, true)
	}

	ok, err := s.ledger.CommitReceive(id, challenge)
	if err != nil {
		return nil, r.failLocked(err, true)
	}
	if !ok {
		return nil, r.failLocked(errors.ErrCommitMismatch.New("receiver lock lost before commit"), true)
	}
	crypto.WipeShare(&r.traveler)
	r.state = ReceiverAckSent
	s.metrics.Transfer(domain.RoleReceiver.String(), outcome(nil), s.now().Sub(r.started))
	s.log.Info().
		Str("voucher", crypto.VoucherFingerprint(id)).
		Str("role", domain.RoleReceiver.String()).
		Str("value", r.offer.Value.Display()).
		Msg("voucher received")
	return raw, nil
}

// Delivered records that the ack reached the transport.
func (r *ReceiverSession) Delivered() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == ReceiverAckSent {
		r.state = ReceiverDone
	}
}

// Decline refuses the offer. Nothing was stored, so only the session ends.
func (r *ReceiverSession) Decline() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case ReceiverAckSent, ReceiverDone:
		return errors.ErrInvalidState.New("voucher already received")
	case ReceiverDeclined, ReceiverFailed:
		return nil
	}
	crypto.WipeShare(&r.traveler)
	r.state = ReceiverDeclined
	r.svc.metrics.Transfer(domain.RoleReceiver.String(), outcome(errors.ErrDeclined), r.svc.now().Sub(r.started))
	r.svc.logState(r.offer.VoucherID, domain.RoleReceiver, r.state.String()).Msg("offer declined")
	return nil
}

// incoming is the voucher as the receiver will hold it.
func (r *ReceiverSession) incoming() domain.Voucher {
	traveler := r.traveler
	witness := r.record.Witness
	v := domain.Voucher{
		ID:              r.offer.VoucherID,
		Value:           r.offer.Value,
		IssuerPublicKey: r.offer.IssuerPublicKey,
		IssuerName:      r.record.IssuerName,
		CreatedAt:       time.Unix(r.record.CreatedAt, 0).UTC(),
		Status:          domain.StatusActive,
		TravelerShare:   &traveler,
		WitnessShare:    &witness,
	}
	if r.record.ExpiresAt != 0 {
		v.ExpiresAt = time.Unix(r.record.ExpiresAt, 0).UTC()
	}
	return v
}

func (r *ReceiverSession) failLocked(err error, locked bool) error {
	s := r.svc
	if locked {
		s.release(r.offer.VoucherID, domain.RoleReceiver)
	}
	crypto.WipeShare(&r.traveler)
	r.state = ReceiverFailed
	s.metrics.Transfer(domain.RoleReceiver.String(), outcome(err), s.now().Sub(r.started))
	s.log.Warn().Err(err).
		Str("voucher", crypto.VoucherFingerprint(r.offer.VoucherID)).
		Str("role", domain.RoleReceiver.String()).
		Msg("handshake failed")
	return err
}
