package transfer

import (
	"context"
	"crypto/ed25519"
	"sync"
	"time"

	"bons/internal/crypto"
	"bons/internal/domain"
	"bons/internal/errors"
	"bons/internal/metrics"
	"bons/internal/wire"
)

// DonorState is the progress of the giving side of a handshake.
type DonorState int

const (
	DonorIdle DonorState = iota
	DonorLocked
	DonorOfferReady
	DonorAwaitingAck
	DonorCommitted
	DonorCancelled
	DonorFailed
)

var donorStateNames = [...]string{
	DonorIdle:        "idle",
	DonorLocked:      "locked",
	DonorOfferReady:  "offer_ready",
	DonorAwaitingAck: "awaiting_ack",
	DonorCommitted:   "committed",
	DonorCancelled:   "cancelled",
	DonorFailed:      "failed",
}

func (s DonorState) String() string {
	if int(s) < len(donorStateNames) {
		return donorStateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s DonorState) Terminal() bool {
	return s == DonorCommitted || s == DonorCancelled || s == DonorFailed
}

// DonorSession is one giving handshake. It is safe for concurrent use.
type DonorSession struct {
	svc       *Service
	id        domain.VoucherID
	challenge domain.Challenge
	expiresAt time.Time
	snapshot  domain.Voucher
	lockedAt  time.Time
	started   time.Time

	mu    sync.Mutex
	state DonorState
	offer []byte
}

// Offer locks voucher id and produces a signed offer. Any failure after
// the lock is taken releases it.
func (s *Service) Offer(ctx context.Context, id domain.VoucherID) (*DonorSession, error) {
	challenge, err := crypto.NewChallenge()
	if err != nil {
		return nil, err
	}
	locked, err := s.ledger.Lock(id, challenge, s.cfg.LockTTL, domain.RoleDonor, nil)
	if err != nil {
		return nil, err
	}
	sess := &DonorSession{
		svc:       s,
		id:        id,
		challenge: challenge,
		expiresAt: locked.Lock.ExpiresAt(),
		snapshot:  locked.Voucher,
		lockedAt:  locked.Lock.CreatedAt,
		started:   s.now(),
		state:     DonorLocked,
	}
	s.logState(id, domain.RoleDonor, sess.state.String()).Msg("voucher locked")

	raw, err := s.buildOffer(ctx, sess)
	if err != nil {
		sess.fail(err)
		return nil, err
	}
	if err := s.ledger.MarkOffered(id, challenge, raw); err != nil {
		sess.fail(err)
		return nil, err
	}

	sess.mu.Lock()
	sess.offer = raw
	sess.state = DonorOfferReady
	sess.mu.Unlock()
	s.logState(id, domain.RoleDonor, sess.state.String()).Msg("offer signed")
	return sess, nil
}

// buildOffer seals the locked traveler share and signs the offer with the
// voucher key rebuilt from traveler and witness.
func (s *Service) buildOffer(ctx context.Context, sess *DonorSession) ([]byte, error) {
	v := sess.snapshot
	defer crypto.WipeShare(v.TravelerShare)
	if v.TravelerShare == nil {
		return nil, errors.ErrInvalidState.New("locked snapshot lacks the traveler share")
	}

	var witness domain.Share
	if v.WitnessShare != nil {
		witness = *v.WitnessShare
	} else {
		rec, err := s.fetchWitness(ctx, sess.id)
		if err != nil {
			return nil, err
		}
		witness = rec.Witness
	}
	defer crypto.WipeShare(&witness)

	sealed, err := s.cipher.Seal(sess.id, *v.TravelerShare, witness)
	if err != nil {
		return nil, err
	}
	// The offer is stamped with the lock instant, not the signing instant,
	// so the receiver's window never extends past the lock.
	offer := domain.Offer{
		Version:         wire.OfferVersion,
		VoucherID:       sess.id,
		Value:           v.Value,
		IssuerPublicKey: v.IssuerPublicKey,
		IssuerName:      wire.TruncateName(v.IssuerName),
		Sealed:          sealed,
		Challenge:       sess.challenge,
		Timestamp:       uint32(sess.lockedAt.Unix()),
	}
	msg, err := wire.OfferSigningBytes(offer)
	if err != nil {
		return nil, err
	}

	scalar, err := s.codec.Combine(sess.id, nil, v.TravelerShare, &witness)
	if err != nil {
		return nil, err
	}
	err = crypto.WithVoucherKey(scalar, func(key ed25519.PrivateKey) error {
		copy(offer.Signature[:], ed25519.Sign(key, msg))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wire.EncodeOffer(offer)
}

// ResumeDonor rebuilds the session of a handshake interrupted after its
// offer was signed, so the same offer bytes can be shown again.
func (s *Service) ResumeDonor(id domain.VoucherID) (*DonorSession, error) {
	lock, ok, err := s.ledger.GetLock(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.ErrNotFound.Newf("no transfer in progress for %s", crypto.VoucherFingerprint(id))
	}
	if lock.Role != domain.RoleDonor {
		return nil, errors.ErrInvalidState.Newf("transfer in progress as %s", lock.Role)
	}
	now := s.now()
	if lock.Expired(now) {
		s.release(id, domain.RoleDonor)
		return nil, errors.ErrExpired.New("transfer lock expired")
	}
	if lock.State != domain.LockOfferIssued || len(lock.Offer) != wire.OfferSize {
		// Nothing was signed; the handshake cannot be resumed.
		s.release(id, domain.RoleDonor)
		return nil, errors.ErrInvalidState.New("offer was never issued")
	}

	snapshot := lock.Snapshot.Copy()
	crypto.WipeShare(snapshot.TravelerShare)
	snapshot.TravelerShare = nil
	sess := &DonorSession{
		svc:       s,
		id:        id,
		challenge: lock.Challenge,
		expiresAt: lock.ExpiresAt(),
		snapshot:  snapshot,
		started:   lock.CreatedAt,
		state:     DonorAwaitingAck,
		offer:     append([]byte(nil), lock.Offer...),
	}
	s.logState(id, domain.RoleDonor, sess.state.String()).
		Dur("remaining", lock.Remaining(now)).
		Msg("handshake resumed")
	return sess, nil
}

// VoucherID returns the voucher being given.
func (d *DonorSession) VoucherID() domain.VoucherID { return d.id }

// ExpiresAt is when the lock lapses and the handshake is void.
func (d *DonorSession) ExpiresAt() time.Time { return d.expiresAt }

// State returns the current state.
func (d *DonorSession) State() DonorState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// OfferBytes returns a copy of the encoded offer.
func (d *DonorSession) OfferBytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.offer...)
}

// Shown records that the offer left the device.
func (d *DonorSession) Shown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == DonorOfferReady {
		d.state = DonorAwaitingAck
	}
}

// HandleAck verifies an acknowledgement and commits the transfer.
//
// An ack that does not parse or names another voucher is returned as an
// error and the session keeps waiting. A parsed ack whose signature does
// not verify ends the session and releases the lock. A false commit
// returns ErrCommitMismatch without changing the ledger.
func (d *DonorSession) HandleAck(ctx context.Context, raw []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != DonorOfferReady && d.state != DonorAwaitingAck {
		return errors.ErrInvalidState.Newf("donor session is %s", d.state)
	}
	ack, err := wire.DecodeAck(raw)
	if err != nil {
		return err
	}
	if ack.VoucherID != d.id {
		return errors.ErrInvalidInput.New("ack names another voucher")
	}

	s := d.svc
	msg := wire.AckSigningBytes(d.id, d.challenge)
	if !crypto.VerifyVoucher(d.id, msg, ack.Signature[:]) {
		err := errors.ErrInvalidSignature.New("ack signature does not verify against the voucher key")
		d.failLocked(err)
		return err
	}

	ok, err := s.ledger.CommitReceive(d.id, d.challenge)
	if err != nil {
		return err
	}
	if !ok {
		err := errors.ErrCommitMismatch.New("no live lock for this challenge")
		d.state = DonorFailed
		s.metrics.Transfer(domain.RoleDonor.String(), outcome(err), s.now().Sub(d.started))
		return err
	}
	d.state = DonorCommitted
	s.metrics.Transfer(domain.RoleDonor.String(), outcome(nil), s.now().Sub(d.started))
	s.log.Info().
		Str("voucher", crypto.VoucherFingerprint(d.id)).
		Str("role", domain.RoleDonor.String()).
		Str("value", d.snapshot.Value.Display()).
		Msg("voucher given")

	s.appendEvent(ctx, d.id, domain.EventTransferred, d.snapshot.TransferCount+1)
	return nil
}

// Cancel abandons the handshake and releases the lock. Cancelling a
// finished session is a no-op unless it committed.
func (d *DonorSession) Cancel() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case DonorCommitted:
		return errors.ErrInvalidState.New("transfer already committed")
	case DonorCancelled, DonorFailed:
		return nil
	}
	if err := d.svc.ledger.Cancel(d.id); err != nil {
		return err
	}
	d.state = DonorCancelled
	d.svc.metrics.Transfer(domain.RoleDonor.String(), metrics.OutcomeCancelled, d.svc.now().Sub(d.started))
	d.svc.logState(d.id, domain.RoleDonor, d.state.String()).Msg("handshake cancelled")
	return nil
}

// expire ends a session whose lock ran out.
func (d *DonorSession) expire() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.Terminal() {
		return nil
	}
	d.svc.release(d.id, domain.RoleDonor)
	d.state = DonorCancelled
	err := errors.ErrExpired.New("no acknowledgement before the lock expired")
	d.svc.metrics.Transfer(domain.RoleDonor.String(), outcome(err), d.svc.now().Sub(d.started))
	d.svc.logState(d.id, domain.RoleDonor, d.state.String()).Msg("handshake expired")
	return err
}

func (d *DonorSession) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failLocked(err)
}

func (d *DonorSession) failLocked(err error) {
	d.svc.release(d.id, domain.RoleDonor)
	d.state = DonorFailed
	d.svc.metrics.Transfer(domain.RoleDonor.String(), outcome(err), d.svc.now().Sub(d.started))
	d.svc.log.Warn().Err(err).
		Str("voucher", crypto.VoucherFingerprint(d.id)).
		Str("role", domain.RoleDonor.String()).
		Msg("handshake failed")
}
