package ledger

import (
	"crypto/subtle"
	"encoding/json"
	"sync"
	"time"

	"bons/internal/crypto"
	"bons/internal/domain"
	"bons/internal/errors"
	"bons/internal/store"
)

var (
	voucherPrefix = []byte("v/")
	lockPrefix    = []byte("l/")
)

func voucherKey(id domain.VoucherID) []byte {
	return append(append([]byte(nil), voucherPrefix...), id.String()...)
}

func lockKey(id domain.VoucherID) []byte {
	return append(append([]byte(nil), lockPrefix...), id.String()...)
}

// Ledger is the per-device record of vouchers and in-flight transfer locks.
// One mutex serialises every read-check-write; the KV batch makes each
// commit atomic on disk.
type Ledger struct {
	kv  store.KV
	now func() time.Time
	mu  sync.Mutex
}

// New returns a Ledger over kv. A nil now uses time.Now.
func New(kv store.KV, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{kv: kv, now: now}
}

// Lock records the write-ahead lock for a handshake together with the
// voucher snapshot it will use. It fails with ErrAlreadyLocked while a live
// lock exists; an expired lock is replaced.
//
// As donor the voucher must be held, active and unexpired. As receiver
// incoming carries the voucher as scanned, including the received traveler
// share, and no local record may already hold a traveler share.
func (l *Ledger) Lock(
	id domain.VoucherID,
	challenge domain.Challenge,
	ttl time.Duration,
	role domain.Role,
	incoming *domain.Voucher,
) (domain.LockedVoucher, error) {
	if ttl <= 0 {
		return domain.LockedVoucher{}, errors.ErrInvalidInput.Newf("lock ttl %s", ttl)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if existing, ok, err := l.loadLock(id); err != nil {
		return domain.LockedVoucher{}, err
	} else if ok && !existing.Expired(now) {
		return domain.LockedVoucher{}, errors.ErrAlreadyLocked.Newf(
			"%s lock held for another %s", existing.Role, existing.Remaining(now).Round(time.Second))
	}

	local, found, err := l.loadVoucher(id)
	if err != nil {
		return domain.LockedVoucher{}, err
	}

	var snapshot domain.Voucher
	switch role {
	case domain.RoleDonor:
		if !found {
			return domain.LockedVoucher{}, errors.ErrNotFound.Newf("voucher %s", crypto.VoucherFingerprint(id))
		}
		if local.Status != domain.StatusActive {
			return domain.LockedVoucher{}, errors.ErrInvalidState.Newf("voucher is %s", local.Status)
		}
		if local.Expired(now) {
			return domain.LockedVoucher{}, errors.ErrExpired.Newf("voucher expired at %s", local.ExpiresAt.UTC().Format(time.RFC3339))
		}
		if !local.Holding() {
			return domain.LockedVoucher{}, errors.ErrInvalidState.New("traveler share not held")
		}
		snapshot = local.Copy()

	case domain.RoleReceiver:
		if incoming == nil || incoming.ID != id || !incoming.Holding() {
			return domain.LockedVoucher{}, errors.ErrInvalidInput.New("receiver lock needs the incoming voucher with its traveler share")
		}
		if found && local.Holding() {
			return domain.LockedVoucher{}, errors.ErrInvalidState.New("traveler share already held")
		}
		snapshot = incoming.Copy()
		snapshot.Status = domain.StatusActive
		snapshot.AnchorShare = nil
		if found {
			snapshot.TransferCount = local.TransferCount
			snapshot.AnchorShare = local.AnchorShare.Clone()
			if snapshot.WitnessShare == nil {
				snapshot.WitnessShare = local.WitnessShare.Clone()
			}
		}

	default:
		return domain.LockedVoucher{}, errors.ErrInvalidInput.Newf("role %q", role)
	}

	lock := domain.TransferLock{
		VoucherID: id,
		Challenge: challenge,
		CreatedAt: now,
		TTL:       ttl,
		Role:      role,
		State:     domain.LockHeld,
		Snapshot:  snapshot,
	}
	raw, err := json.Marshal(lock)
	if err != nil {
		return domain.LockedVoucher{}, errors.Wrap(errors.ErrDatabase, err.Error())
	}
	if err := l.kv.Write(store.NewBatch().Set(lockKey(id), raw)); err != nil {
		return domain.LockedVoucher{}, err
	}
	return domain.LockedVoucher{Lock: lock, Voucher: snapshot.Copy()}, nil
}

// MarkOffered stores the signed offer on the live lock so a restarted donor
// can resume with identical bytes.
func (l *Ledger) MarkOffered(id domain.VoucherID, challenge domain.Challenge, offer []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok, err := l.loadLock(id)
	if err != nil {
		return err
	}
	if !ok || lock.Expired(l.now()) {
		return errors.ErrExpired.New("no live lock")
	}
	if subtle.ConstantTimeCompare(lock.Challenge[:], challenge[:]) != 1 {
		return errors.ErrInvalidState.New("lock belongs to another handshake")
	}
	lock.State = domain.LockOfferIssued
	lock.Offer = append([]byte(nil), offer...)
	raw, err := json.Marshal(lock)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return l.kv.Write(store.NewBatch().Set(lockKey(id), raw))
}

// Cancel removes the lock for id. Cancelling a missing or expired lock is
// not an error.
func (l *Ledger) Cancel(id domain.VoucherID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.kv.Write(store.NewBatch().Delete(lockKey(id)))
}

// CommitReceive is the single commit point of a handshake. It returns
// false and writes nothing when no live lock exists or the challenge does
// not match. Otherwise, in one batch, the voucher moves to its
// post-transfer state and the lock is deleted: a donor's record loses its
// traveler share and becomes spent; a receiver's snapshot is stored active
// with the share.
func (l *Ledger) CommitReceive(id domain.VoucherID, challenge domain.Challenge) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok, err := l.loadLock(id)
	if err != nil || !ok {
		return false, err
	}
	if lock.Expired(l.now()) {
		return false, nil
	}
	if subtle.ConstantTimeCompare(lock.Challenge[:], challenge[:]) != 1 {
		return false, nil
	}

	var next domain.Voucher
	switch lock.Role {
	case domain.RoleDonor:
		current, found, err := l.loadVoucher(id)
		if err != nil {
			return false, err
		}
		if !found {
			current = lock.Snapshot.Copy()
		}
		next = current
		crypto.WipeShare(next.TravelerShare)
		next.TravelerShare = nil
		next.Status = domain.StatusSpent
		next.TransferCount = lock.Snapshot.TransferCount + 1

	case domain.RoleReceiver:
		next = lock.Snapshot.Copy()
		next.Status = domain.StatusActive
		next.TransferCount = lock.Snapshot.TransferCount + 1

	default:
		return false, errors.ErrDatabase.Newf("lock with role %q", lock.Role)
	}

	raw, err := json.Marshal(next)
	if err != nil {
		return false, errors.Wrap(errors.ErrDatabase, err.Error())
	}
	b := store.NewBatch().Set(voucherKey(id), raw).Delete(lockKey(id))
	if err := l.kv.Write(b); err != nil {
		return false, err
	}
	return true, nil
}

// GetLock returns the stored lock for id, live or expired.
func (l *Ledger) GetLock(id domain.VoucherID) (domain.TransferLock, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLock(id)
}

// Put stores v. Locked is derived from live locks and may not be stored.
func (l *Ledger) Put(v domain.Voucher) error {
	if v.Status == domain.StatusLocked {
		return errors.ErrInvalidInput.New("locked status is derived, not stored")
	}
	if v.ID.IsZero() {
		return errors.ErrInvalidInput.New("voucher without id")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, err.Error())
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.kv.Write(store.NewBatch().Set(voucherKey(v.ID), raw))
}

// Get returns the voucher for id. An active voucher under a live lock
// reports StatusLocked.
func (l *Ledger) Get(id domain.VoucherID) (domain.Voucher, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok, err := l.loadVoucher(id)
	if err != nil || !ok {
		return domain.Voucher{}, ok, err
	}
	lock, locked, err := l.loadLock(id)
	if err != nil {
		return domain.Voucher{}, false, err
	}
	if locked && !lock.Expired(l.now()) && v.Status == domain.StatusActive {
		v.Status = domain.StatusLocked
	}
	return v, true, nil
}

// List returns every voucher in id order with derived lock status.
func (l *Ledger) List() ([]domain.Voucher, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	live := make(map[domain.VoucherID]bool)
	err := l.kv.Iterate(lockPrefix, func(_, value []byte) error {
		var lock domain.TransferLock
		if err := json.Unmarshal(value, &lock); err != nil {
			return errors.Wrap(errors.ErrDatabase, err.Error())
		}
		if !lock.Expired(now) {
			live[lock.VoucherID] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []domain.Voucher
	err = l.kv.Iterate(voucherPrefix, func(_, value []byte) error {
		var v domain.Voucher
		if err := json.Unmarshal(value, &v); err != nil {
			return errors.Wrap(errors.ErrDatabase, err.Error())
		}
		if live[v.ID] && v.Status == domain.StatusActive {
			v.Status = domain.StatusLocked
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

// Recover deletes every lock expired at now and returns how many it
// removed. Run it at startup after a crash.
func (l *Ledger) Recover(now time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := store.NewBatch()
	err := l.kv.Iterate(lockPrefix, func(key, value []byte) error {
		var lock domain.TransferLock
		if err := json.Unmarshal(value, &lock); err != nil {
			return errors.Wrap(errors.ErrDatabase, err.Error())
		}
		if lock.Expired(now) {
			b.Delete(key)
		}
		return nil
	})
	if err != nil || b.Len() == 0 {
		return 0, err
	}
	if err := l.kv.Write(b); err != nil {
		return 0, err
	}
	return b.Len(), nil
}

// Sweep revokes vouchers whose validity ended before now: shares are
// erased and the status becomes revoked. Vouchers under a live lock are
// left for the handshake to settle. It returns the revoked ids.
func (l *Ledger) Sweep(now time.Time) ([]domain.VoucherID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var revoked []domain.VoucherID
	b := store.NewBatch()
	err := l.kv.Iterate(voucherPrefix, func(key, value []byte) error {
		var v domain.Voucher
		if err := json.Unmarshal(value, &v); err != nil {
			return errors.Wrap(errors.ErrDatabase, err.Error())
		}
		if v.Status.Terminal() || !v.Expired(now) {
			return nil
		}
		lock, ok, err := l.loadLock(v.ID)
		if err != nil {
			return err
		}
		if ok && !lock.Expired(now) {
			return nil
		}
		crypto.WipeShare(v.TravelerShare)
		crypto.WipeShare(v.AnchorShare)
		v.TravelerShare, v.AnchorShare = nil, nil
		v.Status = domain.StatusRevoked
		raw, err := json.Marshal(v)
		if err != nil {
			return errors.Wrap(errors.ErrDatabase, err.Error())
		}
		b.Set(key, raw)
		if ok {
			b.Delete(lockKey(v.ID))
		}
		revoked = append(revoked, v.ID)
		return nil
	})
	if err != nil || b.Len() == 0 {
		return nil, err
	}
	if err := l.kv.Write(b); err != nil {
		return nil, err
	}
	return revoked, nil
}

func (l *Ledger) loadLock(id domain.VoucherID) (domain.TransferLock, bool, error) {
	raw, err := l.kv.Get(lockKey(id))
	if err != nil || raw == nil {
		return domain.TransferLock{}, false, err
	}
	var lock domain.TransferLock
	if err := json.Unmarshal(raw, &lock); err != nil {
		return domain.TransferLock{}, false, errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return lock, true, nil
}

func (l *Ledger) loadVoucher(id domain.VoucherID) (domain.Voucher, bool, error) {
	raw, err := l.kv.Get(voucherKey(id))
	if err != nil || raw == nil {
		return domain.Voucher{}, false, err
	}
	var v domain.Voucher
	if err := json.Unmarshal(raw, &v); err != nil {
		return domain.Voucher{}, false, errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return v, true, nil
}

// Compile-time assertion that Ledger implements domain.Ledger.
var _ domain.Ledger = (*Ledger)(nil)
