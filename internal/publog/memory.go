package publog

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"sync"

	"github.com/google/btree"

	"bons/internal/crypto"
	"bons/internal/domain"
	"bons/internal/errors"
	"bons/internal/store"
)

var (
	recordPrefix = []byte("w/")
	eventPrefix  = []byte("e/")
)

type entry struct {
	id      domain.VoucherID
	record  []byte
	events  []domain.AuditEvent
	present bool
}

func entryLess(a, b *entry) bool { return bytes.Compare(a.id[:], b.id[:]) < 0 }

// Memory is the public log index. Witness records are append-only: a
// second publish of identical bytes is accepted, different bytes are
// refused with ErrDuplicate. When opened over a store.KV every write goes
// to the KV before the index, so the log survives a restart.
type Memory struct {
	mu sync.RWMutex
	bt *btree.BTreeG[*entry]
	kv store.KV // nil for a purely in-process log
}

// NewMemory returns an empty log that is lost on exit.
func NewMemory() *Memory {
	return &Memory{bt: btree.NewG[*entry](2, entryLess)}
}

// OpenMemory loads every record and event held in kv and writes through
// to it from then on. The caller keeps ownership of kv.
func OpenMemory(kv store.KV) (*Memory, error) {
	m := NewMemory()
	err := kv.Iterate(recordPrefix, func(k, v []byte) error {
		var id domain.VoucherID
		if len(k) != len(recordPrefix)+len(id) {
			return errors.ErrInvalidInput.Newf("witness record key %x", k)
		}
		copy(id[:], k[len(recordPrefix):])
		e := m.entry(id)
		e.record = v
		e.present = true
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "load witness records")
	}
	err = kv.Iterate(eventPrefix, func(k, v []byte) error {
		var ev domain.AuditEvent
		if err := json.Unmarshal(v, &ev); err != nil {
			return errors.Wrapf(errors.ErrInvalidInput, "audit event %x: %v", k, err)
		}
		e := m.entry(ev.VoucherID)
		e.events = append(e.events, ev)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "load audit events")
	}
	m.kv = kv
	return m, nil
}

// Publish stores rec after checking its issuer signature.
func (m *Memory) Publish(ctx context.Context, rec domain.WitnessRecord) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCancelled, err.Error())
	}
	if err := VerifyRecord(rec); err != nil {
		return err
	}
	raw, err := MarshalRecord(rec)
	if err != nil {
		return err
	}
	return m.PublishRaw(rec.VoucherID, raw)
}

// PublishRaw stores an already encoded record for id.
func (m *Memory) PublishRaw(id domain.VoucherID, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entry(id)
	if e.present {
		if bytes.Equal(e.record, raw) {
			return nil
		}
		return errors.ErrDuplicate.Newf("witness record for %s already published", crypto.VoucherFingerprint(id))
	}
	if m.kv != nil {
		if err := m.kv.Write(store.NewBatch().Set(recordKey(id), raw)); err != nil {
			return errors.Wrap(err, "persist witness record")
		}
	}
	e.record = append([]byte(nil), raw...)
	e.present = true
	return nil
}

// Fetch returns the record for id or ErrNotFound.
func (m *Memory) Fetch(ctx context.Context, id domain.VoucherID) (domain.WitnessRecord, error) {
	raw, err := m.FetchRaw(ctx, id)
	if err != nil {
		return domain.WitnessRecord{}, err
	}
	return UnmarshalRecord(raw)
}

// FetchRaw returns the encoded record for id or ErrNotFound.
func (m *Memory) FetchRaw(ctx context.Context, id domain.VoucherID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCancelled, err.Error())
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.bt.Get(&entry{id: id})
	if !ok || !e.present {
		return nil, errors.ErrNotFound.Newf("witness record for %s", crypto.VoucherFingerprint(id))
	}
	return append([]byte(nil), e.record...), nil
}

// Append adds ev to the voucher's audit trail.
func (m *Memory) Append(ctx context.Context, ev domain.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCancelled, err.Error())
	}
	if ev.ID == "" || ev.VoucherID.IsZero() {
		return errors.ErrInvalidInput.New("audit event needs id and voucher")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entry(ev.VoucherID)
	for _, have := range e.events {
		if have.ID == ev.ID {
			return nil
		}
	}
	if m.kv != nil {
		b, err := json.Marshal(ev)
		if err != nil {
			return errors.Wrap(errors.ErrInvalidInput, err.Error())
		}
		if err := m.kv.Write(store.NewBatch().Set(eventKey(ev.VoucherID, len(e.events)), b)); err != nil {
			return errors.Wrap(err, "persist audit event")
		}
	}
	e.events = append(e.events, ev)
	return nil
}

// Events returns the audit trail for id in append order.
func (m *Memory) Events(ctx context.Context, id domain.VoucherID) ([]domain.AuditEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCancelled, err.Error())
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.bt.Get(&entry{id: id})
	if !ok {
		return nil, nil
	}
	return append([]domain.AuditEvent(nil), e.events...), nil
}

// Len is the number of published witness records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	m.bt.Ascend(func(e *entry) bool {
		if e.present {
			n++
		}
		return true
	})
	return n
}

// entry returns the node for id, creating it. Callers hold the write lock.
func (m *Memory) entry(id domain.VoucherID) *entry {
	if e, ok := m.bt.Get(&entry{id: id}); ok {
		return e
	}
	e := &entry{id: id}
	m.bt.ReplaceOrInsert(e)
	return e
}

func recordKey(id domain.VoucherID) []byte {
	return append(append([]byte(nil), recordPrefix...), id[:]...)
}

// eventKey orders a voucher's events by append sequence.
func eventKey(id domain.VoucherID, seq int) []byte {
	k := append(append([]byte(nil), eventPrefix...), id[:]...)
	return binary.BigEndian.AppendUint32(k, uint32(seq))
}

// Compile-time assertion that Memory implements domain.PublicLog.
var _ domain.PublicLog = (*Memory)(nil)
