package store

import (
	"bytes"
	"sort"
)

// KV is a byte-keyed store with atomic multi-key writes. Get returns nil,
// nil for a missing key.
type KV interface {
	Get(key []byte) ([]byte, error)
	// Write applies every operation in b or none of them.
	Write(b *Batch) error
	// Iterate calls fn for each key with prefix in ascending order. A
	// non-nil error from fn stops the walk and is returned.
	Iterate(prefix []byte, fn func(key, value []byte) error) error
	// Snapshot returns a copy of every pair.
	Snapshot() (map[string][]byte, error)
	Close() error
}

type opKind int

const (
	setKind opKind = iota + 1
	delKind
)

// Op is one write in a Batch.
type Op struct {
	kind  opKind
	key   []byte
	value []byte // only for set
}

// SetDeleter is anything a batch can be replayed into.
type SetDeleter interface {
	Set(key, value []byte)
	Delete(key []byte)
}

// Apply replays the operation into out.
func (o Op) Apply(out SetDeleter) {
	switch o.kind {
	case setKind:
		out.Set(o.key, o.value)
	case delKind:
		out.Delete(o.key)
	}
}

// Batch collects writes for one atomic KV.Write.
type Batch struct {
	ops []Op
}

// NewBatch returns an empty batch.
func NewBatch() *Batch { return &Batch{} }

// Set queues key=value. Both slices are copied.
func (b *Batch) Set(key, value []byte) *Batch {
	b.ops = append(b.ops, Op{kind: setKind, key: clone(key), value: clone(value)})
	return b
}

// Delete queues removal of key.
func (b *Batch) Delete(key []byte) *Batch {
	b.ops = append(b.ops, Op{kind: delKind, key: clone(key)})
	return b
}

// Ops returns the queued operations in order.
func (b *Batch) Ops() []Op { return b.ops }

// Len is the number of queued operations.
func (b *Batch) Len() int { return len(b.ops) }

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// mapWriter applies ops to a plain map.
type mapWriter map[string][]byte

func (m mapWriter) Set(key, value []byte) { m[string(key)] = clone(value) }
func (m mapWriter) Delete(key []byte)     { delete(m, string(key)) }

// iterateMap walks m's keys with prefix in sorted order.
func iterateMap(m map[string][]byte, prefix []byte, fn func(key, value []byte) error) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), clone(m[k])); err != nil {
			return err
		}
	}
	return nil
}
