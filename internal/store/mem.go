package store

import (
	"bytes"
	"sync"

	"github.com/google/btree"
)

// pair is one key and its value. Lookups use a pair with a nil value.
type pair struct {
	key   []byte
	value []byte
}

func pairLess(a, b pair) bool { return bytes.Compare(a.key, b.key) < 0 }

// MemKV is an ordered in-memory KV backed by a btree. There is no
// persistence here; it serves tests and the demo.
type MemKV struct {
	mu sync.RWMutex
	bt *btree.BTreeG[pair]
}

// NewMemKV returns an empty MemKV.
func NewMemKV() *MemKV {
	return &MemKV{bt: btree.NewG[pair](2, pairLess)}
}

// Get returns a copy of the value at key, or nil.
func (m *MemKV) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.bt.Get(pair{key: key})
	if !ok {
		return nil, nil
	}
	return clone(p.value), nil
}

// Write applies b under the write lock, so readers see all of it or none.
func (m *MemKV) Write(b *Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, op := range b.Ops() {
		op.Apply(btreeWriter{m.bt})
	}
	return nil
}

// Iterate walks keys with prefix in ascending order. fn runs on copies
// after the read lock is released, so it may write to m.
func (m *MemKV) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	m.mu.RLock()
	var items []pair
	m.bt.AscendGreaterOrEqual(pair{key: prefix}, func(p pair) bool {
		if !bytes.HasPrefix(p.key, prefix) {
			return false
		}
		items = append(items, pair{clone(p.key), clone(p.value)})
		return true
	})
	m.mu.RUnlock()

	for _, p := range items {
		if err := fn(p.key, p.value); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot copies every pair.
func (m *MemKV) Snapshot() (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := m.Iterate(nil, func(k, v []byte) error {
		out[string(k)] = v
		return nil
	})
	return out, err
}

// Close is a no-op.
func (m *MemKV) Close() error { return nil }

type btreeWriter struct{ bt *btree.BTreeG[pair] }

func (w btreeWriter) Set(key, value []byte) { w.bt.ReplaceOrInsert(pair{clone(key), clone(value)}) }
func (w btreeWriter) Delete(key []byte)     { w.bt.Delete(pair{key: key}) }

var _ KV = (*MemKV)(nil)
