package store

import (
	"encoding/json"
	"path/filepath"
	"sync"

	"bons/internal/errors"
	"bons/internal/util/memzero"
)

const ledgerFilename = "ledger.json"

// FileKV keeps the whole key space in one JSON file that is replaced
// atomically on every write. With a passphrase the file is sealed with
// scrypt and ChaCha20-Poly1305.
type FileKV struct {
	path       string
	passphrase string
	kdf        scryptParams

	mu   sync.Mutex
	data map[string][]byte
}

// OpenFileKV loads dir/ledger.json, or starts empty if it does not exist.
// An empty passphrase stores the file in the clear.
func OpenFileKV(dir, passphrase string) (*FileKV, error) {
	return openFileKV(dir, passphrase, scryptParamsDefault())
}

func openFileKV(dir, passphrase string, kdf scryptParams) (*FileKV, error) {
	f := &FileKV{
		path:       filepath.Join(dir, ledgerFilename),
		passphrase: passphrase,
		kdf:        kdf,
		data:       make(map[string][]byte),
	}
	b, err := readFile(f.path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, err.Error())
	}
	if b == nil {
		return f, nil
	}
	if passphrase != "" {
		pt, err := decrypt(passphrase, b)
		if err != nil {
			return nil, err
		}
		defer memzero.Zero(pt)
		b = pt
	}
	if err := json.Unmarshal(b, &f.data); err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "%s: %v", f.path, err)
	}
	return f, nil
}

// Get returns the value at key, or nil.
func (f *FileKV) Get(key []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return clone(f.data[string(key)]), nil
}

// Write applies b to a copy of the key space, persists it, and only then
// makes it visible. A failed persist leaves memory and disk unchanged.
func (f *FileKV) Write(b *Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := make(mapWriter, len(f.data)+b.Len())
	for k, v := range f.data {
		next[k] = v
	}
	for _, op := range b.Ops() {
		op.Apply(next)
	}
	if err := f.persist(next); err != nil {
		return err
	}
	f.data = next
	return nil
}

func (f *FileKV) persist(m map[string][]byte) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, err.Error())
	}
	out := raw
	if f.passphrase != "" {
		out, err = encrypt(f.passphrase, raw, f.kdf)
		memzero.Zero(raw)
		if err != nil {
			return err
		}
	}
	if err := writeFile(f.path, out, 0o600); err != nil {
		return errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return nil
}

// Iterate walks keys with prefix in ascending order.
func (f *FileKV) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	f.mu.Lock()
	snap := make(map[string][]byte, len(f.data))
	for k, v := range f.data {
		snap[k] = v
	}
	f.mu.Unlock()
	return iterateMap(snap, prefix, fn)
}

// Snapshot copies every pair.
func (f *FileKV) Snapshot() (map[string][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string][]byte, len(f.data))
	for k, v := range f.data {
		out[k] = clone(v)
	}
	return out, nil
}

// Close is a no-op; every Write is already on disk.
func (f *FileKV) Close() error { return nil }

var _ KV = (*FileKV)(nil)

