package store

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"bons/internal/errors"
)

// LevelKV is a durable KV on goleveldb. Writes are synced and each Batch
// is one leveldb batch, so a crash applies all of it or none.
type LevelKV struct {
	db *leveldb.DB
}

// OpenLevelKV opens or creates a database in dir.
func OpenLevelKV(dir string) (*LevelKV, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "open %s: %v", dir, err)
	}
	return &LevelKV{db: db}, nil
}

// Get returns the value at key, or nil.
func (l *LevelKV) Get(key []byte) ([]byte, error) {
	v, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return v, nil
}

// Write commits b as a single synced leveldb batch.
func (l *LevelKV) Write(b *Batch) error {
	lb := new(leveldb.Batch)
	for _, op := range b.Ops() {
		op.Apply(levelWriter{lb})
	}
	if err := l.db.Write(lb, &opt.WriteOptions{Sync: true}); err != nil {
		return errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return nil
}

// Iterate walks keys with prefix in ascending order.
func (l *LevelKV) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	it := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	for it.Next() {
		if err := fn(clone(it.Key()), clone(it.Value())); err != nil {
			return err
		}
	}
	if err := it.Error(); err != nil {
		return errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return nil
}

// Snapshot copies every pair.
func (l *LevelKV) Snapshot() (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := l.Iterate(nil, func(k, v []byte) error {
		out[string(k)] = v
		return nil
	})
	return out, err
}

// Close releases the database.
func (l *LevelKV) Close() error {
	return l.db.Close()
}

type levelWriter struct{ b *leveldb.Batch }

func (w levelWriter) Set(key, value []byte) { w.b.Put(key, value) }
func (w levelWriter) Delete(key []byte)     { w.b.Delete(key) }

var _ KV = (*LevelKV)(nil)
