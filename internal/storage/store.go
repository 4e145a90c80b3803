// Package storage provides the journaled key/value store contracts read and write
// through the storage syscalls.
package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/google/btree"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/sha3"

	"github.com/rwasm-go/rwasmvm/types"
)

var (
	// ErrKeyEmpty is returned when attempting to use an empty or nil key.
	ErrKeyEmpty = errors.New("key cannot be empty")
	// ErrInvalidCheckpoint is returned when rolling back to a checkpoint that does not exist.
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")
)

const btreeDegree = 32

// item is a pending write. A nil value marks a removal.
type item struct {
	key   []byte
	value []byte
}

func itemLess(a, b item) bool { return bytes.Compare(a.key, b.key) < 0 }

// change records what a key looked like in the overlay before a write.
type change struct {
	key     []byte
	prev    item
	existed bool
}

// Journal layers uncommitted writes over a cometbft-db database. Every write is
// journaled so a nested call can be rolled back to a checkpoint; Commit flushes the
// overlay in one batch.
type Journal struct {
	mu      sync.RWMutex
	db      dbm.DB
	dirty   *btree.BTreeG[item]
	changes []change
	logger  zerolog.Logger
}

// Open opens a database of the given cometbft-db backend ("memdb", "goleveldb") in dir.
func Open(backend, dir string, logger zerolog.Logger) (*Journal, error) {
	db, err := dbm.NewDB("state", dbm.BackendType(backend), dir)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", backend, err)
	}
	return New(db, logger), nil
}

// New wraps an open database.
func New(db dbm.DB, logger zerolog.Logger) *Journal {
	return &Journal{
		db:     db,
		dirty:  btree.NewG(btreeDegree, itemLess),
		logger: logger,
	}
}

// Get returns the value of key, or nil when it is absent.
func (j *Journal) Get(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrKeyEmpty
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	if it, ok := j.dirty.Get(item{key: key}); ok {
		return cloneBytes(it.value), nil
	}
	return j.db.Get(key)
}

func (j *Journal) Update(key, value []byte) error {
	if len(key) == 0 {
		return ErrKeyEmpty
	}
	if value == nil {
		value = []byte{}
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.write(item{key: cloneBytes(key), value: cloneBytes(value)})
	return nil
}

func (j *Journal) Remove(key []byte) error {
	if len(key) == 0 {
		return ErrKeyEmpty
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.write(item{key: cloneBytes(key)})
	return nil
}

func (j *Journal) write(it item) {
	prev, existed := j.dirty.ReplaceOrInsert(it)
	j.changes = append(j.changes, change{key: it.key, prev: prev, existed: existed})
}

// Checkpoint marks the current journal position.
func (j *Journal) Checkpoint() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.changes)
}

// Rollback undoes every write made after checkpoint.
func (j *Journal) Rollback(checkpoint int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if checkpoint < 0 || checkpoint > len(j.changes) {
		return fmt.Errorf("%w: %d of %d", ErrInvalidCheckpoint, checkpoint, len(j.changes))
	}
	for i := len(j.changes) - 1; i >= checkpoint; i-- {
		c := j.changes[i]
		if c.existed {
			j.dirty.ReplaceOrInsert(c.prev)
		} else {
			j.dirty.Delete(item{key: c.key})
		}
	}
	j.changes = j.changes[:checkpoint]
	return nil
}

// Commit writes the overlay to the database and clears the journal.
func (j *Journal) Commit() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	batch := j.db.NewBatch()
	defer batch.Close()

	var err error
	j.dirty.Ascend(func(it item) bool {
		if it.value == nil {
			err = batch.Delete(it.key)
		} else {
			err = batch.Set(it.key, it.value)
		}
		return err == nil
	})
	if err != nil {
		return err
	}
	if err := batch.WriteSync(); err != nil {
		return err
	}
	j.logger.Debug().Int("keys", j.dirty.Len()).Msg("storage committed")
	j.dirty.Clear(false)
	j.changes = j.changes[:0]
	return nil
}

// ComputeRoot hashes the merged state, committed and pending, in key order. Each entry
// contributes its length-prefixed key and value. The empty state has the zero root.
func (j *Journal) ComputeRoot() (types.B256, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	merged := btree.NewG(btreeDegree, itemLess)
	it, err := j.db.Iterator(nil, nil)
	if err != nil {
		return types.B256{}, err
	}
	for ; it.Valid(); it.Next() {
		merged.ReplaceOrInsert(item{key: cloneBytes(it.Key()), value: cloneBytes(it.Value())})
	}
	if err := it.Error(); err != nil {
		it.Close()
		return types.B256{}, err
	}
	if err := it.Close(); err != nil {
		return types.B256{}, err
	}
	j.dirty.Ascend(func(d item) bool {
		if d.value == nil {
			merged.Delete(d)
		} else {
			merged.ReplaceOrInsert(d)
		}
		return true
	})

	var root types.B256
	if merged.Len() == 0 {
		return root, nil
	}
	h := sha3.NewLegacyKeccak256()
	var n [4]byte
	merged.Ascend(func(e item) bool {
		binary.BigEndian.PutUint32(n[:], uint32(len(e.key)))
		h.Write(n[:])
		h.Write(e.key)
		binary.BigEndian.PutUint32(n[:], uint32(len(e.value)))
		h.Write(n[:])
		h.Write(e.value)
		return true
	})
	copy(root[:], h.Sum(nil))
	return root, nil
}

// Pending is the number of keys written since the last commit.
func (j *Journal) Pending() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.dirty.Len()
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
