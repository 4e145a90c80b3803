package storage

import (
	"testing"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwasm-go/rwasmvm/internal/runtime/host"
	"github.com/rwasm-go/rwasmvm/types"
)

var _ host.Storage = (*Journal)(nil)

func newJournal(t *testing.T) (*Journal, dbm.DB) {
	t.Helper()
	db := dbm.NewMemDB()
	return New(db, zerolog.Nop()), db
}

func TestGetUpdateRemove(t *testing.T) {
	j, _ := newJournal(t)
	v, err := j.Get([]byte("a"))
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, j.Update([]byte("a"), []byte{1}))
	v, err = j.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, v)

	require.NoError(t, j.Remove([]byte("a")))
	v, err = j.Get([]byte("a"))
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = j.Get(nil)
	assert.ErrorIs(t, err, ErrKeyEmpty)
	assert.ErrorIs(t, j.Update(nil, []byte{1}), ErrKeyEmpty)
}

func TestCheckpointRollback(t *testing.T) {
	j, _ := newJournal(t)
	require.NoError(t, j.Update([]byte("a"), []byte{1}))
	cp := j.Checkpoint()

	require.NoError(t, j.Update([]byte("a"), []byte{2}))
	require.NoError(t, j.Update([]byte("b"), []byte{3}))
	inner := j.Checkpoint()
	require.NoError(t, j.Remove([]byte("a")))

	require.NoError(t, j.Rollback(inner))
	v, _ := j.Get([]byte("a"))
	assert.Equal(t, []byte{2}, v)

	require.NoError(t, j.Rollback(cp))
	v, _ = j.Get([]byte("a"))
	assert.Equal(t, []byte{1}, v)
	v, _ = j.Get([]byte("b"))
	assert.Nil(t, v)
	assert.Equal(t, 1, j.Pending())

	assert.ErrorIs(t, j.Rollback(5), ErrInvalidCheckpoint)
}

func TestCommit(t *testing.T) {
	j, db := newJournal(t)
	require.NoError(t, db.Set([]byte("old"), []byte{9}))
	require.NoError(t, j.Update([]byte("new"), []byte{1}))
	require.NoError(t, j.Remove([]byte("old")))

	v, err := db.Get([]byte("new"))
	require.NoError(t, err)
	assert.Nil(t, v, "nothing reaches the database before commit")

	require.NoError(t, j.Commit())
	v, err = db.Get([]byte("new"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, v)
	has, err := db.Has([]byte("old"))
	require.NoError(t, err)
	assert.False(t, has)
	assert.Zero(t, j.Pending())
	assert.Zero(t, j.Checkpoint())
}

func TestComputeRoot(t *testing.T) {
	j, _ := newJournal(t)
	root, err := j.ComputeRoot()
	require.NoError(t, err)
	assert.Equal(t, types.B256{}, root)

	require.NoError(t, j.Update([]byte("a"), []byte{1}))
	require.NoError(t, j.Update([]byte("b"), []byte{2}))
	pending, err := j.ComputeRoot()
	require.NoError(t, err)
	assert.NotEqual(t, types.B256{}, pending)

	require.NoError(t, j.Commit())
	committed, err := j.ComputeRoot()
	require.NoError(t, err)
	assert.Equal(t, pending, committed, "root does not depend on what is committed")

	other, _ := newJournal(t)
	require.NoError(t, other.Update([]byte("b"), []byte{2}))
	require.NoError(t, other.Update([]byte("a"), []byte{1}))
	otherRoot, err := other.ComputeRoot()
	require.NoError(t, err)
	assert.Equal(t, committed, otherRoot, "root does not depend on write order")

	require.NoError(t, j.Remove([]byte("b")))
	removed, err := j.ComputeRoot()
	require.NoError(t, err)
	assert.NotEqual(t, committed, removed)
}

func TestOpen(t *testing.T) {
	j, err := Open(string(dbm.MemDBBackend), t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, j.Update([]byte("k"), []byte("v")))
	require.NoError(t, j.Commit())
	require.NoError(t, j.Close())

	_, err = Open("nope", t.TempDir(), zerolog.Nop())
	assert.Error(t, err)
}
