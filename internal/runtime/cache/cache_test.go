package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwasm-go/rwasmvm/internal/runtime/crypto"
	"github.com/rwasm-go/rwasmvm/internal/runtime/rwasm"
	"github.com/rwasm-go/rwasmvm/types"
)

func TestSaveAndLoad(t *testing.T) {
	c := New(4)
	code := []byte{0xEF, 0x52, 0x01}
	hash := c.Save(code)
	assert.Equal(t, types.B256(crypto.Keccak256(code)), hash)

	got, ok := c.Load(hash)
	require.True(t, ok)
	assert.Equal(t, code, got)

	got, ok = c.Preimage(hash)
	require.True(t, ok)
	assert.Equal(t, code, got)

	_, ok = c.Load(types.B256{1})
	assert.False(t, ok)
}

func TestModuleLRU(t *testing.T) {
	c := New(2)
	a, b, d := types.B256{1}, types.B256{2}, types.B256{3}
	c.SaveModule(a, &Module{Rwasm: rwasm.EmptyModule()})
	c.SaveModule(b, &Module{Rwasm: rwasm.EmptyModule()})

	_, ok := c.LoadModule(a)
	require.True(t, ok)
	c.SaveModule(d, &Module{Rwasm: rwasm.EmptyModule()})

	_, ok = c.LoadModule(b)
	assert.False(t, ok, "least recently used module is evicted")
	_, ok = c.LoadModule(a)
	assert.True(t, ok)
	_, ok = c.LoadModule(d)
	assert.True(t, ok)

	s := c.Stats()
	assert.Equal(t, uint32(3), s.HitsMemory)
	assert.Equal(t, uint32(1), s.Misses)
	assert.Equal(t, 2, s.Cached)
	assert.Equal(t, uint32(2), c.Hits(a))
}

func TestPinning(t *testing.T) {
	c := New(1)
	hash := c.Save([]byte("code"))
	c.SaveModule(hash, &Module{Rwasm: rwasm.EmptyModule()})
	c.Pin(hash)

	c.SaveModule(types.B256{9}, &Module{Rwasm: rwasm.EmptyModule()})
	c.SaveModule(types.B256{8}, &Module{Rwasm: rwasm.EmptyModule()})

	_, ok := c.LoadModule(hash)
	assert.True(t, ok, "pinned module survives eviction")
	assert.False(t, c.Remove(hash))
	assert.Equal(t, uint32(1), c.Stats().HitsPinned)

	c.Unpin(hash)
	assert.True(t, c.Remove(hash))
	_, ok = c.Load(hash)
	assert.False(t, ok)
	_, ok = c.LoadModule(hash)
	assert.False(t, ok)
}
