package memory

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"

	rterrors "github.com/rwasm-go/rwasmvm/internal/runtime/error"
	"github.com/rwasm-go/rwasmvm/types"
)

type recordingLimiter struct {
	allow bool
	err   error
	calls [][3]uint64
}

func (l *recordingLimiter) MemoryGrowing(current, desired, maximum uint64) (bool, error) {
	l.calls = append(l.calls, [3]uint64{current, desired, maximum})
	return l.allow, l.err
}

func TestLinearReadWrite(t *testing.T) {
	m, err := NewLinear(1, 4, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(PageSize), m.Size())

	require.NoError(t, m.Write(10, []byte{1, 2, 3}))
	buf := make([]byte, 3)
	require.NoError(t, m.Read(10, buf))
	assert.Equal(t, []byte{1, 2, 3}, buf)

	require.NoError(t, m.Write(uint32(m.Size())-2, []byte{9, 9}))
	require.NoError(t, m.Read(0, nil))
}

func TestLinearWriteAtomicity(t *testing.T) {
	m, err := NewLinear(1, 1, nil)
	require.NoError(t, err)
	last := uint32(m.Size() - 1)
	require.NoError(t, m.Write(last, []byte{0xAB}))
	before := append([]byte(nil), m.buf...)

	err = m.Write(last, []byte{1, 2})
	require.ErrorIs(t, err, ErrInvalidMemoryAccess)
	assert.Equal(t, types.ExitCodeMemoryOutOfBounds, rterrors.ExitCodeOf(err))
	assert.True(t, bytes.Equal(before, m.buf), "failed write must not touch memory")

	buf := []byte{7, 7}
	require.Error(t, m.Read(last, buf))
	assert.Equal(t, []byte{7, 7}, buf, "failed read must not touch the buffer")

	require.Error(t, m.Write(0xFFFFFFFF, []byte{1}))
}

func TestLinearGrowth(t *testing.T) {
	m, err := NewLinear(1, 3, nil)
	require.NoError(t, err)
	require.NoError(t, m.Write(0, []byte{5}))

	pages, err := m.Grow(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), pages)

	pages, err = m.Grow(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), pages)
	assert.Equal(t, uint64(3*PageSize), m.Size())

	fresh := make([]byte, 2*PageSize)
	require.NoError(t, m.Read(PageSize, fresh))
	assert.Equal(t, make([]byte, 2*PageSize), fresh)
	one := make([]byte, 1)
	require.NoError(t, m.Read(0, one))
	assert.Equal(t, byte(5), one[0])

	pages, err = m.Grow(1)
	require.ErrorIs(t, err, ErrGrowthExceedsMaximum)
	assert.Equal(t, uint32(3), pages)
	assert.Equal(t, uint32(3), m.Pages())
}

func TestLinearLimiterVeto(t *testing.T) {
	_, err := NewLinear(2, 4, &recordingLimiter{allow: false})
	require.ErrorIs(t, err, ErrGrowthVetoed)

	limiter := &recordingLimiter{allow: true}
	m, err := NewLinear(1, 4, limiter)
	require.NoError(t, err)
	require.Len(t, limiter.calls, 1)
	assert.Equal(t, [3]uint64{0, PageSize, 4 * PageSize}, limiter.calls[0])

	limiter.allow = false
	_, err = m.Grow(1)
	require.ErrorIs(t, err, ErrGrowthVetoed)
	assert.Equal(t, uint32(1), m.Pages())

	_, err = m.Grow(0)
	require.NoError(t, err)
	assert.Len(t, limiter.calls, 2, "zero growth does not consult the limiter")

	limiter.err = errors.New("quota exhausted")
	_, err = m.Grow(1)
	require.ErrorIs(t, err, rterrors.TrapGrowthOperationLimited)
	assert.Equal(t, types.ExitCodeGrowthOperationLimited, rterrors.ExitCodeOf(err))
	assert.Equal(t, uint32(1), m.Pages())
}

func TestPageLimiter(t *testing.T) {
	m, err := NewLinear(1, 10, PageLimiter{MaxPages: 2})
	require.NoError(t, err)
	_, err = m.Grow(1)
	require.NoError(t, err)
	_, err = m.Grow(1)
	require.ErrorIs(t, err, ErrGrowthVetoed)
}

func TestLinearInitialAboveMaximum(t *testing.T) {
	_, err := NewLinear(3, 2, nil)
	require.ErrorIs(t, err, ErrInitialExceedsMaximum)
}

func TestLinearFillAndCopy(t *testing.T) {
	m, err := NewLinear(1, 1, nil)
	require.NoError(t, err)
	require.NoError(t, m.Fill(4, 0xEE, 4))
	require.NoError(t, m.Copy(6, 4, 4))

	buf := make([]byte, 8)
	require.NoError(t, m.Read(4, buf))
	assert.Equal(t, []byte{0xEE, 0xEE, 0xEE, 0xEE, 0xEE, 0xEE, 0, 0}, buf)

	require.ErrorIs(t, m.Fill(PageSize-1, 1, 2), ErrInvalidMemoryAccess)
	require.ErrorIs(t, m.Copy(0, PageSize-1, 2), ErrInvalidMemoryAccess)
}

func TestManagerTypedAccess(t *testing.T) {
	m, err := NewLinear(1, 1, nil)
	require.NoError(t, err)
	mgr := New(m)

	require.NoError(t, mgr.WriteUint64(8, 1<<63|5))
	v64, err := mgr.ReadUint64(8)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<63|5), v64)

	require.NoError(t, mgr.WriteBytes(100, []byte("hi")))
	s, err := mgr.ReadString(100, 2)
	require.NoError(t, err)
	assert.Equal(t, "hi", s)

	_, err = mgr.ReadBytes(PageSize-4, 8)
	require.ErrorIs(t, err, ErrInvalidMemoryAccess)
	require.ErrorIs(t, mgr.CheckRange(PageSize, 1), ErrInvalidMemoryAccess)
	require.NoError(t, mgr.CheckRange(PageSize, 0))
}

// memoryModule exports one memory with 1 initial and 2 maximum pages.
var memoryModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x05, 0x04, 0x01, 0x01, 0x01, 0x02,
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
}

func TestWazeroMemoryAdapter(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	mod, err := r.Instantiate(ctx, memoryModule)
	require.NoError(t, err)

	w := NewWazeroMemory(mod.Memory())
	assert.Equal(t, uint32(1), w.Pages())

	require.NoError(t, w.Write(PageSize-2, []byte{1, 2}))
	require.ErrorIs(t, w.Write(PageSize-1, []byte{1, 2}), ErrInvalidMemoryAccess)
	buf := make([]byte, 2)
	require.NoError(t, w.Read(PageSize-2, buf))
	assert.Equal(t, []byte{1, 2}, buf)

	pages, err := w.Grow(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), pages)
	_, err = w.Grow(1)
	require.ErrorIs(t, err, ErrGrowthExceedsMaximum)
	assert.Equal(t, uint32(2), w.Pages())
}
