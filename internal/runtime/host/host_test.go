package host

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwasm-go/rwasmvm/internal/runtime/constants"
	"github.com/rwasm-go/rwasmvm/internal/runtime/crypto"
	rterrors "github.com/rwasm-go/rwasmvm/internal/runtime/error"
	"github.com/rwasm-go/rwasmvm/internal/runtime/memory"
	"github.com/rwasm-go/rwasmvm/internal/runtime/rwasm"
	"github.com/rwasm-go/rwasmvm/types"
)

type mapStorage struct {
	data        map[string][]byte
	checkpoints []map[string][]byte
}

func newMapStorage() *mapStorage {
	return &mapStorage{data: make(map[string][]byte)}
}

func (s *mapStorage) Get(key []byte) ([]byte, error) { return s.data[string(key)], nil }

func (s *mapStorage) Update(key, value []byte) error {
	s.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (s *mapStorage) Remove(key []byte) error {
	delete(s.data, string(key))
	return nil
}

func (s *mapStorage) Checkpoint() int {
	snap := make(map[string][]byte, len(s.data))
	for k, v := range s.data {
		snap[k] = v
	}
	s.checkpoints = append(s.checkpoints, snap)
	return len(s.checkpoints) - 1
}

func (s *mapStorage) Rollback(cp int) error {
	s.data = s.checkpoints[cp]
	s.checkpoints = s.checkpoints[:cp]
	return nil
}

type fixture struct {
	ctx   *Context
	mem   *memory.Linear
	table *SyscallTable
	disp  *Dispatcher
}

func newFixture(t *testing.T, ctx *Context) *fixture {
	t.Helper()
	mem, err := memory.NewLinear(1, 1, nil)
	require.NoError(t, err)
	table := DefaultSyscallTable()
	return &fixture{ctx: ctx, mem: mem, table: table, disp: NewDispatcher(table, ctx)}
}

// call invokes the named syscall with the given params and returns its results.
func (f *fixture) call(t *testing.T, name string, params ...rwasm.Value) ([]rwasm.Value, error) {
	t.Helper()
	entry, ok := f.table.Lookup(name)
	require.True(t, ok, name)
	require.Len(t, params, len(entry.Params), name)
	results := make([]rwasm.Value, len(entry.Results))
	err := f.disp.InvokeSyscall(uint32(entry.Index), f.mem, params, results)
	return results, err
}

func (f *fixture) write(t *testing.T, offset uint32, data []byte) {
	t.Helper()
	require.NoError(t, f.mem.Write(offset, data))
}

func (f *fixture) read(t *testing.T, offset, length uint32) []byte {
	t.Helper()
	buf := make([]byte, length)
	require.NoError(t, f.mem.Read(offset, buf))
	return buf
}

func TestSyscallTable(t *testing.T) {
	table := DefaultSyscallTable()
	linker := table.Linker()
	assert.Equal(t, len(table.Entries()), linker.Len())

	for _, e := range table.Entries() {
		imp, ok := linker.Resolve(e.Name)
		require.True(t, ok, e.Name)
		assert.Equal(t, uint32(e.Index), imp.Index)
		assert.Equal(t, len(e.Params), int(imp.Params))
		assert.Equal(t, len(e.Results), int(imp.Results))
		assert.NotNil(t, e.Handler, e.Name)
	}

	entry, ok := table.Lookup("_exec")
	require.True(t, ok)
	assert.Len(t, entry.Params, 5)
	assert.Panics(t, func() { table.Register(entry) })
}

func TestFuelRuleCost(t *testing.T) {
	params := []rwasm.Value{0, 33}
	assert.Equal(t, uint64(0), NoFuel().Cost(params))
	assert.Equal(t, uint64(7), ConstFuel(7).Cost(params))
	assert.Equal(t, uint64(10+2*3), LinearFuel(1, 10, 3).Cost(params))
	assert.Equal(t, uint64(10), LinearFuel(0, 10, 3).Cost(params))

	// 33 bytes is 2 words: (3*2 + 4/512) * rate.
	assert.Equal(t, 6*uint64(constants.FuelDenomRate), QuadraticFuel(1, 3, 512).Cost(params))
	big := []rwasm.Value{rwasm.U32(math.MaxUint32)}
	assert.Equal(t, uint64(math.MaxUint64), LinearFuel(0, 1, math.MaxUint64).Cost(big))
}

func TestDispatcherChargesBeforeHandler(t *testing.T) {
	ctx := NewContext().WithFuelLimit(constants.LowFuelCost - 1)
	f := newFixture(t, ctx)
	_, err := f.call(t, "_exit", rwasm.I32(-1))
	assert.Equal(t, types.ExitCodeOutOfFuel, rterrors.ExitCodeOf(err))
	assert.Equal(t, types.ExitCodeOk, ctx.ExitCode())
	assert.Equal(t, uint64(0), ctx.Meter().Consumed())

	err = f.disp.InvokeSyscall(0xFFFF, f.mem, nil, nil)
	assert.Equal(t, types.ExitCodeUnresolvedFunction, rterrors.ExitCodeOf(err))
}

func TestExit(t *testing.T) {
	f := newFixture(t, NewContext().WithDisableFuel(true))
	_, err := f.call(t, "_exit", rwasm.I32(int32(types.ExitCodePanic)))
	require.ErrorIs(t, err, rterrors.ErrExecutionHalted)
	assert.Equal(t, types.ExitCodePanic, f.ctx.ExitCode())

	f = newFixture(t, NewContext().WithDisableFuel(true))
	_, err = f.call(t, "_exit", rwasm.I32(5))
	assert.Equal(t, types.ExitCodeNonNegativeExitCode, rterrors.ExitCodeOf(err))
}

func TestInputOutput(t *testing.T) {
	ctx := NewContext().WithDisableFuel(true).WithInput([]byte("hello")).WithState(constants.StateDeploy).WithMaxOutputSize(8)
	f := newFixture(t, ctx)

	res, err := f.call(t, "_input_size")
	require.NoError(t, err)
	assert.Equal(t, rwasm.U32(5), res[0])
	res, err = f.call(t, "_state")
	require.NoError(t, err)
	assert.Equal(t, rwasm.U32(1), res[0])

	_, err = f.call(t, "_read", 100, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("ello"), f.read(t, 100, 4))

	_, err = f.call(t, "_read", 100, 2, 4)
	assert.Equal(t, types.ExitCodeInputOutputOutOfBounds, rterrors.ExitCodeOf(err))
	_, err = f.call(t, "_read", memory.PageSize-2, 0, 4)
	assert.Equal(t, types.ExitCodeMemoryOutOfBounds, rterrors.ExitCodeOf(err))

	_, err = f.call(t, "_write", 100, 4)
	require.NoError(t, err)
	_, err = f.call(t, "_write", 100, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("elloello"), ctx.Result.Output)
	_, err = f.call(t, "_write", 100, 1)
	assert.Equal(t, types.ExitCodeOutputOverflow, rterrors.ExitCodeOf(err))
	assert.Len(t, ctx.Result.Output, 8)
}

func TestReturnData(t *testing.T) {
	ctx := NewContext().WithDisableFuel(true)
	ctx.Result.ReturnData = []byte{1, 2, 3}
	f := newFixture(t, ctx)

	res, err := f.call(t, "_output_size")
	require.NoError(t, err)
	assert.Equal(t, rwasm.U32(3), res[0])

	_, err = f.call(t, "_read_output", 10, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3}, f.read(t, 10, 2))
	_, err = f.call(t, "_read_output", 10, 3, 1)
	assert.Equal(t, types.ExitCodeInputOutputOutOfBounds, rterrors.ExitCodeOf(err))

	_, err = f.call(t, "_forward_output", 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, ctx.Result.Output)
}

func TestExecParksInterruption(t *testing.T) {
	ctx := NewContext().WithFuelLimit(1_000)
	f := newFixture(t, ctx)
	hash := crypto.Keccak256([]byte("callee"))
	f.write(t, 0, hash[:])

	_, err := f.call(t, "_exec", 0, 64, 10, 0, rwasm.U32(constants.StateMain))
	require.ErrorIs(t, err, rterrors.ErrInterruptionCalled)
	req := ctx.TakeInterruption()
	require.NotNil(t, req)
	assert.Equal(t, InterruptionExec, req.Kind)
	assert.Equal(t, types.B256(hash), req.CodeHash)
	assert.Equal(t, uint32(64), req.InputOffset)
	assert.Equal(t, uint32(10), req.InputLen)
	assert.Equal(t, uint64(1_000), req.FuelLimit)
	assert.True(t, req.IsRoot)
	assert.Nil(t, ctx.PendingInterruption())

	fuel16 := make([]byte, 16)
	binary.LittleEndian.PutUint64(fuel16, 400)
	f.write(t, 200, fuel16)
	_, err = f.call(t, "_exec", 0, 64, 10, 200, 0)
	require.ErrorIs(t, err, rterrors.ErrInterruptionCalled)
	req = ctx.TakeInterruption()
	assert.Equal(t, uint64(400), req.FuelLimit)
	assert.Equal(t, uint32(200), req.FuelPtr)

	binary.LittleEndian.PutUint64(fuel16, 1_001)
	f.write(t, 200, fuel16)
	_, err = f.call(t, "_exec", 0, 64, 10, 200, 0)
	assert.Equal(t, types.ExitCodeOutOfFuel, rterrors.ExitCodeOf(err))
	assert.Nil(t, ctx.PendingInterruption())

	_, err = f.call(t, "_exec", 0, memory.PageSize-4, 10, 0, 0)
	assert.Equal(t, types.ExitCodeMemoryOutOfBounds, rterrors.ExitCodeOf(err))
}

func TestExecWithoutMetering(t *testing.T) {
	ctx := NewContext().WithDisableFuel(true).WithCallDepth(3)
	f := newFixture(t, ctx)
	_, err := f.call(t, "_exec", 0, 0, 0, 0, 0)
	require.ErrorIs(t, err, rterrors.ErrInterruptionCalled)
	req := ctx.TakeInterruption()
	assert.Equal(t, uint64(math.MaxUint64), req.FuelLimit)
	assert.False(t, req.IsRoot)
}

func TestResumeIsRootOnly(t *testing.T) {
	f := newFixture(t, NewContext().WithDisableFuel(true).WithCallDepth(1))
	_, err := f.call(t, "_resume", 1, 0, 0, 0, 0)
	assert.Equal(t, types.ExitCodeRootCallOnly, rterrors.ExitCodeOf(err))

	ctx := NewContext().WithDisableFuel(true)
	f = newFixture(t, ctx)
	_, err = f.call(t, "_resume", 7, 16, 4, rwasm.I32(-1), 32)
	require.ErrorIs(t, err, rterrors.ErrInterruptionCalled)
	req := ctx.TakeInterruption()
	assert.Equal(t, InterruptionResume, req.Kind)
	assert.Equal(t, uint32(7), req.CallID)
	assert.Equal(t, types.ExitCodePanic, req.ExitCode)
	assert.Equal(t, uint32(32), req.FuelPtr)
}

func TestFuelSyscalls(t *testing.T) {
	ctx := NewContext().WithFuelLimit(constants.LowFuelCost + 1_000)
	f := newFixture(t, ctx)

	res, err := f.call(t, "_charge_fuel_manually", 300, rwasm.I64(-5))
	require.NoError(t, err)
	assert.Equal(t, rwasm.Value(constants.LowFuelCost+700), res[0])
	assert.Equal(t, int64(-5), ctx.Meter().Refunded())

	_, err = f.call(t, "_charge_fuel", 200)
	require.NoError(t, err)
	res, err = f.call(t, "_fuel")
	require.NoError(t, err)
	assert.Equal(t, rwasm.Value(500), res[0])

	_, err = f.call(t, "_charge_fuel", 501)
	assert.Equal(t, types.ExitCodeOutOfFuel, rterrors.ExitCodeOf(err))
}

func TestDebugLog(t *testing.T) {
	var buf bytes.Buffer
	ctx := NewContext().WithDisableFuel(true).WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
	f := newFixture(t, ctx)
	f.write(t, 0, []byte("ping"))

	_, err := f.call(t, "_debug_log", 0, 4)
	require.NoError(t, err)
	assert.Empty(t, buf.String())

	ctx.WithDebug(true)
	_, err = f.call(t, "_debug_log", 0, 4)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"log":"ping"`)
}

type preimages map[types.B256][]byte

func (p preimages) Preimage(h types.B256) ([]byte, bool) {
	code, ok := p[h]
	return code, ok
}

func TestPreimage(t *testing.T) {
	code := []byte{0xEF, 0x52, 0x01}
	hash := types.B256(crypto.Keccak256(code))
	ctx := NewContext().WithDisableFuel(true).WithPreimages(preimages{hash: code})
	f := newFixture(t, ctx)
	f.write(t, 0, hash[:])

	res, err := f.call(t, "_preimage_size", 0)
	require.NoError(t, err)
	assert.Equal(t, rwasm.U32(3), res[0])
	_, err = f.call(t, "_preimage_copy", 0, 100)
	require.NoError(t, err)
	assert.Equal(t, code, f.read(t, 100, 3))

	f.write(t, 0, make([]byte, 32))
	res, err = f.call(t, "_preimage_size", 0)
	require.NoError(t, err)
	assert.Equal(t, rwasm.Value(0), res[0])
	_, err = f.call(t, "_preimage_copy", 0, 100)
	assert.Equal(t, types.ExitCodeMalformedBuiltinParams, rterrors.ExitCodeOf(err))
}

func TestHashSyscalls(t *testing.T) {
	f := newFixture(t, NewContext().WithDisableFuel(true))
	f.write(t, 0, []byte("abc"))

	_, err := f.call(t, "_keccak256", 0, 3, 64)
	require.NoError(t, err)
	k := crypto.Keccak256([]byte("abc"))
	assert.Equal(t, k[:], f.read(t, 64, 32))

	_, err = f.call(t, "_sha256", 0, 3, 128)
	require.NoError(t, err)
	s := crypto.Sha256([]byte("abc"))
	assert.Equal(t, s[:], f.read(t, 128, 32))

	state := make([]byte, 32)
	for i, w := range crypto.Sha256IV {
		binary.LittleEndian.PutUint32(state[i*4:], w)
	}
	block := make([]byte, 64)
	copy(block, "abc")
	block[3] = 0x80
	block[63] = 24
	f.write(t, 256, state)
	f.write(t, 512, block)
	_, err = f.call(t, "_sha256_compress", 256, 512)
	require.NoError(t, err)
	out := f.read(t, 256, 32)
	for i := 0; i < 8; i++ {
		assert.Equal(t, binary.BigEndian.Uint32(s[i*4:]), binary.LittleEndian.Uint32(out[i*4:]))
	}
}

func TestCurveSyscalls(t *testing.T) {
	f := newFixture(t, NewContext().WithDisableFuel(true))
	gen := make([]byte, 64)
	gen[31], gen[63] = 1, 2

	f.write(t, 0, gen)
	f.write(t, 64, gen)
	_, err := f.call(t, "_bn254_add", 0, 64)
	require.NoError(t, err)
	sum := f.read(t, 0, 64)

	f.write(t, 128, gen)
	_, err = f.call(t, "_bn254_double", 128)
	require.NoError(t, err)
	assert.Equal(t, sum, f.read(t, 128, 64))

	bad := append([]byte(nil), gen...)
	bad[63] = 3
	f.write(t, 256, bad)
	_, err = f.call(t, "_bn254_double", 256)
	assert.Equal(t, types.ExitCodeMalformedBuiltinParams, rterrors.ExitCodeOf(err))
	assert.Equal(t, bad, f.read(t, 256, 64))

	_, err = f.call(t, "_bls12381_g1_add", 0, 96)
	assert.Equal(t, types.ExitCodeMalformedBuiltinParams, rterrors.ExitCodeOf(err))
}

func TestUint256MulModSyscall(t *testing.T) {
	f := newFixture(t, NewContext().WithDisableFuel(true))
	word := func(v byte) []byte {
		w := make([]byte, 32)
		w[31] = v
		return w
	}
	f.write(t, 0, word(6))
	f.write(t, 32, word(7))
	f.write(t, 64, word(10))
	_, err := f.call(t, "_uint256_mul_mod", 0, 32, 64)
	require.NoError(t, err)
	assert.Equal(t, word(2), f.read(t, 0, 32))
}

func TestSecp256k1RecoverSyscall(t *testing.T) {
	f := newFixture(t, NewContext().WithDisableFuel(true))
	res, err := f.call(t, "_secp256k1_recover", 0, 32, 96, 0)
	require.NoError(t, err)
	assert.Equal(t, rwasm.U32(crypto.SECP256K1_RECOVER_CODE_INVALID), res[0])

	res, err = f.call(t, "_secp256k1_recover", 0, 32, 96, 9)
	require.NoError(t, err)
	assert.Equal(t, rwasm.U32(crypto.SECP256K1_RECOVER_CODE_INVALID), res[0])
}

func TestStorageSyscalls(t *testing.T) {
	store := newMapStorage()
	ctx := NewContext().WithDisableFuel(true).WithStorage(store)
	f := newFixture(t, ctx)
	key := bytes.Repeat([]byte{0xAA}, 32)
	value := bytes.Repeat([]byte{0x01}, 32)
	f.write(t, 0, key)
	f.write(t, 32, value)

	res, err := f.call(t, "_storage_read", 0, 64)
	require.NoError(t, err)
	assert.Equal(t, rwasm.Value(0), res[0])

	_, err = f.call(t, "_storage_write", 0, 32)
	require.NoError(t, err)
	res, err = f.call(t, "_storage_read", 0, 64)
	require.NoError(t, err)
	assert.Equal(t, rwasm.Value(1), res[0])
	assert.Equal(t, value, f.read(t, 64, 32))

	f.write(t, 32, make([]byte, 32))
	_, err = f.call(t, "_storage_write", 0, 32)
	require.NoError(t, err)
	assert.Empty(t, store.data)

	noStore := newFixture(t, NewContext().WithDisableFuel(true))
	_, err = noStore.call(t, "_storage_write", 0, 32)
	assert.Equal(t, types.ExitCodeErr, rterrors.ExitCodeOf(err))
}

func TestContextInterruptionSlot(t *testing.T) {
	ctx := NewContext()
	ctx.SetInterruption(&InterruptionRequest{Kind: InterruptionExec})
	assert.Panics(t, func() { ctx.SetInterruption(&InterruptionRequest{}) })
	assert.NotNil(t, ctx.TakeInterruption())
	assert.Nil(t, ctx.TakeInterruption())

	remaining, ok := NewContext().WithDisableFuel(true).RemainingFuel()
	assert.False(t, ok)
	assert.Zero(t, remaining)
	remaining, ok = NewContext().WithFuelLimit(9).RemainingFuel()
	assert.True(t, ok)
	assert.Equal(t, uint64(9), remaining)
}

func TestInterruptionParams(t *testing.T) {
	mem, err := memory.NewLinear(1, 1, nil)
	require.NoError(t, err)
	require.NoError(t, mem.Write(10, []byte{9, 8, 7}))
	req := &InterruptionRequest{Kind: InterruptionExec, InputOffset: 10, InputLen: 3, FuelLimit: 5, State: 1}

	p, err := req.Params(mem)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 8, 7}, p.Input)
	assert.Equal(t, uint64(5), p.FuelLimit)

	req.InputOffset = memory.PageSize
	_, err = req.Params(mem)
	require.ErrorIs(t, err, memory.ErrInvalidMemoryAccess)
}

func TestRemainingFuelFollowsMeter(t *testing.T) {
	ctx := NewContext().WithFuelLimit(10)
	require.NoError(t, ctx.TryConsumeFuel(4))

	// the meter keeps the flag it was created with
	ctx.WithDisableFuel(true)
	remaining, ok := ctx.RemainingFuel()
	assert.True(t, ok)
	assert.Equal(t, uint64(6), remaining)
	assert.Error(t, ctx.TryConsumeFuel(7))

	ctx.ResetFuel(10)
	_, ok = ctx.RemainingFuel()
	assert.False(t, ok)
	assert.NoError(t, ctx.TryConsumeFuel(math.MaxUint64))
}
