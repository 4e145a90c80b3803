package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestB256String(t *testing.T) {
	// keccak256 of the empty string
	hexRepr := "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
	h := ForceNewB256(hexRepr)

	assert.Equal(t, hexRepr, h.String())
	assert.Equal(t, byte(0xC5), h.Bytes()[0])
	assert.False(t, h.IsZero())
	assert.True(t, B256{}.IsZero())
}

func TestB256JSON(t *testing.T) {
	h := B256{0xAB}
	bz, err := json.Marshal(h)
	require.NoError(t, err)
	assert.Equal(t, `"ab00000000000000000000000000000000000000000000000000000000000000"`, string(bz))

	var parsed B256
	require.NoError(t, json.Unmarshal(bz, &parsed))
	assert.Equal(t, h, parsed)

	assert.Error(t, json.Unmarshal([]byte(`"abcd"`), &parsed))
	assert.Error(t, json.Unmarshal([]byte(`"zz"`), &parsed))
	assert.Error(t, json.Unmarshal([]byte(`12`), &parsed))
}

func TestNewB256(t *testing.T) {
	_, err := NewB256(make([]byte, 31))
	assert.Error(t, err)
	h, err := NewB256(make([]byte, 32))
	require.NoError(t, err)
	assert.True(t, h.IsZero())

	assert.Panics(t, func() { ForceNewB256("not hex") })
	assert.Panics(t, func() { ForceNewB256("abcd") })
}

func TestBytecodeOrHash(t *testing.T) {
	inline := InlineBytecode([]byte{1}, B256{2})
	assert.True(t, inline.IsInline())
	assert.Equal(t, B256{2}, inline.Hash)

	byHash := CodeHash(B256{3})
	assert.False(t, byHash.IsInline())
	assert.Nil(t, byHash.Bytecode)
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, "OutOfFuel", ExitCodeOutOfFuel.String())
	assert.Equal(t, "CallId(7)", ExitCode(7).String())
	assert.Equal(t, "ExitCode(-3)", ExitCode(-3).String())

	assert.True(t, ExitCodeOk.IsOk())
	assert.False(t, ExitCodeOk.IsError())
	assert.True(t, ExitCodePanic.IsError())
	assert.True(t, ExitCode(1).IsCallID())
	assert.False(t, ExitCode(-3).IsKnown())
	assert.Equal(t, int32(-2013), ExitCodeUnresolvedFunction.Int32())

	codes := KnownExitCodes()
	assert.Len(t, codes, 23)
	for _, c := range codes {
		assert.True(t, c.IsKnown(), c.String())
		assert.False(t, c.IsCallID(), c.String())
	}
}

func TestTakeAndContinue(t *testing.T) {
	r := ExecutionResult{ExitCode: ExitCodePanic, FuelConsumed: 5, Output: []byte{1}, ReturnData: []byte{2}}
	taken := r.TakeAndContinue(false)
	assert.Equal(t, ExitCodePanic, taken.ExitCode)
	assert.Equal(t, []byte{1}, taken.Output)
	assert.Equal(t, ExecutionResult{}, r)

	r = ExecutionResult{FuelConsumed: 5, Output: []byte{1}, ReturnData: []byte{2}}
	taken = r.TakeAndContinue(true)
	assert.Equal(t, uint64(5), taken.FuelConsumed)
	assert.Nil(t, taken.Output)
	assert.Nil(t, taken.ReturnData)
	assert.Equal(t, []byte{1}, r.Output)
	assert.Equal(t, []byte{2}, r.ReturnData)
	assert.Zero(t, r.FuelConsumed)
}

func TestRuntimeResult(t *testing.T) {
	done := RuntimeResult{Result: &ExecutionResult{ExitCode: ExitCodeErr}}
	assert.False(t, done.Interrupted())
	assert.Equal(t, ExitCodeErr, done.IntoExecutionResult().ExitCode)

	parked := RuntimeResult{Interruption: &ExecutionInterruption{CallID: 3}}
	assert.True(t, parked.Interrupted())
	assert.Panics(t, func() { parked.IntoExecutionResult() })
}

func TestSyscallInvocationParams(t *testing.T) {
	p := SyscallInvocationParams{CodeHash: B256{9}, Input: []byte("in"), FuelLimit: 77, State: 1}
	bz, err := p.Encode()
	require.NoError(t, err)
	decoded, err := DecodeSyscallInvocationParams(bz)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)

	_, err = DecodeSyscallInvocationParams([]byte{0xC1})
	assert.Error(t, err)
}

func TestDefaultVMConfig(t *testing.T) {
	cfg := DefaultVMConfig()
	assert.Equal(t, "memdb", cfg.Storage.Backend)
	assert.NotZero(t, cfg.Fuel.Limit)
	assert.NotZero(t, cfg.Limits.MaxMemoryPages)

	bz, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(bz), `"max_memory_pages":1024`)
}
