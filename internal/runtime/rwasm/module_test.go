package rwasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwasm-go/rwasmvm/internal/runtime/constants"
)

func TestEncodeDecode(t *testing.T) {
	b := NewModuleBuilder()
	b.Memory(1, 2).Data(4, []byte("rwasm"))
	g := b.Global(9)
	double := b.Import("double")
	fn := b.Function(0, 1, GlobalGet(g), I64Const(-3), Op(OpDrop), Return(0, 1))
	b.Function(0, 0, I32Const(0), Call(double), Drop(), Return(0, 0))
	b.Entrypoint(constants.EntrypointMain, fn)
	m, err := b.Build()
	require.NoError(t, err)

	bin, err := Encode(m)
	require.NoError(t, err)
	assert.True(t, IsRwasm(bin))
	assert.False(t, IsWasm(bin))

	got, err := Decode(bin)
	require.NoError(t, err)
	assert.Equal(t, m.Code, got.Code)
	assert.Equal(t, m.Funcs, got.Funcs)
	assert.Equal(t, m.Signatures, got.Signatures)
	assert.Equal(t, m.Imports, got.Imports)
	assert.Equal(t, m.Globals, got.Globals)
	assert.Equal(t, m.Memory, got.Memory)
	assert.Equal(t, m.Data, got.Data)
	assert.Equal(t, m.Entrypoints, got.Entrypoints)

	results, err := newEngine(t, got, nil, EngineConfig{}).Execute(constants.EntrypointMain)
	require.NoError(t, err)
	assert.Equal(t, []Value{9}, results)
}

func TestDecodeEmptyBytecode(t *testing.T) {
	m, err := Decode(nil)
	require.NoError(t, err)
	for _, entry := range []string{constants.EntrypointMain, constants.EntrypointDeploy} {
		e, err := NewEngine(m, NewImportLinker(), nil, EngineConfig{})
		require.NoError(t, err)
		results, err := e.Execute(entry)
		require.NoError(t, err)
		assert.Empty(t, results)
	}
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode([]byte{0x00, 0x61, 0x73, 0x6D, 0x01})
	require.ErrorIs(t, err, ErrBadMagic)

	_, err = Decode([]byte{0xEF, 0x52, 0x02})
	require.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = Decode([]byte{0xEF, 0x52, Version, 0xC1})
	require.Error(t, err)

	float := EmptyModule()
	float.Code = append([]Instruction{{Op: opcodeCount}}, float.Code...)
	bin, err := Encode(float)
	require.NoError(t, err)
	_, err = Decode(bin)
	require.ErrorIs(t, err, ErrUnsupportedOpcode)
}

func TestValidate(t *testing.T) {
	cases := map[string]struct {
		mutate func(m *Module)
		want   error
	}{
		"branch before code": {func(m *Module) { m.Code[0] = Br(-1) }, ErrInvalidBranch},
		"branch past code":   {func(m *Module) { m.Code[0] = BrIfNez(5) }, ErrInvalidBranch},
		"br_table entries":   {func(m *Module) { m.Code[0] = BrTable(1) }, ErrInvalidBranch},
		"call target":        {func(m *Module) { m.Code[0] = CallInternal(3) }, ErrInvalidIndex},
		"import":             {func(m *Module) { m.Code[0] = Call(0) }, ErrInvalidIndex},
		"global":             {func(m *Module) { m.Code[0] = GlobalGet(0) }, ErrInvalidIndex},
		"local depth zero":   {func(m *Module) { m.Code[0] = LocalGet(0) }, ErrInvalidIndex},
		"table slot":         {func(m *Module) { m.Table = []uint32{4} }, ErrInvalidIndex},
		"entrypoint":         {func(m *Module) { m.Entrypoints["main"] = 2 }, ErrInvalidIndex},
		"memory limits":      {func(m *Module) { m.Memory = MemoryLimits{Initial: 3, Maximum: 2} }, ErrInvalidMemoryLimit},
		"no code":            {func(m *Module) { m.Code = nil }, ErrEmptyCode},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			m := EmptyModule()
			m.Code = append([]Instruction{Op(OpDrop)}, m.Code...)
			tc.mutate(m)
			assert.ErrorIs(t, m.Validate(), tc.want)
		})
	}
}

func TestInstructionString(t *testing.T) {
	assert.Equal(t, "return drop=2 keep=1", Return(2, 1).String())
	assert.Equal(t, "br -4", Br(-4).String())
	assert.Equal(t, "i32.const 7", I32Const(7).String())
	assert.Equal(t, "drop", Drop().String())
	assert.Equal(t, "opcode(999)", Opcode(999).String())
}
