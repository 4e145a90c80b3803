package rwasm

import (
	"errors"
	"fmt"
	"math"

	"github.com/rwasm-go/rwasmvm/internal/runtime/constants"
)

// NullFunc marks an empty table slot.
const NullFunc = math.MaxUint32

var (
	ErrEmptyCode          = errors.New("module has no code")
	ErrUnsupportedOpcode  = errors.New("unsupported opcode")
	ErrInvalidBranch      = errors.New("branch target out of code")
	ErrInvalidIndex       = errors.New("index out of range")
	ErrInvalidMemoryLimit = errors.New("invalid memory limits")
)

// FuncType is a function signature. Operands are untyped, only arity matters.
type FuncType struct {
	Params  uint8 `msgpack:"params"`
	Results uint8 `msgpack:"results"`
}

// MemoryLimits declares the linear memory in pages. A zero Maximum declares no maximum.
type MemoryLimits struct {
	Initial uint32 `msgpack:"initial"`
	Maximum uint32 `msgpack:"maximum"`
}

// DataSegment is copied into memory at instantiation.
type DataSegment struct {
	Offset uint32 `msgpack:"offset"`
	Bytes  []byte `msgpack:"bytes"`
}

// Module is a decoded rWASM program: one flat instruction stream, functions as entry
// offsets into it, and the tables describing imports, signatures and initial state.
type Module struct {
	Code           []Instruction     `msgpack:"code"`
	Funcs          []uint32          `msgpack:"funcs"`
	FuncSignatures []uint32          `msgpack:"func_signatures"`
	Signatures     []FuncType        `msgpack:"signatures"`
	Table          []uint32          `msgpack:"table"`
	Imports        []string          `msgpack:"imports"`
	Globals        []Value           `msgpack:"globals"`
	Memory         MemoryLimits      `msgpack:"memory"`
	Data           []DataSegment     `msgpack:"data"`
	Entrypoints    map[string]uint32 `msgpack:"entrypoints"`
}

// EmptyModule is what empty bytecode decodes to: both entrypoints return immediately.
func EmptyModule() *Module {
	return &Module{
		Code:           []Instruction{Return(0, 0)},
		Funcs:          []uint32{0},
		FuncSignatures: []uint32{0},
		Signatures:     []FuncType{{}},
		Entrypoints: map[string]uint32{
			constants.EntrypointMain:   0,
			constants.EntrypointDeploy: 0,
		},
	}
}

// Signature returns the signature of function fn.
func (m *Module) Signature(fn uint32) FuncType {
	return m.Signatures[m.FuncSignatures[fn]]
}

// Validate checks every index and branch so the engine can execute without
// re-checking static properties.
func (m *Module) Validate() error {
	if len(m.Code) == 0 {
		return ErrEmptyCode
	}
	if len(m.FuncSignatures) != len(m.Funcs) {
		return fmt.Errorf("%w: %d functions but %d signatures", ErrInvalidIndex, len(m.Funcs), len(m.FuncSignatures))
	}
	for i, pc := range m.Funcs {
		if int(pc) >= len(m.Code) {
			return fmt.Errorf("%w: function %d starts at %d", ErrInvalidIndex, i, pc)
		}
		if int(m.FuncSignatures[i]) >= len(m.Signatures) {
			return fmt.Errorf("%w: function %d has signature %d", ErrInvalidIndex, i, m.FuncSignatures[i])
		}
	}
	for i, fn := range m.Table {
		if fn != NullFunc && int(fn) >= len(m.Funcs) {
			return fmt.Errorf("%w: table slot %d holds function %d", ErrInvalidIndex, i, fn)
		}
	}
	for name, fn := range m.Entrypoints {
		if int(fn) >= len(m.Funcs) {
			return fmt.Errorf("%w: entrypoint %q is function %d", ErrInvalidIndex, name, fn)
		}
	}
	if m.Memory.Maximum != 0 && m.Memory.Initial > m.Memory.Maximum {
		return fmt.Errorf("%w: initial %d above maximum %d", ErrInvalidMemoryLimit, m.Memory.Initial, m.Memory.Maximum)
	}
	if m.Memory.Initial > constants.MaxWasmPages || m.Memory.Maximum > constants.MaxWasmPages {
		return fmt.Errorf("%w: more than %d pages", ErrInvalidMemoryLimit, constants.MaxWasmPages)
	}
	for pc := range m.Code {
		if err := m.validateInstruction(pc); err != nil {
			return fmt.Errorf("instruction %d (%s): %w", pc, m.Code[pc], err)
		}
	}
	return nil
}

func (m *Module) validateInstruction(pc int) error {
	instr := m.Code[pc]
	if !instr.Op.Valid() {
		return ErrUnsupportedOpcode
	}
	switch instr.Op {
	case OpLocalGet, OpLocalSet, OpLocalTee:
		if instr.Imm == 0 || instr.Imm > math.MaxUint32 {
			return fmt.Errorf("%w: local depth %d", ErrInvalidIndex, instr.Imm)
		}
	case OpBr, OpBrIfEqz, OpBrIfNez:
		target := int64(pc) + int64(BranchOffset(instr.Imm))
		if target < 0 || target >= int64(len(m.Code)) {
			return ErrInvalidBranch
		}
	case OpBrTable:
		n := instr.Imm
		if n == 0 || uint64(pc)+n >= uint64(len(m.Code)) {
			return ErrInvalidBranch
		}
		for i := uint64(1); i <= n; i++ {
			if m.Code[uint64(pc)+i].Op != OpBr {
				return fmt.Errorf("%w: br_table entry %d is not a branch", ErrInvalidBranch, i-1)
			}
		}
	case OpCallInternal:
		if instr.Imm >= uint64(len(m.Funcs)) {
			return fmt.Errorf("%w: function %d", ErrInvalidIndex, instr.Imm)
		}
	case OpCall:
		if instr.Imm >= uint64(len(m.Imports)) {
			return fmt.Errorf("%w: import %d", ErrInvalidIndex, instr.Imm)
		}
	case OpCallIndirect:
		if instr.Imm >= uint64(len(m.Signatures)) {
			return fmt.Errorf("%w: signature %d", ErrInvalidIndex, instr.Imm)
		}
	case OpGlobalGet, OpGlobalSet:
		if instr.Imm >= uint64(len(m.Globals)) {
			return fmt.Errorf("%w: global %d", ErrInvalidIndex, instr.Imm)
		}
	case OpI32Const:
		if instr.Imm > math.MaxUint32 {
			return fmt.Errorf("%w: i32 constant wider than 32 bits", ErrInvalidIndex)
		}
	}
	if instr.Op.isMemoryAccess() && instr.Imm > math.MaxUint32 {
		return fmt.Errorf("%w: memory offset %d", ErrInvalidIndex, instr.Imm)
	}
	return nil
}
