package host

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/rwasm-go/rwasmvm/internal/runtime/constants"
	"github.com/rwasm-go/rwasmvm/internal/runtime/fuel"
	"github.com/rwasm-go/rwasmvm/internal/runtime/memory"
	"github.com/rwasm-go/rwasmvm/internal/runtime/rwasm"
)

// SysFuncIdx identifies a syscall. The high byte is the syscall group.
type SysFuncIdx uint32

const (
	SysExit               SysFuncIdx = 0x0000
	SysState              SysFuncIdx = 0x0002
	SysRead               SysFuncIdx = 0x0003
	SysInputSize          SysFuncIdx = 0x0004
	SysWrite              SysFuncIdx = 0x0005
	SysOutputSize         SysFuncIdx = 0x0006
	SysReadOutput         SysFuncIdx = 0x0007
	SysExec               SysFuncIdx = 0x0008
	SysResume             SysFuncIdx = 0x0009
	SysForwardOutput      SysFuncIdx = 0x000A
	SysChargeFuelManually SysFuncIdx = 0x000B
	SysFuel               SysFuncIdx = 0x000C
	SysPreimageSize       SysFuncIdx = 0x000D
	SysPreimageCopy       SysFuncIdx = 0x000E
	SysDebugLog           SysFuncIdx = 0x000F
	SysChargeFuel         SysFuncIdx = 0x0010

	SysKeccak256      SysFuncIdx = 0x0101
	SysSha256         SysFuncIdx = 0x0102
	SysSha256Compress SysFuncIdx = 0x0103

	SysSecp256k1Recover SysFuncIdx = 0x0401
	SysSecp256r1Verify  SysFuncIdx = 0x0402

	SysBls12381G1Add SysFuncIdx = 0x0601

	SysBn254Add    SysFuncIdx = 0x0701
	SysBn254Double SysFuncIdx = 0x0702

	SysUint256MulMod SysFuncIdx = 0x0801

	SysStorageRead  SysFuncIdx = 0x0901
	SysStorageWrite SysFuncIdx = 0x0902
)

// FuelRuleKind selects how a syscall is priced.
type FuelRuleKind uint8

const (
	FuelNone FuelRuleKind = iota
	FuelConst
	FuelLinear
	FuelQuadratic
)

// FuelRule is charged by the dispatcher before the handler runs. Linear and quadratic
// rules price the byte length found in params[Param] in 32-byte words.
type FuelRule struct {
	Kind    FuelRuleKind
	Param   uint8
	Base    uint64
	Word    uint64
	Divisor uint64
}

func NoFuel() FuelRule { return FuelRule{Kind: FuelNone} }

func ConstFuel(cost uint64) FuelRule { return FuelRule{Kind: FuelConst, Base: cost} }

func LinearFuel(param uint8, base, word uint64) FuelRule {
	return FuelRule{Kind: FuelLinear, Param: param, Base: base, Word: word}
}

func QuadraticFuel(param uint8, word, divisor uint64) FuelRule {
	return FuelRule{Kind: FuelQuadratic, Param: param, Word: word, Divisor: divisor}
}

func words(n uint64) uint64 {
	return n/32 + min(n%32, 1)
}

// Cost evaluates the rule against the call's params. Arithmetic saturates.
func (r FuelRule) Cost(params []rwasm.Value) uint64 {
	var n uint64
	if r.Kind == FuelLinear || r.Kind == FuelQuadratic {
		if int(r.Param) < len(params) {
			n = uint64(params[r.Param].U32())
		}
	}
	switch r.Kind {
	case FuelConst:
		return r.Base
	case FuelLinear:
		return fuel.SaturatingAdd(r.Base, fuel.SaturatingMul(r.Word, words(n)))
	case FuelQuadratic:
		w := words(n)
		divisor := max(r.Divisor, 1)
		cost := fuel.SaturatingAdd(fuel.SaturatingMul(r.Word, w), fuel.SaturatingMul(w, w)/divisor)
		return fuel.SaturatingMul(cost, constants.FuelDenomRate)
	}
	return 0
}

// Caller is what a handler sees of the invocation: its context and memory.
type Caller struct {
	Ctx    *Context
	Memory *memory.Manager
}

// HandlerFunc implements one syscall. It either fills results and returns nil, returns
// an error that halts execution, or parks an interruption and returns
// rterrors.ErrInterruptionCalled.
type HandlerFunc func(c *Caller, params, results []rwasm.Value) error

// SyscallEntry is one row of the host-call ABI.
type SyscallEntry struct {
	Name    string
	Index   SysFuncIdx
	Params  []api.ValueType
	Results []api.ValueType
	Fuel    FuelRule
	Handler HandlerFunc
}

// SyscallTable maps import names and indexes to entries. It is built once and only read
// afterwards.
type SyscallTable struct {
	entries []SyscallEntry
	byName  map[string]int
	byIndex map[SysFuncIdx]int
}

func NewSyscallTable() *SyscallTable {
	return &SyscallTable{
		byName:  make(map[string]int),
		byIndex: make(map[SysFuncIdx]int),
	}
}

// Register adds an entry. Names and indexes must be unique.
func (t *SyscallTable) Register(entry SyscallEntry) {
	if _, dup := t.byName[entry.Name]; dup {
		panic("host: duplicate syscall name " + entry.Name)
	}
	if _, dup := t.byIndex[entry.Index]; dup {
		panic("host: duplicate syscall index for " + entry.Name)
	}
	t.entries = append(t.entries, entry)
	t.byName[entry.Name] = len(t.entries) - 1
	t.byIndex[entry.Index] = len(t.entries) - 1
}

func (t *SyscallTable) Lookup(name string) (SyscallEntry, bool) {
	i, ok := t.byName[name]
	if !ok {
		return SyscallEntry{}, false
	}
	return t.entries[i], true
}

func (t *SyscallTable) Entry(idx SysFuncIdx) (SyscallEntry, bool) {
	i, ok := t.byIndex[idx]
	if !ok {
		return SyscallEntry{}, false
	}
	return t.entries[i], true
}

// Entries lists the table in registration order.
func (t *SyscallTable) Entries() []SyscallEntry {
	return append([]SyscallEntry(nil), t.entries...)
}

// Linker exposes the table to the rWASM engine's import resolution.
func (t *SyscallTable) Linker() *rwasm.ImportLinker {
	l := rwasm.NewImportLinker()
	for _, e := range t.entries {
		l.Insert(rwasm.ImportEntry{
			Name:    e.Name,
			Index:   uint32(e.Index),
			Params:  uint8(len(e.Params)),
			Results: uint8(len(e.Results)),
		})
	}
	return l
}
