package rwasm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/rwasm-go/rwasmvm/internal/runtime/constants"
	rterrors "github.com/rwasm-go/rwasmvm/internal/runtime/error"
	"github.com/rwasm-go/rwasmvm/internal/runtime/fuel"
	"github.com/rwasm-go/rwasmvm/internal/runtime/memory"
)

// errStackUnderflow is reported as a stack height violation.
func errStackUnderflow(pc uint32) error {
	return fmt.Errorf("operand stack underflow at %d: %w", pc, rterrors.TrapStackOverflow)
}

func (e *Engine) push(v Value) { e.stack = append(e.stack, v) }

func (e *Engine) pop() Value {
	v := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return v
}

func (e *Engine) top() *Value { return &e.stack[len(e.stack)-1] }

func (e *Engine) charge(amount uint64) error {
	if e.meter == nil || amount == 0 {
		return nil
	}
	return e.meter.TryConsume(amount)
}

// loop runs until the entry function returns, a trap occurs or a syscall interrupts.
func (e *Engine) loop() ([]Value, error) {
	code := e.module.Code
	for {
		if int(e.pc) >= len(code) {
			return nil, fmt.Errorf("pc %d past end of code: %w", e.pc, rterrors.TrapUnreachableCodeReached)
		}
		instr := code[e.pc]
		if err := e.charge(constants.FuelPerInstruction); err != nil {
			return nil, err
		}
		if len(e.stack) < instr.Op.pops() {
			return nil, errStackUnderflow(e.pc)
		}

		halted, err := e.step(instr)
		if err != nil {
			return nil, err
		}
		if halted {
			if len(e.stack) < e.entryResults {
				return nil, errStackUnderflow(e.pc)
			}
			results := append([]Value(nil), e.stack[len(e.stack)-e.entryResults:]...)
			e.stack = e.stack[:0]
			return results, nil
		}
		if len(e.stack) > e.maxStack {
			return nil, fmt.Errorf("operand stack above %d: %w", e.maxStack, rterrors.TrapStackOverflow)
		}
	}
}

// step executes one instruction and advances pc. It reports true when the entry
// function returned.
func (e *Engine) step(instr Instruction) (bool, error) {
	switch op := instr.Op; op {
	case OpUnreachable:
		return false, rterrors.TrapUnreachableCodeReached

	case OpLocalGet:
		d := int(instr.Imm)
		if d > len(e.stack) {
			return false, errStackUnderflow(e.pc)
		}
		e.push(e.stack[len(e.stack)-d])
	case OpLocalSet:
		v := e.pop()
		d := int(instr.Imm)
		if d > len(e.stack) {
			return false, errStackUnderflow(e.pc)
		}
		e.stack[len(e.stack)-d] = v
	case OpLocalTee:
		d := int(instr.Imm)
		if d > len(e.stack) {
			return false, errStackUnderflow(e.pc)
		}
		e.stack[len(e.stack)-d] = *e.top()

	case OpBr:
		e.branch(instr.Imm)
		return false, nil
	case OpBrIfEqz:
		if e.pop() == 0 {
			e.branch(instr.Imm)
			return false, nil
		}
	case OpBrIfNez:
		if e.pop() != 0 {
			e.branch(instr.Imm)
			return false, nil
		}
	case OpBrTable:
		idx := uint64(e.pop().U32())
		if idx >= instr.Imm {
			idx = instr.Imm - 1
		}
		e.pc += 1 + uint32(idx)
		return false, nil

	case OpConsumeFuel:
		if err := e.charge(instr.Imm); err != nil {
			return false, err
		}

	case OpReturn:
		return e.ret(instr.Imm)
	case OpReturnIfNez:
		if e.pop() != 0 {
			return e.ret(instr.Imm)
		}

	case OpCallInternal:
		return false, e.callInternal(uint32(instr.Imm))
	case OpCall:
		return false, e.callSyscall(uint32(instr.Imm))
	case OpCallIndirect:
		return false, e.callIndirect(uint32(instr.Imm))

	case OpDrop:
		e.pop()
	case OpSelect:
		cond := e.pop()
		v2 := e.pop()
		if cond == 0 {
			*e.top() = v2
		}
	case OpGlobalGet:
		e.push(e.globals[instr.Imm])
	case OpGlobalSet:
		e.globals[instr.Imm] = e.pop()

	case OpMemorySize:
		e.push(U32(e.memory.Pages()))
	case OpMemoryGrow:
		if err := e.memoryGrow(); err != nil {
			return false, err
		}
	case OpMemoryFill:
		n, val, dst := e.pop().U32(), e.pop(), e.pop().U32()
		if err := e.charge(uint64(n) >> constants.FuelPerBulkByteShift); err != nil {
			return false, err
		}
		if err := e.memory.Fill(dst, byte(val), n); err != nil {
			return false, err
		}
	case OpMemoryCopy:
		n, src, dst := e.pop().U32(), e.pop().U32(), e.pop().U32()
		if err := e.charge(uint64(n) >> constants.FuelPerBulkByteShift); err != nil {
			return false, err
		}
		if err := e.memory.Copy(dst, src, n); err != nil {
			return false, err
		}

	case OpTableSize:
		e.push(U32(uint32(len(e.table))))
	case OpTableGet:
		idx := e.pop().U32()
		if int(idx) >= len(e.table) {
			return false, rterrors.TrapTableOutOfBounds
		}
		e.push(U32(e.table[idx]))
	case OpTableSet:
		fn := e.pop().U32()
		idx := e.pop().U32()
		if int(idx) >= len(e.table) {
			return false, rterrors.TrapTableOutOfBounds
		}
		if fn != NullFunc && int(fn) >= len(e.module.Funcs) {
			return false, rterrors.TrapBadSignature
		}
		e.table[idx] = fn

	case OpI32Const, OpI64Const:
		e.push(Value(instr.Imm))

	default:
		switch {
		case op.isMemoryAccess():
			if err := e.memoryAccess(op, instr.Imm); err != nil {
				return false, err
			}
		default:
			if err := e.numeric(op); err != nil {
				return false, err
			}
		}
	}
	e.pc++
	return false, nil
}

func (e *Engine) branch(imm uint64) {
	e.pc = uint32(int64(e.pc) + int64(BranchOffset(imm)))
}

func (e *Engine) ret(imm uint64) (bool, error) {
	drop, keep := DropKeep(imm)
	if uint64(len(e.stack)) < uint64(drop)+uint64(keep) {
		return false, errStackUnderflow(e.pc)
	}
	if drop > 0 {
		base := len(e.stack) - int(drop) - int(keep)
		copy(e.stack[base:], e.stack[len(e.stack)-int(keep):])
		e.stack = e.stack[:base+int(keep)]
	}
	if len(e.frames) == 0 {
		return true, nil
	}
	e.pc = e.frames[len(e.frames)-1]
	e.frames = e.frames[:len(e.frames)-1]
	return false, nil
}

func (e *Engine) enter(fn uint32) error {
	if len(e.frames) >= constants.CallStackLimit {
		return fmt.Errorf("call frames above %d: %w", constants.CallStackLimit, rterrors.TrapStackOverflow)
	}
	e.frames = append(e.frames, e.pc+1)
	e.pc = e.module.Funcs[fn]
	return nil
}

func (e *Engine) callInternal(fn uint32) error {
	if len(e.stack) < int(e.module.Signature(fn).Params) {
		return errStackUnderflow(e.pc)
	}
	return e.enter(fn)
}

func (e *Engine) callIndirect(sig uint32) error {
	idx := e.pop().U32()
	if int(idx) >= len(e.table) {
		return rterrors.TrapTableOutOfBounds
	}
	fn := e.table[idx]
	if fn == NullFunc {
		return rterrors.TrapIndirectCallToNull
	}
	if e.module.FuncSignatures[fn] != sig && e.module.Signature(fn) != e.module.Signatures[sig] {
		return rterrors.TrapBadSignature
	}
	return e.callInternal(fn)
}

// callSyscall pops the import's params and hands them to the handler. On an
// interruption the pc is left after the call so Resume continues with the next
// instruction.
func (e *Engine) callSyscall(importIdx uint32) error {
	entry := e.imports[importIdx]
	if len(e.stack) < int(entry.Params) {
		return errStackUnderflow(e.pc)
	}
	base := len(e.stack) - int(entry.Params)
	params := append([]Value(nil), e.stack[base:]...)
	e.stack = e.stack[:base]
	results := make([]Value, entry.Results)

	err := e.handler.InvokeSyscall(entry.Index, e.memory, params, results)
	if errors.Is(err, rterrors.ErrInterruptionCalled) {
		e.pc++
		e.pendingResults = int(entry.Results)
		return err
	}
	if err != nil {
		return err
	}
	e.stack = append(e.stack, results...)
	e.pc++
	return nil
}

func (e *Engine) memoryGrow() error {
	delta := e.pop().U32()
	if err := e.charge(fuel.SaturatingMul(uint64(delta), constants.FuelPerMemoryPage)); err != nil {
		return err
	}
	prev := e.memory.Pages()
	if _, err := e.memory.Grow(delta); err != nil {
		if errors.Is(err, memory.ErrGrowthExceedsMaximum) || errors.Is(err, memory.ErrGrowthVetoed) {
			e.push(I32(-1))
			return nil
		}
		return err
	}
	e.push(U32(prev))
	return nil
}

type accessSpec struct {
	size   int
	signed bool
	wide   bool
	store  bool
}

var accessSpecs = map[Opcode]accessSpec{
	OpI32Load:    {4, false, false, false},
	OpI64Load:    {8, false, true, false},
	OpI32Load8S:  {1, true, false, false},
	OpI32Load8U:  {1, false, false, false},
	OpI32Load16S: {2, true, false, false},
	OpI32Load16U: {2, false, false, false},
	OpI64Load8S:  {1, true, true, false},
	OpI64Load8U:  {1, false, true, false},
	OpI64Load16S: {2, true, true, false},
	OpI64Load16U: {2, false, true, false},
	OpI64Load32S: {4, true, true, false},
	OpI64Load32U: {4, false, true, false},
	OpI32Store:   {4, false, false, true},
	OpI64Store:   {8, false, true, true},
	OpI32Store8:  {1, false, false, true},
	OpI32Store16: {2, false, false, true},
	OpI64Store8:  {1, false, true, true},
	OpI64Store16: {2, false, true, true},
	OpI64Store32: {4, false, true, true},
}

func (e *Engine) memoryAccess(op Opcode, offset uint64) error {
	acc := accessSpecs[op]
	var value Value
	if acc.store {
		value = e.pop()
	}
	ea := uint64(e.pop().U32()) + offset
	if ea+uint64(acc.size) > e.memory.Size() {
		return memory.ErrInvalidMemoryAccess
	}
	var buf [8]byte
	if acc.store {
		binary.LittleEndian.PutUint64(buf[:], uint64(value))
		return e.memory.Write(uint32(ea), buf[:acc.size])
	}
	if err := e.memory.Read(uint32(ea), buf[:acc.size]); err != nil {
		return err
	}
	raw := binary.LittleEndian.Uint64(buf[:])
	if acc.signed {
		shift := uint(64 - 8*acc.size)
		raw = uint64(int64(raw<<shift) >> shift)
	}
	if !acc.wide {
		raw = uint64(uint32(raw))
	}
	e.push(Value(raw))
	return nil
}

func (e *Engine) unary(f func(Value) Value) {
	t := e.top()
	*t = f(*t)
}

func (e *Engine) binary(f func(a, b Value) Value) {
	b := e.pop()
	t := e.top()
	*t = f(*t, b)
}

func (e *Engine) binaryErr(f func(a, b Value) (Value, error)) error {
	b := e.pop()
	t := e.top()
	v, err := f(*t, b)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (e *Engine) numeric(op Opcode) error {
	switch op {
	case OpI32Eqz:
		e.unary(func(a Value) Value { return boolValue(a.U32() == 0) })
	case OpI32Eq:
		e.binary(func(a, b Value) Value { return boolValue(a.U32() == b.U32()) })
	case OpI32Ne:
		e.binary(func(a, b Value) Value { return boolValue(a.U32() != b.U32()) })
	case OpI32LtS:
		e.binary(func(a, b Value) Value { return boolValue(a.I32() < b.I32()) })
	case OpI32LtU:
		e.binary(func(a, b Value) Value { return boolValue(a.U32() < b.U32()) })
	case OpI32GtS:
		e.binary(func(a, b Value) Value { return boolValue(a.I32() > b.I32()) })
	case OpI32GtU:
		e.binary(func(a, b Value) Value { return boolValue(a.U32() > b.U32()) })
	case OpI32LeS:
		e.binary(func(a, b Value) Value { return boolValue(a.I32() <= b.I32()) })
	case OpI32LeU:
		e.binary(func(a, b Value) Value { return boolValue(a.U32() <= b.U32()) })
	case OpI32GeS:
		e.binary(func(a, b Value) Value { return boolValue(a.I32() >= b.I32()) })
	case OpI32GeU:
		e.binary(func(a, b Value) Value { return boolValue(a.U32() >= b.U32()) })

	case OpI64Eqz:
		e.unary(func(a Value) Value { return boolValue(a == 0) })
	case OpI64Eq:
		e.binary(func(a, b Value) Value { return boolValue(a == b) })
	case OpI64Ne:
		e.binary(func(a, b Value) Value { return boolValue(a != b) })
	case OpI64LtS:
		e.binary(func(a, b Value) Value { return boolValue(a.I64() < b.I64()) })
	case OpI64LtU:
		e.binary(func(a, b Value) Value { return boolValue(a < b) })
	case OpI64GtS:
		e.binary(func(a, b Value) Value { return boolValue(a.I64() > b.I64()) })
	case OpI64GtU:
		e.binary(func(a, b Value) Value { return boolValue(a > b) })
	case OpI64LeS:
		e.binary(func(a, b Value) Value { return boolValue(a.I64() <= b.I64()) })
	case OpI64LeU:
		e.binary(func(a, b Value) Value { return boolValue(a <= b) })
	case OpI64GeS:
		e.binary(func(a, b Value) Value { return boolValue(a.I64() >= b.I64()) })
	case OpI64GeU:
		e.binary(func(a, b Value) Value { return boolValue(a >= b) })

	case OpI32Clz:
		e.unary(func(a Value) Value { return U32(uint32(bits.LeadingZeros32(a.U32()))) })
	case OpI32Ctz:
		e.unary(func(a Value) Value { return U32(uint32(bits.TrailingZeros32(a.U32()))) })
	case OpI32Popcnt:
		e.unary(func(a Value) Value { return U32(uint32(bits.OnesCount32(a.U32()))) })
	case OpI32Add:
		e.binary(func(a, b Value) Value { return U32(a.U32() + b.U32()) })
	case OpI32Sub:
		e.binary(func(a, b Value) Value { return U32(a.U32() - b.U32()) })
	case OpI32Mul:
		e.binary(func(a, b Value) Value { return U32(a.U32() * b.U32()) })
	case OpI32DivS:
		return e.binaryErr(func(a, b Value) (Value, error) {
			if b.I32() == 0 {
				return 0, rterrors.TrapIntegerDivisionByZero
			}
			if a.I32() == math.MinInt32 && b.I32() == -1 {
				return 0, rterrors.TrapIntegerOverflow
			}
			return I32(a.I32() / b.I32()), nil
		})
	case OpI32DivU:
		return e.binaryErr(func(a, b Value) (Value, error) {
			if b.U32() == 0 {
				return 0, rterrors.TrapIntegerDivisionByZero
			}
			return U32(a.U32() / b.U32()), nil
		})
	case OpI32RemS:
		return e.binaryErr(func(a, b Value) (Value, error) {
			if b.I32() == 0 {
				return 0, rterrors.TrapIntegerDivisionByZero
			}
			if b.I32() == -1 {
				return 0, nil
			}
			return I32(a.I32() % b.I32()), nil
		})
	case OpI32RemU:
		return e.binaryErr(func(a, b Value) (Value, error) {
			if b.U32() == 0 {
				return 0, rterrors.TrapIntegerDivisionByZero
			}
			return U32(a.U32() % b.U32()), nil
		})
	case OpI32And:
		e.binary(func(a, b Value) Value { return U32(a.U32() & b.U32()) })
	case OpI32Or:
		e.binary(func(a, b Value) Value { return U32(a.U32() | b.U32()) })
	case OpI32Xor:
		e.binary(func(a, b Value) Value { return U32(a.U32() ^ b.U32()) })
	case OpI32Shl:
		e.binary(func(a, b Value) Value { return U32(a.U32() << (b.U32() & 31)) })
	case OpI32ShrS:
		e.binary(func(a, b Value) Value { return I32(a.I32() >> (b.U32() & 31)) })
	case OpI32ShrU:
		e.binary(func(a, b Value) Value { return U32(a.U32() >> (b.U32() & 31)) })
	case OpI32Rotl:
		e.binary(func(a, b Value) Value { return U32(bits.RotateLeft32(a.U32(), int(b.U32()&31))) })
	case OpI32Rotr:
		e.binary(func(a, b Value) Value { return U32(bits.RotateLeft32(a.U32(), -int(b.U32()&31))) })

	case OpI64Clz:
		e.unary(func(a Value) Value { return Value(bits.LeadingZeros64(a.U64())) })
	case OpI64Ctz:
		e.unary(func(a Value) Value { return Value(bits.TrailingZeros64(a.U64())) })
	case OpI64Popcnt:
		e.unary(func(a Value) Value { return Value(bits.OnesCount64(a.U64())) })
	case OpI64Add:
		e.binary(func(a, b Value) Value { return a + b })
	case OpI64Sub:
		e.binary(func(a, b Value) Value { return a - b })
	case OpI64Mul:
		e.binary(func(a, b Value) Value { return a * b })
	case OpI64DivS:
		return e.binaryErr(func(a, b Value) (Value, error) {
			if b == 0 {
				return 0, rterrors.TrapIntegerDivisionByZero
			}
			if a.I64() == math.MinInt64 && b.I64() == -1 {
				return 0, rterrors.TrapIntegerOverflow
			}
			return I64(a.I64() / b.I64()), nil
		})
	case OpI64DivU:
		return e.binaryErr(func(a, b Value) (Value, error) {
			if b == 0 {
				return 0, rterrors.TrapIntegerDivisionByZero
			}
			return a / b, nil
		})
	case OpI64RemS:
		return e.binaryErr(func(a, b Value) (Value, error) {
			if b == 0 {
				return 0, rterrors.TrapIntegerDivisionByZero
			}
			if b.I64() == -1 {
				return 0, nil
			}
			return I64(a.I64() % b.I64()), nil
		})
	case OpI64RemU:
		return e.binaryErr(func(a, b Value) (Value, error) {
			if b == 0 {
				return 0, rterrors.TrapIntegerDivisionByZero
			}
			return a % b, nil
		})
	case OpI64And:
		e.binary(func(a, b Value) Value { return a & b })
	case OpI64Or:
		e.binary(func(a, b Value) Value { return a | b })
	case OpI64Xor:
		e.binary(func(a, b Value) Value { return a ^ b })
	case OpI64Shl:
		e.binary(func(a, b Value) Value { return a << (b & 63) })
	case OpI64ShrS:
		e.binary(func(a, b Value) Value { return I64(a.I64() >> (b & 63)) })
	case OpI64ShrU:
		e.binary(func(a, b Value) Value { return a >> (b & 63) })
	case OpI64Rotl:
		e.binary(func(a, b Value) Value { return Value(bits.RotateLeft64(a.U64(), int(b&63))) })
	case OpI64Rotr:
		e.binary(func(a, b Value) Value { return Value(bits.RotateLeft64(a.U64(), -int(b&63))) })

	case OpI32WrapI64:
		e.unary(func(a Value) Value { return U32(uint32(a)) })
	case OpI64ExtendI32S:
		e.unary(func(a Value) Value { return I64(int64(a.I32())) })
	case OpI64ExtendI32U:
		e.unary(func(a Value) Value { return Value(a.U32()) })
	case OpI32Extend8S:
		e.unary(func(a Value) Value { return I32(int32(int8(a))) })
	case OpI32Extend16S:
		e.unary(func(a Value) Value { return I32(int32(int16(a))) })
	case OpI64Extend8S:
		e.unary(func(a Value) Value { return I64(int64(int8(a))) })
	case OpI64Extend16S:
		e.unary(func(a Value) Value { return I64(int64(int16(a))) })
	case OpI64Extend32S:
		e.unary(func(a Value) Value { return I64(int64(int32(a))) })

	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedOpcode, op)
	}
	return nil
}
