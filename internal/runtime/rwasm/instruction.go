package rwasm

import "fmt"

// Value is an untyped operand. 32-bit values are kept zero-extended in the low half,
// the same layout wazero uses for its host function stack.
type Value uint64

// I32 wraps a signed 32-bit integer.
func I32(v int32) Value { return Value(uint32(v)) }

// U32 wraps an unsigned 32-bit integer.
func U32(v uint32) Value { return Value(v) }

// I64 wraps a signed 64-bit integer.
func I64(v int64) Value { return Value(uint64(v)) }

func (v Value) I32() int32  { return int32(uint32(v)) }
func (v Value) U32() uint32 { return uint32(v) }
func (v Value) I64() int64  { return int64(v) }
func (v Value) U64() uint64 { return uint64(v) }

func boolValue(b bool) Value {
	if b {
		return 1
	}
	return 0
}

// Instruction is one decoded instruction with its immediate.
type Instruction struct {
	Op  Opcode `msgpack:"op"`
	Imm uint64 `msgpack:"imm"`
}

func (i Instruction) String() string {
	switch i.Op {
	case OpReturn, OpReturnIfNez:
		drop, keep := DropKeep(i.Imm)
		return fmt.Sprintf("%s drop=%d keep=%d", i.Op, drop, keep)
	case OpBr, OpBrIfEqz, OpBrIfNez:
		return fmt.Sprintf("%s %+d", i.Op, BranchOffset(i.Imm))
	}
	if i.Imm == 0 && !hasImmediate(i.Op) {
		return i.Op.String()
	}
	return fmt.Sprintf("%s %d", i.Op, i.Imm)
}

func hasImmediate(op Opcode) bool {
	switch op {
	case OpLocalGet, OpLocalSet, OpLocalTee, OpBrTable, OpConsumeFuel, OpCallInternal, OpCall,
		OpCallIndirect, OpGlobalGet, OpGlobalSet, OpI32Const, OpI64Const:
		return true
	}
	return op.isMemoryAccess()
}

// PackDropKeep encodes the operand adjustment of a return.
func PackDropKeep(drop, keep uint32) uint64 {
	return uint64(drop)<<32 | uint64(keep)
}

// DropKeep decodes the immediate of Return and ReturnIfNez.
func DropKeep(imm uint64) (drop, keep uint32) {
	return uint32(imm >> 32), uint32(imm)
}

// BranchOffset decodes a branch immediate into a signed offset relative to the branch.
func BranchOffset(imm uint64) int32 {
	return int32(uint32(imm))
}

func Unreachable() Instruction          { return Instruction{Op: OpUnreachable} }
func LocalGet(depth uint32) Instruction { return Instruction{Op: OpLocalGet, Imm: uint64(depth)} }
func LocalSet(depth uint32) Instruction { return Instruction{Op: OpLocalSet, Imm: uint64(depth)} }
func LocalTee(depth uint32) Instruction { return Instruction{Op: OpLocalTee, Imm: uint64(depth)} }
func Br(offset int32) Instruction       { return Instruction{Op: OpBr, Imm: uint64(uint32(offset))} }
func BrIfEqz(offset int32) Instruction {
	return Instruction{Op: OpBrIfEqz, Imm: uint64(uint32(offset))}
}
func BrIfNez(offset int32) Instruction {
	return Instruction{Op: OpBrIfNez, Imm: uint64(uint32(offset))}
}
func BrTable(targets uint32) Instruction  { return Instruction{Op: OpBrTable, Imm: uint64(targets)} }
func ConsumeFuel(fuel uint64) Instruction { return Instruction{Op: OpConsumeFuel, Imm: fuel} }
func CallInternal(fn uint32) Instruction  { return Instruction{Op: OpCallInternal, Imm: uint64(fn)} }
func Call(importIdx uint32) Instruction   { return Instruction{Op: OpCall, Imm: uint64(importIdx)} }
func CallIndirect(sig uint32) Instruction { return Instruction{Op: OpCallIndirect, Imm: uint64(sig)} }
func Drop() Instruction                   { return Instruction{Op: OpDrop} }
func Select() Instruction                 { return Instruction{Op: OpSelect} }
func GlobalGet(idx uint32) Instruction    { return Instruction{Op: OpGlobalGet, Imm: uint64(idx)} }
func GlobalSet(idx uint32) Instruction    { return Instruction{Op: OpGlobalSet, Imm: uint64(idx)} }
func I32Const(v int32) Instruction        { return Instruction{Op: OpI32Const, Imm: uint64(uint32(v))} }
func I64Const(v int64) Instruction        { return Instruction{Op: OpI64Const, Imm: uint64(v)} }
func Load(op Opcode, offset uint32) Instruction {
	return Instruction{Op: op, Imm: uint64(offset)}
}
func Store(op Opcode, offset uint32) Instruction {
	return Instruction{Op: op, Imm: uint64(offset)}
}

// Return leaves keep values on top after removing drop values beneath them.
func Return(drop, keep uint32) Instruction {
	return Instruction{Op: OpReturn, Imm: PackDropKeep(drop, keep)}
}

// ReturnIfNez pops a condition and returns like Return when it is not zero.
func ReturnIfNez(drop, keep uint32) Instruction {
	return Instruction{Op: OpReturnIfNez, Imm: PackDropKeep(drop, keep)}
}

// Op builds an instruction without an immediate.
func Op(op Opcode) Instruction { return Instruction{Op: op} }
