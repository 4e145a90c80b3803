package rwasm

import "fmt"

// Opcode identifies an rWASM instruction. Floating point operators have no opcode and are
// rejected when a module is decoded.
type Opcode uint16

const (
	OpUnreachable Opcode = iota
	OpLocalGet
	OpLocalSet
	OpLocalTee
	OpBr
	OpBrIfEqz
	OpBrIfNez
	OpBrTable
	OpConsumeFuel
	OpReturn
	OpReturnIfNez
	OpCallInternal
	OpCall
	OpCallIndirect
	OpDrop
	OpSelect
	OpGlobalGet
	OpGlobalSet

	OpI32Load
	OpI64Load
	OpI32Load8S
	OpI32Load8U
	OpI32Load16S
	OpI32Load16U
	OpI64Load8S
	OpI64Load8U
	OpI64Load16S
	OpI64Load16U
	OpI64Load32S
	OpI64Load32U
	OpI32Store
	OpI64Store
	OpI32Store8
	OpI32Store16
	OpI64Store8
	OpI64Store16
	OpI64Store32

	OpMemorySize
	OpMemoryGrow
	OpMemoryFill
	OpMemoryCopy
	OpTableSize
	OpTableGet
	OpTableSet

	OpI32Const
	OpI64Const

	OpI32Eqz
	OpI32Eq
	OpI32Ne
	OpI32LtS
	OpI32LtU
	OpI32GtS
	OpI32GtU
	OpI32LeS
	OpI32LeU
	OpI32GeS
	OpI32GeU

	OpI64Eqz
	OpI64Eq
	OpI64Ne
	OpI64LtS
	OpI64LtU
	OpI64GtS
	OpI64GtU
	OpI64LeS
	OpI64LeU
	OpI64GeS
	OpI64GeU

	OpI32Clz
	OpI32Ctz
	OpI32Popcnt
	OpI32Add
	OpI32Sub
	OpI32Mul
	OpI32DivS
	OpI32DivU
	OpI32RemS
	OpI32RemU
	OpI32And
	OpI32Or
	OpI32Xor
	OpI32Shl
	OpI32ShrS
	OpI32ShrU
	OpI32Rotl
	OpI32Rotr

	OpI64Clz
	OpI64Ctz
	OpI64Popcnt
	OpI64Add
	OpI64Sub
	OpI64Mul
	OpI64DivS
	OpI64DivU
	OpI64RemS
	OpI64RemU
	OpI64And
	OpI64Or
	OpI64Xor
	OpI64Shl
	OpI64ShrS
	OpI64ShrU
	OpI64Rotl
	OpI64Rotr

	OpI32WrapI64
	OpI64ExtendI32S
	OpI64ExtendI32U
	OpI32Extend8S
	OpI32Extend16S
	OpI64Extend8S
	OpI64Extend16S
	OpI64Extend32S

	opcodeCount
)

type opcodeInfo struct {
	name string
	// pops is the number of operands the instruction needs on the stack. Instructions whose
	// arity depends on the immediate check it themselves.
	pops int
}

var opcodes = [opcodeCount]opcodeInfo{
	OpUnreachable:  {"unreachable", 0},
	OpLocalGet:     {"local.get", 0},
	OpLocalSet:     {"local.set", 1},
	OpLocalTee:     {"local.tee", 1},
	OpBr:           {"br", 0},
	OpBrIfEqz:      {"br_if_eqz", 1},
	OpBrIfNez:      {"br_if_nez", 1},
	OpBrTable:      {"br_table", 1},
	OpConsumeFuel:  {"consume_fuel", 0},
	OpReturn:       {"return", 0},
	OpReturnIfNez:  {"return_if_nez", 1},
	OpCallInternal: {"call_internal", 0},
	OpCall:         {"call", 0},
	OpCallIndirect: {"call_indirect", 1},
	OpDrop:         {"drop", 1},
	OpSelect:       {"select", 3},
	OpGlobalGet:    {"global.get", 0},
	OpGlobalSet:    {"global.set", 1},

	OpI32Load:    {"i32.load", 1},
	OpI64Load:    {"i64.load", 1},
	OpI32Load8S:  {"i32.load8_s", 1},
	OpI32Load8U:  {"i32.load8_u", 1},
	OpI32Load16S: {"i32.load16_s", 1},
	OpI32Load16U: {"i32.load16_u", 1},
	OpI64Load8S:  {"i64.load8_s", 1},
	OpI64Load8U:  {"i64.load8_u", 1},
	OpI64Load16S: {"i64.load16_s", 1},
	OpI64Load16U: {"i64.load16_u", 1},
	OpI64Load32S: {"i64.load32_s", 1},
	OpI64Load32U: {"i64.load32_u", 1},
	OpI32Store:   {"i32.store", 2},
	OpI64Store:   {"i64.store", 2},
	OpI32Store8:  {"i32.store8", 2},
	OpI32Store16: {"i32.store16", 2},
	OpI64Store8:  {"i64.store8", 2},
	OpI64Store16: {"i64.store16", 2},
	OpI64Store32: {"i64.store32", 2},

	OpMemorySize: {"memory.size", 0},
	OpMemoryGrow: {"memory.grow", 1},
	OpMemoryFill: {"memory.fill", 3},
	OpMemoryCopy: {"memory.copy", 3},
	OpTableSize:  {"table.size", 0},
	OpTableGet:   {"table.get", 1},
	OpTableSet:   {"table.set", 2},

	OpI32Const: {"i32.const", 0},
	OpI64Const: {"i64.const", 0},

	OpI32Eqz: {"i32.eqz", 1},
	OpI32Eq:  {"i32.eq", 2},
	OpI32Ne:  {"i32.ne", 2},
	OpI32LtS: {"i32.lt_s", 2},
	OpI32LtU: {"i32.lt_u", 2},
	OpI32GtS: {"i32.gt_s", 2},
	OpI32GtU: {"i32.gt_u", 2},
	OpI32LeS: {"i32.le_s", 2},
	OpI32LeU: {"i32.le_u", 2},
	OpI32GeS: {"i32.ge_s", 2},
	OpI32GeU: {"i32.ge_u", 2},

	OpI64Eqz: {"i64.eqz", 1},
	OpI64Eq:  {"i64.eq", 2},
	OpI64Ne:  {"i64.ne", 2},
	OpI64LtS: {"i64.lt_s", 2},
	OpI64LtU: {"i64.lt_u", 2},
	OpI64GtS: {"i64.gt_s", 2},
	OpI64GtU: {"i64.gt_u", 2},
	OpI64LeS: {"i64.le_s", 2},
	OpI64LeU: {"i64.le_u", 2},
	OpI64GeS: {"i64.ge_s", 2},
	OpI64GeU: {"i64.ge_u", 2},

	OpI32Clz:    {"i32.clz", 1},
	OpI32Ctz:    {"i32.ctz", 1},
	OpI32Popcnt: {"i32.popcnt", 1},
	OpI32Add:    {"i32.add", 2},
	OpI32Sub:    {"i32.sub", 2},
	OpI32Mul:    {"i32.mul", 2},
	OpI32DivS:   {"i32.div_s", 2},
	OpI32DivU:   {"i32.div_u", 2},
	OpI32RemS:   {"i32.rem_s", 2},
	OpI32RemU:   {"i32.rem_u", 2},
	OpI32And:    {"i32.and", 2},
	OpI32Or:     {"i32.or", 2},
	OpI32Xor:    {"i32.xor", 2},
	OpI32Shl:    {"i32.shl", 2},
	OpI32ShrS:   {"i32.shr_s", 2},
	OpI32ShrU:   {"i32.shr_u", 2},
	OpI32Rotl:   {"i32.rotl", 2},
	OpI32Rotr:   {"i32.rotr", 2},

	OpI64Clz:    {"i64.clz", 1},
	OpI64Ctz:    {"i64.ctz", 1},
	OpI64Popcnt: {"i64.popcnt", 1},
	OpI64Add:    {"i64.add", 2},
	OpI64Sub:    {"i64.sub", 2},
	OpI64Mul:    {"i64.mul", 2},
	OpI64DivS:   {"i64.div_s", 2},
	OpI64DivU:   {"i64.div_u", 2},
	OpI64RemS:   {"i64.rem_s", 2},
	OpI64RemU:   {"i64.rem_u", 2},
	OpI64And:    {"i64.and", 2},
	OpI64Or:     {"i64.or", 2},
	OpI64Xor:    {"i64.xor", 2},
	OpI64Shl:    {"i64.shl", 2},
	OpI64ShrS:   {"i64.shr_s", 2},
	OpI64ShrU:   {"i64.shr_u", 2},
	OpI64Rotl:   {"i64.rotl", 2},
	OpI64Rotr:   {"i64.rotr", 2},

	OpI32WrapI64:    {"i32.wrap_i64", 1},
	OpI64ExtendI32S: {"i64.extend_i32_s", 1},
	OpI64ExtendI32U: {"i64.extend_i32_u", 1},
	OpI32Extend8S:   {"i32.extend8_s", 1},
	OpI32Extend16S:  {"i32.extend16_s", 1},
	OpI64Extend8S:   {"i64.extend8_s", 1},
	OpI64Extend16S:  {"i64.extend16_s", 1},
	OpI64Extend32S:  {"i64.extend32_s", 1},
}

// Valid reports whether op is part of the instruction set.
func (op Opcode) Valid() bool {
	return op < opcodeCount
}

func (op Opcode) String() string {
	if !op.Valid() {
		return fmt.Sprintf("opcode(%d)", uint16(op))
	}
	return opcodes[op].name
}

func (op Opcode) pops() int {
	return opcodes[op].pops
}

func (op Opcode) isMemoryAccess() bool {
	return op >= OpI32Load && op <= OpI64Store32
}
