package host

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/rwasm-go/rwasmvm/internal/runtime/constants"
)

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

func sig(types ...api.ValueType) []api.ValueType { return types }

// DefaultSyscallTable returns the rwasm_v1 host-call ABI.
func DefaultSyscallTable() *SyscallTable {
	t := NewSyscallTable()
	low := ConstFuel(constants.LowFuelCost)
	copyFuel := func(param uint8) FuelRule {
		return LinearFuel(param, constants.CopyBaseFuelCost, constants.CopyWordFuelCost)
	}

	// System.
	t.Register(SyscallEntry{Name: "_exit", Index: SysExit, Params: sig(i32), Fuel: low, Handler: hostExit})
	t.Register(SyscallEntry{Name: "_state", Index: SysState, Results: sig(i32), Fuel: low, Handler: hostState})
	t.Register(SyscallEntry{Name: "_read", Index: SysRead, Params: sig(i32, i32, i32), Fuel: copyFuel(2), Handler: hostRead})
	t.Register(SyscallEntry{Name: "_input_size", Index: SysInputSize, Results: sig(i32), Fuel: low, Handler: hostInputSize})
	t.Register(SyscallEntry{Name: "_write", Index: SysWrite, Params: sig(i32, i32), Fuel: QuadraticFuel(1, constants.QuadraticWordFuelCost, constants.QuadraticDivisor), Handler: hostWrite})
	t.Register(SyscallEntry{Name: "_output_size", Index: SysOutputSize, Results: sig(i32), Fuel: low, Handler: hostOutputSize})
	t.Register(SyscallEntry{Name: "_read_output", Index: SysReadOutput, Params: sig(i32, i32, i32), Fuel: copyFuel(2), Handler: hostReadOutput})
	t.Register(SyscallEntry{Name: "_exec", Index: SysExec, Params: sig(i32, i32, i32, i32, i32), Results: sig(i32), Fuel: NoFuel(), Handler: hostExec})
	t.Register(SyscallEntry{Name: "_resume", Index: SysResume, Params: sig(i32, i32, i32, i32, i32), Results: sig(i32), Fuel: NoFuel(), Handler: hostResume})
	t.Register(SyscallEntry{Name: "_forward_output", Index: SysForwardOutput, Params: sig(i32, i32), Fuel: copyFuel(1), Handler: hostForwardOutput})
	t.Register(SyscallEntry{Name: "_charge_fuel_manually", Index: SysChargeFuelManually, Params: sig(i64, i64), Results: sig(i64), Fuel: NoFuel(), Handler: hostChargeFuelManually})
	t.Register(SyscallEntry{Name: "_fuel", Index: SysFuel, Results: sig(i64), Fuel: low, Handler: hostFuel})
	t.Register(SyscallEntry{Name: "_preimage_size", Index: SysPreimageSize, Params: sig(i32), Results: sig(i32), Fuel: ConstFuel(constants.PreimageBaseFuelCost), Handler: hostPreimageSize})
	t.Register(SyscallEntry{Name: "_preimage_copy", Index: SysPreimageCopy, Params: sig(i32, i32), Fuel: ConstFuel(constants.PreimageBaseFuelCost), Handler: hostPreimageCopy})
	t.Register(SyscallEntry{Name: "_debug_log", Index: SysDebugLog, Params: sig(i32, i32), Fuel: LinearFuel(1, constants.DebugLogBaseFuelCost, constants.DebugLogWordFuelCost), Handler: hostDebugLog})
	t.Register(SyscallEntry{Name: "_charge_fuel", Index: SysChargeFuel, Params: sig(i64), Fuel: NoFuel(), Handler: hostChargeFuel})

	// Hashing.
	t.Register(SyscallEntry{Name: "_keccak256", Index: SysKeccak256, Params: sig(i32, i32, i32), Fuel: LinearFuel(1, constants.KeccakBaseFuelCost, constants.KeccakWordFuelCost), Handler: hostKeccak256})
	t.Register(SyscallEntry{Name: "_sha256", Index: SysSha256, Params: sig(i32, i32, i32), Fuel: LinearFuel(1, constants.Sha256BaseFuelCost, constants.Sha256WordFuelCost), Handler: hostSha256})
	t.Register(SyscallEntry{Name: "_sha256_compress", Index: SysSha256Compress, Params: sig(i32, i32), Fuel: ConstFuel(constants.Sha256BaseFuelCost), Handler: hostSha256Compress})

	// Signatures.
	t.Register(SyscallEntry{Name: "_secp256k1_recover", Index: SysSecp256k1Recover, Params: sig(i32, i32, i32, i32), Results: sig(i32), Fuel: ConstFuel(constants.Secp256k1RecoverCost), Handler: hostSecp256k1Recover})
	t.Register(SyscallEntry{Name: "_secp256r1_verify", Index: SysSecp256r1Verify, Params: sig(i32, i32, i32), Results: sig(i32), Fuel: ConstFuel(constants.Secp256r1VerifyCost), Handler: hostSecp256r1Verify})

	// Curves and big integers.
	t.Register(SyscallEntry{Name: "_bls12381_g1_add", Index: SysBls12381G1Add, Params: sig(i32, i32), Fuel: ConstFuel(constants.Bls12381G1AddCost), Handler: hostBls12381G1Add})
	t.Register(SyscallEntry{Name: "_bn254_add", Index: SysBn254Add, Params: sig(i32, i32), Fuel: ConstFuel(constants.Bn254AddCost), Handler: hostBn254Add})
	t.Register(SyscallEntry{Name: "_bn254_double", Index: SysBn254Double, Params: sig(i32), Fuel: ConstFuel(constants.Bn254DoubleCost), Handler: hostBn254Double})
	t.Register(SyscallEntry{Name: "_uint256_mul_mod", Index: SysUint256MulMod, Params: sig(i32, i32, i32), Fuel: ConstFuel(constants.Uint256MulModCost), Handler: hostUint256MulMod})

	// Storage.
	t.Register(SyscallEntry{Name: "_storage_read", Index: SysStorageRead, Params: sig(i32, i32), Results: sig(i32), Fuel: ConstFuel(constants.StorageReadFuelCost), Handler: hostStorageRead})
	t.Register(SyscallEntry{Name: "_storage_write", Index: SysStorageWrite, Params: sig(i32, i32), Fuel: ConstFuel(constants.StorageWriteFuelCost), Handler: hostStorageWrite})

	return t
}
