package constants

// FuelDenomRate converts externally visible gas units into fuel.
const FuelDenomRate = 1000

// Interpreter costs.
const (
	// FuelPerInstruction is charged before every instruction.
	FuelPerInstruction uint64 = 1
	// FuelPerMemoryPage is charged per page added by memory.grow.
	FuelPerMemoryPage uint64 = 1 << 10
	// FuelPerBulkByteShift charges one unit per 2^shift bytes touched by memory.fill/copy.
	FuelPerBulkByteShift = 6
)

// Syscall costs, in fuel.
const (
	LowFuelCost           uint64 = 20 * FuelDenomRate
	CopyBaseFuelCost      uint64 = 20 * FuelDenomRate
	CopyWordFuelCost      uint64 = 3 * FuelDenomRate
	DebugLogBaseFuelCost  uint64 = 50 * FuelDenomRate
	DebugLogWordFuelCost  uint64 = 16 * FuelDenomRate
	ChargeFuelBaseCost    uint64 = 20 * FuelDenomRate
	KeccakBaseFuelCost    uint64 = 30 * FuelDenomRate
	KeccakWordFuelCost    uint64 = 6 * FuelDenomRate
	Sha256BaseFuelCost    uint64 = 60 * FuelDenomRate
	Sha256WordFuelCost    uint64 = 12 * FuelDenomRate
	Secp256k1RecoverCost  uint64 = 3_000 * FuelDenomRate
	Secp256r1VerifyCost   uint64 = 3_450 * FuelDenomRate
	Bn254AddCost          uint64 = 150 * FuelDenomRate
	Bn254DoubleCost       uint64 = 150 * FuelDenomRate
	Bls12381G1AddCost     uint64 = 600 * FuelDenomRate
	Uint256MulModCost     uint64 = 8 * FuelDenomRate
	StorageReadFuelCost   uint64 = 2_100 * FuelDenomRate
	StorageWriteFuelCost  uint64 = 20_000 * FuelDenomRate
	QuadraticWordFuelCost uint64 = 3
	QuadraticDivisor      uint64 = 512
	PreimageBaseFuelCost  uint64 = 20 * FuelDenomRate
	PreimageWordFuelCost  uint64 = 3 * FuelDenomRate
)
