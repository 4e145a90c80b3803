package constants

const (
	// CallStackLimit bounds both nested invocations and interpreter call frames.
	CallStackLimit = 1024

	// WasmPageSize is the size of one linear memory page.
	WasmPageSize = 65536
	// MaxWasmPages is the largest page count a 32-bit linear memory can address.
	MaxWasmPages = 65536

	// ImportModule is the module name guests import syscalls from.
	ImportModule = "rwasm_v1"

	// EntrypointMain and EntrypointDeploy are the exported functions selected by state.
	EntrypointMain   = "main"
	EntrypointDeploy = "deploy"
)

// Entry states understood by the contract runtime.
const (
	StateMain   uint32 = 0
	StateDeploy uint32 = 1
)

// Sizes of fixed syscall operands.
const (
	HashLen               = 32
	Fuel16Len             = 16
	Secp256k1SignatureLen = 64
	Secp256k1PubkeyLen    = 65
	Bn254G1PointLen       = 64
	Bls12381G1PointLen    = 96
	Sha256StateLen        = 32
	Sha256BlockLen        = 64
	Uint256Len            = 32
	StorageWordLen        = 32
)
