package host

import (
	"fmt"

	"github.com/rwasm-go/rwasmvm/internal/runtime/memory"
	"github.com/rwasm-go/rwasmvm/types"
)

// InterruptionKind says which syscall parked a request.
type InterruptionKind uint8

const (
	// InterruptionExec asks the host to run another contract.
	InterruptionExec InterruptionKind = iota + 1
	// InterruptionResume asks the host to resume a parked call.
	InterruptionResume
)

func (k InterruptionKind) String() string {
	switch k {
	case InterruptionExec:
		return "exec"
	case InterruptionResume:
		return "resume"
	}
	return fmt.Sprintf("interruption(%d)", uint8(k))
}

// InterruptionRequest is what a syscall needs the host to do before execution can
// continue. Byte ranges refer to the requesting context's memory and are read only when
// the host resolves the request.
type InterruptionRequest struct {
	Kind InterruptionKind

	CodeHash    types.B256
	InputOffset uint32
	InputLen    uint32
	FuelLimit   uint64
	State       uint32
	IsRoot      bool
	// FuelPtr receives (consumed u64, refunded i64) after the call; zero skips the write.
	FuelPtr uint32

	CallID           uint32
	ReturnDataOffset uint32
	ReturnDataLen    uint32
	ExitCode         types.ExitCode
}

// Input copies the call input out of mem.
func (r *InterruptionRequest) Input(mem memory.Memory) ([]byte, error) {
	return memory.New(mem).ReadBytes(r.InputOffset, r.InputLen)
}

// ReturnData copies the return data of a resume request out of mem.
func (r *InterruptionRequest) ReturnData(mem memory.Memory) ([]byte, error) {
	return memory.New(mem).ReadBytes(r.ReturnDataOffset, r.ReturnDataLen)
}

// Params builds the payload handed to the host for an exec request.
func (r *InterruptionRequest) Params(mem memory.Memory) (types.SyscallInvocationParams, error) {
	input, err := r.Input(mem)
	if err != nil {
		return types.SyscallInvocationParams{}, err
	}
	return types.SyscallInvocationParams{
		CodeHash:  r.CodeHash,
		Input:     input,
		FuelLimit: r.FuelLimit,
		State:     r.State,
	}, nil
}
