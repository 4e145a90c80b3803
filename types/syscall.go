package types

import (
	"fmt"

	"github.com/shamaton/msgpack/v2"
)

// SyscallInvocationParams is the payload a parked runtime hands to the host: the target
// code, the bytes copied from the caller's memory, the fuel budget and the entry state.
type SyscallInvocationParams struct {
	CodeHash  B256   `msgpack:"code_hash"`
	Input     []byte `msgpack:"input"`
	FuelLimit uint64 `msgpack:"fuel_limit"`
	State     uint32 `msgpack:"state"`
}

// Encode serializes the params as a MessagePack array.
func (p SyscallInvocationParams) Encode() ([]byte, error) {
	return msgpack.MarshalAsArray(p)
}

// DecodeSyscallInvocationParams parses what Encode produced.
func DecodeSyscallInvocationParams(data []byte) (SyscallInvocationParams, error) {
	var p SyscallInvocationParams
	if err := msgpack.UnmarshalAsArray(data, &p); err != nil {
		return SyscallInvocationParams{}, fmt.Errorf("decode syscall params: %w", err)
	}
	return p, nil
}
