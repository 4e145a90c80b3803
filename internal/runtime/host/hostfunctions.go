package host

import (
	"math"

	"github.com/rwasm-go/rwasmvm/internal/runtime/constants"
	rterrors "github.com/rwasm-go/rwasmvm/internal/runtime/error"
	"github.com/rwasm-go/rwasmvm/internal/runtime/fuel"
	"github.com/rwasm-go/rwasmvm/internal/runtime/rwasm"
	"github.com/rwasm-go/rwasmvm/types"
)

// sliceRange returns buf[offset:offset+length] or InputOutputOutOfBounds.
func sliceRange(buf []byte, offset, length uint32) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(buf)) {
		return nil, rterrors.Exit(types.ExitCodeInputOutputOutOfBounds)
	}
	return buf[offset:end], nil
}

func appendOutput(ctx *Context, data []byte) error {
	if uint64(len(ctx.Result.Output))+uint64(len(data)) > uint64(ctx.MaxOutputSize) {
		return rterrors.Exit(types.ExitCodeOutputOverflow)
	}
	ctx.Result.Output = append(ctx.Result.Output, data...)
	return nil
}

func hostExit(c *Caller, params, _ []rwasm.Value) error {
	code := params[0].I32()
	if code > 0 {
		return rterrors.Exit(types.ExitCodeNonNegativeExitCode)
	}
	c.Ctx.Result.ExitCode = types.ExitCode(code)
	return rterrors.ErrExecutionHalted
}

func hostState(c *Caller, _, results []rwasm.Value) error {
	results[0] = rwasm.U32(c.Ctx.State)
	return nil
}

// hostRead copies input[offset:offset+length] to target.
func hostRead(c *Caller, params, _ []rwasm.Value) error {
	target, offset, length := params[0].U32(), params[1].U32(), params[2].U32()
	data, err := sliceRange(c.Ctx.Input, offset, length)
	if err != nil {
		return err
	}
	return c.Memory.WriteBytes(target, data)
}

func hostInputSize(c *Caller, _, results []rwasm.Value) error {
	results[0] = rwasm.U32(uint32(len(c.Ctx.Input)))
	return nil
}

func hostWrite(c *Caller, params, _ []rwasm.Value) error {
	data, err := c.Memory.ReadBytes(params[0].U32(), params[1].U32())
	if err != nil {
		return err
	}
	return appendOutput(c.Ctx, data)
}

func hostOutputSize(c *Caller, _, results []rwasm.Value) error {
	results[0] = rwasm.U32(uint32(len(c.Ctx.Result.ReturnData)))
	return nil
}

func hostReadOutput(c *Caller, params, _ []rwasm.Value) error {
	target, offset, length := params[0].U32(), params[1].U32(), params[2].U32()
	data, err := sliceRange(c.Ctx.Result.ReturnData, offset, length)
	if err != nil {
		return err
	}
	return c.Memory.WriteBytes(target, data)
}

func hostForwardOutput(c *Caller, params, _ []rwasm.Value) error {
	data, err := sliceRange(c.Ctx.Result.ReturnData, params[0].U32(), params[1].U32())
	if err != nil {
		return err
	}
	return appendOutput(c.Ctx, data)
}

// hostExec parks a nested call. The fuel16 word at fuelPtr carries the requested limit;
// zero means everything that is left.
func hostExec(c *Caller, params, _ []rwasm.Value) error {
	hashPtr, inputPtr, inputLen, fuelPtr, state := params[0].U32(), params[1].U32(), params[2].U32(), params[3].U32(), params[4].U32()

	hashBytes, err := c.Memory.ReadBytes(hashPtr, constants.HashLen)
	if err != nil {
		return err
	}
	if err := c.Memory.CheckRange(inputPtr, inputLen); err != nil {
		return err
	}
	limit, err := execFuelLimit(c, fuelPtr)
	if err != nil {
		return err
	}

	req := &InterruptionRequest{
		Kind:        InterruptionExec,
		InputOffset: inputPtr,
		InputLen:    inputLen,
		FuelLimit:   limit,
		State:       state,
		IsRoot:      c.Ctx.IsRoot(),
		FuelPtr:     fuelPtr,
	}
	copy(req.CodeHash[:], hashBytes)
	c.Ctx.SetInterruption(req)
	return rterrors.ErrInterruptionCalled
}

func execFuelLimit(c *Caller, fuelPtr uint32) (uint64, error) {
	remaining, metered := c.Ctx.RemainingFuel()
	fallback := remaining
	if !metered {
		fallback = math.MaxUint64
	}
	if fuelPtr == 0 {
		return fallback, nil
	}
	if err := c.Memory.CheckRange(fuelPtr, constants.Fuel16Len); err != nil {
		return 0, err
	}
	requested, err := c.Memory.ReadUint64(fuelPtr)
	if err != nil {
		return 0, err
	}
	if requested == 0 {
		return fallback, nil
	}
	if metered && requested > remaining {
		return 0, &rterrors.FuelError{Wanted: requested, Available: remaining}
	}
	return requested, nil
}

// hostResume asks the host to resume the parked call callID. Only the root may do it.
func hostResume(c *Caller, params, _ []rwasm.Value) error {
	if !c.Ctx.IsRoot() {
		return rterrors.Exit(types.ExitCodeRootCallOnly)
	}
	callID, rdPtr, rdLen, exitCode, fuelPtr := params[0].U32(), params[1].U32(), params[2].U32(), params[3].I32(), params[4].U32()
	if err := c.Memory.CheckRange(rdPtr, rdLen); err != nil {
		return err
	}
	if fuelPtr != 0 {
		if err := c.Memory.CheckRange(fuelPtr, constants.Fuel16Len); err != nil {
			return err
		}
	}
	c.Ctx.SetInterruption(&InterruptionRequest{
		Kind:             InterruptionResume,
		IsRoot:           true,
		CallID:           callID,
		ReturnDataOffset: rdPtr,
		ReturnDataLen:    rdLen,
		ExitCode:         types.ExitCode(exitCode),
		FuelPtr:          fuelPtr,
	})
	return rterrors.ErrInterruptionCalled
}

func hostChargeFuelManually(c *Caller, params, results []rwasm.Value) error {
	if err := c.Ctx.TryConsumeFuel(params[0].U64()); err != nil {
		return err
	}
	c.Ctx.RefundFuel(params[1].I64())
	results[0] = rwasm.Value(c.Ctx.Meter().Remaining())
	return nil
}

func hostFuel(c *Caller, _, results []rwasm.Value) error {
	results[0] = rwasm.Value(c.Ctx.Meter().Remaining())
	return nil
}

func hostChargeFuel(c *Caller, params, _ []rwasm.Value) error {
	return c.Ctx.TryConsumeFuel(params[0].U64())
}

func hostDebugLog(c *Caller, params, _ []rwasm.Value) error {
	if !c.Ctx.Debug {
		return nil
	}
	msg, err := c.Memory.ReadString(params[0].U32(), params[1].U32())
	if err != nil {
		return err
	}
	c.Ctx.Logger.Debug().
		Uint32("depth", c.Ctx.CallDepth).
		Str("log", msg).
		Msg("contract debug log")
	return nil
}

func readHash(c *Caller, ptr uint32) (types.B256, error) {
	var h types.B256
	b, err := c.Memory.ReadBytes(ptr, constants.HashLen)
	if err != nil {
		return h, err
	}
	copy(h[:], b)
	return h, nil
}

func hostPreimageSize(c *Caller, params, results []rwasm.Value) error {
	hash, err := readHash(c, params[0].U32())
	if err != nil {
		return err
	}
	results[0] = 0
	if c.Ctx.Preimages != nil {
		if code, ok := c.Ctx.Preimages.Preimage(hash); ok {
			results[0] = rwasm.U32(uint32(len(code)))
		}
	}
	return nil
}

func hostPreimageCopy(c *Caller, params, _ []rwasm.Value) error {
	hash, err := readHash(c, params[0].U32())
	if err != nil {
		return err
	}
	if c.Ctx.Preimages == nil {
		return rterrors.Exit(types.ExitCodeMalformedBuiltinParams)
	}
	code, ok := c.Ctx.Preimages.Preimage(hash)
	if !ok {
		return rterrors.Exit(types.ExitCodeMalformedBuiltinParams)
	}
	if err := c.Ctx.TryConsumeFuel(fuel.SaturatingMul(words(uint64(len(code))), constants.PreimageWordFuelCost)); err != nil {
		return err
	}
	return c.Memory.WriteBytes(params[1].U32(), code)
}

func hostStorageRead(c *Caller, params, results []rwasm.Value) error {
	key, err := c.Memory.ReadBytes(params[0].U32(), constants.StorageWordLen)
	if err != nil {
		return err
	}
	if err := c.Memory.CheckRange(params[1].U32(), constants.StorageWordLen); err != nil {
		return err
	}
	results[0] = 0
	if c.Ctx.Storage == nil {
		return nil
	}
	value, err := c.Ctx.Storage.Get(key)
	if err != nil {
		return err
	}
	if value == nil {
		return nil
	}
	var word [constants.StorageWordLen]byte
	copy(word[constants.StorageWordLen-min(len(value), constants.StorageWordLen):], value)
	results[0] = 1
	return c.Memory.WriteBytes(params[1].U32(), word[:])
}

// hostStorageWrite stores a 32-byte value; the zero word removes the key.
func hostStorageWrite(c *Caller, params, _ []rwasm.Value) error {
	key, err := c.Memory.ReadBytes(params[0].U32(), constants.StorageWordLen)
	if err != nil {
		return err
	}
	value, err := c.Memory.ReadBytes(params[1].U32(), constants.StorageWordLen)
	if err != nil {
		return err
	}
	if c.Ctx.Storage == nil {
		return rterrors.Exit(types.ExitCodeErr)
	}
	if types.B256(value) == (types.B256{}) {
		return c.Ctx.Storage.Remove(key)
	}
	return c.Ctx.Storage.Update(key, value)
}
