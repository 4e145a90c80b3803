package runtime

import (
	"errors"
	"fmt"

	"github.com/rwasm-go/rwasmvm/internal/runtime/constants"
	rterrors "github.com/rwasm-go/rwasmvm/internal/runtime/error"
	"github.com/rwasm-go/rwasmvm/internal/runtime/host"
	"github.com/rwasm-go/rwasmvm/internal/runtime/memory"
	"github.com/rwasm-go/rwasmvm/types"
)

// Resolver performs the work an interruption asks for and reports the fuel it consumed,
// the fuel it refunded and the exit code the suspended syscall returns.
type Resolver func(rt *ContractRuntime, req *host.InterruptionRequest) (fuelConsumed uint64, fuelRefunded int64, exitCode types.ExitCode)

// Outcome is what one execution segment produced: a terminal Result, or a pending
// Interruption together with the fuel the segment used.
type Outcome struct {
	Result       types.ExecutionResult
	Interruption *host.InterruptionRequest
}

func (o Outcome) Interrupted() bool { return o.Interruption != nil }

// ContractRuntime drives one instance of a contract through execute and resume.
type ContractRuntime struct {
	ctx      *host.Context
	instance Instance
	entry    string
	resolver Resolver

	started     bool
	interrupted bool
	halted      bool

	// fuel counters at the start of the current segment
	segmentConsumed uint64
	segmentRefunded int64
}

// EntrypointFor maps a state discriminator to the entry function it selects.
func EntrypointFor(state uint32) (string, bool) {
	switch state {
	case constants.StateMain:
		return constants.EntrypointMain, true
	case constants.StateDeploy:
		return constants.EntrypointDeploy, true
	}
	return "", false
}

// NewContractRuntime instantiates strategy for ctx with a fresh fuel budget of fuelLimit.
// A state other than StateMain or StateDeploy is a programming error and panics.
func NewContractRuntime(strategy Strategy, syscalls *host.SyscallTable, ctx *host.Context, fuelLimit uint64) (*ContractRuntime, error) {
	entry, ok := EntrypointFor(ctx.State)
	if !ok {
		panic(fmt.Sprintf("runtime: unknown entry state %d", ctx.State))
	}
	ctx.ResetFuel(fuelLimit)
	rt := &ContractRuntime{ctx: ctx, entry: entry}
	inst, err := strategy.Instantiate(ctx, syscalls, rt.resolveInline)
	if err != nil {
		return nil, err
	}
	rt.instance = inst
	return rt, nil
}

func (rt *ContractRuntime) Context() *host.Context { return rt.ctx }

// SetResolver installs the resolver used for interruptions that are handled while the
// instance is still running.
func (rt *ContractRuntime) SetResolver(r Resolver) { rt.resolver = r }

// Execute runs the entrypoint until the contract halts or suspends.
func (rt *ContractRuntime) Execute() Outcome {
	if rt.started {
		panic("runtime: Execute called twice")
	}
	rt.started = true
	return rt.finish(rt.instance.Execute(rt.entry))
}

// Resume charges fuelConsumed for the work done on the contract's behalf and continues
// with exitCode as the result of the suspended syscall. A charge above the remaining
// budget halts the contract with OutOfFuel.
func (rt *ContractRuntime) Resume(exitCode types.ExitCode, fuelConsumed uint64) Outcome {
	return rt.resume(exitCode, fuelConsumed, 0)
}

func (rt *ContractRuntime) resume(exitCode types.ExitCode, consumed uint64, refunded int64) Outcome {
	if !rt.interrupted {
		panic("runtime: Resume without a pending interruption")
	}
	rt.interrupted = false
	if err := rt.ctx.TryConsumeFuel(consumed); err != nil {
		rt.markSegment()
		return rt.finish(err)
	}
	rt.ctx.RefundFuel(refunded)
	rt.markSegment()
	return rt.finish(rt.instance.Resume(exitCode))
}

// continueWith settles a resolved interruption and resumes: the fuel16 word at fuelPtr
// is written, the consumed fuel charged and, once the charge fits, the refund applied.
func (rt *ContractRuntime) continueWith(fuelPtr uint32, consumed uint64, refunded int64, exitCode types.ExitCode) Outcome {
	if fuelPtr != 0 {
		if err := rt.writeFuel16(fuelPtr, consumed, refunded); err != nil {
			rt.interrupted = false
			rt.markSegment()
			return rt.finish(err)
		}
	}
	return rt.resume(exitCode, consumed, refunded)
}

func (rt *ContractRuntime) MemoryRead(offset uint32, buf []byte) error {
	return rt.instance.Memory().Read(offset, buf)
}

func (rt *ContractRuntime) MemoryWrite(offset uint32, data []byte) error {
	return rt.instance.Memory().Write(offset, data)
}

func (rt *ContractRuntime) Memory() memory.Memory { return rt.instance.Memory() }

// RemainingFuel returns false when metering is disabled for this context.
func (rt *ContractRuntime) RemainingFuel() (uint64, bool) {
	return rt.ctx.RemainingFuel()
}

func (rt *ContractRuntime) Halted() bool { return rt.halted }

// Close releases the instance. Memory must not be accessed afterwards.
func (rt *ContractRuntime) Close() error { return rt.instance.Close() }

func (rt *ContractRuntime) resolveInline(req *host.InterruptionRequest) (types.ExitCode, error) {
	if rt.resolver == nil {
		return 0, fmt.Errorf("%s interruption without resolver: %w", req.Kind, rterrors.TrapUnresolvedFunction)
	}
	consumed, refunded, code := rt.resolver(rt, req)
	if req.FuelPtr != 0 {
		if err := rt.writeFuel16(req.FuelPtr, consumed, refunded); err != nil {
			return 0, err
		}
	}
	if err := rt.ctx.TryConsumeFuel(consumed); err != nil {
		return 0, err
	}
	rt.ctx.RefundFuel(refunded)
	return code, nil
}

// writeFuel16 stores (consumed u64, refunded i64) little-endian at ptr. Nothing is
// written unless the whole word fits.
func (rt *ContractRuntime) writeFuel16(ptr uint32, consumed uint64, refunded int64) error {
	mgr := memory.New(rt.Memory())
	if err := mgr.CheckRange(ptr, constants.Fuel16Len); err != nil {
		return err
	}
	if err := mgr.WriteUint64(ptr, consumed); err != nil {
		return err
	}
	return mgr.WriteUint64(ptr+8, uint64(refunded))
}

func (rt *ContractRuntime) readFuel16(ptr uint32) (uint64, int64, error) {
	mgr := memory.New(rt.Memory())
	if err := mgr.CheckRange(ptr, constants.Fuel16Len); err != nil {
		return 0, 0, err
	}
	consumed, err := mgr.ReadUint64(ptr)
	if err != nil {
		return 0, 0, err
	}
	refunded, err := mgr.ReadUint64(ptr + 8)
	if err != nil {
		return 0, 0, err
	}
	return consumed, int64(refunded), nil
}

func (rt *ContractRuntime) markSegment() {
	m := rt.ctx.Meter()
	rt.segmentConsumed, rt.segmentRefunded = m.Consumed(), m.Refunded()
}

func (rt *ContractRuntime) finish(err error) Outcome {
	m := rt.ctx.Meter()
	consumed := m.Consumed() - rt.segmentConsumed
	refunded := m.Refunded() - rt.segmentRefunded

	if errors.Is(err, rterrors.ErrInterruptionCalled) {
		req := rt.ctx.TakeInterruption()
		if req == nil {
			panic("runtime: interruption without a parked request")
		}
		rt.interrupted = true
		res := rt.ctx.Result.TakeAndContinue(true)
		res.FuelConsumed, res.FuelRefunded = consumed, refunded
		return Outcome{Result: res, Interruption: req}
	}

	switch {
	case err == nil, errors.Is(err, rterrors.ErrExecutionHalted):
	default:
		rt.ctx.Result.ExitCode = rterrors.ExitCodeOf(err)
		rt.ctx.Logger.Debug().
			Err(err).
			Uint32("depth", rt.ctx.CallDepth).
			Stringer("exit_code", rt.ctx.Result.ExitCode).
			Msg("contract trapped")
	}
	rt.halted = true
	res := rt.ctx.Result.TakeAndContinue(false)
	res.FuelConsumed, res.FuelRefunded = consumed, refunded
	return Outcome{Result: res}
}
