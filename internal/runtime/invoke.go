package runtime

import (
	"github.com/rwasm-go/rwasmvm/internal/runtime/constants"
	"github.com/rwasm-go/rwasmvm/internal/runtime/host"
	"github.com/rwasm-go/rwasmvm/types"
)

// Invoke runs target as a nested call of parent and returns the fuel it consumed, the
// fuel it refunded and its exit code. The child gets a fresh context one level deeper
// with its own budget of fuelLimit; charging that fuel to the parent is the caller's
// job. The child's output replaces the parent's return data. A parent already at
// CallStackLimit gets CallDepthOverflow without any child being built.
//
// When the parent has storage, a checkpoint is taken before the child runs and rolled
// back unless the child exits with Ok.
func (e *Executor) Invoke(parent *host.Context, target types.BytecodeOrHash, input []byte, fuelLimit uint64, state uint32) (uint64, int64, types.ExitCode) {
	if parent.CallDepth >= constants.CallStackLimit {
		return 0, 0, types.ExitCodeCallDepthOverflow
	}

	child := e.newContext().
		WithBytecode(target).
		WithInput(input).
		WithFuelLimit(fuelLimit).
		WithState(state).
		WithCallDepth(parent.CallDepth + 1).
		WithDisableFuel(parent.DisableFuel).
		WithStorage(parent.Storage).
		WithPreimages(parent.Preimages).
		WithLogger(parent.Logger).
		WithDebug(parent.Debug).
		WithMaxOutputSize(parent.MaxOutputSize)
	e.metrics.ObserveCallDepth(child.CallDepth)

	checkpoint := -1
	if child.Storage != nil {
		checkpoint = child.Storage.Checkpoint()
	}

	res := e.run(child, true)

	if checkpoint >= 0 && res.ExitCode != types.ExitCodeOk {
		if err := child.Storage.Rollback(checkpoint); err != nil {
			e.logger.Error().Err(err).Int("checkpoint", checkpoint).Msg("rolling back nested call")
		}
	}
	parent.Result.ReturnData = res.Output
	return res.FuelConsumed, res.FuelRefunded, res.ExitCode
}
