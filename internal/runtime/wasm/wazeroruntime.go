package wasm

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/rwasm-go/rwasmvm/internal/runtime/constants"
	"github.com/rwasm-go/rwasmvm/internal/runtime/host"
)

type instanceKey struct{}

func withInstance(ctx context.Context, inst *Instance) context.Context {
	return context.WithValue(ctx, instanceKey{}, inst)
}

func instanceFrom(ctx context.Context) *Instance {
	inst, _ := ctx.Value(instanceKey{}).(*Instance)
	return inst
}

// buildHostModule exports every syscall of the table under the rwasm_v1 module.
func (r *Runtime) buildHostModule(ctx context.Context) error {
	builder := r.runtime.NewHostModuleBuilder(constants.ImportModule)
	for _, entry := range r.syscalls.Entries() {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(syscallFunction(entry), entry.Params, entry.Results).
			WithName(entry.Name).
			Export(entry.Name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		return err
	}
	r.logger.Debug().Int("syscalls", len(r.syscalls.Entries())).Msg("host module instantiated")
	return nil
}

// syscallFunction forwards a wazero host call to the instance found in ctx. Failures are
// recorded on the instance before the call is aborted with a panic, which wazero turns
// into an error returned from the guest's entrypoint.
func syscallFunction(entry host.SyscallEntry) api.GoModuleFunc {
	nParams, nResults := len(entry.Params), len(entry.Results)
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		inst := instanceFrom(ctx)
		if inst == nil {
			panic("wasm: syscall " + entry.Name + " called outside an instance")
		}
		if err := inst.syscall(entry, mod, stack[:nParams], stack[:nResults]); err != nil {
			inst.abort(err)
		}
	}
}
