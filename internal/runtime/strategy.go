package runtime

import (
	"context"

	"github.com/rwasm-go/rwasmvm/internal/runtime/host"
	"github.com/rwasm-go/rwasmvm/internal/runtime/memory"
	"github.com/rwasm-go/rwasmvm/internal/runtime/rwasm"
	"github.com/rwasm-go/rwasmvm/internal/runtime/wasm"
	"github.com/rwasm-go/rwasmvm/types"
)

// InlineResolver resolves an interruption while the instance is still running. It is
// used by instances that cannot suspend.
type InlineResolver func(req *host.InterruptionRequest) (types.ExitCode, error)

// Strategy instantiates one decoded contract against an execution context.
type Strategy interface {
	Instantiate(ctx *host.Context, syscalls *host.SyscallTable, resolve InlineResolver) (Instance, error)
}

// Instance is a running contract. Execute and Resume return nil on a normal return,
// rterrors.ErrExecutionHalted after _exit, rterrors.ErrInterruptionCalled when a syscall
// parked a request, or the trap that stopped execution.
type Instance interface {
	Execute(entry string) error
	Resume(exitCode types.ExitCode) error
	Memory() memory.Memory
	Close() error
}

// RwasmStrategy runs modules on the rWASM interpreter.
type RwasmStrategy struct {
	Module *rwasm.Module
	Config rwasm.EngineConfig
}

func (s *RwasmStrategy) Instantiate(ctx *host.Context, syscalls *host.SyscallTable, _ InlineResolver) (Instance, error) {
	cfg := s.Config
	cfg.Meter = ctx.Meter()
	engine, err := rwasm.NewEngine(s.Module, syscalls.Linker(), host.NewDispatcher(syscalls, ctx), cfg)
	if err != nil {
		return nil, err
	}
	return &rwasmInstance{engine: engine}, nil
}

type rwasmInstance struct {
	engine *rwasm.Engine
}

func (i *rwasmInstance) Execute(entry string) error {
	_, err := i.engine.Execute(entry)
	return err
}

func (i *rwasmInstance) Resume(exitCode types.ExitCode) error {
	_, err := i.engine.Resume(rwasm.I32(int32(exitCode)))
	return err
}

func (i *rwasmInstance) Memory() memory.Memory { return i.engine.Memory() }

func (i *rwasmInstance) Close() error { return nil }

// WasmStrategy runs standard WebAssembly modules on wazero. Instruction execution is not
// metered; only syscalls charge fuel.
type WasmStrategy struct {
	Module *wasm.Module
}

func (s *WasmStrategy) Instantiate(ctx *host.Context, syscalls *host.SyscallTable, resolve InlineResolver) (Instance, error) {
	inst, err := s.Module.Instantiate(context.Background(), host.NewDispatcher(syscalls, ctx))
	if err != nil {
		return nil, err
	}
	inst.SetInterruptHandler(func(req *host.InterruptionRequest, _ memory.Memory) (rwasm.Value, error) {
		code, err := resolve(req)
		if err != nil {
			return 0, err
		}
		return rwasm.I32(int32(code)), nil
	})
	return &wasmInstance{inst: inst}, nil
}

type wasmInstance struct {
	inst *wasm.Instance
}

func (i *wasmInstance) Execute(entry string) error {
	return i.inst.Execute(context.Background(), entry)
}

func (i *wasmInstance) Resume(types.ExitCode) error {
	panic("runtime: wasm instances resolve interruptions inline and never resume")
}

func (i *wasmInstance) Memory() memory.Memory { return i.inst.Memory() }

func (i *wasmInstance) Close() error { return i.inst.Close(context.Background()) }
