package wasm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	rterrors "github.com/rwasm-go/rwasmvm/internal/runtime/error"
	"github.com/rwasm-go/rwasmvm/internal/runtime/host"
	"github.com/rwasm-go/rwasmvm/internal/runtime/memory"
	"github.com/rwasm-go/rwasmvm/internal/runtime/rwasm"
)

// InterruptFunc resolves a parked interruption while the guest is still on the stack and
// returns the value the syscall yields. wazero cannot suspend a call, so every
// interruption of a wasm instance is resolved synchronously.
type InterruptFunc func(req *host.InterruptionRequest, mem memory.Memory) (rwasm.Value, error)

// Instance is one instantiation of a Module bound to an execution context.
type Instance struct {
	module     api.Module
	dispatcher *host.Dispatcher
	memory     *memory.WazeroMemory
	interrupt  InterruptFunc

	// hostErr is the error that aborted the current call from inside a syscall.
	hostErr error
}

// Instantiate creates an instance whose syscalls run against dispatcher's context.
func (m *Module) Instantiate(ctx context.Context, dispatcher *host.Dispatcher) (*Instance, error) {
	inst := &Instance{dispatcher: dispatcher}
	cfg := wazero.NewModuleConfig().WithName("").WithStartFunctions()
	mod, err := m.runtime.runtime.InstantiateModule(withInstance(ctx, inst), m.compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("instantiate wasm module: %w", inst.translate(err))
	}
	inst.module = mod
	inst.memory = memory.NewWazeroMemory(mod.Memory())
	return inst, nil
}

// SetInterruptHandler installs the resolver for _exec and _resume.
func (i *Instance) SetInterruptHandler(fn InterruptFunc) { i.interrupt = fn }

func (i *Instance) Memory() memory.Memory { return i.memory }

// Execute calls the exported entry function. It returns nil when the function returns,
// rterrors.ErrExecutionHalted when the guest called _exit, or the error that trapped it.
func (i *Instance) Execute(ctx context.Context, entry string) error {
	fn := i.module.ExportedFunction(entry)
	if fn == nil {
		return fmt.Errorf("entrypoint %q: %w", entry, rterrors.TrapUnresolvedFunction)
	}
	if len(fn.Definition().ParamTypes()) != 0 {
		return fmt.Errorf("entrypoint %q takes parameters: %w", entry, rterrors.TrapBadSignature)
	}
	if _, err := fn.Call(withInstance(ctx, i)); err != nil {
		return i.translate(err)
	}
	return nil
}

func (i *Instance) Close(ctx context.Context) error {
	return i.module.Close(ctx)
}

func (i *Instance) syscall(entry host.SyscallEntry, mod api.Module, params, results []uint64) error {
	args := make([]rwasm.Value, len(params))
	for n, p := range params {
		args[n] = rwasm.Value(p)
	}
	out := make([]rwasm.Value, len(results))
	mem := memory.NewWazeroMemory(mod.Memory())

	err := i.dispatcher.InvokeSyscall(uint32(entry.Index), mem, args, out)
	if errors.Is(err, rterrors.ErrInterruptionCalled) {
		req := i.dispatcher.Context().TakeInterruption()
		if i.interrupt == nil || req == nil {
			return fmt.Errorf("%s: no interruption handler: %w", entry.Name, rterrors.TrapUnresolvedFunction)
		}
		value, ierr := i.interrupt(req, mem)
		if ierr != nil {
			return ierr
		}
		if len(out) > 0 {
			out[0] = value
		}
		err = nil
	}
	if err != nil {
		return err
	}
	for n, v := range out {
		results[n] = uint64(v)
	}
	return nil
}

func (i *Instance) abort(err error) {
	i.hostErr = err
	panic(err)
}

// translate turns an error returned by wazero into an error classified by ExitCodeOf.
func (i *Instance) translate(err error) error {
	if i.hostErr != nil {
		hostErr := i.hostErr
		i.hostErr = nil
		return hostErr
	}
	msg := err.Error()
	for _, t := range trapMessages {
		if strings.Contains(msg, t.substr) {
			return fmt.Errorf("%w: %s", t.trap, firstLine(msg))
		}
	}
	return err
}

// trapMessages maps wazero runtime error messages to trap codes. Order matters where one
// message contains another.
var trapMessages = []struct {
	substr string
	trap   rterrors.TrapCode
}{
	{"unreachable", rterrors.TrapUnreachableCodeReached},
	{"integer divide by zero", rterrors.TrapIntegerDivisionByZero},
	{"invalid conversion to integer", rterrors.TrapBadConversionToInteger},
	{"integer overflow", rterrors.TrapIntegerOverflow},
	{"out of bounds memory access", rterrors.TrapMemoryOutOfBounds},
	{"invalid table access", rterrors.TrapTableOutOfBounds},
	{"indirect call type mismatch", rterrors.TrapBadSignature},
	{"stack overflow", rterrors.TrapStackOverflow},
	{"not exported", rterrors.TrapUnresolvedFunction},
	{"not instantiated", rterrors.TrapUnresolvedFunction},
	{"signature mismatch", rterrors.TrapBadSignature},
}

func firstLine(s string) string {
	if n := strings.IndexByte(s, '\n'); n >= 0 {
		return s[:n]
	}
	return s
}
