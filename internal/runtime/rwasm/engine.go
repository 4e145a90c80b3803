package rwasm

import (
	"errors"
	"fmt"

	"github.com/rwasm-go/rwasmvm/internal/runtime/constants"
	rterrors "github.com/rwasm-go/rwasmvm/internal/runtime/error"
	"github.com/rwasm-go/rwasmvm/internal/runtime/fuel"
	"github.com/rwasm-go/rwasmvm/internal/runtime/memory"
)

// SyscallHandler executes imported functions on behalf of the engine. Returning
// rterrors.ErrInterruptionCalled suspends the engine; any other error halts it.
type SyscallHandler interface {
	InvokeSyscall(index uint32, mem memory.Memory, params, results []Value) error
}

// SyscallHandlerFunc adapts a function to SyscallHandler.
type SyscallHandlerFunc func(index uint32, mem memory.Memory, params, results []Value) error

func (f SyscallHandlerFunc) InvokeSyscall(index uint32, mem memory.Memory, params, results []Value) error {
	return f(index, mem, params, results)
}

// EngineState is the lifecycle of an Engine.
type EngineState uint8

const (
	StateIdle EngineState = iota
	StateRunning
	StateInterrupted
	StateHalted
)

func (s EngineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateInterrupted:
		return "interrupted"
	case StateHalted:
		return "halted"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// EngineConfig bounds one engine instance.
type EngineConfig struct {
	// MaxStackHeight caps the operand stack; zero means no cap beyond memory.
	MaxStackHeight uint32
	// MaxMemoryPages caps linear memory below the module's own maximum; zero means no cap.
	MaxMemoryPages uint32
	// Meter is charged before each instruction. A nil meter disables charging.
	Meter   fuel.Meter
	Limiter memory.Limiter
}

// Engine interprets one instantiated module. It is single use: Execute once, then Resume
// for every interruption until it halts.
type Engine struct {
	module  *Module
	imports []ImportEntry
	handler SyscallHandler
	meter   fuel.Meter
	memory  *memory.Linear

	globals []Value
	table   []uint32

	stack    []Value
	frames   []uint32
	maxStack int
	pc       uint32

	state          EngineState
	entryResults   int
	pendingResults int
}

// NewEngine instantiates module: it resolves imports, allocates memory and copies data
// segments.
func NewEngine(module *Module, linker *ImportLinker, handler SyscallHandler, cfg EngineConfig) (*Engine, error) {
	imports := make([]ImportEntry, len(module.Imports))
	for i, name := range module.Imports {
		entry, ok := linker.Resolve(name)
		if !ok {
			return nil, fmt.Errorf("import %q: %w", name, rterrors.TrapUnresolvedFunction)
		}
		imports[i] = entry
	}

	maxPages := module.Memory.Maximum
	if maxPages == 0 {
		maxPages = constants.MaxWasmPages
	}
	if cfg.MaxMemoryPages != 0 && cfg.MaxMemoryPages < maxPages {
		maxPages = cfg.MaxMemoryPages
	}
	if module.Memory.Initial > maxPages {
		return nil, fmt.Errorf("%w: %d initial pages above limit %d", rterrors.TrapGrowthOperationLimited, module.Memory.Initial, maxPages)
	}
	mem, err := memory.NewLinear(module.Memory.Initial, maxPages, cfg.Limiter)
	if err != nil {
		if errors.Is(err, memory.ErrGrowthVetoed) {
			return nil, fmt.Errorf("%w: %w", rterrors.TrapGrowthOperationLimited, err)
		}
		return nil, err
	}
	for i, seg := range module.Data {
		if err := mem.Write(seg.Offset, seg.Bytes); err != nil {
			return nil, fmt.Errorf("data segment %d: %w", i, err)
		}
	}

	maxStack := int(cfg.MaxStackHeight)
	if maxStack == 0 {
		maxStack = int(^uint(0) >> 1)
	}
	return &Engine{
		module:   module,
		imports:  imports,
		handler:  handler,
		meter:    cfg.Meter,
		memory:   mem,
		globals:  append([]Value(nil), module.Globals...),
		table:    append([]uint32(nil), module.Table...),
		stack:    make([]Value, 0, 64),
		maxStack: maxStack,
	}, nil
}

func (e *Engine) State() EngineState { return e.state }

func (e *Engine) Memory() *memory.Linear { return e.memory }

// StackHeight is the number of operands currently on the stack.
func (e *Engine) StackHeight() int { return len(e.stack) }

// Execute runs the named entrypoint. It returns rterrors.ErrInterruptionCalled when a
// syscall suspended execution; the engine then waits for Resume. Calling Execute on an
// engine that was already started panics.
func (e *Engine) Execute(entry string, args ...Value) ([]Value, error) {
	if e.state != StateIdle {
		panic(fmt.Sprintf("rwasm: Execute on %s engine", e.state))
	}
	fn, ok := e.module.Entrypoints[entry]
	if !ok {
		e.state = StateHalted
		return nil, fmt.Errorf("entrypoint %q: %w", entry, rterrors.TrapUnresolvedFunction)
	}
	sig := e.module.Signature(fn)
	if len(args) != int(sig.Params) {
		e.state = StateHalted
		return nil, fmt.Errorf("entrypoint %q takes %d params, got %d: %w", entry, sig.Params, len(args), rterrors.TrapBadSignature)
	}
	e.stack = append(e.stack, args...)
	e.entryResults = int(sig.Results)
	e.pc = e.module.Funcs[fn]
	return e.run()
}

// Resume pushes the values the interrupted syscall produces and continues after it.
// Calling Resume on an engine that is not interrupted panics.
func (e *Engine) Resume(values ...Value) ([]Value, error) {
	if e.state != StateInterrupted {
		panic(fmt.Sprintf("rwasm: Resume on %s engine", e.state))
	}
	if len(values) != e.pendingResults {
		panic(fmt.Sprintf("rwasm: Resume with %d values, syscall returns %d", len(values), e.pendingResults))
	}
	e.stack = append(e.stack, values...)
	return e.run()
}

func (e *Engine) run() ([]Value, error) {
	e.state = StateRunning
	results, err := e.loop()
	if errors.Is(err, rterrors.ErrInterruptionCalled) {
		e.state = StateInterrupted
	} else {
		e.state = StateHalted
	}
	return results, err
}
