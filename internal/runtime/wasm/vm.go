package wasm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"

	"github.com/rwasm-go/rwasmvm/internal/runtime/host"
)

// Runtime runs standard WebAssembly contracts on wazero. Every module it compiles is
// linked against one shared rwasm_v1 host module built from the syscall table.
type Runtime struct {
	runtime  wazero.Runtime
	syscalls *host.SyscallTable
	maxPages uint32
	logger   zerolog.Logger
}

// NewRuntime creates the wazero runtime and instantiates the host module. maxPages caps
// the memory of every instance.
func NewRuntime(ctx context.Context, syscalls *host.SyscallTable, maxPages uint32, logger zerolog.Logger) (*Runtime, error) {
	cfg := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(maxPages).
		WithCloseOnContextDone(true)
	r := &Runtime{
		runtime:  wazero.NewRuntimeWithConfig(ctx, cfg),
		syscalls: syscalls,
		maxPages: maxPages,
		logger:   logger,
	}
	if err := r.buildHostModule(ctx); err != nil {
		_ = r.runtime.Close(ctx)
		return nil, err
	}
	logger.Debug().Uint32("max_pages", maxPages).Msg("wazero runtime initialized")
	return r, nil
}

// Compile validates and compiles a WebAssembly binary.
func (r *Runtime) Compile(ctx context.Context, code []byte) (*Module, error) {
	compiled, err := r.runtime.CompileModule(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("compile wasm module: %w", err)
	}
	return &Module{runtime: r, compiled: compiled}, nil
}

// Close releases the runtime and every module compiled by it.
func (r *Runtime) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}

// Module is a compiled WebAssembly module. It is safe to instantiate concurrently.
type Module struct {
	runtime  *Runtime
	compiled wazero.CompiledModule
}

// Exports reports whether the module exports a function named entry.
func (m *Module) Exports(entry string) bool {
	_, ok := m.compiled.ExportedFunctions()[entry]
	return ok
}

func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}
