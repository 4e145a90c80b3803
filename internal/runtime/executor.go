package runtime

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rwasm-go/rwasmvm/internal/metrics"
	"github.com/rwasm-go/rwasmvm/internal/runtime/cache"
	"github.com/rwasm-go/rwasmvm/internal/runtime/constants"
	"github.com/rwasm-go/rwasmvm/internal/runtime/crypto"
	rterrors "github.com/rwasm-go/rwasmvm/internal/runtime/error"
	"github.com/rwasm-go/rwasmvm/internal/runtime/host"
	"github.com/rwasm-go/rwasmvm/internal/runtime/memory"
	"github.com/rwasm-go/rwasmvm/internal/runtime/rwasm"
	"github.com/rwasm-go/rwasmvm/internal/runtime/wasm"
	"github.com/rwasm-go/rwasmvm/types"
)

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	Limits    types.RuntimeLimits
	CacheSize int
	Logger    zerolog.Logger
	// Metrics may be nil.
	Metrics *metrics.Metrics
}

type parkedCall struct {
	rt  *ContractRuntime
	req *host.InterruptionRequest
}

// Executor loads contracts, runs them and keeps the runtimes that wait for the host.
//
// Interruptions of a root context are resolved inline: _exec runs the callee through
// Invoke and _resume continues a parked runtime. Interruptions of a non-root context are
// parked under a call id and handed to the host, which continues them with Resume.
type Executor struct {
	cache        *cache.Cache
	syscalls     *host.SyscallTable
	wasm         *wasm.Runtime
	engineConfig rwasm.EngineConfig
	logger       zerolog.Logger
	metrics      *metrics.Metrics

	mu         sync.Mutex
	parked     map[uint32]*parkedCall
	nextCallID uint32

	// newContext builds the context of every nested call.
	newContext func() *host.Context
}

// NewExecutor creates an executor with the default syscall table.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	maxPages := cfg.Limits.MaxMemoryPages
	if maxPages == 0 {
		maxPages = constants.MaxWasmPages
	}
	syscalls := host.DefaultSyscallTable()
	wasmRuntime, err := wasm.NewRuntime(context.Background(), syscalls, maxPages, cfg.Logger)
	if err != nil {
		return nil, err
	}
	return &Executor{
		cache:    cache.New(cfg.CacheSize),
		syscalls: syscalls,
		wasm:     wasmRuntime,
		engineConfig: rwasm.EngineConfig{
			MaxStackHeight: cfg.Limits.MaxStackHeight,
			MaxMemoryPages: maxPages,
			Limiter:        memory.PageLimiter{MaxPages: maxPages},
		},
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		parked:     make(map[uint32]*parkedCall),
		nextCallID: 1,
		newContext: host.NewContext,
	}, nil
}

func (e *Executor) Close() error {
	return e.wasm.Close(context.Background())
}

func (e *Executor) Cache() *cache.Cache { return e.cache }

func (e *Executor) Syscalls() *host.SyscallTable { return e.syscalls }

// Warmup stores code, decodes it and caches the module. It returns the code hash.
func (e *Executor) Warmup(code []byte) (types.B256, error) {
	hash := e.cache.Save(code)
	m, err := e.decode(code)
	if err != nil {
		return hash, err
	}
	e.cache.SaveModule(hash, m)
	return hash, nil
}

// Execute runs ctx until it halts or, for a non-root context, until it raises an
// interruption. A parked runtime is reported with its positive call id as exit code and
// the encoded SyscallInvocationParams as output.
func (e *Executor) Execute(ctx *host.Context) types.ExecutionResult {
	defer traceFn(e.logger, "execute", ctx.CallDepth)()
	return e.run(ctx, ctx.IsRoot())
}

// Resume continues the runtime parked under callID. returnData becomes the runtime's
// return data, (fuelConsumed, fuelRefunded) is written at fuel16Ptr when it is non-zero
// and fuelConsumed is charged before the suspended syscall returns exitCode. An unknown
// callID panics.
func (e *Executor) Resume(callID uint32, returnData []byte, fuel16Ptr uint32, fuelConsumed uint64, fuelRefunded int64, exitCode types.ExitCode) types.ExecutionResult {
	defer traceFn(e.logger, "resume", callID)()
	p := e.take(callID)
	p.rt.ctx.Result.ReturnData = returnData
	outcome := p.rt.continueWith(fuel16Ptr, fuelConsumed, fuelRefunded, exitCode)
	return e.drive(p.rt, outcome, false)
}

// ForgetRuntime drops a parked runtime without resuming it.
func (e *Executor) ForgetRuntime(callID uint32) {
	e.mu.Lock()
	p, ok := e.parked[callID]
	delete(e.parked, callID)
	n := len(e.parked)
	e.mu.Unlock()
	if ok {
		_ = p.rt.Close()
	}
	e.metrics.SetParked(n)
}

// ResetCallIDCounter restarts call ids at 1. Ids of runtimes still parked are skipped.
func (e *Executor) ResetCallIDCounter() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextCallID = 1
}

// IsParked reports whether a runtime waits under callID.
func (e *Executor) IsParked(callID uint32) bool {
	_, ok := e.lookup(callID)
	return ok
}

// Parked returns the number of runtimes waiting to be resumed.
func (e *Executor) Parked() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.parked)
}

func (e *Executor) run(ctx *host.Context, inline bool) types.ExecutionResult {
	if ctx.Preimages == nil {
		ctx.Preimages = e.cache
	}
	if _, ok := EntrypointFor(ctx.State); !ok {
		return e.fail(ctx, rterrors.Exit(types.ExitCodeMalformedBuiltinParams))
	}
	strategy, err := e.load(ctx)
	if err != nil {
		return e.fail(ctx, err)
	}
	rt, err := NewContractRuntime(strategy, e.syscalls, ctx, ctx.FuelLimit)
	if err != nil {
		return e.fail(ctx, err)
	}
	rt.SetResolver(e.resolve)
	return e.drive(rt, rt.Execute(), inline)
}

// drive resolves interruptions until the runtime halts when inline is set, and parks
// the runtime at its first interruption otherwise. Inline results report the fuel of the
// whole run; parked and resumed runtimes report the fuel of the last segment.
func (e *Executor) drive(rt *ContractRuntime, outcome Outcome, inline bool) types.ExecutionResult {
	for outcome.Interrupted() {
		req := outcome.Interruption
		if !inline {
			return e.park(rt, outcome)
		}
		e.metrics.ObserveInterruption(req.Kind.String(), "inline")
		consumed, refunded, code := e.resolve(rt, req)
		outcome = rt.continueWith(req.FuelPtr, consumed, refunded, code)
	}

	res := outcome.Result
	if inline {
		m := rt.ctx.Meter()
		res.FuelConsumed, res.FuelRefunded = m.Consumed(), m.Refunded()
	}
	if err := rt.Close(); err != nil {
		e.logger.Error().Err(err).Msg("closing contract instance")
	}
	e.metrics.ObserveExecution(res)
	e.logger.Debug().
		Uint32("depth", rt.ctx.CallDepth).
		Stringer("exit_code", res.ExitCode).
		Uint64("fuel_consumed", res.FuelConsumed).
		Int("output_len", len(res.Output)).
		Msg("contract halted")
	return res
}

func (e *Executor) park(rt *ContractRuntime, outcome Outcome) types.ExecutionResult {
	req := outcome.Interruption
	params, err := req.Params(rt.Memory())
	var encoded []byte
	if err == nil {
		encoded, err = params.Encode()
	}
	if err != nil {
		_ = rt.Close()
		res := types.ExecutionResult{
			ExitCode:     rterrors.ExitCodeOf(err),
			FuelConsumed: outcome.Result.FuelConsumed,
			FuelRefunded: outcome.Result.FuelRefunded,
		}
		e.metrics.ObserveExecution(res)
		return res
	}

	id := e.register(rt, req)
	e.metrics.ObserveInterruption(req.Kind.String(), "parked")
	e.logger.Debug().
		Uint32("call_id", id).
		Uint32("depth", rt.ctx.CallDepth).
		Stringer("code_hash", params.CodeHash).
		Uint64("fuel_limit", params.FuelLimit).
		Msg("runtime parked")
	res := types.ExecutionResult{
		ExitCode:     types.ExitCode(id),
		Output:       encoded,
		FuelConsumed: outcome.Result.FuelConsumed,
		FuelRefunded: outcome.Result.FuelRefunded,
	}
	e.metrics.ObserveExecution(res)
	return res
}

func (e *Executor) register(rt *ContractRuntime, req *host.InterruptionRequest) uint32 {
	e.mu.Lock()
	defer func() {
		n := len(e.parked)
		e.mu.Unlock()
		e.metrics.SetParked(n)
	}()
	for {
		id := e.nextCallID
		e.nextCallID++
		if e.nextCallID > math.MaxInt32 {
			e.nextCallID = 1
		}
		if _, used := e.parked[id]; !used {
			e.parked[id] = &parkedCall{rt: rt, req: req}
			return id
		}
	}
}

func (e *Executor) lookup(callID uint32) (*parkedCall, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.parked[callID]
	return p, ok
}

func (e *Executor) take(callID uint32) *parkedCall {
	e.mu.Lock()
	p, ok := e.parked[callID]
	delete(e.parked, callID)
	n := len(e.parked)
	e.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("runtime: no runtime parked under call id %d", callID))
	}
	e.metrics.SetParked(n)
	return p
}

// resolve is the Resolver of every runtime the executor creates.
func (e *Executor) resolve(rt *ContractRuntime, req *host.InterruptionRequest) (uint64, int64, types.ExitCode) {
	switch req.Kind {
	case host.InterruptionExec:
		input, err := req.Input(rt.Memory())
		if err != nil {
			return 0, 0, rterrors.ExitCodeOf(err)
		}
		return e.Invoke(rt.ctx, types.CodeHash(req.CodeHash), input, req.FuelLimit, req.State)
	case host.InterruptionResume:
		return e.resumeParked(rt, req)
	}
	panic(fmt.Sprintf("runtime: unknown interruption kind %s", req.Kind))
}

// resumeParked continues a parked runtime on behalf of a root contract's _resume. The
// fuel16 word of the request carries the fuel to charge the parked runtime; the parked
// runtime's output becomes the root's return data.
func (e *Executor) resumeParked(rt *ContractRuntime, req *host.InterruptionRequest) (uint64, int64, types.ExitCode) {
	returnData, err := req.ReturnData(rt.Memory())
	if err != nil {
		return 0, 0, rterrors.ExitCodeOf(err)
	}
	var consumed uint64
	var refunded int64
	if req.FuelPtr != 0 {
		if consumed, refunded, err = rt.readFuel16(req.FuelPtr); err != nil {
			return 0, 0, rterrors.ExitCodeOf(err)
		}
	}
	p, ok := e.lookup(req.CallID)
	if !ok {
		return 0, 0, types.ExitCodeMalformedBuiltinParams
	}
	res := e.Resume(req.CallID, returnData, p.req.FuelPtr, consumed, refunded, req.ExitCode)
	rt.ctx.Result.ReturnData = res.Output
	return res.FuelConsumed, res.FuelRefunded, res.ExitCode
}

func (e *Executor) fail(ctx *host.Context, err error) types.ExecutionResult {
	res := types.ExecutionResult{ExitCode: rterrors.ExitCodeOf(err)}
	e.logger.Debug().Err(err).Uint32("depth", ctx.CallDepth).Stringer("exit_code", res.ExitCode).Msg("contract failed to start")
	e.metrics.ObserveExecution(res)
	return res
}

// load returns the strategy for the context's bytecode. A hash nobody knows runs the
// empty module.
func (e *Executor) load(ctx *host.Context) (Strategy, error) {
	target := ctx.Bytecode
	hash := target.Hash
	var code []byte
	if target.IsInline() {
		code = target.Bytecode
		if hash.IsZero() && len(code) > 0 {
			hash = types.B256(crypto.Keccak256(code))
		}
	}

	if m, ok := e.cache.LoadModule(hash); ok {
		e.metrics.ObserveCacheLookup(true)
		return e.strategyFor(m), nil
	}
	e.metrics.ObserveCacheLookup(false)

	if !target.IsInline() {
		var found bool
		code, found = e.cache.Load(hash)
		if !found && ctx.Preimages != nil {
			code, found = ctx.Preimages.Preimage(hash)
		}
		if !found {
			e.logger.Debug().Stringer("code_hash", hash).Msg("unknown code hash, running empty module")
			code = nil
		}
	}

	m, err := e.decode(code)
	if err != nil {
		return nil, err
	}
	if len(code) > 0 {
		e.cache.SaveModule(hash, m)
	}
	return e.strategyFor(m), nil
}

func (e *Executor) decode(code []byte) (*cache.Module, error) {
	if rwasm.IsWasm(code) {
		wm, err := e.wasm.Compile(context.Background(), code)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", rterrors.Exit(types.ExitCodeErr), err)
		}
		if err := wm.Validate(); err != nil {
			_ = wm.Close(context.Background())
			return nil, fmt.Errorf("%w: %w", rterrors.Exit(types.ExitCodeErr), err)
		}
		return &cache.Module{Wasm: wm}, nil
	}
	mod, err := rwasm.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rterrors.Exit(types.ExitCodeErr), err)
	}
	return &cache.Module{Rwasm: mod}, nil
}

func (e *Executor) strategyFor(m *cache.Module) Strategy {
	if m.Wasm != nil {
		return &WasmStrategy{Module: m.Wasm}
	}
	return &RwasmStrategy{Module: m.Rwasm, Config: e.engineConfig}
}
