package rwasmvm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/rwasm-go/rwasmvm/internal/metrics"
	"github.com/rwasm-go/rwasmvm/internal/runtime"
	"github.com/rwasm-go/rwasmvm/internal/runtime/cache"
	"github.com/rwasm-go/rwasmvm/internal/runtime/host"
	"github.com/rwasm-go/rwasmvm/internal/storage"
	"github.com/rwasm-go/rwasmvm/types"
)

// ErrUnknownCallID is returned by Resume for a call id no runtime is parked under.
var ErrUnknownCallID = errors.New("no runtime parked under call id")

// Call describes one invocation handed to the VM.
type Call struct {
	// Code is inline bytecode or the hash of code stored with StoreCode.
	Code  types.BytecodeOrHash
	Input []byte
	// FuelLimit of zero falls back to the configured default.
	FuelLimit uint64
	// State selects the entrypoint: constants.StateMain or constants.StateDeploy.
	State uint32
	// CallDepth above zero makes the call a nested one: its interruptions are parked
	// and returned to the caller instead of being resolved by the VM.
	CallDepth uint32
}

// Resumption is what the host reports back for a parked interruption.
type Resumption struct {
	ReturnData []byte
	// Fuel16Ptr, when non-zero, receives (FuelConsumed, FuelRefunded) in the parked
	// runtime's memory.
	Fuel16Ptr    uint32
	FuelConsumed uint64
	FuelRefunded int64
	ExitCode     types.ExitCode
}

// VM is the main entry point to this library.
// It owns the code cache, the executor with its parked runtimes and the journaled
// contract storage. Create one with NewVM and call Cleanup when done.
//
// Every call writes to one shared storage journal. A call that ends with anything but Ok
// has its writes rolled back, together with any writes made after it started.
type VM struct {
	config   types.VMConfig
	executor *runtime.Executor
	store    *storage.Journal
	logger   zerolog.Logger

	mu sync.Mutex
	// checkpoints holds the journal position each parked call started at.
	checkpoints map[uint32]int
}

// NewVM creates a new VM.
//
// `config` selects limits, the storage backend and cache size.
// `logger` receives runtime logs; contract _debug_log output only when config.Log.Debug is set.
// `reg` registers the VM metrics when config.Metrics.Enabled is set. It may be nil.
func NewVM(config types.VMConfig, logger zerolog.Logger, reg prometheus.Registerer) (*VM, error) {
	var m *metrics.Metrics
	if config.Metrics.Enabled && reg != nil {
		var err error
		if m, err = metrics.New(reg); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	store, err := storage.Open(config.Storage.Backend, config.Storage.Dir, logger)
	if err != nil {
		return nil, err
	}
	executor, err := runtime.NewExecutor(runtime.ExecutorConfig{
		Limits:    config.Limits,
		CacheSize: config.Cache.Size,
		Logger:    logger,
		Metrics:   m,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	logger.Info().
		Str("storage", config.Storage.Backend).
		Int("cache_size", config.Cache.Size).
		Uint32("max_memory_pages", config.Limits.MaxMemoryPages).
		Msg("vm started")
	return &VM{
		config:      config,
		executor:    executor,
		store:       store,
		logger:      logger,
		checkpoints: make(map[uint32]int),
	}, nil
}

// Cleanup releases the executor and closes the storage. Uncommitted changes are lost.
func (vm *VM) Cleanup() error {
	return errors.Join(vm.executor.Close(), vm.store.Close())
}

// StoreCode saves the bytecode, decodes it and keeps the decoded module warm.
// It returns the keccak256 code hash the code can be executed by.
// Code that fails to decode is stored all the same and the error is returned.
func (vm *VM) StoreCode(code []byte) (types.B256, error) {
	return vm.executor.Warmup(code)
}

// GetCode returns the bytecode stored under hash.
func (vm *VM) GetCode(hash types.B256) ([]byte, bool) {
	return vm.executor.Cache().Load(hash)
}

// Pin keeps the decoded module of hash out of LRU eviction.
func (vm *VM) Pin(hash types.B256) { vm.executor.Cache().Pin(hash) }

func (vm *VM) Unpin(hash types.B256) { vm.executor.Cache().Unpin(hash) }

// RemoveCode drops code and module of hash. Pinned code is kept and false is returned.
func (vm *VM) RemoveCode(hash types.B256) bool { return vm.executor.Cache().Remove(hash) }

func (vm *VM) CacheStats() cache.Stats { return vm.executor.Cache().Stats() }

// Execute runs call to completion or, for a nested call, until its first interruption.
func (vm *VM) Execute(call Call) types.RuntimeResult {
	limit := call.FuelLimit
	if limit == 0 {
		limit = vm.config.Fuel.Limit
	}
	ctx := host.NewContext().
		WithBytecode(call.Code).
		WithInput(call.Input).
		WithFuelLimit(limit).
		WithState(call.State).
		WithCallDepth(call.CallDepth).
		WithDisableFuel(vm.config.Fuel.Disabled).
		WithStorage(vm.store).
		WithLogger(vm.logger).
		WithDebug(vm.config.Log.Debug).
		WithMaxOutputSize(vm.config.Limits.MaxOutputSize)

	checkpoint := vm.store.Checkpoint()
	res := vm.executor.Execute(ctx)
	vm.settle(checkpoint, res)
	return toRuntimeResult(res)
}

// Resume continues the runtime parked under callID with the host's result.
func (vm *VM) Resume(callID uint32, r Resumption) (types.RuntimeResult, error) {
	if !vm.executor.IsParked(callID) {
		return types.RuntimeResult{}, fmt.Errorf("%w %d", ErrUnknownCallID, callID)
	}
	vm.mu.Lock()
	checkpoint, ok := vm.checkpoints[callID]
	delete(vm.checkpoints, callID)
	vm.mu.Unlock()
	if !ok {
		checkpoint = vm.store.Checkpoint()
	}

	res := vm.executor.Resume(callID, r.ReturnData, r.Fuel16Ptr, r.FuelConsumed, r.FuelRefunded, r.ExitCode)
	vm.settle(checkpoint, res)
	return toRuntimeResult(res), nil
}

// Forget drops a parked runtime without resuming it. Its storage writes are rolled back.
func (vm *VM) Forget(callID uint32) {
	vm.executor.ForgetRuntime(callID)
	vm.mu.Lock()
	checkpoint, ok := vm.checkpoints[callID]
	delete(vm.checkpoints, callID)
	vm.mu.Unlock()
	if ok {
		vm.rollback(checkpoint, callID)
	}
}

// GetStorage returns the value under key, pending writes included. A missing key is nil.
func (vm *VM) GetStorage(key []byte) ([]byte, error) {
	return vm.store.Get(key)
}

// settle keeps the checkpoint of a call that parked and rolls back a call that failed.
func (vm *VM) settle(checkpoint int, res types.ExecutionResult) {
	vm.mu.Lock()
	// runtimes resumed by a root contract's _resume leave the registry without passing here
	for id := range vm.checkpoints {
		if !vm.executor.IsParked(id) {
			delete(vm.checkpoints, id)
		}
	}
	if res.ExitCode.IsCallID() {
		vm.checkpoints[uint32(res.ExitCode)] = checkpoint
		vm.mu.Unlock()
		return
	}
	vm.mu.Unlock()
	if !res.ExitCode.IsOk() {
		vm.rollback(checkpoint, 0)
	}
}

func (vm *VM) rollback(checkpoint int, callID uint32) {
	if err := vm.store.Rollback(checkpoint); err != nil {
		vm.logger.Error().Err(err).Int("checkpoint", checkpoint).Uint32("call_id", callID).Msg("rolling back failed call")
	}
}

// ResetCallIDs restarts call id numbering, typically once per block.
func (vm *VM) ResetCallIDs() { vm.executor.ResetCallIDCounter() }

// StorageRoot returns the root over committed and pending storage.
func (vm *VM) StorageRoot() (types.B256, error) {
	return vm.store.ComputeRoot()
}

// Commit computes the storage root and writes pending changes to the backend.
func (vm *VM) Commit() (types.B256, error) {
	root, err := vm.store.ComputeRoot()
	if err != nil {
		return types.B256{}, err
	}
	pending := vm.store.Pending()
	if err := vm.store.Commit(); err != nil {
		return types.B256{}, err
	}
	// committed writes are final; parked calls can only undo what they write from now on
	vm.mu.Lock()
	for id := range vm.checkpoints {
		vm.checkpoints[id] = 0
	}
	vm.mu.Unlock()
	vm.logger.Info().Stringer("root", root).Int("changes", pending).Msg("storage committed")
	return root, nil
}

func toRuntimeResult(res types.ExecutionResult) types.RuntimeResult {
	if res.ExitCode.IsCallID() {
		return types.RuntimeResult{Interruption: &types.ExecutionInterruption{
			CallID:       uint32(res.ExitCode),
			FuelConsumed: res.FuelConsumed,
			FuelRefunded: res.FuelRefunded,
			Output:       res.Output,
		}}
	}
	return types.RuntimeResult{Result: &res}
}
