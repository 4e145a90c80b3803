package host

import (
	"github.com/rs/zerolog"

	"github.com/rwasm-go/rwasmvm/internal/runtime/fuel"
	"github.com/rwasm-go/rwasmvm/types"
)

// Storage is the journaled key/value store a context reads and writes through the
// storage syscalls. A nil value from Get means the key is absent.
type Storage interface {
	Get(key []byte) ([]byte, error)
	Update(key, value []byte) error
	Remove(key []byte) error
	Checkpoint() int
	Rollback(checkpoint int) error
}

// PreimageResolver returns the bytecode stored under a code hash.
type PreimageResolver interface {
	Preimage(hash types.B256) ([]byte, bool)
}

// Context is the per-invocation state of one contract run. It is owned by exactly one
// runtime; nested calls get their own Context.
type Context struct {
	Bytecode    types.BytecodeOrHash
	Input       []byte
	FuelLimit   uint64
	DisableFuel bool
	CallDepth   uint32
	State       uint32
	Result      types.ExecutionResult

	// MaxOutputSize caps Result.Output.
	MaxOutputSize uint32
	// Debug enables the _debug_log syscall.
	Debug     bool
	Logger    zerolog.Logger
	Storage   Storage
	Preimages PreimageResolver

	meter        *fuel.DefaultMeter
	interruption *InterruptionRequest
}

// NewContext returns a context with default limits and a no-op logger.
func NewContext() *Context {
	return &Context{
		MaxOutputSize: types.DefaultVMConfig().Limits.MaxOutputSize,
		Logger:        zerolog.Nop(),
	}
}

func (c *Context) WithBytecode(code types.BytecodeOrHash) *Context {
	c.Bytecode = code
	return c
}

func (c *Context) WithInput(input []byte) *Context {
	c.Input = input
	return c
}

func (c *Context) WithFuelLimit(limit uint64) *Context {
	c.FuelLimit = limit
	return c
}

func (c *Context) WithCallDepth(depth uint32) *Context {
	c.CallDepth = depth
	return c
}

func (c *Context) WithState(state uint32) *Context {
	c.State = state
	return c
}

func (c *Context) WithDisableFuel(disable bool) *Context {
	c.DisableFuel = disable
	return c
}

func (c *Context) WithStorage(s Storage) *Context {
	c.Storage = s
	return c
}

func (c *Context) WithPreimages(p PreimageResolver) *Context {
	c.Preimages = p
	return c
}

func (c *Context) WithLogger(l zerolog.Logger) *Context {
	c.Logger = l
	return c
}

func (c *Context) WithDebug(debug bool) *Context {
	c.Debug = debug
	return c
}

func (c *Context) WithMaxOutputSize(n uint32) *Context {
	c.MaxOutputSize = n
	return c
}

// IsRoot reports whether the context runs at call depth zero.
func (c *Context) IsRoot() bool { return c.CallDepth == 0 }

// ResetFuel starts a fresh meter with limit. Fuel already charged is discarded.
func (c *Context) ResetFuel(limit uint64) {
	c.FuelLimit = limit
	c.meter = fuel.NewDefaultMeter(limit, c.DisableFuel)
}

// Meter returns the fuel meter, created from FuelLimit on first use.
func (c *Context) Meter() *fuel.DefaultMeter {
	if c.meter == nil {
		c.ResetFuel(c.FuelLimit)
	}
	return c.meter
}

func (c *Context) TryConsumeFuel(amount uint64) error {
	return c.Meter().TryConsume(amount)
}

func (c *Context) RefundFuel(amount int64) {
	c.Meter().Refund(amount)
}

// RemainingFuel returns the remaining budget and false when metering is disabled.
func (c *Context) RemainingFuel() (uint64, bool) {
	m := c.Meter()
	if m.Disabled() {
		return 0, false
	}
	return m.Remaining(), true
}

// ExitCode reads back the terminal result.
func (c *Context) ExitCode() types.ExitCode { return c.Result.ExitCode }

// SetInterruption parks req. A context holds at most one pending request.
func (c *Context) SetInterruption(req *InterruptionRequest) {
	if c.interruption != nil {
		panic("host: interruption already pending")
	}
	c.interruption = req
}

// PendingInterruption returns the parked request without consuming it.
func (c *Context) PendingInterruption() *InterruptionRequest { return c.interruption }

// TakeInterruption consumes the parked request.
func (c *Context) TakeInterruption() *InterruptionRequest {
	req := c.interruption
	c.interruption = nil
	return req
}
