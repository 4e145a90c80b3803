package host

import (
	"fmt"

	rterrors "github.com/rwasm-go/rwasmvm/internal/runtime/error"
	"github.com/rwasm-go/rwasmvm/internal/runtime/memory"
	"github.com/rwasm-go/rwasmvm/internal/runtime/rwasm"
)

// Dispatcher routes syscalls of one context to the table's handlers.
type Dispatcher struct {
	table *SyscallTable
	ctx   *Context
}

var _ rwasm.SyscallHandler = (*Dispatcher)(nil)

func NewDispatcher(table *SyscallTable, ctx *Context) *Dispatcher {
	return &Dispatcher{table: table, ctx: ctx}
}

func (d *Dispatcher) Context() *Context { return d.ctx }

// InvokeSyscall charges the entry's fuel and runs its handler.
func (d *Dispatcher) InvokeSyscall(index uint32, mem memory.Memory, params, results []rwasm.Value) error {
	entry, ok := d.table.Entry(SysFuncIdx(index))
	if !ok {
		return fmt.Errorf("syscall %#x: %w", index, rterrors.TrapUnresolvedFunction)
	}
	if err := d.ctx.TryConsumeFuel(entry.Fuel.Cost(params)); err != nil {
		return err
	}
	return entry.Handler(&Caller{Ctx: d.ctx, Memory: memory.New(mem)}, params, results)
}
