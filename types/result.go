package types

// ExecutionResult is the terminal outcome of one invocation segment.
type ExecutionResult struct {
	ExitCode     ExitCode `json:"exit_code"`
	FuelConsumed uint64   `json:"fuel_consumed"`
	FuelRefunded int64    `json:"fuel_refunded"`
	Output       []byte   `json:"output"`
	ReturnData   []byte   `json:"return_data"`
}

// TakeAndContinue moves the result out, leaving r empty. When the runtime stays alive
// (interrupted), output and return data stay with r so execution can keep appending.
func (r *ExecutionResult) TakeAndContinue(interrupted bool) ExecutionResult {
	taken := *r
	*r = ExecutionResult{}
	if interrupted {
		r.Output, taken.Output = taken.Output, nil
		r.ReturnData, taken.ReturnData = taken.ReturnData, nil
	}
	return taken
}

// ExecutionInterruption describes a runtime that suspended and must be resumed by the host.
// Output carries the encoded SyscallInvocationParams of the pending request.
type ExecutionInterruption struct {
	// CallID names the parked runtime when the host resumes it.
	CallID       uint32 `json:"call_id"`
	FuelConsumed uint64 `json:"fuel_consumed"`
	FuelRefunded int64  `json:"fuel_refunded"`
	Output       []byte `json:"output"`
}

// RuntimeResult is either a terminal Result or an Interruption. Exactly one field is set.
type RuntimeResult struct {
	Result       *ExecutionResult
	Interruption *ExecutionInterruption
}

// Interrupted reports whether the runtime suspended.
func (r RuntimeResult) Interrupted() bool { return r.Interruption != nil }

// IntoExecutionResult returns the terminal result. It panics when the runtime was interrupted.
func (r RuntimeResult) IntoExecutionResult() ExecutionResult {
	if r.Result == nil {
		panic("runtime result is an interruption")
	}
	return *r.Result
}
