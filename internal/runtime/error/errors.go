package error

import (
	"errors"
	"fmt"

	"github.com/rwasm-go/rwasmvm/types"
)

// TrapCode is an interpreter trap. Every trap maps to exactly one exit code.
type TrapCode uint8

const (
	TrapUnreachableCodeReached TrapCode = iota + 1
	TrapMemoryOutOfBounds
	TrapTableOutOfBounds
	TrapIndirectCallToNull
	TrapIntegerDivisionByZero
	TrapIntegerOverflow
	TrapBadConversionToInteger
	TrapStackOverflow
	TrapBadSignature
	TrapOutOfFuel
	TrapGrowthOperationLimited
	TrapUnresolvedFunction
)

var trapExitCodes = map[TrapCode]types.ExitCode{
	TrapUnreachableCodeReached: types.ExitCodeUnreachableCodeReached,
	TrapMemoryOutOfBounds:      types.ExitCodeMemoryOutOfBounds,
	TrapTableOutOfBounds:       types.ExitCodeTableOutOfBounds,
	TrapIndirectCallToNull:     types.ExitCodeIndirectCallToNull,
	TrapIntegerDivisionByZero:  types.ExitCodeIntegerDivisionByZero,
	TrapIntegerOverflow:        types.ExitCodeIntegerOverflow,
	TrapBadConversionToInteger: types.ExitCodeBadConversionToInteger,
	TrapStackOverflow:          types.ExitCodeStackOverflow,
	TrapBadSignature:           types.ExitCodeBadSignature,
	TrapOutOfFuel:              types.ExitCodeOutOfFuel,
	TrapGrowthOperationLimited: types.ExitCodeGrowthOperationLimited,
	TrapUnresolvedFunction:     types.ExitCodeUnresolvedFunction,
}

// AllTrapCodes lists every trap kind.
func AllTrapCodes() []TrapCode {
	codes := make([]TrapCode, 0, len(trapExitCodes))
	for c := TrapUnreachableCodeReached; c <= TrapUnresolvedFunction; c++ {
		codes = append(codes, c)
	}
	return codes
}

func (c TrapCode) Error() string {
	if code, ok := trapExitCodes[c]; ok {
		return "trap: " + code.String()
	}
	return fmt.Sprintf("trap: unknown(%d)", uint8(c))
}

// ExitCode returns the exit code the trap halts with.
func (c TrapCode) ExitCode() types.ExitCode {
	if code, ok := trapExitCodes[c]; ok {
		return code
	}
	return types.ExitCodeUnknownError
}

// TrapFromExitCode is the inverse of TrapCode.ExitCode.
func TrapFromExitCode(code types.ExitCode) (TrapCode, bool) {
	for trap, c := range trapExitCodes {
		if c == code {
			return trap, true
		}
	}
	return 0, false
}

var (
	// ErrInterruptionCalled is returned by a syscall that parked an interruption request.
	// It suspends the engine and is never a failure.
	ErrInterruptionCalled = errors.New("interruption called")
	// ErrExecutionHalted is returned by a syscall that stored an exit code in the context
	// and stops execution.
	ErrExecutionHalted = errors.New("execution halted")
)

// FuelError is returned when a charge does not fit into the remaining budget.
type FuelError struct {
	Wanted    uint64
	Available uint64
}

func (e *FuelError) Error() string {
	return fmt.Sprintf("insufficient fuel: required %d, but only %d available", e.Wanted, e.Available)
}

// Is makes errors.Is(err, TrapOutOfFuel) hold.
func (e *FuelError) Is(target error) bool {
	return target == TrapOutOfFuel
}

// ExitError carries a policy exit code out of a syscall handler.
type ExitError struct {
	Code types.ExitCode
}

func (e *ExitError) Error() string {
	return "exit: " + e.Code.String()
}

// Exit returns an error that halts execution with code.
func Exit(code types.ExitCode) error {
	return &ExitError{Code: code}
}

// ExitCodeOf classifies err into the exit code taxonomy. A nil error is Ok.
func ExitCodeOf(err error) types.ExitCode {
	if err == nil {
		return types.ExitCodeOk
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var fuelErr *FuelError
	if errors.As(err, &fuelErr) {
		return types.ExitCodeOutOfFuel
	}
	var trap TrapCode
	if errors.As(err, &trap) {
		return trap.ExitCode()
	}
	return types.ExitCodeUnknownError
}
