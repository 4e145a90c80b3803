package types

import "fmt"

// ExitCode is the signed status an invocation halts with. Zero is success, negative values
// come from a closed taxonomy shared by the interpreter, the syscalls and the host, and
// positive values are call ids of parked (interrupted) runtimes.
type ExitCode int32

// Control-flow codes.
const (
	ExitCodeOk    ExitCode = 0
	ExitCodePanic ExitCode = -1
	ExitCodeErr   ExitCode = -2
)

// Runtime-policy codes.
const (
	ExitCodeRootCallOnly           ExitCode = -1002
	ExitCodeMalformedBuiltinParams ExitCode = -1003
	ExitCodeCallDepthOverflow      ExitCode = -1004
	ExitCodeNonNegativeExitCode    ExitCode = -1005
	ExitCodeUnknownError           ExitCode = -1006
	ExitCodeInputOutputOutOfBounds ExitCode = -1007
	ExitCodePrecompileError        ExitCode = -1008
	ExitCodeOutputOverflow         ExitCode = -1009
)

// Trap-derived codes, one per interpreter trap.
const (
	ExitCodeUnreachableCodeReached ExitCode = -2001
	ExitCodeMemoryOutOfBounds      ExitCode = -2002
	ExitCodeTableOutOfBounds       ExitCode = -2003
	ExitCodeIndirectCallToNull     ExitCode = -2004
	ExitCodeIntegerDivisionByZero  ExitCode = -2005
	ExitCodeIntegerOverflow        ExitCode = -2006
	ExitCodeBadConversionToInteger ExitCode = -2007
	ExitCodeStackOverflow          ExitCode = -2008
	ExitCodeBadSignature           ExitCode = -2009
	ExitCodeOutOfFuel              ExitCode = -2010
	ExitCodeGrowthOperationLimited ExitCode = -2011
	ExitCodeUnresolvedFunction     ExitCode = -2013
)

var exitCodeNames = map[ExitCode]string{
	ExitCodeOk:                     "Ok",
	ExitCodePanic:                  "Panic",
	ExitCodeErr:                    "Err",
	ExitCodeRootCallOnly:           "RootCallOnly",
	ExitCodeMalformedBuiltinParams: "MalformedBuiltinParams",
	ExitCodeCallDepthOverflow:      "CallDepthOverflow",
	ExitCodeNonNegativeExitCode:    "NonNegativeExitCode",
	ExitCodeUnknownError:           "UnknownError",
	ExitCodeInputOutputOutOfBounds: "InputOutputOutOfBounds",
	ExitCodePrecompileError:        "PrecompileError",
	ExitCodeOutputOverflow:         "OutputOverflow",
	ExitCodeUnreachableCodeReached: "UnreachableCodeReached",
	ExitCodeMemoryOutOfBounds:      "MemoryOutOfBounds",
	ExitCodeTableOutOfBounds:       "TableOutOfBounds",
	ExitCodeIndirectCallToNull:     "IndirectCallToNull",
	ExitCodeIntegerDivisionByZero:  "IntegerDivisionByZero",
	ExitCodeIntegerOverflow:        "IntegerOverflow",
	ExitCodeBadConversionToInteger: "BadConversionToInteger",
	ExitCodeStackOverflow:          "StackOverflow",
	ExitCodeBadSignature:           "BadSignature",
	ExitCodeOutOfFuel:              "OutOfFuel",
	ExitCodeGrowthOperationLimited: "GrowthOperationLimited",
	ExitCodeUnresolvedFunction:     "UnresolvedFunction",
}

// KnownExitCodes returns every code of the closed taxonomy.
func KnownExitCodes() []ExitCode {
	codes := make([]ExitCode, 0, len(exitCodeNames))
	for code := range exitCodeNames {
		codes = append(codes, code)
	}
	return codes
}

func (c ExitCode) String() string {
	if name, ok := exitCodeNames[c]; ok {
		return name
	}
	if c > 0 {
		return fmt.Sprintf("CallId(%d)", int32(c))
	}
	return fmt.Sprintf("ExitCode(%d)", int32(c))
}

// IsOk reports whether c is the success code.
func (c ExitCode) IsOk() bool { return c == ExitCodeOk }

// IsError reports whether c is a failure code.
func (c ExitCode) IsError() bool { return c < 0 }

// IsCallID reports whether c identifies a parked runtime rather than a terminal status.
func (c ExitCode) IsCallID() bool { return c > 0 }

// IsKnown reports whether c belongs to the taxonomy.
func (c ExitCode) IsKnown() bool {
	_, ok := exitCodeNames[c]
	return ok
}

// Int32 returns the wire value.
func (c ExitCode) Int32() int32 { return int32(c) }
