package error

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwasm-go/rwasmvm/types"
)

func TestTrapExitCodeBijection(t *testing.T) {
	seen := make(map[types.ExitCode]TrapCode)
	for _, trap := range AllTrapCodes() {
		code := trap.ExitCode()
		require.True(t, code.IsKnown(), "trap %d maps outside the taxonomy", trap)
		require.True(t, code.IsError())
		if other, dup := seen[code]; dup {
			t.Fatalf("traps %d and %d share exit code %s", other, trap, code)
		}
		seen[code] = trap

		back, ok := TrapFromExitCode(code)
		require.True(t, ok)
		assert.Equal(t, trap, back)
		assert.Equal(t, code, ExitCodeOf(trap))
	}
	assert.Len(t, seen, 12)
}

func TestTrapFromExitCodeRejectsPolicyCodes(t *testing.T) {
	for _, code := range []types.ExitCode{
		types.ExitCodeOk,
		types.ExitCodePanic,
		types.ExitCodeCallDepthOverflow,
		types.ExitCodeOutputOverflow,
	} {
		_, ok := TrapFromExitCode(code)
		assert.False(t, ok, code.String())
	}
}

func TestExitCodeOf(t *testing.T) {
	cases := map[string]struct {
		err  error
		want types.ExitCode
	}{
		"nil":          {nil, types.ExitCodeOk},
		"wrapped trap": {fmt.Errorf("load: %w", TrapMemoryOutOfBounds), types.ExitCodeMemoryOutOfBounds},
		"fuel":         {&FuelError{Wanted: 10, Available: 2}, types.ExitCodeOutOfFuel},
		"exit":         {Exit(types.ExitCodeRootCallOnly), types.ExitCodeRootCallOnly},
		"wrapped exit": {fmt.Errorf("syscall: %w", Exit(types.ExitCodePanic)), types.ExitCodePanic},
		"unknown":      {errors.New("boom"), types.ExitCodeUnknownError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExitCodeOf(tc.err))
		})
	}
}

func TestFuelErrorIsOutOfFuel(t *testing.T) {
	err := fmt.Errorf("charge: %w", &FuelError{Wanted: 5, Available: 1})
	assert.True(t, errors.Is(err, TrapOutOfFuel))
	assert.False(t, errors.Is(err, TrapStackOverflow))
	assert.Contains(t, err.Error(), "required 5, but only 1 available")
}
