package wasm

import (
	"errors"
	"fmt"

	"github.com/rwasm-go/rwasmvm/internal/runtime/constants"
)

var (
	ErrNoEntrypoint    = errors.New("wasm contract exports neither main nor deploy")
	ErrTooManyMemories = errors.New("wasm contract exports more than one memory")
)

// Validate checks the exports a contract needs: at most one memory and at least one of
// the entrypoints, each taking no parameters and returning nothing.
func (m *Module) Validate() error {
	if len(m.compiled.ExportedMemories()) > 1 {
		return ErrTooManyMemories
	}
	exports := m.compiled.ExportedFunctions()
	found := false
	for _, name := range []string{constants.EntrypointMain, constants.EntrypointDeploy} {
		fn, ok := exports[name]
		if !ok {
			continue
		}
		found = true
		if len(fn.ParamTypes()) != 0 || len(fn.ResultTypes()) != 0 {
			return fmt.Errorf("wasm contract entrypoint %q must have type () -> ()", name)
		}
	}
	if !found {
		return ErrNoEntrypoint
	}
	return nil
}
