package memory

import (
	"errors"
	"fmt"

	rterrors "github.com/rwasm-go/rwasmvm/internal/runtime/error"
)

var (
	// ErrInvalidMemoryAccess is returned when trying to access invalid memory regions
	ErrInvalidMemoryAccess = fmt.Errorf("invalid memory access: %w", rterrors.TrapMemoryOutOfBounds)
	// ErrGrowthExceedsMaximum is returned when a grow would pass the maximum page count
	ErrGrowthExceedsMaximum = errors.New("memory growth exceeds maximum pages")
	// ErrGrowthVetoed is returned when the resource limiter refuses a growth
	ErrGrowthVetoed = errors.New("memory growth vetoed by resource limiter")
	// ErrInitialExceedsMaximum is returned for a memory type whose initial size is above its maximum
	ErrInitialExceedsMaximum = errors.New("initial memory pages exceed maximum")
)
