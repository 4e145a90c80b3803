package memory

import (
	"fmt"

	"github.com/rwasm-go/rwasmvm/internal/runtime/constants"
	rterrors "github.com/rwasm-go/rwasmvm/internal/runtime/error"
)

// PageSize is the size of one linear memory page.
const PageSize = constants.WasmPageSize

// Memory is a bounds-checked, page-granular linear memory. Read and Write either
// apply completely or leave memory untouched.
type Memory interface {
	Read(offset uint32, buf []byte) error
	Write(offset uint32, data []byte) error
	// Grow adds pages and returns the new total page count.
	Grow(additional uint32) (uint32, error)
	Pages() uint32
	Size() uint64
}

// Limiter gets the first look at every allocation and growth, in bytes. Returning false
// refuses the request; returning an error aborts execution with GrowthOperationLimited.
type Limiter interface {
	MemoryGrowing(current, desired, maximum uint64) (bool, error)
}

// PageLimiter refuses any memory larger than MaxPages.
type PageLimiter struct {
	MaxPages uint32
}

func (l PageLimiter) MemoryGrowing(_, desired, _ uint64) (bool, error) {
	return desired <= uint64(l.MaxPages)*PageSize, nil
}

// Linear is a Memory backed by a Go byte slice that only grows forward.
type Linear struct {
	buf      []byte
	pages    uint32
	maxPages uint32
	limiter  Limiter
}

var _ Memory = (*Linear)(nil)

// NewLinear allocates initial zeroed pages. maximum is clamped to the 32-bit address space.
func NewLinear(initial, maximum uint32, limiter Limiter) (*Linear, error) {
	if maximum > constants.MaxWasmPages {
		maximum = constants.MaxWasmPages
	}
	if initial > maximum {
		return nil, ErrInitialExceedsMaximum
	}
	m := &Linear{maxPages: maximum, limiter: limiter}
	if err := m.admit(0, uint64(initial)); err != nil {
		return nil, err
	}
	m.buf = make([]byte, uint64(initial)*PageSize)
	m.pages = initial
	return m, nil
}

func (m *Linear) admit(current, desired uint64) error {
	if m.limiter == nil {
		return nil
	}
	ok, err := m.limiter.MemoryGrowing(current*PageSize, desired*PageSize, uint64(m.maxPages)*PageSize)
	if err != nil {
		return fmt.Errorf("%w: %w", rterrors.TrapGrowthOperationLimited, err)
	}
	if !ok {
		return ErrGrowthVetoed
	}
	return nil
}

func (m *Linear) inBounds(offset uint32, length int) bool {
	return uint64(offset)+uint64(length) <= uint64(len(m.buf))
}

func (m *Linear) Read(offset uint32, buf []byte) error {
	if !m.inBounds(offset, len(buf)) {
		return ErrInvalidMemoryAccess
	}
	copy(buf, m.buf[offset:])
	return nil
}

func (m *Linear) Write(offset uint32, data []byte) error {
	if !m.inBounds(offset, len(data)) {
		return ErrInvalidMemoryAccess
	}
	copy(m.buf[offset:], data)
	return nil
}

func (m *Linear) Grow(additional uint32) (uint32, error) {
	if additional == 0 {
		return m.pages, nil
	}
	desired := uint64(m.pages) + uint64(additional)
	if desired > uint64(m.maxPages) {
		return m.pages, ErrGrowthExceedsMaximum
	}
	if err := m.admit(uint64(m.pages), desired); err != nil {
		return m.pages, err
	}
	m.buf = append(m.buf, make([]byte, uint64(additional)*PageSize)...)
	m.pages = uint32(desired)
	return m.pages, nil
}

func (m *Linear) Pages() uint32 { return m.pages }

func (m *Linear) Size() uint64 { return uint64(len(m.buf)) }

// MaxPages returns the page count the memory may grow to.
func (m *Linear) MaxPages() uint32 { return m.maxPages }

// Fill sets length bytes at offset to value.
func (m *Linear) Fill(offset uint32, value byte, length uint32) error {
	if !m.inBounds(offset, int(length)) {
		return ErrInvalidMemoryAccess
	}
	region := m.buf[offset : uint64(offset)+uint64(length)]
	for i := range region {
		region[i] = value
	}
	return nil
}

// Copy moves length bytes from src to dst; the regions may overlap.
func (m *Linear) Copy(dst, src, length uint32) error {
	if !m.inBounds(dst, int(length)) || !m.inBounds(src, int(length)) {
		return ErrInvalidMemoryAccess
	}
	copy(m.buf[dst:uint64(dst)+uint64(length)], m.buf[src:uint64(src)+uint64(length)])
	return nil
}
