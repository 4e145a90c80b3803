package memory

import (
	"github.com/tetratelabs/wazero/api"
)

// WazeroMemory adapts the memory of an instantiated wazero module.
type WazeroMemory struct {
	mem api.Memory
}

var _ Memory = (*WazeroMemory)(nil)

// NewWazeroMemory wraps mem; a nil mem behaves as a zero-page memory.
func NewWazeroMemory(mem api.Memory) *WazeroMemory {
	return &WazeroMemory{mem: mem}
}

func (w *WazeroMemory) Read(offset uint32, buf []byte) error {
	if uint64(offset)+uint64(len(buf)) > w.Size() {
		return ErrInvalidMemoryAccess
	}
	if len(buf) == 0 {
		return nil
	}
	view, ok := w.mem.Read(offset, uint32(len(buf)))
	if !ok {
		return ErrInvalidMemoryAccess
	}
	copy(buf, view)
	return nil
}

func (w *WazeroMemory) Write(offset uint32, data []byte) error {
	if uint64(offset)+uint64(len(data)) > w.Size() {
		return ErrInvalidMemoryAccess
	}
	if len(data) == 0 {
		return nil
	}
	if !w.mem.Write(offset, data) {
		return ErrInvalidMemoryAccess
	}
	return nil
}

func (w *WazeroMemory) Grow(additional uint32) (uint32, error) {
	if w.mem == nil {
		return 0, ErrGrowthExceedsMaximum
	}
	if additional == 0 {
		return w.Pages(), nil
	}
	previous, ok := w.mem.Grow(additional)
	if !ok {
		return w.Pages(), ErrGrowthExceedsMaximum
	}
	return previous + additional, nil
}

func (w *WazeroMemory) Pages() uint32 {
	return uint32(w.Size() / PageSize)
}

func (w *WazeroMemory) Size() uint64 {
	if w.mem == nil {
		return 0
	}
	return uint64(w.mem.Size())
}
