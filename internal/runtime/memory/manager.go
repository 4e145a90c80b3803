package memory

import (
	"encoding/binary"
)

// Manager adds typed little-endian accessors on top of a Memory
type Manager struct {
	memory Memory
}

// New creates a new memory manager
func New(memory Memory) *Manager {
	return &Manager{
		memory: memory,
	}
}

// Memory returns the wrapped memory
func (m *Manager) Memory() Memory {
	return m.memory
}

// CheckRange fails when [offset, offset+length) is not addressable
func (m *Manager) CheckRange(offset, length uint32) error {
	if uint64(offset)+uint64(length) > m.memory.Size() {
		return ErrInvalidMemoryAccess
	}
	return nil
}

// ReadBytes reads a byte slice from Wasm memory
func (m *Manager) ReadBytes(offset uint32, length uint32) ([]byte, error) {
	if err := m.CheckRange(offset, length); err != nil {
		return nil, err
	}
	data := make([]byte, length)
	if err := m.memory.Read(offset, data); err != nil {
		return nil, err
	}
	return data, nil
}

// WriteBytes writes a byte slice to Wasm memory
func (m *Manager) WriteBytes(offset uint32, data []byte) error {
	return m.memory.Write(offset, data)
}

// ReadUint64 reads a uint64 from Wasm memory
func (m *Manager) ReadUint64(offset uint32) (uint64, error) {
	data, err := m.ReadBytes(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

// WriteUint64 writes a uint64 to Wasm memory
func (m *Manager) WriteUint64(offset uint32, value uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, value)
	return m.WriteBytes(offset, buf)
}

// ReadString reads a string from Wasm memory
func (m *Manager) ReadString(offset uint32, length uint32) (string, error) {
	data, err := m.ReadBytes(offset, length)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
