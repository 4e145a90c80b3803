package rwasm

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/shamaton/msgpack/v2"
)

// Version is the binary format version written by Encode.
const Version = 0x01

var (
	// Magic prefixes every rWASM binary.
	Magic = []byte{0xEF, 0x52}
	// WasmMagic prefixes standard WebAssembly binaries.
	WasmMagic = []byte{0x00, 0x61, 0x73, 0x6D}

	ErrBadMagic           = errors.New("not an rwasm binary")
	ErrUnsupportedVersion = errors.New("unsupported rwasm version")
)

// IsRwasm reports whether code carries the rWASM magic.
func IsRwasm(code []byte) bool {
	return bytes.HasPrefix(code, Magic)
}

// IsWasm reports whether code is a standard WebAssembly binary.
func IsWasm(code []byte) bool {
	return bytes.HasPrefix(code, WasmMagic)
}

// Encode serializes m into the rWASM binary format.
func Encode(m *Module) ([]byte, error) {
	body, err := msgpack.MarshalAsArray(m)
	if err != nil {
		return nil, fmt.Errorf("encode module: %w", err)
	}
	out := make([]byte, 0, len(Magic)+1+len(body))
	out = append(out, Magic...)
	out = append(out, Version)
	return append(out, body...), nil
}

// Decode parses and validates an rWASM binary. Empty input is the empty module.
func Decode(code []byte) (*Module, error) {
	if len(code) == 0 {
		return EmptyModule(), nil
	}
	if !IsRwasm(code) {
		return nil, ErrBadMagic
	}
	if len(code) < len(Magic)+1 || code[len(Magic)] != Version {
		return nil, ErrUnsupportedVersion
	}
	var m Module
	if err := msgpack.UnmarshalAsArray(code[len(Magic)+1:], &m); err != nil {
		return nil, fmt.Errorf("decode module: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid module: %w", err)
	}
	return &m, nil
}
