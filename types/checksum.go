package types

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// B256Len is the length of a code hash or storage word in bytes.
const B256Len = 32

// B256 is a 32-byte value: a bytecode hash, a storage key or a storage root.
type B256 [B256Len]byte

func (h B256) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalJSON encodes the hash as a hex string.
func (h B256) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h[:]))
}

// UnmarshalJSON parses a hex-encoded string into a hash.
func (h *B256) UnmarshalJSON(input []byte) error {
	var hexString string
	if err := json.Unmarshal(input, &hexString); err != nil {
		return err
	}
	data, err := hex.DecodeString(hexString)
	if err != nil {
		return err
	}
	if len(data) != B256Len {
		return fmt.Errorf("got %d bytes for hash, want %d", len(data), B256Len)
	}
	copy(h[:], data)
	return nil
}

// IsZero reports whether every byte is zero.
func (h B256) IsZero() bool {
	return h == B256{}
}

// Bytes returns the hash as a byte slice.
func (h B256) Bytes() []byte {
	return h[:]
}

// NewB256 creates a B256 from a byte slice of exactly B256Len bytes.
func NewB256(b []byte) (B256, error) {
	if len(b) != B256Len {
		return B256{}, errors.New("got wrong number of bytes for hash")
	}
	var h B256
	copy(h[:], b)
	return h, nil
}

// ForceNewB256 creates a B256 from a hex string and panics on invalid input.
func ForceNewB256(input string) B256 {
	data, err := hex.DecodeString(input)
	if err != nil {
		panic("could not decode hex bytes")
	}
	h, err := NewB256(data)
	if err != nil {
		panic(err)
	}
	return h
}

// BytecodeOrHash names the code a context executes: either inline bytes or a hash
// resolved lazily by the module factory.
type BytecodeOrHash struct {
	Bytecode []byte
	Hash     B256
	inline   bool
}

// InlineBytecode builds a target from raw bytes. The hash is what the caller computed
// for the bytes and is used as the cache key.
func InlineBytecode(code []byte, hash B256) BytecodeOrHash {
	return BytecodeOrHash{Bytecode: code, Hash: hash, inline: true}
}

// CodeHash builds a target resolved by hash.
func CodeHash(hash B256) BytecodeOrHash {
	return BytecodeOrHash{Hash: hash}
}

// IsInline reports whether the bytes travel with the target.
func (b BytecodeOrHash) IsInline() bool { return b.inline }
