package crypto

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"
	"math/big"

	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

const (
	SECP256K1_RECOVER_CODE_OK      uint32 = 0
	SECP256K1_RECOVER_CODE_INVALID uint32 = 1

	SECP256R1_VERIFY_CODE_VALID   uint32 = 0
	SECP256R1_VERIFY_CODE_INVALID uint32 = 1
)

// Secp256k1Recover recovers the uncompressed public key that signed digest.
// signature is r||s and recid is 0..3.
func Secp256k1Recover(digest []byte, signature []byte, recid byte) ([65]byte, error) {
	var out [65]byte
	if len(digest) != 32 {
		return out, fmt.Errorf("%w: digest must be 32 bytes, got %d", ErrInvalidLength, len(digest))
	}
	if len(signature) != 64 {
		return out, fmt.Errorf("%w: signature must be 64 bytes, got %d", ErrInvalidLength, len(signature))
	}
	if recid > 3 {
		return out, fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, recid)
	}
	compact := make([]byte, 65)
	compact[0] = 27 + recid
	copy(compact[1:], signature)

	pub, _, err := secpecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	copy(out[:], pub.SerializeUncompressed())
	return out, nil
}

// Secp256r1Verify verifies a P-256 ECDSA signature.
// digest is the message hash, signature is r||s and pubkey is the 65-byte uncompressed key.
func Secp256r1Verify(digest, signature, pubkey []byte) (bool, error) {
	if len(digest) != 32 {
		return false, fmt.Errorf("%w: digest must be 32 bytes", ErrInvalidLength)
	}
	if len(signature) != 64 {
		return false, fmt.Errorf("%w: signature must be 64 bytes", ErrInvalidLength)
	}
	pk, err := ecdh.P256().NewPublicKey(pubkey)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidPubkeyFormat, err)
	}
	raw := pk.Bytes()
	pub := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(raw[1:33]),
		Y:     new(big.Int).SetBytes(raw[33:]),
	}
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:])
	return ecdsa.Verify(pub, digest, r, s), nil
}
