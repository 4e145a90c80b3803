package crypto

import (
	"fmt"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/holiman/uint256"
)

// Affine points travel as big-endian X||Y with the point at infinity encoded as all zeroes.
const (
	bn254CoordLen    = 32
	bls12381CoordLen = 48
)

func decodeBn254(p []byte) (bn254.G1Affine, error) {
	var pt bn254.G1Affine
	if len(p) != 2*bn254CoordLen {
		return pt, fmt.Errorf("%w: bn254 point must be %d bytes", ErrInvalidLength, 2*bn254CoordLen)
	}
	if err := pt.X.SetBytesCanonical(p[:bn254CoordLen]); err != nil {
		return pt, fmt.Errorf("%w: %w", ErrInvalidPoint, err)
	}
	if err := pt.Y.SetBytesCanonical(p[bn254CoordLen:]); err != nil {
		return pt, fmt.Errorf("%w: %w", ErrInvalidPoint, err)
	}
	if !pt.IsInfinity() && !pt.IsOnCurve() {
		return pt, ErrInvalidPoint
	}
	return pt, nil
}

func encodeBn254(pt *bn254.G1Affine) []byte {
	out := make([]byte, 0, 2*bn254CoordLen)
	x, y := pt.X.Bytes(), pt.Y.Bytes()
	out = append(out, x[:]...)
	return append(out, y[:]...)
}

// Bn254Add returns p+q on the BN254 G1 curve.
func Bn254Add(p, q []byte) ([]byte, error) {
	a, err := decodeBn254(p)
	if err != nil {
		return nil, err
	}
	b, err := decodeBn254(q)
	if err != nil {
		return nil, err
	}
	var r bn254.G1Affine
	r.Add(&a, &b)
	return encodeBn254(&r), nil
}

// Bn254Double returns 2p on the BN254 G1 curve.
func Bn254Double(p []byte) ([]byte, error) {
	a, err := decodeBn254(p)
	if err != nil {
		return nil, err
	}
	var r bn254.G1Affine
	r.Double(&a)
	return encodeBn254(&r), nil
}

func decodeBls12381(p []byte) (bls12381.G1Affine, error) {
	var pt bls12381.G1Affine
	if len(p) != 2*bls12381CoordLen {
		return pt, fmt.Errorf("%w: bls12-381 point must be %d bytes", ErrInvalidLength, 2*bls12381CoordLen)
	}
	if err := pt.X.SetBytesCanonical(p[:bls12381CoordLen]); err != nil {
		return pt, fmt.Errorf("%w: %w", ErrInvalidPoint, err)
	}
	if err := pt.Y.SetBytesCanonical(p[bls12381CoordLen:]); err != nil {
		return pt, fmt.Errorf("%w: %w", ErrInvalidPoint, err)
	}
	if !pt.IsInfinity() && !pt.IsOnCurve() {
		return pt, ErrInvalidPoint
	}
	return pt, nil
}

func encodeBls12381(pt *bls12381.G1Affine) []byte {
	out := make([]byte, 0, 2*bls12381CoordLen)
	x, y := pt.X.Bytes(), pt.Y.Bytes()
	out = append(out, x[:]...)
	return append(out, y[:]...)
}

// Bls12381G1Add returns p+q on the BLS12-381 G1 curve.
func Bls12381G1Add(p, q []byte) ([]byte, error) {
	a, err := decodeBls12381(p)
	if err != nil {
		return nil, err
	}
	b, err := decodeBls12381(q)
	if err != nil {
		return nil, err
	}
	var r bls12381.G1Affine
	r.Add(&a, &b)
	return encodeBls12381(&r), nil
}

// Uint256MulMod returns x*y mod m over 32-byte big-endian words. A zero modulus yields zero.
func Uint256MulMod(x, y, m []byte) ([32]byte, error) {
	if len(x) != 32 || len(y) != 32 || len(m) != 32 {
		return [32]byte{}, fmt.Errorf("%w: uint256 operands must be 32 bytes", ErrInvalidLength)
	}
	var a, b, mod uint256.Int
	a.SetBytes32(x)
	b.SetBytes32(y)
	mod.SetBytes32(m)
	return new(uint256.Int).MulMod(&a, &b, &mod).Bytes32(), nil
}
