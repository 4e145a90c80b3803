package crypto

import "errors"

var (
	// ErrInvalidLength is returned when an operand does not have its fixed size
	ErrInvalidLength = errors.New("invalid operand length")
	// ErrInvalidPoint is returned for coordinates that are not canonical or not on the curve
	ErrInvalidPoint = errors.New("invalid curve point")
	// ErrInvalidSignature is returned when a signature cannot be parsed or recovered
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrInvalidPubkeyFormat is returned when a public key has an invalid format
	ErrInvalidPubkeyFormat = errors.New("invalid public key format")
)
