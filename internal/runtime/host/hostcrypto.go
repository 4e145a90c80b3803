package host

import (
	"encoding/binary"

	"github.com/rwasm-go/rwasmvm/internal/runtime/constants"
	"github.com/rwasm-go/rwasmvm/internal/runtime/crypto"
	rterrors "github.com/rwasm-go/rwasmvm/internal/runtime/error"
	"github.com/rwasm-go/rwasmvm/internal/runtime/rwasm"
	"github.com/rwasm-go/rwasmvm/types"
)

func errMalformed() error {
	return rterrors.Exit(types.ExitCodeMalformedBuiltinParams)
}

func hostKeccak256(c *Caller, params, _ []rwasm.Value) error {
	data, err := c.Memory.ReadBytes(params[0].U32(), params[1].U32())
	if err != nil {
		return err
	}
	digest := crypto.Keccak256(data)
	return c.Memory.WriteBytes(params[2].U32(), digest[:])
}

func hostSha256(c *Caller, params, _ []rwasm.Value) error {
	data, err := c.Memory.ReadBytes(params[0].U32(), params[1].U32())
	if err != nil {
		return err
	}
	digest := crypto.Sha256(data)
	return c.Memory.WriteBytes(params[2].U32(), digest[:])
}

// hostSha256Compress updates the state words (little-endian u32s) at params[0] with the
// 64-byte block at params[1].
func hostSha256Compress(c *Caller, params, _ []rwasm.Value) error {
	statePtr, blockPtr := params[0].U32(), params[1].U32()
	raw, err := c.Memory.ReadBytes(statePtr, constants.Sha256StateLen)
	if err != nil {
		return err
	}
	blockBytes, err := c.Memory.ReadBytes(blockPtr, constants.Sha256BlockLen)
	if err != nil {
		return err
	}
	var state [8]uint32
	for i := range state {
		state[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	crypto.Sha256Compress(&state, (*[64]byte)(blockBytes))
	for i, w := range state {
		binary.LittleEndian.PutUint32(raw[i*4:], w)
	}
	return c.Memory.WriteBytes(statePtr, raw)
}

func hostSecp256k1Recover(c *Caller, params, results []rwasm.Value) error {
	digest, err := c.Memory.ReadBytes(params[0].U32(), constants.HashLen)
	if err != nil {
		return err
	}
	sig, err := c.Memory.ReadBytes(params[1].U32(), constants.Secp256k1SignatureLen)
	if err != nil {
		return err
	}
	outPtr := params[2].U32()
	if err := c.Memory.CheckRange(outPtr, constants.Secp256k1PubkeyLen); err != nil {
		return err
	}
	recid := params[3].U32()
	if recid > 3 {
		results[0] = rwasm.U32(crypto.SECP256K1_RECOVER_CODE_INVALID)
		return nil
	}
	pub, err := crypto.Secp256k1Recover(digest, sig, byte(recid))
	if err != nil {
		results[0] = rwasm.U32(crypto.SECP256K1_RECOVER_CODE_INVALID)
		return nil
	}
	results[0] = rwasm.U32(crypto.SECP256K1_RECOVER_CODE_OK)
	return c.Memory.WriteBytes(outPtr, pub[:])
}

func hostSecp256r1Verify(c *Caller, params, results []rwasm.Value) error {
	digest, err := c.Memory.ReadBytes(params[0].U32(), constants.HashLen)
	if err != nil {
		return err
	}
	sig, err := c.Memory.ReadBytes(params[1].U32(), constants.Secp256k1SignatureLen)
	if err != nil {
		return err
	}
	pubkey, err := c.Memory.ReadBytes(params[2].U32(), constants.Secp256k1PubkeyLen)
	if err != nil {
		return err
	}
	ok, err := crypto.Secp256r1Verify(digest, sig, pubkey)
	if err != nil || !ok {
		results[0] = rwasm.U32(crypto.SECP256R1_VERIFY_CODE_INVALID)
		return nil
	}
	results[0] = rwasm.U32(crypto.SECP256R1_VERIFY_CODE_VALID)
	return nil
}

// curveBinary reads two points of size n, combines them and writes the result over the
// first one.
func curveBinary(c *Caller, params []rwasm.Value, n uint32, op func(p, q []byte) ([]byte, error)) error {
	pPtr, qPtr := params[0].U32(), params[1].U32()
	p, err := c.Memory.ReadBytes(pPtr, n)
	if err != nil {
		return err
	}
	q, err := c.Memory.ReadBytes(qPtr, n)
	if err != nil {
		return err
	}
	r, err := op(p, q)
	if err != nil {
		return errMalformed()
	}
	return c.Memory.WriteBytes(pPtr, r)
}

func hostBn254Add(c *Caller, params, _ []rwasm.Value) error {
	return curveBinary(c, params, constants.Bn254G1PointLen, crypto.Bn254Add)
}

func hostBn254Double(c *Caller, params, _ []rwasm.Value) error {
	ptr := params[0].U32()
	p, err := c.Memory.ReadBytes(ptr, constants.Bn254G1PointLen)
	if err != nil {
		return err
	}
	r, err := crypto.Bn254Double(p)
	if err != nil {
		return errMalformed()
	}
	return c.Memory.WriteBytes(ptr, r)
}

func hostBls12381G1Add(c *Caller, params, _ []rwasm.Value) error {
	return curveBinary(c, params, constants.Bls12381G1PointLen, crypto.Bls12381G1Add)
}

func hostUint256MulMod(c *Caller, params, _ []rwasm.Value) error {
	xPtr := params[0].U32()
	x, err := c.Memory.ReadBytes(xPtr, constants.Uint256Len)
	if err != nil {
		return err
	}
	y, err := c.Memory.ReadBytes(params[1].U32(), constants.Uint256Len)
	if err != nil {
		return err
	}
	m, err := c.Memory.ReadBytes(params[2].U32(), constants.Uint256Len)
	if err != nil {
		return err
	}
	r, err := crypto.Uint256MulMod(x, y, m)
	if err != nil {
		return errMalformed()
	}
	return c.Memory.WriteBytes(xPtr, r[:])
}
