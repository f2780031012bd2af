package hive

import (
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// maxNonceIterations bounds the RFC6979 retry loop. Each iteration is an
// independent coin flip on the canonical-form checks, so hitting the bound
// in practice means the digest or key is broken, not bad luck.
const maxNonceIterations = 128

// SignDigest produces a 65-byte recoverable compact signature over a 32-byte
// digest in the chain's canonical form: header byte (31 + recovery id,
// compressed), then big-endian R and S.
//
// The chain rejects signatures whose R or S have a high first bit, so a
// single deterministic RFC6979 nonce is not enough; the nonce is re-derived
// with an increasing iteration count until the signature is canonical, the
// same loop the reference signer runs.
func (k *PrivateKey) SignDigest(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, errors.New("signing digest must be 32 bytes")
	}

	privBytes := k.key.Serialize()
	defer zeroBytes(privBytes)

	var e secp256k1.ModNScalar
	e.SetByteSlice(digest)

	for iteration := uint32(0); iteration < maxNonceIterations; iteration++ {
		nonce := secp256k1.NonceRFC6979(privBytes, digest, nil, nil, iteration)
		sig, ok := signWithNonce(&k.key.Key, &e, nonce)
		nonce.Zero()
		if !ok {
			continue
		}
		if isCanonical(sig) {
			return sig, nil
		}
	}
	return nil, errors.New("no canonical signature found")
}

// signWithNonce runs one textbook ECDSA signing round with the supplied
// nonce, returning the compact signature with its recovery header. ok is
// false for the degenerate r == 0 or s == 0 cases, which require a new
// nonce.
func signWithNonce(priv, e, nonce *secp256k1.ModNScalar) ([]byte, bool) {
	var kG secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(nonce, &kG)
	kG.ToAffine()

	// r = x(kG) mod n, remembering whether reduction overflowed since that
	// feeds the recovery id.
	var rBytes [32]byte
	kG.X.PutBytes(&rBytes)
	var r secp256k1.ModNScalar
	overflow := r.SetBytes(&rBytes) != 0
	if r.IsZero() {
		return nil, false
	}

	recoveryID := byte(0)
	if kG.Y.IsOdd() {
		recoveryID |= 1
	}
	if overflow {
		recoveryID |= 2
	}

	// s = k^-1 (e + r*priv) mod n.
	kInv := new(secp256k1.ModNScalar).InverseValNonConst(nonce)
	s := new(secp256k1.ModNScalar).Mul2(priv, &r).Add(e).Mul(kInv)
	if s.IsZero() {
		return nil, false
	}

	// Low-S normalization flips the parity of kG's Y coordinate.
	if s.IsOverHalfOrder() {
		s.Negate()
		recoveryID ^= 1
	}

	sig := make([]byte, 65)
	sig[0] = 27 + 4 + recoveryID // compressed public key
	rOut := r.Bytes()
	sOut := s.Bytes()
	copy(sig[1:33], rOut[:])
	copy(sig[33:65], sOut[:])
	return sig, true
}

// isCanonical applies the chain's canonical-form test to a 65-byte compact
// signature: neither R nor S may be negative or padded when interpreted as
// DER integers.
func isCanonical(sig []byte) bool {
	return sig[1]&0x80 == 0 &&
		!(sig[1] == 0 && sig[2]&0x80 == 0) &&
		sig[33]&0x80 == 0 &&
		!(sig[33] == 0 && sig[34]&0x80 == 0)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
