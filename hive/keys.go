package hive

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/ripemd160"
)

// AddressPrefix is the mainnet public key prefix.
const AddressPrefix = "STM"

// wifVersion is the version byte for WIF-encoded private keys (shared with
// Bitcoin's mainnet WIF format).
const wifVersion = 0x80

// PrivateKey is a secp256k1 private key in Hive's conventions: WIF string
// encoding and sha256 passphrase derivation.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PrivateKeyFromSeed deterministically derives a private key from an
// arbitrary seed string, the chain's standard passphrase derivation
// (key = sha256(seed)).
func PrivateKeyFromSeed(seed string) *PrivateKey {
	digest := sha256.Sum256([]byte(seed))
	return &PrivateKey{key: secp256k1.PrivKeyFromBytes(digest[:])}
}

// PrivateKeyFromLogin derives a role key the way the chain's bootstrap
// tooling does: seed = account + role + password. Anyone holding the same
// three inputs derives the same key.
func PrivateKeyFromLogin(account, password, role string) *PrivateKey {
	return PrivateKeyFromSeed(account + role + password)
}

// PrivateKeyFromWIF decodes a WIF-encoded private key.
func PrivateKeyFromWIF(wif string) (*PrivateKey, error) {
	decoded, version, err := base58.CheckDecode(wif)
	if err != nil {
		return nil, fmt.Errorf("invalid WIF: %w", err)
	}
	if version != wifVersion {
		return nil, fmt.Errorf("invalid WIF version: %#x", version)
	}
	if len(decoded) != 32 {
		return nil, errors.New("invalid WIF payload length")
	}
	return &PrivateKey{key: secp256k1.PrivKeyFromBytes(decoded)}, nil
}

// String returns the WIF encoding of the key.
func (k *PrivateKey) String() string {
	return base58.CheckEncode(k.key.Serialize(), wifVersion)
}

// Public returns the corresponding public key.
func (k *PrivateKey) Public() *PublicKey {
	return &PublicKey{key: k.key.PubKey()}
}

// PublicKey is a secp256k1 public key in Hive's STM base58 encoding.
type PublicKey struct {
	key *secp256k1.PublicKey
}

// PublicKeyFromString decodes an STM-prefixed public key string.
func PublicKeyFromString(s string) (*PublicKey, error) {
	if len(s) <= len(AddressPrefix) || s[:len(AddressPrefix)] != AddressPrefix {
		return nil, fmt.Errorf("public key missing %q prefix", AddressPrefix)
	}

	decoded := base58.Decode(s[len(AddressPrefix):])
	if len(decoded) != 33+4 {
		return nil, errors.New("invalid public key length")
	}

	raw, checksum := decoded[:33], decoded[33:]
	h := ripemd160.New()
	h.Write(raw)
	if sum := h.Sum(nil); string(sum[:4]) != string(checksum) {
		return nil, errors.New("public key checksum mismatch")
	}

	key, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	return &PublicKey{key: key}, nil
}

// Bytes returns the 33-byte compressed point, the form used in the binary
// transaction serialization.
func (k *PublicKey) Bytes() []byte {
	return k.key.SerializeCompressed()
}

// String returns the STM encoding: prefix plus base58 of the compressed
// point with a truncated RIPEMD-160 checksum.
func (k *PublicKey) String() string {
	raw := k.Bytes()
	h := ripemd160.New()
	h.Write(raw)
	sum := h.Sum(nil)
	return AddressPrefix + base58.Encode(append(raw, sum[:4]...))
}
