package btcmsg

import (
	"encoding/base64"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signMessage produces a wallet-style signed message for the given key and
// returns the base64 signature plus the matching address for the requested
// header class.
func signMessage(t *testing.T, priv *secp256k1.PrivateKey, message string, compressed bool) string {
	t.Helper()
	sig := ecdsa.SignCompact(priv, MessageHash(message), compressed)
	return base64.StdEncoding.EncodeToString(sig)
}

func TestVerifyMessageP2PKH(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	message := "alice"
	sig := signMessage(t, priv, message, true)
	addr := pubKeyHashAddress(priv.PubKey().SerializeCompressed())

	assert.True(t, VerifyMessage(addr, message, sig))

	// Uncompressed key, same message.
	sigU := signMessage(t, priv, message, false)
	addrU := pubKeyHashAddress(priv.PubKey().SerializeUncompressed())
	assert.True(t, VerifyMessage(addrU, message, sigU))

	// Compressed signature does not verify for the uncompressed address and
	// vice versa.
	assert.False(t, VerifyMessage(addrU, message, sig))
	assert.False(t, VerifyMessage(addr, message, sigU))
}

func TestVerifyMessageSegwit(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	message := "claim my slot"

	raw := ecdsa.SignCompact(priv, MessageHash(message), true)
	recoveryID := (raw[0] - 27) & 3
	pub := priv.PubKey().SerializeCompressed()

	// P2SH-P2WPKH: headers 35..38.
	nested := make([]byte, 65)
	copy(nested, raw)
	nested[0] = 35 + recoveryID
	assert.True(t, VerifyMessage(nestedSegwitAddress(pub), message,
		base64.StdEncoding.EncodeToString(nested)))

	// P2WPKH: headers 39..42.
	native := make([]byte, 65)
	copy(native, raw)
	native[0] = 39 + recoveryID
	bc1, err := segwitAddress(pub)
	require.NoError(t, err)
	assert.True(t, VerifyMessage(bc1, message,
		base64.StdEncoding.EncodeToString(native)))

	// The segwit headers must not verify for the legacy address.
	assert.False(t, VerifyMessage(pubKeyHashAddress(pub), message,
		base64.StdEncoding.EncodeToString(nested)))
}

func TestVerifyMessageRejectsTampering(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	message := "alice"
	sig := signMessage(t, priv, message, true)
	addr := pubKeyHashAddress(priv.PubKey().SerializeCompressed())

	assert.False(t, VerifyMessage(addr, "bob", sig), "different message")

	other, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	otherAddr := pubKeyHashAddress(other.PubKey().SerializeCompressed())
	assert.False(t, VerifyMessage(otherAddr, message, sig), "different address")
}

func TestVerifyMessageMalformedInput(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	addr := pubKeyHashAddress(priv.PubKey().SerializeCompressed())

	cases := map[string]struct {
		address   string
		signature string
	}{
		"not base64":        {addr, "%%%not-base64%%%"},
		"wrong length":      {addr, base64.StdEncoding.EncodeToString([]byte("short"))},
		"header too low":    {addr, base64.StdEncoding.EncodeToString(make([]byte, 65))},
		"header too high":   {addr, base64.StdEncoding.EncodeToString(append([]byte{0xff}, make([]byte, 64)...))},
		"empty signature":   {addr, ""},
		"garbage address":   {"not-an-address", signMessage(t, priv, "m", true)},
		"empty address":     {"", signMessage(t, priv, "m", true)},
		"unrecoverable sig": {addr, base64.StdEncoding.EncodeToString(append([]byte{27}, make([]byte, 64)...))},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.False(t, VerifyMessage(tc.address, "m", tc.signature))
			})
		})
	}
}

func TestMessageHashIsDeterministic(t *testing.T) {
	assert.Equal(t, MessageHash("hello"), MessageHash("hello"))
	assert.NotEqual(t, MessageHash("hello"), MessageHash("hello "))
}
