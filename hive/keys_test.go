package hive

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrivateKeyFromSeedDeterministic(t *testing.T) {
	a := PrivateKeyFromSeed("alice-owner")
	b := PrivateKeyFromSeed("alice-owner")
	c := PrivateKeyFromSeed("alice-active")

	assert.Equal(t, a.String(), b.String())
	assert.NotEqual(t, a.String(), c.String())
	assert.Equal(t, a.Public().String(), b.Public().String())
	assert.NotEqual(t, a.Public().String(), c.Public().String())
}

func TestPrivateKeyFromLoginDistinctRoles(t *testing.T) {
	seen := map[string]string{}
	for _, role := range []string{"owner", "active", "posting", "memo"} {
		key := PrivateKeyFromLogin("alice", role, "posting")
		wif := key.String()
		for otherRole, otherWIF := range seen {
			assert.NotEqual(t, otherWIF, wif, "roles %s and %s collide", role, otherRole)
		}
		seen[role] = wif
	}

	// Distinct usernames must not collide either.
	assert.NotEqual(t,
		PrivateKeyFromLogin("alice", "owner", "posting").String(),
		PrivateKeyFromLogin("alicia", "owner", "posting").String())
}

func TestWIFRoundTrip(t *testing.T) {
	key := PrivateKeyFromSeed("round-trip")
	wif := key.String()

	decoded, err := PrivateKeyFromWIF(wif)
	require.NoError(t, err)
	assert.Equal(t, wif, decoded.String())
	assert.Equal(t, key.Public().String(), decoded.Public().String())
}

func TestPrivateKeyFromWIFRejectsGarbage(t *testing.T) {
	for _, wif := range []string{"", "not-a-wif", "5JfoolishnessThatIsNotBase58Check00000"} {
		_, err := PrivateKeyFromWIF(wif)
		assert.Error(t, err, "wif %q", wif)
	}
}

func TestPublicKeyEncoding(t *testing.T) {
	pub := PrivateKeyFromSeed("encoding").Public()
	encoded := pub.String()

	assert.True(t, strings.HasPrefix(encoded, AddressPrefix))

	parsed, err := PublicKeyFromString(encoded)
	require.NoError(t, err)
	assert.Equal(t, encoded, parsed.String())
	assert.Len(t, parsed.Bytes(), 33)
}

func TestPublicKeyFromStringRejectsCorruption(t *testing.T) {
	encoded := PrivateKeyFromSeed("corruption").Public().String()

	_, err := PublicKeyFromString("ABC" + encoded[3:])
	assert.Error(t, err, "wrong prefix")

	// Flip a character in the base58 payload to break the checksum.
	corrupted := []byte(encoded)
	last := len(corrupted) - 1
	if corrupted[last] == 'x' {
		corrupted[last] = 'y'
	} else {
		corrupted[last] = 'x'
	}
	_, err = PublicKeyFromString(string(corrupted))
	assert.Error(t, err, "corrupted payload")

	_, err = PublicKeyFromString(AddressPrefix)
	assert.Error(t, err, "prefix only")
}
