package hive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDeterministic(t *testing.T) {
	gen := CredentialGenerator{}

	first, err := gen.Generate("alice")
	require.NoError(t, err)
	second, err := gen.Generate("alice")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := gen.Generate("bob")
	require.NoError(t, err)
	assert.NotEqual(t, first.Owner, other.Owner)
	assert.NotEqual(t, first.Memo, other.Memo)
}

func TestGenerateRolesAreIndependent(t *testing.T) {
	creds, err := CredentialGenerator{}.Generate("alice")
	require.NoError(t, err)

	wifs := map[string]bool{
		creds.Owner.PrivateWIF:   true,
		creds.Active.PrivateWIF:  true,
		creds.Posting.PrivateWIF: true,
		creds.Memo.PrivateWIF:    true,
	}
	assert.Len(t, wifs, 4, "each role derives its own key")
}

func TestGenerateKeysAreWellFormed(t *testing.T) {
	creds, err := CredentialGenerator{}.Generate("alice")
	require.NoError(t, err)

	for _, pair := range []struct {
		role string
		wif  string
		pub  string
	}{
		{"owner", creds.Owner.PrivateWIF, creds.Owner.PublicKey},
		{"active", creds.Active.PrivateWIF, creds.Active.PublicKey},
		{"posting", creds.Posting.PrivateWIF, creds.Posting.PublicKey},
		{"memo", creds.Memo.PrivateWIF, creds.Memo.PublicKey},
	} {
		priv, err := PrivateKeyFromWIF(pair.wif)
		require.NoError(t, err, pair.role)
		assert.Equal(t, pair.pub, priv.Public().String(), "public key matches private key for %s", pair.role)
	}
}
