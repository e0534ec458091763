package key

import (
	"encoding/json"
	"testing"

	"github.com/lestrrat-go/jwx/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKidIsStablePerKey(t *testing.T) {
	keyPair, err := NewTestKeyPair()
	require.Nil(t, err)
	other, err := NewTestKeyPair()
	require.Nil(t, err)

	kid, err := thumbprint(keyPair.PublicKey)
	require.Nil(t, err)

	assert.Equal(t, kid, keyPair.Kid)
	assert.NotEqual(t, keyPair.Kid, other.Kid)
}

func TestJWKSRoundTrip(t *testing.T) {
	keyPair, err := NewTestKeyPair()
	require.Nil(t, err)

	publicJWK, err := keyPair.JWK()
	require.Nil(t, err)

	data, err := json.Marshal(ExportJWKAsJWKS(publicJWK))
	require.Nil(t, err)

	set, err := jwk.Parse(data)
	require.Nil(t, err)
	require.Equal(t, 1, set.Len())

	published, ok := set.LookupKeyID(keyPair.Kid)
	require.True(t, ok)
	assert.Equal(t, "RS256", published.Algorithm())

	publicKey, err := PublicKeyFromJWK(published)
	assert.Nil(t, err)
	assert.Equal(t, 0, keyPair.PublicKey.N.Cmp(publicKey.N))
	assert.Equal(t, keyPair.PublicKey.E, publicKey.E)
}

func TestInvalidPem(t *testing.T) {
	_, err := NewKeyPairFromRSAPrivateKeyPem("not a pem")
	assert.NotNil(t, err)
}
