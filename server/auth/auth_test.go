package auth

import (
	"testing"
	"time"

	"github.com/Daskott/rolodex/server/auth/key"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestEncodeAndDecodeJWT(t *testing.T) {
	keyPair, err := key.NewTestKeyPair()
	require.Nil(t, err)

	token, err := EncodeJWT(RolodexTokenClaims{
		Name:      "Ada",
		Email:     "ada@example.com",
		SessionID: "s1",
		StandardClaims: jwt.StandardClaims{
			Subject:   "u1",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
	}, keyPair)
	assert.Nil(t, err)

	claims, err := DecodeJWT(token, keyPair)
	assert.Nil(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "s1", claims.SessionID)
	assert.Equal(t, "ada@example.com", claims.Email)
}

func TestDecodeJWTRejectsBadTokens(t *testing.T) {
	keyPair, _ := key.NewTestKeyPair()
	otherKeyPair, _ := key.NewTestKeyPair()

	expired, _ := EncodeJWT(RolodexTokenClaims{
		StandardClaims: jwt.StandardClaims{Subject: "u1", ExpiresAt: time.Now().Add(-time.Minute).Unix()},
	}, keyPair)
	_, err := DecodeJWT(expired, keyPair)
	assert.NotNil(t, err, "Expired tokens should be rejected")

	foreign, _ := EncodeJWT(RolodexTokenClaims{
		StandardClaims: jwt.StandardClaims{Subject: "u1", ExpiresAt: time.Now().Add(time.Minute).Unix()},
	}, otherKeyPair)
	_, err = DecodeJWT(foreign, keyPair)
	assert.NotNil(t, err, "Tokens signed by another key should be rejected")

	_, err = DecodeJWT("not-a-jwt", keyPair)
	assert.NotNil(t, err)
}

func TestPasswordHash(t *testing.T) {
	BcryptCost = bcrypt.MinCost

	hash, err := HashPassword("correct horse")
	assert.Nil(t, err)
	assert.True(t, CheckPasswordHash("correct horse", hash))
	assert.False(t, CheckPasswordHash("battery staple", hash))
}

func TestS256Challenge(t *testing.T) {
	// RFC 7636 appendix B
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	challenge := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	assert.Equal(t, challenge, S256Challenge(verifier))
	assert.True(t, VerifyS256Challenge(verifier, challenge))
	assert.False(t, VerifyS256Challenge(verifier+"x", challenge))
}

func TestOpaqueTokens(t *testing.T) {
	first, err := NewOpaqueToken()
	assert.Nil(t, err)
	second, _ := NewOpaqueToken()

	assert.NotEqual(t, first, second)
	assert.Len(t, HashOpaqueToken(first), 64)
	assert.Equal(t, HashOpaqueToken(first), HashOpaqueToken(first))
}
