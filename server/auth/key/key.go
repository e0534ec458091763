package key

import (
	"crypto"
	"crypto/rsa"
	"encoding/base64"
	"fmt"

	"github.com/golang-jwt/jwt"
	"github.com/lestrrat-go/jwx/jwk"
)

type JWKS struct {
	Keys []interface{} `json:"keys"`
}

// KeyPair signs access tokens. Kid is the RFC 7638 thumbprint of the public
// key, so a rotated key is published under a new id.
type KeyPair struct {
	Kid        string
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
}

func NewKeyPairFromRSAPrivateKeyPem(privateKeyPem string) (*KeyPair, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPem))
	if err != nil {
		return nil, fmt.Errorf("unable to parse RSA private key: %v", err)
	}

	kid, err := thumbprint(&privateKey.PublicKey)
	if err != nil {
		return nil, err
	}

	return &KeyPair{
		Kid:        kid,
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey}, nil
}

func (keyPair *KeyPair) JWK() (jwk.Key, error) {
	keyPairJWK, err := jwk.New(keyPair.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("JWK: %v", err)
	}
	keyPairJWK.Set(jwk.KeyIDKey, keyPair.Kid)
	keyPairJWK.Set(jwk.AlgorithmKey, "RS256")
	keyPairJWK.Set(jwk.KeyUsageKey, "sig")

	return keyPairJWK, nil
}

func ExportJWKAsJWKS(jwk jwk.Key) JWKS {
	return JWKS{Keys: []interface{}{jwk}}
}

// PublicKeyFromJWK is how a verifier holding only the JWKS gets the key back.
func PublicKeyFromJWK(key jwk.Key) (*rsa.PublicKey, error) {
	publicKey := &rsa.PublicKey{}

	err := key.Raw(publicKey)
	if err != nil {
		return nil, err
	}

	return publicKey, nil
}

func thumbprint(publicKey *rsa.PublicKey) (string, error) {
	publicJWK, err := jwk.New(publicKey)
	if err != nil {
		return "", fmt.Errorf("thumbprint: %v", err)
	}

	sum, err := publicJWK.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("thumbprint: %v", err)
	}

	return base64.RawURLEncoding.EncodeToString(sum), nil
}
