// Package dpop builds DPoP proof tokens (RFC 9449 style ES256 JWTs).
//
// Mercari's search API only checks that a proof is well formed and signed
// by the key it carries, so a fresh key is generated for every proof.
package dpop

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Generator creates DPoP proofs.
type Generator struct {
	// NewKey returns the signing key for one proof.
	NewKey func() (*ecdsa.PrivateKey, error)
	Now    func() time.Time
	NewID  func() string
}

// New returns a Generator that uses a fresh P-256 key and a random UUID
// for every proof.
func New() *Generator {
	return &Generator{
		NewKey: func() (*ecdsa.PrivateKey, error) {
			return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		},
		Now:   time.Now,
		NewID: func() string { return uuid.NewString() },
	}
}

// Generate returns a signed proof bound to method and url.
func (g *Generator) Generate(method, url string) (string, error) {
	key, err := g.NewKey()
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}

	claims := jwt.MapClaims{
		"iat": g.Now().Unix(),
		"jti": g.NewID(),
		"htu": url,
		"htm": strings.ToUpper(method),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["typ"] = "dpop+jwt"
	token.Header["jwk"] = PublicJWK(&key.PublicKey)

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign proof: %w", err)
	}
	return signed, nil
}

// PublicJWK encodes a P-256 public key as a JSON Web Key.
func PublicJWK(pub *ecdsa.PublicKey) map[string]string {
	return map[string]string{
		"crv": "P-256",
		"kty": "EC",
		"x":   encodeCoord(pub.X.FillBytes(make([]byte, 32))),
		"y":   encodeCoord(pub.Y.FillBytes(make([]byte, 32))),
	}
}

func encodeCoord(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
