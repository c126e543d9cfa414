// Package testutil provides shared test helpers for the tokens API.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSigner issues RS256-signed identity tokens for tests, the same shape
// the partner realm produces in production.
type TokenSigner struct {
	Key *rsa.PrivateKey
}

// NewTokenSigner generates a fresh RSA key pair.
func NewTokenSigner(t *testing.T) *TokenSigner {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return &TokenSigner{Key: key}
}

// PublicPEM returns the PEM-encoded PKIX public key matching the signer.
func (s *TokenSigner) PublicPEM(t *testing.T) []byte {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&s.Key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

// SignedToken issues a token for the given subject expiring at expiresAt.
func (s *TokenSigner) SignedToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    "https://connect.example.com/oauth2/connect",
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.Key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

// ValidToken issues a token for subject that expires six hours from now.
func (s *TokenSigner) ValidToken(t *testing.T, subject string) string {
	return s.SignedToken(t, subject, time.Now().Add(6*time.Hour))
}
