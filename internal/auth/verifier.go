// Package auth verifies the identity tokens issued by the partner. Tokens are
// RS256-signed JWTs; the service only ever holds the public half of the key.
package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/jerome-fosse/tokens-api/internal/errors"
)

// Claims are the verified claims of an identity token.
type Claims struct {
	// Subject is the account identifier the token asserts.
	Subject string
	// Issuer identifies the partner realm that signed the token.
	Issuer string
	// ExpiresAt is the token expiry.
	ExpiresAt time.Time
}

// Verifier checks identity tokens against the partner's public key.
type Verifier struct {
	key    *rsa.PublicKey
	parser *jwt.Parser
}

// NewVerifier builds a verifier from a PEM-encoded PKIX RSA public key.
func NewVerifier(pemKey []byte) (*Verifier, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, stderrors.New("auth: public key is not PEM encoded")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("auth: parse public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("auth: expected an RSA public key, got %T", parsed)
	}

	return &Verifier{
		key:    key,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithExpirationRequired()),
	}, nil
}

// Verify checks the token signature and expiry and returns its claims.
// Malformed tokens, wrong algorithms and bad signatures are all reported as
// invalid; a valid signature with a past expiry is reported as expired.
func (v *Verifier) Verify(token string) (Claims, error) {
	var registered jwt.RegisteredClaims
	_, err := v.parser.ParseWithClaims(token, &registered, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	})
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, apperrors.ExpiredToken(err)
		}
		return Claims{}, apperrors.InvalidToken(err)
	}

	claims := Claims{Subject: registered.Subject, Issuer: registered.Issuer}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = registered.ExpiresAt.Time
	}
	return claims, nil
}

// Subject verifies the token and returns only its subject.
func (v *Verifier) Subject(token string) (string, error) {
	claims, err := v.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
