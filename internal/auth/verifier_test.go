package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jerome-fosse/tokens-api/internal/errors"
	"github.com/jerome-fosse/tokens-api/pkg/testutil"
)

func newVerifier(t *testing.T, signer *testutil.TokenSigner) *Verifier {
	t.Helper()
	v, err := NewVerifier(signer.PublicPEM(t))
	require.NoError(t, err)
	return v
}

func TestVerifyValidToken(t *testing.T) {
	signer := testutil.NewTokenSigner(t)
	v := newVerifier(t, signer)

	claims, err := v.Verify(signer.ValidToken(t, "350000000012345"))
	require.NoError(t, err)
	assert.Equal(t, "350000000012345", claims.Subject)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestVerifyExpiredToken(t *testing.T) {
	signer := testutil.NewTokenSigner(t)
	v := newVerifier(t, signer)

	token := signer.SignedToken(t, "u1", time.Now().Add(-time.Hour))
	_, err := v.Verify(token)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindExpiredToken), "expected expired kind, got %v", err)
}

func TestVerifyWrongKey(t *testing.T) {
	signer := testutil.NewTokenSigner(t)
	other := testutil.NewTokenSigner(t)
	v := newVerifier(t, signer)

	_, err := v.Verify(other.ValidToken(t, "u1"))
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidToken))
}

func TestVerifyMalformedToken(t *testing.T) {
	signer := testutil.NewTokenSigner(t)
	v := newVerifier(t, signer)

	for _, token := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		_, err := v.Verify(token)
		require.Error(t, err, "token %q", token)
		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidToken), "token %q classified as %v", token, err)
	}
}

func TestSubject(t *testing.T) {
	signer := testutil.NewTokenSigner(t)
	v := newVerifier(t, signer)

	sub, err := v.Subject(signer.ValidToken(t, "u42"))
	require.NoError(t, err)
	assert.Equal(t, "u42", sub)
}

func TestNewVerifierRejectsBadKeyMaterial(t *testing.T) {
	_, err := NewVerifier([]byte("not a pem"))
	assert.Error(t, err)
}
