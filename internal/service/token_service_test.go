package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/Caring-data/documenso-sub000/pkg/config"
	appErrors "github.com/Caring-data/documenso-sub000/pkg/errors"
)

func TestNewRecipientTokenUnique(t *testing.T) {
	svc := NewTokenService(config.TokenConfig{Secret: "test-secret"})

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		token, err := svc.NewRecipientToken()
		require.NoError(t, err)
		require.Len(t, token, 43)
		require.False(t, seen[token])
		seen[token] = true
	}
}

func TestCertificateTokenRoundTrip(t *testing.T) {
	svc := NewTokenService(config.TokenConfig{Secret: "test-secret", CertificateTTL: time.Minute})

	token, expiresAt, err := svc.IssueCertificateToken("doc-1")
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))
	require.True(t, expiresAt.Before(time.Now().Add(2*time.Minute)))

	documentID, err := svc.VerifyCertificateToken(token)
	require.NoError(t, err)
	require.Equal(t, "doc-1", documentID)
}

func TestIssueCertificateTokenRequiresSecret(t *testing.T) {
	svc := NewTokenService(config.TokenConfig{})

	_, _, err := svc.IssueCertificateToken("doc-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrConfiguration.Code, appErr.Code)
}

func TestVerifyCertificateTokenRejectsTampering(t *testing.T) {
	issuer := NewTokenService(config.TokenConfig{Secret: "test-secret"})
	verifier := NewTokenService(config.TokenConfig{Secret: "other-secret"})

	token, _, err := issuer.IssueCertificateToken("doc-1")
	require.NoError(t, err)

	_, err = verifier.VerifyCertificateToken(token)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)

	_, err = issuer.VerifyCertificateToken("not-a-jwt")
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestVerifyCertificateTokenRejectsExpired(t *testing.T) {
	svc := NewTokenService(config.TokenConfig{Secret: "test-secret"})

	past := time.Now().UTC().Add(-time.Hour)
	claims := CertificateClaims{
		DocumentID: "doc-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "doc-1",
			ExpiresAt: jwt.NewNumericDate(past),
			IssuedAt:  jwt.NewNumericDate(past.Add(-time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.VerifyCertificateToken(signed)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestVerifyCertificateTokenRejectsNoneAlgorithm(t *testing.T) {
	svc := NewTokenService(config.TokenConfig{Secret: "test-secret"})

	claims := CertificateClaims{
		DocumentID: "doc-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.VerifyCertificateToken(unsigned)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}
