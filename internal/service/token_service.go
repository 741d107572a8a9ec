package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Caring-data/documenso-sub000/pkg/config"
	appErrors "github.com/Caring-data/documenso-sub000/pkg/errors"
)

// CertificateClaims scopes a certificate render token to one document.
type CertificateClaims struct {
	DocumentID string `json:"documentId"`
	jwt.RegisteredClaims
}

// TokenService issues recipient access tokens and short-lived certificate
// render tokens. Recipient tokens are opaque random strings persisted on
// the recipient row; certificate tokens are signed JWTs because the
// renderer never touches the database.
type TokenService struct {
	secret         []byte
	certificateTTL time.Duration
}

// NewTokenService constructs the token service from config.
func NewTokenService(cfg config.TokenConfig) *TokenService {
	ttl := cfg.CertificateTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenService{
		secret:         []byte(cfg.Secret),
		certificateTTL: ttl,
	}
}

// NewRecipientToken mints a fresh opaque signing-link token.
func (s *TokenService) NewRecipientToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate recipient token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// IssueCertificateToken returns a document-scoped token that expires
// within the certificate render budget.
func (s *TokenService) IssueCertificateToken(documentID string) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrConfiguration, "token secret not configured")
	}
	now := time.Now().UTC()
	expiresAt := now.Add(s.certificateTTL)
	claims := CertificateClaims{
		DocumentID: documentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   documentID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sign certificate token")
	}
	return signed, expiresAt, nil
}

// VerifyCertificateToken validates a certificate token and returns the
// document it grants access to.
func (s *TokenService) VerifyCertificateToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CertificateClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid certificate token")
	}
	claims, ok := token.Claims.(*CertificateClaims)
	if !ok || claims.DocumentID == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid certificate token")
	}
	return claims.DocumentID, nil
}
