package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/storefront-labs/notify-relay/internal/core/domain"
)

// Claims defines the structured data the storefront backend puts in the JWTs
// it issues for REST calls against this service.
type Claims struct {
	SubjectID   string             `json:"subject_id"`
	SubjectKind domain.SubjectKind `json:"subject_kind"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secretKey []byte
}

func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secretKey: []byte(secret)}
}

// GenerateToken creates a new JWT access token for a subject. Used by tests
// and tooling; in production the storefront backend is the issuer.
func (tm *TokenManager) GenerateToken(subjectID string, kind domain.SubjectKind, ttl time.Duration) (string, error) {
	claims := &Claims{
		SubjectID:   subjectID,
		SubjectKind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			Subject:   subjectID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secretKey)
}

// ValidateToken parses and validates the token string
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secretKey, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.SubjectID == "" || !claims.SubjectKind.Valid() {
		return nil, errors.New("token missing subject claims")
	}

	return claims, nil
}
