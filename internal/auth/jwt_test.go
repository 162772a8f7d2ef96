package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-labs/notify-relay/internal/core/domain"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret")

	token, err := tm.GenerateToken("buyer-42", domain.KindBuyer, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "buyer-42", claims.SubjectID)
	assert.Equal(t, domain.KindBuyer, claims.SubjectKind)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	tm := NewTokenManager("test-secret")
	other := NewTokenManager("other-secret")

	token, err := tm.GenerateToken("shop-1", domain.KindShop, time.Hour)
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_Expired(t *testing.T) {
	tm := NewTokenManager("test-secret")

	token, err := tm.GenerateToken("buyer-42", domain.KindBuyer, -time.Minute)
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_MissingSubjectClaims(t *testing.T) {
	tm := NewTokenManager("test-secret")

	token, err := tm.GenerateToken("", domain.KindBuyer, time.Hour)
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}
