package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamemixer/gamemixer-api/internal/models"
)

func TestTokens_IssueAndParse(t *testing.T) {
	tokens, err := NewTokens("s3cret", time.Hour)
	require.NoError(t, err)

	signed, issued, err := tokens.Issue(&models.User{ID: "u1", Name: "alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)

	claims, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "alice", claims.UserName)
	assert.Equal(t, issued.ID, claims.ID)
}

func TestTokens_Expired(t *testing.T) {
	tokens, err := NewTokens("s3cret", time.Minute)
	require.NoError(t, err)
	start := time.Now()
	tokens.now = func() time.Time { return start }
	signed, _, err := tokens.Issue(&models.User{ID: "u1", Name: "alice"})
	require.NoError(t, err)

	tokens.now = func() time.Time { return start.Add(2 * time.Minute) }
	_, err = tokens.Parse(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokens_WrongSecret(t *testing.T) {
	a, _ := NewTokens("one", time.Hour)
	b, _ := NewTokens("two", time.Hour)
	signed, _, err := a.Issue(&models.User{ID: "u1", Name: "alice"})
	require.NoError(t, err)

	_, err = b.Parse(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	_, err = b.Parse("not-a-token")
	assert.Error(t, err)
}

func TestNewTokens_RequiresSecret(t *testing.T) {
	_, err := NewTokens("", time.Hour)
	assert.Equal(t, ErrNoSecret, err)
}
