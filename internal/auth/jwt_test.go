package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParseRoundTrip(t *testing.T) {
	token, err := Issue("svc-admin", "service", "classmatch", "secret", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token.Value)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, 5*time.Second)

	claims, err := Parse(token.Value, "secret", "classmatch")
	require.NoError(t, err)
	assert.Equal(t, "svc-admin", claims.Subject)
	assert.Equal(t, "service", claims.Role)
}

func TestParseRejectsWrongKey(t *testing.T) {
	token, err := Issue("svc-admin", "service", "classmatch", "secret", time.Hour)
	require.NoError(t, err)

	_, err = Parse(token.Value, "other-secret", "classmatch")
	assert.Error(t, err)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	token, err := Issue("svc-admin", "service", "someone-else", "secret", time.Hour)
	require.NoError(t, err)

	_, err = Parse(token.Value, "secret", "classmatch")
	assert.Error(t, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := Issue("svc-admin", "service", "classmatch", "secret", -time.Minute)
	require.NoError(t, err)

	_, err = Parse(token.Value, "secret", "classmatch")
	assert.Error(t, err)
}
