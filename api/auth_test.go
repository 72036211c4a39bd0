package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-portal/leave"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "", 0)
	u := leave.User{ID: "user-2", SicilNo: "422482", Role: leave.RoleEmployee}

	token, expires, err := tm.GenerateToken(u)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(12*time.Hour), expires, time.Minute)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-2", claims.UserID)
	assert.Equal(t, "422482", claims.SicilNo)
	assert.Equal(t, leave.RoleEmployee, claims.Role)
	assert.Equal(t, "leave-portal", claims.Issuer)
}

func TestTokenManager_Expired(t *testing.T) {
	tm := NewTokenManager("secret", "", time.Hour)
	issued := time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)
	tm.now = func() time.Time { return issued }

	token, _, err := tm.GenerateToken(leave.User{ID: "user-2"})
	require.NoError(t, err)

	tm.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_WrongIssuer(t *testing.T) {
	a := NewTokenManager("secret", "portal-a", time.Hour)
	b := NewTokenManager("secret", "portal-b", time.Hour)

	token, _, err := a.GenerateToken(leave.User{ID: "user-2"})
	require.NoError(t, err)
	_, err = b.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RequiresUserID(t *testing.T) {
	_, _, err := NewTokenManager("secret", "", time.Hour).GenerateToken(leave.User{})
	assert.Error(t, err)
}

func TestExtractToken(t *testing.T) {
	tok, err := ExtractToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	for _, bad := range []string{"", "abc", "Basic abc", "Bearer a b"} {
		_, err := ExtractToken(bad)
		assert.Error(t, err, bad)
	}
}
