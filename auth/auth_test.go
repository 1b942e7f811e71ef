package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-portal/models"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, VerifyPassword(hash, "correct horse"))
	assert.Error(t, VerifyPassword(hash, "wrong"))
	assert.Error(t, VerifyPassword("", "anything"))
}

func TestSessionIssueAndParse(t *testing.T) {
	issuer := NewSessionIssuer("secret", time.Hour)
	user := &models.User{ID: "U1", Role: models.UserRoleAdmin}

	token, expiresAt, err := issuer.Issue(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "U1", claims.Subject)
	assert.Equal(t, models.UserRoleAdmin, claims.Role)
}

func TestSessionParseRejects(t *testing.T) {
	issuer := NewSessionIssuer("secret", time.Hour)
	token, _, err := issuer.Issue(&models.User{ID: "U1", Role: models.UserRoleUser})
	require.NoError(t, err)

	other := NewSessionIssuer("other-secret", time.Hour)
	_, err = other.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	expired := NewSessionIssuer("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = expired.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = issuer.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionEmptySecret(t *testing.T) {
	issuer := NewSessionIssuer("", time.Hour)

	_, _, err := issuer.Issue(&models.User{ID: "U1", Role: models.UserRoleAdmin})
	assert.ErrorIs(t, err, ErrMissingSecret)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: models.UserRoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "victim",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte{})
	require.NoError(t, err)

	claims, err := issuer.Parse(forged)
	assert.ErrorIs(t, err, ErrInvalidSession)
	assert.Nil(t, claims)
}

func TestSessionRoles(t *testing.T) {
	s := &Session{
		UserID: "U1",
		Role:   models.UserRoleUser,
		Memberships: map[string]models.MemberRole{
			"org-1": models.MemberRoleManager,
		},
	}
	assert.False(t, s.IsAdmin())
	assert.True(t, s.HasOrgRole("org-1", models.MemberRoleAdmin, models.MemberRoleManager))
	assert.False(t, s.HasOrgRole("org-1", models.MemberRoleAdmin))
	assert.False(t, s.HasOrgRole("org-2", models.MemberRoleMember))
	assert.True(t, s.IsMemberOf("org-1"))

	var anonymous *Session
	assert.False(t, anonymous.IsAdmin())
	assert.Equal(t, models.MemberRole(""), anonymous.RoleIn("org-1"))
}
