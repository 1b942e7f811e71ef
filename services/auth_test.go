package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-portal/auth"
	"paper-portal/models"
)

func newAuthService(f *fixture) *AuthService {
	tokens := NewTokenService(f.db, nopLogger())
	tokens.now = fixedClock
	svc := NewAuthService(f.db, auth.NewSessionIssuer("test-secret", time.Hour), tokens, nopLogger())
	svc.now = tickingClock()
	return svc
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	svc := newAuthService(f)
	ctx := context.Background()
	state := models.State{ID: "sp", Code: "SP", Name: "São Paulo"}
	require.NoError(t, f.db.Create(&state).Error)

	user, err := svc.Register(ctx, RegisterInput{
		Name:     "  Ana   Souza ",
		Email:    " Ana@Example.org ",
		Password: "secret123",
		StateID:  &state.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", user.Name)
	assert.Equal(t, "ana@example.org", user.Email)
	assert.True(t, user.IsActive)
	assert.Equal(t, models.UserRoleUser, user.Role)
	require.NotNil(t, user.StateID)
	assert.NoError(t, auth.VerifyPassword(user.PasswordHash, "secret123"))

	sess := f.session(t, *user)
	assert.Empty(t, sess.Memberships)

	_, err = svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.org", Password: "another123"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.Register(ctx, RegisterInput{Name: "", Email: "bad", Password: "short"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "password")

	unknown := "xx"
	_, err = svc.Register(ctx, RegisterInput{Name: "Bia", Email: "bia@example.org", Password: "secret123", StateID: &unknown})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "stateId")
}

func TestRegisterWithToken(t *testing.T) {
	f := newFixture(t)
	svc := newAuthService(f)
	ctx := context.Background()
	upcomingStart := fixedNow.Add(5 * 24 * time.Hour)
	upcoming := models.Event{OrganizationID: f.org.ID, Name: "Futuro", IsActive: true, SubmissionStart: &upcomingStart}
	require.NoError(t, f.db.Create(&upcoming).Error)
	f.token(t, "early-bird", func(tok *models.OrganizationToken) { tok.EventID = &upcoming.ID })
	f.token(t, "revoked", func(tok *models.OrganizationToken) { tok.IsActive = false })

	// ein gültiges Token für ein noch nicht geöffnetes Event reicht für die Registrierung
	user, err := svc.Register(ctx, RegisterInput{Name: "Caio", Email: "caio@example.org", Password: "secret123", Token: "early-bird"})
	require.NoError(t, err)
	assert.Equal(t, models.MemberRoleMember, f.session(t, *user).RoleIn(f.org.ID))

	_, err = svc.Register(ctx, RegisterInput{Name: "Duda", Email: "duda@example.org", Password: "secret123", Token: "revoked"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "token has been revoked", verr.Fields["token"])

	var count int64
	require.NoError(t, f.db.Model(&models.User{}).Where("email = ?", "duda@example.org").Count(&count).Error)
	assert.Zero(t, count, "registration is rolled back with the token")
}

func TestLoginWritesLoginLog(t *testing.T) {
	f := newFixture(t)
	svc := newAuthService(f)
	ctx := context.Background()
	meta := LoginMeta{IPAddress: "10.0.0.1", UserAgent: "test"}

	inactive := f.user(t, "gone@example.org", "")
	require.NoError(t, f.db.Model(&inactive).Update("is_active", false).Error)

	_, err := svc.Login(ctx, "nobody@example.org", "secret123", meta)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.Login(ctx, "owner@example.org", "wrong", meta)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.Login(ctx, "gone@example.org", "secret123", meta)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	res, err := svc.Login(ctx, " OWNER@example.org ", "secret123", meta)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, f.owner.ID, res.User.ID)
	claims, err := svc.Sessions.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, f.owner.ID, claims.Subject)

	var logs []models.LoginLog
	require.NoError(t, f.db.Order("created_at ASC").Find(&logs).Error)
	require.Len(t, logs, 4)
	reasons := []string{logs[0].Reason, logs[1].Reason, logs[2].Reason, logs[3].Reason}
	assert.Equal(t, []string{ReasonUnknownEmail, ReasonBadPassword, ReasonInactive, ""}, reasons)
	assert.Nil(t, logs[0].UserID)
	assert.True(t, logs[3].Success)
	assert.Equal(t, "10.0.0.1", logs[3].IPAddress)

	history, err := svc.LoginHistory(ctx, f.session(t, f.owner), Pagination{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), history.Total)
	assert.True(t, history.Items[0].Success, "newest first")
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	svc := newAuthService(f)
	ctx := context.Background()
	sess := f.session(t, f.owner)

	err := svc.ChangePassword(ctx, sess, ChangePasswordInput{CurrentPassword: "wrong", NewPassword: "brandnew123"})
	assert.ErrorIs(t, err, ErrInvalidPassword)

	err = svc.ChangePassword(ctx, sess, ChangePasswordInput{CurrentPassword: "secret123", NewPassword: "short"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "newPassword")

	require.NoError(t, svc.ChangePassword(ctx, sess, ChangePasswordInput{CurrentPassword: "secret123", NewPassword: "brandnew123"}))
	_, err = svc.Login(ctx, "owner@example.org", "brandnew123", LoginMeta{})
	assert.NoError(t, err)
}

func TestLinkedAccounts(t *testing.T) {
	f := newFixture(t)
	svc := newAuthService(f)
	ctx := context.Background()
	owner := f.session(t, f.owner)

	acc, err := svc.LinkAccount(ctx, owner, AccountInput{Provider: " Google ", ProviderAccountID: "g-1"})
	require.NoError(t, err)
	assert.Equal(t, "google", acc.Provider)

	again, err := svc.LinkAccount(ctx, owner, AccountInput{Provider: "google", ProviderAccountID: "g-1"})
	require.NoError(t, err)
	assert.Equal(t, acc.ID, again.ID)

	_, err = svc.LinkAccount(ctx, f.session(t, f.other), AccountInput{Provider: "google", ProviderAccountID: "g-1"})
	assert.ErrorIs(t, err, ErrConflict)

	accounts, err := svc.ListAccounts(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	assert.ErrorIs(t, svc.UnlinkAccount(ctx, owner, "github"), ErrNotFound)

	// ohne Passwort ist das letzte Konto die einzige Anmeldemöglichkeit
	oauthOnly := models.User{Name: "OAuth", Email: "oauth@example.org", Role: models.UserRoleUser, IsActive: true}
	require.NoError(t, f.db.Create(&oauthOnly).Error)
	oauth := f.session(t, oauthOnly)
	_, err = svc.LinkAccount(ctx, oauth, AccountInput{Provider: "orcid", ProviderAccountID: "0000-0001"})
	require.NoError(t, err)
	var verr *ValidationError
	require.ErrorAs(t, svc.UnlinkAccount(ctx, oauth, "orcid"), &verr)

	require.NoError(t, svc.UnlinkAccount(ctx, owner, "GOOGLE"))
	accounts, err = svc.ListAccounts(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestSessionInfo(t *testing.T) {
	f := newFixture(t)
	svc := newAuthService(f)

	info, err := svc.SessionInfo(context.Background(), f.session(t, f.admin))
	require.NoError(t, err)
	assert.Equal(t, f.admin.Email, info.User.Email)
	require.Len(t, info.Memberships, 1)
	assert.Equal(t, Membership{
		OrganizationID:   f.org.ID,
		OrganizationName: f.org.Name,
		OrganizationSlug: f.org.Slug,
		Role:             models.MemberRoleAdmin,
	}, info.Memberships[0])

	_, err = svc.SessionInfo(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = LoadSession(f.db, "missing")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
