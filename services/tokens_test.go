package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-portal/models"
)

func (f *fixture) token(t *testing.T, value string, mutate func(*models.OrganizationToken)) models.OrganizationToken {
	t.Helper()
	tok := models.OrganizationToken{
		Token:          value,
		OrganizationID: f.org.ID,
		IsActive:       true,
		ExpiresAt:      fixedNow.Add(48 * time.Hour),
		CreatedByID:    f.admin.ID,
	}
	if mutate != nil {
		mutate(&tok)
	}
	require.NoError(t, f.db.Create(&tok).Error)
	return tok
}

func TestValidateToken(t *testing.T) {
	f := newFixture(t)
	svc := f.services().tokens
	ctx := context.Background()

	inactiveOrg := models.Organization{Name: "Closed", Slug: "closed"}
	require.NoError(t, f.db.Create(&inactiveOrg).Error)

	upcomingStart := fixedNow.Add(72 * time.Hour)
	upcoming := models.Event{OrganizationID: f.org.ID, Name: "Futuro", IsActive: true, SubmissionStart: &upcomingStart}
	require.NoError(t, f.db.Create(&upcoming).Error)
	closedEnd := fixedNow.Add(-time.Hour)
	closed := models.Event{OrganizationID: f.org.ID, Name: "Passado", IsActive: true, SubmissionEnd: &closedEnd}
	require.NoError(t, f.db.Create(&closed).Error)
	inactive := models.Event{OrganizationID: f.org.ID, Name: "Inativo"}
	require.NoError(t, f.db.Create(&inactive).Error)

	f.token(t, "org-only", nil)
	f.token(t, "revoked", func(tok *models.OrganizationToken) { tok.IsActive = false })
	f.token(t, "expired", func(tok *models.OrganizationToken) { tok.ExpiresAt = fixedNow })
	f.token(t, "used-up", func(tok *models.OrganizationToken) { tok.MaxUses = 2; tok.UsageCount = 2 })
	f.token(t, "inactive-org", func(tok *models.OrganizationToken) { tok.OrganizationID = inactiveOrg.ID })
	f.token(t, "inactive-event", func(tok *models.OrganizationToken) { tok.EventID = &inactive.ID })
	f.token(t, "upcoming", func(tok *models.OrganizationToken) { tok.EventID = &upcoming.ID })
	f.token(t, "closed", func(tok *models.OrganizationToken) { tok.EventID = &closed.ID })
	f.token(t, "open", func(tok *models.OrganizationToken) { tok.EventID = &f.event.ID })

	tests := []struct {
		token   string
		valid   bool
		active  bool
		status  string
		message string
	}{
		{"", false, false, "", "token is required"},
		{"does-not-exist", false, false, "", "token not found"},
		{"revoked", false, false, "", "token has been revoked"},
		{"expired", false, false, "", "token has expired"},
		{"used-up", false, false, "", "token usage limit reached"},
		{"inactive-org", false, false, "", "organization is not active"},
		{"inactive-event", false, false, "", "event is not active"},
		{"upcoming", true, false, WindowUpcoming, "submissions open in 3 days"},
		{"closed", true, false, WindowClosed, "submission period has ended"},
		{"open", true, true, WindowOpen, "submissions open, 10 days remaining"},
		{" org-only ", true, true, "", "token is valid"},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			v, err := svc.Validate(ctx, tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, v.Valid)
			assert.Equal(t, tt.active, v.Active)
			assert.Equal(t, tt.status, v.Status)
			assert.Equal(t, tt.message, v.Message)
			if tt.valid {
				require.NotNil(t, v.Organization)
				assert.Equal(t, f.org.Slug, v.Organization.Slug)
			}
		})
	}
}

func TestJoinWithToken(t *testing.T) {
	f := newFixture(t)
	svc := f.services().tokens
	ctx := context.Background()
	tok := f.token(t, "join-me", func(tok *models.OrganizationToken) { tok.MaxUses = 5 })

	newcomer := f.user(t, "newcomer@example.org", "")
	v, err := svc.Join(ctx, f.session(t, newcomer), "join-me")
	require.NoError(t, err)
	assert.True(t, v.Valid)

	sess := f.session(t, newcomer)
	assert.Equal(t, models.MemberRoleMember, sess.RoleIn(f.org.ID))

	// bestehende Rolle bleibt erhalten
	_, err = svc.Join(ctx, f.session(t, f.admin), "join-me")
	require.NoError(t, err)
	assert.Equal(t, models.MemberRoleAdmin, f.session(t, f.admin).RoleIn(f.org.ID))

	var reloaded models.OrganizationToken
	require.NoError(t, f.db.First(&reloaded, "id = ?", tok.ID).Error)
	assert.Equal(t, 2, reloaded.UsageCount)

	_, err = svc.Join(ctx, f.session(t, newcomer), "nope")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "token not found", verr.Fields["token"])

	_, err = svc.Join(ctx, nil, "join-me")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestCreateToken(t *testing.T) {
	f := newFixture(t)
	svc := f.services().tokens
	ctx := context.Background()
	admin := f.session(t, f.admin)
	future := fixedNow.Add(24 * time.Hour)
	past := fixedNow.Add(-time.Minute)

	tok, err := svc.Create(ctx, admin, TokenInput{OrganizationID: f.org.ID, EventID: &f.event.ID, ExpiresAt: &future, Description: " Convite "})
	require.NoError(t, err)
	assert.Len(t, tok.Token, 32)
	assert.True(t, tok.IsActive)
	assert.Equal(t, "Convite", tok.Description)
	assert.Equal(t, f.admin.ID, tok.CreatedByID)

	second, err := svc.Create(ctx, admin, TokenInput{OrganizationID: f.org.ID, ExpiresAt: &future})
	require.NoError(t, err)
	assert.NotEqual(t, tok.Token, second.Token)
	assert.Nil(t, second.EventID)

	_, err = svc.Create(ctx, admin, TokenInput{OrganizationID: f.org.ID, ExpiresAt: &past, MaxUses: -1})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be in the future", verr.Fields["expiresAt"])
	assert.Contains(t, verr.Fields, "maxUses")

	_, err = svc.Create(ctx, f.session(t, f.owner), TokenInput{OrganizationID: f.org.ID, ExpiresAt: &future})
	assert.ErrorIs(t, err, ErrForbidden)

	foreignOrg := models.Organization{Name: "Outra", Slug: "outra", IsActive: true}
	require.NoError(t, f.db.Create(&foreignOrg).Error)
	foreign := models.Event{OrganizationID: foreignOrg.ID, Name: "Outro", IsActive: true}
	require.NoError(t, f.db.Create(&foreign).Error)
	_, err = svc.Create(ctx, admin, TokenInput{OrganizationID: f.org.ID, EventID: &foreign.ID, ExpiresAt: &future})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "eventId")

	tokens, err := svc.List(ctx, admin, f.org.ID)
	require.NoError(t, err)
	assert.Len(t, tokens, 2)

	require.NoError(t, svc.Revoke(ctx, admin, tok.ID))
	v, err := svc.Validate(ctx, tok.Token)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, "token has been revoked", v.Message)

	assert.ErrorIs(t, svc.Revoke(ctx, f.session(t, f.other), second.ID), ErrForbidden)
	assert.ErrorIs(t, svc.Revoke(ctx, admin, "missing"), ErrNotFound)
}
