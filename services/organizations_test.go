package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-portal/models"
)

func TestCreateOrganization(t *testing.T) {
	f := newFixture(t)
	svc := NewOrganizationService(f.db, nopLogger())
	ctx := context.Background()

	root := f.user(t, "root@example.org", "")
	require.NoError(t, f.db.Model(&root).Update("role", models.UserRoleAdmin).Error)
	rootSess := f.session(t, root)

	org, err := svc.Create(ctx, rootSess, OrganizationInput{Name: "Associação Brasileira de Óptica"})
	require.NoError(t, err)
	assert.Equal(t, "associacao-brasileira-de-optica", org.Slug)
	assert.True(t, org.IsActive)
	assert.Equal(t, models.MemberRoleAdmin, f.session(t, root).RoleIn(org.ID))

	_, err = svc.Create(ctx, rootSess, OrganizationInput{Name: "Duplicate", Slug: "SBF"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.Create(ctx, f.session(t, f.admin), OrganizationInput{Name: "Not allowed"})
	assert.ErrorIs(t, err, ErrForbidden)

	mine, err := svc.ListMine(ctx, f.session(t, f.owner))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, f.org.ID, mine[0].ID)
	assert.Equal(t, models.MemberRoleMember, mine[0].Role)

	all, err := svc.ListMine(ctx, f.session(t, root))
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestChangeRole(t *testing.T) {
	f := newFixture(t)
	svc := NewOrganizationService(f.db, nopLogger())
	ctx := context.Background()
	admin := f.session(t, f.admin)
	outsider := f.user(t, "outsider@example.org", "")

	tests := []struct {
		name   string
		target string
		in     ChangeRoleInput
		want   error
	}{
		{"own role with correct password", f.admin.ID,
			ChangeRoleInput{OrganizationID: f.org.ID, Role: models.MemberRoleMember, Password: "secret123"}, ErrCannotChangeOwnRole},
		{"own role with wrong password", f.admin.ID,
			ChangeRoleInput{OrganizationID: f.org.ID, Role: models.MemberRoleMember, Password: "wrong"}, ErrCannotChangeOwnRole},
		{"wrong password", f.owner.ID,
			ChangeRoleInput{OrganizationID: f.org.ID, Role: models.MemberRoleReviewer, Password: "wrong"}, ErrInvalidPassword},
		{"target not a member", outsider.ID,
			ChangeRoleInput{OrganizationID: f.org.ID, Role: models.MemberRoleReviewer, Password: "secret123"}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ChangeRole(ctx, admin, tt.target, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := svc.ChangeRole(ctx, admin, f.owner.ID, ChangeRoleInput{OrganizationID: f.org.ID, Role: "OWNER", Password: "secret123"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "role")

	_, err = svc.ChangeRole(ctx, f.session(t, f.other), f.owner.ID, ChangeRoleInput{OrganizationID: f.org.ID, Role: models.MemberRoleAdmin, Password: "secret123"})
	assert.ErrorIs(t, err, ErrForbidden)

	member, err := svc.ChangeRole(ctx, admin, f.owner.ID, ChangeRoleInput{OrganizationID: f.org.ID, Role: models.MemberRoleReviewer, Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, models.MemberRoleReviewer, member.Role)
	assert.Equal(t, models.MemberRoleReviewer, f.session(t, f.owner).RoleIn(f.org.ID))
}

func TestListUsers(t *testing.T) {
	f := newFixture(t)
	svc := NewOrganizationService(f.db, nopLogger())
	ctx := context.Background()
	admin := f.session(t, f.admin)
	f.user(t, "reviewer@example.org", models.MemberRoleReviewer)

	page, err := svc.ListUsers(ctx, admin, f.org.ID, MemberFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, 20, page.PageSize)

	page, err = svc.ListUsers(ctx, admin, f.org.ID, MemberFilter{Role: models.MemberRoleMember})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	for _, m := range page.Items {
		assert.Equal(t, models.MemberRoleMember, m.Role)
	}

	page, err = svc.ListUsers(ctx, admin, f.org.ID, MemberFilter{Search: "REVIEW"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "reviewer@example.org", page.Items[0].Email)

	page, err = svc.ListUsers(ctx, admin, f.org.ID, MemberFilter{Pagination: Pagination{Page: 2, PageSize: 3}})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
	assert.Len(t, page.Items, 1)

	_, err = svc.ListUsers(ctx, admin, f.org.ID, MemberFilter{Role: "GUEST"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.ListUsers(ctx, f.session(t, f.owner), f.org.ID, MemberFilter{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	svc := NewOrganizationService(f.db, nopLogger())
	ctx := context.Background()
	admin := f.session(t, f.admin)

	var verr *ValidationError
	require.ErrorAs(t, svc.RemoveMember(ctx, admin, f.org.ID, f.admin.ID), &verr)
	assert.ErrorIs(t, svc.RemoveMember(ctx, f.session(t, f.owner), f.org.ID, f.other.ID), ErrForbidden)

	require.NoError(t, svc.RemoveMember(ctx, admin, f.org.ID, f.other.ID))
	assert.False(t, f.session(t, f.other).IsMemberOf(f.org.ID))
	assert.ErrorIs(t, svc.RemoveMember(ctx, admin, f.org.ID, f.other.ID), ErrNotFound)
}
