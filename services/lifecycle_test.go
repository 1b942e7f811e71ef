package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-portal/models"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name         string
		from, to     models.PaperStatus
		actor        Actor
		usesRevision bool
		wantCode     string
	}{
		{"owner submits draft", models.StatusDraft, models.StatusPending, ActorOwner, false, ""},
		{"staff cannot submit for owner", models.StatusDraft, models.StatusPending, ActorStaff, false, CodeForbiddenActor},
		{"staff starts review", models.StatusPending, models.StatusUnderReview, ActorStaff, false, ""},
		{"owner cannot start review", models.StatusPending, models.StatusUnderReview, ActorOwner, false, CodeForbiddenActor},
		{"revision with flag", models.StatusUnderReview, models.StatusRevisionRequired, ActorStaff, true, ""},
		{"revision without flag", models.StatusUnderReview, models.StatusRevisionRequired, ActorStaff, false, CodeInvalidTransition},
		{"owner resubmits revision", models.StatusRevisionRequired, models.StatusUnderReview, ActorOwner, true, ""},
		{"accept", models.StatusUnderReview, models.StatusAccepted, ActorStaff, false, ""},
		{"reject", models.StatusUnderReview, models.StatusRejected, ActorStaff, false, ""},
		{"owner cannot accept", models.StatusUnderReview, models.StatusAccepted, ActorOwner, false, CodeForbiddenActor},
		{"publish", models.StatusAccepted, models.StatusPublished, ActorStaff, false, ""},
		{"draft to accepted", models.StatusDraft, models.StatusAccepted, ActorStaff, false, CodeInvalidTransition},
		{"pending back to draft", models.StatusPending, models.StatusDraft, ActorOwner, false, CodeInvalidTransition},
		{"owner withdraws under review", models.StatusUnderReview, models.StatusWithdrawn, ActorOwner, false, ""},
		{"withdraw accepted", models.StatusAccepted, models.StatusWithdrawn, ActorOwner, false, CodeInvalidTransition},
		{"rejected is terminal", models.StatusRejected, models.StatusUnderReview, ActorStaff, false, CodeInvalidTransition},
		{"withdrawn is terminal", models.StatusWithdrawn, models.StatusDraft, ActorStaff, false, CodeInvalidTransition},
		{"unknown target", models.StatusDraft, models.PaperStatus("ARCHIVED"), ActorStaff, false, CodeInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Transition(tt.from, tt.to, tt.actor, tt.usesRevision)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			var terr *TransitionError
			require.True(t, errors.As(err, &terr))
			assert.Equal(t, tt.wantCode, terr.Code)
		})
	}
}

func TestTransitionErrorUnwrap(t *testing.T) {
	err := Transition(models.StatusDraft, models.StatusPublished, ActorStaff, false)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = Transition(models.StatusPending, models.StatusUnderReview, ActorOwner, false)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestNextStatuses(t *testing.T) {
	assert.Equal(t,
		[]models.PaperStatus{models.StatusPending, models.StatusWithdrawn},
		NextStatuses(models.StatusDraft, ActorOwner, false))
	assert.Equal(t,
		[]models.PaperStatus{models.StatusRevisionRequired, models.StatusAccepted, models.StatusRejected, models.StatusWithdrawn},
		NextStatuses(models.StatusUnderReview, ActorStaff, true))
	assert.Empty(t, NextStatuses(models.StatusPublished, ActorStaff, true))
}

func TestOwnerCanEditAndTerminal(t *testing.T) {
	for _, s := range models.AllStatuses {
		switch s {
		case models.StatusDraft, models.StatusPending, models.StatusRevisionRequired:
			assert.True(t, OwnerCanEdit(s), s)
		default:
			assert.False(t, OwnerCanEdit(s), s)
		}
	}
	assert.True(t, IsTerminal(models.StatusRejected))
	assert.True(t, IsTerminal(models.StatusPublished))
	assert.True(t, IsTerminal(models.StatusWithdrawn))
	assert.False(t, IsTerminal(models.StatusAccepted))
}
