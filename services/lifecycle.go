package services

import (
	"fmt"

	"paper-portal/models"
)

// Actor ist die Rolle, in der jemand einen Statuswechsel auslöst.
type Actor string

const (
	// ActorOwner ist der einreichende Autor
	ActorOwner Actor = "owner"
	// ActorStaff ist ADMIN/MANAGER/REVIEWER der Organisation oder globaler ADMIN
	ActorStaff Actor = "staff"
)

const (
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeForbiddenActor    = "FORBIDDEN_ACTOR"
)

// TransitionError beschreibt einen abgelehnten Statuswechsel.
type TransitionError struct {
	Code    string
	From    models.PaperStatus
	To      models.PaperStatus
	Message string
}

func (e *TransitionError) Error() string { return e.Message }

// Unwrap ordnet den Fehler den Sentinels zu (FORBIDDEN_ACTOR -> ErrForbidden).
func (e *TransitionError) Unwrap() error {
	if e.Code == CodeForbiddenActor {
		return ErrForbidden
	}
	return ErrInvalidTransition
}

// transitions: Ausgangsstatus -> Zielstatus -> Akteure, die den Wechsel auslösen dürfen.
// UNDER_REVIEW -> REVISION_REQUIRED gilt nur für Events mit UsesRevisionStatus.
var transitions = map[models.PaperStatus]map[models.PaperStatus][]Actor{
	models.StatusDraft: {
		models.StatusPending:   {ActorOwner},
		models.StatusWithdrawn: {ActorOwner, ActorStaff},
	},
	models.StatusPending: {
		models.StatusUnderReview: {ActorStaff},
		models.StatusWithdrawn:   {ActorOwner, ActorStaff},
	},
	models.StatusUnderReview: {
		models.StatusRevisionRequired: {ActorStaff},
		models.StatusAccepted:         {ActorStaff},
		models.StatusRejected:         {ActorStaff},
		models.StatusWithdrawn:        {ActorOwner, ActorStaff},
	},
	models.StatusRevisionRequired: {
		models.StatusUnderReview: {ActorOwner, ActorStaff},
		models.StatusWithdrawn:   {ActorOwner, ActorStaff},
	},
	models.StatusAccepted: {
		models.StatusPublished: {ActorStaff},
	},
	models.StatusRejected:  {},
	models.StatusPublished: {},
	models.StatusWithdrawn: {},
}

// CanTransition meldet, ob der Graph die Kante from -> to enthält.
func CanTransition(from, to models.PaperStatus, usesRevision bool) bool {
	if to == models.StatusRevisionRequired && !usesRevision {
		return false
	}
	_, ok := transitions[from][to]
	return ok
}

// Transition prüft Kante und Akteur; nil bedeutet, der Wechsel ist erlaubt.
func Transition(from, to models.PaperStatus, actor Actor, usesRevision bool) error {
	if !to.Valid() {
		return &TransitionError{Code: CodeInvalidTransition, From: from, To: to,
			Message: fmt.Sprintf("unknown status %q", to)}
	}
	if !CanTransition(from, to, usesRevision) {
		return &TransitionError{Code: CodeInvalidTransition, From: from, To: to,
			Message: fmt.Sprintf("transition %s -> %s is not allowed", from, to)}
	}
	for _, a := range transitions[from][to] {
		if a == actor {
			return nil
		}
	}
	return &TransitionError{Code: CodeForbiddenActor, From: from, To: to,
		Message: fmt.Sprintf("%s may not change status %s -> %s", actor, from, to)}
}

// NextStatuses listet die für den Akteur erreichbaren Zustände.
func NextStatuses(from models.PaperStatus, actor Actor, usesRevision bool) []models.PaperStatus {
	var out []models.PaperStatus
	for _, to := range models.AllStatuses {
		if Transition(from, to, actor, usesRevision) == nil {
			out = append(out, to)
		}
	}
	return out
}

// OwnerCanEdit meldet, ob der Autor das Paper im Status noch bearbeiten darf.
func OwnerCanEdit(s models.PaperStatus) bool {
	switch s {
	case models.StatusDraft, models.StatusPending, models.StatusRevisionRequired:
		return true
	}
	return false
}

// IsTerminal meldet Zustände ohne ausgehende Kanten.
func IsTerminal(s models.PaperStatus) bool {
	return len(transitions[s]) == 0
}
