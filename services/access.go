package services

import (
	"paper-portal/auth"
	"paper-portal/models"
)

// requireSession liefert ErrUnauthenticated für anonyme Anfragen.
func requireSession(s *auth.Session) error {
	if s == nil || s.UserID == "" {
		return ErrUnauthenticated
	}
	return nil
}

// isOrgAdmin: ADMIN der Organisation oder globaler ADMIN.
func isOrgAdmin(s *auth.Session, orgID string) bool {
	return s.IsAdmin() || s.HasOrgRole(orgID, models.MemberRoleAdmin)
}

// canManage: ADMIN/MANAGER der Organisation oder globaler ADMIN.
func canManage(s *auth.Session, orgID string) bool {
	return s.IsAdmin() || s.HasOrgRole(orgID, models.MemberRoleAdmin, models.MemberRoleManager)
}

// isOrgStaff: zusätzlich REVIEWER.
func isOrgStaff(s *auth.Session, orgID string) bool {
	return s.IsAdmin() || s.HasOrgRole(orgID, models.MemberRoleAdmin, models.MemberRoleManager, models.MemberRoleReviewer)
}

// canAccessOrg: beliebige Mitgliedschaft oder globaler ADMIN.
func canAccessOrg(s *auth.Session, orgID string) bool {
	return s.IsAdmin() || s.IsMemberOf(orgID)
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination beschreibt eine angeforderte Seite (1-basiert).
type Pagination struct {
	Page     int `form:"page" json:"page"`
	PageSize int `form:"pageSize" json:"pageSize"`
}

func (p Pagination) normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p
}

func (p Pagination) offset() int {
	return (p.Page - 1) * p.PageSize
}

// Page ist eine Ergebnisseite mit Gesamtanzahl.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

func newPage[T any](items []T, total int64, p Pagination) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize}
}
