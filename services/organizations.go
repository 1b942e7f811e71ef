package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-portal/auth"
	"paper-portal/models"
)

// OrganizationService verwaltet Organisationen und ihre Mitglieder.
type OrganizationService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

func NewOrganizationService(db *gorm.DB, log *zap.Logger) *OrganizationService {
	return &OrganizationService{DB: db, Logger: log}
}

// OrganizationInput beschreibt eine neue Organisation.
type OrganizationInput struct {
	Name        string `json:"name" validate:"required,max=255"`
	Slug        string `json:"slug" validate:"max=128"`
	Description string `json:"description"`
}

// Create legt eine Organisation an; der Ersteller (globaler ADMIN) wird ihr ADMIN.
func (s *OrganizationService) Create(ctx context.Context, sess *auth.Session, in OrganizationInput) (*models.Organization, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if !sess.IsAdmin() {
		return nil, forbidden("only administrators can create organizations")
	}
	in.Name = cleanText(in.Name)
	if err := validateStruct(&in); err != nil {
		return nil, err
	}
	org := models.Organization{
		Name:        in.Name,
		Slug:        slugify(in.Slug),
		Description: strings.TrimSpace(in.Description),
		IsActive:    true,
	}
	if org.Slug == "" {
		org.Slug = slugify(in.Name)
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.Organization{}).Where("slug = ?", org.Slug).Count(&taken).Error; err != nil {
			return fmt.Errorf("check slug: %w", err)
		}
		if taken > 0 {
			return fmt.Errorf("%w: slug already in use", ErrConflict)
		}
		if err := tx.Create(&org).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: slug already in use", ErrConflict)
			}
			return fmt.Errorf("create organization: %w", err)
		}
		member := models.OrganizationMember{OrganizationID: org.ID, UserID: sess.UserID, Role: models.MemberRoleAdmin}
		if err := tx.Create(&member).Error; err != nil {
			return fmt.Errorf("add creator as admin: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("Organization created", zap.String("organization_id", org.ID), zap.String("slug", org.Slug))
	return &org, nil
}

// OrganizationWithRole ist eine Organisation aus Sicht des angemeldeten Benutzers.
type OrganizationWithRole struct {
	models.Organization
	Role models.MemberRole `json:"role"`
}

// ListMine liefert die Organisationen des Benutzers (für globale ADMINs alle).
func (s *OrganizationService) ListMine(ctx context.Context, sess *auth.Session) ([]OrganizationWithRole, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	query := s.DB.WithContext(ctx).Model(&models.Organization{}).Order("name")
	if !sess.IsAdmin() {
		query = query.Where("id IN (?)", s.DB.Model(&models.OrganizationMember{}).Select("organization_id").Where("user_id = ?", sess.UserID))
	}
	var orgs []models.Organization
	if err := query.Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	out := make([]OrganizationWithRole, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, OrganizationWithRole{Organization: o, Role: sess.RoleIn(o.ID)})
	}
	return out, nil
}

// MemberFilter schränkt die Mitgliederliste ein.
type MemberFilter struct {
	Search string            `form:"search"`
	Role   models.MemberRole `form:"role"`
	Pagination
}

// MemberView ist eine Zeile der Mitgliederverwaltung.
type MemberView struct {
	UserID      string            `json:"userId"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Institution string            `json:"institution,omitempty"`
	IsActive    bool              `json:"isActive"`
	Role        models.MemberRole `json:"role"`
	JoinedAt    time.Time         `json:"joinedAt"`
}

// ListUsers listet die Mitglieder einer Organisation (ADMIN/MANAGER).
func (s *OrganizationService) ListUsers(ctx context.Context, sess *auth.Session, orgID string, f MemberFilter) (Page[MemberView], error) {
	if err := requireSession(sess); err != nil {
		return Page[MemberView]{}, err
	}
	if orgID == "" {
		return Page[MemberView]{}, invalid("organizationId", "is required")
	}
	if !canManage(sess, orgID) {
		return Page[MemberView]{}, forbidden("requires ADMIN or MANAGER role")
	}
	p := f.Pagination.normalize()

	query := s.DB.WithContext(ctx).Table("organization_members AS m").
		Joins("JOIN users u ON u.id = m.user_id").
		Where("m.organization_id = ?", orgID)
	if f.Role != "" {
		if !f.Role.Valid() {
			return Page[MemberView]{}, invalid("role", "unknown role")
		}
		query = query.Where("m.role = ?", f.Role)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where("(LOWER(u.name) LIKE ? OR LOWER(u.email) LIKE ?)", like, like)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return Page[MemberView]{}, fmt.Errorf("count members: %w", err)
	}
	var rows []MemberView
	err := query.
		Select("u.id AS user_id, u.name, u.email, u.institution, u.is_active, m.role, m.created_at AS joined_at").
		Order("u.name ASC").Offset(p.offset()).Limit(p.PageSize).
		Scan(&rows).Error
	if err != nil {
		return Page[MemberView]{}, fmt.Errorf("list members: %w", err)
	}
	return newPage(rows, total, p), nil
}

// ChangeRoleInput ist die Anfrage zum Rollenwechsel; das Passwort des Anfragenden bestätigt sie.
type ChangeRoleInput struct {
	OrganizationID string            `json:"organizationId"`
	Role           models.MemberRole `json:"role"`
	Password       string            `json:"password"`
}

// ChangeRole ändert die Rolle eines Mitglieds. Prüfreihenfolge: eigene Rolle, ADMIN-Recht, Passwort, Rolle, Mitgliedschaft.
func (s *OrganizationService) ChangeRole(ctx context.Context, sess *auth.Session, targetUserID string, in ChangeRoleInput) (*models.OrganizationMember, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if targetUserID == sess.UserID {
		return nil, ErrCannotChangeOwnRole
	}
	if !isOrgAdmin(sess, in.OrganizationID) {
		return nil, forbidden("requires ADMIN role")
	}
	db := s.DB.WithContext(ctx)
	var requester models.User
	if err := db.First(&requester, "id = ?", sess.UserID).Error; err != nil {
		return nil, notFound(err, "user")
	}
	if err := auth.VerifyPassword(requester.PasswordHash, in.Password); err != nil {
		return nil, ErrInvalidPassword
	}
	if !in.Role.Valid() {
		return nil, invalid("role", "unknown role")
	}
	var member models.OrganizationMember
	if err := db.Where("organization_id = ? AND user_id = ?", in.OrganizationID, targetUserID).Take(&member).Error; err != nil {
		return nil, notFound(err, "member")
	}
	previous := member.Role
	if err := db.Model(&member).Update("role", in.Role).Error; err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	s.Logger.Info("Member role changed",
		zap.String("organization_id", in.OrganizationID),
		zap.String("user_id", targetUserID),
		zap.String("from", string(previous)),
		zap.String("to", string(in.Role)),
		zap.String("by", sess.UserID))
	return &member, nil
}

// RemoveMember entfernt ein Mitglied (ADMIN, nicht sich selbst).
func (s *OrganizationService) RemoveMember(ctx context.Context, sess *auth.Session, orgID, userID string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if userID == sess.UserID {
		return invalid("userId", "cannot remove yourself")
	}
	if !isOrgAdmin(sess, orgID) {
		return forbidden("requires ADMIN role")
	}
	res := s.DB.WithContext(ctx).Where("organization_id = ? AND user_id = ?", orgID, userID).Delete(&models.OrganizationMember{})
	if res.Error != nil {
		return fmt.Errorf("remove member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: member", ErrNotFound)
	}
	s.Logger.Info("Member removed", zap.String("organization_id", orgID), zap.String("user_id", userID), zap.String("by", sess.UserID))
	return nil
}
