package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"paper-portal/auth"
	"paper-portal/models"
)

// TokenValidation ist das Ergebnis der Token-Prüfung.
// Valid=false: Token unbrauchbar. Valid=true, Active=false: gültig, aber (noch) nicht nutzbar für Einreichungen.
type TokenValidation struct {
	Valid         bool        `json:"valid"`
	Active        bool        `json:"active"`
	Message       string      `json:"message"`
	Status        string      `json:"status,omitempty"`
	DaysRemaining int         `json:"daysRemaining,omitempty"`
	Organization  *TokenOrg   `json:"organization,omitempty"`
	Event         *TokenEvent `json:"event,omitempty"`
	token         *models.OrganizationToken
}

type TokenOrg struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type TokenEvent struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	SubmissionStart *time.Time `json:"submissionStart,omitempty"`
	SubmissionEnd   *time.Time `json:"submissionEnd,omitempty"`
}

func invalidToken(msg string) *TokenValidation {
	return &TokenValidation{Valid: false, Message: msg}
}

// TokenService verwaltet Registrierungs-Tokens von Organisationen.
type TokenService struct {
	DB     *gorm.DB
	Logger *zap.Logger
	now    func() time.Time
}

func NewTokenService(db *gorm.DB, log *zap.Logger) *TokenService {
	return &TokenService{DB: db, Logger: log, now: time.Now}
}

// Validate prüft ein Token in fester Reihenfolge.
func (s *TokenService) Validate(ctx context.Context, token string) (*TokenValidation, error) {
	return s.validate(s.DB.WithContext(ctx), token)
}

func (s *TokenService) validate(db *gorm.DB, raw string) (*TokenValidation, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return invalidToken("token is required"), nil
	}
	var token models.OrganizationToken
	err := db.Preload("Organization").Preload("Event").Where("token = ?", raw).Take(&token).Error
	if err != nil {
		if isRecordNotFound(err) {
			return invalidToken("token not found"), nil
		}
		return nil, fmt.Errorf("load token: %w", err)
	}
	now := s.now()

	if !token.IsActive {
		return invalidToken("token has been revoked"), nil
	}
	if !token.ExpiresAt.After(now) {
		return invalidToken("token has expired"), nil
	}
	if token.MaxUses > 0 && token.UsageCount >= token.MaxUses {
		return invalidToken("token usage limit reached"), nil
	}
	if token.Organization == nil || !token.Organization.IsActive {
		return invalidToken("organization is not active"), nil
	}

	result := &TokenValidation{
		Valid:        true,
		Active:       true,
		Message:      "token is valid",
		Organization: &TokenOrg{ID: token.Organization.ID, Name: token.Organization.Name, Slug: token.Organization.Slug},
		token:        &token,
	}
	if token.EventID == nil {
		return result, nil
	}
	if token.Event == nil || !token.Event.IsActive {
		return invalidToken("event is not active"), nil
	}
	event := token.Event
	result.Event = &TokenEvent{ID: event.ID, Name: event.Name, SubmissionStart: event.SubmissionStart, SubmissionEnd: event.SubmissionEnd}

	if event.SubmissionStart == nil && event.SubmissionEnd == nil {
		return result, nil
	}
	window := SubmissionWindow(event, now)
	result.Status = window.Status
	result.DaysRemaining = window.DaysRemaining
	switch window.Status {
	case WindowUpcoming:
		result.Active = false
		result.Message = fmt.Sprintf("submissions open in %d days", window.DaysRemaining)
	case WindowClosed:
		result.Active = false
		result.Message = "submission period has ended"
	default:
		if event.SubmissionEnd != nil {
			result.Message = fmt.Sprintf("submissions open, %d days remaining", window.DaysRemaining)
		}
	}
	return result, nil
}

// redeem validiert das Token innerhalb der Transaktion, fügt den Benutzer als MEMBER hinzu
// (bestehende Mitgliedschaften bleiben unverändert) und erhöht den Nutzungszähler.
func (s *TokenService) redeem(tx *gorm.DB, raw, userID string) (*TokenValidation, error) {
	v, err := s.validate(tx, raw)
	if err != nil {
		return nil, err
	}
	if !v.Valid {
		return v, invalid("token", v.Message)
	}
	member := models.OrganizationMember{OrganizationID: v.token.OrganizationID, UserID: userID, Role: models.MemberRoleMember}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&member).Error; err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	if err := tx.Model(&models.OrganizationToken{}).Where("id = ?", v.token.ID).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error; err != nil {
		return nil, fmt.Errorf("count token usage: %w", err)
	}
	return v, nil
}

// Join: ein angemeldeter Benutzer tritt mit einem Token der Organisation bei.
func (s *TokenService) Join(ctx context.Context, sess *auth.Session, raw string) (*TokenValidation, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	var result *TokenValidation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := s.redeem(tx, raw, sess.UserID)
		result = v
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("User joined organization via token",
		zap.String("user_id", sess.UserID), zap.String("organization_id", result.Organization.ID))
	return result, nil
}

// TokenInput beschreibt ein neues Token.
type TokenInput struct {
	OrganizationID string     `json:"organizationId"`
	EventID        *string    `json:"eventId"`
	Description    string     `json:"description"`
	ExpiresAt      *time.Time `json:"expiresAt"`
	MaxUses        int        `json:"maxUses"`
}

// Create erzeugt ein zufälliges, URL-sicheres Token (ADMIN/MANAGER).
func (s *TokenService) Create(ctx context.Context, sess *auth.Session, in TokenInput) (*models.OrganizationToken, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if in.OrganizationID == "" {
		return nil, invalid("organizationId", "is required")
	}
	if !canManage(sess, in.OrganizationID) {
		return nil, forbidden("requires ADMIN or MANAGER role")
	}
	verr := &ValidationError{}
	if in.ExpiresAt == nil {
		verr.Add("expiresAt", "is required")
	} else if !in.ExpiresAt.After(s.now()) {
		verr.Add("expiresAt", "must be in the future")
	}
	if in.MaxUses < 0 {
		verr.Add("maxUses", "must not be negative")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	if in.EventID != nil && *in.EventID != "" {
		var event models.Event
		if err := db.First(&event, "id = ?", *in.EventID).Error; err != nil {
			return nil, notFound(err, "event")
		}
		if event.OrganizationID != in.OrganizationID {
			return nil, invalid("eventId", "event belongs to another organization")
		}
	} else {
		in.EventID = nil
	}
	value, err := randomToken()
	if err != nil {
		return nil, err
	}
	token := models.OrganizationToken{
		Token:          value,
		OrganizationID: in.OrganizationID,
		EventID:        in.EventID,
		Description:    strings.TrimSpace(in.Description),
		IsActive:       true,
		ExpiresAt:      *in.ExpiresAt,
		MaxUses:        in.MaxUses,
		CreatedByID:    sess.UserID,
	}
	if err := db.Create(&token).Error; err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}
	s.Logger.Info("Organization token created", zap.String("token_id", token.ID), zap.String("organization_id", token.OrganizationID))
	return &token, nil
}

// List liefert die Tokens einer Organisation, neueste zuerst.
func (s *TokenService) List(ctx context.Context, sess *auth.Session, orgID string) ([]models.OrganizationToken, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if !canManage(sess, orgID) {
		return nil, forbidden("requires ADMIN or MANAGER role")
	}
	var tokens []models.OrganizationToken
	if err := s.DB.WithContext(ctx).Preload("Event").Where("organization_id = ?", orgID).
		Order("created_at DESC").Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return tokens, nil
}

// Revoke deaktiviert ein Token.
func (s *TokenService) Revoke(ctx context.Context, sess *auth.Session, tokenID string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	var token models.OrganizationToken
	if err := s.DB.WithContext(ctx).First(&token, "id = ?", tokenID).Error; err != nil {
		return notFound(err, "token")
	}
	if !canManage(sess, token.OrganizationID) {
		return forbidden("requires ADMIN or MANAGER role")
	}
	if err := s.DB.WithContext(ctx).Model(&token).Update("is_active", false).Error; err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// randomToken liefert 24 zufällige Bytes, base64url-kodiert.
func randomToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
