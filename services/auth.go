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

// Gründe für fehlgeschlagene Anmeldungen im LoginLog
const (
	ReasonUnknownEmail = "unknown_email"
	ReasonBadPassword  = "bad_password"
	ReasonInactive     = "inactive"

	ProviderCredentials = "credentials"
)

// AuthService kümmert sich um Registrierung, Anmeldung, Login-Protokoll und verknüpfte Konten.
type AuthService struct {
	DB       *gorm.DB
	Logger   *zap.Logger
	Sessions *auth.SessionIssuer
	Tokens   *TokenService
	now      func() time.Time
}

func NewAuthService(db *gorm.DB, sessions *auth.SessionIssuer, tokens *TokenService, log *zap.Logger) *AuthService {
	return &AuthService{DB: db, Logger: log, Sessions: sessions, Tokens: tokens, now: time.Now}
}

// LoadSession lädt einen aktiven Benutzer samt Mitgliedschaften.
func LoadSession(db *gorm.DB, userID string) (*auth.Session, error) {
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("load session user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrUnauthenticated
	}
	var members []models.OrganizationMember
	if err := db.Where("user_id = ?", user.ID).Find(&members).Error; err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}
	sess := &auth.Session{
		UserID:      user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Role:        user.Role,
		Memberships: make(map[string]models.MemberRole, len(members)),
	}
	for _, m := range members {
		sess.Memberships[m.OrganizationID] = m.Role
	}
	return sess, nil
}

// RegisterInput sind die Angaben bei der Selbstregistrierung.
type RegisterInput struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Email       string  `json:"email" validate:"required,email,max=255"`
	Password    string  `json:"password" validate:"required,min=8,max=72"`
	Token       string  `json:"token"`
	Phone       string  `json:"phone" validate:"max=32"`
	Institution string  `json:"institution" validate:"max=255"`
	StateID     *string `json:"stateId"`
}

// Register legt einen Benutzer an; mit Token tritt er in derselben Transaktion der Organisation bei.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Name = cleanText(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Institution = cleanText(in.Institution)
	if err := validateStruct(&in); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         models.UserRoleUser,
		IsActive:     true,
		Phone:        strings.TrimSpace(in.Phone),
		Institution:  in.Institution,
	}
	var joined *TokenValidation
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: email already registered", ErrConflict)
		}
		if in.StateID != nil && *in.StateID != "" {
			var state models.State
			if err := tx.First(&state, "id = ?", *in.StateID).Error; err != nil {
				if isRecordNotFound(err) {
					return invalid("stateId", "unknown state")
				}
				return fmt.Errorf("load state: %w", err)
			}
			user.StateID = &state.ID
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: email already registered", ErrConflict)
			}
			return fmt.Errorf("create user: %w", err)
		}
		if strings.TrimSpace(in.Token) == "" {
			return nil
		}
		v, err := s.Tokens.redeem(tx, in.Token, user.ID)
		joined = v
		return err
	})
	if err != nil {
		return nil, err
	}
	fields := []zap.Field{zap.String("user_id", user.ID)}
	if joined != nil {
		fields = append(fields, zap.String("organization_id", joined.Organization.ID))
	}
	s.Logger.Info("User registered", fields...)
	return &user, nil
}

// LoginMeta beschreibt die Herkunft eines Anmeldeversuchs.
type LoginMeta struct {
	IPAddress string
	UserAgent string
}

// LoginResult enthält das ausgestellte Session-Token.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// Login prüft die Zugangsdaten. Jeder Versuch wird im LoginLog protokolliert.
func (s *AuthService) Login(ctx context.Context, email, password string, meta LoginMeta) (*LoginResult, error) {
	email = normalizeEmail(email)
	entry := models.LoginLog{Email: email, Provider: ProviderCredentials, IPAddress: meta.IPAddress, UserAgent: meta.UserAgent}

	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	switch {
	case isRecordNotFound(err):
		entry.Reason = ReasonUnknownEmail
	case err != nil:
		return nil, fmt.Errorf("load user: %w", err)
	default:
		entry.UserID = &user.ID
		if !user.IsActive {
			entry.Reason = ReasonInactive
		} else if auth.VerifyPassword(user.PasswordHash, password) != nil {
			entry.Reason = ReasonBadPassword
		}
	}
	entry.Success = entry.Reason == ""
	s.audit(ctx, &entry)

	if !entry.Success {
		loginAttempts.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	}
	loginAttempts.WithLabelValues("success").Inc()

	token, expiresAt, err := s.Sessions.Issue(&user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: &user}, nil
}

// audit schreibt einen LoginLog-Eintrag; Fehler werden nur geloggt.
func (s *AuthService) audit(ctx context.Context, entry *models.LoginLog) {
	entry.CreatedAt = s.now()
	if err := s.DB.WithContext(ctx).Create(entry).Error; err != nil {
		s.Logger.Error("Failed to write login log", zap.String("email", entry.Email), zap.Error(err))
	}
}

// LoginHistory liefert die eigenen Anmeldeversuche, neueste zuerst.
func (s *AuthService) LoginHistory(ctx context.Context, sess *auth.Session, p Pagination) (Page[models.LoginLog], error) {
	if err := requireSession(sess); err != nil {
		return Page[models.LoginLog]{}, err
	}
	p = p.normalize()
	query := s.DB.WithContext(ctx).Model(&models.LoginLog{}).Where("user_id = ?", sess.UserID).Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return Page[models.LoginLog]{}, fmt.Errorf("count login logs: %w", err)
	}
	var logs []models.LoginLog
	if err := query.Order("created_at DESC").Offset(p.offset()).Limit(p.PageSize).Find(&logs).Error; err != nil {
		return Page[models.LoginLog]{}, fmt.Errorf("list login logs: %w", err)
	}
	return newPage(logs, total, p), nil
}

// ChangePasswordInput ist der Request zum Passwortwechsel.
type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
}

// ChangePassword setzt ein neues Passwort, wenn das aktuelle stimmt.
func (s *AuthService) ChangePassword(ctx context.Context, sess *auth.Session, in ChangePasswordInput) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if err := validateStruct(&in); err != nil {
		return err
	}
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", sess.UserID).Error; err != nil {
		return notFound(err, "user")
	}
	if err := auth.VerifyPassword(user.PasswordHash, in.CurrentPassword); err != nil {
		return ErrInvalidPassword
	}
	hash, err := auth.HashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Model(&user).Update("password_hash", hash).Error; err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.Logger.Info("Password changed", zap.String("user_id", user.ID))
	return nil
}

// AccountInput verknüpft ein externes Provider-Konto.
type AccountInput struct {
	Provider          string `json:"provider" validate:"required,max=64"`
	ProviderAccountID string `json:"providerAccountId" validate:"required,max=255"`
}

// LinkAccount verknüpft ein Provider-Konto mit dem angemeldeten Benutzer.
func (s *AuthService) LinkAccount(ctx context.Context, sess *auth.Session, in AccountInput) (*models.Account, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	in.Provider = strings.ToLower(strings.TrimSpace(in.Provider))
	in.ProviderAccountID = strings.TrimSpace(in.ProviderAccountID)
	if err := validateStruct(&in); err != nil {
		return nil, err
	}
	var account models.Account
	err := s.DB.WithContext(ctx).
		Where("provider = ? AND provider_account_id = ?", in.Provider, in.ProviderAccountID).
		Take(&account).Error
	switch {
	case err == nil && account.UserID == sess.UserID:
		return &account, nil
	case err == nil:
		return nil, fmt.Errorf("%w: account is linked to another user", ErrConflict)
	case !isRecordNotFound(err):
		return nil, fmt.Errorf("load account: %w", err)
	}
	account = models.Account{UserID: sess.UserID, Provider: in.Provider, ProviderAccountID: in.ProviderAccountID}
	if err := s.DB.WithContext(ctx).Create(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: account is linked to another user", ErrConflict)
		}
		return nil, fmt.Errorf("link account: %w", err)
	}
	return &account, nil
}

// UnlinkAccount entfernt alle Verknüpfungen zu einem Provider.
// Ohne Passwort darf die letzte Anmeldemöglichkeit nicht entfernt werden.
func (s *AuthService) UnlinkAccount(ctx context.Context, sess *auth.Session, provider string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", sess.UserID).Error; err != nil {
			return notFound(err, "user")
		}
		var accounts []models.Account
		if err := tx.Where("user_id = ?", user.ID).Find(&accounts).Error; err != nil {
			return fmt.Errorf("list accounts: %w", err)
		}
		remaining, matched := 0, 0
		for _, a := range accounts {
			if a.Provider == provider {
				matched++
			} else {
				remaining++
			}
		}
		if matched == 0 {
			return fmt.Errorf("%w: account", ErrNotFound)
		}
		if user.PasswordHash == "" && remaining == 0 {
			return invalid("provider", "cannot remove the last login method")
		}
		if err := tx.Where("user_id = ? AND provider = ?", user.ID, provider).Delete(&models.Account{}).Error; err != nil {
			return fmt.Errorf("unlink account: %w", err)
		}
		return nil
	})
}

// ListAccounts liefert die verknüpften Provider-Konten.
func (s *AuthService) ListAccounts(ctx context.Context, sess *auth.Session) ([]models.Account, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	var accounts []models.Account
	if err := s.DB.WithContext(ctx).Where("user_id = ?", sess.UserID).Order("provider").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// Membership ist eine Mitgliedschaft in der Session-Antwort.
type Membership struct {
	OrganizationID   string            `json:"organizationId"`
	OrganizationName string            `json:"organizationName"`
	OrganizationSlug string            `json:"organizationSlug"`
	Role             models.MemberRole `json:"role"`
}

// SessionInfo ist das Profil des angemeldeten Benutzers.
type SessionInfo struct {
	User        *models.User `json:"user"`
	Memberships []Membership `json:"memberships"`
}

// SessionInfo liefert Profil und Mitgliedschaften.
func (s *AuthService) SessionInfo(ctx context.Context, sess *auth.Session) (*SessionInfo, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", sess.UserID).Error; err != nil {
		return nil, notFound(err, "user")
	}
	var members []models.OrganizationMember
	if err := s.DB.WithContext(ctx).Preload("Organization").Where("user_id = ?", user.ID).
		Order("created_at").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}
	info := &SessionInfo{User: &user, Memberships: make([]Membership, 0, len(members))}
	for _, m := range members {
		ms := Membership{OrganizationID: m.OrganizationID, Role: m.Role}
		if m.Organization != nil {
			ms.OrganizationName = m.Organization.Name
			ms.OrganizationSlug = m.Organization.Slug
		}
		info.Memberships = append(info.Memberships, ms)
	}
	return info, nil
}

// States liefert die Bundesstaaten für Profilangaben.
func (s *AuthService) States(ctx context.Context) ([]models.State, error) {
	var states []models.State
	if err := s.DB.WithContext(ctx).Order("name").Find(&states).Error; err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	return states, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
