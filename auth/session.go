package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"paper-portal/models"
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrMissingSecret  = errors.New("session secret is empty")
)

// Claims sind die Inhalte eines Session-Tokens.
type Claims struct {
	Role models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// SessionIssuer stellt signierte Session-Tokens aus und prüft sie.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionIssuer erstellt einen HS256-Issuer. Ohne Schlüssel stellt er keine Tokens aus
// und akzeptiert keine.
func NewSessionIssuer(secret string, ttl time.Duration) *SessionIssuer {
	return &SessionIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue erzeugt ein Token für den Benutzer.
func (s *SessionIssuer) Issue(user *models.User) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, ErrMissingSecret
	}
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Parse prüft Signatur und Ablauf und liefert die Claims.
func (s *SessionIssuer) Parse(token string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, ErrInvalidSession
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// Session ist der authentifizierte Kontext einer Anfrage.
type Session struct {
	UserID      string
	Email       string
	Name        string
	Role        models.UserRole
	Memberships map[string]models.MemberRole // organizationID -> Rolle
}

// IsAdmin meldet die globale Administratorrolle.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == models.UserRoleAdmin
}

// RoleIn liefert die Rolle in einer Organisation ("" ohne Mitgliedschaft).
func (s *Session) RoleIn(orgID string) models.MemberRole {
	if s == nil {
		return ""
	}
	return s.Memberships[orgID]
}

// HasOrgRole meldet, ob der Benutzer eine der Rollen in der Organisation hat.
func (s *Session) HasOrgRole(orgID string, roles ...models.MemberRole) bool {
	current := s.RoleIn(orgID)
	if current == "" {
		return false
	}
	for _, r := range roles {
		if current == r {
			return true
		}
	}
	return false
}

// IsMemberOf meldet eine beliebige Mitgliedschaft.
func (s *Session) IsMemberOf(orgID string) bool {
	return s.RoleIn(orgID) != ""
}
