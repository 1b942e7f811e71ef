package models

import (
	"time"

	"gorm.io/gorm"
)

// MemberRole ist die Rolle eines Benutzers innerhalb einer Organisation.
type MemberRole string

const (
	MemberRoleAdmin    MemberRole = "ADMIN"
	MemberRoleManager  MemberRole = "MANAGER"
	MemberRoleReviewer MemberRole = "REVIEWER"
	MemberRoleMember   MemberRole = "MEMBER"
)

// Valid meldet, ob r eine bekannte Organisationsrolle ist.
func (r MemberRole) Valid() bool {
	switch r {
	case MemberRoleAdmin, MemberRoleManager, MemberRoleReviewer, MemberRoleMember:
		return true
	}
	return false
}

// Organization ist die ausrichtende Institution einer oder mehrerer Veranstaltungen.
type Organization struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string `json:"name" gorm:"not null"`
	Slug        string `json:"slug" gorm:"uniqueIndex;not null"`
	Description string `json:"description,omitempty" gorm:"type:text"`
	IsActive    bool   `json:"is_active" gorm:"not null"`
}

func (Organization) TableName() string { return "organizations" }

func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrganizationMember ist die Zuordnung User <-> Organization mit Rolle.
type OrganizationMember struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrganizationID string     `json:"organization_id" gorm:"size:36;uniqueIndex:idx_org_members_org_user;not null"`
	UserID         string     `json:"user_id" gorm:"size:36;uniqueIndex:idx_org_members_org_user;index;not null"`
	Role           MemberRole `json:"role" gorm:"size:16;default:'MEMBER';not null"`

	User         *User         `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Organization *Organization `json:"organization,omitempty" gorm:"foreignKey:OrganizationID"`
}

func (OrganizationMember) TableName() string { return "organization_members" }

func (m *OrganizationMember) BeforeCreate(tx *gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

// OrganizationToken erlaubt die Selbstregistrierung in eine Organisation (optional an ein Event gebunden).
type OrganizationToken struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Token          string    `json:"token" gorm:"uniqueIndex;size:128;not null"`
	OrganizationID string    `json:"organization_id" gorm:"size:36;index;not null"`
	EventID        *string   `json:"event_id,omitempty" gorm:"size:36;index"`
	Description    string    `json:"description,omitempty"`
	IsActive       bool      `json:"is_active" gorm:"not null"`
	ExpiresAt      time.Time `json:"expires_at" gorm:"index;not null"`
	MaxUses        int       `json:"max_uses" gorm:"default:0"` // 0 = unbegrenzt
	UsageCount     int       `json:"usage_count" gorm:"default:0"`
	CreatedByID    string    `json:"created_by_id" gorm:"size:36"`

	Organization *Organization `json:"organization,omitempty" gorm:"foreignKey:OrganizationID"`
	Event        *Event        `json:"event,omitempty" gorm:"foreignKey:EventID"`
}

func (OrganizationToken) TableName() string { return "organization_tokens" }

func (t *OrganizationToken) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
