package models

import (
	"time"

	"gorm.io/gorm"
)

// UserRole ist die globale Rolle eines Benutzers (unabhängig von Organisationen).
type UserRole string

const (
	UserRoleUser  UserRole = "USER"
	UserRoleAdmin UserRole = "ADMIN"
)

// User repräsentiert ein registriertes Konto (Autor, Reviewer, Administrator).
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name         string   `json:"name" gorm:"not null"`
	Email        string   `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string   `json:"-"`
	Role         UserRole `json:"role" gorm:"size:16;default:'USER';not null"`
	IsActive     bool     `json:"is_active" gorm:"not null"`

	Phone           string     `json:"phone,omitempty"`
	Institution     string     `json:"institution,omitempty"`
	StateID         *string    `json:"state_id,omitempty" gorm:"size:36"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// Account verknüpft einen Benutzer mit einem externen OAuth-Provider-Konto.
type Account struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at"`

	UserID            string `json:"user_id" gorm:"size:36;index;not null"`
	Provider          string `json:"provider" gorm:"size:64;uniqueIndex:idx_accounts_provider_account;not null"`
	ProviderAccountID string `json:"provider_account_id" gorm:"size:255;uniqueIndex:idx_accounts_provider_account;not null"`
}

func (Account) TableName() string { return "accounts" }

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
