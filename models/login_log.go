package models

import (
	"time"

	"gorm.io/gorm"
)

// LoginLog protokolliert jeden Anmeldeversuch, erfolgreich oder nicht.
type LoginLog struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`

	UserID    *string `json:"user_id,omitempty" gorm:"size:36;index"`
	Email     string  `json:"email" gorm:"index"`
	Provider  string  `json:"provider" gorm:"size:64"`
	Success   bool    `json:"success" gorm:"not null"`
	Reason    string  `json:"reason,omitempty" gorm:"size:64"`
	IPAddress string  `json:"ip_address,omitempty" gorm:"size:64"`
	UserAgent string  `json:"user_agent,omitempty"`
}

func (LoginLog) TableName() string { return "login_logs" }

func (l *LoginLog) BeforeCreate(tx *gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
