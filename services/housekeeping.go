package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-portal/models"
)

// Housekeeper räumt regelmäßig auf: abgelaufene Tokens deaktivieren, alte Login-Logs löschen.
// Die Token-Gültigkeit hängt nie davon ab, sie wird bei jeder Prüfung anhand von ExpiresAt bewertet.
type Housekeeper struct {
	DB            *gorm.DB
	Logger        *zap.Logger
	RetentionDays int
	now           func() time.Time
}

func NewHousekeeper(db *gorm.DB, retentionDays int, log *zap.Logger) *Housekeeper {
	return &Housekeeper{DB: db, Logger: log, RetentionDays: retentionDays, now: time.Now}
}

// HousekeepingResult zählt die betroffenen Zeilen eines Laufs.
type HousekeepingResult struct {
	TokensDeactivated int64
	LoginLogsDeleted  int64
}

// Run führt einen Aufräumlauf aus.
func (h *Housekeeper) Run(ctx context.Context) (HousekeepingResult, error) {
	var result HousekeepingResult
	now := h.now()
	db := h.DB.WithContext(ctx)

	res := db.Model(&models.OrganizationToken{}).
		Where("is_active = ? AND expires_at <= ?", true, now).
		Update("is_active", false)
	if res.Error != nil {
		return result, fmt.Errorf("deactivate expired tokens: %w", res.Error)
	}
	result.TokensDeactivated = res.RowsAffected

	if h.RetentionDays > 0 {
		cutoff := now.AddDate(0, 0, -h.RetentionDays)
		res = db.Where("created_at < ?", cutoff).Delete(&models.LoginLog{})
		if res.Error != nil {
			return result, fmt.Errorf("purge login logs: %w", res.Error)
		}
		result.LoginLogsDeleted = res.RowsAffected
	}
	return result, nil
}

// Schedule registriert den Lauf im Cron-Scheduler.
func (h *Housekeeper) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		h.Logger.Info("Running scheduled housekeeping...")
		result, err := h.Run(context.Background())
		if err != nil {
			h.Logger.Error("Housekeeping failed", zap.Error(err))
			return
		}
		h.Logger.Info("Housekeeping finished",
			zap.Int64("tokens_deactivated", result.TokensDeactivated),
			zap.Int64("login_logs_deleted", result.LoginLogsDeleted))
	})
	if err != nil {
		return 0, fmt.Errorf("schedule housekeeping %q: %w", spec, err)
	}
	return id, nil
}
