package logging

import (
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/models"
	"gorm.io/gorm"
)

// StartCleanup runs a daily goroutine that deletes system_logs older than retention.
func StartCleanup(db *gorm.DB, retention time.Duration, done chan struct{}) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := Prune(db, time.Now().Add(-retention)); err != nil {
					slog.Error("log cleanup failed", "action", "log_cleanup", "error", err)
				}
			case <-done:
				return
			}
		}
	}()
}

// Prune deletes log rows written before cutoff.
func Prune(db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		slog.Info("log cleanup completed", "deleted", result.RowsAffected)
	}
	return result.RowsAffected, nil
}
