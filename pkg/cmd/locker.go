package cmd

import (
	"log/slog"

	"github.com/vantagecrm/leadflow/pkg/lock"
)

// NewLocker builds the instance locker. A Redis URL extends mutual
// exclusion across processes; without one, locking is process-local.
func NewLocker(redisURL string, logger *slog.Logger) lock.Locker {
	if redisURL == "" {
		logger.Warn("No redis url configured, instance locks are process-local")

		return lock.NewLocalLocker()
	}

	locker, err := lock.NewRedisLocker(redisURL)
	if err != nil {
		logger.Error("Failed to initialize redis locker", "error", err)
		panic(err)
	}

	return locker
}
