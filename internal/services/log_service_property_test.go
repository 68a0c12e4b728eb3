package services

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/tonojkeee/koordinator/internal/database/models"
)

func TestProperty_LogLevelFiltering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	db, cleanup := setupTestDB(t)
	defer cleanup()

	levels := map[string]int64{"DEBUG": 4, "INFO": 3, "WARN": 2, "ERROR": 1}
	names := []string{"DEBUG", "INFO", "WARN", "ERROR"}

	properties.Property("configured_level_drops_lower_levels", prop.ForAll(
		func(i int, userID uint) bool {
			level := names[i]
			db.Where("1 = 1").Delete(&models.Log{})

			service := NewLogServiceWithLevel(db, level)
			service.LogDebug(userID, models.LogModuleUser, "test", "debug message", nil)
			service.LogInfo(userID, models.LogModuleUser, "test", "info message", nil)
			service.LogWarn(userID, models.LogModuleUser, "test", "warn message", nil)
			service.LogError(userID, models.LogModuleUser, "test", "error message", nil)

			var count int64
			db.Model(&models.Log{}).Where("user_id = ?", userID).Count(&count)
			return count == levels[level]
		},
		gen.IntRange(0, len(names)-1),
		gen.UIntRange(1, 1000),
	))

	properties.TestingRun(t)
}
