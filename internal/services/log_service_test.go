package services

import (
	"errors"
	"testing"

	"github.com/tonojkeee/koordinator/internal/database/models"
	"gorm.io/gorm"
)

func TestLogWithDBFollowsTransaction(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	service := NewLogService(db)

	errAbort := errors.New("abort")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := service.WithDB(tx).LogDelivery(DeliveryDetails{Sender: "s@example.com", Copies: 2}, nil); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("unexpected error: %v", err)
	}

	var n int64
	db.Model(&models.Log{}).Count(&n)
	if n != 0 {
		t.Errorf("audit row survived the rollback")
	}

	if err := service.LogSend(7, SendDetails{MessageID: 1, To: "x@example.com"}, errors.New("refused")); err != nil {
		t.Fatalf("LogSend: %v", err)
	}
	result, err := service.QueryLogs(LogQuery{UserID: 7, Module: string(models.LogModuleSMTP)})
	if err != nil || result.Total != 1 || result.Logs[0].Level != string(models.LogLevelError) {
		t.Errorf("QueryLogs = %+v, %v", result, err)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]models.LogLevel{
		"debug":   models.LogLevelDebug,
		"Warning": models.LogLevelWarn,
		" ERROR ": models.LogLevelError,
		"":        models.LogLevelInfo,
		"verbose": models.LogLevelInfo,
	}
	for in, want := range cases {
		if got := models.ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
