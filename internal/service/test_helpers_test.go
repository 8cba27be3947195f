package service_test

import (
	"database/sql"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/db"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/model"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/service"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diet_bot.db")
	sqldb, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(sqldb); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return sqldb
}

func newTestUser(t *testing.T, sqldb *sql.DB, platformID int64) model.User {
	t.Helper()
	u, err := service.GetOrCreateUser(sqldb, service.UserInput{PlatformID: platformID, Username: "user" + strconv.FormatInt(platformID, 10)})
	if err != nil {
		t.Fatalf("create user %d: %v", platformID, err)
	}
	return u
}
