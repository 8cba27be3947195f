package service

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/model"
)

type UserInput struct {
	PlatformID int64
	Username   string
	FirstName  string
	LastName   string
}

// GetOrCreateUser returns the user for a chat identity, creating it on first
// contact. Name fields are refreshed when they change.
func GetOrCreateUser(db *sql.DB, in UserInput) (model.User, error) {
	if in.PlatformID == 0 {
		return model.User{}, fmt.Errorf("platform id is required")
	}
	_, err := db.Exec(`
INSERT INTO users(platform_id, username, first_name, last_name)
VALUES(?, ?, ?, ?)
ON CONFLICT(platform_id) DO UPDATE SET
  username = excluded.username,
  first_name = excluded.first_name,
  last_name = excluded.last_name
`, in.PlatformID, strings.TrimSpace(in.Username), strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName))
	if err != nil {
		return model.User{}, fmt.Errorf("upsert user %d: %w", in.PlatformID, err)
	}
	return GetUserByPlatformID(db, in.PlatformID)
}

func GetUserByPlatformID(db *sql.DB, platformID int64) (model.User, error) {
	return scanUser(db.QueryRow(`
SELECT id, platform_id, IFNULL(username, ''), IFNULL(first_name, ''), IFNULL(last_name, ''), created_at
FROM users WHERE platform_id = ?
`, platformID), fmt.Sprintf("platform id %d", platformID))
}

func GetUser(db *sql.DB, id int64) (model.User, error) {
	return scanUser(db.QueryRow(`
SELECT id, platform_id, IFNULL(username, ''), IFNULL(first_name, ''), IFNULL(last_name, ''), created_at
FROM users WHERE id = ?
`, id), fmt.Sprintf("id %d", id))
}

func scanUser(row *sql.Row, label string) (model.User, error) {
	var u model.User
	var createdRaw string
	if err := row.Scan(&u.ID, &u.PlatformID, &u.Username, &u.FirstName, &u.LastName, &createdRaw); err != nil {
		if err == sql.ErrNoRows {
			return model.User{}, fmt.Errorf("user %s: %w", label, ErrNotFound)
		}
		return model.User{}, fmt.Errorf("get user %s: %w", label, err)
	}
	created, err := parseTimestamp(createdRaw)
	if err != nil {
		return model.User{}, err
	}
	u.CreatedAt = created
	return u, nil
}
