package session_test

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/db"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/service"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/session"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	sqldb, err := db.Open(filepath.Join(t.TempDir(), "diet_bot.db"))
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations(sqldb))
	t.Cleanup(func() { _ = sqldb.Close() })
	return sqldb
}

func newUserID(t *testing.T, sqldb *sql.DB, platformID int64) int64 {
	t.Helper()
	u, err := service.GetOrCreateUser(sqldb, service.UserInput{PlatformID: platformID})
	require.NoError(t, err)
	return u.ID
}

func TestStoreLifecycle(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	s := session.NewStore(session.WithClock(clock.now))

	a := s.Begin(1, session.KindRegistration, session.StateGender)
	b := s.Begin(1, session.KindEdit, session.StateAwaitingEditInput)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, clock.t, a.StartedAt)
	assert.Equal(t, 2, s.Len())

	active, ok := s.Active(1)
	require.True(t, ok)
	assert.Equal(t, session.KindEdit, active.Kind)

	s.End(1, session.KindEdit)
	active, ok = s.Active(1)
	require.True(t, ok)
	assert.Equal(t, session.KindRegistration, active.Kind)

	assert.True(t, s.EndAll(1))
	assert.False(t, s.EndAll(1))
	_, ok = s.Active(1)
	assert.False(t, ok)
}

func TestStoreDetailedToggle(t *testing.T) {
	s := session.NewStore()
	assert.False(t, s.Detailed(7))
	assert.True(t, s.ToggleDetailed(7))
	assert.True(t, s.Detailed(7))
	assert.False(t, s.Detailed(8))
	assert.False(t, s.ToggleDetailed(7))
	assert.False(t, s.Detailed(7))
}
