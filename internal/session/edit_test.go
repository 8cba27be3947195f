package session_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/intent"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/model"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/nutrition"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/service"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/session"
)

type fakeInterpreter struct {
	result     intent.Intent
	calls      int
	candidates []string
}

func (f *fakeInterpreter) Interpret(_ context.Context, _ string, candidates []string, _ *int64) intent.Intent {
	f.calls++
	f.candidates = candidates
	return f.result
}

type fakeResolver struct{ per100 nutrition.Per100g }

func (f fakeResolver) ResolveOrEstimate(_ context.Context, name string, grams int) nutrition.Result {
	r := nutrition.Scale(f.per100, grams)
	r.Name = name
	return r
}

type editFixture struct {
	db     *sql.DB
	clock  *fakeClock
	store  *session.Store
	interp *fakeInterpreter
	editor *session.Editor
	userID int64
}

func newEditFixture(t *testing.T) *editFixture {
	t.Helper()
	f := &editFixture{
		db:     newTestDB(t),
		clock:  &fakeClock{t: time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)},
		interp: &fakeInterpreter{},
	}
	f.store = session.NewStore(session.WithClock(f.clock.now))
	f.userID = newUserID(t, f.db, 500)
	f.editor = session.NewEditor(f.db, f.store, f.interp, fakeResolver{per100: nutrition.Per100g{
		Calories: 130, ProteinG: 2.7, FatG: 0.3, CarbsG: 28, Source: "fatsecret",
	}})
	return f
}

func (f *editFixture) record(t *testing.T, name string, grams, kcal int) model.FoodLog {
	t.Helper()
	rec, err := service.CreateFoodLog(f.db, service.FoodLogInput{
		UserID: f.userID, FoodName: name, Grams: grams, Calories: kcal,
		ProteinG: 10, FatG: 4, CarbsG: 30, Source: "fatsecret", CreatedAt: f.clock.t.Add(-time.Hour),
	})
	require.NoError(t, err)
	return rec
}

func TestEditChangeWeightRescales(t *testing.T) {
	f := newEditFixture(t)
	rec := f.record(t, "гречка", 200, 300)

	_, err := f.editor.Start(f.userID, rec.ID)
	require.NoError(t, err)
	f.interp.result = intent.Intent{Kind: intent.ChangeWeight, Value: 100}

	reply, err := f.editor.Handle(context.Background(), f.userID, "100 грамм")
	require.NoError(t, err)
	require.True(t, reply.Done)
	assert.Equal(t, []string{"гречка"}, f.interp.candidates)

	got, err := service.GetFoodLog(f.db, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Grams)
	assert.Equal(t, 150, got.Calories)
	assert.Equal(t, 5.0, got.ProteinG)
	assert.Equal(t, 2.0, got.FatG)
	assert.Equal(t, 15.0, got.CarbsG)

	_, ok := f.store.Get(f.userID, session.KindEdit)
	assert.False(t, ok)
}

func TestEditChangeWeightZeroPreviousGrams(t *testing.T) {
	f := newEditFixture(t)
	rec := f.record(t, "суп", 100, 300)
	_, err := f.db.Exec(`UPDATE food_logs SET grams = 0 WHERE id = ?`, rec.ID)
	require.NoError(t, err)

	_, err = f.editor.Start(f.userID, rec.ID)
	require.NoError(t, err)
	f.interp.result = intent.Intent{Kind: intent.ChangeWeight, Value: 50}

	_, err = f.editor.Handle(context.Background(), f.userID, "50 г")
	require.NoError(t, err)

	got, err := service.GetFoodLog(f.db, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Grams)
	assert.Equal(t, 150, got.Calories)
}

func TestEditChangeCaloriesKeepsMacros(t *testing.T) {
	f := newEditFixture(t)
	rec := f.record(t, "котлета", 120, 250)

	_, err := f.editor.Start(f.userID, rec.ID)
	require.NoError(t, err)
	f.interp.result = intent.Intent{Kind: intent.ChangeCalories, Value: 320}

	reply, err := f.editor.Handle(context.Background(), f.userID, "триста двадцать калорий")
	require.NoError(t, err)
	require.NotNil(t, reply.Record)

	got, err := service.GetFoodLog(f.db, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 320, got.Calories)
	assert.Equal(t, 120, got.Grams)
	assert.Equal(t, rec.ProteinG, got.ProteinG)
	assert.Equal(t, rec.CarbsG, got.CarbsG)
}

func TestEditChangeProductReplacesRecord(t *testing.T) {
	f := newEditFixture(t)
	rec := f.record(t, "гречка", 150, 198)

	_, err := f.editor.Start(f.userID, rec.ID)
	require.NoError(t, err)
	f.interp.result = intent.Intent{Kind: intent.ChangeProduct, NewProduct: "рис"}

	reply, err := f.editor.Handle(context.Background(), f.userID, "замени на рис")
	require.NoError(t, err)
	require.NotNil(t, reply.Record)
	assert.NotEqual(t, rec.ID, reply.Record.ID)
	assert.Equal(t, "рис", reply.Record.FoodName)
	assert.Equal(t, 150, reply.Record.Grams)
	assert.Equal(t, 195, reply.Record.Calories)
	assert.Equal(t, f.userID, reply.Record.UserID)
	assert.True(t, rec.CreatedAt.Equal(reply.Record.CreatedAt))

	_, err = service.GetFoodLog(f.db, rec.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestEditTargetsNamedRecord(t *testing.T) {
	f := newEditFixture(t)
	first := f.record(t, "гречка", 200, 264)
	second := f.record(t, "куриная грудка", 150, 248)

	_, err := f.editor.Start(f.userID, first.ID)
	require.NoError(t, err)
	f.interp.result = intent.Intent{Kind: intent.ChangeWeight, Value: 300, Target: "второе"}

	_, err = f.editor.Handle(context.Background(), f.userID, "второе 300 грамм")
	require.NoError(t, err)

	got, err := service.GetFoodLog(f.db, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 300, got.Grams)
	assert.Equal(t, 496, got.Calories)

	untouched, err := service.GetFoodLog(f.db, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 200, untouched.Grams)
}

func TestEditTimeout(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		expired bool
	}{
		{"299 seconds", 299 * time.Second, false},
		{"300 seconds", 300 * time.Second, false},
		{"301 seconds", 301 * time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEditFixture(t)
			rec := f.record(t, "гречка", 200, 300)
			_, err := f.editor.Start(f.userID, rec.ID)
			require.NoError(t, err)
			f.interp.result = intent.Intent{Kind: intent.ChangeWeight, Value: 100}

			f.clock.advance(tt.elapsed)
			reply, err := f.editor.Handle(context.Background(), f.userID, "100 грамм")
			got, gerr := service.GetFoodLog(f.db, rec.ID)
			require.NoError(t, gerr)
			_, active := f.store.Get(f.userID, session.KindEdit)
			assert.False(t, active)

			if tt.expired {
				assert.ErrorIs(t, err, session.ErrExpired)
				assert.Equal(t, 0, f.interp.calls)
				assert.Equal(t, 200, got.Grams)
				return
			}
			require.NoError(t, err)
			assert.True(t, reply.Done)
			assert.Equal(t, 100, got.Grams)
		})
	}
}

func TestEditClarificationKeepsDeadline(t *testing.T) {
	f := newEditFixture(t)
	rec := f.record(t, "гречка", 200, 300)
	_, err := f.editor.Start(f.userID, rec.ID)
	require.NoError(t, err)
	started, _ := f.store.Get(f.userID, session.KindEdit)
	startedAt := started.StartedAt

	f.interp.result = intent.Intent{Kind: intent.NeedsClarification}
	f.clock.advance(200 * time.Second)
	reply, err := f.editor.Handle(context.Background(), f.userID, "ну это")
	require.NoError(t, err)
	assert.False(t, reply.Done)
	assert.Contains(t, reply.Text, "1. гречка")

	c, ok := f.store.Get(f.userID, session.KindEdit)
	require.True(t, ok)
	assert.Equal(t, session.StateAwaitingEditInput, c.State)
	assert.Equal(t, startedAt, c.StartedAt)

	f.interp.result = intent.Intent{Kind: intent.Unrecognized}
	reply, err = f.editor.Handle(context.Background(), f.userID, "замени")
	require.NoError(t, err)
	assert.False(t, reply.Done)
	assert.Contains(t, reply.Text, "замени на рис")

	f.interp.result = intent.Intent{Kind: intent.ChangeWeight, Value: 100}
	f.clock.advance(101 * time.Second)
	_, err = f.editor.Handle(context.Background(), f.userID, "100 грамм")
	assert.ErrorIs(t, err, session.ErrExpired)
}

func TestEditBackLeavesRecord(t *testing.T) {
	f := newEditFixture(t)
	rec := f.record(t, "гречка", 200, 300)
	_, err := f.editor.Start(f.userID, rec.ID)
	require.NoError(t, err)

	reply, err := f.editor.Handle(context.Background(), f.userID, session.ActionBack)
	require.NoError(t, err)
	assert.True(t, reply.Done)
	assert.Equal(t, 0, f.interp.calls)

	got, err := service.GetFoodLog(f.db, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Grams, got.Grams)

	_, err = f.editor.Handle(context.Background(), f.userID, "100 грамм")
	assert.ErrorIs(t, err, session.ErrNoSession)
	assert.False(t, f.editor.Cancel(f.userID))
}

func TestEditStartRejectsForeignRecord(t *testing.T) {
	f := newEditFixture(t)
	rec := f.record(t, "гречка", 200, 300)
	other := newUserID(t, f.db, 501)

	_, err := f.editor.Start(other, rec.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.Equal(t, 0, f.store.Len())
}
