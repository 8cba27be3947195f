package bot_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/bot"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/db"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/events"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/intent"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/nutrition"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/service"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/session"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/vision"
)

type sent struct {
	chatID  int64
	text    string
	photo   bool
	buttons [][]bot.Button
}

type fakeTransport struct {
	mu       sync.Mutex
	nextID   int
	messages []sent
	edits    []string
	deleted  []int
	answered []string
	file     []byte
	fileErr  error
}

func (f *fakeTransport) SendText(_ context.Context, chatID int64, text string, buttons [][]bot.Button) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.messages = append(f.messages, sent{chatID: chatID, text: text, buttons: buttons})
	return f.nextID, nil
}

func (f *fakeTransport) SendPhoto(_ context.Context, chatID int64, png []byte, caption string, buttons [][]bot.Button) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(png) == 0 {
		return 0, errors.New("empty photo")
	}
	f.nextID++
	f.messages = append(f.messages, sent{chatID: chatID, text: caption, photo: true, buttons: buttons})
	return f.nextID, nil
}

func (f *fakeTransport) EditText(_ context.Context, _ int64, _ int, text string, _ [][]bot.Button) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeTransport) Delete(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeTransport) AnswerCallback(_ context.Context, callbackID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, callbackID)
	return nil
}

func (f *fakeTransport) DownloadFile(_ context.Context, _ string) ([]byte, error) {
	return f.file, f.fileErr
}

func (f *fakeTransport) last(t *testing.T) sent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.messages)
	return f.messages[len(f.messages)-1]
}

type fakeResolver struct {
	known map[string]nutrition.Per100g
}

func (f fakeResolver) Resolve(_ context.Context, name string, grams int) (nutrition.Result, error) {
	n, ok := f.known[nutrition.NormalizeName(name)]
	if !ok {
		return nutrition.Result{}, fmt.Errorf("%q: %w", name, nutrition.ErrNotFound)
	}
	r := nutrition.Scale(n, grams)
	r.Name = name
	return r, nil
}

func (f fakeResolver) ResolveOrEstimate(ctx context.Context, name string, grams int) nutrition.Result {
	r, err := f.Resolve(ctx, name, grams)
	if err != nil {
		r = nutrition.Scale(nutrition.Per100g{Calories: 100, ProteinG: 5, FatG: 3, CarbsG: 15, Source: "builtin"}, grams)
		r.Name = name
	}
	return r
}

type fakeVision struct {
	detection vision.Detection
	estimate  vision.Estimate
}

func (f fakeVision) ExtractFoods(context.Context, []byte, *int64) vision.Detection { return f.detection }

func (f fakeVision) ExtractNutrition(context.Context, []byte, *int64) vision.Estimate {
	return f.estimate
}

type fakeInterpreter struct{ result intent.Intent }

func (f *fakeInterpreter) Interpret(context.Context, string, []string, *int64) intent.Intent {
	return f.result
}

type capturePublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (c *capturePublisher) Publish(subject string, _ []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subjects = append(c.subjects, subject)
	return nil
}

type fixture struct {
	db     *sql.DB
	tx     *fakeTransport
	vision *fakeVision
	interp *fakeInterpreter
	pub    *capturePublisher
	bot    *bot.Bot
	seq    int
}

const adminID = 900

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sqldb, err := db.Open(filepath.Join(t.TempDir(), "diet_bot.db"))
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations(sqldb))
	t.Cleanup(func() { _ = sqldb.Close() })

	f := &fixture{
		db:     sqldb,
		tx:     &fakeTransport{file: []byte("jpeg")},
		vision: &fakeVision{},
		interp: &fakeInterpreter{},
		pub:    &capturePublisher{},
	}
	clock := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	f.bot, err = bot.New(bot.Options{
		DB:        sqldb,
		Transport: f.tx,
		Resolver: fakeResolver{known: map[string]nutrition.Per100g{
			"гречка": {Calories: 110, ProteinG: 4.2, FatG: 1.1, CarbsG: 21.3, FiberG: 3.7, Source: "fatsecret"},
			"курица": {Calories: 165, ProteinG: 31, FatG: 3.6, Source: "fatsecret"},
			"рис":    {Calories: 130, ProteinG: 2.7, FatG: 0.3, CarbsG: 28, Source: "usda"},
		}},
		Vision:      f.vision,
		Interpreter: f.interp,
		Store:       session.NewStore(session.WithClock(func() time.Time { return clock })),
		Events:      events.NewEmitter(f.pub, nil),
		IsAdmin:     func(id int64) bool { return id == adminID },
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) update(from int64) bot.Update {
	f.seq++
	return bot.Update{ID: f.seq, Sender: bot.Sender{ID: from, FirstName: "Аня"}, ChatID: from, MessageID: f.seq}
}

func (f *fixture) text(from int64, text string) {
	u := f.update(from)
	u.Text = text
	f.bot.Handle(context.Background(), u)
}

func (f *fixture) press(from int64, data string) {
	u := f.update(from)
	u.CallbackID = fmt.Sprintf("cb%d", f.seq)
	u.CallbackData = data
	f.bot.Handle(context.Background(), u)
}

func (f *fixture) photo(from int64) {
	u := f.update(from)
	u.PhotoFileID = "file-1"
	f.bot.Handle(context.Background(), u)
}

func (f *fixture) register(t *testing.T, from int64) {
	t.Helper()
	f.press(from, "start:register")
	f.press(from, "reg:male")
	for _, answer := range []string{"30", "175", "70", "0"} {
		f.text(from, answer)
	}
	f.press(from, "reg:lose")
	f.press(from, "reg:moderate")
	require.Contains(t, f.tx.last(t).text, "Дневная норма: 2055 ккал")
}

func buttonData(s sent) []string {
	var out []string
	for _, row := range s.buttons {
		for _, b := range row {
			out = append(out, b.Data)
		}
	}
	return out
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := bot.New(bot.Options{})
	require.Error(t, err)
}

func TestStartOffersRegistrationThenMenu(t *testing.T) {
	f := newFixture(t)

	f.text(1, "/start")
	assert.Equal(t, []string{"start:register"}, buttonData(f.tx.last(t)))

	f.register(t, 1)

	f.text(1, "/start")
	last := f.tx.last(t)
	assert.Contains(t, last.text, "С возвращением, Аня")
	assert.Contains(t, last.text, "2055 ккал")
	assert.Equal(t, []string{"start:add_food", "start:stats"}, buttonData(last))
}

func TestRegistrationRepromptsOnInvalidAnswer(t *testing.T) {
	f := newFixture(t)
	f.press(1, "start:register")
	f.press(1, "reg:male")
	f.text(1, "5")
	assert.True(t, strings.HasPrefix(f.tx.last(t).text, "❌ "))

	f.text(1, "30")
	assert.Contains(t, f.tx.last(t).text, "рост")
}

func TestRegisterTwiceShowsProfileHint(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	f.text(1, "/register")
	assert.Contains(t, f.tx.last(t).text, "/profile")
}

func TestFoodRequiresProfile(t *testing.T) {
	f := newFixture(t)
	f.text(1, "гречка 200г")
	assert.Equal(t, "❌ Сначала заполните профиль: /register", f.tx.last(t).text)
}

func TestTextFoodIsLoggedWithProgress(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)

	f.text(1, "Гречка 200г")
	last := f.tx.last(t)
	assert.True(t, last.photo)
	assert.Contains(t, last.text, "220 из 2055 ккал")
	assert.NotContains(t, last.text, "Не найдены")

	data := buttonData(last)
	require.Len(t, data, 2)
	assert.True(t, strings.HasPrefix(data[0], "edit:"))
	assert.True(t, strings.HasPrefix(data[1], "del:"))
	assert.Equal(t, []string{events.SubjectFoodLogged}, f.pub.subjects)
}

func TestPhotoLogsItemsAndWarnsAboutMisses(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	f.vision.detection = vision.Detection{Foods: []vision.DetectedFood{
		{Name: "курица", Grams: 150},
		{Name: "мангольд", Grams: 80},
	}}

	f.photo(1)
	last := f.tx.last(t)
	assert.True(t, last.photo)
	assert.Contains(t, last.text, "⚠️ Не найдены в базе: мангольд")
	assert.Contains(t, last.text, "248 из 2055 ккал")
	assert.Len(t, f.tx.deleted, 1)
	assert.Len(t, f.pub.subjects, 2)

	var n int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM food_logs WHERE source = 'photo'`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestPhotoWarnsAboutSingleMiss(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	f.vision.detection = vision.Detection{Foods: []vision.DetectedFood{
		{Name: "мангольд", Grams: 80},
	}}

	f.photo(1)
	last := f.tx.last(t)
	assert.Contains(t, last.text, "⚠️ Не найдены в базе: мангольд")
	assert.Contains(t, last.text, "0 из 2055 ккал")

	var n int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM food_logs WHERE food_name = 'мангольд' AND calories = 0`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestPhotoFailureEditsWaitMessage(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	f.vision.detection = vision.Detection{Failed: true, Reason: "no food"}

	f.photo(1)
	require.Len(t, f.tx.edits, 1)
	assert.Contains(t, f.tx.edits[0], "Не удалось распознать еду на фото")
}

func TestDetailedPhotoUsesEstimate(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	f.text(1, "/photo_detailed")
	f.vision.estimate = vision.Estimate{Items: []nutrition.Result{{Name: "плов", Grams: 300, Calories: 540}}}

	f.photo(1)
	assert.Contains(t, f.tx.last(t).text, "540 из 2055 ккал")
}

func lastRecordID(t *testing.T, f *fixture) int64 {
	t.Helper()
	var id int64
	require.NoError(t, f.db.QueryRow(`SELECT MAX(id) FROM food_logs`).Scan(&id))
	return id
}

func TestEditFlowRescalesRecord(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	f.text(1, "гречка 200г")
	id := lastRecordID(t, f)

	f.press(1, fmt.Sprintf("edit:%d", id))
	assert.Contains(t, f.tx.last(t).text, "Изменение: гречка")

	f.interp.result = intent.Intent{Kind: intent.ChangeWeight, Value: 100}
	f.text(1, "100 грамм")
	last := f.tx.last(t)
	assert.Contains(t, last.text, "✅ Обновлено: гречка, 100 г, 110 ккал")
	assert.Contains(t, last.text, "110 из 2055 ккал")
}

func TestEditBackLeavesRecord(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	f.text(1, "гречка 200г")
	id := lastRecordID(t, f)

	f.press(1, fmt.Sprintf("edit:%d", id))
	f.press(1, "editact:back")
	assert.Equal(t, "↩️ Изменение отменено.", f.tx.last(t).text)

	rec, err := service.GetFoodLog(f.db, id)
	require.NoError(t, err)
	assert.Equal(t, 220, rec.Calories)
}

func TestDeleteChecksOwnership(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	f.register(t, 2)
	f.text(1, "рис 150г")
	id := lastRecordID(t, f)
	answered := len(f.tx.answered)

	f.press(2, fmt.Sprintf("del:%d", id))
	assert.Equal(t, "⚠️ Запись не найдена.", f.tx.last(t).text)

	f.press(1, fmt.Sprintf("del:%d", id))
	assert.Equal(t, "🗑️ Запись удалена: рис", f.tx.last(t).text)
	assert.Contains(t, f.pub.subjects, events.SubjectFoodDeleted)

	f.press(1, fmt.Sprintf("del:%d", id))
	assert.Equal(t, "⚠️ Запись не найдена.", f.tx.last(t).text)
	assert.Len(t, f.tx.answered, answered+3)
}

func TestStatsCallbackEditsMessage(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)
	f.text(1, "курица 100г")

	f.press(1, "stats:today")
	require.NotEmpty(t, f.tx.edits)
	assert.Contains(t, f.tx.edits[len(f.tx.edits)-1], "Калории: 165 / 2055 ккал")

	f.press(1, "stats:week")
	assert.Contains(t, f.tx.edits[len(f.tx.edits)-1], "Всего калорий: 165 ккал")
}

func TestWeightCommand(t *testing.T) {
	f := newFixture(t)
	f.register(t, 1)

	f.text(1, "/weight 300")
	assert.Contains(t, f.tx.last(t).text, "❌")

	f.text(1, "/weight NaN")
	assert.Contains(t, f.tx.last(t).text, "❌")

	f.text(1, "/weight inf")
	assert.Contains(t, f.tx.last(t).text, "❌")

	f.text(1, "/weight 69,5")
	assert.Equal(t, "✅ Вес 69.5 кг записан.", f.tx.last(t).text)

	f.text(1, "/weight")
	history := f.tx.last(t).text
	assert.Contains(t, history, "01.07.2026 — 69.5 кг")
	assert.NotContains(t, history, "NaN")
}

func TestAdminCostsIsGated(t *testing.T) {
	f := newFixture(t)
	f.text(1, "/admin_costs")
	assert.Equal(t, "❌ Нет доступа.", f.tx.last(t).text)

	f.text(adminID, "/admin_costs")
	assert.Contains(t, f.tx.last(t).text, "Расходы на AI (30 дней)")
}

func TestCancelEndsFlows(t *testing.T) {
	f := newFixture(t)
	f.text(1, "/cancel")
	assert.Equal(t, "Нет активных действий.", f.tx.last(t).text)

	f.press(1, "start:register")
	f.text(1, "/cancel")
	assert.Equal(t, "❌ Действие отменено.", f.tx.last(t).text)
}
