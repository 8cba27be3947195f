package dietbot

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/app"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/config"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/db"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/model"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/nutrition"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/provider/fatsecret"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/provider/openfoodfacts"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/provider/usda"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/service"
)

func withDB(run func(*sql.DB) error) error {
	path, err := resolveDBPath()
	if err != nil {
		return err
	}
	if err := app.EnsureDBDir(path); err != nil {
		return err
	}
	sqldb, err := db.Open(path)
	if err != nil {
		return err
	}
	defer sqldb.Close()

	if err := db.ApplyMigrations(sqldb); err != nil {
		return err
	}
	return run(sqldb)
}

// resolveDBPath prefers --db, then DATABASE_PATH, then the per-user default.
func resolveDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_PATH")); v != "" {
		return v, nil
	}
	return app.DefaultDBPath()
}

// loadConfig reads --config when given, otherwise the default file if it
// exists.
func loadConfig() (*config.Config, string, error) {
	path, required := configPath, true
	if path == "" {
		path, required = config.DefaultFile, false
	}
	cfg, err := config.Load(path, required)
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		path = ""
	}
	if dbPath == "" && cfg.Database.Path != "" {
		dbPath = cfg.Database.Path
	}
	return cfg, path, nil
}

// newResolver builds the lookup chain: cache, the configured primary
// provider, the other primary when it has credentials, then Open Food Facts.
func newResolver(sqldb *sql.DB, cfg *config.Config, observe nutrition.Observer, log *slog.Logger) (*nutrition.Resolver, error) {
	primary, err := service.PrimaryProvider(sqldb)
	if err != nil {
		return nil, err
	}
	fs := &fatsecret.Client{ClientID: cfg.Nutrition.FatSecretClientID, ClientSecret: cfg.Nutrition.FatSecretClientSecret}
	us := &usda.Client{APIKey: cfg.Nutrition.USDAAPIKey}

	var first, second nutrition.Provider
	if fs.Configured() {
		first = nutrition.FatSecretProvider{Client: fs}
	}
	if us.Configured() {
		second = nutrition.USDAProvider{Client: us}
	}
	if primary == "usda" {
		first, second = second, first
	}

	opts := []nutrition.Option{
		nutrition.WithStore(service.FoodCache{DB: sqldb}),
		nutrition.WithTimeout(cfg.Nutrition.Timeout),
		nutrition.WithLogger(log),
	}
	if observe != nil {
		opts = append(opts, nutrition.WithObserver(observe))
	}
	return nutrition.NewResolver([]nutrition.Provider{
		service.FoodCache{DB: sqldb},
		first,
		second,
		nutrition.OpenFoodFactsProvider{Client: &openfoodfacts.Client{}},
	}, opts...), nil
}

func userByPlatformID(sqldb *sql.DB, platformID int64) (model.User, error) {
	if platformID <= 0 {
		return model.User{}, fmt.Errorf("--user is required")
	}
	u, err := service.GetUserByPlatformID(sqldb, platformID)
	if errors.Is(err, service.ErrNotFound) {
		return model.User{}, fmt.Errorf("no user with chat id %d", platformID)
	}
	return u, err
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(w, string(b))
	return nil
}
