package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/llm"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/service"
)

func TestUsageLedgerAndCosts(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	defer db.Close()
	alice := newTestUser(t, db, 4001)
	bob, err := service.GetOrCreateUser(db, service.UserInput{PlatformID: 4002})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	ledger := service.UsageLedger{DB: db, Now: func() time.Time { return now.Add(-time.Hour) }}
	ctx := context.Background()

	records := []llm.Usage{
		{RequestID: "a1", RequestType: llm.TypeVision, Model: "openai/gpt-4o-mini", UserID: &alice.ID, FoodName: "photo", CostUSD: 0.5, TokensInput: 100, TokensOutput: 50},
		{RequestID: "a2", RequestType: llm.TypeEdit, Model: "google/gemma-2-9b-it", UserID: &alice.ID, CostUSD: 0.25},
		{RequestID: "b1", RequestType: llm.TypeVision, Model: "openai/gpt-4o-mini", UserID: &bob.ID, CostUSD: 0.25},
		{RequestID: "b2", RequestType: llm.TypeVision, Model: "openai/gpt-4o-mini", UserID: &bob.ID, Err: errors.New("status 401")},
	}
	for _, u := range records {
		if err := ledger.RecordUsage(ctx, u); err != nil {
			t.Fatalf("record %s: %v", u.RequestID, err)
		}
	}
	old := service.UsageLedger{DB: db, Now: func() time.Time { return now.AddDate(0, 0, -40) }}
	if err := old.RecordUsage(ctx, llm.Usage{RequestID: "old", RequestType: llm.TypeVision, Model: "x", CostUSD: 9}); err != nil {
		t.Fatalf("record old usage: %v", err)
	}

	report, err := service.Costs(db, nil, 30, now)
	if err != nil {
		t.Fatalf("costs: %v", err)
	}
	if report.Requests != 4 || report.Failed != 1 {
		t.Fatalf("expected 4 requests with 1 failure, got %d/%d", report.Requests, report.Failed)
	}
	if report.CostUSD != 1 || report.Rate != 92 || report.CostRUB != 92 {
		t.Fatalf("unexpected totals: %+v", report)
	}
	if len(report.ByType) != 2 || report.ByType[0].RequestType != llm.TypeVision || report.ByType[0].Requests != 3 {
		t.Fatalf("unexpected by-type breakdown: %+v", report.ByType)
	}
	if len(report.ByUser) != 2 {
		t.Fatalf("expected two users, got %+v", report.ByUser)
	}
	if report.ByUser[0].UserID != alice.ID || report.ByUser[0].Name != "user4001" || report.ByUser[0].CostRUB != 69 {
		t.Fatalf("unexpected top user: %+v", report.ByUser[0])
	}
	if report.ByUser[1].Name != "User_"+itoa(bob.ID) {
		t.Fatalf("expected fallback name for anonymous user, got %q", report.ByUser[1].Name)
	}

	mine, err := service.Costs(db, &bob.ID, 30, now)
	if err != nil {
		t.Fatalf("costs for user: %v", err)
	}
	if mine.Requests != 2 || mine.CostUSD != 0.25 || mine.ByUser != nil {
		t.Fatalf("unexpected per-user report: %+v", mine)
	}

	if err := service.SetConfig(db, service.ConfigUSDRUBRate, "100"); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	report, err = service.Costs(db, nil, 30, now)
	if err != nil {
		t.Fatalf("costs after rate change: %v", err)
	}
	if report.CostRUB != 100 {
		t.Fatalf("expected 100 RUB after rate change, got %v", report.CostRUB)
	}
}

func TestAddUsageRequiresType(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	defer db.Close()

	if err := (service.UsageLedger{DB: db}).RecordUsage(context.Background(), llm.Usage{RequestID: "x"}); err == nil {
		t.Fatalf("expected error for missing request type")
	}
}
