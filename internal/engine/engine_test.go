package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"dicecup/internal/config"
	"dicecup/internal/db"
	"dicecup/internal/engine"
	"dicecup/internal/engine/auth"
	"dicecup/internal/migrate"
	"dicecup/internal/notation"
	"dicecup/internal/repo"
)

func newTestEnv(t *testing.T) engine.Engine {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default("test"))
	eng.Now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return eng
}

func TestEvaluateWithinBounds(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		roll, err := eng.Evaluate(ctx, "4D6DL1", nil, "tester")
		if err != nil {
			t.Fatal(err)
		}
		if roll.Value < roll.Minimum || roll.Value > roll.Maximum {
			t.Fatalf("value %d outside [%d,%d]", roll.Value, roll.Minimum, roll.Maximum)
		}
		if roll.Notation != "4D6DL1" {
			t.Fatalf("notation %q", roll.Notation)
		}
	}
}

func TestEvaluateSeededIsReproducible(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	seed := int64(42)
	first, err := eng.Evaluate(ctx, "3D20+4+D4!", &seed, "tester")
	if err != nil {
		t.Fatal(err)
	}
	second, err := eng.Evaluate(ctx, "3D20+4+D4!", &seed, "tester")
	if err != nil {
		t.Fatal(err)
	}
	if first.Value != second.Value || first.Trace != second.Trace {
		t.Fatalf("seeded rolls diverged: %d %q vs %d %q", first.Value, first.Trace, second.Value, second.Trace)
	}
}

func TestEvaluateAppendsEvent(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	roll, err := eng.Evaluate(ctx, "2D6", nil, "tester")
	if err != nil {
		t.Fatal(err)
	}
	evts, err := eng.Repo.LatestEvents(ctx, repo.EventFilters{Type: "roll.executed"})
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evts))
	}
	evt := evts[0]
	if evt.EntityKind != "roll" || evt.EntityID != roll.ID || evt.ActorID != "tester" {
		t.Fatalf("event %+v does not reference roll %s", evt, roll.ID)
	}
	if evt.TS != "2026-01-02T03:04:05Z" {
		t.Fatalf("ts %q", evt.TS)
	}
}

func TestEvaluateInvalidNotation(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	var syn *notation.SyntaxError
	if _, err := eng.Evaluate(ctx, "2D", nil, "tester"); !errors.As(err, &syn) {
		t.Fatalf("expected SyntaxError, got %v", err)
	}
	evts, err := eng.Repo.LatestEvents(ctx, repo.EventFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 0 {
		t.Fatalf("failed parse must not log events, got %d", len(evts))
	}
}

func TestSaveExpressionNormalizesNotation(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	expr, err := eng.SaveExpression(ctx, "advantage", "2d20kh1", "keep the better d20", "tester")
	if err != nil {
		t.Fatal(err)
	}
	if expr.Notation != "2D20KH1" {
		t.Fatalf("notation %q", expr.Notation)
	}
	stored, err := eng.Repo.GetExpression(ctx, "advantage")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Notation != "2D20KH1" || stored.Description != "keep the better d20" {
		t.Fatalf("stored %+v", stored)
	}
}

func TestSaveExpressionPreservesCreatedAt(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	if _, err := eng.SaveExpression(ctx, "check", "D20", "", "tester"); err != nil {
		t.Fatal(err)
	}
	eng.Now = func() time.Time { return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) }
	updated, err := eng.SaveExpression(ctx, "check", "D20+2", "", "tester")
	if err != nil {
		t.Fatal(err)
	}
	if updated.CreatedAt != "2026-01-02T03:04:05Z" {
		t.Fatalf("created_at %q", updated.CreatedAt)
	}
	if updated.UpdatedAt != "2026-02-01T00:00:00Z" {
		t.Fatalf("updated_at %q", updated.UpdatedAt)
	}
}

func TestSaveExpressionRejectsBrokenNotation(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	if _, err := eng.SaveExpression(ctx, "broken", "D6$", "", "tester"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := eng.Repo.GetExpression(ctx, "broken"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("broken expression must not be stored, got %v", err)
	}
}

func TestEvaluateExpression(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	if _, err := eng.SaveExpression(ctx, "stat", "4D6DL1", "", "tester"); err != nil {
		t.Fatal(err)
	}
	roll, err := eng.EvaluateExpression(ctx, "stat", nil, "tester")
	if err != nil {
		t.Fatal(err)
	}
	if roll.Expression != "stat" || roll.Notation != "4D6DL1" {
		t.Fatalf("roll %+v", roll)
	}
	evts, err := eng.Repo.LatestEvents(ctx, repo.EventFilters{Type: "expression.rolled"})
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 1 || evts[0].EntityID != "stat" {
		t.Fatalf("events %+v", evts)
	}
}

func TestEvaluateExpressionUnknown(t *testing.T) {
	eng := newTestEnv(t)
	if _, err := eng.EvaluateExpression(context.Background(), "missing", nil, "tester"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteExpression(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	if _, err := eng.SaveExpression(ctx, "gone", "D6", "", "tester"); err != nil {
		t.Fatal(err)
	}
	if err := eng.DeleteExpression(ctx, "gone", "tester"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Repo.GetExpression(ctx, "gone"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := eng.DeleteExpression(ctx, "gone", "tester"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestInspect(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	insp, err := eng.Inspect(ctx, "2d6+3")
	if err != nil {
		t.Fatal(err)
	}
	if insp.Notation != "2D6+3" || insp.Minimum != 5 || insp.Maximum != 15 || insp.Unbounded {
		t.Fatalf("inspection %+v", insp)
	}
	open, err := eng.Inspect(ctx, "D6!")
	if err != nil {
		t.Fatal(err)
	}
	if !open.Unbounded {
		t.Fatal("exploding die must report unbounded")
	}
}

func TestSample(t *testing.T) {
	eng := newTestEnv(t)
	seed := int64(7)
	sample, err := eng.Sample(context.Background(), "4D6", 500, &seed)
	if err != nil {
		t.Fatal(err)
	}
	if sample.Lowest < 4 || sample.Highest > 24 {
		t.Fatalf("range [%d,%d] outside expression bounds", sample.Lowest, sample.Highest)
	}
	if sample.Mean < float64(sample.Lowest) || sample.Mean > float64(sample.Highest) {
		t.Fatalf("mean %f outside observed range", sample.Mean)
	}
}

func TestSampleTrialCap(t *testing.T) {
	eng := newTestEnv(t)
	eng.Config.Rolls.MaxSampleTrials = 10
	if _, err := eng.Sample(context.Background(), "D6", 11, nil); err == nil {
		t.Fatal("expected trial cap error")
	}
	if _, err := eng.Sample(context.Background(), "D6", 0, nil); err == nil {
		t.Fatal("expected error for zero trials")
	}
}

func TestSeedExpressions(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	imported, err := eng.SeedExpressions(ctx, "tester")
	if err != nil {
		t.Fatal(err)
	}
	if imported == 0 {
		t.Fatal("default catalog should import at least one expression")
	}
	if _, err := eng.Repo.GetExpression(ctx, "advantage"); err != nil {
		t.Fatalf("advantage preset missing: %v", err)
	}
	again, err := eng.SeedExpressions(ctx, "tester")
	if err != nil {
		t.Fatal(err)
	}
	if again != 0 {
		t.Fatalf("second seed imported %d", again)
	}
}

func TestCreateAPIKey(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	key, plaintext, err := eng.CreateAPIKey(ctx, "tester", "ci")
	if err != nil {
		t.Fatal(err)
	}
	if plaintext == "" {
		t.Fatal("plaintext key missing")
	}
	found, err := eng.Repo.GetAPIKeyByHash(ctx, repo.HashAPIKey(plaintext))
	if err != nil {
		t.Fatal(err)
	}
	if found.ID != key.ID || found.ActorID != "tester" || found.Name != "ci" {
		t.Fatalf("stored key %+v", found)
	}
}

func TestBootstrapGrantsOwner(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	if err := eng.Bootstrap(ctx, "admin"); err != nil {
		t.Fatal(err)
	}
	svc := auth.Service{DB: eng.DB}
	ok, err := svc.ActorHasPermission(ctx, "admin", auth.PermRollExecute)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("owner must hold roll.execute")
	}
	roles, err := svc.ActorRoles(ctx, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if len(roles) != 1 || roles[0] != "owner" {
		t.Fatalf("roles %v", roles)
	}
	// Rerun is idempotent.
	if err := eng.Bootstrap(ctx, "admin"); err != nil {
		t.Fatal(err)
	}
}
