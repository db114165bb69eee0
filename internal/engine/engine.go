package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"dicecup/internal/app"
	"dicecup/internal/config"
	"dicecup/internal/dice"
	"dicecup/internal/domain"
	"dicecup/internal/engine/auth"
	"dicecup/internal/events"
	"dicecup/internal/notation"
	"dicecup/internal/repo"
	"dicecup/internal/trace"
)

const defaultMaxSampleTrials = 100000

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Auth   auth.Service
	Config *config.Config
	Now    func() time.Time
	// Source overrides the randomness for every unseeded roll.
	// Left nil, each roll draws from a fresh time-seeded source.
	Source dice.Source
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Auth:   auth.Service{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) source(seed *int64) dice.Source {
	if seed != nil {
		return dice.NewSource(*seed)
	}
	if e.Source != nil {
		return e.Source
	}
	return dice.DefaultSource()
}

// Bootstrap seeds the config's roles and permissions into the database
// and grants the owner role to the actor. Safe to run repeatedly.
func (e Engine) Bootstrap(ctx context.Context, actorID string) error {
	cfg := e.Config
	if cfg == nil {
		cfg = config.Default("local")
	}
	now := e.now().UTC().Format(time.RFC3339)
	return app.SeedRBAC(ctx, e.Repo, cfg, actorID, now)
}

// Evaluate parses and rolls a notation, recording the outcome in the
// event log. A non-nil seed makes the roll reproducible.
func (e Engine) Evaluate(ctx context.Context, input string, seed *int64, actorID string) (domain.Roll, error) {
	roll, steps, err := e.roll(input, seed)
	if err != nil {
		return domain.Roll{}, err
	}
	roll.ActorID = actorID

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Roll{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.EnsureActor(ctx, tx, actorID, roll.CreatedAt); err != nil {
		return domain.Roll{}, err
	}
	if err := e.Events.Append(ctx, tx, "roll.executed", "roll", roll.ID, actorID, events.EventPayload{
		"input":    roll.Input,
		"notation": roll.Notation,
		"value":    roll.Value,
		"trace":    roll.Trace,
		"steps":    steps,
	}); err != nil {
		return domain.Roll{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Roll{}, err
	}
	return roll, nil
}

// EvaluateExpression rolls a saved expression by name.
func (e Engine) EvaluateExpression(ctx context.Context, name string, seed *int64, actorID string) (domain.Roll, error) {
	expr, err := e.Repo.GetExpression(ctx, name)
	if err != nil {
		return domain.Roll{}, err
	}
	roll, steps, err := e.roll(expr.Notation, seed)
	if err != nil {
		return domain.Roll{}, err
	}
	roll.Expression = expr.Name
	roll.ActorID = actorID

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Roll{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.EnsureActor(ctx, tx, actorID, roll.CreatedAt); err != nil {
		return domain.Roll{}, err
	}
	if err := e.Events.Append(ctx, tx, "expression.rolled", "expression", expr.Name, actorID, events.EventPayload{
		"notation": roll.Notation,
		"value":    roll.Value,
		"trace":    roll.Trace,
		"steps":    steps,
	}); err != nil {
		return domain.Roll{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Roll{}, err
	}
	return roll, nil
}

func (e Engine) roll(input string, seed *int64) (domain.Roll, int, error) {
	collector := &trace.Collector{}
	p := notation.New(e.source(seed))
	p.Profiler = collector
	r, err := p.Parse(input)
	if err != nil {
		return domain.Roll{}, 0, err
	}
	res := r.Roll()
	roll := domain.Roll{
		ID:        uuid.NewString(),
		Input:     input,
		Notation:  r.Notation(),
		Value:     res.Value,
		Trace:     res.Trace,
		Minimum:   r.Minimum(),
		Maximum:   r.Maximum(),
		Unbounded: r.Maximum() == math.MaxInt,
		Seed:      seed,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	return roll, len(collector.Records), nil
}

// Inspect reports the bounds of a notation without rolling it.
func (e Engine) Inspect(ctx context.Context, input string) (domain.Inspection, error) {
	r, err := notation.Parse(e.source(nil), input)
	if err != nil {
		return domain.Inspection{}, err
	}
	return domain.Inspection{
		Input:     input,
		Notation:  r.Notation(),
		Minimum:   r.Minimum(),
		Maximum:   r.Maximum(),
		Unbounded: r.Maximum() == math.MaxInt,
	}, nil
}

// Sample rolls a notation repeatedly and summarizes the outcomes.
func (e Engine) Sample(ctx context.Context, input string, trials int, seed *int64) (domain.Sample, error) {
	if trials <= 0 {
		return domain.Sample{}, errors.New("trials must be positive")
	}
	max := defaultMaxSampleTrials
	if e.Config != nil && e.Config.Rolls.MaxSampleTrials > 0 {
		max = e.Config.Rolls.MaxSampleTrials
	}
	if trials > max {
		return domain.Sample{}, fmt.Errorf("trials %d exceeds limit %d", trials, max)
	}
	r, err := notation.Parse(e.source(seed), input)
	if err != nil {
		return domain.Sample{}, err
	}
	sample := domain.Sample{
		Input:    input,
		Notation: r.Notation(),
		Trials:   trials,
		Seed:     seed,
		Lowest:   math.MaxInt,
		Highest:  math.MinInt,
	}
	total := 0
	for i := 0; i < trials; i++ {
		v := r.Roll().Value
		total += v
		if v < sample.Lowest {
			sample.Lowest = v
		}
		if v > sample.Highest {
			sample.Highest = v
		}
	}
	sample.Mean = float64(total) / float64(trials)
	return sample, nil
}

// SaveExpression validates and upserts a named expression. The stored
// notation is the normalized rendering, not the raw input.
func (e Engine) SaveExpression(ctx context.Context, name, input, description, actorID string) (domain.Expression, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Expression{}, errors.New("name is required")
	}
	r, err := notation.Parse(e.source(nil), input)
	if err != nil {
		return domain.Expression{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	expr := domain.Expression{
		Name:        name,
		Notation:    r.Notation(),
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing, err := e.Repo.GetExpression(ctx, name); err == nil {
		expr.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Expression{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Expression{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertExpression(ctx, tx, expr); err != nil {
		return domain.Expression{}, fmt.Errorf("upsert expression: %w", err)
	}
	if err := e.Repo.EnsureActor(ctx, tx, actorID, now); err != nil {
		return domain.Expression{}, err
	}
	if err := e.Events.Append(ctx, tx, "expression.saved", "expression", expr.Name, actorID, events.EventPayload{
		"notation": expr.Notation,
	}); err != nil {
		return domain.Expression{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Expression{}, err
	}
	return expr, nil
}

// DeleteExpression removes a saved expression.
func (e Engine) DeleteExpression(ctx context.Context, name, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteExpression(ctx, tx, name); err != nil {
		return err
	}
	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.EnsureActor(ctx, tx, actorID, now); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "expression.deleted", "expression", name, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// SeedExpressions imports the config catalog into the database,
// skipping names that already exist.
func (e Engine) SeedExpressions(ctx context.Context, actorID string) (int, error) {
	if e.Config == nil {
		return 0, nil
	}
	imported := 0
	for name, preset := range e.Config.Expressions.Catalog {
		if _, err := e.Repo.GetExpression(ctx, name); err == nil {
			continue
		} else if !errors.Is(err, repo.ErrNotFound) {
			return imported, err
		}
		if _, err := e.SaveExpression(ctx, name, preset.Notation, preset.Description, actorID); err != nil {
			return imported, fmt.Errorf("seed expression %s: %w", name, err)
		}
		imported++
	}
	return imported, nil
}

// CreateAPIKey mints a key for the actor and returns the plaintext
// once. Only the hash is stored.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, name string) (domain.APIKey, string, error) {
	if actorID == "" {
		return domain.APIKey{}, "", errors.New("actor_id required")
	}
	plaintext := uuid.NewString()
	now := e.now().UTC().Format(time.RFC3339)
	key := domain.APIKey{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(plaintext),
		CreatedAt: now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	defer tx.Rollback()
	if err := e.Repo.EnsureActor(ctx, tx, actorID, now); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("insert api key: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "apikey.created", "apikey", key.ID, actorID, events.EventPayload{
		"name": name,
	}); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plaintext, nil
}
