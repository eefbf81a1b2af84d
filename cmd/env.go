package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/config"
	"github.com/sells-group/leadgen/internal/leadgen"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/normalize"
	"github.com/sells-group/leadgen/internal/quota"
	"github.com/sells-group/leadgen/internal/resilience"
	"github.com/sells-group/leadgen/internal/scoring"
	"github.com/sells-group/leadgen/internal/search"
	"github.com/sells-group/leadgen/internal/store"
	"github.com/sells-group/leadgen/internal/variation"
	anthropicpkg "github.com/sells-group/leadgen/pkg/anthropic"
	"github.com/sells-group/leadgen/pkg/apollo"
)

// appEnv holds the store and services shared by the serve and generate
// commands.
type appEnv struct {
	Store      store.Store
	Guard      *quota.Guard
	Pipeline   *leadgen.Pipeline
	Variations *variation.Generator // nil when no Anthropic key
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadgen.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initApp opens the store and wires the pipeline. Callers should defer
// env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	vocab, err := normalize.LoadVocabulary(cfg.Pipeline.VocabularyPath)
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	norm := normalize.New(vocab)
	guard := newGuard(st)
	p := leadgen.New(norm, buildLadder(cfg, norm), scoring.New(cfg.Scoring.Points), guard, st, leadgen.Config{
		Threshold: cfg.Pipeline.Threshold,
	})

	return &appEnv{
		Store:      st,
		Guard:      guard,
		Pipeline:   p,
		Variations: buildVariations(cfg),
	}, nil
}

// buildLadder returns nil when no provider key is configured so the
// pipeline reports MISSING_PROVIDER_KEY instead of calling out.
func buildLadder(c *config.Config, norm *normalize.Normalizer) leadgen.Ladder {
	if c.Apollo.Key == "" {
		zap.L().Warn("LEADGEN_APOLLO_KEY not set, lead generation disabled")
		return nil
	}

	client := apollo.NewClient(c.Apollo.Key,
		apollo.WithBaseURL(c.Apollo.BaseURL),
		apollo.WithRateLimit(c.Apollo.RateLimit),
	)
	retry := resilience.FromSettings(c.Apollo.Retry.MaxAttempts, c.Apollo.Retry.InitialBackoffMs, c.Apollo.Retry.MaxBackoffMs)

	return search.NewOrchestrator(search.NewApolloSearcher(client, retry), norm, search.Config{
		Timeout:           time.Duration(c.Pipeline.StageTimeoutSecs) * time.Second,
		PerPageMultiplier: c.Pipeline.PerPageMultiplier,
		MaxPerPage:        c.Pipeline.MaxPerPage,
	})
}

func buildVariations(c *config.Config) *variation.Generator {
	if c.Anthropic.Key == "" {
		zap.L().Debug("LEADGEN_ANTHROPIC_KEY not set, email variation disabled")
		return nil
	}

	var opts []anthropicpkg.Option
	if c.Anthropic.BaseURL != "" {
		opts = append(opts, anthropicpkg.WithBaseURL(c.Anthropic.BaseURL))
	}
	return variation.NewGenerator(anthropicpkg.NewClient(c.Anthropic.Key, opts...), variation.Config{
		Model:       c.Anthropic.Model,
		MaxTokens:   c.Anthropic.MaxTokens,
		Temperature: c.Anthropic.Temperature,
	})
}

// planAllotments converts config plan names to quota plans. Empty input
// keeps the built-in defaults.
// newGuard builds the quota guard from the plan and hold settings.
func newGuard(st quota.Store) *quota.Guard {
	ttl := time.Duration(cfg.Pipeline.HoldTTLSecs) * time.Second
	return quota.NewGuard(st, planAllotments(cfg.Plans)).WithHoldTTL(ttl)
}

func planAllotments(plans map[string]int) map[model.Plan]int {
	if len(plans) == 0 {
		return nil
	}
	out := make(map[model.Plan]int, len(plans))
	for name, n := range plans {
		out[model.Plan(name)] = n
	}
	return out
}

// cliAccount builds the account a CLI command acts for.
func cliAccount(id, plan string) (model.Account, error) {
	if id == "" {
		return model.Account{}, eris.New("--account is required")
	}
	if plan == "" {
		plan = string(model.PlanFree)
	}
	return model.Account{ID: id, Plan: model.Plan(plan)}, nil
}
