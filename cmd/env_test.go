package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/config"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/normalize"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// withConfig installs c as the package config for the duration of t.
func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "leadgen.db")
	c.Server.Port = 8080
	c.Server.WriteTimeoutSecs = 60
	c.Server.AllowedOrigins = []string{"http://localhost:3000"}
	c.Auth.JWTSecret = "test-secret"
	c.Apollo.BaseURL = "http://127.0.0.1:0"
	c.Apollo.Retry.MaxAttempts = 1
	c.Pipeline.Threshold = 60
	c.Pipeline.StageTimeoutSecs = 1
	c.Pipeline.PerPageMultiplier = 3
	c.Pipeline.MaxPerPage = 100
	c.Plans = map[string]int{"free": 5, "starter": 100}
	return c
}

func TestPlanAllotments(t *testing.T) {
	assert.Nil(t, planAllotments(nil))
	assert.Equal(t, map[model.Plan]int{model.PlanFree: 3, model.PlanPro: 40},
		planAllotments(map[string]int{"free": 3, "pro": 40}))
}

func TestNewGuard_UsesHoldTTL(t *testing.T) {
	c := testConfig(t)
	c.Pipeline.HoldTTLSecs = 60
	withConfig(t, c)

	ctx := context.Background()
	st, err := openStore(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	g := newGuard(st).WithClock(func() time.Time { return now })
	acct := model.Account{ID: "acct-1", Plan: model.PlanStarter}
	assert.Equal(t, 100, g.Allotment(model.PlanStarter))

	_, err = g.Acquire(ctx, acct, 10)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	u, err := g.Usage(ctx, acct)
	require.NoError(t, err)
	assert.Zero(t, u.LeadsReserved)
}

func TestCLIAccount(t *testing.T) {
	_, err := cliAccount("", "pro")
	assert.Error(t, err)

	acct, err := cliAccount("acct-1", "")
	require.NoError(t, err)
	assert.Equal(t, model.PlanFree, acct.Plan)
}

func TestInitStore(t *testing.T) {
	c := testConfig(t)
	withConfig(t, c)

	st, err := openStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	assert.NoError(t, st.Ping(context.Background()))

	c.Store.Driver = "mysql"
	_, err = initStore(context.Background())
	assert.Error(t, err)
}

func TestBuildLadder(t *testing.T) {
	c := testConfig(t)
	norm := normalize.New(normalize.DefaultVocabulary())

	assert.Nil(t, buildLadder(c, norm), "no key means no provider")

	c.Apollo.Key = "apollo-key"
	assert.NotNil(t, buildLadder(c, norm))
}

func TestBuildVariations(t *testing.T) {
	c := testConfig(t)
	assert.Nil(t, buildVariations(c))

	c.Anthropic.Key = "sk-ant"
	c.Anthropic.BaseURL = "http://127.0.0.1:0"
	assert.NotNil(t, buildVariations(c))
}

func TestInitApp(t *testing.T) {
	withConfig(t, testConfig(t))

	env, err := initApp(context.Background(), "serve")
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Pipeline)
	assert.NotNil(t, env.Guard)
	assert.Nil(t, env.Variations)
}

func TestInitApp_InvalidConfig(t *testing.T) {
	c := testConfig(t)
	c.Auth.JWTSecret = ""
	withConfig(t, c)

	_, err := initApp(context.Background(), "serve")
	assert.Error(t, err)
}
