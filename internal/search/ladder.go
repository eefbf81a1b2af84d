package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/normalize"
)

// Stage labels recorded in a Trace.
const (
	StageFull         = "full"
	StageDropSize     = "dropped size filter"
	StageDropIndustry = "dropped sector filter"

	stageCityPrefix = "tried city "
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMultiplier = 3
	defaultMaxPerPage = 100
)

// Searcher is a prospect-search provider.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]model.Candidate, error)
}

// StageSpec is one rung of the ladder: a pure transform of the base query.
type StageSpec struct {
	Label string
	Apply func(base Query) Query
}

// Trace lists the relaxations attempted, in order, and the number of
// provider calls made.
type Trace struct {
	Stages   []string `json:"stages"`
	Attempts int      `json:"attempts"`
}

// Result is the outcome of a ladder run. Interrupted is set when ctx ended
// before the ladder finished; the remaining stages were never tried.
type Result struct {
	Candidates  []model.Candidate
	Trace       Trace
	Stage       string
	Interrupted bool
}

// Exhausted reports whether every stage ran and none produced candidates.
func (r Result) Exhausted() bool {
	return len(r.Candidates) == 0 && !r.Interrupted
}

// Config tunes the orchestrator. Timeout bounds each provider call.
type Config struct {
	Timeout           time.Duration
	PerPageMultiplier int
	MaxPerPage        int
}

// Orchestrator runs the relaxation ladder. It keeps no per-request state.
type Orchestrator struct {
	searcher Searcher
	norm     *normalize.Normalizer
	cfg      Config
}

// NewOrchestrator creates an orchestrator over searcher.
func NewOrchestrator(searcher Searcher, norm *normalize.Normalizer, cfg Config) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PerPageMultiplier <= 0 {
		cfg.PerPageMultiplier = defaultMultiplier
	}
	if cfg.MaxPerPage <= 0 {
		cfg.MaxPerPage = defaultMaxPerPage
	}
	return &Orchestrator{searcher: searcher, norm: norm, cfg: cfg}
}

// Stages returns the ladder for nc in execution order:
// full, drop size, one stage per city when the location is country-only,
// then drop sector on top of the size relaxation.
func (o *Orchestrator) Stages(nc normalize.Criteria) []StageSpec {
	stages := []StageSpec{
		{Label: StageFull, Apply: func(q Query) Query { return q }},
		{Label: StageDropSize, Apply: Query.WithoutSize},
	}
	if nc.Location.CountryOnly() {
		for _, city := range o.norm.Cities(nc.Location.Country) {
			loc := o.norm.DisplayLocation(&normalize.Location{City: city, Country: nc.Location.Country})
			stages = append(stages, StageSpec{
				Label: stageCityPrefix + city,
				Apply: func(q Query) Query { return q.WithoutSize().WithLocation(loc) },
			})
		}
	}
	stages = append(stages, StageSpec{
		Label: StageDropIndustry,
		Apply: func(q Query) Query { return q.WithoutSize().WithoutIndustries() },
	})
	return stages
}

// Run executes the ladder for nc, stopping at the first stage that returns
// candidates. Provider errors count as an empty stage.
func (o *Orchestrator) Run(ctx context.Context, nc normalize.Criteria, requested int) Result {
	perPage := PerPage(requested, o.cfg.PerPageMultiplier, o.cfg.MaxPerPage)
	base := BaseQuery(nc, o.norm.DisplayLocation(nc.Location), perPage)

	var res Result
	for _, stage := range o.Stages(nc) {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}
		if stage.Label != StageFull {
			res.Trace.Stages = append(res.Trace.Stages, stage.Label)
		}
		res.Trace.Attempts++

		found := o.attempt(ctx, stage, stage.Apply(base))
		if len(found) > 0 {
			res.Candidates = found
			res.Stage = stage.Label
			return res
		}
		// An empty stage cut short by the caller proves nothing.
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}
	}

	if res.Interrupted {
		zap.L().Warn("search: ladder interrupted",
			zap.Int("attempts", res.Trace.Attempts),
			zap.Strings("relaxed", res.Trace.Stages),
			zap.Error(ctx.Err()),
		)
		return res
	}

	zap.L().Info("search: ladder exhausted",
		zap.Int("attempts", res.Trace.Attempts),
		zap.Strings("relaxed", res.Trace.Stages),
	)
	return res
}

func (o *Orchestrator) attempt(ctx context.Context, stage StageSpec, q Query) []model.Candidate {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	start := time.Now()
	found, err := o.searcher.Search(callCtx, q)
	if err != nil {
		zap.L().Warn("search: stage failed",
			zap.String("stage", stage.Label),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil
	}

	zap.L().Debug("search: stage complete",
		zap.String("stage", stage.Label),
		zap.Int("found", len(found)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return found
}
