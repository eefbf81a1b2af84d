package leadgen

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/normalize"
	"github.com/sells-group/leadgen/internal/quota"
	"github.com/sells-group/leadgen/internal/search"
)

// ErrInvalidCriteria is returned by Generate when the request itself is
// malformed. It is the only error Generate returns.
var ErrInvalidCriteria = eris.New("leadgen: invalid criteria")

// Ladder runs the relaxation search. *search.Orchestrator implements it.
type Ladder interface {
	Run(ctx context.Context, nc normalize.Criteria, requested int) search.Result
}

// Scorer scores candidates against the raw criteria.
type Scorer interface {
	ScoreAll(cands []model.Candidate, crit model.Criteria) []model.ScoredCandidate
}

// LeadWriter persists a batch of leads atomically.
type LeadWriter interface {
	InsertLeads(ctx context.Context, leads []model.Lead) ([]model.Lead, error)
}

// Config tunes the pipeline.
type Config struct {
	Provider  string
	Threshold int
}

// Pipeline turns criteria into persisted, qualified leads.
type Pipeline struct {
	norm   *normalize.Normalizer
	ladder Ladder
	scorer Scorer
	guard  *quota.Guard
	leads  LeadWriter
	cfg    Config
}

// New creates a Pipeline. A nil ladder means no search provider is
// configured; every generation then fails with MISSING_PROVIDER_KEY.
func New(norm *normalize.Normalizer, ladder Ladder, scorer Scorer, guard *quota.Guard, leads LeadWriter, cfg Config) *Pipeline {
	if cfg.Provider == "" {
		cfg.Provider = string(model.LeadSourceApollo)
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = QualificationThreshold
	}
	return &Pipeline{
		norm:   norm,
		ladder: ladder,
		scorer: scorer,
		guard:  guard,
		leads:  leads,
		cfg:    cfg,
	}
}

// Generate runs one acquisition for acct. Every pipeline outcome is
// reported through the envelope; the error is non-nil only for
// ErrInvalidCriteria.
func (p *Pipeline) Generate(ctx context.Context, acct model.Account, crit model.Criteria) (Envelope, error) {
	if acct.ID == "" {
		return failure(ReasonUnauthorized, nil), nil
	}
	if err := crit.Validate(); err != nil {
		return Envelope{}, eris.Wrap(ErrInvalidCriteria, err.Error())
	}

	log := zap.L().With(
		zap.String("account_id", acct.ID),
		zap.Int("requested", crit.NumberOfLeads),
	)

	if p.ladder == nil {
		log.Error("leadgen: search provider is not configured")
		return failure(ReasonMissingProviderKey, nil), nil
	}

	res, err := p.guard.Acquire(ctx, acct, crit.NumberOfLeads)
	if errors.Is(err, quota.ErrQuotaExceeded) {
		log.Info("leadgen: quota exceeded", zap.String("plan", string(acct.Plan)))
		return failure(ReasonQuotaExceeded, nil), nil
	}
	if err != nil {
		log.Error("leadgen: quota reservation failed", zap.Error(err))
		return failure(ReasonInternal, nil), nil
	}

	env, produced := p.run(ctx, log, acct, crit)

	// The request context may already be gone; the reservation must still
	// be closed.
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if produced > 0 {
		if err := res.Commit(closeCtx, produced); err != nil {
			// The leads are stored; report them rather than fail the request.
			// The hold stays open and is returned when its TTL lapses.
			log.Error("leadgen: quota commit failed", zap.Int("produced", produced), zap.Error(err))
		}
	} else if err := res.Release(closeCtx); err != nil {
		log.Error("leadgen: quota release failed", zap.Error(err))
	}

	return env, nil
}

func (p *Pipeline) run(ctx context.Context, log *zap.Logger, acct model.Account, crit model.Criteria) (Envelope, int) {
	start := time.Now()
	nc := p.norm.Criteria(crit)

	result := p.ladder.Run(ctx, nc, crit.NumberOfLeads)
	meta := &Meta{
		Provider: p.cfg.Provider,
		Attempts: result.Trace.Attempts,
		Relaxed:  relaxed(result.Trace.Stages),
	}
	if result.Interrupted {
		log.Warn("leadgen: search interrupted before the ladder finished",
			zap.Int("attempts", meta.Attempts),
			zap.Strings("relaxed", meta.Relaxed),
			zap.Error(ctx.Err()),
		)
		return failure(ReasonInternal, meta), 0
	}
	if result.Exhausted() {
		log.Info("leadgen: no candidates from provider",
			zap.Int("attempts", meta.Attempts),
			zap.Strings("relaxed", meta.Relaxed),
		)
		return failure(ReasonNoMatches, meta), 0
	}

	total := len(result.Candidates)
	meta.TotalFound = &total

	// Scoring uses the raw criteria; normalization only shapes the query.
	scored := p.scorer.ScoreAll(result.Candidates, crit)
	selected := Select(scored, p.cfg.Threshold, crit.NumberOfLeads)
	if len(selected) == 0 {
		log.Info("leadgen: no candidate cleared the threshold",
			zap.Int("total_found", total),
			zap.Int("threshold", p.cfg.Threshold),
		)
		return failure(ReasonTooStrict, meta), 0
	}

	saved, err := p.leads.InsertLeads(ctx, Hydrate(acct.ID, selected, model.LeadSource(p.cfg.Provider)))
	if err != nil {
		log.Error("leadgen: persist leads failed",
			zap.Int("leads", len(selected)),
			zap.Error(err),
		)
		return failure(ReasonInternal, meta), 0
	}

	log.Info("leadgen: generation complete",
		zap.String("stage", result.Stage),
		zap.Int("total_found", total),
		zap.Int("produced", len(saved)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return success(saved, meta), len(saved)
}

// Hydrate converts selected candidates into unsaved leads owned by ownerID.
// The organization's industry wins over the requested sector when known.
func Hydrate(ownerID string, selected []model.ScoredCandidate, source model.LeadSource) []model.Lead {
	leads := make([]model.Lead, 0, len(selected))
	for _, sc := range selected {
		first, last := sc.SplitName()
		sector := sc.Organization.Industry
		if sector == "" {
			sector = sc.Criteria.Sector
		}
		score := sc.Score
		leads = append(leads, model.Lead{
			OwnerID:   ownerID,
			FirstName: first,
			LastName:  last,
			Email:     sc.Email,
			Company:   sc.Organization.Name,
			Sector:    sector,
			Position:  sc.Title,
			Score:     &score,
			Status:    model.LeadStatusNew,
			Source:    source,
			Notes:     sc.LinkedInURL,
		})
	}
	return leads
}

func relaxed(stages []string) []string {
	if stages == nil {
		return []string{}
	}
	return stages
}
