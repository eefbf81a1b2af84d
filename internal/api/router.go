// Package api exposes lead generation, lead management, quota and email
// variation over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/leadgen/internal/leadgen"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/variation"
)

// Generator runs one lead generation.
type Generator interface {
	Generate(ctx context.Context, acct model.Account, crit model.Criteria) (leadgen.Envelope, error)
}

// LeadStore is the lead persistence the handlers need.
type LeadStore interface {
	CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error)
	ListLeads(ctx context.Context, ownerID string, filter model.LeadFilter) ([]model.Lead, error)
	DeleteLead(ctx context.Context, ownerID, id string) error
	Ping(ctx context.Context) error
}

// UsageReader reports an account's current-period quota.
type UsageReader interface {
	Usage(ctx context.Context, acct model.Account) (*model.Usage, error)
}

// VariationGenerator rewrites an email template.
type VariationGenerator interface {
	Generate(ctx context.Context, req variation.Request) (*variation.Variation, error)
}

// TokenVerifier turns a session token into an account.
type TokenVerifier interface {
	Verify(raw string) (model.Account, error)
}

// Deps are the collaborators behind the routes. A nil Variations
// disables the email-variation route.
type Deps struct {
	Generator  Generator
	Leads      LeadStore
	Usage      UsageReader
	Variations VariationGenerator
	Verifier   TokenVerifier
}

// Options tunes the router.
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

type handler struct {
	deps Deps
}

// NewRouter registers all routes and the middleware stack.
func NewRouter(deps Deps, opts Options) http.Handler {
	h := &handler{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	r.Get("/health", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authenticate)

		r.Post("/leads/generate", h.generateLeads)
		r.Get("/leads", h.listLeads)
		r.Post("/leads", h.createLead)
		r.Delete("/leads/{id}", h.deleteLead)
		r.Get("/user/quotas", h.quotas)
		r.Post("/ai/email-variation", h.emailVariation)
	})

	return r
}
