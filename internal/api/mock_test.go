package api

import (
	"context"
	"errors"
	"sync"

	"github.com/sells-group/leadgen/internal/leadgen"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/store"
	"github.com/sells-group/leadgen/internal/variation"
)

const validToken = "valid-token"

var testAccount = model.Account{ID: "acct-1", Email: "owner@example.com", Plan: model.PlanStarter}

type fakeVerifier struct{}

func (fakeVerifier) Verify(raw string) (model.Account, error) {
	if raw != validToken {
		return model.Account{}, errors.New("bad token")
	}
	return testAccount, nil
}

type fakeGenerator struct {
	mu    sync.Mutex
	got   []model.Criteria
	accts []model.Account
	env   leadgen.Envelope
	err   error
	// waitCtx makes Generate block until the request context ends.
	waitCtx bool
}

func (f *fakeGenerator) Generate(ctx context.Context, acct model.Account, crit model.Criteria) (leadgen.Envelope, error) {
	f.mu.Lock()
	f.got = append(f.got, crit)
	f.accts = append(f.accts, acct)
	env, err, wait := f.env, f.err, f.waitCtx
	f.mu.Unlock()
	if wait {
		<-ctx.Done()
	}
	return env, err
}

type fakeLeads struct {
	mu      sync.Mutex
	leads   []model.Lead
	filter  model.LeadFilter
	err     error
	pingErr error
}

func (f *fakeLeads) CreateLead(_ context.Context, lead model.Lead) (*model.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	lead.ID = "lead-new"
	if lead.Status == "" {
		lead.Status = model.LeadStatusNew
	}
	f.leads = append(f.leads, lead)
	return &lead, nil
}

func (f *fakeLeads) ListLeads(_ context.Context, ownerID string, filter model.LeadFilter) ([]model.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.filter = filter
	var out []model.Lead
	for _, l := range f.leads {
		if l.OwnerID == ownerID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLeads) DeleteLead(_ context.Context, ownerID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for i, l := range f.leads {
		if l.ID == id && l.OwnerID == ownerID {
			f.leads = append(f.leads[:i], f.leads[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeLeads) Ping(context.Context) error { return f.pingErr }

type fakeUsage struct {
	usage *model.Usage
	err   error
}

func (f fakeUsage) Usage(context.Context, model.Account) (*model.Usage, error) {
	return f.usage, f.err
}

type fakeVariations struct {
	v   *variation.Variation
	err error
}

func (f fakeVariations) Generate(_ context.Context, req variation.Request) (*variation.Variation, error) {
	if req.OriginalSubject == "" || req.OriginalContent == "" {
		return nil, variation.ErrInvalidRequest
	}
	return f.v, f.err
}
