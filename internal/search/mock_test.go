package search

import (
	"context"
	"sync"

	"github.com/sells-group/leadgen/internal/model"
)

// stubSearcher answers each query through respond and records every call.
type stubSearcher struct {
	mu      sync.Mutex
	calls   []Query
	respond func(ctx context.Context, q Query) ([]model.Candidate, error)
}

func (s *stubSearcher) Search(ctx context.Context, q Query) ([]model.Candidate, error) {
	s.mu.Lock()
	s.calls = append(s.calls, q)
	s.mu.Unlock()
	if s.respond == nil {
		return nil, nil
	}
	return s.respond(ctx, q)
}

func (s *stubSearcher) Calls() []Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Query(nil), s.calls...)
}

func oneCandidate() []model.Candidate {
	return []model.Candidate{{
		FirstName: "Claire",
		LastName:  "Martin",
		Email:     "claire@example.fr",
		Title:     "CEO",
		Organization: model.Organization{
			Name:      "Acme",
			Industry:  "Technology",
			Headcount: "1-10",
			Location:  "Paris, France",
		},
	}}
}
