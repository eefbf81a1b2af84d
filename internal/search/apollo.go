package search

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/resilience"
	"github.com/sells-group/leadgen/pkg/apollo"
)

// ApolloSearcher adapts an apollo.Client to Searcher, retrying transient
// failures within the caller's deadline.
type ApolloSearcher struct {
	client apollo.Client
	retry  resilience.RetryConfig
}

// NewApolloSearcher wraps client. A zero retry config uses the defaults.
func NewApolloSearcher(client apollo.Client, retry resilience.RetryConfig) *ApolloSearcher {
	if retry.ShouldRetry == nil {
		retry.ShouldRetry = retryableApolloError
	}
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.Logger("apollo", "search_people")
	}
	return &ApolloSearcher{client: client, retry: retry}
}

// Search issues q as a single people-search page.
func (s *ApolloSearcher) Search(ctx context.Context, q Query) ([]model.Candidate, error) {
	req := apollo.SearchRequest{
		Page:                       1,
		PerPage:                    q.PerPage,
		OrganizationLocations:      q.Locations,
		OrganizationIndustries:     q.Industries,
		OrganizationEmployeeRanges: q.EmployeeRanges,
		Titles:                     q.Titles,
	}

	resp, err := resilience.Do(ctx, s.retry, func(ctx context.Context) (*apollo.SearchResponse, error) {
		return s.client.SearchPeople(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrap(err, "search: apollo people search")
	}

	out := make([]model.Candidate, 0, len(resp.People))
	for _, p := range resp.People {
		out = append(out, candidateFromPerson(p))
	}
	return out, nil
}

func retryableApolloError(err error) bool {
	var se *apollo.StatusError
	if errors.As(err, &se) {
		return resilience.IsTransientHTTPStatus(se.StatusCode)
	}
	return resilience.IsTransient(err)
}

func candidateFromPerson(p apollo.Person) model.Candidate {
	c := model.Candidate{
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Name:        p.Name,
		Email:       p.Email,
		Title:       p.Title,
		LinkedInURL: p.LinkedInURL,
	}
	if org := p.Organization; org != nil {
		c.Organization = model.Organization{
			Name:      org.Name,
			Industry:  org.Industry,
			Headcount: headcount(org.EmployeeRange, org.EstimatedNumEmployees),
			Location:  joinNonEmpty(org.City, org.Country),
		}
	}
	if c.Organization.Location == "" {
		c.Organization.Location = joinNonEmpty(p.City, p.Country)
	}
	return c
}

// headcountBuckets are the provider's employee-count bands.
var headcountBuckets = []struct {
	max   int
	label string
}{
	{10, "1-10"},
	{50, "11-50"},
	{200, "51-200"},
	{500, "201-500"},
	{1000, "501-1000"},
	{5000, "1001-5000"},
	{10000, "5001-10000"},
}

func headcount(label string, estimate int) string {
	if label = strings.TrimSpace(label); label != "" {
		return label
	}
	if estimate <= 0 {
		return ""
	}
	for _, b := range headcountBuckets {
		if estimate <= b.max {
			return b.label
		}
	}
	return strconv.Itoa(headcountBuckets[len(headcountBuckets)-1].max+1) + "+"
}

func joinNonEmpty(parts ...string) string {
	var keep []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keep = append(keep, p)
		}
	}
	return strings.Join(keep, ", ")
}
