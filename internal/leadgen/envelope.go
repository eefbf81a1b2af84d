package leadgen

import (
	"fmt"

	"github.com/sells-group/leadgen/internal/model"
)

// Reason is the machine-readable cause of an unsuccessful generation.
type Reason string

const (
	ReasonUnauthorized       Reason = "UNAUTHORIZED"
	ReasonMissingProviderKey Reason = "MISSING_PROVIDER_KEY"
	ReasonQuotaExceeded      Reason = "QUOTA_EXCEEDED"
	ReasonNoMatches          Reason = "NO_MATCHES_FROM_PROVIDER"
	ReasonTooStrict          Reason = "TOO_STRICT_FILTERS"
	ReasonInternal           Reason = "INTERNAL_ERROR"
)

// Envelope is the response of one generation. success=false with a reason
// is an expected outcome, not an error.
type Envelope struct {
	Success bool         `json:"success"`
	Data    []model.Lead `json:"data"`
	Reason  Reason       `json:"reason,omitempty"`
	Meta    *Meta        `json:"meta,omitempty"`
	Message string       `json:"message"`
}

// Meta describes how the provider was queried.
type Meta struct {
	Provider   string   `json:"provider"`
	Attempts   int      `json:"attempts"`
	Relaxed    []string `json:"relaxed"`
	TotalFound *int     `json:"totalFound,omitempty"`
}

var reasonMessages = map[Reason]string{
	ReasonUnauthorized:       "Authentication required.",
	ReasonMissingProviderKey: "Lead search is not configured. Contact support.",
	ReasonQuotaExceeded:      "Monthly lead quota exceeded. Request fewer leads or upgrade your plan.",
	ReasonNoMatches:          "No prospects found for these criteria, even after relaxing the search. Try broader criteria.",
	ReasonTooStrict:          "Prospects were found but none matched your targeting closely enough. Try loosening sector or position.",
	ReasonInternal:           "Something went wrong while generating leads. Please try again.",
}

// Message returns the user-facing text for r.
func (r Reason) Message() string {
	if m, ok := reasonMessages[r]; ok {
		return m
	}
	return reasonMessages[ReasonInternal]
}

func failure(r Reason, meta *Meta) Envelope {
	return Envelope{
		Data:    []model.Lead{},
		Reason:  r,
		Meta:    meta,
		Message: r.Message(),
	}
}

func success(leads []model.Lead, meta *Meta) Envelope {
	return Envelope{
		Success: true,
		Data:    leads,
		Meta:    meta,
		Message: generatedMessage(len(leads)),
	}
}

func generatedMessage(n int) string {
	if n == 1 {
		return "1 lead generated"
	}
	return fmt.Sprintf("%d leads generated", n)
}
