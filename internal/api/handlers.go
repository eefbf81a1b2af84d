package api

import (
	"errors"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/auth"
	"github.com/sells-group/leadgen/internal/leadgen"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/store"
	"github.com/sells-group/leadgen/internal/variation"
)

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Leads.Ping(r.Context()); err != nil {
		zap.L().Error("api: health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) generateLeads(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.AccountFrom(r.Context())

	var crit model.Criteria
	if err := decodeJSON(w, r, &crit); err != nil {
		writeJSON(w, http.StatusBadRequest, leadgen.Envelope{Data: []model.Lead{}, Message: "invalid request body"})
		return
	}

	env, err := h.deps.Generator.Generate(r.Context(), acct, crit)
	if errors.Is(err, leadgen.ErrInvalidCriteria) {
		writeJSON(w, http.StatusBadRequest, leadgen.Envelope{Data: []model.Lead{}, Message: "numberOfLeads must be greater than zero"})
		return
	}
	if err != nil {
		h.internalError(w, r, "generate leads", err)
		return
	}
	if ctxErr := r.Context().Err(); ctxErr != nil {
		// The timeout middleware answers 504; a cancelled caller is gone.
		zap.L().Warn("api: generate leads interrupted",
			zap.String("account_id", acct.ID),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("reason", string(env.Reason)),
			zap.Error(ctxErr),
		)
		return
	}

	writeJSON(w, envelopeStatus(env), env)
}

func (h *handler) listLeads(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.AccountFrom(r.Context())

	filter, err := parseLeadFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	leads, err := h.deps.Leads.ListLeads(r.Context(), acct.ID, filter)
	if err != nil {
		h.internalError(w, r, "list leads", err)
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	writeData(w, http.StatusOK, leads)
}

type createLeadRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Company   string `json:"company"`
	Sector    string `json:"sector"`
	Position  string `json:"position"`
	Score     *int   `json:"score"`
	Status    string `json:"status"`
	Notes     string `json:"notes"`
}

func (req createLeadRequest) validate() error {
	var missing []string
	for name, v := range map[string]string{
		"firstName": req.FirstName,
		"lastName":  req.LastName,
		"email":     req.Email,
		"company":   req.Company,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return errors.New("missing required fields: " + strings.Join(missing, ", "))
	}
	if !strings.Contains(req.Email, "@") {
		return errors.New("email is invalid")
	}
	if req.Score != nil && (*req.Score < 0 || *req.Score > 100) {
		return errors.New("score must be between 0 and 100")
	}
	if req.Status != "" && !validStatus(model.LeadStatus(req.Status)) {
		return errors.New("status is invalid")
	}
	return nil
}

func (h *handler) createLead(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.AccountFrom(r.Context())

	var req createLeadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lead, err := h.deps.Leads.CreateLead(r.Context(), model.Lead{
		OwnerID:   acct.ID,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.TrimSpace(req.Email),
		Company:   strings.TrimSpace(req.Company),
		Sector:    req.Sector,
		Position:  req.Position,
		Score:     req.Score,
		Status:    model.LeadStatus(req.Status),
		Source:    model.LeadSourceManual,
		Notes:     req.Notes,
	})
	if err != nil {
		h.internalError(w, r, "create lead", err)
		return
	}
	writeData(w, http.StatusCreated, lead)
}

func (h *handler) deleteLead(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.AccountFrom(r.Context())

	err := h.deps.Leads.DeleteLead(r.Context(), acct.ID, chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "delete lead", err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "lead deleted"})
}

type leadCounts struct {
	Leads int `json:"leads"`
}

type leadPercent struct {
	Leads float64 `json:"leads"`
}

type quotaResponse struct {
	Plan       model.Plan  `json:"plan"`
	Period     string      `json:"period"`
	Limits     leadCounts  `json:"limits"`
	Usage      leadCounts  `json:"usage"`
	Reserved   leadCounts  `json:"reserved"`
	Remaining  leadCounts  `json:"remaining"`
	Percentage leadPercent `json:"percentage"`
}

func (h *handler) quotas(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.AccountFrom(r.Context())

	u, err := h.deps.Usage.Usage(r.Context(), acct)
	if err != nil {
		h.internalError(w, r, "read quota", err)
		return
	}

	resp := quotaResponse{
		Plan:      u.Plan,
		Period:    u.Period,
		Limits:    leadCounts{Leads: u.LeadsAllotted},
		Usage:     leadCounts{Leads: u.LeadsUsed},
		Reserved:  leadCounts{Leads: u.LeadsReserved},
		Remaining: leadCounts{Leads: u.Remaining()},
	}
	if u.LeadsAllotted > 0 {
		pct := float64(u.LeadsUsed) / float64(u.LeadsAllotted) * 100
		resp.Percentage.Leads = math.Min(100, math.Round(pct*10)/10)
	} else if u.LeadsUsed > 0 {
		resp.Percentage.Leads = 100
	}
	writeData(w, http.StatusOK, resp)
}

func (h *handler) emailVariation(w http.ResponseWriter, r *http.Request) {
	if h.deps.Variations == nil {
		writeError(w, http.StatusServiceUnavailable, "email variation is not configured")
		return
	}

	var req variation.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	v, err := h.deps.Variations.Generate(r.Context(), req)
	if errors.Is(err, variation.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, "originalSubject and originalContent are required")
		return
	}
	if err != nil {
		h.internalError(w, r, "email variation", err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success   bool                 `json:"success"`
		Variation *variation.Variation `json:"variation"`
	}{true, v})
}

// internalError logs err with request context and returns a generic
// failure to the caller.
func (h *handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	acct, _ := auth.AccountFrom(r.Context())
	zap.L().Error("api: "+op+" failed",
		zap.String("account_id", acct.ID),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeReason(w, http.StatusInternalServerError, leadgen.ReasonInternal)
}

func parseLeadFilter(r *http.Request) (model.LeadFilter, error) {
	q := r.URL.Query()
	f := model.LeadFilter{
		Status: model.LeadStatus(q.Get("status")),
		Source: model.LeadSource(q.Get("source")),
	}
	if f.Status != "" && !validStatus(f.Status) {
		return f, errors.New("status is invalid")
	}
	var err error
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		return f, errors.New("limit must be a non-negative integer")
	}
	if f.Offset, err = intParam(q.Get("offset")); err != nil {
		return f, errors.New("offset must be a non-negative integer")
	}
	f.Limit = min(f.Limit, maxListLimit)
	return f, nil
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("invalid")
	}
	return n, nil
}

func validStatus(s model.LeadStatus) bool {
	switch s {
	case model.LeadStatusNew, model.LeadStatusContacted, model.LeadStatusQualified,
		model.LeadStatusConverted, model.LeadStatusLost:
		return true
	}
	return false
}
