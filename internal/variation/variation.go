// Package variation rewrites outreach email templates into fresh variants
// that keep their structure and placeholders.
package variation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/pkg/anthropic"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "claude-haiku-4-5-20251001"

// ErrInvalidRequest is returned when the original subject or content is
// missing.
var ErrInvalidRequest = eris.New("variation: original subject and content are required")

// Request is the template to vary.
type Request struct {
	OriginalSubject string `json:"originalSubject"`
	OriginalContent string `json:"originalContent"`
	Category        string `json:"category,omitempty"`
}

// Variation is a rewritten subject and body. Fallback is set when the
// model reply could not be used and the original text was returned.
type Variation struct {
	Subject  string `json:"subject"`
	Content  string `json:"content"`
	Fallback bool   `json:"fallback,omitempty"`
}

// Config tunes generation.
type Config struct {
	Model       string
	MaxTokens   int64
	Temperature float64
}

// Generator produces variations through a generative-text client.
type Generator struct {
	client anthropic.Client
	cfg    Config
}

// NewGenerator creates a Generator.
func NewGenerator(client anthropic.Client, cfg Config) *Generator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	return &Generator{client: client, cfg: cfg}
}

const systemPrompt = `You are an expert B2B sales copywriter. You answer ONLY with valid JSON.`

// placeholders that must survive the rewrite verbatim.
var placeholders = []string{"[PRENOM]", "[ENTREPRISE]", "[BENEFICE_PRINCIPAL]", "[EXPEDITEUR]"}

func userPrompt(req Request) string {
	return fmt.Sprintf(`Write a variation of the following email. Keep EXACTLY the same structure, tone and placeholders such as %s.

CATEGORY: %s
ORIGINAL SUBJECT: %s
ORIGINAL CONTENT:
%s

Rules:
1. Keep the same structure and length.
2. Keep every placeholder in square brackets unchanged.
3. Keep the same professional, friendly tone.
4. Change only words and phrasing, not the structure.
5. Keep the same punctuation and formatting.
6. Write in the language of the original.

Return ONLY this JSON:
{"subject": "new subject with placeholders", "content": "new content with placeholders"}`,
		strings.Join(placeholders, ", "), req.Category, req.OriginalSubject, req.OriginalContent)
}

// Generate asks the model for a variation. A reply that cannot be parsed,
// or that drops a placeholder present in the original, yields the
// original text with Fallback set. Transport errors are returned.
func (g *Generator) Generate(ctx context.Context, req Request) (*Variation, error) {
	if strings.TrimSpace(req.OriginalSubject) == "" || strings.TrimSpace(req.OriginalContent) == "" {
		return nil, ErrInvalidRequest
	}

	temp := g.cfg.Temperature
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		System:      systemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: userPrompt(req)}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "variation: generate")
	}
	resp.Usage.LogCost(g.cfg.Model, "email_variation")

	v, ok := parseVariation(resp.Text())
	if !ok || !keepsPlaceholders(req, v) {
		zap.L().Warn("variation: unusable model reply, returning original",
			zap.String("category", req.Category),
			zap.Int("reply_len", len(resp.Text())),
		)
		return &Variation{Subject: req.OriginalSubject, Content: req.OriginalContent, Fallback: true}, nil
	}

	if v.Subject == "" {
		v.Subject = req.OriginalSubject
	}
	if v.Content == "" {
		v.Content = req.OriginalContent
	}
	return &v, nil
}

// parseVariation extracts the JSON object from a reply that may be
// wrapped in prose or code fences.
func parseVariation(text string) (Variation, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Variation{}, false
	}
	var v Variation
	if err := json.Unmarshal([]byte(text[start:end+1]), &v); err != nil {
		return Variation{}, false
	}
	v.Fallback = false
	return v, v.Subject != "" || v.Content != ""
}

func keepsPlaceholders(req Request, v Variation) bool {
	original := req.OriginalSubject + "\n" + req.OriginalContent
	varied := v.Subject + "\n" + v.Content
	if v.Subject == "" {
		varied = req.OriginalSubject + "\n" + v.Content
	}
	if v.Content == "" {
		varied = v.Subject + "\n" + req.OriginalContent
	}
	for _, p := range placeholders {
		if strings.Contains(original, p) && !strings.Contains(varied, p) {
			return false
		}
	}
	return true
}
