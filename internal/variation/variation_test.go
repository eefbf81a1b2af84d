package variation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func sampleRequest() Request {
	return Request{
		OriginalSubject: "[PRENOM], une idée pour [ENTREPRISE]",
		OriginalContent: "Bonjour [PRENOM],\n\nJ'ai une idée pour [ENTREPRISE].\n\n[EXPEDITEUR]",
		Category:        "prospection",
	}
}

func TestGenerate(t *testing.T) {
	mc := &mockClient{reply: "Voici:\n```json\n{\"subject\": \"[PRENOM], une piste pour [ENTREPRISE]\", \"content\": \"Salut [PRENOM],\\n\\nUne piste pour [ENTREPRISE].\\n\\n[EXPEDITEUR]\"}\n```"}
	g := NewGenerator(mc, Config{})

	v, err := g.Generate(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.False(t, v.Fallback)
	assert.Equal(t, "[PRENOM], une piste pour [ENTREPRISE]", v.Subject)
	assert.Contains(t, v.Content, "Une piste")

	assert.Equal(t, DefaultModel, mc.got.Model)
	assert.Equal(t, int64(1000), mc.got.MaxTokens)
	require.NotNil(t, mc.got.Temperature)
	assert.InDelta(t, 0.7, *mc.got.Temperature, 1e-9)
	assert.Contains(t, mc.got.Messages[0].Content, "CATEGORY: prospection")
	assert.Contains(t, mc.got.Messages[0].Content, "ORIGINAL SUBJECT: [PRENOM], une idée pour [ENTREPRISE]")
}

func TestGenerate_Fallbacks(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"not json", "Sorry, I cannot help with that."},
		{"broken json", `{"subject": "x", "content": `},
		{"empty object", `{}`},
		{"drops placeholder", `{"subject": "Une idée pour vous", "content": "Bonjour,\n\nUne idée.\n\n[EXPEDITEUR]"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(&mockClient{reply: tt.reply}, Config{})
			req := sampleRequest()
			v, err := g.Generate(context.Background(), req)
			require.NoError(t, err)
			assert.True(t, v.Fallback)
			assert.Equal(t, req.OriginalSubject, v.Subject)
			assert.Equal(t, req.OriginalContent, v.Content)
		})
	}
}

func TestGenerate_PartialReplyKeepsOriginalField(t *testing.T) {
	g := NewGenerator(&mockClient{reply: `{"subject": "[PRENOM] x [ENTREPRISE]"}`}, Config{})
	req := sampleRequest()
	v, err := g.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, v.Fallback)
	assert.Equal(t, "[PRENOM] x [ENTREPRISE]", v.Subject)
	assert.Equal(t, req.OriginalContent, v.Content)
}

func TestGenerate_InvalidRequest(t *testing.T) {
	g := NewGenerator(&mockClient{}, Config{})
	_, err := g.Generate(context.Background(), Request{OriginalSubject: " ", OriginalContent: "x"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestGenerate_ClientError(t *testing.T) {
	g := NewGenerator(&mockClient{err: errors.New("overloaded")}, Config{Model: "m"})
	_, err := g.Generate(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variation: generate")
}
