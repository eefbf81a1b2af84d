package variation

import (
	"context"

	"github.com/sells-group/leadgen/pkg/anthropic"
)

type mockClient struct {
	reply string
	err   error
	got   anthropic.MessageRequest
}

func (m *mockClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.got = req
	if m.err != nil {
		return nil, m.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: m.reply}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 40},
	}, nil
}
