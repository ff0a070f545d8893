package service

import (
	"context"
	"strings"

	"core/internal/config"
	"core/internal/model"
	"core/internal/utils"

	"go.uber.org/zap"
)

// Completion is the result of one language-model call
type Completion struct {
	Text       string
	TokensUsed int
}

// LLMGateway wraps the chat-completion provider. Provider failures never
// escape this layer; callers branch on the ok result.
type LLMGateway struct {
	client CompletionClient
	cfg    *config.AIConfig
	log    *zap.Logger
}

// NewLLMGateway creates a new language-model gateway
func NewLLMGateway(client CompletionClient, cfg *config.AIConfig, log *zap.Logger) *LLMGateway {
	return &LLMGateway{client: client, cfg: cfg, log: log}
}

// Enabled reports whether completion calls may be attempted
func (g *LLMGateway) Enabled() bool {
	return g.client != nil && g.client.Enabled()
}

// Complete generates a free-text response. history is passed oldest first;
// returns ok=false when the gateway is disabled or the provider failed.
func (g *LLMGateway) Complete(ctx context.Context, systemPrompt, userMessage string, history []model.Message, preset Preset) (Completion, bool) {
	if !g.Enabled() {
		return Completion{}, false
	}

	params := preset.params()
	messages := make([]ChatMessage, 0, len(history)+2)
	messages = append(messages, ChatMessage{Role: "system", Content: systemPrompt})
	for _, m := range history {
		if m.Role != model.RoleUser && m.Role != model.RoleAssistant {
			continue
		}
		messages = append(messages, ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: userMessage})

	req := ChatCompletionRequest{
		Model:       g.cfg.ChatModel,
		Messages:    messages,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		MaxTokens:   params.MaxTokens,
	}

	resp, err := g.client.ChatCompletion(ctx, req)
	if err != nil {
		g.log.Warn("completion call failed", zap.String("preset", string(preset)), zap.Error(err))
		return Completion{}, false
	}
	if len(resp.Choices) == 0 {
		g.log.Warn("completion returned no choices")
		return Completion{}, false
	}

	return Completion{
		Text:       strings.TrimSpace(resp.Choices[0].Message.Content),
		TokensUsed: resp.Usage.TotalTokens,
	}, true
}

// CompleteJSON asks the model to answer in a fixed JSON shape and parses the
// response into out. Parse failures map to ok=false, never an error.
func (g *LLMGateway) CompleteJSON(ctx context.Context, systemPrompt, userMessage string, preset Preset, out interface{}) (int, bool) {
	if !g.Enabled() {
		return 0, false
	}

	params := preset.params()
	req := ChatCompletionRequest{
		Model: g.cfg.ChatModel,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
		Temperature:    params.Temperature,
		TopP:           params.TopP,
		MaxTokens:      params.MaxTokens,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}

	resp, err := g.client.ChatCompletion(ctx, req)
	if err != nil {
		g.log.Warn("structured completion call failed", zap.Error(err))
		return 0, false
	}
	if len(resp.Choices) == 0 {
		g.log.Warn("structured completion returned no choices")
		return 0, false
	}

	content := resp.Choices[0].Message.Content
	if err := utils.ParseAIJSON(content, out); err != nil {
		g.log.Warn("failed to parse structured completion", zap.Error(err))
		return resp.Usage.TotalTokens, false
	}

	return resp.Usage.TotalTokens, true
}
