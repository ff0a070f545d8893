package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"core/internal/config"
	"core/internal/model"

	"go.uber.org/zap"
)

const disabledChatReply = "AI chat is currently disabled. Please use the search filters to browse properties, or contact support for assistance."

const apologyReply = "Sorry, something went wrong while processing your message. Please try again in a moment."

const assistantPersonaPrompt = `You are a helpful real estate assistant for an Indian property marketplace. You help users find properties to buy or rent, answer questions about listings, and guide them through their search.

Guidelines:
- Be concise and conversational
- Prices are in rupees; use lakh and crore where natural
- Only discuss properties and information provided to you; never invent listings or prices
- If you don't know something, say so and suggest how the user can find out`

// suggestedQuestions maps each intent to follow-up prompts shown to the user
var suggestedQuestions = map[model.Intent][]string{
	model.IntentSearch: {
		"Can you show me similar properties?",
		"What's the price range in this area?",
		"Do any of these have parking?",
	},
	model.IntentFilter: {
		"Can you sort these by price?",
		"Show me options in a nearby locality",
	},
	model.IntentInquiry: {
		"How does this compare to similar listings?",
		"Is the price negotiable?",
	},
	model.IntentCompare: {
		"Which one is the better value?",
		"Can I schedule visits for both?",
	},
	model.IntentScheduleVisit: {
		"What documents should I bring?",
		"Can you suggest similar properties to visit?",
	},
	model.IntentGeneral: {
		"Show me apartments in my city",
		"What can you help me with?",
	},
	model.IntentClarification: {
		"Show me what you found",
	},
}

// ChatOrchestrator coordinates one conversational turn: session resumption,
// intent analysis, retrieval, reply generation, and persistence.
type ChatOrchestrator struct {
	conv   *ConversationManager
	intent *IntentAnalyzer
	search *SearchEngine
	llm    *LLMGateway
	cfg    *config.ChatConfig
	log    *zap.Logger
}

// NewChatOrchestrator creates a new chat orchestrator
func NewChatOrchestrator(conv *ConversationManager, intent *IntentAnalyzer, search *SearchEngine, llm *LLMGateway, cfg *config.ChatConfig, log *zap.Logger) *ChatOrchestrator {
	return &ChatOrchestrator{
		conv:   conv,
		intent: intent,
		search: search,
		llm:    llm,
		cfg:    cfg,
		log:    log,
	}
}

// fallbackResponse is the degraded reply for a turn that could not be
// completed. The caller logs the underlying cause; none of it reaches the
// user.
func fallbackResponse(conversationID string) *model.ChatResponse {
	return &model.ChatResponse{
		Reply:              apologyReply,
		ConversationID:     conversationID,
		Properties:         []model.PropertySuggestion{},
		SuggestedQuestions: suggestedQuestions[model.IntentGeneral],
	}
}

// Chat handles one user message end to end. When the AI provider is disabled
// it answers with a fixed reply and touches neither sessions nor the
// provider. An internal panic degrades to an apology instead of a 500.
func (o *ChatOrchestrator) Chat(ctx context.Context, req model.ChatRequest) (resp *model.ChatResponse, err error) {
	if !o.llm.Enabled() {
		return &model.ChatResponse{
			Reply:      disabledChatReply,
			Properties: []model.PropertySuggestion{},
		}, nil
	}

	session, err := o.conv.Resume(ctx, req.UserID, req.ConversationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		o.log.Error("resuming session failed", zap.Error(err),
			zap.String("user_id", req.UserID), zap.String("stage", "resume"))
		return fallbackResponse(req.ConversationID), nil
	}

	defer func() {
		if r := recover(); r != nil {
			o.log.Error("chat turn panicked", zap.Any("panic", r),
				zap.String("user_id", req.UserID), zap.String("session_id", session.ID))
			resp = fallbackResponse(session.ID)
			err = nil
		}
	}()

	// The user's message is persisted before any provider call so a provider
	// failure cannot lose it.
	o.conv.AppendUser(session, req.Message)
	if err := o.conv.Save(ctx, session); err != nil {
		o.log.Error("persisting user message failed", zap.Error(err),
			zap.String("user_id", req.UserID), zap.String("session_id", session.ID),
			zap.String("stage", "save_user_message"))
		return fallbackResponse(session.ID), nil
	}

	analysis := o.intent.Extract(ctx, req.Message)
	o.conv.MergePreferences(session, analysis.Slots)

	resp = &model.ChatResponse{
		ConversationID:     session.ID,
		Properties:         []model.PropertySuggestion{},
		Intent:             string(analysis.Intent),
		SuggestedQuestions: suggestedQuestions[analysis.Intent],
	}
	meta := &model.MessageMetadata{Intent: string(analysis.Intent)}

	switch analysis.Intent {
	case model.IntentSearch, model.IntentFilter:
		o.handleSearch(ctx, session, req.Message, resp, meta)
	default:
		o.handleConversational(ctx, session, req.Message, resp)
	}

	o.conv.AppendAssistant(session, resp.Reply, meta)
	if err := o.conv.Save(ctx, session); err != nil {
		o.log.Error("persisting assistant reply failed", zap.Error(err), zap.String("session_id", session.ID))
	}

	return resp, nil
}

// handleSearch runs retrieval with the session's accumulated preferences and
// phrases the results. Without a known city it asks for one instead of
// searching blind.
func (o *ChatOrchestrator) handleSearch(ctx context.Context, session *model.Session, message string, resp *model.ChatResponse, meta *model.MessageMetadata) {
	prefs := session.Preferences.UserPreferences
	if prefs.City == nil {
		resp.Reply = "Which city are you looking in? I can search across all our listed cities."
		resp.Intent = string(model.IntentClarification)
		resp.SuggestedQuestions = nil
		meta.Intent = string(model.IntentClarification)
		return
	}

	result := o.search.Search(ctx, message, preferencesToFilters(prefs), 0)

	resp.Properties = toSuggestions(result.Properties)
	resp.Metadata.SearchPerformed = true
	resp.Metadata.PropertiesFound = result.TotalFound
	meta.SearchQuery = message
	for _, p := range result.Properties {
		meta.PropertyIDs = append(meta.PropertyIDs, p.ID)
	}

	if len(result.Properties) == 0 {
		resp.Reply, resp.Metadata.TokensUsed = o.phraseNoResults(ctx, message, *prefs.City)
		return
	}

	resp.Reply, resp.Metadata.TokensUsed = o.phraseResults(ctx, message, result)
}

// phraseNoResults asks the model for an empty-result reply, with a plain
// template as the fallback.
func (o *ChatOrchestrator) phraseNoResults(ctx context.Context, message, city string) (string, int) {
	prompt := fmt.Sprintf(
		"The user asked: %q\n\nNo matching properties were found in %s. In 1-2 sentences, tell the user nothing matched and suggest widening the budget or trying nearby localities.",
		message, city)

	completion, ok := o.llm.Complete(ctx, assistantPersonaPrompt, prompt, nil, PresetDefault)
	if !ok {
		return fmt.Sprintf("I couldn't find any properties matching that in %s. Try widening the budget or looking at nearby localities.", city), 0
	}
	return completion.Text, completion.TokensUsed
}

// phraseResults asks the model to present the retrieved listings, with a
// plain summary as the fallback.
func (o *ChatOrchestrator) phraseResults(ctx context.Context, message string, result model.SearchResult) (string, int) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The user asked: %q\n\nFound %d matching properties. Top results:\n", message, result.TotalFound)
	for i, p := range result.Properties {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&sb, "%d. %s in %s, priced at %.0f", i+1, p.Title, p.Property.Location(), p.ExpectedPrice)
		if p.Bedrooms != nil {
			fmt.Fprintf(&sb, ", %d bedrooms", *p.Bedrooms)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nPresent these results conversationally in 2-3 sentences. Do not list every detail.")

	completion, ok := o.llm.Complete(ctx, assistantPersonaPrompt, sb.String(), nil, PresetDefault)
	if !ok {
		return fmt.Sprintf("I found %d properties matching your search. Take a look at the results below.", result.TotalFound), 0
	}
	return completion.Text, completion.TokensUsed
}

// handleConversational answers non-search turns with recent history as
// context.
func (o *ChatOrchestrator) handleConversational(ctx context.Context, session *model.Session, message string, resp *model.ChatResponse) {
	history := o.conv.History(session, o.cfg.ContextWindow)
	// The just-persisted user turn is resent as the prompt itself.
	if n := len(history); n > 0 && history[n-1].Role == model.RoleUser && history[n-1].Content == message {
		history = history[:n-1]
	}

	completion, ok := o.llm.Complete(ctx, assistantPersonaPrompt, message, history, PresetDefault)
	if !ok {
		resp.Reply = apologyReply
		return
	}
	resp.Reply = completion.Text
	resp.Metadata.TokensUsed = completion.TokensUsed
}

// Close ends a conversation explicitly
func (o *ChatOrchestrator) Close(ctx context.Context, userID, conversationID string) error {
	return o.conv.Close(ctx, userID, conversationID)
}

func preferencesToFilters(p model.UserPreferences) model.SearchFilters {
	filters := model.SearchFilters{
		City:         p.City,
		PriceMin:     p.BudgetMin,
		PriceMax:     p.BudgetMax,
		PropertyType: p.PropertyType,
		Bedrooms:     p.Bedrooms,
		Furnishing:   p.Furnishing,
		ListingType:  p.ListingType,
		Amenities:    p.Amenities,
	}
	if len(p.Localities) > 0 {
		locality := p.Localities[len(p.Localities)-1]
		filters.Locality = &locality
	}
	return filters
}

func toSuggestions(matches []model.PropertyMatch) []model.PropertySuggestion {
	suggestions := make([]model.PropertySuggestion, 0, len(matches))
	for _, m := range matches {
		suggestions = append(suggestions, model.PropertySuggestion{
			ID:         m.ID,
			Title:      m.Title,
			Price:      m.ExpectedPrice,
			Location:   m.Property.Location(),
			Similarity: m.Similarity,
			Reason:     m.Reason,
		})
	}
	return suggestions
}
