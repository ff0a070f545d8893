package service

import (
	"context"
	"testing"
	"time"

	"core/internal/model"
	"core/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestOrchestrator(properties PropertyStore, sessions SessionStore, client CompletionClient) *ChatOrchestrator {
	log := zap.NewNop()
	aiCfg := testAIConfig()
	chatCfg := testChatConfig()

	embed := NewEmbeddingGateway(client, aiCfg, log)
	llm := NewLLMGateway(client, aiCfg, log)
	search := NewSearchEngine(properties, embed, testSearchConfig(), 0.20, log)
	conv := NewConversationManager(sessions, chatCfg, log)
	intent := NewIntentAnalyzer(llm, log)

	return NewChatOrchestrator(conv, intent, search, llm, chatCfg, log)
}

func TestChatDisabledProviderReturnsFixedReply(t *testing.T) {
	client := &fakeClient{disabled: true}
	sessions := newMemSessionStore()
	orch := newTestOrchestrator(newMemPropertyStore(), sessions, client)

	resp, err := orch.Chat(context.Background(), model.ChatRequest{
		Message: "show me flats",
		UserID:  "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, disabledChatReply, resp.Reply)
	assert.Empty(t, resp.ConversationID)
	assert.NotNil(t, resp.Properties)
	assert.Empty(t, client.chatCalls)
	assert.Empty(t, client.embedCalls)
	assert.Zero(t, sessions.saves)
}

func TestChatUnknownConversationReturnsNotFound(t *testing.T) {
	client := &fakeClient{}
	orch := newTestOrchestrator(newMemPropertyStore(), newMemSessionStore(), client)

	_, err := orch.Chat(context.Background(), model.ChatRequest{
		Message:        "hello",
		UserID:         "user-1",
		ConversationID: "no-such-id",
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChatAsksForCityBeforeSearching(t *testing.T) {
	client := &fakeClient{
		chatReplies: []fakeChatReply{
			{content: `{"intent": "search", "confidence": 0.9, "bedrooms": 2}`},
		},
	}
	sessions := newMemSessionStore()
	orch := newTestOrchestrator(newMemPropertyStore(), sessions, client)

	resp, err := orch.Chat(context.Background(), model.ChatRequest{
		Message: "show me 2BHK flats",
		UserID:  "user-1",
	})
	require.NoError(t, err)

	assert.Contains(t, resp.Reply, "city")
	assert.Equal(t, string(model.IntentClarification), resp.Intent)
	assert.False(t, resp.Metadata.SearchPerformed)
	assert.NotNil(t, resp.Properties)
	assert.Empty(t, resp.Properties)
	// Only the intent extraction hit the provider; no search phrasing call.
	assert.Len(t, client.chatCalls, 1)
	assert.Empty(t, client.embedCalls)
}

func TestChatSearchFlow(t *testing.T) {
	properties := newMemPropertyStore(
		testProperty("p1", "Sunny 2BHK", "Pune", 7500000, func(p *model.Property) {
			p.Bedrooms = intPtr(2)
		}),
		testProperty("p2", "Garden 2BHK", "Pune", 7800000, func(p *model.Property) {
			p.Bedrooms = intPtr(2)
		}),
	)
	properties.setEmbedding("p1", []float32{1, 0, 0})
	properties.setEmbedding("p2", []float32{0.9, 0.1, 0})

	client := &fakeClient{
		embedFn: queryEmbedder(nil),
		chatReplies: []fakeChatReply{
			{content: `{"intent": "search", "confidence": 0.95, "city": "Pune", "bedrooms": 2}`},
			{content: "I found two bright 2BHK options in Pune for you."},
		},
	}
	sessions := newMemSessionStore()
	orch := newTestOrchestrator(properties, sessions, client)

	resp, err := orch.Chat(context.Background(), model.ChatRequest{
		Message: "2BHK flats in Pune",
		UserID:  "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "I found two bright 2BHK options in Pune for you.", resp.Reply)
	assert.Equal(t, string(model.IntentSearch), resp.Intent)
	assert.NotEmpty(t, resp.ConversationID)
	assert.True(t, resp.Metadata.SearchPerformed)
	assert.Equal(t, 2, resp.Metadata.PropertiesFound)
	assert.Equal(t, 42, resp.Metadata.TokensUsed)
	require.Len(t, resp.Properties, 2)
	assert.Equal(t, "p1", resp.Properties[0].ID)
	assert.NotEmpty(t, resp.SuggestedQuestions)

	// The conversation persisted both turns with search annotations.
	saved := sessions.sessions[resp.ConversationID]
	require.Len(t, saved.Messages, 2)
	assert.Equal(t, model.RoleUser, saved.Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, saved.Messages[1].Role)
	require.NotNil(t, saved.Messages[1].Metadata)
	assert.Equal(t, string(model.IntentSearch), saved.Messages[1].Metadata.Intent)
	assert.Equal(t, []string{"p1", "p2"}, saved.Messages[1].Metadata.PropertyIDs)

	// The extracted city is remembered for later turns.
	require.NotNil(t, saved.Preferences.City)
	assert.Equal(t, "Pune", *saved.Preferences.City)
}

func TestChatSearchWithNoResults(t *testing.T) {
	client := &fakeClient{
		embedFn: queryEmbedder(nil),
		chatReplies: []fakeChatReply{
			{content: `{"intent": "search", "confidence": 0.95, "city": "Indore"}`},
			{content: "Nothing matched in Indore right now. A wider budget or nearby localities might help."},
		},
	}
	sessions := newMemSessionStore()
	orch := newTestOrchestrator(newMemPropertyStore(), sessions, client)

	resp, err := orch.Chat(context.Background(), model.ChatRequest{
		Message: "flats in Indore",
		UserID:  "user-1",
	})
	require.NoError(t, err)

	assert.Contains(t, resp.Reply, "Indore")
	assert.True(t, resp.Metadata.SearchPerformed)
	assert.Zero(t, resp.Metadata.PropertiesFound)
	assert.Empty(t, resp.Properties)
	// The empty-result reply came from the model, not the template.
	assert.Len(t, client.chatCalls, 2)
	assert.Equal(t, 42, resp.Metadata.TokensUsed)
}

func TestChatNoResultsTemplateWhenPhrasingFails(t *testing.T) {
	client := &fakeClient{
		embedFn: queryEmbedder(nil),
		chatReplies: []fakeChatReply{
			{content: `{"intent": "search", "confidence": 0.95, "city": "Indore"}`},
			{err: assert.AnError},
		},
	}
	sessions := newMemSessionStore()
	orch := newTestOrchestrator(newMemPropertyStore(), sessions, client)

	resp, err := orch.Chat(context.Background(), model.ChatRequest{
		Message: "flats in Indore",
		UserID:  "user-1",
	})
	require.NoError(t, err)

	assert.Contains(t, resp.Reply, "Indore")
	assert.Zero(t, resp.Metadata.TokensUsed)
}

func TestChatGeneralConversation(t *testing.T) {
	client := &fakeClient{
		chatReplies: []fakeChatReply{
			{content: `{"intent": "general", "confidence": 0.8}`},
			{content: "I can help you search for properties, estimate prices, and more."},
		},
	}
	sessions := newMemSessionStore()
	orch := newTestOrchestrator(newMemPropertyStore(), sessions, client)

	resp, err := orch.Chat(context.Background(), model.ChatRequest{
		Message: "what can you do?",
		UserID:  "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "I can help you search for properties, estimate prices, and more.", resp.Reply)
	assert.Equal(t, string(model.IntentGeneral), resp.Intent)
	assert.False(t, resp.Metadata.SearchPerformed)
	assert.Equal(t, 42, resp.Metadata.TokensUsed)
}

func TestChatSecondTurnReusesSession(t *testing.T) {
	client := &fakeClient{
		chatReplies: []fakeChatReply{
			{content: `{"intent": "general", "confidence": 0.8}`},
			{content: "Hello! How can I help with your property search?"},
			{content: `{"intent": "general", "confidence": 0.8}`},
			{content: "We cover most major cities."},
		},
	}
	sessions := newMemSessionStore()
	orch := newTestOrchestrator(newMemPropertyStore(), sessions, client)

	first, err := orch.Chat(context.Background(), model.ChatRequest{
		Message: "hi",
		UserID:  "user-1",
	})
	require.NoError(t, err)

	second, err := orch.Chat(context.Background(), model.ChatRequest{
		Message:        "which cities do you cover?",
		UserID:         "user-1",
		ConversationID: first.ConversationID,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ConversationID, second.ConversationID)
	saved := sessions.sessions[second.ConversationID]
	assert.Len(t, saved.Messages, 4)

	// The second conversational call carries the first exchange as history.
	lastCall := client.chatCalls[len(client.chatCalls)-1]
	require.GreaterOrEqual(t, len(lastCall.Messages), 4)
	assert.Equal(t, "hi", lastCall.Messages[1].Content)
}

// failingSessionStore fails selected operations to exercise the degraded
// reply paths.
type failingSessionStore struct {
	*memSessionStore
	failLookup bool
	failSave   bool
}

func (s *failingSessionStore) LatestActiveForUser(ctx context.Context, userID string, cutoff time.Time) (*model.Session, error) {
	if s.failLookup {
		return nil, assert.AnError
	}
	return s.memSessionStore.LatestActiveForUser(ctx, userID, cutoff)
}

func (s *failingSessionStore) Save(ctx context.Context, sess *model.Session) error {
	if s.failSave {
		return assert.AnError
	}
	return s.memSessionStore.Save(ctx, sess)
}

func TestChatSessionLookupFailureReturnsApology(t *testing.T) {
	client := &fakeClient{}
	sessions := &failingSessionStore{memSessionStore: newMemSessionStore(), failLookup: true}
	orch := newTestOrchestrator(newMemPropertyStore(), sessions, client)

	resp, err := orch.Chat(context.Background(), model.ChatRequest{
		Message: "hello",
		UserID:  "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, apologyReply, resp.Reply)
	assert.NotNil(t, resp.Properties)
	assert.NotEmpty(t, resp.SuggestedQuestions)
	assert.Empty(t, client.chatCalls)
}

func TestChatSessionSaveFailureReturnsApology(t *testing.T) {
	client := &fakeClient{}
	sessions := &failingSessionStore{memSessionStore: newMemSessionStore(), failSave: true}
	orch := newTestOrchestrator(newMemPropertyStore(), sessions, client)

	resp, err := orch.Chat(context.Background(), model.ChatRequest{
		Message: "hello",
		UserID:  "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, apologyReply, resp.Reply)
	assert.NotEmpty(t, resp.ConversationID)
	assert.Empty(t, client.chatCalls)
}

// panickingStore triggers the orchestrator's recovery path
type panickingStore struct {
	*memPropertyStore
}

func (s *panickingStore) TopK(context.Context, []float32, repository.PropertyQuery) ([]model.PropertyMatch, error) {
	panic("index corrupted")
}

func TestChatRecoversFromPanic(t *testing.T) {
	client := &fakeClient{
		embedFn: queryEmbedder(nil),
		chatReplies: []fakeChatReply{
			{content: `{"intent": "search", "confidence": 0.95, "city": "Pune"}`},
		},
	}
	sessions := newMemSessionStore()
	store := &panickingStore{newMemPropertyStore()}
	orch := newTestOrchestrator(store, sessions, client)

	resp, err := orch.Chat(context.Background(), model.ChatRequest{
		Message: "flats in Pune",
		UserID:  "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, apologyReply, resp.Reply)
	assert.NotEmpty(t, resp.ConversationID)
}
