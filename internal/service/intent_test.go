package service

import (
	"context"
	"testing"

	"core/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestIntentAnalyzer(client CompletionClient) *IntentAnalyzer {
	log := zap.NewNop()
	return NewIntentAnalyzer(NewLLMGateway(client, testAIConfig(), log), log)
}

func TestExtractFallbackWhenDisabled(t *testing.T) {
	client := &fakeClient{disabled: true}
	analyzer := newTestIntentAnalyzer(client)

	analysis := analyzer.Extract(context.Background(), "show me flats in Pune")

	assert.Equal(t, model.IntentGeneral, analysis.Intent)
	assert.Equal(t, 0.3, analysis.Confidence)
	assert.Equal(t, model.IntentSlots{}, analysis.Slots)
	assert.Empty(t, client.chatCalls)
}

func TestExtractFallbackOnEmptyInput(t *testing.T) {
	client := &fakeClient{}
	analyzer := newTestIntentAnalyzer(client)

	analysis := analyzer.Extract(context.Background(), "   ")

	assert.Equal(t, model.IntentGeneral, analysis.Intent)
	assert.Empty(t, client.chatCalls)
}

func TestExtractFallbackOnUnparseableReply(t *testing.T) {
	client := &fakeClient{
		chatReplies: []fakeChatReply{{content: "I cannot classify this message."}},
	}
	analyzer := newTestIntentAnalyzer(client)

	analysis := analyzer.Extract(context.Background(), "show me flats in Pune")

	assert.Equal(t, model.IntentGeneral, analysis.Intent)
	assert.Equal(t, 0.3, analysis.Confidence)
}

func TestExtractFallbackOnProviderError(t *testing.T) {
	client := &fakeClient{
		chatReplies: []fakeChatReply{{err: assert.AnError}},
	}
	analyzer := newTestIntentAnalyzer(client)

	analysis := analyzer.Extract(context.Background(), "show me flats in Pune")

	assert.Equal(t, model.IntentGeneral, analysis.Intent)
}

func TestExtractParsesSlots(t *testing.T) {
	client := &fakeClient{
		chatReplies: []fakeChatReply{{content: `{
			"intent": "search",
			"confidence": 0.95,
			"city": "Pune",
			"locality": "Baner",
			"budget_max": 8000000,
			"property_type": "apartment",
			"bedrooms": 2,
			"listing_type": "sale"
		}`}},
	}
	analyzer := newTestIntentAnalyzer(client)

	analysis := analyzer.Extract(context.Background(), "2BHK apartments in Baner, Pune under 80 lakh")

	assert.Equal(t, model.IntentSearch, analysis.Intent)
	assert.Equal(t, 0.95, analysis.Confidence)
	require.NotNil(t, analysis.Slots.City)
	assert.Equal(t, "Pune", *analysis.Slots.City)
	require.NotNil(t, analysis.Slots.Locality)
	assert.Equal(t, "Baner", *analysis.Slots.Locality)
	require.NotNil(t, analysis.Slots.BudgetMax)
	assert.Equal(t, 8000000.0, *analysis.Slots.BudgetMax)
	require.NotNil(t, analysis.Slots.PropertyType)
	assert.Equal(t, "apartment", *analysis.Slots.PropertyType)
	require.NotNil(t, analysis.Slots.Bedrooms)
	assert.Equal(t, 2, *analysis.Slots.Bedrooms)
	require.NotNil(t, analysis.Slots.ListingType)
	assert.Equal(t, "sale", *analysis.Slots.ListingType)
}

func TestExtractParsesFencedJSON(t *testing.T) {
	client := &fakeClient{
		chatReplies: []fakeChatReply{{content: "```json\n{\"intent\": \"filter\", \"confidence\": 0.9, \"furnishing\": \"fully-furnished\"}\n```"}},
	}
	analyzer := newTestIntentAnalyzer(client)

	analysis := analyzer.Extract(context.Background(), "only furnished ones")

	assert.Equal(t, model.IntentFilter, analysis.Intent)
	require.NotNil(t, analysis.Slots.Furnishing)
	assert.Equal(t, "fully-furnished", *analysis.Slots.Furnishing)
}

func TestSanitizeDiscardsInvalidFields(t *testing.T) {
	client := &fakeClient{
		chatReplies: []fakeChatReply{{content: `{
			"intent": "browse",
			"confidence": 1.7,
			"property_type": "castle",
			"bedrooms": 99,
			"budget_min": 9000000,
			"budget_max": 5000000,
			"listing_type": "lease"
		}`}},
	}
	analyzer := newTestIntentAnalyzer(client)

	analysis := analyzer.Extract(context.Background(), "some message")

	// Unknown intent maps to general; out-of-range confidence is reset.
	assert.Equal(t, model.IntentGeneral, analysis.Intent)
	assert.Equal(t, 0.5, analysis.Confidence)
	assert.Nil(t, analysis.Slots.PropertyType)
	assert.Nil(t, analysis.Slots.Bedrooms)
	// Inverted budget range is dropped entirely.
	assert.Nil(t, analysis.Slots.BudgetMin)
	assert.Nil(t, analysis.Slots.BudgetMax)
	assert.Nil(t, analysis.Slots.ListingType)
}

func TestExtractUsesPreciseSampling(t *testing.T) {
	client := &fakeClient{
		chatReplies: []fakeChatReply{{content: `{"intent": "general", "confidence": 0.5}`}},
	}
	analyzer := newTestIntentAnalyzer(client)

	analyzer.Extract(context.Background(), "hello")

	require.Len(t, client.chatCalls, 1)
	call := client.chatCalls[0]
	assert.Equal(t, PresetPrecise.params().Temperature, call.Temperature)
	require.NotNil(t, call.ResponseFormat)
	assert.Equal(t, "json_object", call.ResponseFormat.Type)
}
