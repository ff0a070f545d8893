package model

// ChatRequest is the inbound chat contract
type ChatRequest struct {
	Message        string `json:"message" binding:"required"`
	UserID         string `json:"userId" binding:"required"`
	ConversationID string `json:"conversationId,omitempty"`
}

// PropertySuggestion is one recommended listing in a chat reply
type PropertySuggestion struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	Location   string  `json:"location"`
	Similarity float64 `json:"similarity"`
	Reason     string  `json:"reason"`
}

// ChatMetadata carries per-turn processing details
type ChatMetadata struct {
	TokensUsed      int  `json:"tokensUsed,omitempty"`
	SearchPerformed bool `json:"searchPerformed"`
	PropertiesFound int  `json:"propertiesFound"`
}

// ChatResponse is the uniform shape every chat branch returns
type ChatResponse struct {
	Reply              string               `json:"reply"`
	ConversationID     string               `json:"conversationId"`
	Properties         []PropertySuggestion `json:"properties"`
	SuggestedQuestions []string             `json:"suggestedQuestions"`
	Intent             string               `json:"intent,omitempty"`
	Metadata           ChatMetadata         `json:"metadata"`
}

// SearchRequest is the inbound property-search contract
type SearchRequest struct {
	Query   string         `json:"query" binding:"required"`
	Filters *SearchFilters `json:"filters,omitempty"`
	Limit   int            `json:"limit,omitempty"`
}

// EmbeddingBatchRequest attaches precomputed vectors to listings
type EmbeddingBatchRequest struct {
	Embeddings []EmbeddingItem `json:"embeddings" binding:"required"`
}

// EmbeddingItem is a single precomputed vector with its source listing
type EmbeddingItem struct {
	PropertyID string    `json:"property_id" binding:"required"`
	Embedding  []float32 `json:"embedding" binding:"required"`
	Text       string    `json:"text,omitempty"`
}

// EmbeddingBatchResponse reports a batch vector update
type EmbeddingBatchResponse struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}
