package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"core/internal/config"
	"core/internal/model"
	"core/internal/repository"
)

// fakeChatReply is one scripted provider answer
type fakeChatReply struct {
	content string
	err     error
}

// fakeClient is a scripted CompletionClient. Chat replies are consumed in
// order; the last one repeats. Every call is recorded.
type fakeClient struct {
	disabled bool

	chatReplies []fakeChatReply
	chatCalls   []ChatCompletionRequest

	embedFn    func(text string) []float32
	embedErr   error
	embedCalls [][]string
}

func (f *fakeClient) Enabled() bool { return !f.disabled }

func (f *fakeClient) ChatCompletion(_ context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	f.chatCalls = append(f.chatCalls, req)

	idx := len(f.chatCalls) - 1
	if idx >= len(f.chatReplies) {
		idx = len(f.chatReplies) - 1
	}
	if idx < 0 {
		return nil, fmt.Errorf("no scripted reply")
	}
	reply := f.chatReplies[idx]
	if reply.err != nil {
		return nil, reply.err
	}

	resp := &ChatCompletionResponse{}
	resp.Choices = []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	}{
		{Message: ChatMessage{Role: "assistant", Content: reply.content}},
	}
	resp.Usage.TotalTokens = 42
	return resp, nil
}

func (f *fakeClient) CreateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	f.embedCalls = append(f.embedCalls, texts)
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		if f.embedFn != nil {
			vecs[i] = f.embedFn(t)
		}
	}
	return vecs, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// memPropertyStore is an in-memory PropertyStore with brute-force cosine
// nearest-neighbour lookup.
type memPropertyStore struct {
	properties map[string]model.Property
	embeddings map[string][]float32
}

func newMemPropertyStore(properties ...model.Property) *memPropertyStore {
	s := &memPropertyStore{
		properties: map[string]model.Property{},
		embeddings: map[string][]float32{},
	}
	for _, p := range properties {
		s.properties[p.ID] = p
	}
	return s
}

func (s *memPropertyStore) setEmbedding(id string, vec []float32) {
	s.embeddings[id] = vec
}

func statusAllowed(p model.Property, statuses []model.PropertyStatus) bool {
	if len(statuses) == 0 {
		return p.Status == model.StatusApproved
	}
	for _, st := range statuses {
		if p.Status == st {
			return true
		}
	}
	return false
}

func matchesFilters(p model.Property, f model.SearchFilters) bool {
	if f.City != nil && !strings.EqualFold(p.City, *f.City) {
		return false
	}
	if f.Locality != nil {
		if p.Locality == nil || !strings.EqualFold(*p.Locality, *f.Locality) {
			return false
		}
	}
	if f.PriceMin != nil && p.ExpectedPrice < *f.PriceMin {
		return false
	}
	if f.PriceMax != nil && p.ExpectedPrice > *f.PriceMax {
		return false
	}
	if f.PropertyType != nil && string(p.PropertyType) != *f.PropertyType {
		return false
	}
	if f.Bedrooms != nil {
		if p.Bedrooms == nil || *p.Bedrooms != *f.Bedrooms {
			return false
		}
	}
	if f.Furnishing != nil {
		if p.Furnishing == nil || !strings.EqualFold(*p.Furnishing, *f.Furnishing) {
			return false
		}
	}
	if f.ListingType != nil && string(p.ListingType) != *f.ListingType {
		return false
	}
	return true
}

func (s *memPropertyStore) Search(_ context.Context, q repository.PropertyQuery) ([]model.Property, int, error) {
	var out []model.Property
	keywords := strings.ToLower(strings.TrimSpace(q.Keywords))
	for _, p := range s.properties {
		if !statusAllowed(p, q.Statuses) || !matchesFilters(p, q.Filters) {
			continue
		}
		if keywords != "" {
			haystack := strings.ToLower(p.Title + " " + p.City)
			if p.Description != nil {
				haystack += " " + strings.ToLower(*p.Description)
			}
			if p.Locality != nil {
				haystack += " " + strings.ToLower(*p.Locality)
			}
			matched := false
			for _, word := range strings.Fields(keywords) {
				if strings.Contains(haystack, word) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	total := len(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, total, nil
}

func (s *memPropertyStore) TopK(_ context.Context, embedding []float32, q repository.PropertyQuery) ([]model.PropertyMatch, error) {
	var matches []model.PropertyMatch
	for id, p := range s.properties {
		vec, ok := s.embeddings[id]
		if !ok {
			continue
		}
		if !statusAllowed(p, q.Statuses) || !matchesFilters(p, q.Filters) {
			continue
		}
		matches = append(matches, model.PropertyMatch{
			Property:   p,
			Similarity: cosine(embedding, vec),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity == matches[j].Similarity {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Similarity > matches[j].Similarity
	})
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, nil
}

func (s *memPropertyStore) GetByID(_ context.Context, id string) (*model.Property, error) {
	p, ok := s.properties[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *memPropertyStore) GetEmbedding(_ context.Context, id string) ([]float32, error) {
	vec, ok := s.embeddings[id]
	if !ok {
		return nil, nil
	}
	return vec, nil
}

func (s *memPropertyStore) SpecsSimilar(_ context.Context, ref *model.Property, band float64, limit int) ([]model.Property, error) {
	var out []model.Property
	for _, p := range s.properties {
		if p.ID == ref.ID || p.Status != model.StatusApproved {
			continue
		}
		if p.PropertyType != ref.PropertyType || !strings.EqualFold(p.City, ref.City) {
			continue
		}
		if ref.Bedrooms != nil {
			if p.Bedrooms == nil || *p.Bedrooms != *ref.Bedrooms {
				continue
			}
		}
		low := ref.ExpectedPrice * (1 - band)
		high := ref.ExpectedPrice * (1 + band)
		if p.ExpectedPrice < low || p.ExpectedPrice > high {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memPropertyStore) UpdateEmbedding(_ context.Context, id string, embedding []float32, meta model.EmbeddingMeta) error {
	if _, ok := s.properties[id]; !ok {
		return fmt.Errorf("property %s not found", id)
	}
	s.embeddings[id] = embedding
	return nil
}

func (s *memPropertyStore) BatchUpdateEmbeddings(_ context.Context, items []model.EmbeddingItem, _ string) (int, []string) {
	var success int
	var errs []string
	for _, item := range items {
		if _, ok := s.properties[item.PropertyID]; !ok {
			errs = append(errs, fmt.Sprintf("property %s not found", item.PropertyID))
			continue
		}
		s.embeddings[item.PropertyID] = item.Embedding
		success++
	}
	return success, errs
}

func (s *memPropertyStore) MissingEmbeddings(_ context.Context, limit int) ([]model.Property, error) {
	var out []model.Property
	for id, p := range s.properties {
		if p.Status != model.StatusApproved {
			continue
		}
		if _, ok := s.embeddings[id]; ok {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memSessionStore is an in-memory SessionStore
type memSessionStore struct {
	sessions map[string]model.Session
	saves    int
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: map[string]model.Session{}}
}

func (s *memSessionStore) Get(_ context.Context, id string) (*model.Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *memSessionStore) LatestActiveForUser(_ context.Context, userID string, cutoff time.Time) (*model.Session, error) {
	var latest *model.Session
	for id := range s.sessions {
		sess := s.sessions[id]
		if sess.UserID != userID || sess.Status != model.SessionActive {
			continue
		}
		if sess.LastActivityAt.Before(cutoff) {
			continue
		}
		if latest == nil || sess.LastActivityAt.After(latest.LastActivityAt) {
			copied := sess
			latest = &copied
		}
	}
	return latest, nil
}

func (s *memSessionStore) Save(_ context.Context, sess *model.Session) error {
	s.sessions[sess.ID] = *sess
	s.saves++
	return nil
}

func (s *memSessionStore) ArchiveBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var count int64
	for id, sess := range s.sessions {
		if sess.Status == model.SessionArchived {
			continue
		}
		if sess.LastActivityAt.Before(cutoff) {
			sess.Status = model.SessionArchived
			s.sessions[id] = sess
			count++
		}
	}
	return count, nil
}

// Test configuration mirroring production defaults

func testAIConfig() *config.AIConfig {
	return &config.AIConfig{
		FeatureFlag:         true,
		APIKey:              "test-key",
		ChatModel:           "test-chat",
		ChatMaxTokens:       1024,
		EmbeddingModel:      "test-embed",
		EmbeddingDimensions: 3,
		BatchSize:           100,
	}
}

func testChatConfig() *config.ChatConfig {
	return &config.ChatConfig{
		SessionTimeout:       30 * time.Minute,
		RetentionWindow:      90 * 24 * time.Hour,
		MaxPersistedMessages: 20,
		ContextWindow:        6,
	}
}

func testSearchConfig() *config.SearchConfig {
	return &config.SearchConfig{DefaultLimit: 10, MaxLimit: 50, OverFetchFactor: 2}
}

func testEstimationConfig() *config.EstimationConfig {
	return &config.EstimationConfig{
		ComparablePool:     100,
		BedroomTolerance:   1,
		PriceBand:          0.20,
		SimilarityHigh:     0.85,
		SimilarityGood:     0.80,
		HighMinComparables: 10,
		HighMinHighSim:     5,
		HighMinRecentSales: 3,
		MedMinComparables:  5,
		MedMinHighSim:      2,
	}
}

// Test data helpers

func strPtr(v string) *string    { return &v }
func intPtr(v int) *int          { return &v }
func floatPtr(v float64) *float64 { return &v }

func testProperty(id, title, city string, price float64, opts ...func(*model.Property)) model.Property {
	p := model.Property{
		ID:            id,
		Title:         title,
		PropertyType:  model.PropertyApartment,
		City:          city,
		ExpectedPrice: price,
		Status:        model.StatusApproved,
		ListingType:   model.ListingSale,
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}
