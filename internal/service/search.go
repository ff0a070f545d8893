package service

import (
	"context"
	"strings"

	"core/internal/config"
	"core/internal/model"
	"core/internal/repository"

	"go.uber.org/zap"
)

// SearchEngine retrieves properties through a hybrid strategy: semantic
// vector search when embeddings are available, keyword search otherwise.
// Search never returns an error; every failure degrades to a less precise
// result or an empty one.
type SearchEngine struct {
	store     PropertyStore
	embed     *EmbeddingGateway
	cfg       *config.SearchConfig
	priceBand float64
	log       *zap.Logger
}

// NewSearchEngine creates a new search engine. priceBand bounds the price
// range of the specs-based fallback for similar-property lookups.
func NewSearchEngine(store PropertyStore, embed *EmbeddingGateway, cfg *config.SearchConfig, priceBand float64, log *zap.Logger) *SearchEngine {
	return &SearchEngine{
		store:     store,
		embed:     embed,
		cfg:       cfg,
		priceBand: priceBand,
		log:       log,
	}
}

// clampLimit normalizes a requested result count into the configured range
func (s *SearchEngine) clampLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		return s.cfg.MaxLimit
	}
	return limit
}

// Search runs the hybrid retrieval pipeline over approved listings.
// Repeating the same query against unchanged data returns the same results
// in the same order.
func (s *SearchEngine) Search(ctx context.Context, query string, filters model.SearchFilters, limit int) model.SearchResult {
	limit = s.clampLimit(limit)
	query = strings.TrimSpace(query)

	if query != "" && s.embed.Enabled() {
		if result, ok := s.semanticSearch(ctx, query, filters, limit); ok {
			return result
		}
		s.log.Warn("semantic search unavailable, falling back to keyword search",
			zap.String("query", query))
	}

	return s.keywordSearch(ctx, query, filters, limit)
}

// semanticSearch embeds the query and retrieves nearest approved listings.
// Over-fetching leaves room for post-retrieval trimming without starving
// the result list.
func (s *SearchEngine) semanticSearch(ctx context.Context, query string, filters model.SearchFilters, limit int) (model.SearchResult, bool) {
	embedding, ok := s.embed.Embed(ctx, query)
	if !ok {
		return model.SearchResult{}, false
	}

	matches, err := s.store.TopK(ctx, embedding, repository.PropertyQuery{
		Filters: filters,
		Limit:   limit * s.cfg.OverFetchFactor,
	})
	if err != nil {
		s.log.Error("vector search failed", zap.Error(err))
		return model.SearchResult{}, false
	}
	if len(matches) == 0 {
		// Nothing indexed yet, or the filters excluded everything the
		// index knows about. Keyword search may still find listings.
		return model.SearchResult{}, false
	}

	total := len(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	annotateMatches(matches, filters)

	return model.SearchResult{Properties: matches, TotalFound: total}, true
}

// keywordSearch matches query terms against listing text fields, newest
// listings first. Rank position stands in for a similarity score.
func (s *SearchEngine) keywordSearch(ctx context.Context, query string, filters model.SearchFilters, limit int) model.SearchResult {
	properties, total, err := s.store.Search(ctx, repository.PropertyQuery{
		Keywords: query,
		Filters:  filters,
		Limit:    limit,
	})
	if err != nil {
		s.log.Error("keyword search failed", zap.Error(err))
		return model.SearchResult{Properties: []model.PropertyMatch{}}
	}

	matches := make([]model.PropertyMatch, 0, len(properties))
	for i, p := range properties {
		matches = append(matches, model.PropertyMatch{
			Property:   p,
			Similarity: keywordScore(i),
		})
	}
	annotateMatches(matches, filters)

	return model.SearchResult{Properties: matches, TotalFound: total}
}

// FindSimilar returns listings similar to an existing one. When the
// reference has a stored embedding the lookup is vector-based; otherwise it
// falls back to matching on type, city, bedrooms, and price band.
func (s *SearchEngine) FindSimilar(ctx context.Context, propertyID string, limit int) (model.SearchResult, error) {
	limit = s.clampLimit(limit)

	ref, err := s.store.GetByID(ctx, propertyID)
	if err != nil {
		return model.SearchResult{}, err
	}
	if ref == nil {
		return model.SearchResult{}, ErrNotFound
	}

	embedding, err := s.store.GetEmbedding(ctx, propertyID)
	if err != nil {
		s.log.Error("loading reference embedding failed", zap.Error(err), zap.String("property_id", propertyID))
		embedding = nil
	}

	if embedding != nil {
		matches, err := s.store.TopK(ctx, embedding, repository.PropertyQuery{
			Limit: limit + 1, // the reference itself will be in the result
		})
		if err == nil {
			filtered := make([]model.PropertyMatch, 0, limit)
			for _, m := range matches {
				if m.ID == propertyID {
					continue
				}
				filtered = append(filtered, m)
				if len(filtered) == limit {
					break
				}
			}
			return model.SearchResult{Properties: filtered, TotalFound: len(filtered)}, nil
		}
		s.log.Error("vector similar lookup failed, using specs fallback", zap.Error(err))
	}

	similar, err := s.store.SpecsSimilar(ctx, ref, s.priceBand, limit)
	if err != nil {
		return model.SearchResult{}, err
	}

	matches := make([]model.PropertyMatch, 0, len(similar))
	for i, p := range similar {
		matches = append(matches, model.PropertyMatch{
			Property:   p,
			Similarity: keywordScore(i),
			Reason:     "Similar specifications and price range",
		})
	}
	return model.SearchResult{Properties: matches, TotalFound: len(matches)}, nil
}

// Comparables retrieves the vector-similarity candidate pool for price
// estimation. ok is false when embeddings cannot be produced or the index
// yields no candidates, signalling the caller to use its non-vector fallback.
func (s *SearchEngine) Comparables(ctx context.Context, text string, q repository.PropertyQuery) ([]model.PropertyMatch, bool) {
	if !s.embed.Enabled() {
		return nil, false
	}
	embedding, ok := s.embed.Embed(ctx, text)
	if !ok {
		return nil, false
	}

	matches, err := s.store.TopK(ctx, embedding, q)
	if err != nil {
		s.log.Error("comparable retrieval failed", zap.Error(err))
		return nil, false
	}
	if len(matches) == 0 {
		return nil, false
	}
	return matches, true
}
