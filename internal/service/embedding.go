package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"core/internal/config"
	"core/internal/model"

	"go.uber.org/zap"
)

// EmbeddingGateway turns free text into fixed-length vectors. It is a no-op
// when AI features are disabled, and converts provider failures into a
// missing result so callers can fall back to keyword retrieval.
type EmbeddingGateway struct {
	client CompletionClient
	cfg    *config.AIConfig
	log    *zap.Logger
}

// NewEmbeddingGateway creates a new embedding gateway
func NewEmbeddingGateway(client CompletionClient, cfg *config.AIConfig, log *zap.Logger) *EmbeddingGateway {
	return &EmbeddingGateway{client: client, cfg: cfg, log: log}
}

// Enabled reports whether embedding calls may be attempted
func (g *EmbeddingGateway) Enabled() bool {
	return g.client != nil && g.client.Enabled()
}

// Embed returns the vector for text, or (nil, false) when embedding is
// disabled or the provider failed. Never returns an error.
func (g *EmbeddingGateway) Embed(ctx context.Context, text string) ([]float32, bool) {
	if !g.Enabled() {
		return nil, false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	vecs, err := g.client.CreateEmbeddings(ctx, []string{text})
	if err != nil {
		g.log.Warn("embedding call failed", zap.Error(err))
		return nil, false
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		g.log.Warn("embedding call returned no vector")
		return nil, false
	}
	if len(vecs[0]) != g.cfg.EmbeddingDimensions {
		g.log.Warn("embedding dimension mismatch",
			zap.Int("got", len(vecs[0])), zap.Int("want", g.cfg.EmbeddingDimensions))
		return nil, false
	}

	return vecs[0], true
}

// EmbedBatch embeds several texts in one provider round trip; false when
// disabled or failed.
func (g *EmbeddingGateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, bool) {
	if !g.Enabled() || len(texts) == 0 {
		return nil, false
	}
	vecs, err := g.client.CreateEmbeddings(ctx, texts)
	if err != nil {
		g.log.Warn("batch embedding call failed", zap.Error(err))
		return nil, false
	}
	return vecs, true
}

// defaultVectorizeLimit caps one bulk run when the caller gives no limit
const defaultVectorizeLimit = 500

// VectorizeReport summarizes one bulk vectorization run
type VectorizeReport struct {
	Processed int `json:"processed"`
	Embedded  int `json:"embedded"`
	Skipped   int `json:"skipped"`
}

// Vectorizer is the offline maintenance path that embeds approved properties
// which have no stored vector yet. It is not part of the request-serving
// core.
type Vectorizer struct {
	gateway *EmbeddingGateway
	store   PropertyStore
	cfg     *config.AIConfig
	log     *zap.Logger
}

// NewVectorizer creates a new bulk vectorizer
func NewVectorizer(gateway *EmbeddingGateway, store PropertyStore, cfg *config.AIConfig, log *zap.Logger) *Vectorizer {
	return &Vectorizer{gateway: gateway, store: store, cfg: cfg, log: log}
}

// Run embeds up to limit properties missing vectors. Per-item failures are
// counted and skipped, never abort the run. Batches are separated by a pause
// to respect upstream quota.
func (v *Vectorizer) Run(ctx context.Context, limit int) (VectorizeReport, error) {
	report := VectorizeReport{}

	if !v.gateway.Enabled() {
		return report, fmt.Errorf("embedding is disabled (feature flag or API key missing)")
	}

	if limit <= 0 {
		limit = defaultVectorizeLimit
	}
	properties, err := v.store.MissingEmbeddings(ctx, limit)
	if err != nil {
		return report, err
	}
	report.Processed = len(properties)
	if len(properties) == 0 {
		return report, nil
	}

	batchSize := v.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	for start := 0; start < len(properties); start += batchSize {
		end := start + batchSize
		if end > len(properties) {
			end = len(properties)
		}
		batch := properties[start:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = EmbeddingSourceText(&batch[i])
		}

		vecs, ok := v.gateway.EmbedBatch(ctx, texts)
		if !ok {
			report.Skipped += len(batch)
			continue
		}

		for i := range batch {
			if i >= len(vecs) || len(vecs[i]) == 0 {
				report.Skipped++
				continue
			}
			meta := model.EmbeddingMeta{
				Model:      v.cfg.EmbeddingModel,
				SourceText: texts[i],
				EmbeddedAt: time.Now(),
			}
			if err := v.store.UpdateEmbedding(ctx, batch[i].ID, vecs[i], meta); err != nil {
				v.log.Warn("failed to store embedding",
					zap.String("property_id", batch[i].ID), zap.Error(err))
				report.Skipped++
				continue
			}
			report.Embedded++
		}

		if end < len(properties) {
			time.Sleep(v.cfg.BatchPause)
		}
	}

	return report, nil
}

// EmbeddingSourceText composes the text a property's vector is generated from
func EmbeddingSourceText(p *model.Property) string {
	var b strings.Builder
	b.WriteString(p.Title)
	b.WriteString(". ")
	b.WriteString(string(p.PropertyType))
	if p.Bedrooms != nil {
		fmt.Fprintf(&b, ", %d bedroom", *p.Bedrooms)
	}
	if p.CarpetArea != nil {
		fmt.Fprintf(&b, ", %.0f sqft", *p.CarpetArea)
	}
	if p.Furnishing != nil {
		b.WriteString(", ")
		b.WriteString(*p.Furnishing)
	}
	b.WriteString(" in ")
	b.WriteString(p.Location())
	if len(p.Amenities) > 0 {
		b.WriteString(". Amenities: ")
		b.WriteString(strings.Join(p.Amenities, ", "))
	}
	if p.Description != nil && *p.Description != "" {
		b.WriteString(". ")
		b.WriteString(*p.Description)
	}
	return b.String()
}
