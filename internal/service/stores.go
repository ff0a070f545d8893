package service

import (
	"context"
	"errors"
	"time"

	"core/internal/model"
	"core/internal/repository"
)

// ErrNotFound marks a missing session or property. The orchestrator maps it
// to a user-facing reply; it never leaks to the transport layer raw.
var ErrNotFound = errors.New("not found")

// PropertyStore is the read-mostly query surface over property listings.
// TopK is the vector-index capability; any backing store able to answer
// "k nearest to this vector under these filters" can implement it.
type PropertyStore interface {
	Search(ctx context.Context, q repository.PropertyQuery) ([]model.Property, int, error)
	TopK(ctx context.Context, embedding []float32, q repository.PropertyQuery) ([]model.PropertyMatch, error)
	GetByID(ctx context.Context, id string) (*model.Property, error)
	GetEmbedding(ctx context.Context, id string) ([]float32, error)
	SpecsSimilar(ctx context.Context, ref *model.Property, band float64, limit int) ([]model.Property, error)
	UpdateEmbedding(ctx context.Context, id string, embedding []float32, meta model.EmbeddingMeta) error
	BatchUpdateEmbeddings(ctx context.Context, items []model.EmbeddingItem, modelName string) (int, []string)
	MissingEmbeddings(ctx context.Context, limit int) ([]model.Property, error)
}

// SessionStore persists conversation sessions. Writes are last-write-wins;
// clients should not pipeline messages on one session.
type SessionStore interface {
	Get(ctx context.Context, id string) (*model.Session, error)
	LatestActiveForUser(ctx context.Context, userID string, cutoff time.Time) (*model.Session, error)
	Save(ctx context.Context, s *model.Session) error
	ArchiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
