package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"core/internal/model"
	"core/internal/utils"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

const propertyColumns = `
	id, title, description, property_type, city, state, locality, pincode, landmark,
	bedrooms, bathrooms, carpet_area, furnishing, age_years, possession, amenities,
	expected_price, negotiable, maintenance, status, listing_type, sold_at,
	created_at, updated_at`

// Connect opens a pooled PostgreSQL connection
func Connect(dsn string, maxConn, maxIdleConn int) (*sqlx.DB, error) {
	// Disable prepared statement caching to avoid "unnamed prepared statement
	// does not exist" errors behind connection poolers
	if !strings.Contains(dsn, "?") {
		dsn += "?prefer_simple_protocol=true"
	} else {
		dsn += "&prefer_simple_protocol=true"
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// PropertyQuery describes one retrieval against the property store
type PropertyQuery struct {
	Keywords string
	Filters  model.SearchFilters
	Statuses []model.PropertyStatus
	Limit    int
	Offset   int
}

// PropertyRepository handles property listing reads and embedding writes
type PropertyRepository struct {
	db *sqlx.DB
}

// NewPropertyRepository creates a new property repository
func NewPropertyRepository(db *sqlx.DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

// buildWhere assembles WHERE clauses from the query's statuses and filters,
// returning clauses, args, and the next free parameter index.
func buildWhere(q PropertyQuery, argIndex int) ([]string, []interface{}, int) {
	whereClauses := []string{"1=1"}
	args := []interface{}{}

	statuses := q.Statuses
	if len(statuses) == 0 {
		statuses = []model.PropertyStatus{model.StatusApproved}
	}
	statusStrs := make([]string, len(statuses))
	for i, s := range statuses {
		statusStrs[i] = string(s)
	}
	whereClauses = append(whereClauses, fmt.Sprintf("status = ANY($%d)", argIndex))
	args = append(args, pq.Array(statusStrs))
	argIndex++

	f := q.Filters
	if f.City != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("city ILIKE $%d", argIndex))
		args = append(args, "%"+*f.City+"%")
		argIndex++
	}
	if f.Locality != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("locality ILIKE $%d", argIndex))
		args = append(args, "%"+*f.Locality+"%")
		argIndex++
	}
	if f.PriceMin != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("expected_price >= $%d", argIndex))
		args = append(args, *f.PriceMin)
		argIndex++
	}
	if f.PriceMax != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("expected_price <= $%d", argIndex))
		args = append(args, *f.PriceMax)
		argIndex++
	}
	if f.PropertyType != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("property_type = $%d", argIndex))
		args = append(args, *f.PropertyType)
		argIndex++
	}
	if f.Bedrooms != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("bedrooms = $%d", argIndex))
		args = append(args, *f.Bedrooms)
		argIndex++
	}
	if f.Furnishing != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("furnishing ILIKE $%d", argIndex))
		args = append(args, *f.Furnishing)
		argIndex++
	}
	if f.ListingType != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("listing_type = $%d", argIndex))
		args = append(args, *f.ListingType)
		argIndex++
	}
	if len(f.Amenities) > 0 {
		conds, params, next := utils.BuildAmenityConditions(f.Amenities, argIndex)
		whereClauses = append(whereClauses, conds...)
		args = append(args, params...)
		argIndex = next
	}

	return whereClauses, args, argIndex
}

// Search performs a keyword/filter search ranked by recency (newest first)
func (r *PropertyRepository) Search(ctx context.Context, q PropertyQuery) ([]model.Property, int, error) {
	whereClauses, args, argIndex := buildWhere(q, 1)

	if kw := strings.TrimSpace(q.Keywords); kw != "" {
		pattern := "%" + kw + "%"
		clause := fmt.Sprintf(
			"(title ILIKE $%d OR description ILIKE $%d OR city ILIKE $%d OR locality ILIKE $%d)",
			argIndex, argIndex+1, argIndex+2, argIndex+3,
		)
		whereClauses = append(whereClauses, clause)
		args = append(args, pattern, pattern, pattern, pattern)
		argIndex += 4
	}

	whereClause := strings.Join(whereClauses, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM properties WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count results: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM properties
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, propertyColumns, whereClause, argIndex, argIndex+1)
	args = append(args, q.Limit, q.Offset)

	var properties []model.Property
	if err := r.db.SelectContext(ctx, &properties, selectQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch properties: %w", err)
	}

	return properties, total, nil
}

// TopK performs a cosine-similarity search over embedded properties, applying
// the query's status and metadata filters in SQL. Results are ordered by
// similarity descending.
func (r *PropertyRepository) TopK(ctx context.Context, embedding []float32, q PropertyQuery) ([]model.PropertyMatch, error) {
	vec := pgvector.NewVector(embedding)

	whereClauses, args, argIndex := buildWhere(q, 2)
	whereClauses = append(whereClauses, "embedding IS NOT NULL")
	whereClause := strings.Join(whereClauses, " AND ")

	query := fmt.Sprintf(`
		SELECT %s, 1 - (embedding <=> $1) AS similarity
		FROM properties
		WHERE %s
		ORDER BY embedding <=> $1
		LIMIT $%d
	`, propertyColumns, whereClause, argIndex)
	args = append([]interface{}{vec}, args...)
	args = append(args, q.Limit)

	var matches []model.PropertyMatch
	if err := r.db.SelectContext(ctx, &matches, query, args...); err != nil {
		return nil, fmt.Errorf("failed to run similarity search: %w", err)
	}

	return matches, nil
}

// GetByID retrieves a single property; returns nil when absent
func (r *PropertyRepository) GetByID(ctx context.Context, id string) (*model.Property, error) {
	var property model.Property
	query := fmt.Sprintf("SELECT %s FROM properties WHERE id = $1", propertyColumns)
	err := r.db.GetContext(ctx, &property, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return &property, nil
}

// GetEmbedding returns the stored vector for a property, or nil when the
// property has no embedding.
func (r *PropertyRepository) GetEmbedding(ctx context.Context, id string) ([]float32, error) {
	var vec pgvector.Vector
	query := "SELECT embedding FROM properties WHERE id = $1 AND embedding IS NOT NULL"
	err := r.db.GetContext(ctx, &vec, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}
	return vec.Slice(), nil
}

// SpecsSimilar finds approved listings comparable to ref by specs: same
// property type, same bedroom count, same city, price within ±band.
func (r *PropertyRepository) SpecsSimilar(ctx context.Context, ref *model.Property, band float64, limit int) ([]model.Property, error) {
	whereClauses := []string{
		"id <> $1",
		"status = $2",
		"property_type = $3",
		"city ILIKE $4",
		"expected_price BETWEEN $5 AND $6",
	}
	args := []interface{}{
		ref.ID,
		string(model.StatusApproved),
		string(ref.PropertyType),
		ref.City,
		ref.ExpectedPrice * (1 - band),
		ref.ExpectedPrice * (1 + band),
	}
	argIndex := 7
	if ref.Bedrooms != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("bedrooms = $%d", argIndex))
		args = append(args, *ref.Bedrooms)
		argIndex++
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM properties
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d
	`, propertyColumns, strings.Join(whereClauses, " AND "), argIndex)
	args = append(args, limit)

	var properties []model.Property
	if err := r.db.SelectContext(ctx, &properties, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch similar properties: %w", err)
	}
	return properties, nil
}

// UpdateEmbedding attaches a vector and its provenance to a property
func (r *PropertyRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32, meta model.EmbeddingMeta) error {
	vec := pgvector.NewVector(embedding)
	query := `
		UPDATE properties
		SET embedding = $1, embedding_model = $2, embedding_text = $3,
		    embedded_at = $4, updated_at = NOW()
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, vec, meta.Model, meta.SourceText, meta.EmbeddedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update embedding: %w", err)
	}
	return nil
}

// BatchUpdateEmbeddings attaches precomputed vectors to multiple properties.
// Item failures are collected, not fatal.
func (r *PropertyRepository) BatchUpdateEmbeddings(ctx context.Context, items []model.EmbeddingItem, modelName string) (int, []string) {
	success := 0
	var errors []string

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		errors = append(errors, fmt.Sprintf("failed to start transaction: %v", err))
		return success, errors
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		UPDATE properties
		SET embedding = $1, embedding_model = $2, embedding_text = $3,
		    embedded_at = NOW(), updated_at = NOW()
		WHERE id = $4
	`)
	if err != nil {
		errors = append(errors, fmt.Sprintf("failed to prepare statement: %v", err))
		return success, errors
	}
	defer stmt.Close()

	for _, item := range items {
		vec := pgvector.NewVector(item.Embedding)
		res, err := stmt.ExecContext(ctx, vec, modelName, item.Text, item.PropertyID)
		if err != nil {
			errors = append(errors, fmt.Sprintf("property %s: %v", item.PropertyID, err))
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			errors = append(errors, fmt.Sprintf("property %s: not found", item.PropertyID))
			continue
		}
		success++
	}

	if err := tx.Commit(); err != nil {
		errors = append(errors, fmt.Sprintf("failed to commit transaction: %v", err))
		return 0, errors
	}

	return success, errors
}

// MissingEmbeddings lists approved properties that have no stored vector yet
func (r *PropertyRepository) MissingEmbeddings(ctx context.Context, limit int) ([]model.Property, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM properties
		WHERE status = $1 AND embedding IS NULL
		ORDER BY created_at ASC
		LIMIT $2
	`, propertyColumns)

	var properties []model.Property
	if err := r.db.SelectContext(ctx, &properties, query, string(model.StatusApproved), limit); err != nil {
		return nil, fmt.Errorf("failed to list properties missing embeddings: %w", err)
	}
	return properties, nil
}
