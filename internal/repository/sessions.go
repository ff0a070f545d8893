package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"core/internal/model"

	"github.com/jmoiron/sqlx"
)

const sessionColumns = `id, user_id, status, messages, preferences, last_activity_at, created_at, updated_at`

// SessionRepository handles conversation/session persistence
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Get retrieves a session by id; returns nil when absent
func (r *SessionRepository) Get(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE id = $1", sessionColumns)
	err := r.db.GetContext(ctx, &session, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// LatestActiveForUser returns the user's most recently active session whose
// last activity is at or after the cutoff; nil when none qualifies.
func (r *SessionRepository) LatestActiveForUser(ctx context.Context, userID string, cutoff time.Time) (*model.Session, error) {
	var session model.Session
	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE user_id = $1 AND status = $2 AND last_activity_at >= $3
		ORDER BY last_activity_at DESC
		LIMIT 1
	`, sessionColumns)
	err := r.db.GetContext(ctx, &session, query, userID, string(model.SessionActive), cutoff)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active session: %w", err)
	}
	return &session, nil
}

// Save upserts a session. Last write wins; concurrent writers on one session
// are not ordered by this layer.
func (r *SessionRepository) Save(ctx context.Context, s *model.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, status, messages, preferences, last_activity_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    messages = EXCLUDED.messages,
		    preferences = EXCLUDED.preferences,
		    last_activity_at = EXCLUDED.last_activity_at,
		    updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.UserID, string(s.Status), s.Messages, s.Preferences, s.LastActivityAt, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// ArchiveBefore moves sessions whose last activity predates the cutoff to
// archived. Pure garbage collection; returns the number of rows swept.
func (r *SessionRepository) ArchiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE sessions
		SET status = $1, updated_at = NOW()
		WHERE status IN ($2, $3) AND last_activity_at < $4
	`
	res, err := r.db.ExecContext(ctx, query,
		string(model.SessionArchived), string(model.SessionActive), string(model.SessionClosed), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to archive sessions: %w", err)
	}
	return res.RowsAffected()
}
