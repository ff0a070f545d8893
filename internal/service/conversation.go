package service

import (
	"context"
	"fmt"
	"time"

	"core/internal/config"
	"core/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConversationManager owns the session lifecycle: resumption, message
// history, preference accumulation, and time-based archival.
type ConversationManager struct {
	store SessionStore
	cfg   *config.ChatConfig
	log   *zap.Logger
	now   func() time.Time
}

// NewConversationManager creates a new conversation manager
func NewConversationManager(store SessionStore, cfg *config.ChatConfig, log *zap.Logger) *ConversationManager {
	return &ConversationManager{
		store: store,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

// Resume returns the session for this turn. With an explicit conversation ID
// the session must exist, belong to userID, and still be active; a violation
// of any of those is reported as ErrNotFound so callers cannot distinguish
// someone else's session from a missing one. Without an ID the user's most
// recent active session inside the idle window is reused, otherwise a fresh
// session is created.
func (m *ConversationManager) Resume(ctx context.Context, userID, conversationID string) (*model.Session, error) {
	if conversationID != "" {
		session, err := m.store.Get(ctx, conversationID)
		if err != nil {
			return nil, fmt.Errorf("loading session: %w", err)
		}
		if session == nil || session.UserID != userID || session.Status != model.SessionActive {
			return nil, ErrNotFound
		}
		return session, nil
	}

	cutoff := m.now().Add(-m.cfg.SessionTimeout)
	session, err := m.store.LatestActiveForUser(ctx, userID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("finding active session: %w", err)
	}
	if session != nil {
		return session, nil
	}

	return m.newSession(userID), nil
}

func (m *ConversationManager) newSession(userID string) *model.Session {
	now := m.now()
	return &model.Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		Status:         model.SessionActive,
		Messages:       model.MessageList{},
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// AppendUser records a user turn on the session
func (m *ConversationManager) AppendUser(session *model.Session, content string) {
	session.Messages = append(session.Messages, model.Message{
		Role:      model.RoleUser,
		Content:   content,
		Timestamp: m.now(),
	})
}

// AppendAssistant records an assistant turn with optional annotations
func (m *ConversationManager) AppendAssistant(session *model.Session, content string, meta *model.MessageMetadata) {
	session.Messages = append(session.Messages, model.Message{
		Role:      model.RoleAssistant,
		Content:   content,
		Timestamp: m.now(),
		Metadata:  meta,
	})
}

// MergePreferences overlays newly extracted slots on the session's
// accumulated preferences. A locality accumulates rather than replaces.
func (m *ConversationManager) MergePreferences(session *model.Session, slots model.IntentSlots) {
	partial := model.UserPreferences{
		City:         slots.City,
		BudgetMin:    slots.BudgetMin,
		BudgetMax:    slots.BudgetMax,
		PropertyType: slots.PropertyType,
		Bedrooms:     slots.Bedrooms,
		Amenities:    slots.Amenities,
		Furnishing:   slots.Furnishing,
		ListingType:  slots.ListingType,
	}
	session.Preferences.Merge(partial)

	if slots.Locality != nil {
		locality := *slots.Locality
		for _, existing := range session.Preferences.Localities {
			if existing == locality {
				return
			}
		}
		session.Preferences.Localities = append(session.Preferences.Localities, locality)
	}
}

// History returns up to n of the most recent user/assistant messages in
// chronological order, ready to pass to the language model.
func (m *ConversationManager) History(session *model.Session, n int) []model.Message {
	var turns []model.Message
	for _, msg := range session.Messages {
		if msg.Role == model.RoleUser || msg.Role == model.RoleAssistant {
			turns = append(turns, msg)
		}
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns
}

// Save persists the session, truncating history to the configured cap.
// Only the newest messages survive truncation.
func (m *ConversationManager) Save(ctx context.Context, session *model.Session) error {
	if len(session.Messages) > m.cfg.MaxPersistedMessages {
		session.Messages = session.Messages[len(session.Messages)-m.cfg.MaxPersistedMessages:]
	}
	session.LastActivityAt = m.now()
	session.UpdatedAt = m.now()

	if err := m.store.Save(ctx, session); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Close transitions an active session to closed. Closing is terminal for
// resumption: a later message from the same user starts a new session.
func (m *ConversationManager) Close(ctx context.Context, userID, conversationID string) error {
	session, err := m.store.Get(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if session == nil || session.UserID != userID {
		return ErrNotFound
	}
	if session.Status != model.SessionActive {
		return nil
	}

	session.Status = model.SessionClosed
	session.UpdatedAt = m.now()
	if err := m.store.Save(ctx, session); err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	return nil
}

// ArchiveStale archives every session idle longer than the retention window.
// Meant to run on a timer from main.
func (m *ConversationManager) ArchiveStale(ctx context.Context) (int64, error) {
	cutoff := m.now().Add(-m.cfg.RetentionWindow)
	count, err := m.store.ArchiveBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("archiving sessions: %w", err)
	}
	if count > 0 {
		m.log.Info("archived stale sessions", zap.Int64("count", count))
	}
	return count, nil
}
