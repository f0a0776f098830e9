package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/flemzord/brandai/internal/memory"
)

// LogActivity implements memory.ActivityLog.
func (s *Store) LogActivity(ctx context.Context, brandID, kind, description string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activities (id, brand_id, type, description, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), brandID, kind, description, formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("sqlite: log activity: %w", err)
	}
	return nil
}

func scanActivity(r scanner) (memory.Activity, error) {
	var (
		a         memory.Activity
		createdAt string
	)
	if err := r.Scan(&a.ID, &a.BrandID, &a.Type, &a.Description, &createdAt); err != nil {
		return memory.Activity{}, fmt.Errorf("sqlite: scan activity: %w", err)
	}
	var err error
	a.CreatedAt, err = parseTime(createdAt)
	return a, err
}

// RecentActivities implements memory.ActivityLog. A limit of zero or
// less returns the whole log.
func (s *Store) RecentActivities(ctx context.Context, brandID string, limit int) ([]memory.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, brand_id, type, description, created_at
		FROM activities WHERE brand_id = ?
		ORDER BY seq DESC
		LIMIT ?`, brandID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent activities: %w", err)
	}
	return collect(rows, scanActivity)
}

// sqlLimit maps a non-positive limit to SQLite's "no limit".
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

const conversationColumns = `id, brand_id, title, type, created_at, updated_at`

func scanConversation(r scanner) (memory.Conversation, error) {
	var (
		c                    memory.Conversation
		createdAt, updatedAt string
	)
	if err := r.Scan(&c.ID, &c.BrandID, &c.Title, &c.Type, &createdAt, &updatedAt); err != nil {
		return memory.Conversation{}, err
	}
	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return memory.Conversation{}, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return memory.Conversation{}, err
	}
	return c, nil
}

// GetConversation implements memory.ConversationStore.
func (s *Store) GetConversation(ctx context.Context, id string) (memory.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return memory.Conversation{}, fmt.Errorf("%w: conversation %q", memory.ErrNotFound, id)
	}
	if err != nil {
		return memory.Conversation{}, fmt.Errorf("sqlite: get conversation: %w", err)
	}
	return c, nil
}

// ListConversations implements memory.ConversationStore.
func (s *Store) ListConversations(ctx context.Context, brandID string) ([]memory.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE brand_id = ?
		ORDER BY updated_at DESC, seq DESC`, brandID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list conversations: %w", err)
	}
	return collect(rows, scanConversation)
}

// CreateConversation implements memory.ConversationStore.
func (s *Store) CreateConversation(ctx context.Context, c memory.Conversation) (string, error) {
	created := s.stamp(c.CreatedAt)
	updated := c.UpdatedAt
	if updated.IsZero() {
		updated = created
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (`+conversationColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		id, c.BrandID, c.Title, c.Type, formatTime(created), formatTime(updated),
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: create conversation: %w", err)
	}
	return id, nil
}

// DeleteConversation implements memory.ConversationStore.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
			return fmt.Errorf("sqlite: delete conversation messages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id); err != nil {
			return fmt.Errorf("sqlite: delete conversation: %w", err)
		}
		return nil
	})
}

// AppendMessage implements memory.ConversationStore.
func (s *Store) AppendMessage(ctx context.Context, m memory.ChatMessage) (string, error) {
	id := uuid.NewString()
	at := formatTime(s.stamp(m.CreatedAt))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			id, m.ConversationID, m.Role, m.Content, at,
		); err != nil {
			return fmt.Errorf("sqlite: append message: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE conversations SET updated_at = ? WHERE id = ?",
			at, m.ConversationID); err != nil {
			return fmt.Errorf("sqlite: touch conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func scanMessage(r scanner) (memory.ChatMessage, error) {
	var (
		m         memory.ChatMessage
		createdAt string
	)
	if err := r.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &createdAt); err != nil {
		return memory.ChatMessage{}, fmt.Errorf("sqlite: scan message: %w", err)
	}
	var err error
	m.CreatedAt, err = parseTime(createdAt)
	return m, err
}

// RecentMessages implements memory.ConversationStore.
func (s *Store) RecentMessages(ctx context.Context, conversationID string, limit int) ([]memory.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY seq DESC
		LIMIT ?`, conversationID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent messages: %w", err)
	}
	return collect(rows, scanMessage)
}

// GetSetting implements memory.SettingsStore.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite: get setting: %w", err)
	}
	return value, true, nil
}

// PutSetting implements memory.SettingsStore.
func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("sqlite: put setting: %w", err)
	}
	return nil
}
