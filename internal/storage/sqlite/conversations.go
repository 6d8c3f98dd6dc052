package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskline/taskline/internal/types"
)

// AppendMessage locates or creates the unfinalized conversation for key and
// appends msg to it, all inside a single immediate transaction. The partial
// unique index on (key) WHERE finalized = 0 guarantees concurrent appends
// cannot create two open conversations for the same key.
func (s *SQLiteStorage) AppendMessage(ctx context.Context, key, channel, threadID string, msg types.Message, now time.Time) (*types.Conversation, error) {
	now = now.UTC()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	msg.Timestamp = msg.Timestamp.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM conversations WHERE key = ? AND finalized = 0", key).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		id = uuid.New().String()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO conversations (id, key, channel, thread_id, first_seen_at, last_seen_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, key, channel, threadID, now, now)
		if err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}

	var nextSeq int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM conversation_messages WHERE conversation_id = ?",
		id).Scan(&nextSeq)
	if err != nil {
		return nil, fmt.Errorf("failed to compute message sequence: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversation_messages (conversation_id, seq, sender, body, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		id, nextSeq, msg.Sender, msg.Body, msg.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE conversations SET last_seen_at = ? WHERE id = ?", now, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update last_seen_at: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit append: %w", err)
	}

	return s.GetConversation(ctx, id)
}

// GetConversation loads a conversation and its ordered message list.
func (s *SQLiteStorage) GetConversation(ctx context.Context, id string) (*types.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, key, channel, thread_id, first_seen_at, last_seen_at,
		       finalized, finalized_at, derived_message_id
		FROM conversations WHERE id = ?`, id)

	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", id, err)
	}

	if err := s.loadMessages(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// ReadyConversations returns unfinalized conversations whose buffering
// window has elapsed by age or by silence, oldest first_seen_at first.
func (s *SQLiteStorage) ReadyConversations(ctx context.Context, now time.Time, bufferWindow, silenceThreshold time.Duration) ([]*types.Conversation, error) {
	ageCutoff := now.Add(-bufferWindow).UTC()
	silenceCutoff := now.Add(-silenceThreshold).UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, channel, thread_id, first_seen_at, last_seen_at,
		       finalized, finalized_at, derived_message_id
		FROM conversations
		WHERE finalized = 0 AND (first_seen_at <= ? OR last_seen_at <= ?)
		ORDER BY first_seen_at ASC`, ageCutoff, silenceCutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query ready conversations: %w", err)
	}
	defer rows.Close()

	var convs []*types.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ready conversations: %w", err)
	}

	for _, conv := range convs {
		if err := s.loadMessages(ctx, conv); err != nil {
			return nil, err
		}
	}
	return convs, nil
}

// FinalizeConversation marks a conversation finalized and stores its
// rendered text as a derived message, both in one transaction: either the
// conversation transitions and the text record exists, or neither happens.
// The guarded UPDATE on finalized = 0 makes the transition happen exactly
// once; a second attempt finds no matching row, rolls back, and surfaces
// ErrAlreadyFinalized with no orphaned derived row. Returns the derived
// message id.
func (s *SQLiteStorage) FinalizeConversation(ctx context.Context, id string, finalizedAt time.Time, content string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin finalize transaction: %w", err)
	}
	defer tx.Rollback()

	derivedID := uuid.New().String()
	res, err := tx.ExecContext(ctx, `
		UPDATE conversations
		SET finalized = 1, finalized_at = ?, derived_message_id = ?
		WHERE id = ? AND finalized = 0`,
		finalizedAt.UTC(), derivedID, id)
	if err != nil {
		return "", fmt.Errorf("failed to finalize conversation %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to check finalize result: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM conversations WHERE id = ?", id).Scan(&exists); err == sql.ErrNoRows {
			return "", ErrNotFound
		} else if err != nil {
			return "", fmt.Errorf("failed to check conversation %s: %w", id, err)
		}
		return "", fmt.Errorf("finalize %s: %w", id, ErrAlreadyFinalized)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO derived_messages (id, conversation_id, content, created_at)
		VALUES (?, ?, ?, ?)`,
		derivedID, id, content, finalizedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("failed to create derived message for %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit finalize for %s: %w", id, err)
	}
	return derivedID, nil
}

// DeleteFinalizedBefore evicts finalized conversations older than cutoff.
// Messages and derived records cascade.
func (s *SQLiteStorage) DeleteFinalizedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM conversations WHERE finalized = 1 AND finalized_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old conversations: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted conversations: %w", err)
	}
	return int(affected), nil
}

// GetDerivedMessage returns the rendered text for a derived message id.
func (s *SQLiteStorage) GetDerivedMessage(ctx context.Context, id string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		"SELECT content FROM derived_messages WHERE id = ?", id).Scan(&content)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load derived message %s: %w", id, err)
	}
	return content, nil
}

func (s *SQLiteStorage) loadMessages(ctx context.Context, conv *types.Conversation) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sender, body, timestamp
		FROM conversation_messages
		WHERE conversation_id = ?
		ORDER BY seq ASC`, conv.ID)
	if err != nil {
		return fmt.Errorf("failed to load messages for %s: %w", conv.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg types.Message
		if err := rows.Scan(&msg.Sender, &msg.Body, &msg.Timestamp); err != nil {
			return fmt.Errorf("failed to scan message: %w", err)
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return rows.Err()
}

// rowScanner lets scanConversation work with both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row rowScanner) (*types.Conversation, error) {
	var conv types.Conversation
	var finalizedAt sql.NullTime
	var derivedID sql.NullString

	err := row.Scan(&conv.ID, &conv.Key, &conv.Channel, &conv.ThreadID,
		&conv.FirstSeenAt, &conv.LastSeenAt, &conv.Finalized, &finalizedAt, &derivedID)
	if err != nil {
		return nil, err
	}

	if finalizedAt.Valid {
		t := finalizedAt.Time
		conv.FinalizedAt = &t
	}
	if derivedID.Valid {
		conv.DerivedMessageID = derivedID.String
	}
	return &conv, nil
}
