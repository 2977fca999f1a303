package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iamwavecut/hustlebot/internal/db"
)

func (s *sqliteClient) SetVerified(ctx context.Context, userID int64, verified bool) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
		INSERT INTO users (user_id, join_date, verified)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
		verified = excluded.verified
	`
	if _, err := s.db.ExecContext(ctx, query, userID, time.Now(), verified); err != nil {
		return fmt.Errorf("failed to set verified for user %d: %w", userID, err)
	}
	return nil
}

func (s *sqliteClient) IsVerified(ctx context.Context, userID int64) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var verified bool
	err := s.db.GetContext(ctx, &verified, `SELECT verified FROM users WHERE user_id = ?`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get verified for user %d: %w", userID, err)
	}
	return verified, nil
}

func (s *sqliteClient) AppendModerationLog(ctx context.Context, entry *db.ModerationLogEntry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO moderation_log (subject_id, action, reason, admin_id, created_at)
		VALUES (:subject_id, :action, :reason, :admin_id, :created_at)
	`
	res, err := s.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		return fmt.Errorf("failed to append moderation log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get moderation log id: %w", err)
	}
	entry.ID = id
	return nil
}

func (s *sqliteClient) GetModerationLog(ctx context.Context, subjectID int64, limit int) ([]*db.ModerationLogEntry, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var entries []*db.ModerationLogEntry
	query := `
		SELECT id, subject_id, action, reason, admin_id, created_at
		FROM moderation_log
		WHERE subject_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	if err := s.db.SelectContext(ctx, &entries, query, subjectID, limit); err != nil {
		return nil, fmt.Errorf("failed to get moderation log: %w", err)
	}
	return entries, nil
}
