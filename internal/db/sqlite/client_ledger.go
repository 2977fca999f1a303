package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iamwavecut/hustlebot/internal/db"
)

const userColumns = `user_id, username, first_name, hustle_points, daily_streak, last_activity, join_date, verified`

func (s *sqliteClient) GetOrCreateUser(ctx context.Context, user *db.User) (*db.User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if user.JoinDate.IsZero() {
		user.JoinDate = time.Now()
	}
	query := `
		INSERT INTO users (user_id, username, first_name, join_date)
		VALUES (:user_id, :username, :first_name, :join_date)
		ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		first_name = excluded.first_name
	`
	if _, err := s.db.NamedExecContext(ctx, query, user); err != nil {
		return nil, fmt.Errorf("failed to upsert user %d: %w", user.ID, err)
	}

	res := &db.User{}
	if err := s.db.GetContext(ctx, res, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, user.ID); err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", user.ID, err)
	}
	return res, nil
}

// GetUser returns nil without error when the user is unknown.
func (s *sqliteClient) GetUser(ctx context.Context, userID int64) (*db.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	res := &db.User{}
	if err := s.db.GetContext(ctx, res, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return res, nil
}

func (s *sqliteClient) AddPoints(ctx context.Context, userID int64, points int, day string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return addPoints(ctx, s.db, userID, points, day)
}

func (s *sqliteClient) GetLeaderboard(ctx context.Context, limit int) ([]*db.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var users []*db.User
	query := `SELECT ` + userColumns + ` FROM users ORDER BY hustle_points DESC, user_id ASC LIMIT ?`
	if err := s.db.SelectContext(ctx, &users, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	return users, nil
}

// CompleteDailyTask records the task for the day, false means it was already done.
func (s *sqliteClient) CompleteDailyTask(ctx context.Context, userID int64, taskType string, points int, day string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO daily_tasks (user_id, task_type, completed_date, points_earned)
		VALUES (?, ?, ?, ?)
	`, userID, taskType, day, points)
	if err != nil {
		return false, fmt.Errorf("failed to insert daily task: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if inserted == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET
		hustle_points = hustle_points + ?,
		daily_streak = daily_streak + 1,
		last_activity = ?
		WHERE user_id = ?
	`, points, day, userID); err != nil {
		return false, fmt.Errorf("failed to award task points: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit daily task: %w", err)
	}
	return true, nil
}

func (s *sqliteClient) SubmitMeme(ctx context.Context, meme *db.Meme, points int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if meme.SubmissionDate.IsZero() {
		meme.SubmissionDate = time.Now()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.NamedExecContext(ctx, `
		INSERT INTO memes (user_id, file_id, caption, votes, submission_date)
		VALUES (:user_id, :file_id, :caption, :votes, :submission_date)
	`, meme)
	if err != nil {
		return fmt.Errorf("failed to insert meme: %w", err)
	}
	if meme.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get meme id: %w", err)
	}
	if err := addPoints(ctx, tx, meme.UserID, points, db.Day(meme.SubmissionDate)); err != nil {
		return err
	}
	return tx.Commit()
}

func addPoints(ctx context.Context, ex sqlx.ExecerContext, userID int64, points int, day string) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE users SET hustle_points = hustle_points + ?, last_activity = ? WHERE user_id = ?
	`, points, day, userID)
	if err != nil {
		return fmt.Errorf("failed to add points to user %d: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("failed to add points to user %d: %w", userID, sql.ErrNoRows)
	}
	return nil
}
