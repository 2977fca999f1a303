package db

import "context"

type Client interface {
	Close() error

	SetVerified(ctx context.Context, userID int64, verified bool) error
	IsVerified(ctx context.Context, userID int64) (bool, error)
	AppendModerationLog(ctx context.Context, entry *ModerationLogEntry) error
	GetModerationLog(ctx context.Context, subjectID int64, limit int) ([]*ModerationLogEntry, error)

	GetOrCreateUser(ctx context.Context, user *User) (*User, error)
	GetUser(ctx context.Context, userID int64) (*User, error)
	AddPoints(ctx context.Context, userID int64, points int, day string) error
	GetLeaderboard(ctx context.Context, limit int) ([]*User, error)
	CompleteDailyTask(ctx context.Context, userID int64, taskType string, points int, day string) (bool, error)
	SubmitMeme(ctx context.Context, meme *Meme, points int) error
}
