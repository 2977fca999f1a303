// Package ledger keeps the hustle points economy: daily tasks, memes and the leaderboard.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iamwavecut/hustlebot/internal/db"
	"github.com/iamwavecut/hustlebot/internal/observability"
)

const (
	MemePoints        = 50
	DefaultTaskPoints = 50
	LeaderboardSize   = 10
)

// Tasks lists the daily tasks in display order.
var Tasks = []string{"goal", "workout", "learning", "quote", "business"}

var taskPoints = map[string]int{
	"goal":     100,
	"workout":  100,
	"learning": 100,
	"quote":    50,
	"business": 150,
}

var ErrUnknownUser = errors.New("unknown user")

type Store interface {
	GetOrCreateUser(ctx context.Context, user *db.User) (*db.User, error)
	GetUser(ctx context.Context, userID int64) (*db.User, error)
	AddPoints(ctx context.Context, userID int64, points int, day string) error
	GetLeaderboard(ctx context.Context, limit int) ([]*db.User, error)
	CompleteDailyTask(ctx context.Context, userID int64, taskType string, points int, day string) (bool, error)
	SubmitMeme(ctx context.Context, meme *db.Meme, points int) error
}

type Ledger struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// TaskPoints returns the reward of a daily task, unknown tasks earn the default.
func TaskPoints(task string) int {
	if points, ok := taskPoints[strings.ToLower(task)]; ok {
		return points
	}
	return DefaultTaskPoints
}

func (l *Ledger) Register(ctx context.Context, userID int64, userName, firstName string) (*db.User, error) {
	user, err := l.store.GetOrCreateUser(ctx, &db.User{ID: userID, UserName: userName, FirstName: firstName})
	if err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}
	return user, nil
}

func (l *Ledger) Stats(ctx context.Context, userID int64) (*db.User, error) {
	user, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user stats: %w", err)
	}
	if user == nil {
		return nil, ErrUnknownUser
	}
	return user, nil
}

func (l *Ledger) Leaderboard(ctx context.Context, limit int) ([]*db.User, error) {
	if limit <= 0 {
		limit = LeaderboardSize
	}
	users, err := l.store.GetLeaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}
	return users, nil
}

func (l *Ledger) Award(ctx context.Context, userID int64, points int, source string) error {
	if err := l.store.AddPoints(ctx, userID, points, db.Day(l.now())); err != nil {
		return fmt.Errorf("award points: %w", err)
	}
	observability.RecordPoints(source, points)
	return nil
}

// CompleteTask awards the task once per day. It returns the points earned and false when
// the task was already completed today.
func (l *Ledger) CompleteTask(ctx context.Context, userID int64, task string) (int, bool, error) {
	task = strings.ToLower(strings.TrimSpace(task))
	points := TaskPoints(task)
	done, err := l.store.CompleteDailyTask(ctx, userID, task, points, db.Day(l.now()))
	if err != nil {
		return 0, false, fmt.Errorf("complete task %q: %w", task, err)
	}
	if !done {
		return 0, false, nil
	}
	observability.RecordPoints("task", points)
	return points, true, nil
}

func (l *Ledger) SubmitMeme(ctx context.Context, userID int64, fileID, caption string) (int, error) {
	meme := &db.Meme{UserID: userID, FileID: fileID, Caption: caption, SubmissionDate: l.now()}
	if err := l.store.SubmitMeme(ctx, meme, MemePoints); err != nil {
		return 0, fmt.Errorf("submit meme: %w", err)
	}
	observability.RecordPoints("meme", MemePoints)
	return MemePoints, nil
}
