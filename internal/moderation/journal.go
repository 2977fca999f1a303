package moderation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/iamwavecut/hustlebot/internal/db"
	"github.com/iamwavecut/hustlebot/internal/observability"
)

type Action string

const (
	ActionWarn            Action = "warn"
	ActionMute            Action = "mute"
	ActionUnmute          Action = "unmute"
	ActionBan             Action = "ban"
	ActionUnban           Action = "unban"
	ActionDelete          Action = "delete"
	ActionVerify          Action = "verify"
	ActionChallengeFailed Action = "challenge_failed"
	ActionAddAdmin        Action = "add_admin"
	ActionRemoveAdmin     Action = "remove_admin"
)

// Store is the persistence the moderation core needs.
type Store interface {
	SetVerified(ctx context.Context, userID int64, verified bool) error
	IsVerified(ctx context.Context, userID int64) (bool, error)
	AppendModerationLog(ctx context.Context, entry *db.ModerationLogEntry) error
}

// Journal appends moderation log entries. Writes are best-effort, a failed write never
// reverts the enforcement it describes.
type Journal struct {
	store Store
	now   func() time.Time
}

func NewJournal(store Store) *Journal {
	return &Journal{store: store, now: time.Now}
}

// Record persists the entry, adminID 0 marks an automatic action.
func (j *Journal) Record(ctx context.Context, subjectID int64, action Action, reason string, adminID int64) error {
	if j == nil {
		return nil
	}
	entry := &db.ModerationLogEntry{
		SubjectID: subjectID,
		Action:    string(action),
		Reason:    reason,
		CreatedAt: j.now(),
	}
	if adminID != 0 {
		entry.AdminID = sql.NullInt64{Int64: adminID, Valid: true}
	}

	observability.Audit().Info("moderation",
		zap.Int64("subject_id", subjectID),
		zap.String("action", entry.Action),
		zap.String("reason", reason),
		zap.Int64("admin_id", adminID),
	)

	if j.store == nil {
		return nil
	}
	if err := j.store.AppendModerationLog(ctx, entry); err != nil {
		err = fmt.Errorf("%w: append moderation log: %w", ErrPersistenceWrite, err)
		log.WithFields(log.Fields{
			"subject_id": subjectID,
			"action":     entry.Action,
			"error":      err.Error(),
		}).Warn("moderation log write failed")
		return err
	}
	return nil
}
