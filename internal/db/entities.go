package db

import (
	"database/sql"
	"time"
)

type (
	// User is a ledger participant row.
	User struct {
		ID           int64     `db:"user_id"`
		UserName     string    `db:"username"`
		FirstName    string    `db:"first_name"`
		HustlePoints int       `db:"hustle_points"`
		DailyStreak  int       `db:"daily_streak"`
		LastActivity string    `db:"last_activity"`
		JoinDate     time.Time `db:"join_date"`
		Verified     bool      `db:"verified"`
	}

	Meme struct {
		ID             int64     `db:"id"`
		UserID         int64     `db:"user_id"`
		FileID         string    `db:"file_id"`
		Caption        string    `db:"caption"`
		Votes          int       `db:"votes"`
		SubmissionDate time.Time `db:"submission_date"`
	}

	// ModerationLogEntry is an append-only audit record. AdminID is null for automatic actions.
	ModerationLogEntry struct {
		ID        int64         `db:"id"`
		SubjectID int64         `db:"subject_id"`
		Action    string        `db:"action"`
		Reason    string        `db:"reason"`
		AdminID   sql.NullInt64 `db:"admin_id"`
		CreatedAt time.Time     `db:"created_at"`
	}
)

// DayLayout is the calendar day format used by ledger date columns.
const DayLayout = "2006-01-02"

// Day formats t as a ledger calendar day.
func Day(t time.Time) string {
	return t.Format(DayLayout)
}

// DisplayName returns the best human readable name of the user.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return "Anonymous"
}
