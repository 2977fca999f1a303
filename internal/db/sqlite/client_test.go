package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/iamwavecut/hustlebot/internal/db"
)

func newTestClient(t *testing.T) *sqliteClient {
	t.Helper()
	client, err := NewSQLiteClient(context.Background(), t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestMigrationsCreateAllTables(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	for _, table := range []string{"users", "daily_tasks", "memes", "moderation_log"} {
		var name string
		err := client.db.Get(&name, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table)
		if err != nil {
			t.Fatalf("table %q not found: %v", table, err)
		}
	}
}

func TestVerifiedFlagSurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	client, err := NewSQLiteClient(ctx, dir, "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	verified, err := client.IsVerified(ctx, 42)
	if err != nil {
		t.Fatalf("is verified: %v", err)
	}
	if verified {
		t.Fatalf("unknown user must not be verified")
	}
	if err := client.SetVerified(ctx, 42, true); err != nil {
		t.Fatalf("set verified: %v", err)
	}
	_ = client.Close()

	reopened, err := NewSQLiteClient(ctx, dir, "test.db")
	if err != nil {
		t.Fatalf("reopen sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	verified, err = reopened.IsVerified(ctx, 42)
	if err != nil {
		t.Fatalf("is verified after reopen: %v", err)
	}
	if !verified {
		t.Fatalf("verified flag lost after reopen")
	}
}

func TestModerationLogAppendAndRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	now := time.Now()
	entries := []*db.ModerationLogEntry{
		{SubjectID: 7, Action: "mute", Reason: "flood", CreatedAt: now.Add(-time.Minute)},
		{SubjectID: 7, Action: "ban", Reason: "admin command", AdminID: sql.NullInt64{Int64: 1, Valid: true}, CreatedAt: now},
		{SubjectID: 8, Action: "delete", Reason: "keyword:crypto_scam", CreatedAt: now},
	}
	for _, entry := range entries {
		if err := client.AppendModerationLog(ctx, entry); err != nil {
			t.Fatalf("append moderation log: %v", err)
		}
		if entry.ID == 0 {
			t.Fatalf("expected entry id to be assigned")
		}
	}

	got, err := client.GetModerationLog(ctx, 7, 10)
	if err != nil {
		t.Fatalf("get moderation log: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Action != "ban" || !got[0].AdminID.Valid || got[0].AdminID.Int64 != 1 {
		t.Fatalf("unexpected newest entry: %+v", got[0])
	}
	if got[1].Action != "mute" || got[1].AdminID.Valid {
		t.Fatalf("unexpected oldest entry: %+v", got[1])
	}
}

func TestLedgerPointsAndLeaderboard(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	for _, u := range []*db.User{
		{ID: 1, UserName: "alice", FirstName: "Alice"},
		{ID: 2, UserName: "bob", FirstName: "Bob"},
		{ID: 3, FirstName: "Carol"},
	} {
		if _, err := client.GetOrCreateUser(ctx, u); err != nil {
			t.Fatalf("get or create user: %v", err)
		}
	}

	day := db.Day(time.Now())
	if err := client.AddPoints(ctx, 2, 300, day); err != nil {
		t.Fatalf("add points: %v", err)
	}
	if err := client.AddPoints(ctx, 1, 100, day); err != nil {
		t.Fatalf("add points: %v", err)
	}
	if err := client.AddPoints(ctx, 99, 100, day); err == nil {
		t.Fatalf("expected error for unknown user")
	}

	board, err := client.GetLeaderboard(ctx, 2)
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	if len(board) != 2 || board[0].ID != 2 || board[1].ID != 1 {
		t.Fatalf("unexpected leaderboard: %+v", board)
	}
	if board[0].LastActivity != day {
		t.Fatalf("expected last activity %q, got %q", day, board[0].LastActivity)
	}

	again, err := client.GetOrCreateUser(ctx, &db.User{ID: 2, UserName: "bobby", FirstName: "Bob"})
	if err != nil {
		t.Fatalf("get or create existing user: %v", err)
	}
	if again.HustlePoints != 300 || again.UserName != "bobby" {
		t.Fatalf("existing user must keep points and refresh names: %+v", again)
	}

	missing, err := client.GetUser(ctx, 404)
	if err != nil || missing != nil {
		t.Fatalf("expected nil user without error, got %+v, %v", missing, err)
	}
}

func TestCompleteDailyTaskOncePerDay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	if _, err := client.GetOrCreateUser(ctx, &db.User{ID: 5, FirstName: "Eve"}); err != nil {
		t.Fatalf("get or create user: %v", err)
	}

	done, err := client.CompleteDailyTask(ctx, 5, "workout", 100, "2026-10-17")
	if err != nil || !done {
		t.Fatalf("first completion: done=%v err=%v", done, err)
	}
	done, err = client.CompleteDailyTask(ctx, 5, "workout", 100, "2026-10-17")
	if err != nil || done {
		t.Fatalf("second completion same day: done=%v err=%v", done, err)
	}
	done, err = client.CompleteDailyTask(ctx, 5, "workout", 100, "2026-10-18")
	if err != nil || !done {
		t.Fatalf("completion next day: done=%v err=%v", done, err)
	}

	user, err := client.GetUser(ctx, 5)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.HustlePoints != 200 || user.DailyStreak != 2 || user.LastActivity != "2026-10-18" {
		t.Fatalf("unexpected user after tasks: %+v", user)
	}
}

func TestSubmitMemeAwardsPoints(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	if _, err := client.GetOrCreateUser(ctx, &db.User{ID: 9, FirstName: "Mo"}); err != nil {
		t.Fatalf("get or create user: %v", err)
	}
	meme := &db.Meme{UserID: 9, FileID: "file-1", Caption: "grind"}
	if err := client.SubmitMeme(ctx, meme, 50); err != nil {
		t.Fatalf("submit meme: %v", err)
	}
	if meme.ID == 0 {
		t.Fatalf("expected meme id to be assigned")
	}

	user, err := client.GetUser(ctx, 9)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.HustlePoints != 50 {
		t.Fatalf("expected 50 points, got %d", user.HustlePoints)
	}

	if err := client.SubmitMeme(ctx, &db.Meme{UserID: 404, FileID: "x"}, 50); err == nil {
		t.Fatalf("expected error for unknown user")
	}
}
