package moderation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/iamwavecut/hustlebot/internal/db"
)

type stubStore struct {
	mu        sync.Mutex
	verified  map[int64]bool
	logs      []*db.ModerationLogEntry
	failWrite bool
	reads     int
}

func newStubStore() *stubStore {
	return &stubStore{verified: map[int64]bool{}}
}

func (s *stubStore) SetVerified(_ context.Context, userID int64, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite {
		return errors.New("disk full")
	}
	s.verified[userID] = verified
	return nil
}

func (s *stubStore) IsVerified(_ context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.verified[userID], nil
}

func (s *stubStore) AppendModerationLog(_ context.Context, entry *db.ModerationLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite {
		return errors.New("disk full")
	}
	s.logs = append(s.logs, entry)
	return nil
}

func (s *stubStore) actions(subjectID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []string
	for _, entry := range s.logs {
		if entry.SubjectID == subjectID {
			res = append(res, entry.Action)
		}
	}
	return res
}

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *recordingNotifier) Notify(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.texts)
}

// sequenceSource replays fixed values, wrapping around.
type sequenceSource struct {
	mu     sync.Mutex
	values []int
	next   int
}

func (s *sequenceSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.next%len(s.values)]
	s.next++
	return v % n
}

type fixture struct {
	state        *State
	store        *stubStore
	notifier     *recordingNotifier
	journal      *Journal
	escalation   *EscalationPolicy
	verification *VerificationManager
	rates        *RateTracker
	classifier   *SpamClassifier
	gate         *Gate
}

const testAdminID = 1000

func newFixture(t *testing.T, rnd RandomSource) *fixture {
	t.Helper()

	f := &fixture{
		state:    NewState(0, 0, testAdminID),
		store:    newStubStore(),
		notifier: &recordingNotifier{},
	}
	f.journal = NewJournal(f.store)
	f.escalation = NewEscalationPolicy(f.state, 0, 0)
	f.verification = NewVerificationManager(f.state, f.store, f.journal, VerificationOptions{Random: rnd})
	f.rates = NewRateTracker(f.state, DefaultRateLimits())

	classifier, err := NewSpamClassifier(nil, nil)
	if err != nil {
		t.Fatalf("new spam classifier: %v", err)
	}
	f.classifier = classifier
	f.gate = NewGate(GateDeps{
		Escalation:   f.escalation,
		Verification: f.verification,
		Rates:        f.rates,
		Classifier:   f.classifier,
		Journal:      f.journal,
		Notifier:     f.notifier,
	})
	return f
}

func (f *fixture) verify(t *testing.T, userID int64) {
	t.Helper()
	if err := f.verification.Verify(context.Background(), userID); err != nil {
		t.Fatalf("verify %d: %v", userID, err)
	}
}

func hasIntent(out Outcome, kind IntentKind) bool {
	for _, intent := range out.Intents {
		if intent.Kind == kind {
			return true
		}
	}
	return false
}

func sentText(out Outcome) string {
	for _, intent := range out.Intents {
		if intent.Kind == IntentSendText || intent.Kind == IntentSendTextWithKeyboard {
			return intent.Text
		}
	}
	return ""
}
