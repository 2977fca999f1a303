package moderation

import (
	"slices"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

const (
	DefaultMessageWindow = 50
	DefaultCommandWindow = 20
)

type userState struct {
	mu sync.Mutex

	messages *window
	commands *window

	warnings    int
	lastWarning time.Time

	muted    bool
	banned   bool
	verified bool
	// verifiedLoaded is set once the persisted verified flag has been consulted.
	verifiedLoaded bool

	pending *pendingChallenge
}

// State is the process-local moderation state shared by all moderation components.
// Every user has its own lock, two users never contend.
type State struct {
	users  *xsync.MapOf[int64, *userState]
	admins *xsync.MapOf[int64, struct{}]

	messageWindow int
	commandWindow int
}

// Stats is a point in time snapshot of the membership sets.
type Stats struct {
	Muted    int
	Banned   int
	Verified int
	Pending  int
	Warned   int
	Admins   int
}

func NewState(messageWindow, commandWindow int, admins ...int64) *State {
	if messageWindow <= 0 {
		messageWindow = DefaultMessageWindow
	}
	if commandWindow <= 0 {
		commandWindow = DefaultCommandWindow
	}
	s := &State{
		users:         xsync.NewMapOf[int64, *userState](),
		admins:        xsync.NewMapOf[int64, struct{}](),
		messageWindow: messageWindow,
		commandWindow: commandWindow,
	}
	for _, id := range admins {
		s.admins.Store(id, struct{}{})
	}
	return s
}

func (s *State) user(userID int64) *userState {
	u, _ := s.users.LoadOrCompute(userID, func() *userState {
		return &userState{
			messages: newWindow(s.messageWindow),
			commands: newWindow(s.commandWindow),
		}
	})
	return u
}

// with runs f while holding the user's lock.
func (s *State) with(userID int64, f func(u *userState)) {
	u := s.user(userID)
	u.mu.Lock()
	defer u.mu.Unlock()
	f(u)
}

// peek runs f under the user's lock only if the user is already known.
func (s *State) peek(userID int64, f func(u *userState)) bool {
	u, ok := s.users.Load(userID)
	if !ok {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	f(u)
	return true
}

func (s *State) IsAdmin(userID int64) bool {
	_, ok := s.admins.Load(userID)
	return ok
}

func (s *State) AddAdmin(userID int64) bool {
	_, loaded := s.admins.LoadOrStore(userID, struct{}{})
	return !loaded
}

func (s *State) RemoveAdmin(userID int64) bool {
	_, loaded := s.admins.LoadAndDelete(userID)
	return loaded
}

// Admins returns the admin ids in ascending order.
func (s *State) Admins() []int64 {
	ids := make([]int64, 0, s.admins.Size())
	s.admins.Range(func(id int64, _ struct{}) bool {
		ids = append(ids, id)
		return true
	})
	slices.Sort(ids)
	return ids
}

func (s *State) Stats() Stats {
	st := Stats{Admins: s.admins.Size()}
	s.users.Range(func(_ int64, u *userState) bool {
		u.mu.Lock()
		if u.muted {
			st.Muted++
		}
		if u.banned {
			st.Banned++
		}
		if u.verified {
			st.Verified++
		}
		if u.pending != nil {
			st.Pending++
		}
		if u.warnings > 0 {
			st.Warned++
		}
		u.mu.Unlock()
		return true
	})
	return st
}
