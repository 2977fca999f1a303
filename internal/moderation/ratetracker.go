package moderation

import (
	"hash/fnv"
	"strings"
	"time"
)

const (
	floodInterval      = time.Minute
	repetitionLookback = 10

	DefaultMessagesPerMinute = 10
	DefaultCommandsPerMinute = 5
	DefaultSameContentLimit  = 3
)

type RateLimits struct {
	MessagesPerMinute int
	CommandsPerMinute int
	SameContentLimit  int
	// RepetitionCheck enables identical content detection for plain messages.
	RepetitionCheck bool
}

func DefaultRateLimits() RateLimits {
	return RateLimits{
		MessagesPerMinute: DefaultMessagesPerMinute,
		CommandsPerMinute: DefaultCommandsPerMinute,
		SameContentLimit:  DefaultSameContentLimit,
		RepetitionCheck:   true,
	}
}

type FloodResult struct {
	Flooded    bool
	Repetition bool
	// Count is the number of events in the trailing minute, the current one included.
	Count int
}

type RateTracker struct {
	state  *State
	limits RateLimits
	now    func() time.Time
}

func NewRateTracker(state *State, limits RateLimits) *RateTracker {
	if limits.MessagesPerMinute <= 0 {
		limits.MessagesPerMinute = DefaultMessagesPerMinute
	}
	if limits.CommandsPerMinute <= 0 {
		limits.CommandsPerMinute = DefaultCommandsPerMinute
	}
	if limits.SameContentLimit <= 0 {
		limits.SameContentLimit = DefaultSameContentLimit
	}
	return &RateTracker{state: state, limits: limits, now: time.Now}
}

// RecordAndCheckFlood appends the event to the user's window and reports whether the user
// is flooding. Exactly the threshold is still allowed.
func (t *RateTracker) RecordAndCheckFlood(userID int64, isCommand bool, text string) FloodResult {
	now := t.now()
	since := now.Add(-floodInterval)
	fp := Fingerprint(text)

	var res FloodResult
	t.state.with(userID, func(u *userState) {
		w, limit := u.messages, t.limits.MessagesPerMinute
		if isCommand {
			w, limit = u.commands, t.limits.CommandsPerMinute
		}
		w.push(windowEntry{at: now, fingerprint: fp})

		res.Count = w.countSince(since)
		res.Flooded = res.Count > limit

		if !isCommand && t.limits.RepetitionCheck && fp != 0 {
			if w.countFingerprint(fp, repetitionLookback, since) >= t.limits.SameContentLimit {
				res.Repetition = true
				res.Flooded = true
			}
		}
	})
	return res
}

// Fingerprint is the FNV-1a hash of the lower-cased, whitespace-collapsed text.
// Blank text yields 0.
func Fingerprint(text string) uint64 {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if normalized == "" {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(normalized))
	return h.Sum64()
}
