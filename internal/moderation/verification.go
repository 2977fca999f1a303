package moderation

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/hustlebot/internal/observability"
)

const (
	DefaultMaxAttempts = 3

	challengeMinOperand = 1
	challengeMaxOperand = 10
	challengeOptions    = 4

	callbackSeparator = ";"
)

// RandomSource yields integers in [0, n). *rand.Rand satisfies it.
type RandomSource interface {
	Intn(n int) int
}

type Challenge struct {
	ID       string
	UserID   int64
	A, B     int
	Question string
	// Options holds the answer buttons, the sum among three distractors.
	Options  [challengeOptions]int
	IssuedAt time.Time
}

// CallbackData encodes an answer button as userID;challengeID;answer.
func (c Challenge) CallbackData(answer int) string {
	return strings.Join([]string{
		strconv.FormatInt(c.UserID, 10), c.ID, strconv.Itoa(answer),
	}, callbackSeparator)
}

// challengeAnswer is a decoded answer button press.
type challengeAnswer struct {
	UserID      int64
	ChallengeID string
	Answer      string
}

// parseChallengeAnswer decodes callback data produced by Challenge.CallbackData.
func parseChallengeAnswer(data string) (challengeAnswer, bool) {
	parts := strings.Split(data, callbackSeparator)
	if len(parts) != 3 || parts[1] == "" {
		return challengeAnswer{}, false
	}
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return challengeAnswer{}, false
	}
	if _, err := strconv.Atoi(parts[2]); err != nil {
		return challengeAnswer{}, false
	}
	return challengeAnswer{UserID: userID, ChallengeID: parts[1], Answer: parts[2]}, true
}

type pendingChallenge struct {
	challenge Challenge
	answer    string
	attempts  int
}

type AnswerOutcome int

const (
	AnswerNoChallenge AnswerOutcome = iota
	AnswerCorrect
	AnswerIncorrect
	AnswerExhausted
)

func (o AnswerOutcome) String() string {
	switch o {
	case AnswerCorrect:
		return "correct"
	case AnswerIncorrect:
		return "incorrect"
	case AnswerExhausted:
		return "exhausted"
	default:
		return "no_challenge"
	}
}

type AnswerResult struct {
	Outcome   AnswerOutcome
	Remaining int
}

type VerificationOptions struct {
	MaxAttempts int
	// TTL expires pending challenges, zero keeps them until answered.
	TTL    time.Duration
	Random RandomSource
}

// VerificationManager runs the unverified -> pending -> verified|banned lifecycle.
type VerificationManager struct {
	state   *State
	store   Store
	journal *Journal

	maxAttempts int
	ttl         time.Duration

	rndMu sync.Mutex
	rnd   RandomSource
	now   func() time.Time
}

func NewVerificationManager(state *State, store Store, journal *Journal, opts VerificationOptions) *VerificationManager {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Random == nil {
		opts.Random = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &VerificationManager{
		state:       state,
		store:       store,
		journal:     journal,
		maxAttempts: opts.MaxAttempts,
		ttl:         opts.TTL,
		rnd:         opts.Random,
		now:         time.Now,
	}
}

func (v *VerificationManager) getLogEntry() *log.Entry {
	return log.WithField("object", "VerificationManager")
}

func (v *VerificationManager) operand() int {
	v.rndMu.Lock()
	defer v.rndMu.Unlock()
	return challengeMinOperand + v.rnd.Intn(challengeMaxOperand-challengeMinOperand+1)
}

// options places the sum at a random slot among its nearest positive neighbours.
func (v *VerificationManager) options(sum int) [challengeOptions]int {
	distractors := make([]int, 0, challengeOptions-1)
	for delta := 1; len(distractors) < challengeOptions-1; delta++ {
		if sum-delta > 0 {
			distractors = append(distractors, sum-delta)
		}
		if len(distractors) < challengeOptions-1 {
			distractors = append(distractors, sum+delta)
		}
	}
	v.rndMu.Lock()
	slot := v.rnd.Intn(challengeOptions)
	v.rndMu.Unlock()

	var res [challengeOptions]int
	for i := range res {
		switch {
		case i == slot:
			res[i] = sum
		case i < slot:
			res[i] = distractors[i]
		default:
			res[i] = distractors[i-1]
		}
	}
	return res
}

func (v *VerificationManager) expired(p *pendingChallenge, now time.Time) bool {
	return v.ttl > 0 && now.Sub(p.challenge.IssuedAt) > v.ttl
}

// IssueChallenge creates a pending challenge. An already pending challenge is returned
// together with ErrDuplicateChallenge and is never reissued.
func (v *VerificationManager) IssueChallenge(userID int64) (Challenge, error) {
	now := v.now()
	var (
		ch  Challenge
		err error
	)
	v.state.with(userID, func(u *userState) {
		if u.pending != nil && !v.expired(u.pending, now) {
			ch, err = u.pending.challenge, ErrDuplicateChallenge
			return
		}
		a, b := v.operand(), v.operand()
		ch = Challenge{
			ID:       uuid.New(),
			UserID:   userID,
			A:        a,
			B:        b,
			Question: fmt.Sprintf("What is %d + %d?", a, b),
			Options:  v.options(a + b),
			IssuedAt: now,
		}
		u.pending = &pendingChallenge{challenge: ch, answer: strconv.Itoa(a + b)}
	})
	if err == nil {
		observability.RecordChallenge("issued")
	}
	return ch, err
}

// Pending returns the user's live challenge.
func (v *VerificationManager) Pending(userID int64) (Challenge, bool) {
	now := v.now()
	var (
		ch Challenge
		ok bool
	)
	v.state.peek(userID, func(u *userState) {
		if u.pending == nil {
			return
		}
		if v.expired(u.pending, now) {
			u.pending = nil
			return
		}
		ch, ok = u.pending.challenge, true
	})
	return ch, ok
}

// SubmitAnswer checks the trimmed text against the pending challenge.
func (v *VerificationManager) SubmitAnswer(ctx context.Context, userID int64, text string) AnswerResult {
	entry := v.getLogEntry().WithField("method", "SubmitAnswer")
	now := v.now()
	answer := strings.TrimSpace(text)

	var (
		res         AnswerResult
		challengeID string
	)
	v.state.peek(userID, func(u *userState) {
		p := u.pending
		if p == nil || v.expired(p, now) {
			u.pending = nil
			return
		}
		challengeID = p.challenge.ID
		if answer == p.answer {
			u.pending = nil
			u.verified = true
			u.verifiedLoaded = true
			res.Outcome = AnswerCorrect
			return
		}
		p.attempts++
		if p.attempts >= v.maxAttempts {
			u.pending = nil
			u.banned = true
			res.Outcome = AnswerExhausted
			return
		}
		res.Outcome = AnswerIncorrect
		res.Remaining = v.maxAttempts - p.attempts
	})

	switch res.Outcome {
	case AnswerCorrect:
		if v.store != nil {
			if err := v.store.SetVerified(ctx, userID, true); err != nil {
				entry.WithFields(log.Fields{"user_id": userID, "error": err.Error()}).Warn("persist verified flag failed")
			}
		}
	case AnswerExhausted:
		if v.journal != nil {
			_ = v.journal.Record(ctx, userID, ActionChallengeFailed,
				fmt.Sprintf("verification attempts exhausted (challenge %s)", challengeID), 0)
		}
	case AnswerNoChallenge:
		return res
	}
	observability.RecordChallenge(res.Outcome.String())
	return res
}

// IsVerified consults memory first and the store once per process lifetime per user.
// Store errors count as unverified and are retried on the next call.
func (v *VerificationManager) IsVerified(ctx context.Context, userID int64) bool {
	var verified, loaded bool
	v.state.with(userID, func(u *userState) {
		verified, loaded = u.verified, u.verifiedLoaded
	})
	if verified || loaded || v.store == nil {
		return verified
	}

	persisted, err := v.store.IsVerified(ctx, userID)
	if err != nil {
		v.getLogEntry().WithFields(log.Fields{
			"method":  "IsVerified",
			"user_id": userID,
			"error":   err.Error(),
		}).Warn("load verified flag failed")
		return false
	}
	v.state.with(userID, func(u *userState) {
		u.verifiedLoaded = true
		if persisted {
			u.verified = true
		}
		verified = u.verified
	})
	return verified
}

// Verify force-verifies a user, used by admins.
func (v *VerificationManager) Verify(ctx context.Context, userID int64) error {
	v.state.with(userID, func(u *userState) {
		u.verified = true
		u.verifiedLoaded = true
		u.pending = nil
	})
	if v.store == nil {
		return nil
	}
	if err := v.store.SetVerified(ctx, userID, true); err != nil {
		return fmt.Errorf("%w: set verified: %w", ErrPersistenceWrite, err)
	}
	return nil
}
