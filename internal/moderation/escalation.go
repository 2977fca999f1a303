package moderation

import "time"

const DefaultMuteThreshold = 3

// EscalationPolicy owns warning counters and the muted and banned sets.
// A ban always outranks mute and verification; banning keeps the muted flag.
type EscalationPolicy struct {
	state         *State
	muteThreshold int
	decay         time.Duration
	now           func() time.Time
}

// NewEscalationPolicy creates the policy. A zero decay keeps warnings until reset.
func NewEscalationPolicy(state *State, muteThreshold int, decay time.Duration) *EscalationPolicy {
	if muteThreshold <= 0 {
		muteThreshold = DefaultMuteThreshold
	}
	return &EscalationPolicy{state: state, muteThreshold: muteThreshold, decay: decay, now: time.Now}
}

func (p *EscalationPolicy) MuteThreshold() int {
	return p.muteThreshold
}

func (p *EscalationPolicy) AddWarning(userID int64) int {
	now := p.now()
	var count int
	p.state.with(userID, func(u *userState) {
		if p.decay > 0 && u.warnings > 0 && now.Sub(u.lastWarning) > p.decay {
			u.warnings = 0
		}
		u.warnings++
		u.lastWarning = now
		count = u.warnings
	})
	return count
}

func (p *EscalationPolicy) ReachesMuteThreshold(count int) bool {
	return count >= p.muteThreshold
}

func (p *EscalationPolicy) Warnings(userID int64) int {
	var count int
	p.state.peek(userID, func(u *userState) { count = u.warnings })
	return count
}

func (p *EscalationPolicy) ResetWarnings(userID int64) {
	p.state.peek(userID, func(u *userState) {
		u.warnings = 0
		u.lastWarning = time.Time{}
	})
}

func (p *EscalationPolicy) Mute(userID int64) {
	p.state.with(userID, func(u *userState) { u.muted = true })
}

func (p *EscalationPolicy) Unmute(userID int64) {
	p.state.peek(userID, func(u *userState) { u.muted = false })
}

func (p *EscalationPolicy) Ban(userID int64) {
	p.state.with(userID, func(u *userState) { u.banned = true })
}

func (p *EscalationPolicy) Unban(userID int64) {
	p.state.peek(userID, func(u *userState) { u.banned = false })
}

func (p *EscalationPolicy) IsMuted(userID int64) bool {
	var muted bool
	p.state.peek(userID, func(u *userState) { muted = u.muted })
	return muted
}

func (p *EscalationPolicy) IsBanned(userID int64) bool {
	var banned bool
	p.state.peek(userID, func(u *userState) { banned = u.banned })
	return banned
}

// IsVerified reports the in-memory verified flag only.
func (p *EscalationPolicy) IsVerified(userID int64) bool {
	var verified bool
	p.state.peek(userID, func(u *userState) { verified = u.verified })
	return verified
}

func (p *EscalationPolicy) IsAdmin(userID int64) bool     { return p.state.IsAdmin(userID) }
func (p *EscalationPolicy) AddAdmin(userID int64) bool    { return p.state.AddAdmin(userID) }
func (p *EscalationPolicy) RemoveAdmin(userID int64) bool { return p.state.RemoveAdmin(userID) }
func (p *EscalationPolicy) Admins() []int64               { return p.state.Admins() }
func (p *EscalationPolicy) Stats() Stats                  { return p.state.Stats() }
