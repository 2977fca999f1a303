package moderation

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/iamwavecut/hustlebot/internal/i18n"
	"github.com/iamwavecut/hustlebot/internal/observability"
)

const tracerName = "github.com/iamwavecut/hustlebot/internal/moderation"

// Event is one inbound user interaction.
type Event struct {
	UserID     int64
	ChatID     int64
	MessageID  int
	Text       string
	IsCommand  bool
	HasPhoto   bool
	IsCallback bool
	Lang       string
}

type Decision int

const (
	DecisionAllow Decision = iota
	// DecisionSuppress blocks the event and keeps the message.
	DecisionSuppress
	DecisionDeleteWarn
	DecisionDeleteEscalate
)

func (d Decision) String() string {
	switch d {
	case DecisionSuppress:
		return "suppress"
	case DecisionDeleteWarn:
		return "delete_warn"
	case DecisionDeleteEscalate:
		return "delete_escalate"
	default:
		return "allow"
	}
}

type IntentKind int

const (
	IntentDeleteMessage IntentKind = iota
	IntentSendText
	IntentSendTextWithKeyboard
)

type Button struct {
	Text string
	Data string
}

// Intent is a side effect the transport layer executes on behalf of the gate.
type Intent struct {
	Kind      IntentKind
	ChatID    int64
	MessageID int
	Text      string
	Buttons   [][]Button
}

type Outcome struct {
	Decision Decision
	Reason   string
	Intents  []Intent
}

// Blocked reports whether later handlers must not see the event.
func (o Outcome) Blocked() bool {
	return o.Decision != DecisionAllow
}

const (
	ReasonAdmin             = "admin"
	ReasonBanned            = "banned"
	ReasonMuted             = "muted"
	ReasonChallengeIssued   = "challenge_issued"
	ReasonChallengePending  = "challenge_pending"
	ReasonVerified          = "verified"
	ReasonWrongAnswer       = "wrong_answer"
	ReasonChallengeFailed   = "challenge_failed"
	ReasonFlood             = "flood"
	ReasonRepetition        = "repetition"
	ReasonFloodMuted        = "flood_muted"
	ReasonKeywordSpam       = "keyword_spam"
	ReasonSuspiciousPattern = "suspicious_pattern"
	ReasonClean             = "clean"
)

type GateDeps struct {
	Escalation   *EscalationPolicy
	Verification *VerificationManager
	Rates        *RateTracker
	Classifier   *SpamClassifier
	Journal      *Journal
	Notifier     Notifier
	// AdminLanguage is used for admin notices.
	AdminLanguage string
}

// Gate is the single entry point deciding whether an event may proceed.
type Gate struct {
	escalation   *EscalationPolicy
	verification *VerificationManager
	rates        *RateTracker
	classifier   *SpamClassifier
	journal      *Journal
	notifier     Notifier
	adminLang    string
	tracer       trace.Tracer
}

func NewGate(deps GateDeps) *Gate {
	return &Gate{
		escalation:   deps.Escalation,
		verification: deps.Verification,
		rates:        deps.Rates,
		classifier:   deps.Classifier,
		journal:      deps.Journal,
		notifier:     deps.Notifier,
		adminLang:    deps.AdminLanguage,
		tracer:       otel.Tracer(tracerName),
	}
}

// Evaluate runs the moderation pipeline, stopping at the first blocking step.
func (g *Gate) Evaluate(ctx context.Context, ev Event) Outcome {
	done := observability.StartGateTimer()
	defer done()

	ctx, span := g.tracer.Start(ctx, "moderation.Evaluate", trace.WithAttributes(
		attribute.Int64("user_id", ev.UserID),
		attribute.Int64("chat_id", ev.ChatID),
		attribute.Bool("command", ev.IsCommand),
		attribute.Bool("callback", ev.IsCallback),
	))
	defer span.End()

	out := g.evaluate(ctx, ev)

	span.SetAttributes(
		attribute.String("decision", out.Decision.String()),
		attribute.String("reason", out.Reason),
	)
	observability.RecordDecision(out.Decision.String(), out.Reason)
	return out
}

func (g *Gate) evaluate(ctx context.Context, ev Event) Outcome {
	if g.escalation.IsAdmin(ev.UserID) {
		return Outcome{Decision: DecisionAllow, Reason: ReasonAdmin}
	}
	if g.escalation.IsBanned(ev.UserID) {
		return g.suppress(ev, ReasonBanned, i18n.Get("⛔ You are banned from using this bot.", ev.Lang))
	}
	if g.escalation.IsMuted(ev.UserID) {
		return g.suppress(ev, ReasonMuted, i18n.Get("🔇 You are muted. Please wait for a moderator.", ev.Lang))
	}

	if !g.verification.IsVerified(ctx, ev.UserID) {
		return g.verify(ctx, ev)
	}

	flood := g.rates.RecordAndCheckFlood(ev.UserID, ev.IsCommand || ev.IsCallback, ev.Text)
	if flood.Flooded {
		return g.escalate(ctx, ev, flood)
	}

	if ev.IsCallback || ev.Text == "" {
		return Outcome{Decision: DecisionAllow, Reason: ReasonClean}
	}

	if verdict := g.classifier.Classify(ev.Text); verdict.IsSpam {
		reason := fmt.Sprintf("keyword:%s", verdict.Category)
		_ = g.journal.Record(ctx, ev.UserID, ActionDelete, reason, 0)
		g.notify(fmt.Sprintf(
			i18n.Get("🚫 Spam from user %d removed (category: %s, trigger: %q).", g.adminLang),
			ev.UserID, verdict.Category, verdict.Trigger,
		))
		out := Outcome{Decision: DecisionDeleteWarn, Reason: ReasonKeywordSpam}
		out.Intents = append(g.deleteIntent(ev), g.text(ev, fmt.Sprintf(
			i18n.Get("🚫 Message removed: spam detected (%s).", ev.Lang), verdict.Category,
		)))
		return out
	}

	if pattern, ok := g.classifier.MatchPattern(ev.Text); ok {
		g.notify(fmt.Sprintf(
			i18n.Get("⚠️ Suspicious message from user %d (pattern %s): %s", g.adminLang),
			ev.UserID, pattern, ev.Text,
		))
		return Outcome{
			Decision: DecisionAllow,
			Reason:   ReasonSuspiciousPattern,
			Intents: []Intent{g.text(ev,
				i18n.Get("⚠️ Your message looks suspicious. Please avoid sharing links and promotions.", ev.Lang),
			)},
		}
	}

	return Outcome{Decision: DecisionAllow, Reason: ReasonClean}
}

func (g *Gate) verify(ctx context.Context, ev Event) Outcome {
	pending, ok := g.verification.Pending(ev.UserID)
	if !ok {
		ch, err := g.verification.IssueChallenge(ev.UserID)
		if err != nil && !errors.Is(err, ErrDuplicateChallenge) {
			return g.suppress(ev, ReasonChallengePending, "")
		}
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("challenge_id", ch.ID))
		if errors.Is(err, ErrDuplicateChallenge) {
			return g.reminder(ev, ch)
		}
		return g.challenge(ev, ch, ReasonChallengeIssued, fmt.Sprintf(
			i18n.Get("👋 Welcome! Please verify you are human.\n\n%s\n\nTap the right answer or reply with it.", ev.Lang),
			g.question(ch, ev.Lang),
		))
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("challenge_id", pending.ID))

	answer := ev.Text
	switch {
	case ev.IsCallback:
		pressed, ok := parseChallengeAnswer(ev.Text)
		if !ok || pressed.UserID != ev.UserID || pressed.ChallengeID != pending.ID {
			return g.reminder(ev, pending)
		}
		answer = pressed.Answer
	case ev.IsCommand || ev.Text == "":
		return g.reminder(ev, pending)
	}

	res := g.verification.SubmitAnswer(ctx, ev.UserID, answer)
	switch res.Outcome {
	case AnswerCorrect:
		return g.suppress(ev, ReasonVerified, i18n.Get("✅ Verification passed! Welcome aboard.", ev.Lang))
	case AnswerIncorrect:
		return g.suppress(ev, ReasonWrongAnswer, fmt.Sprintf(
			i18n.Get("❌ Wrong answer. Attempts left: %d", ev.Lang), res.Remaining,
		))
	case AnswerExhausted:
		g.notify(fmt.Sprintf(i18n.Get("⛔ User %d banned after failing verification.", g.adminLang), ev.UserID))
		return g.suppress(ev, ReasonChallengeFailed, i18n.Get("⛔ Verification failed. You have been banned.", ev.Lang))
	default:
		// Challenge vanished between the check and the answer, start over.
		return g.verify(ctx, ev)
	}
}

func (g *Gate) escalate(ctx context.Context, ev Event, flood FloodResult) Outcome {
	reason := ReasonFlood
	if flood.Repetition {
		reason = ReasonRepetition
	}
	warnings := g.escalation.AddWarning(ev.UserID)

	if g.escalation.ReachesMuteThreshold(warnings) {
		g.escalation.Mute(ev.UserID)
		_ = g.journal.Record(ctx, ev.UserID, ActionMute, reason, 0)
		g.notify(fmt.Sprintf(
			i18n.Get("🔇 User %d muted for flooding (%d warnings).", g.adminLang), ev.UserID, warnings,
		))
		out := Outcome{Decision: DecisionDeleteEscalate, Reason: ReasonFloodMuted}
		out.Intents = append(g.deleteIntent(ev), g.text(ev, i18n.Get("🔇 You have been muted for flooding.", ev.Lang)))
		return out
	}

	out := Outcome{Decision: DecisionDeleteWarn, Reason: reason}
	out.Intents = append(g.deleteIntent(ev), g.text(ev, fmt.Sprintf(
		i18n.Get("⚠️ Warning %d/%d: you are sending messages too fast. Slow down!", ev.Lang),
		warnings, g.escalation.MuteThreshold(),
	)))
	return out
}

func (g *Gate) question(ch Challenge, lang string) string {
	return fmt.Sprintf(i18n.Get("What is %d + %d?", lang), ch.A, ch.B)
}

func (g *Gate) reminder(ev Event, ch Challenge) Outcome {
	return g.challenge(ev, ch, ReasonChallengePending, fmt.Sprintf(
		i18n.Get("⏳ Please answer the verification question first: %s", ev.Lang), g.question(ch, ev.Lang),
	))
}

// challenge suppresses the event and sends the question with one button per option.
func (g *Gate) challenge(ev Event, ch Challenge, reason, text string) Outcome {
	row := make([]Button, 0, len(ch.Options))
	for _, option := range ch.Options {
		row = append(row, Button{Text: strconv.Itoa(option), Data: ch.CallbackData(option)})
	}
	return Outcome{
		Decision: DecisionSuppress,
		Reason:   reason,
		Intents: []Intent{{
			Kind:    IntentSendTextWithKeyboard,
			ChatID:  ev.ChatID,
			Text:    text,
			Buttons: [][]Button{row},
		}},
	}
}

func (g *Gate) suppress(ev Event, reason, text string) Outcome {
	out := Outcome{Decision: DecisionSuppress, Reason: reason}
	if text != "" {
		out.Intents = []Intent{g.text(ev, text)}
	}
	return out
}

func (g *Gate) text(ev Event, text string) Intent {
	return Intent{Kind: IntentSendText, ChatID: ev.ChatID, Text: text}
}

// deleteIntent is empty for callbacks, they carry no message of the user's own.
func (g *Gate) deleteIntent(ev Event) []Intent {
	if ev.IsCallback || ev.MessageID == 0 {
		return nil
	}
	return []Intent{{Kind: IntentDeleteMessage, ChatID: ev.ChatID, MessageID: ev.MessageID}}
}

func (g *Gate) notify(text string) {
	if g.notifier == nil {
		return
	}
	g.notifier.Notify(text)
}
