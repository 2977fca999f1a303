package reg

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultSize = 4096

type (
	// MessageKey identifies a message within a chat.
	MessageKey struct {
		ChatID    int64
		MessageID int
	}

	// Decision is the moderation verdict remembered for a message.
	Decision struct {
		UserID   int64
		Decision string
		Reason   string
		At       time.Time
	}

	// Registry remembers the latest moderation decisions, evicting the least recent.
	Registry struct {
		decisions *lru.Cache[MessageKey, Decision]
	}
)

func New(size int) (*Registry, error) {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[MessageKey, Decision](size)
	if err != nil {
		return nil, err
	}
	return &Registry{decisions: cache}, nil
}

func (r *Registry) Remember(chatID int64, messageID int, d Decision) {
	if messageID == 0 {
		return
	}
	r.decisions.Add(MessageKey{ChatID: chatID, MessageID: messageID}, d)
}

func (r *Registry) Lookup(chatID int64, messageID int) (Decision, bool) {
	return r.decisions.Get(MessageKey{ChatID: chatID, MessageID: messageID})
}

func (r *Registry) Len() int {
	return r.decisions.Len()
}
