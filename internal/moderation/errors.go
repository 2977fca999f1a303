package moderation

import "errors"

var (
	ErrMalformedInput       = errors.New("malformed input")
	ErrDuplicateChallenge   = errors.New("challenge already pending")
	ErrNotificationDelivery = errors.New("notification delivery failed")
	ErrPersistenceWrite     = errors.New("persistence write failed")
	ErrUnauthorized         = errors.New("unauthorized")
)
