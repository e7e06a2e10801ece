package service

import "context"

// PushMessage is what a user's phones show for a challenge update or reminder.
// Data keys follow the payment metadata keys ("type", "challengeId").
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// PushResult counts one fan-out. StaleTokens were rejected as unregistered or
// malformed; their devices should be deactivated.
type PushResult struct {
	Delivered   int
	Failed      int
	StaleTokens []string
}

// PushSender delivers a message to registered device tokens.
type PushSender interface {
	Push(ctx context.Context, tokens []string, msg *PushMessage) (*PushResult, error)
}
