package usecase

import (
	"context"
)

// JoinWaitlistInput is a pre-launch signup.
type JoinWaitlistInput struct {
	Email     string
	Name      string
	IPAddress string
	UserAgent string
}

// WaitlistUsecase records waitlist signups.
type WaitlistUsecase interface {
	// Join stores the signup. Joining twice with the same email succeeds.
	Join(ctx context.Context, input *JoinWaitlistInput) error
}
