package repository

import (
	"context"

	"showup/internal/domain/entity"

	"github.com/pkg/errors"
)

// ErrWaitlistDuplicate is returned when the email is already on the waitlist.
var ErrWaitlistDuplicate = errors.New("email already on waitlist")

// WaitlistRepository persists waitlist signups.
type WaitlistRepository interface {
	Create(ctx context.Context, entry *entity.WaitlistEntry) error
}
