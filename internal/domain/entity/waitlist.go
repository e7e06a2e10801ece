package entity

import (
	"time"

	"github.com/google/uuid"
)

// WaitlistEntry is a pre-launch signup.
type WaitlistEntry struct {
	ID        uuid.UUID
	Email     string
	Name      string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}
