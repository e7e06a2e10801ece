package service

import (
	"github.com/google/uuid"
)

// QRCodeService generates and parses guarantor invite codes.
type QRCodeService interface {
	// InviteURL returns the link a guarantor opens to join a challenge.
	InviteURL(challengeID uuid.UUID) string

	// GenerateGuarantorInviteQR renders the invite link as a PNG.
	GenerateGuarantorInviteQR(challengeID uuid.UUID) ([]byte, error)

	// ParseGuarantorInvite extracts the challenge ID from scanned invite data.
	ParseGuarantorInvite(qrData string) (uuid.UUID, error)
}
