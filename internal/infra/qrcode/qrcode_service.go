package qrcode

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"

	"showup/internal/domain/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"
)

const (
	inviteType       = "guarantor_invite"
	invitePathPrefix = "/guarantor/invite/"
)

type qrcodeService struct {
	size                 int
	errorCorrectionLevel qrcode.RecoveryLevel
	baseURL              string
}

// InviteData is the payload encoded into a guarantor invite QR code.
type InviteData struct {
	ChallengeID string `json:"challenge_id"`
	Type        string `json:"type"`
	URL         string `json:"url"`
}

// NewQRCodeService creates a new QR code service instance
func NewQRCodeService(size int, errorCorrectionLevel, baseURL string) service.QRCodeService {
	var level qrcode.RecoveryLevel
	switch errorCorrectionLevel {
	case "L":
		level = qrcode.Low
	case "M":
		level = qrcode.Medium
	case "Q":
		level = qrcode.High
	case "H":
		level = qrcode.Highest
	default:
		level = qrcode.Medium
	}

	return &qrcodeService{
		size:                 size,
		errorCorrectionLevel: level,
		baseURL:              strings.TrimRight(baseURL, "/"),
	}
}

func (s *qrcodeService) InviteURL(challengeID uuid.UUID) string {
	return s.baseURL + invitePathPrefix + challengeID.String()
}

// GenerateGuarantorInviteQR renders the invite payload as a PNG.
func (s *qrcodeService) GenerateGuarantorInviteQR(challengeID uuid.UUID) ([]byte, error) {
	data := InviteData{
		ChallengeID: challengeID.String(),
		Type:        inviteType,
		URL:         s.InviteURL(challengeID),
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal QR code data")
	}

	qrCode, err := qrcode.New(string(jsonData), s.errorCorrectionLevel)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create QR code")
	}

	pngBytes, err := qrCode.PNG(s.size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate PNG")
	}

	return pngBytes, nil
}

// ParseGuarantorInvite accepts either the JSON payload or a bare invite link,
// since phone cameras often hand over only the URL.
func (s *qrcodeService) ParseGuarantorInvite(qrData string) (uuid.UUID, error) {
	qrData = strings.TrimSpace(qrData)

	if !strings.HasPrefix(qrData, "{") {
		return parseInviteURL(qrData)
	}

	var data InviteData
	if err := json.Unmarshal([]byte(qrData), &data); err != nil {
		return uuid.Nil, errors.Wrap(err, "failed to unmarshal QR code data")
	}
	if data.Type != inviteType {
		return uuid.Nil, errors.Errorf("invalid QR code type: %s", data.Type)
	}

	challengeID, err := uuid.Parse(data.ChallengeID)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "failed to parse challenge ID")
	}

	return challengeID, nil
}

func parseInviteURL(raw string) (uuid.UUID, error) {
	u, err := url.Parse(raw)
	if err != nil || !strings.Contains(u.Path, invitePathPrefix) {
		return uuid.Nil, errors.New("not a guarantor invite link")
	}

	challengeID, err := uuid.Parse(path.Base(u.Path))
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "failed to parse challenge ID")
	}

	return challengeID, nil
}
