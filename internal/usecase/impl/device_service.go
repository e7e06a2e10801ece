package impl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	deliverycontext "showup/internal/delivery/context"
	"showup/internal/domain/entity"
	domainerrors "showup/internal/domain/errors"
	"showup/internal/domain/repository"
	"showup/internal/domain/service"
	"showup/internal/usecase"

	"github.com/google/uuid"
)

type deviceService struct {
	deviceRepo repository.DeviceRepository
	pusher     service.PushSender
	logger     *slog.Logger
}

// NewDeviceService creates a new device service instance
func NewDeviceService(deviceRepo repository.DeviceRepository, pusher service.PushSender, logger *slog.Logger) usecase.DeviceUsecase {
	return &deviceService{
		deviceRepo: deviceRepo,
		pusher:     pusher,
		logger:     logger,
	}
}

func (s *deviceService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, s.logger)
}

func validateDeviceInfo(info *usecase.DeviceInfo) error {
	if info == nil || strings.TrimSpace(info.FCMToken) == "" || strings.TrimSpace(info.DeviceID) == "" {
		return domainerrors.NewValidationError("fcm_token and device_id are required")
	}
	switch info.Platform {
	case entity.PlatformIOS, entity.PlatformAndroid, entity.PlatformWeb:
		return nil
	}

	return domainerrors.NewValidationError("platform must be one of ios, android, web")
}

// RegisterDevice registers a new device or updates an existing one
func (s *deviceService) RegisterDevice(ctx context.Context, userID uuid.UUID, deviceInfo *usecase.DeviceInfo) (*entity.UserDevice, error) {
	if err := validateDeviceInfo(deviceInfo); err != nil {
		return nil, err
	}

	existing, err := s.deviceRepo.FindDeviceByUserAndDeviceID(ctx, userID, deviceInfo.DeviceID)
	if err != nil && !errors.Is(err, repository.ErrDeviceNotFound) {
		return nil, fmt.Errorf("failed to find device: %w", err)
	}

	if existing != nil {
		// Same client device: refresh the token and reactivate it
		if err := s.deviceRepo.UpdateFCMToken(ctx, existing.ID, deviceInfo.FCMToken); err != nil {
			return nil, fmt.Errorf("failed to update FCM token: %w", err)
		}
		updatedDevice, err := s.deviceRepo.FindDeviceByID(ctx, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to find device by ID: %w", err)
		}

		return updatedDevice, nil
	}

	now := time.Now()
	device := &entity.UserDevice{
		ID:        uuid.New(),
		UserID:    userID,
		FCMToken:  deviceInfo.FCMToken,
		DeviceID:  deviceInfo.DeviceID,
		Platform:  deviceInfo.Platform,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.deviceRepo.CreateDevice(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	s.log(ctx).Info("Device registered", slog.Any("user_id", userID), slog.String("platform", device.Platform))

	return device, nil
}

// GetUserDevices retrieves all active devices for a user
func (s *deviceService) GetUserDevices(ctx context.Context, userID uuid.UUID) ([]*entity.UserDevice, error) {
	devices, err := s.deviceRepo.FindActiveDevicesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find active devices by user: %w", err)
	}

	return devices, nil
}

// DeactivateDevice deactivates a device (soft delete)
func (s *deviceService) DeactivateDevice(ctx context.Context, userID, deviceID uuid.UUID) error {
	device, err := s.deviceRepo.FindDeviceByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return domainerrors.ErrDeviceNotFound
		}

		return fmt.Errorf("failed to find device by ID: %w", err)
	}

	// Someone else's device is reported as missing
	if device.UserID != userID {
		return domainerrors.ErrDeviceNotFound
	}

	if err := s.deviceRepo.DeactivateDevice(ctx, deviceID); err != nil {
		return fmt.Errorf("failed to deactivate device: %w", err)
	}

	return nil
}

// NotifyUser pushes to every active device of the user.
func (s *deviceService) NotifyUser(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error {
	devices, err := s.deviceRepo.FindActiveDevicesByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find active devices by user: %w", err)
	}
	if len(devices) == 0 {
		s.log(ctx).Debug("No active devices to notify", slog.Any("user_id", userID))

		return nil
	}

	tokens := make([]string, 0, len(devices))
	for _, device := range devices {
		tokens = append(tokens, device.FCMToken)
	}

	result, err := s.pusher.Push(ctx, tokens, &service.PushMessage{Title: title, Body: body, Data: data})
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	for _, token := range result.StaleTokens {
		if err := s.deviceRepo.DeactivateByToken(ctx, token); err != nil {
			s.log(ctx).Warn("Failed to deactivate unregistered token", slog.Any("error", err))
		}
	}

	s.log(ctx).Info("User notified",
		slog.Any("user_id", userID),
		slog.Int("delivered", result.Delivered),
		slog.Int("failed", result.Failed),
		slog.Int("stale_tokens", len(result.StaleTokens)),
	)

	return nil
}
