package notification

import (
	"context"
	"log/slog"

	"showup/config"
	"showup/internal/domain/service"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// maxMulticastTokens is the FCM limit per multicast request.
const maxMulticastTokens = 500

type firebaseService struct {
	client *messaging.Client
}

// NewPushSender returns the Firebase sender, or a logging no-op when
// Firebase is not configured.
func NewPushSender(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.PushSender, error) {
	if cfg.Firebase == nil || cfg.Firebase.CredentialsPath == "" {
		logger.Info("Firebase not configured, push notifications are logged only")

		return &noopSender{logger: logger}, nil
	}

	return NewFirebaseService(ctx, cfg.Firebase)
}

// NewFirebaseService signs in with the service account at cfg.CredentialsPath.
func NewFirebaseService(ctx context.Context, cfg *config.FirebaseConfig) (service.PushSender, error) {
	var appConfig *firebase.Config
	if cfg.ProjectID != "" {
		appConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, appConfig, option.WithCredentialsFile(cfg.CredentialsPath))
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize Firebase app")
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get messaging client")
	}

	return &firebaseService{
		client: client,
	}, nil
}

// Push fans out in chunks of the FCM multicast limit.
func (s *firebaseService) Push(ctx context.Context, tokens []string, msg *service.PushMessage) (*service.PushResult, error) {
	result := &service.PushResult{StaleTokens: make([]string, 0)}

	for start := 0; start < len(tokens); start += maxMulticastTokens {
		chunk := tokens[start:min(start+maxMulticastTokens, len(tokens))]

		response, err := s.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens: chunk,
			Notification: &messaging.Notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
			Data: msg.Data,
		})
		if err != nil {
			return result, errors.Wrap(err, "failed to send multicast notification")
		}

		result.Delivered += response.SuccessCount
		result.Failed += response.FailureCount

		for idx, sendResponse := range response.Responses {
			if sendResponse.Error == nil {
				continue
			}
			if messaging.IsInvalidArgument(sendResponse.Error) || messaging.IsUnregistered(sendResponse.Error) {
				result.StaleTokens = append(result.StaleTokens, chunk[idx])
			}
		}
	}

	return result, nil
}

// noopSender stands in for Firebase in local development.
type noopSender struct {
	logger *slog.Logger
}

func (s *noopSender) Push(ctx context.Context, tokens []string, msg *service.PushMessage) (*service.PushResult, error) {
	s.logger.DebugContext(ctx, "Push skipped, Firebase not configured",
		slog.String("title", msg.Title),
		slog.String("type", msg.Data["type"]),
		slog.Int("devices", len(tokens)),
	)

	return &service.PushResult{Delivered: len(tokens), StaleTokens: []string{}}, nil
}
