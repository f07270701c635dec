package events

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/movemobility/dispatch/pkg/logger"
)

// TokenStore looks up push targets for a user.
type TokenStore interface {
	TokensForUser(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// FirebaseSink delivers push notifications through Firebase Cloud Messaging.
type FirebaseSink struct {
	client *messaging.Client
	tokens TokenStore
}

// NewFirebaseSink initializes FCM with the given service account credentials.
func NewFirebaseSink(credentialsPath string, tokens TokenStore) (*FirebaseSink, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}

	return &FirebaseSink{client: client, tokens: tokens}, nil
}

// Send pushes a notification to every registered device of the user. Users
// without device tokens are silently skipped.
func (f *FirebaseSink) Send(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error {
	tokens, err := f.tokens.TokensForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to look up device tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	response, err := f.client.SendEachForMulticast(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	if response.FailureCount > 0 {
		logger.Debug("some push deliveries failed",
			zap.String("user_id", userID.String()),
			zap.Int("failures", response.FailureCount),
			zap.Int("successes", response.SuccessCount))
	}
	return nil
}
