package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/slotbook/slotbook/services/booking-service/internal/model"
	"github.com/slotbook/slotbook/services/booking-service/internal/storage"
)

// TopicUserCreated carries account creations from the identity service.
const TopicUserCreated = "identity.user.created.v1"

type userCreatedPayload struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserCreatedHandler mirrors provider accounts into the local read model.
// Events for plain user accounts are acknowledged without a write.
func UserCreatedHandler(logger *slog.Logger, store *storage.Store) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var payload userCreatedPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			return fmt.Errorf("decode user created event: %w", err)
		}
		if payload.Role != model.RoleProvider {
			return nil
		}
		if err := store.UpsertProvider(ctx, model.Provider{
			ID:        payload.UserID,
			Email:     payload.Email,
			CreatedAt: payload.CreatedAt,
		}); err != nil {
			return err
		}
		logger.Info("provider mirrored", "provider_id", payload.UserID)
		return nil
	}
}
