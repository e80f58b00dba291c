package loyalty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"goflare.io/loyalty/models"
	"goflare.io/loyalty/normalize"
)

type EventManager struct {
	natsConn *nats.Conn
	subject  string
	logger   *zap.Logger
}

func NewEventManager(natsConn *nats.Conn, subject string, logger *zap.Logger) *EventManager {
	return &EventManager{
		natsConn: natsConn,
		subject:  subject,
		logger:   logger,
	}
}

func newPhoneChangedEvent(userID, phone string) *models.PhoneChangedEvent {
	return &models.PhoneChangedEvent{
		EventID:    uuid.NewString(),
		UserID:     userID,
		Phone:      phone,
		OccurredAt: time.Now().UTC(),
	}
}

func (em *EventManager) PublishPhoneChanged(phoneChanged *models.PhoneChangedEvent) error {
	data, err := json.Marshal(phoneChanged)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return em.natsConn.Publish(em.subject, data)
}

func (em *EventManager) SubscribeToEvents(d *Dispatcher) (*nats.Subscription, error) {
	return em.natsConn.Subscribe(em.subject, func(msg *nats.Msg) {
		phoneChanged, err := decodePhoneChanged(msg.Data)
		if err != nil {
			em.logger.Error("Failed to unmarshal event", zap.Error(err))
			return
		}

		if err = d.Submit(context.Background(), phoneChanged); err != nil {
			em.logger.Error("Failed to submit event",
				zap.String("event_id", phoneChanged.EventID),
				zap.String("owner_id", phoneChanged.UserID),
				zap.Error(err))
		}
	})
}

// decodePhoneChanged rejects events without a user and stamps those missing
// an id or time.
func decodePhoneChanged(data []byte) (*models.PhoneChangedEvent, error) {
	phoneChanged := new(models.PhoneChangedEvent)
	if err := json.Unmarshal(data, phoneChanged); err != nil {
		return nil, err
	}

	phoneChanged.UserID = normalize.ID(phoneChanged.UserID)
	if phoneChanged.UserID == "" {
		return nil, errors.New("phone change event without user_id")
	}
	if phoneChanged.EventID == "" {
		phoneChanged.EventID = uuid.NewString()
	}
	if phoneChanged.OccurredAt.IsZero() {
		phoneChanged.OccurredAt = time.Now().UTC()
	}

	return phoneChanged, nil
}
