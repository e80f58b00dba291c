package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"goflare.io/loyalty/docstore"
	"goflare.io/loyalty/models"
)

const CollectionWebhookEvents = "webhook_events"

var _ Repository = (*repository)(nil)

type Repository interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
	// GetByID returns nil when the event was never recorded.
	GetByID(ctx context.Context, id string) (*models.WebhookEvent, error)
	MarkAsProcessed(ctx context.Context, id string) error
}

type repository struct {
	store  docstore.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewRepository(store docstore.Store, logger *zap.Logger) Repository {
	return &repository{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (r *repository) Create(ctx context.Context, event *models.WebhookEvent) error {
	fields, err := docstore.ToFields(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	if err = r.store.SetMerge(ctx, CollectionWebhookEvents, event.ID, fields); err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*models.WebhookEvent, error) {
	doc, err := r.store.Get(ctx, CollectionWebhookEvents, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	event := new(models.WebhookEvent)
	if err = doc.Decode(event); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	return event, nil
}

func (r *repository) MarkAsProcessed(ctx context.Context, id string) error {
	err := r.store.UpdateFields(ctx, CollectionWebhookEvents, id, map[string]any{
		"processed": true,
		"updatedAt": r.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return nil
}
