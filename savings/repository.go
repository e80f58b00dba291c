package savings

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"goflare.io/loyalty/docstore"
	"goflare.io/loyalty/models"
)

const (
	CollectionSavingsEvents = "savings_events"
	CollectionRedemptions   = "redemptions"

	FieldOwnerID    = "ownerId"
	FieldDate       = "date"
	FieldRedeemedAt = "redeemedAt"
)

var _ Repository = (*repository)(nil)

// Repository reads savings sources by owner. A zero since means all time.
type Repository interface {
	ListEvents(ctx context.Context, ownerID string, since time.Time) ([]models.SavingsEvent, error)
	ListRedemptions(ctx context.Context, ownerID string, since time.Time) ([]models.RedemptionRecord, error)
}

type repository struct {
	store  docstore.Store
	logger *zap.Logger
}

func NewRepository(store docstore.Store, logger *zap.Logger) Repository {
	return &repository{
		store:  store,
		logger: logger,
	}
}

func ownerQuery(ownerID, dateField string, since time.Time) docstore.Query {
	filters := []docstore.Filter{docstore.Eq(FieldOwnerID, ownerID)}
	if !since.IsZero() {
		filters = append(filters, docstore.Gte(dateField, since.UTC()))
	}
	return docstore.Where(filters...).OrderTime(dateField, true)
}

func (r *repository) ListEvents(ctx context.Context, ownerID string, since time.Time) ([]models.SavingsEvent, error) {

	docs, err := r.store.Query(ctx, CollectionSavingsEvents, ownerQuery(ownerID, FieldDate, since))
	if err != nil {
		return nil, fmt.Errorf("failed to list savings events: %w", err)
	}

	events := make([]models.SavingsEvent, 0, len(docs))
	for _, doc := range docs {
		var event models.SavingsEvent
		if err = doc.Decode(&event); err != nil {
			r.logger.Warn("skipping undecodable savings event", zap.String("event_id", doc.ID), zap.Error(err))
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

func (r *repository) ListRedemptions(ctx context.Context, ownerID string, since time.Time) ([]models.RedemptionRecord, error) {

	docs, err := r.store.Query(ctx, CollectionRedemptions, ownerQuery(ownerID, FieldRedeemedAt, since))
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}

	redemptions := make([]models.RedemptionRecord, 0, len(docs))
	for _, doc := range docs {
		var redemption models.RedemptionRecord
		if err = doc.Decode(&redemption); err != nil {
			r.logger.Warn("skipping undecodable redemption", zap.String("redemption_id", doc.ID), zap.Error(err))
			continue
		}
		redemptions = append(redemptions, redemption)
	}

	return redemptions, nil
}
