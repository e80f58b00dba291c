package link

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"goflare.io/loyalty/docstore"
	"goflare.io/loyalty/identity"
)

var _ Repository = (*repository)(nil)

// Repository writes the link field of customer records. Every write is a
// targeted field update; the rest of the record is never replaced.
type Repository interface {
	Exists(ctx context.Context, customerID string) (bool, error)
	SetLink(ctx context.Context, customerID, userID string) error
	// ClearLink removes userID's link from customerID and records the delink.
	ClearLink(ctx context.Context, customerID, userID string) error
	// MoveLink clears the link on fromID and sets it on toID in one batch.
	MoveLink(ctx context.Context, fromID, toID, userID string) error
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

func (r *repository) Exists(ctx context.Context, customerID string) (bool, error) {
	exists, err := r.store.Exists(ctx, identity.CollectionCustomers, customerID)
	if err != nil {
		return false, fmt.Errorf("failed to check customer %s: %w", customerID, err)
	}
	return exists, nil
}

func (r *repository) SetLink(ctx context.Context, customerID, userID string) error {
	return r.store.UpdateFields(ctx, identity.CollectionCustomers, customerID, r.linkFields(userID))
}

func (r *repository) ClearLink(ctx context.Context, customerID, userID string) error {
	return r.store.UpdateFields(ctx, identity.CollectionCustomers, customerID, r.delinkFields(userID))
}

func (r *repository) MoveLink(ctx context.Context, fromID, toID, userID string) error {
	return r.store.Batch(ctx, []docstore.Write{
		{Collection: identity.CollectionCustomers, ID: fromID, Fields: r.delinkFields(userID)},
		{Collection: identity.CollectionCustomers, ID: toID, Fields: r.linkFields(userID)},
	})
}

func (r *repository) linkFields(userID string) map[string]any {
	return map[string]any{
		identity.FieldLinkedUserID:   userID,
		identity.FieldDelinkedUserID: nil,
		identity.FieldUpdatedAt:      r.now().UTC(),
	}
}

func (r *repository) delinkFields(userID string) map[string]any {
	return map[string]any{
		identity.FieldLinkedUserID:   nil,
		identity.FieldDelinkedUserID: userID,
		identity.FieldUpdatedAt:      r.now().UTC(),
	}
}
