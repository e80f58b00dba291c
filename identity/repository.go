package identity

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"goflare.io/loyalty/docstore"
	"goflare.io/loyalty/models"
)

const (
	CollectionUsers     = "users"
	CollectionCustomers = "customers"

	FieldPhone        = "phone"
	FieldLinkedUserID = "linkedUserId"
	// FieldDelinkedUserID remembers the user whose link was removed by a
	// phone change.
	FieldDelinkedUserID = "delinkedUserId"
	FieldUpdatedAt      = "updatedAt"
)

var _ Repository = (*repository)(nil)

type Repository interface {
	GetUser(ctx context.Context, id string) (*models.UserIdentity, error)
	GetCustomer(ctx context.Context, id string) (*models.CustomerRecord, error)
	ListByPhone(ctx context.Context, phone string) ([]*models.CustomerRecord, error)
	ListByLinkedUserID(ctx context.Context, userID string) ([]*models.CustomerRecord, error)
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

// GetUser returns nil when the user does not exist.
func (r *repository) GetUser(ctx context.Context, id string) (*models.UserIdentity, error) {

	doc, err := r.store.Get(ctx, CollectionUsers, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user := new(models.UserIdentity)
	if err = doc.Decode(user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetCustomer returns nil when the record does not exist.
func (r *repository) GetCustomer(ctx context.Context, id string) (*models.CustomerRecord, error) {

	doc, err := r.store.Get(ctx, CollectionCustomers, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	customer := new(models.CustomerRecord)
	if err = doc.Decode(customer); err != nil {
		return nil, err
	}
	return customer, nil
}

func (r *repository) ListByPhone(ctx context.Context, phone string) ([]*models.CustomerRecord, error) {
	return r.list(ctx, docstore.Where(docstore.Eq(FieldPhone, phone)))
}

func (r *repository) ListByLinkedUserID(ctx context.Context, userID string) ([]*models.CustomerRecord, error) {
	return r.list(ctx, docstore.Where(docstore.Eq(FieldLinkedUserID, userID)))
}

func (r *repository) list(ctx context.Context, q docstore.Query) ([]*models.CustomerRecord, error) {

	docs, err := r.store.Query(ctx, CollectionCustomers, q.OrderTime(FieldUpdatedAt, true))
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}

	customers := make([]*models.CustomerRecord, 0, len(docs))
	for _, doc := range docs {
		customer := new(models.CustomerRecord)
		if err = doc.Decode(customer); err != nil {
			r.logger.Warn("skipping undecodable customer record", zap.String("customer_id", doc.ID), zap.Error(err))
			continue
		}
		customers = append(customers, customer)
	}

	return customers, nil
}
