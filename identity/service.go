package identity

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"goflare.io/loyalty/apperr"
	"goflare.io/loyalty/models"
	"goflare.io/loyalty/normalize"
)

// Service resolves consumer identities to customer records. A nil record with
// a nil error means nothing matched; lookup failures are reported as
// apperr.SourceUnavailable.
type Service interface {
	GetUser(ctx context.Context, userID string) (*models.UserIdentity, error)
	ResolveByPhone(ctx context.Context, phone string) (*models.CustomerRecord, error)
	ResolveByUserID(ctx context.Context, userID string) (*models.CustomerRecord, error)
	FindAllByPhone(ctx context.Context, phone string) ([]*models.CustomerRecord, error)
}

type service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) Service {
	return &service{
		repo:   repo,
		logger: logger,
	}
}

func (s *service) GetUser(ctx context.Context, userID string) (*models.UserIdentity, error) {
	userID = normalize.ID(userID)
	if userID == "" {
		return nil, apperr.Invalid(CollectionUsers, "empty user id")
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, apperr.Unavailable(CollectionUsers, userID, err)
	}
	return user, nil
}

// ResolveByPhone tries the normalized phone first and falls back to the raw
// form, since historical records were not always normalized.
func (s *service) ResolveByPhone(ctx context.Context, phone string) (*models.CustomerRecord, error) {
	candidates := normalize.PhoneCandidates(phone)
	if len(candidates) == 0 {
		return nil, apperr.Invalid(CollectionCustomers, "empty phone")
	}

	for _, candidate := range candidates {
		customers, err := s.repo.ListByPhone(ctx, candidate)
		if err != nil {
			return nil, apperr.Unavailable(CollectionCustomers, candidate, err)
		}
		if len(customers) > 0 {
			if len(customers) > 1 {
				s.logger.Info("multiple customers share phone",
					zap.String("phone", candidate),
					zap.Int("matches", len(customers)))
			}
			return first(customers), nil
		}
	}

	return nil, nil
}

func (s *service) ResolveByUserID(ctx context.Context, userID string) (*models.CustomerRecord, error) {
	userID = normalize.ID(userID)
	if userID == "" {
		return nil, apperr.Invalid(CollectionCustomers, "empty user id")
	}

	customers, err := s.repo.ListByLinkedUserID(ctx, userID)
	if err != nil {
		return nil, apperr.Unavailable(CollectionCustomers, userID, err)
	}
	if len(customers) == 0 {
		return nil, nil
	}
	if len(customers) > 1 {
		s.logger.Warn("user linked to more than one customer",
			zap.String("owner_id", userID),
			zap.Int("matches", len(customers)))
	}
	return first(customers), nil
}

// FindAllByPhone returns every customer stored under either phone form. Legacy
// data may hold duplicates. Records found before a failing lookup are returned
// alongside the error.
func (s *service) FindAllByPhone(ctx context.Context, phone string) ([]*models.CustomerRecord, error) {
	candidates := normalize.PhoneCandidates(phone)
	if len(candidates) == 0 {
		return nil, apperr.Invalid(CollectionCustomers, "empty phone")
	}

	var (
		found []*models.CustomerRecord
		seen  = make(map[string]struct{})
		errs  []error
	)
	for _, candidate := range candidates {
		customers, err := s.repo.ListByPhone(ctx, candidate)
		if err != nil {
			errs = append(errs, apperr.Unavailable(CollectionCustomers, candidate, err))
			continue
		}
		for _, customer := range customers {
			if _, ok := seen[customer.ID]; ok {
				continue
			}
			seen[customer.ID] = struct{}{}
			found = append(found, customer)
		}
	}

	return found, errors.Join(errs...)
}

// first picks the most recently updated record, breaking ties by id so the
// choice does not depend on store iteration order.
func first(customers []*models.CustomerRecord) *models.CustomerRecord {
	sorted := make([]*models.CustomerRecord, len(customers))
	copy(sorted, customers)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].UpdatedAt.Equal(sorted[j].UpdatedAt) {
			return sorted[i].UpdatedAt.After(sorted[j].UpdatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted[0]
}
