package identity

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"goflare.io/loyalty/models"
	"goflare.io/loyalty/normalize"
)

// Set is everything known about one consumer: the account and, when
// resolved, its customer record.
type Set struct {
	UserID   string
	User     *models.UserIdentity
	Customer *models.CustomerRecord
}

// OwnerIDs lists the identifiers entitlements and events may be stored under,
// user id first.
func (s Set) OwnerIDs() []string {
	ids := []string{s.UserID}
	if s.Customer != nil && s.Customer.ID != s.UserID {
		ids = append(ids, s.Customer.ID)
	}
	return ids
}

// Phone prefers the customer record's phone over the account's.
func (s Set) Phone() string {
	if s.Customer != nil && normalize.Phone(s.Customer.Phone) != "" {
		return s.Customer.Phone
	}
	if s.User != nil {
		return s.User.Phone
	}
	return ""
}

// BusinessIDs lists the businesses the consumer is known to have visited.
func (s Set) BusinessIDs() []string {
	var ids []string
	seen := make(map[string]struct{})
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if s.Customer != nil {
		add(s.Customer.BusinessID)
	}
	if s.User != nil {
		for _, id := range s.User.VisitedBusinessIDs {
			add(id)
		}
	}
	return ids
}

// ResolveSet resolves a user's customer record by link first and by phone
// second. It always returns a usable Set; lookup failures are logged and
// returned joined so callers can proceed with what was found.
func ResolveSet(ctx context.Context, svc Service, logger *zap.Logger, userID string) (Set, error) {
	set := Set{UserID: normalize.ID(userID)}

	var errs []error
	user, err := svc.GetUser(ctx, set.UserID)
	if err != nil {
		logger.Warn("user lookup failed", zap.String("source", CollectionUsers), zap.String("owner_id", set.UserID), zap.Error(err))
		errs = append(errs, err)
	}
	set.User = user

	customer, err := svc.ResolveByUserID(ctx, set.UserID)
	if err != nil {
		logger.Warn("linked customer lookup failed", zap.String("source", CollectionCustomers), zap.String("owner_id", set.UserID), zap.Error(err))
		errs = append(errs, err)
	}

	if customer == nil && user != nil && normalize.Phone(user.Phone) != "" {
		customer, err = svc.ResolveByPhone(ctx, user.Phone)
		if err != nil {
			logger.Warn("phone customer lookup failed", zap.String("source", CollectionCustomers), zap.String("owner_id", set.UserID), zap.Error(err))
			errs = append(errs, err)
		}
		if customer.LinkedToOther(set.UserID) {
			logger.Info("ignoring phone match linked to another user",
				zap.String("owner_id", set.UserID),
				zap.String("customer_id", customer.ID))
			customer = nil
		}
	}
	set.Customer = customer

	return set, errors.Join(errs...)
}
