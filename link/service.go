package link

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"goflare.io/loyalty/apperr"
	"goflare.io/loyalty/docstore"
	"goflare.io/loyalty/identity"
	"goflare.io/loyalty/models"
	"goflare.io/loyalty/models/enum"
	"goflare.io/loyalty/normalize"
)

const source = "customers.link"

// Service owns the link between a user and at most one customer record.
//
//	UNLINKED --phone resolves--> LINKED
//	LINKED --phone changed, no match--> DELINKED
//	LINKED --phone changed, other record--> RELINKING --> LINKED
//	LINKED --phone changed, same record / no change--> LINKED (no write)
//
// Transitions for one user id run one at a time.
type Service interface {
	ResolveAndLink(ctx context.Context, userID, phone string, phoneChanged bool) models.LinkOutcome
}

type service struct {
	identity identity.Service
	repo     Repository
	locks    *keyedMutex
	logger   *zap.Logger
}

func NewService(identity identity.Service, repo Repository, logger *zap.Logger) Service {
	return &service{
		identity: identity,
		repo:     repo,
		locks:    newKeyedMutex(),
		logger:   logger,
	}
}

func (s *service) ResolveAndLink(ctx context.Context, userID, phone string, phoneChanged bool) models.LinkOutcome {
	userID = normalize.ID(userID)
	if userID == "" {
		return models.LinkOutcome{
			State:   enum.LinkStateUnlinked,
			Message: "A user id is required.",
			Err:     apperr.Invalid(source, "empty user id"),
		}
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	current, err := s.identity.ResolveByUserID(ctx, userID)
	if err != nil {
		s.logger.Warn("link state lookup failed", zap.String("owner_id", userID), zap.Error(err))
		return models.LinkOutcome{
			State:   enum.LinkStateUnlinked,
			Message: "Customer records are unavailable right now.",
			Err:     err,
		}
	}

	if current == nil {
		return s.link(ctx, userID, phone)
	}
	if !phoneChanged {
		return models.LinkOutcome{
			State:      enum.LinkStateLinked,
			CustomerID: current.ID,
			Message:    "Already linked.",
		}
	}
	return s.relink(ctx, userID, current, phone)
}

// link handles the UNLINKED state. Without a phone argument the user's stored
// phone is used, but it never restores a link a phone change removed: the
// profile phone may not have been updated yet.
func (s *service) link(ctx context.Context, userID, phone string) models.LinkOutcome {
	unlinked := models.LinkOutcome{State: enum.LinkStateUnlinked}

	fromProfile := normalize.Phone(phone) == ""
	if fromProfile {
		user, err := s.identity.GetUser(ctx, userID)
		if err != nil {
			s.logger.Warn("user lookup failed", zap.String("owner_id", userID), zap.Error(err))
			unlinked.Message = "User profile is unavailable right now."
			unlinked.Err = err
			return unlinked
		}
		if user == nil || normalize.Phone(user.Phone) == "" {
			unlinked.Message = "No phone number on file."
			return unlinked
		}
		phone = user.Phone
	}

	match, err := s.identity.ResolveByPhone(ctx, phone)
	if err != nil {
		s.logger.Warn("phone resolution failed", zap.String("owner_id", userID), zap.Error(err))
		unlinked.Message = "Customer records are unavailable right now."
		unlinked.Err = err
		return unlinked
	}
	if match == nil {
		unlinked.Message = "No customer record matches this phone number."
		return unlinked
	}
	if fromProfile && match.DelinkedUserID == userID {
		s.logger.Info("stored phone points at a delinked customer",
			zap.String("owner_id", userID),
			zap.String("customer_id", match.ID))
		unlinked.Message = "The phone on file matches the record unlinked by the last phone change."
		return unlinked
	}
	if match.IsLinked() && match.LinkedUserID != userID {
		s.logger.Info("customer already linked to another user",
			zap.String("owner_id", userID),
			zap.String("customer_id", match.ID))
		unlinked.Message = "This customer record is linked to another account."
		return unlinked
	}

	if outcome, ok := s.ensureExists(ctx, userID, match.ID, unlinked); !ok {
		return outcome
	}
	if err = s.repo.SetLink(ctx, match.ID, userID); err != nil {
		return s.writeFailed(userID, match.ID, err, unlinked)
	}

	s.logTransition(userID, enum.LinkStateUnlinked, enum.LinkStateLinked, match.ID)
	return models.LinkOutcome{
		State:      enum.LinkStateLinked,
		CustomerID: match.ID,
		Message:    "Linked to customer record.",
	}
}

func (s *service) relink(ctx context.Context, userID string, current *models.CustomerRecord, phone string) models.LinkOutcome {
	linked := models.LinkOutcome{State: enum.LinkStateLinked, CustomerID: current.ID}

	if normalize.Phone(phone) == "" {
		linked.Message = "A new phone number is required."
		linked.Err = apperr.Invalid(source, "empty phone")
		return linked
	}

	s.logTransition(userID, enum.LinkStateLinked, enum.LinkStateRelinking, current.ID)

	match, err := s.identity.ResolveByPhone(ctx, phone)
	if err != nil {
		s.logger.Warn("phone resolution failed", zap.String("owner_id", userID), zap.Error(err))
		linked.Message = "Customer records are unavailable right now."
		linked.Err = err
		return linked
	}

	switch {
	case match != nil && match.ID == current.ID:
		linked.Message = "Phone still matches the linked customer record."
		return linked

	case match == nil, match.IsLinked() && match.LinkedUserID != userID:
		gone := models.LinkOutcome{
			State:   enum.LinkStateUnlinked,
			Message: "The previously linked customer record no longer exists.",
		}
		if outcome, ok := s.ensureExists(ctx, userID, current.ID, gone); !ok {
			return outcome
		}
		if err = s.repo.ClearLink(ctx, current.ID, userID); err != nil {
			return s.writeFailed(userID, current.ID, err, linked)
		}

		s.logTransition(userID, enum.LinkStateRelinking, enum.LinkStateDelinked, current.ID)
		outcome := models.LinkOutcome{
			State:              enum.LinkStateDelinked,
			PreviousCustomerID: current.ID,
			Message:            "No customer record matches the new phone number; link removed.",
		}
		if match != nil {
			outcome.Message = "The customer record for the new phone number is linked to another account; link removed."
		}
		return outcome
	}

	if err = s.repo.MoveLink(ctx, current.ID, match.ID, userID); err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			return s.writeFailed(userID, match.ID, err, linked)
		}
		// One of the two records vanished; the batch applied nothing.
		stillThere, existsErr := s.repo.Exists(ctx, current.ID)
		if existsErr != nil || !stillThere {
			return s.writeFailed(userID, current.ID, err, models.LinkOutcome{State: enum.LinkStateUnlinked})
		}
		return s.writeFailed(userID, match.ID, err, linked)
	}

	s.logTransition(userID, enum.LinkStateRelinking, enum.LinkStateLinked, match.ID)
	return models.LinkOutcome{
		State:              enum.LinkStateLinked,
		CustomerID:         match.ID,
		PreviousCustomerID: current.ID,
		Message:            "Link moved to the customer record for the new phone number.",
	}
}

// ensureExists checks the target immediately before a write. When the record
// is gone it returns fallback with a NotFound error and false.
func (s *service) ensureExists(ctx context.Context, userID, customerID string, fallback models.LinkOutcome) (models.LinkOutcome, bool) {
	exists, err := s.repo.Exists(ctx, customerID)
	if err != nil {
		s.logger.Warn("customer existence check failed",
			zap.String("owner_id", userID),
			zap.String("customer_id", customerID),
			zap.Error(err))
		fallback.Message = "Customer records are unavailable right now."
		fallback.Err = apperr.Unavailable(source, userID, err)
		return fallback, false
	}
	if !exists {
		return s.writeFailed(userID, customerID, docstore.ErrNotFound, fallback), false
	}
	return models.LinkOutcome{}, true
}

// writeFailed reports an abandoned transition. A vanished record is a
// recoverable NotFound; anything else means the store was unavailable.
func (s *service) writeFailed(userID, customerID string, err error, outcome models.LinkOutcome) models.LinkOutcome {
	s.logger.Warn("link transition abandoned",
		zap.String("owner_id", userID),
		zap.String("customer_id", customerID),
		zap.Error(err))

	if errors.Is(err, docstore.ErrNotFound) {
		if outcome.Message == "" {
			outcome.Message = "The customer record no longer exists; nothing was changed."
		}
		outcome.Err = apperr.New(apperr.NotFound, source, userID, err)
		return outcome
	}
	outcome.Message = "Customer records are unavailable right now."
	outcome.Err = apperr.Unavailable(source, userID, err)
	return outcome
}

func (s *service) logTransition(userID string, from, to enum.LinkState, customerID string) {
	s.logger.Info("link state transition",
		zap.String("owner_id", userID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("customer_id", customerID))
}
