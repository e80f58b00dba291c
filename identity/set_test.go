package identity

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"goflare.io/loyalty/apperr"
	"goflare.io/loyalty/docstore/storetest"
	"goflare.io/loyalty/models"
)

func TestResolveSetPrefersLinkedCustomer(t *testing.T) {
	svc, store := newTestService(t)
	storetest.Seed(t, store, CollectionUsers, "u1", models.UserIdentity{Phone: "5550100", VisitedBusinessIDs: []string{"b2", "b1"}})
	storetest.Seed(t, store, CollectionCustomers, "by-phone", models.CustomerRecord{BusinessID: "b3", Phone: "5550100"})
	storetest.Seed(t, store, CollectionCustomers, "linked", models.CustomerRecord{BusinessID: "b1", Phone: "5550999", LinkedUserID: "u1"})

	set, err := ResolveSet(context.Background(), svc, zap.NewNop(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.Customer == nil || set.Customer.ID != "linked" {
		t.Fatalf("expected linked customer, got %+v", set.Customer)
	}
	if got := set.OwnerIDs(); !reflect.DeepEqual(got, []string{"u1", "linked"}) {
		t.Fatalf("unexpected owner ids %v", got)
	}
	if got := set.BusinessIDs(); !reflect.DeepEqual(got, []string{"b1", "b2"}) {
		t.Fatalf("unexpected business ids %v", got)
	}
	if set.Phone() != "5550999" {
		t.Fatalf("expected customer phone, got %s", set.Phone())
	}
}

func TestResolveSetFallsBackToPhone(t *testing.T) {
	svc, store := newTestService(t)
	storetest.Seed(t, store, CollectionUsers, "u1", models.UserIdentity{Phone: "+1 555 0100"})
	storetest.Seed(t, store, CollectionCustomers, "c1", models.CustomerRecord{Phone: "15550100"})

	set, err := ResolveSet(context.Background(), svc, zap.NewNop(), "u1")
	if err != nil || set.Customer == nil || set.Customer.ID != "c1" {
		t.Fatalf("expected c1 via phone, got %+v, %v", set.Customer, err)
	}
}

func TestResolveSetIgnoresPhoneMatchLinkedElsewhere(t *testing.T) {
	svc, store := newTestService(t)
	storetest.Seed(t, store, CollectionUsers, "u2", models.UserIdentity{Phone: "15550100"})
	storetest.Seed(t, store, CollectionCustomers, "c1", models.CustomerRecord{Phone: "15550100", LinkedUserID: "u1"})

	set, err := ResolveSet(context.Background(), svc, zap.NewNop(), "u2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.Customer != nil {
		t.Fatalf("expected no customer for u2, got %+v", set.Customer)
	}
	if got := set.OwnerIDs(); !reflect.DeepEqual(got, []string{"u2"}) {
		t.Fatalf("expected owner ids [u2], got %v", got)
	}
}

func TestResolveSetSurvivesUserLookupFailure(t *testing.T) {
	svc, store := newTestService(t)
	storetest.Seed(t, store, CollectionCustomers, "c1", models.CustomerRecord{Phone: "1", LinkedUserID: "u1"})
	store.FailGet(CollectionUsers, errors.New("down"))

	set, err := ResolveSet(context.Background(), svc, zap.NewNop(), "u1")
	if !apperr.Is(err, apperr.SourceUnavailable) {
		t.Fatalf("expected SourceUnavailable, got %v", err)
	}
	if set.Customer == nil || set.Customer.ID != "c1" {
		t.Fatalf("expected linked customer despite user failure, got %+v", set.Customer)
	}
}
