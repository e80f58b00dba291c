package link

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"goflare.io/loyalty/apperr"
	"goflare.io/loyalty/docstore"
	"goflare.io/loyalty/docstore/storetest"
	"goflare.io/loyalty/identity"
	"goflare.io/loyalty/models"
	"goflare.io/loyalty/models/enum"
)

type fixture struct {
	memory *docstore.Memory
	store  *storetest.Store
	svc    Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	memory := docstore.NewMemory()
	store := storetest.Wrap(memory)
	resolver := identity.NewService(identity.NewRepository(store, zap.NewNop()), zap.NewNop())
	return &fixture{
		memory: memory,
		store:  store,
		svc:    NewService(resolver, NewRepository(store, zap.NewNop()), zap.NewNop()),
	}
}

func (f *fixture) customer(t *testing.T, id, phone, linked string) {
	t.Helper()
	storetest.Seed(t, f.store, identity.CollectionCustomers, id, models.CustomerRecord{
		BusinessID:   "b1",
		Phone:        phone,
		LinkedUserID: linked,
	})
}

func (f *fixture) linkedTo(t *testing.T, customerID string) string {
	t.Helper()
	doc, err := f.memory.Get(context.Background(), identity.CollectionCustomers, customerID)
	if err != nil {
		t.Fatalf("get %s: %v", customerID, err)
	}
	linked, _ := doc.Data[identity.FieldLinkedUserID].(string)
	return linked
}

func TestFirstResolutionLinks(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "c1", "15550100", "")

	out := f.svc.ResolveAndLink(context.Background(), "u1", "+1 555-0100", false)
	if out.State != enum.LinkStateLinked || out.CustomerID != "c1" || out.Err != nil {
		t.Fatalf("expected LINKED to c1, got %+v", out)
	}
	if got := f.linkedTo(t, "c1"); got != "u1" {
		t.Fatalf("expected c1 linked to u1, got %q", got)
	}
}

func TestLinkUsesStoredPhoneWhenNoneGiven(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "c1", "15550100", "")
	storetest.Seed(t, f.store, identity.CollectionUsers, "u1", models.UserIdentity{Phone: "1 (555) 0100"})

	out := f.svc.ResolveAndLink(context.Background(), "u1", "", false)
	if out.State != enum.LinkStateLinked || out.CustomerID != "c1" {
		t.Fatalf("expected LINKED via stored phone, got %+v", out)
	}
}

func TestResolveAndLinkIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "c1", "15550100", "")

	first := f.svc.ResolveAndLink(context.Background(), "u1", "15550100", false)
	writes := f.store.Writes()
	second := f.svc.ResolveAndLink(context.Background(), "u1", "15550100", false)

	if first.State != second.State || first.CustomerID != second.CustomerID {
		t.Fatalf("expected identical outcomes, got %+v and %+v", first, second)
	}
	if f.store.Writes() != writes {
		t.Fatalf("expected no writes on second call, got %d more", f.store.Writes()-writes)
	}
}

func TestPhoneChangeWithoutMatchDelinks(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "c1", "15550100", "u1")

	out := f.svc.ResolveAndLink(context.Background(), "u1", "15550199", true)
	if out.State != enum.LinkStateDelinked || out.PreviousCustomerID != "c1" || out.Err != nil {
		t.Fatalf("expected DELINKED from c1, got %+v", out)
	}
	if got := f.linkedTo(t, "c1"); got != "" {
		t.Fatalf("expected link cleared, got %q", got)
	}

	after := f.svc.ResolveAndLink(context.Background(), "u1", "15550199", false)
	if after.State != enum.LinkStateUnlinked {
		t.Fatalf("expected UNLINKED afterwards, got %+v", after)
	}
}

func TestPhoneChangeToOtherCustomerRelinks(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "c1", "15550100", "u1")
	f.customer(t, "c2", "15550199", "")

	out := f.svc.ResolveAndLink(context.Background(), "u1", "1-555-0199", true)
	if out.State != enum.LinkStateLinked || out.CustomerID != "c2" || out.PreviousCustomerID != "c1" {
		t.Fatalf("expected LINKED to c2 from c1, got %+v", out)
	}
	if f.linkedTo(t, "c1") != "" || f.linkedTo(t, "c2") != "u1" {
		t.Fatalf("expected link moved from c1 to c2")
	}
}

func TestPhoneChangeToSameCustomerIsNoop(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "c1", "15550100", "u1")

	writes := f.store.Writes()
	out := f.svc.ResolveAndLink(context.Background(), "u1", "+1 555 0100", true)
	if out.State != enum.LinkStateLinked || out.CustomerID != "c1" {
		t.Fatalf("expected LINKED to c1, got %+v", out)
	}
	if f.store.Writes() != writes {
		t.Fatalf("expected no writes")
	}
}

func TestRelinkNeverExposesBothOrNeither(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "c1", "15550100", "u1")
	f.customer(t, "c2", "15550199", "")

	var (
		stop      atomic.Bool
		violation atomic.Value
		wg        sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for !stop.Load() {
			docs, err := f.memory.Query(context.Background(), identity.CollectionCustomers,
				docstore.Where(docstore.Eq(identity.FieldLinkedUserID, "u1")))
			if err != nil {
				violation.Store(err.Error())
				return
			}
			if len(docs) != 1 {
				violation.Store("observed linked count other than one")
				return
			}
		}
	}()

	phones := []string{"15550199", "15550100"}
	for i := 0; i < 200; i++ {
		out := f.svc.ResolveAndLink(context.Background(), "u1", phones[i%2], true)
		if out.State != enum.LinkStateLinked {
			t.Fatalf("expected LINKED on iteration %d, got %+v", i, out)
		}
	}
	stop.Store(true)
	wg.Wait()

	if v := violation.Load(); v != nil {
		t.Fatalf("poller saw inconsistent state: %v", v)
	}
}

func TestConcurrentPhoneChangesLeaveOneLink(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "c1", "15550100", "u1")
	f.customer(t, "c2", "15550199", "")
	f.customer(t, "c3", "15550177", "")

	phones := []string{"15550199", "15550177", "15550100"}
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(phone string) {
			defer wg.Done()
			f.svc.ResolveAndLink(context.Background(), "u1", phone, true)
		}(phones[i%len(phones)])
	}
	wg.Wait()

	docs, _ := f.memory.Query(context.Background(), identity.CollectionCustomers,
		docstore.Where(docstore.Eq(identity.FieldLinkedUserID, "u1")))
	if len(docs) != 1 {
		t.Fatalf("expected exactly one linked record, got %d", len(docs))
	}
}

func TestRecordDeletedBeforeWriteIsRecoverable(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "c1", "15550100", "")
	f.store.AfterQuery(func(collection string, q docstore.Query) {
		if collection == identity.CollectionCustomers {
			for _, filter := range q.Filters {
				if filter.Field == identity.FieldPhone {
					f.memory.Delete(identity.CollectionCustomers, "c1")
				}
			}
		}
	})

	out := f.svc.ResolveAndLink(context.Background(), "u1", "15550100", false)
	if out.State != enum.LinkStateUnlinked || !apperr.Is(out.Err, apperr.NotFound) {
		t.Fatalf("expected UNLINKED with NotFound, got %+v", out)
	}
	if f.store.Writes() != 0 {
		t.Fatalf("expected no writes to a deleted record")
	}
}

func TestRecordLinkedToAnotherUserIsNotStolen(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "c1", "15550100", "someone-else")

	out := f.svc.ResolveAndLink(context.Background(), "u1", "15550100", false)
	if out.State != enum.LinkStateUnlinked || out.Err != nil {
		t.Fatalf("expected UNLINKED without error, got %+v", out)
	}
	if got := f.linkedTo(t, "c1"); got != "someone-else" {
		t.Fatalf("expected existing link untouched, got %q", got)
	}
}

func TestNoMatchStaysUnlinked(t *testing.T) {
	f := newFixture(t)

	out := f.svc.ResolveAndLink(context.Background(), "u1", "15550100", false)
	if out.State != enum.LinkStateUnlinked || out.Err != nil || out.Message == "" {
		t.Fatalf("expected UNLINKED with a message, got %+v", out)
	}
}

func TestInvalidAndUnavailableInputs(t *testing.T) {
	f := newFixture(t)

	out := f.svc.ResolveAndLink(context.Background(), " ", "15550100", false)
	if !apperr.Is(out.Err, apperr.InvalidInput) {
		t.Fatalf("expected InvalidInput, got %+v", out)
	}

	f.customer(t, "c1", "15550100", "u1")
	out = f.svc.ResolveAndLink(context.Background(), "u1", "", true)
	if out.State != enum.LinkStateLinked || !apperr.Is(out.Err, apperr.InvalidInput) {
		t.Fatalf("expected LINKED with InvalidInput for empty new phone, got %+v", out)
	}

	f.store.FailQuery(identity.CollectionCustomers, errors.New("unavailable"))
	out = f.svc.ResolveAndLink(context.Background(), "u1", "15550100", false)
	if !apperr.Is(out.Err, apperr.SourceUnavailable) {
		t.Fatalf("expected SourceUnavailable, got %+v", out)
	}
}

func TestStoredPhoneDoesNotUndoDelink(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "c1", "15550100", "u1")
	storetest.Seed(t, f.store, identity.CollectionUsers, "u1", models.UserIdentity{Phone: "15550100"})

	out := f.svc.ResolveAndLink(context.Background(), "u1", "15550199", true)
	if out.State != enum.LinkStateDelinked {
		t.Fatalf("expected DELINKED, got %+v", out)
	}

	// The profile still carries the old phone.
	writes := f.store.Writes()
	after := f.svc.ResolveAndLink(context.Background(), "u1", "", false)
	if after.State != enum.LinkStateUnlinked || after.CustomerID != "" {
		t.Fatalf("expected UNLINKED, got %+v", after)
	}
	if f.linkedTo(t, "c1") != "" || f.store.Writes() != writes {
		t.Fatalf("expected c1 to stay unlinked with no writes")
	}

	explicit := f.svc.ResolveAndLink(context.Background(), "u1", "15550100", false)
	if explicit.State != enum.LinkStateLinked || explicit.CustomerID != "c1" {
		t.Fatalf("expected an explicit phone to relink c1, got %+v", explicit)
	}
	doc, err := f.memory.Get(context.Background(), identity.CollectionCustomers, "c1")
	if err != nil {
		t.Fatalf("get c1: %v", err)
	}
	if marker, _ := doc.Data[identity.FieldDelinkedUserID].(string); marker != "" {
		t.Fatalf("expected delink marker cleared on relink, got %q", marker)
	}
}
