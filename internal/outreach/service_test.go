package outreach

import (
	"context"
	"errors"
	"testing"
	"time"

	"postventa/internal/audit"
	"postventa/internal/domain"
	"postventa/internal/storage"
)

type fakeNotifier struct {
	accept bool
	recs   []domain.Recommendation
}

func (f *fakeNotifier) NotifyRecommendation(rec domain.Recommendation) bool {
	f.recs = append(f.recs, rec)
	return f.accept
}

type serviceFixture struct {
	store    *storage.MemoryStore
	recs     *storage.MemoryRecommendationStore
	cands    *storage.MemoryCandidateStore
	activity *audit.MemoryActivityLogger
	notifier *fakeNotifier
	svc      *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store := storage.NewMemoryStore()
	recs := storage.NewMemoryRecommendationStore(store)
	cands := storage.NewMemoryCandidateStore(store)
	cands.SetClock(func() time.Time { return rankNow })
	activity := audit.NewMemoryActivityLogger()
	notifier := &fakeNotifier{accept: true}

	svc := NewService(store, recs, NewCandidateSource(cands), TemplateComposer{}, activity, notifier, newTestLogger())
	svc.SetClock(func() time.Time { return rankNow })
	return &serviceFixture{store: store, recs: recs, cands: cands, activity: activity, notifier: notifier, svc: svc}
}

// seedCustomer creates a customer with an old purchase and a small
// catalog so generation always has something to rank.
func (f *serviceFixture) seedCustomer(t *testing.T) domain.Customer {
	t.Helper()
	ctx := context.Background()
	customer, err := f.store.CreateCustomer(ctx, domain.Customer{FirstName: "Ana", LastName: "Lopez", Phone: "555-0101"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	for _, p := range []domain.Product{
		{Name: "Dog food 15kg", SKU: "DF-15", Unit: "bag", Stock: 10, Active: true, CycleDays: 30},
		{Name: "Chew toy", Stock: 5, Active: true},
		{Name: "Shampoo", Stock: 8, Active: true, CycleDays: 90},
	} {
		if _, err := f.store.CreateProduct(ctx, p); err != nil {
			t.Fatalf("CreateProduct: %v", err)
		}
	}
	_, err = f.store.RecordSale(ctx, domain.Sale{
		CustomerID: customer.ID,
		Date:       rankNow.AddDate(0, 0, -25),
		Lines:      []domain.SaleLine{{ProductID: 1, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("RecordSale: %v", err)
	}
	return customer
}

func TestServiceGeneratePersistsPendingRecommendation(t *testing.T) {
	f := newServiceFixture(t)
	customer := f.seedCustomer(t)
	ctx := context.Background()

	rec, err := f.svc.Generate(ctx, domain.GenerateRequest{CustomerID: customer.ID}, "maria")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rec.State != domain.RecommendationStatePending {
		t.Errorf("expected state pending, got %s", rec.State)
	}
	if rec.NextActionAt == nil || !rec.NextActionAt.Equal(domain.DateOnly(rankNow)) {
		t.Errorf("expected next action today, got %v", rec.NextActionAt)
	}
	if rec.Justification == "" {
		t.Error("expected a composed justification")
	}
	if rec.CustomerName != "Ana Lopez" {
		t.Errorf("expected customer name filled, got %q", rec.CustomerName)
	}
	if len(rec.Details) == 0 || len(rec.Details) > DefaultTopN {
		t.Fatalf("expected 1..%d details, got %d", DefaultTopN, len(rec.Details))
	}
	for i, d := range rec.Details {
		if d.Priority != i+1 {
			t.Errorf("detail %d: expected priority %d, got %d", i, i+1, d.Priority)
		}
	}

	stored, err := f.svc.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(stored.Details) != len(rec.Details) {
		t.Errorf("stored details mismatch: %d vs %d", len(stored.Details), len(rec.Details))
	}

	events, total, err := f.activity.List(ctx, audit.ListOptions{Action: audit.ActionGenerate})
	if err != nil || total != 1 {
		t.Fatalf("expected 1 generate audit event, got %d (err %v)", total, err)
	}
	if events[0].Actor != "maria" {
		t.Errorf("expected actor maria, got %q", events[0].Actor)
	}
}

func TestServiceGenerateUnknownCustomer(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Generate(context.Background(), domain.GenerateRequest{CustomerID: 42}, "")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServiceGenerateInvalidCustomerID(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Generate(context.Background(), domain.GenerateRequest{CustomerID: 0}, "")
	if !errors.Is(err, storage.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestServiceGenerateEmptyCatalog(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	customer, err := f.store.CreateCustomer(ctx, domain.Customer{FirstName: "Ana"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	_, err = f.svc.Generate(ctx, domain.GenerateRequest{CustomerID: customer.ID}, "")
	if !errors.Is(err, ErrNoEligibleProducts) {
		t.Fatalf("expected ErrNoEligibleProducts, got %v", err)
	}

	// Nothing may be persisted for a failed generation.
	list, err := f.svc.List(ctx, domain.RecommendationFilters{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list.Total != 0 {
		t.Errorf("expected no stored recommendations, got %d", list.Total)
	}
}

func TestServiceGenerateNotifies(t *testing.T) {
	f := newServiceFixture(t)
	customer := f.seedCustomer(t)
	ctx := context.Background()

	if _, err := f.svc.Generate(ctx, domain.GenerateRequest{CustomerID: customer.ID, Notify: true}, ""); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(f.notifier.recs) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(f.notifier.recs))
	}

	if _, err := f.svc.Generate(ctx, domain.GenerateRequest{CustomerID: customer.ID}, ""); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(f.notifier.recs) != 1 {
		t.Errorf("expected no notification without the notify flag, got %d", len(f.notifier.recs))
	}
}

func TestServiceDeferClampsDays(t *testing.T) {
	f := newServiceFixture(t)
	customer := f.seedCustomer(t)
	ctx := context.Background()

	rec, err := f.svc.Generate(ctx, domain.GenerateRequest{CustomerID: customer.ID}, "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	deferred, err := f.svc.Defer(ctx, rec.ID, -5, "maria")
	if err != nil {
		t.Fatalf("Defer: %v", err)
	}
	if deferred.State != domain.RecommendationStatePending {
		t.Errorf("expected pending after defer, got %s", deferred.State)
	}
	want := domain.DateOnly(rankNow).AddDate(0, 0, 1)
	if deferred.NextActionAt == nil || !deferred.NextActionAt.Equal(want) {
		t.Errorf("expected next action %v, got %v", want, deferred.NextActionAt)
	}
}

func TestServiceTerminalStatesRejectTransitions(t *testing.T) {
	f := newServiceFixture(t)
	customer := f.seedCustomer(t)
	ctx := context.Background()

	rec, err := f.svc.Generate(ctx, domain.GenerateRequest{CustomerID: customer.ID}, "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	sent, err := f.svc.MarkSent(ctx, rec.ID, "maria")
	if err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if sent.State != domain.RecommendationStateSent {
		t.Fatalf("expected sent, got %s", sent.State)
	}
	if sent.NextActionAt != nil {
		t.Errorf("expected nil next action on terminal state, got %v", sent.NextActionAt)
	}

	if _, err := f.svc.Defer(ctx, rec.ID, 3, "maria"); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("defer on sent: expected ErrConflict, got %v", err)
	}
	if _, err := f.svc.Discard(ctx, rec.ID, "maria"); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("discard on sent: expected ErrConflict, got %v", err)
	}
	if _, err := f.svc.MarkSent(ctx, rec.ID, "maria"); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("mark-sent on sent: expected ErrConflict, got %v", err)
	}
}

func TestServiceDiscardIsTerminal(t *testing.T) {
	f := newServiceFixture(t)
	customer := f.seedCustomer(t)
	ctx := context.Background()

	rec, err := f.svc.Generate(ctx, domain.GenerateRequest{CustomerID: customer.ID}, "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	discarded, err := f.svc.Discard(ctx, rec.ID, "maria")
	if err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if discarded.State != domain.RecommendationStateDiscarded || discarded.NextActionAt != nil {
		t.Fatalf("expected terminal discarded with nil next action, got %s %v", discarded.State, discarded.NextActionAt)
	}
	if _, err := f.svc.Defer(ctx, rec.ID, 1, ""); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("defer on discarded: expected ErrConflict, got %v", err)
	}
}

func TestServiceListValidatesFilters(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.svc.List(ctx, domain.RecommendationFilters{State: "bogus"}); !errors.Is(err, storage.ErrValidation) {
		t.Errorf("unknown state: expected ErrValidation, got %v", err)
	}
	if _, err := f.svc.List(ctx, domain.RecommendationFilters{Due: "someday"}); !errors.Is(err, storage.ErrValidation) {
		t.Errorf("unknown due window: expected ErrValidation, got %v", err)
	}

	resp, err := f.svc.List(ctx, domain.RecommendationFilters{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if resp.Page != 1 || resp.PageSize != 20 {
		t.Errorf("expected default pagination 1/20, got %d/%d", resp.Page, resp.PageSize)
	}
}

func TestServiceRefreshAndCandidates(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	customer, err := f.store.CreateCustomer(ctx, domain.Customer{FirstName: "Luis"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if _, err := f.store.CreateProduct(ctx, domain.Product{Name: "Litter", Stock: 3, Active: true}); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if _, err := f.store.RecordSale(ctx, domain.Sale{
		CustomerID: customer.ID,
		Date:       rankNow.AddDate(0, 0, -70),
		Lines:      []domain.SaleLine{{ProductID: 1, Quantity: 1}},
	}); err != nil {
		t.Fatalf("RecordSale: %v", err)
	}

	if err := f.svc.Refresh(ctx, ""); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	resp, err := f.svc.Candidates(ctx, customer.ID)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if resp.Total != 1 || resp.Items[0].Reason != domain.ReasonDormant {
		t.Fatalf("expected one dormant candidate, got %+v", resp)
	}

	events, total, err := f.activity.List(ctx, audit.ListOptions{Action: audit.ActionRefresh})
	if err != nil || total != 1 {
		t.Fatalf("expected 1 refresh audit event, got %d (err %v)", total, err)
	}
	if events[0].Actor != audit.ActorSystem {
		t.Errorf("expected system actor for blank actor, got %q", events[0].Actor)
	}
	if events[0].ResourceType != audit.ResourceCandidates {
		t.Errorf("expected candidates resource, got %q", events[0].ResourceType)
	}
}
