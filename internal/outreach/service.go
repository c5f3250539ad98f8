package outreach

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"postventa/internal/audit"
	"postventa/internal/domain"
	"postventa/internal/observability"
	"postventa/internal/storage"
	"postventa/internal/validation"
)

// popularityWindow is how many recent sales feed the popularity ranking
// for customers without history.
const popularityWindow = 100

// Notifier receives an alert for a freshly created recommendation.
// Implementations must not block; the report value says whether the
// alert was accepted.
type Notifier interface {
	NotifyRecommendation(rec domain.Recommendation) bool
}

// Service drives the recommendation lifecycle: generation, listing and
// state transitions. All collaborators are injected.
type Service struct {
	store      storage.Store
	recs       storage.RecommendationStore
	candidates *CandidateSource
	composer   Composer
	activity   audit.ActivityLogger
	notifier   Notifier
	logger     observability.Logger
	now        func() time.Time
}

// NewService wires a recommendation service. activity and notifier may
// be nil; notifications and auditing are then disabled.
func NewService(store storage.Store, recs storage.RecommendationStore, candidates *CandidateSource, composer Composer, activity audit.ActivityLogger, notifier Notifier, logger observability.Logger) *Service {
	return &Service{
		store:      store,
		recs:       recs,
		candidates: candidates,
		composer:   composer,
		activity:   activity,
		notifier:   notifier,
		logger:     logger.WithComponent("outreach"),
		now:        time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Generate builds and persists a recommendation for one customer:
// rank the catalog, compose the message, write header plus details
// atomically. Returns ErrNotFound for unknown customers and
// ErrNoEligibleProducts when nothing can be suggested.
func (s *Service) Generate(ctx context.Context, req domain.GenerateRequest, actor string) (*domain.Recommendation, error) {
	if req.CustomerID <= 0 {
		return nil, fmt.Errorf("%w: customer_id is required", storage.ErrValidation)
	}
	customer, ok, err := s.store.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: customer %d", storage.ErrNotFound, req.CustomerID)
	}

	now := s.now().UTC()
	topN := ClampTopN(req.TopN)

	history, err := s.store.PurchaseHistory(ctx, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("load purchase history: %w", err)
	}
	var popularity []domain.ProductSales
	if len(history) == 0 {
		popularity, err = s.store.GlobalPopularity(ctx, popularityWindow)
		if err != nil {
			return nil, fmt.Errorf("load popularity: %w", err)
		}
	}
	catalog, err := s.store.ListActiveProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	options, err := RankOptions(history, popularity, catalog, topN, now)
	if err != nil {
		return nil, err
	}

	justification, err := s.composer.Compose(ctx, s.composeInput(ctx, customer, history, options, now))
	if err != nil {
		return nil, fmt.Errorf("compose message: %w", err)
	}

	nextAction := domain.DateOnly(now)
	rec := domain.Recommendation{
		CustomerID:    customer.ID,
		GeneratedAt:   now,
		State:         domain.RecommendationStatePending,
		NextActionAt:  &nextAction,
		Justification: justification,
		Details:       detailsFromOptions(options),
	}
	created, err := s.recs.CreateRecommendation(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("persist recommendation: %w", err)
	}

	s.logger.InfoContext(ctx, "recommendation generated",
		"recommendation_id", created.ID,
		"customer_id", customer.ID,
		"options", len(created.Details),
		"actor", actor)
	s.logActivity(ctx, actor, audit.ActionGenerate, created.ID, fmt.Sprintf("customer %d, %d options", customer.ID, len(created.Details)))

	if req.Notify && s.notifier != nil {
		if !s.notifier.NotifyRecommendation(created) {
			s.logger.WarnContext(ctx, "notification dropped", "recommendation_id", created.ID)
		}
	}
	return &created, nil
}

func (s *Service) composeInput(ctx context.Context, customer domain.Customer, history []domain.Sale, options []Option, now time.Time) ComposeInput {
	in := ComposeInput{
		CustomerName: customer.DisplayName(),
		HasHistory:   len(history) > 0,
		Options:      options,
	}
	if len(history) > 0 {
		in.DaysSinceLastPurchase = int(now.Sub(history[0].Date).Hours() / 24)
		for _, opt := range options {
			if opt.Reason == OptionDue || opt.Reason == OptionUpcoming {
				in.TypicalCycleDays = opt.Product.CycleDays
				break
			}
		}
	}
	if entries, err := s.candidates.List(ctx, customer.ID); err == nil && len(entries) > 0 {
		in.Reason = string(entries[0].Reason)
	}
	return in
}

func detailsFromOptions(options []Option) []domain.RecommendationDetail {
	details := make([]domain.RecommendationDetail, len(options))
	for i, opt := range options {
		details[i] = domain.RecommendationDetail{
			ProductID:   opt.Product.ID,
			ProductName: opt.Product.Name,
			SKU:         opt.Product.SKU,
			Unit:        opt.Product.Unit,
			Priority:    i + 1,
			Score:       opt.Score,
			Reason:      opt.Reason,
		}
	}
	return details
}

// Get returns one recommendation with ordered details.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Recommendation, error) {
	return s.recs.GetRecommendation(ctx, id)
}

// List returns paginated recommendations matching the filters.
func (s *Service) List(ctx context.Context, filters domain.RecommendationFilters) (*domain.RecommendationsListResponse, error) {
	if filters.State != "" && !domain.RecommendationState(filters.State).Valid() {
		return nil, fmt.Errorf("%w: unknown state %q", storage.ErrValidation, filters.State)
	}
	if filters.Due != "" && !domain.ValidDueWindow(filters.Due) {
		return nil, fmt.Errorf("%w: unknown due window %q", storage.ErrValidation, filters.Due)
	}
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 {
		filters.PageSize = 20
	}

	items, total, err := s.recs.ListRecommendations(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	return &domain.RecommendationsListResponse{
		Items:    items,
		Total:    total,
		Page:     filters.Page,
		PageSize: filters.PageSize,
	}, nil
}

// Defer pushes a pending recommendation's next action date forward.
// Days are clamped to at least one. Terminal records are rejected.
func (s *Service) Defer(ctx context.Context, id int64, days int, actor string) (*domain.Recommendation, error) {
	rec, err := s.recs.GetRecommendation(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.State.Terminal() {
		return nil, fmt.Errorf("%w: recommendation %d is %s", storage.ErrConflict, id, rec.State)
	}

	days = validation.ClampDeferDays(days)
	next := domain.DateOnly(s.now()).AddDate(0, 0, days)
	if err := s.recs.UpdateRecommendationState(ctx, id, domain.RecommendationStatePending, &next); err != nil {
		return nil, fmt.Errorf("defer recommendation: %w", err)
	}
	s.logActivity(ctx, actor, audit.ActionDefer, id, strconv.Itoa(days)+" days")
	return s.recs.GetRecommendation(ctx, id)
}

// Discard moves a pending recommendation to its discarded terminal
// state. Terminal records are rejected.
func (s *Service) Discard(ctx context.Context, id int64, actor string) (*domain.Recommendation, error) {
	return s.finalize(ctx, id, domain.RecommendationStateDiscarded, audit.ActionDiscard, actor)
}

// MarkSent moves a pending recommendation to its sent terminal state.
// Terminal records are rejected.
func (s *Service) MarkSent(ctx context.Context, id int64, actor string) (*domain.Recommendation, error) {
	return s.finalize(ctx, id, domain.RecommendationStateSent, audit.ActionMarkSent, actor)
}

func (s *Service) finalize(ctx context.Context, id int64, state domain.RecommendationState, action, actor string) (*domain.Recommendation, error) {
	rec, err := s.recs.GetRecommendation(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.State.Terminal() {
		return nil, fmt.Errorf("%w: recommendation %d is %s", storage.ErrConflict, id, rec.State)
	}
	if err := s.recs.UpdateRecommendationState(ctx, id, state, nil); err != nil {
		return nil, fmt.Errorf("update recommendation state: %w", err)
	}
	s.logActivity(ctx, actor, action, id, "")
	return s.recs.GetRecommendation(ctx, id)
}

// Candidates exposes the raw candidate signal for inspection.
func (s *Service) Candidates(ctx context.Context, customerID int64) (*domain.CandidatesResponse, error) {
	items, err := s.candidates.List(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return &domain.CandidatesResponse{Items: items, Total: len(items)}, nil
}

// Refresh rebuilds the candidate signal on demand.
func (s *Service) Refresh(ctx context.Context, actor string) error {
	if err := s.candidates.Refresh(ctx); err != nil {
		return err
	}
	s.logActivity(ctx, actor, audit.ActionRefresh, 0, "")
	return nil
}

// logActivity records a best-effort audit entry. Failures are logged
// and never block the operation.
func (s *Service) logActivity(ctx context.Context, actor, action string, recID int64, detail string) {
	if s.activity == nil {
		return
	}
	resourceType := audit.ResourceRecommendation
	resourceID := strconv.FormatInt(recID, 10)
	if action == audit.ActionRefresh {
		resourceType = audit.ResourceCandidates
		resourceID = "all"
	}
	if actor == "" {
		actor = audit.ActorSystem
	}
	event := &audit.Event{
		Actor:        actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Detail:       detail,
		RequestID:    observability.RequestIDFromContext(ctx),
	}
	if err := s.activity.Log(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "activity log write failed", "action", action, "error", err)
	}
}
