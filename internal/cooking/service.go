package cooking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"supplytrack/internal/allocator"
	"supplytrack/internal/config"
	"supplytrack/internal/database"
	"supplytrack/internal/feed"
	"supplytrack/internal/locking"
	"supplytrack/internal/models"
	"supplytrack/internal/monitoring"
)

// Service turns recipe ingredients at a node into a new output batch.
type Service struct {
	store   *database.Store
	locker  locking.Locker
	cfg     config.CookingConfig
	logger  *zap.Logger
	metrics *monitoring.MetricsCollector
	monitor *monitoring.Monitor
	feed    feed.Publisher
	now     func() time.Time

	// beforeCommit runs between planning and commit. Tests use it to simulate
	// a concurrent stock change.
	beforeCommit func()
}

// Option configures optional collaborators of a Service.
type Option func(*Service)

// WithMetrics records Prometheus metrics for every cook.
func WithMetrics(mc *monitoring.MetricsCollector) Option {
	return func(s *Service) { s.metrics = mc }
}

// WithMonitor keeps live cook counters for the stats endpoint.
func WithMonitor(m *monitoring.Monitor) Option {
	return func(s *Service) { s.monitor = m }
}

// WithPublisher pushes a feed event after each successful cook.
func WithPublisher(p feed.Publisher) Option {
	return func(s *Service) { s.feed = p }
}

// NewService creates a cooking service. A nil locker falls back to an
// in-process lock.
func NewService(store *database.Store, locker locking.Locker, cfg config.CookingConfig, logger *zap.Logger, opts ...Option) *Service {
	if locker == nil {
		locker = locking.NewLocalLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	s := &Service{
		store:  store,
		locker: locker,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cook checks that the node holds enough stock for every ingredient, then
// deducts it earliest-expiring first and creates the output batch in one
// transaction. On any error no stock changes.
func (s *Service) Cook(ctx context.Context, req Request) (*Result, error) {
	start := s.now()
	result, err := s.cook(ctx, req)
	outcome := outcomeOf(err)

	if s.metrics != nil {
		s.metrics.RecordCook(outcome, s.now().Sub(start))
	}
	if s.monitor != nil {
		s.monitor.RecordCookResult(req.NodeID, outcome, start)
	}

	fields := []zap.Field{
		zap.String("recipe_id", req.RecipeID),
		zap.String("node_id", req.NodeID),
		zap.Int64("quantity", req.Quantity),
		zap.String("outcome", outcome),
	}
	switch outcome {
	case monitoring.OutcomeSuccess:
		if s.metrics != nil {
			s.metrics.RecordBatchesTouched(len(result.IngredientsUsed))
		}
		s.logger.Info("cooked recipe", append(fields,
			zap.String("batch_id", result.CookedItem.ID),
			zap.Int("attempts", result.Attempts))...)
		if s.feed != nil {
			s.feed.Publish(feed.Event{
				Type:    feed.EventCookCompleted,
				NodeIDs: []string{req.NodeID},
				Data:    result,
			})
		}
	case monitoring.OutcomeError:
		s.logger.Error("cook failed", append(fields, zap.Error(err))...)
	default:
		s.logger.Warn("cook rejected", append(fields, zap.Error(err))...)
	}

	return result, err
}

func (s *Service) cook(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	node, err := s.store.GetNode(req.NodeID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, req.NodeID)
		}
		return nil, fmt.Errorf("failed to load node: %w", err)
	}
	if node.Status != models.StatusActive {
		return nil, fmt.Errorf("%w: node %s is inactive", ErrInvalidRequest, node.Name)
	}

	recipe, err := s.store.GetRecipe(req.RecipeID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRecipeNotFound, req.RecipeID)
		}
		return nil, fmt.Errorf("failed to load recipe: %w", err)
	}
	if !recipe.AvailableAt(req.NodeID) {
		return nil, fmt.Errorf("%w: %s", ErrRecipeUnavailable, recipe.Name)
	}

	reqs, err := allocator.Requirements(ingredientsOf(recipe), req.Quantity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	var result *Result
	err = s.locker.WithLock(ctx, locking.StockKey(req.NodeID), func(ctx context.Context) error {
		for attempt := 1; ; attempt++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			r, err := s.attempt(recipe, reqs, req)
			if errors.Is(err, database.ErrStockChanged) {
				if attempt >= s.cfg.MaxAttempts {
					return fmt.Errorf("%w after %d attempts", ErrConcurrentUpdate, attempt)
				}
				if s.metrics != nil {
					s.metrics.RecordCookRetry()
				}
				s.logger.Debug("stock changed during cook, retrying",
					zap.String("node_id", req.NodeID), zap.Int("attempt", attempt))
				continue
			}
			if err != nil {
				return err
			}

			r.Attempts = attempt
			result = r
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// attempt reads the current stock, plans the allocation in memory and commits
// it. It returns database.ErrStockChanged when a planned batch moved.
func (s *Service) attempt(recipe *models.Recipe, reqs []allocator.Requirement, req Request) (*Result, error) {
	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.ItemTypeID)
	}

	batches, err := s.store.StockCandidates(req.NodeID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock: %w", err)
	}
	candidates := make(map[string][]allocator.Candidate, len(reqs))
	for _, b := range batches {
		candidates[b.ItemTypeID] = append(candidates[b.ItemTypeID], allocator.Candidate{
			BatchID:    b.ID,
			ItemTypeID: b.ItemTypeID,
			Count:      b.Count,
			ExpireDate: b.ExpireDate,
		})
	}

	plan, err := allocator.Allocate(reqs, candidates)
	if err != nil {
		return nil, err
	}

	if s.beforeCommit != nil {
		s.beforeCommit()
	}

	output := &models.ItemInstance{
		ItemTypeID: recipe.ResultID,
		NodeID:     &req.NodeID,
		Count:      req.Quantity,
		ExpireDate: s.outputExpiry(req),
		Status:     models.StatusActive,
	}
	err = s.store.Transaction(func(tx *database.Store) error {
		for _, a := range plan.Allocations {
			if err := tx.DeductBatch(a.BatchID, a.Previous, a.Remaining); err != nil {
				return err
			}
		}
		return tx.CreateBatch(output)
	})
	if err != nil {
		if errors.Is(err, database.ErrStockChanged) {
			return nil, err
		}
		return nil, &CommitError{Err: err}
	}

	return buildResult(recipe, output, plan), nil
}

func (s *Service) outputExpiry(req Request) *time.Time {
	if req.ExpireDate != nil {
		t := req.ExpireDate.UTC()
		return &t
	}
	if s.cfg.DefaultShelfLife > 0 {
		t := s.now().Add(s.cfg.DefaultShelfLife).UTC()
		return &t
	}
	return nil
}

func ingredientsOf(recipe *models.Recipe) []allocator.Ingredient {
	out := make([]allocator.Ingredient, 0, len(recipe.Ingredients))
	for _, ing := range recipe.Ingredients {
		name := ing.ItemTypeID
		if ing.ItemType != nil && ing.ItemType.Name != "" {
			name = ing.ItemType.Name
		}
		out = append(out, allocator.Ingredient{
			ItemTypeID: ing.ItemTypeID,
			ItemName:   name,
			PerUnit:    ing.Quantity,
		})
	}
	return out
}

func buildResult(recipe *models.Recipe, output *models.ItemInstance, plan *allocator.Plan) *Result {
	name := recipe.ResultName()
	if name == "" {
		name = recipe.Name
	}

	used := make([]IngredientUsage, 0, len(plan.Allocations))
	for _, a := range plan.Allocations {
		used = append(used, IngredientUsage{
			ItemInstanceID: a.BatchID,
			ItemTypeID:     a.ItemTypeID,
			ItemName:       a.ItemName,
			QuantityUsed:   a.Taken,
			Remaining:      a.Remaining,
		})
	}

	return &Result{
		Recipe: RecipeRef{ID: recipe.ID, Name: recipe.Name},
		CookedItem: CookedItem{
			ID:         output.ID,
			ItemTypeID: output.ItemTypeID,
			Name:       name,
			Quantity:   output.Count,
			ExpireDate: output.ExpireDate,
		},
		IngredientsUsed: used,
	}
}

func outcomeOf(err error) string {
	var shortage *allocator.ShortageError
	switch {
	case err == nil:
		return monitoring.OutcomeSuccess
	case errors.As(err, &shortage):
		return monitoring.OutcomeInsufficient
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrRecipeNotFound),
		errors.Is(err, ErrNodeNotFound), errors.Is(err, ErrRecipeUnavailable):
		return monitoring.OutcomeInvalid
	case errors.Is(err, ErrConcurrentUpdate):
		return monitoring.OutcomeConflict
	}
	return monitoring.OutcomeError
}
