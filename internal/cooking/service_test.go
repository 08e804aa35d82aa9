package cooking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplytrack/internal/allocator"
	"supplytrack/internal/config"
	"supplytrack/internal/database"
	"supplytrack/internal/feed"
	"supplytrack/internal/models"
	"supplytrack/internal/monitoring"
)

type fixture struct {
	db      *gorm.DB
	store   *database.Store
	node    *models.Node
	rice    *models.ItemType
	egg     *models.ItemType
	dish    *models.ItemType
	recipe  *models.Recipe
	rice1   *models.ItemInstance
	rice2   *models.ItemInstance
	eggs    *models.ItemInstance
	monitor *monitoring.Monitor
	events  *recorder
}

type recorder struct {
	mu     sync.Mutex
	events []feed.Event
}

func (r *recorder) Publish(e feed.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

// newFixture stocks a kitchen for Fried Rice: Rice [2024-01-01: 4,
// 2024-02-01: 5] and Egg [2024-01-15: 3].
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite3", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	f := &fixture{db: db, store: database.NewStore(db), monitor: monitoring.NewMonitor(), events: &recorder{}}

	f.node = &models.Node{Name: "Kitchen", Type: models.NodeTypeAssembly}
	require.NoError(t, f.store.CreateNode(f.node))

	f.rice = &models.ItemType{Name: "Rice"}
	f.egg = &models.ItemType{Name: "Egg"}
	f.dish = &models.ItemType{Name: "Fried Rice"}
	for _, it := range []*models.ItemType{f.rice, f.egg, f.dish} {
		require.NoError(t, f.store.CreateItemType(it))
	}

	f.rice1 = f.batch(t, f.rice.ID, 4, date("2024-01-01"))
	f.rice2 = f.batch(t, f.rice.ID, 5, date("2024-02-01"))
	f.eggs = f.batch(t, f.egg.ID, 3, date("2024-01-15"))

	f.recipe = &models.Recipe{
		Name:     "Fried Rice",
		ResultID: f.dish.ID,
		Ingredients: []models.RecipeIngredient{
			{ItemTypeID: f.rice.ID, Quantity: decimal.NewFromInt(2)},
			{ItemTypeID: f.egg.ID, Quantity: decimal.NewFromInt(1)},
		},
	}
	require.NoError(t, f.store.CreateRecipe(f.recipe))
	return f
}

func (f *fixture) batch(t *testing.T, typeID string, count int64, expire *time.Time) *models.ItemInstance {
	t.Helper()
	b := &models.ItemInstance{ItemTypeID: typeID, NodeID: &f.node.ID, Count: count, ExpireDate: expire}
	require.NoError(t, f.store.CreateBatch(b))
	return b
}

func (f *fixture) service(cfg config.CookingConfig) *Service {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	return NewService(f.store, nil, cfg, nil, WithMonitor(f.monitor), WithPublisher(f.events))
}

func (f *fixture) count(t *testing.T, id string) int64 {
	t.Helper()
	b, err := f.store.GetBatch(id)
	require.NoError(t, err)
	return b.Count
}

func TestCook_FriedRice(t *testing.T) {
	f := newFixture(t)
	svc := f.service(config.CookingConfig{})

	res, err := svc.Cook(context.Background(), Request{RecipeID: f.recipe.ID, NodeID: f.node.ID, Quantity: 3})
	require.NoError(t, err)

	assert.Equal(t, f.recipe.ID, res.Recipe.ID)
	assert.Equal(t, "Fried Rice", res.CookedItem.Name)
	assert.Equal(t, int64(3), res.CookedItem.Quantity)
	assert.Nil(t, res.CookedItem.ExpireDate)
	assert.Equal(t, 1, res.Attempts)

	require.Len(t, res.IngredientsUsed, 3)
	assert.Equal(t, IngredientUsage{ItemInstanceID: f.rice1.ID, ItemTypeID: f.rice.ID, ItemName: "Rice", QuantityUsed: 4, Remaining: 0}, res.IngredientsUsed[0])
	assert.Equal(t, IngredientUsage{ItemInstanceID: f.rice2.ID, ItemTypeID: f.rice.ID, ItemName: "Rice", QuantityUsed: 2, Remaining: 3}, res.IngredientsUsed[1])
	assert.Equal(t, IngredientUsage{ItemInstanceID: f.eggs.ID, ItemTypeID: f.egg.ID, ItemName: "Egg", QuantityUsed: 3, Remaining: 0}, res.IngredientsUsed[2])

	assert.Equal(t, int64(0), f.count(t, f.rice1.ID))
	assert.Equal(t, int64(3), f.count(t, f.rice2.ID))
	assert.Equal(t, int64(0), f.count(t, f.eggs.ID))

	cooked, err := f.store.GetBatch(res.CookedItem.ID)
	require.NoError(t, err)
	assert.Equal(t, f.dish.ID, cooked.ItemTypeID)
	assert.Equal(t, int64(3), cooked.Count)
	assert.Equal(t, f.node.ID, *cooked.NodeID)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, feed.EventCookCompleted, f.events.events[0].Type)
	metrics := f.monitor.GetMetrics()
	assert.Equal(t, int64(1), metrics["cooks_success"])
}

func TestCook_InsufficientStockLeavesCountsUntouched(t *testing.T) {
	f := newFixture(t)
	svc := f.service(config.CookingConfig{})

	_, err := svc.Cook(context.Background(), Request{RecipeID: f.recipe.ID, NodeID: f.node.ID, Quantity: 5})
	require.Error(t, err)

	var shortage *allocator.ShortageError
	require.True(t, errors.As(err, &shortage))
	require.Len(t, shortage.Shortages, 2)
	assert.Equal(t, "Rice", shortage.Shortages[0].ItemName)
	assert.Equal(t, int64(10), shortage.Shortages[0].Required)
	assert.Equal(t, int64(9), shortage.Shortages[0].Available)
	assert.Equal(t, int64(2), shortage.Shortages[1].Missing())
	assert.Contains(t, err.Error(), "Rice (need 10, have 9, short 1)")

	assert.Equal(t, int64(4), f.count(t, f.rice1.ID))
	assert.Equal(t, int64(5), f.count(t, f.rice2.ID))
	assert.Equal(t, int64(3), f.count(t, f.eggs.ID))

	batches, err := f.store.ListBatches(database.BatchFilter{ItemTypeID: f.dish.ID})
	require.NoError(t, err)
	assert.Empty(t, batches)
	assert.Empty(t, f.events.events)
}

func TestCook_MissingIngredientEntirely(t *testing.T) {
	f := newFixture(t)
	oil := &models.ItemType{Name: "Oil"}
	require.NoError(t, f.store.CreateItemType(oil))
	_, err := f.store.UpdateRecipe(f.recipe.ID, nil, append(f.recipe.Ingredients,
		models.RecipeIngredient{ItemTypeID: oil.ID, Quantity: decimal.NewFromInt(1)}))
	require.NoError(t, err)

	_, err = f.service(config.CookingConfig{}).Cook(context.Background(), Request{RecipeID: f.recipe.ID, NodeID: f.node.ID, Quantity: 1})
	var shortage *allocator.ShortageError
	require.True(t, errors.As(err, &shortage))
	require.Len(t, shortage.Shortages, 1)
	assert.Equal(t, "Oil", shortage.Shortages[0].ItemName)
	assert.Equal(t, int64(0), shortage.Shortages[0].Available)
	assert.Equal(t, int64(4), f.count(t, f.rice1.ID))
}

func TestCook_Rejections(t *testing.T) {
	f := newFixture(t)
	svc := f.service(config.CookingConfig{})
	ctx := context.Background()

	other := &models.Node{Name: "Pantry", Type: models.NodeTypeDistribution}
	require.NoError(t, f.store.CreateNode(other))
	owned := &models.Recipe{
		Name:        "House Special",
		NodeID:      &other.ID,
		ResultID:    f.dish.ID,
		Ingredients: []models.RecipeIngredient{{ItemTypeID: f.rice.ID, Quantity: decimal.NewFromInt(1)}},
	}
	require.NoError(t, f.store.CreateRecipe(owned))

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"zero quantity", Request{RecipeID: f.recipe.ID, NodeID: f.node.ID, Quantity: 0}, ErrInvalidRequest},
		{"negative quantity", Request{RecipeID: f.recipe.ID, NodeID: f.node.ID, Quantity: -2}, ErrInvalidRequest},
		{"missing recipe id", Request{NodeID: f.node.ID, Quantity: 1}, ErrInvalidRequest},
		{"unknown recipe", Request{RecipeID: "nope", NodeID: f.node.ID, Quantity: 1}, ErrRecipeNotFound},
		{"unknown node", Request{RecipeID: f.recipe.ID, NodeID: "nope", Quantity: 1}, ErrNodeNotFound},
		{"other node's recipe", Request{RecipeID: owned.ID, NodeID: f.node.ID, Quantity: 1}, ErrRecipeUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Cook(ctx, tt.req)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	assert.Equal(t, int64(4), f.count(t, f.rice1.ID))
}

func TestCook_ExpiryDefaults(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	svc := f.service(config.CookingConfig{DefaultShelfLife: 48 * time.Hour})
	svc.now = func() time.Time { return now }

	res, err := svc.Cook(context.Background(), Request{RecipeID: f.recipe.ID, NodeID: f.node.ID, Quantity: 1})
	require.NoError(t, err)
	require.NotNil(t, res.CookedItem.ExpireDate)
	assert.True(t, now.Add(48*time.Hour).Equal(*res.CookedItem.ExpireDate))

	explicit := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	res, err = svc.Cook(context.Background(), Request{RecipeID: f.recipe.ID, NodeID: f.node.ID, Quantity: 1, ExpireDate: &explicit})
	require.NoError(t, err)
	assert.True(t, explicit.Equal(*res.CookedItem.ExpireDate))
}

func TestCook_RetriesAfterConcurrentChange(t *testing.T) {
	f := newFixture(t)
	svc := f.service(config.CookingConfig{MaxAttempts: 3})

	calls := 0
	svc.beforeCommit = func() {
		calls++
		if calls == 1 {
			// another request takes one egg between planning and commit
			require.NoError(t, f.store.DeductBatch(f.eggs.ID, 3, 2))
		}
	}

	res, err := svc.Cook(context.Background(), Request{RecipeID: f.recipe.ID, NodeID: f.node.ID, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, int64(0), f.count(t, f.eggs.ID))
	assert.Equal(t, int64(0), f.count(t, f.rice1.ID))
	assert.Equal(t, int64(5), f.count(t, f.rice2.ID))
}

func TestCook_GivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	svc := f.service(config.CookingConfig{MaxAttempts: 2})

	svc.beforeCommit = func() {
		b, err := f.store.GetBatch(f.rice1.ID)
		require.NoError(t, err)
		_, err = f.store.UpdateBatch(b.ID, map[string]interface{}{"item_count": b.Count + 1})
		require.NoError(t, err)
	}

	_, err := svc.Cook(context.Background(), Request{RecipeID: f.recipe.ID, NodeID: f.node.ID, Quantity: 1})
	assert.True(t, errors.Is(err, ErrConcurrentUpdate))
	// only the simulated writes landed
	assert.Equal(t, int64(6), f.count(t, f.rice1.ID))
	assert.Equal(t, int64(3), f.count(t, f.eggs.ID))
}

func TestCook_ConcurrentRequestsNeverOversell(t *testing.T) {
	f := newFixture(t)
	svc := f.service(config.CookingConfig{})

	// 9 rice and 3 eggs cover exactly three single servings
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		short     int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Cook(context.Background(), Request{RecipeID: f.recipe.ID, NodeID: f.node.ID, Quantity: 1})
			mu.Lock()
			defer mu.Unlock()
			var shortage *allocator.ShortageError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &shortage):
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 5, short)
	assert.Equal(t, int64(0), f.count(t, f.eggs.ID))
	assert.Equal(t, int64(0), f.count(t, f.rice1.ID))
	assert.Equal(t, int64(3), f.count(t, f.rice2.ID))
}

func TestCook_RejectsOverflowingQuantity(t *testing.T) {
	f := newFixture(t)
	svc := f.service(config.CookingConfig{})

	// 2 rice per serving times 2^62 servings does not fit in int64
	_, err := svc.Cook(context.Background(), Request{RecipeID: f.recipe.ID, NodeID: f.node.ID, Quantity: 1 << 62})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
	assert.True(t, errors.Is(err, allocator.ErrQuantityTooLarge))

	assert.Equal(t, int64(4), f.count(t, f.rice1.ID))
	assert.Equal(t, int64(5), f.count(t, f.rice2.ID))
	assert.Equal(t, int64(3), f.count(t, f.eggs.ID))

	batches, err := f.store.ListBatches(database.BatchFilter{ItemTypeID: f.dish.ID})
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestCook_FailedCommitLeavesNoPartialWrites(t *testing.T) {
	f := newFixture(t)
	svc := f.service(config.CookingConfig{})

	// deductions are updates, so they run; the output insert then aborts
	svc.beforeCommit = func() {
		require.NoError(t, f.db.Exec(`CREATE TRIGGER reject_batches BEFORE INSERT ON item_instances
			BEGIN SELECT RAISE(ABORT, 'disk full'); END`).Error)
	}

	_, err := svc.Cook(context.Background(), Request{RecipeID: f.recipe.ID, NodeID: f.node.ID, Quantity: 3})
	var commitErr *CommitError
	require.True(t, errors.As(err, &commitErr), "got %v", err)
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, int64(4), f.count(t, f.rice1.ID))
	assert.Equal(t, int64(5), f.count(t, f.rice2.ID))
	assert.Equal(t, int64(3), f.count(t, f.eggs.ID))

	batches, err := f.store.ListBatches(database.BatchFilter{ItemTypeID: f.dish.ID})
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestCommitError(t *testing.T) {
	cause := errors.New("disk full")
	err := &CommitError{Err: cause}
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "no stock was deducted")
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, monitoring.OutcomeSuccess, outcomeOf(nil))
	assert.Equal(t, monitoring.OutcomeInsufficient, outcomeOf(&allocator.ShortageError{}))
	assert.Equal(t, monitoring.OutcomeInvalid, outcomeOf(ErrRecipeNotFound))
	assert.Equal(t, monitoring.OutcomeConflict, outcomeOf(ErrConcurrentUpdate))
	assert.Equal(t, monitoring.OutcomeError, outcomeOf(&CommitError{Err: errors.New("x")}))
}
