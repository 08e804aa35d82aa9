package cooking

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidRequest is returned for malformed cook requests.
	ErrInvalidRequest = errors.New("invalid cook request")
	// ErrRecipeNotFound is returned when the recipe does not exist.
	ErrRecipeNotFound = errors.New("recipe not found")
	// ErrNodeNotFound is returned when the target node does not exist.
	ErrNodeNotFound = errors.New("node not found")
	// ErrRecipeUnavailable is returned when the recipe belongs to another node.
	ErrRecipeUnavailable = errors.New("recipe is not available at this node")
	// ErrConcurrentUpdate is returned when stock kept changing underneath every attempt.
	ErrConcurrentUpdate = errors.New("stock changed concurrently, try again")
)

// CommitError reports a storage failure while recording a feasible cook. The
// transaction was rolled back, so no stock was deducted.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("failed to record cook, no stock was deducted: %v", e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Request asks to cook Quantity servings of a recipe at a node.
type Request struct {
	RecipeID   string     `json:"recipe_id"`
	NodeID     string     `json:"node_id"`
	Quantity   int64      `json:"quantity"`
	ExpireDate *time.Time `json:"expire_date,omitempty"`
}

func (r Request) validate() error {
	switch {
	case r.RecipeID == "":
		return fmt.Errorf("%w: recipe_id is required", ErrInvalidRequest)
	case r.NodeID == "":
		return fmt.Errorf("%w: node_id is required", ErrInvalidRequest)
	case r.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidRequest)
	}
	return nil
}

// RecipeRef identifies the cooked recipe.
type RecipeRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CookedItem is the batch a cook created.
type CookedItem struct {
	ID         string     `json:"id"`
	ItemTypeID string     `json:"item_type_id"`
	Name       string     `json:"name"`
	Quantity   int64      `json:"quantity"`
	ExpireDate *time.Time `json:"expire_date"`
}

// IngredientUsage is one batch a cook drew from.
type IngredientUsage struct {
	ItemInstanceID string `json:"item_instance_id"`
	ItemTypeID     string `json:"item_type_id"`
	ItemName       string `json:"item_name"`
	QuantityUsed   int64  `json:"quantity_used"`
	Remaining      int64  `json:"remaining"`
}

// Result describes a successful cook.
type Result struct {
	Recipe          RecipeRef         `json:"recipe"`
	CookedItem      CookedItem        `json:"cooked_item"`
	IngredientsUsed []IngredientUsage `json:"ingredients_used"`
	Attempts        int               `json:"-"`
}
