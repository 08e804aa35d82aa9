// Package allocator plans how a cook draws ingredient stock from batches.
//
// Everything here is pure: callers read the candidate batches, ask for a
// plan, and only write to storage once the whole plan is known to succeed.
package allocator

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidMultiplier is returned when the requested number of servings is not positive.
	ErrInvalidMultiplier = errors.New("multiplier must be greater than zero")
	// ErrNoIngredients is returned for a recipe without ingredient lines.
	ErrNoIngredients = errors.New("recipe has no ingredients")
	// ErrInvalidQuantity is returned for an ingredient line with a non-positive quantity.
	ErrInvalidQuantity = errors.New("ingredient quantity must be greater than zero")
	// ErrQuantityTooLarge is returned when a scaled requirement does not fit in a batch count.
	ErrQuantityTooLarge = errors.New("required quantity is too large")
)

var maxQuantity = decimal.NewFromInt(math.MaxInt64)

// Ingredient is one recipe line: how much of an item type a single serving uses.
type Ingredient struct {
	ItemTypeID string
	ItemName   string
	PerUnit    decimal.Decimal
}

// Requirement is the total amount of one item type a cook consumes.
type Requirement struct {
	ItemTypeID string
	ItemName   string
	Quantity   int64
}

// Candidate is a batch that may be drawn from.
type Candidate struct {
	BatchID    string
	ItemTypeID string
	Count      int64
	ExpireDate *time.Time
}

// Allocation is a planned deduction from one batch. Previous is the count the
// plan was computed against; committing must fail if the batch no longer
// holds exactly that many.
type Allocation struct {
	BatchID    string
	ItemTypeID string
	ItemName   string
	Previous   int64
	Taken      int64
	Remaining  int64
}

// Plan is a complete, feasible allocation for every requirement.
type Plan struct {
	Requirements []Requirement
	Allocations  []Allocation
}

// Taken returns the total planned deduction for an item type.
func (p *Plan) Taken(itemTypeID string) int64 {
	var total int64
	for _, a := range p.Allocations {
		if a.ItemTypeID == itemTypeID {
			total += a.Taken
		}
	}
	return total
}

// Shortage describes one under-supplied item type.
type Shortage struct {
	ItemTypeID string
	ItemName   string
	Required   int64
	Available  int64
}

// Missing is the amount still needed after every batch was drained.
func (s Shortage) Missing() int64 {
	return s.Required - s.Available
}

// ShortageError is returned when at least one requirement cannot be covered.
type ShortageError struct {
	Shortages []Shortage
}

func (e *ShortageError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		name := s.ItemName
		if name == "" {
			name = s.ItemTypeID
		}
		parts = append(parts, fmt.Sprintf("%s (need %d, have %d, short %d)", name, s.Required, s.Available, s.Missing()))
	}
	return "insufficient stock for ingredients: " + strings.Join(parts, "; ")
}

// Requirements multiplies every ingredient line by multiplier and merges lines
// that reference the same item type. Fractional totals round up, since a
// batch count cannot be split. The result keeps first-appearance order.
func Requirements(ingredients []Ingredient, multiplier int64) ([]Requirement, error) {
	if multiplier <= 0 {
		return nil, ErrInvalidMultiplier
	}
	if len(ingredients) == 0 {
		return nil, ErrNoIngredients
	}

	perUnit := make(map[string]decimal.Decimal, len(ingredients))
	names := make(map[string]string, len(ingredients))
	order := make([]string, 0, len(ingredients))

	for _, ing := range ingredients {
		if !ing.PerUnit.IsPositive() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, ing.ItemTypeID)
		}
		sum, seen := perUnit[ing.ItemTypeID]
		if !seen {
			order = append(order, ing.ItemTypeID)
			sum = decimal.Zero
		}
		perUnit[ing.ItemTypeID] = sum.Add(ing.PerUnit)
		if names[ing.ItemTypeID] == "" {
			names[ing.ItemTypeID] = ing.ItemName
		}
	}

	m := decimal.NewFromInt(multiplier)
	reqs := make([]Requirement, 0, len(order))
	for _, id := range order {
		total := perUnit[id].Mul(m).Ceil()
		if total.GreaterThan(maxQuantity) {
			name := names[id]
			if name == "" {
				name = id
			}
			return nil, fmt.Errorf("%w: %s needs %s units", ErrQuantityTooLarge, name, total)
		}
		reqs = append(reqs, Requirement{
			ItemTypeID: id,
			ItemName:   names[id],
			Quantity:   total.IntPart(),
		})
	}
	return reqs, nil
}

// Order sorts candidates earliest-expiring first. Batches without an expiry
// date go last; ties break on batch identifier so the order is deterministic.
func Order(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		switch {
		case a.ExpireDate == nil && b.ExpireDate != nil:
			return false
		case a.ExpireDate != nil && b.ExpireDate == nil:
			return true
		case a.ExpireDate != nil && b.ExpireDate != nil && !a.ExpireDate.Equal(*b.ExpireDate):
			return a.ExpireDate.Before(*b.ExpireDate)
		}
		return a.BatchID < b.BatchID
	})
}

// Allocate walks each requirement's candidates in FIFO order, taking
// min(remaining, count) from each batch until the requirement is met.
// candidates is keyed by item type; the slices are not modified.
// If any requirement is left uncovered the result is a *ShortageError listing
// every short item type and no plan is returned.
func Allocate(reqs []Requirement, candidates map[string][]Candidate) (*Plan, error) {
	plan := &Plan{Requirements: reqs}
	var shortages []Shortage

	for _, req := range reqs {
		if req.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, req.ItemTypeID)
		}
		batches := append([]Candidate(nil), candidates[req.ItemTypeID]...)
		Order(batches)

		remaining := req.Quantity
		var available int64
		var planned []Allocation

		for _, c := range batches {
			if c.Count <= 0 {
				continue
			}
			available += c.Count
			if remaining == 0 {
				continue
			}
			take := min(remaining, c.Count)
			planned = append(planned, Allocation{
				BatchID:    c.BatchID,
				ItemTypeID: req.ItemTypeID,
				ItemName:   req.ItemName,
				Previous:   c.Count,
				Taken:      take,
				Remaining:  c.Count - take,
			})
			remaining -= take
		}

		if remaining > 0 {
			shortages = append(shortages, Shortage{
				ItemTypeID: req.ItemTypeID,
				ItemName:   req.ItemName,
				Required:   req.Quantity,
				Available:  available,
			})
			continue
		}
		plan.Allocations = append(plan.Allocations, planned...)
	}

	if len(shortages) > 0 {
		return nil, &ShortageError{Shortages: shortages}
	}
	return plan, nil
}
