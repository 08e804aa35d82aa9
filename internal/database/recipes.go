package database

import (
	"fmt"

	"supplytrack/internal/models"
)

// CreateRecipe stores a recipe together with its ingredient lines.
func (s *Store) CreateRecipe(r *models.Recipe) error {
	return translate(s.db.Create(r).Error)
}

func (s *Store) GetRecipe(id string) (*models.Recipe, error) {
	var r models.Recipe
	if err := s.get(&r, id, "Ingredients", "Ingredients.ItemType", "Result"); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRecipes returns every recipe, or when nodeID is set, the recipes that
// node may cook: its own plus the global ones.
func (s *Store) ListRecipes(nodeID string) ([]models.Recipe, error) {
	q := s.db.Preload("Ingredients").Preload("Ingredients.ItemType").Preload("Result")
	if nodeID != "" {
		q = q.Where("node_id IS NULL OR node_id = ?", nodeID)
	}

	recipes := []models.Recipe{}
	if err := q.Order("name asc").Find(&recipes).Error; err != nil {
		return nil, translate(err)
	}
	return recipes, nil
}

// UpdateRecipe applies fields to the recipe. When ingredients is non-nil the
// stored lines are reconciled with it: lines with a known ID are updated,
// lines without one are added and stored lines not mentioned are removed.
func (s *Store) UpdateRecipe(id string, fields map[string]interface{}, ingredients []models.RecipeIngredient) (*models.Recipe, error) {
	err := s.Transaction(func(tx *Store) error {
		if _, err := tx.GetRecipe(id); err != nil {
			return err
		}
		if err := tx.update(&models.Recipe{}, id, fields); err != nil {
			return err
		}
		if ingredients == nil {
			return nil
		}
		return tx.reconcileIngredients(id, ingredients)
	})
	if err != nil {
		return nil, err
	}
	return s.GetRecipe(id)
}

func (s *Store) reconcileIngredients(recipeID string, incoming []models.RecipeIngredient) error {
	var existing []models.RecipeIngredient
	if err := s.db.Where("recipe_id = ?", recipeID).Find(&existing).Error; err != nil {
		return translate(err)
	}
	stored := make(map[string]bool, len(existing))
	for _, ing := range existing {
		stored[ing.ID] = true
	}

	kept := make(map[string]bool, len(incoming))
	for i := range incoming {
		ing := incoming[i]
		ing.RecipeID = recipeID
		ing.ItemType = nil
		if ing.ID == "" {
			if err := s.db.Create(&ing).Error; err != nil {
				return translate(err)
			}
			continue
		}
		if !stored[ing.ID] {
			return fmt.Errorf("%w: ingredient %s is not part of recipe %s", ErrInvalidReference, ing.ID, recipeID)
		}
		kept[ing.ID] = true
		err := s.update(&models.RecipeIngredient{}, ing.ID, map[string]interface{}{
			"item_id":  ing.ItemTypeID,
			"quantity": ing.Quantity,
			"note":     ing.Note,
		})
		if err != nil {
			return err
		}
	}

	for _, ing := range existing {
		if kept[ing.ID] {
			continue
		}
		if err := s.db.Unscoped().Delete(&models.RecipeIngredient{}, "id = ?", ing.ID).Error; err != nil {
			return translate(err)
		}
	}
	return nil
}

// DeleteRecipe removes a recipe and its ingredient lines.
func (s *Store) DeleteRecipe(id string) error {
	return s.Transaction(func(tx *Store) error {
		if err := tx.remove(&models.Recipe{}, id); err != nil {
			return err
		}
		return translate(tx.db.Unscoped().Delete(&models.RecipeIngredient{}, "recipe_id = ?", id).Error)
	})
}

// PromoteRecipe makes a node-owned recipe global. promoted is false when the
// recipe was already global.
func (s *Store) PromoteRecipe(id string) (recipe *models.Recipe, promoted bool, err error) {
	recipe, err = s.GetRecipe(id)
	if err != nil {
		return nil, false, err
	}
	if recipe.IsGlobal() {
		return recipe, false, nil
	}
	if err := s.update(&models.Recipe{}, id, map[string]interface{}{"node_id": nil}); err != nil {
		return nil, false, err
	}
	recipe, err = s.GetRecipe(id)
	return recipe, err == nil, err
}
