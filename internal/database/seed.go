package database

import (
	"fmt"

	"github.com/shopspring/decimal"

	"supplytrack/internal/models"
)

// Seed fills an empty database with a small demo chain: one assembly kitchen
// stocked with rice and eggs and a global Fried Rice recipe. It does nothing
// once any node exists.
func Seed(s *Store) error {
	var nodeCount int64
	if err := s.db.Model(&models.Node{}).Count(&nodeCount).Error; err != nil {
		return fmt.Errorf("failed to count nodes: %w", err)
	}
	if nodeCount > 0 {
		return nil
	}

	return s.Transaction(func(tx *Store) error {
		kitchen := models.Node{Name: "Central Kitchen", Type: models.NodeTypeAssembly, Address: "1 Market Street"}
		pantry := models.Node{Name: "North Pantry", Type: models.NodeTypeDistribution, Address: "9 Harbor Road"}
		for _, n := range []*models.Node{&kitchen, &pantry} {
			if err := tx.CreateNode(n); err != nil {
				return err
			}
		}

		rice := models.ItemType{Name: "Rice", Category: "Grain", Units: "cups"}
		egg := models.ItemType{Name: "Egg", Category: "Protein", Units: "pcs"}
		friedRice := models.ItemType{Name: "Fried Rice", Category: "Meal", Units: "servings"}
		for _, it := range []*models.ItemType{&rice, &egg, &friedRice} {
			if err := tx.CreateItemType(it); err != nil {
				return err
			}
		}

		stock := []models.ItemInstance{
			{ItemTypeID: rice.ID, NodeID: &kitchen.ID, Count: 10},
			{ItemTypeID: egg.ID, NodeID: &kitchen.ID, Count: 6},
		}
		for i := range stock {
			if err := tx.CreateBatch(&stock[i]); err != nil {
				return err
			}
		}

		recipe := models.Recipe{
			Name:         "Fried Rice",
			ResultID:     friedRice.ID,
			Instructions: "Fry the eggs, add the rice, stir until hot.",
			Ingredients: []models.RecipeIngredient{
				{ItemTypeID: rice.ID, Quantity: decimal.NewFromInt(2)},
				{ItemTypeID: egg.ID, Quantity: decimal.NewFromInt(1)},
			},
		}
		return tx.CreateRecipe(&recipe)
	})
}
