package models

import (
	"github.com/shopspring/decimal"
)

// Recipe represents a transformation rule that consumes ingredient batches at a
// node and produces a batch of the result item type. A nil NodeID makes the
// recipe global; otherwise only its owning node may cook it.
type Recipe struct {
	Base
	Name         string             `gorm:"not null" json:"name"`
	NodeID       *string            `gorm:"type:varchar(36);index" json:"node_id"`
	ResultID     string             `gorm:"type:varchar(36);not null" json:"result_id"`
	Instructions string             `gorm:"type:text" json:"instructions,omitempty"`
	Ingredients  []RecipeIngredient `gorm:"foreignkey:RecipeID" json:"recipe_ingredients"`

	Result *ItemType `gorm:"foreignkey:ResultID;association_autoupdate:false;association_autocreate:false" json:"item_types,omitempty"`
}

// TableName sets the table name for Recipe
func (Recipe) TableName() string {
	return "recipes"
}

// IsGlobal reports whether every node may cook the recipe.
func (r *Recipe) IsGlobal() bool {
	return r.NodeID == nil || *r.NodeID == ""
}

// AvailableAt reports whether the recipe may be cooked at nodeID.
func (r *Recipe) AvailableAt(nodeID string) bool {
	return r.IsGlobal() || *r.NodeID == nodeID
}

// ResultName returns the name of the produced item type if it was loaded.
func (r *Recipe) ResultName() string {
	if r.Result != nil {
		return r.Result.Name
	}
	return ""
}

// RecipeIngredient represents a required ingredient for one serving of a recipe
type RecipeIngredient struct {
	Base
	RecipeID   string          `gorm:"type:varchar(36);not null;index" json:"recipe_id"`
	ItemTypeID string          `gorm:"column:item_id;type:varchar(36);not null" json:"item_id"`
	Quantity   decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"quantity"`
	Note       string          `json:"note,omitempty"`

	ItemType *ItemType `gorm:"foreignkey:ItemTypeID;association_foreignkey:ID;association_autoupdate:false;association_autocreate:false" json:"item_types,omitempty"`
}
