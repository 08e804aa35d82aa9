package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"supplytrack/internal/cooking"
	"supplytrack/internal/database"
	"supplytrack/internal/models"
)

type ingredientRequest struct {
	ID       string          `json:"id"`
	ItemID   string          `json:"item_id" binding:"required"`
	Quantity decimal.Decimal `json:"quantity"`
	Note     string          `json:"note"`
}

type recipeRequest struct {
	Name         *string             `json:"name"`
	NodeID       *string             `json:"node_id"`
	ResultID     *string             `json:"result_id"`
	ResultName   *string             `json:"result_name"`
	Instructions *string             `json:"instructions"`
	Ingredients  []ingredientRequest `json:"recipe_ingredients" binding:"omitempty,dive"`
}

// ingredients checks every line and converts it to a model. Lines must name
// existing item types and use positive quantities.
func (a *API) ingredients(lines []ingredientRequest) ([]models.RecipeIngredient, error) {
	if len(lines) == 0 {
		return nil, invalid("recipe_ingredients must list at least one ingredient")
	}
	out := make([]models.RecipeIngredient, 0, len(lines))
	for _, l := range lines {
		if !l.Quantity.IsPositive() {
			return nil, invalid("quantity for item %s must be greater than zero", l.ItemID)
		}
		if _, err := a.store.GetItemType(l.ItemID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, invalid("unknown item_id %s", l.ItemID)
			}
			return nil, err
		}
		ing := models.RecipeIngredient{ItemTypeID: l.ItemID, Quantity: l.Quantity, Note: l.Note}
		ing.ID = l.ID
		out = append(out, ing)
	}
	return out, nil
}

// resultType resolves the produced item type from result_id, or from
// result_name, creating the type when no item of that name exists yet.
func (a *API) resultType(req recipeRequest) (*models.ItemType, error) {
	if req.ResultID != nil && *req.ResultID != "" {
		it, err := a.store.GetItemType(*req.ResultID)
		if errors.Is(err, database.ErrNotFound) {
			return nil, invalid("unknown result_id %s", *req.ResultID)
		}
		return it, err
	}
	if req.ResultName == nil || *req.ResultName == "" {
		return nil, invalid("result_id or result_name is required")
	}

	it, err := a.store.FindItemTypeByName(*req.ResultName)
	if err == nil {
		return it, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	it = &models.ItemType{Name: *req.ResultName}
	if err := a.store.CreateItemType(it); err != nil {
		return nil, err
	}
	return it, nil
}

func (a *API) checkOwner(nodeID *string) error {
	if nodeID == nil || *nodeID == "" {
		return nil
	}
	if _, err := a.store.GetNode(*nodeID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return invalid("unknown node_id %s", *nodeID)
		}
		return err
	}
	return nil
}

func (a *API) ListRecipes(c *gin.Context) {
	recipes, err := a.store.ListRecipes(c.Query("node_id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", recipes)
}

func (a *API) CreateRecipe(c *gin.Context) {
	var req recipeRequest
	if err := bind(c, &req); err != nil {
		a.fail(c, err)
		return
	}
	if req.Name == nil || *req.Name == "" {
		a.fail(c, invalid("name is required"))
		return
	}
	if err := a.checkOwner(req.NodeID); err != nil {
		a.fail(c, err)
		return
	}
	ingredients, err := a.ingredients(req.Ingredients)
	if err != nil {
		a.fail(c, err)
		return
	}
	result, err := a.resultType(req)
	if err != nil {
		a.fail(c, err)
		return
	}

	recipe := &models.Recipe{
		Name:        *req.Name,
		ResultID:    result.ID,
		Ingredients: ingredients,
	}
	if req.NodeID != nil && *req.NodeID != "" {
		recipe.NodeID = req.NodeID
	}
	if req.Instructions != nil {
		recipe.Instructions = *req.Instructions
	}
	if err := a.store.CreateRecipe(recipe); err != nil {
		a.fail(c, err)
		return
	}

	created, err := a.store.GetRecipe(recipe.ID)
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Recipe created", created)
}

func (a *API) GetRecipe(c *gin.Context) {
	recipe, err := a.store.GetRecipe(c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", recipe)
}

func (a *API) UpdateRecipe(c *gin.Context) {
	var req recipeRequest
	if err := bind(c, &req); err != nil {
		a.fail(c, err)
		return
	}

	fields := map[string]interface{}{}
	if req.Name != nil {
		if *req.Name == "" {
			a.fail(c, invalid("name must not be empty"))
			return
		}
		fields["name"] = *req.Name
	}
	if req.Instructions != nil {
		fields["instructions"] = *req.Instructions
	}
	if req.NodeID != nil {
		if err := a.checkOwner(req.NodeID); err != nil {
			a.fail(c, err)
			return
		}
		if *req.NodeID == "" {
			fields["node_id"] = nil
		} else {
			fields["node_id"] = req.NodeID
		}
	}
	if req.ResultID != nil || req.ResultName != nil {
		result, err := a.resultType(req)
		if err != nil {
			a.fail(c, err)
			return
		}
		fields["result_id"] = result.ID
	}

	var ingredients []models.RecipeIngredient
	if req.Ingredients != nil {
		var err error
		if ingredients, err = a.ingredients(req.Ingredients); err != nil {
			a.fail(c, err)
			return
		}
	}

	recipe, err := a.store.UpdateRecipe(c.Param("id"), fields, ingredients)
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Recipe updated", recipe)
}

func (a *API) DeleteRecipe(c *gin.Context) {
	if err := a.store.DeleteRecipe(c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Recipe deleted", nil)
}

// ApproveRecipe promotes a node's recipe so every node may cook it.
func (a *API) ApproveRecipe(c *gin.Context) {
	recipe, promoted, err := a.store.PromoteRecipe(c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	message := "Recipe approved as global"
	if !promoted {
		message = "Recipe is already global"
	}
	ok(c, http.StatusOK, message, recipe)
}

type cookRequest struct {
	RecipeID   string      `json:"recipe_id" binding:"required"`
	NodeID     string      `json:"node_id" binding:"required"`
	Quantity   json.Number `json:"quantity" binding:"required"`
	ExpireDate string      `json:"expire_date"`
}

// Cook consumes ingredient stock at a node and produces the recipe's result.
func (a *API) Cook(c *gin.Context) {
	var req cookRequest
	if err := bind(c, &req); err != nil {
		a.fail(c, err)
		return
	}
	quantity, err := req.Quantity.Int64()
	if err != nil || quantity <= 0 {
		a.fail(c, invalid("quantity must be a positive whole number, got %q", req.Quantity.String()))
		return
	}
	expire, err := parseDate("expire_date", req.ExpireDate)
	if err != nil {
		a.fail(c, err)
		return
	}

	result, err := a.cooking.Cook(c.Request.Context(), cooking.Request{
		RecipeID:   req.RecipeID,
		NodeID:     req.NodeID,
		Quantity:   quantity,
		ExpireDate: expire,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Recipe cooked successfully", result)
}
