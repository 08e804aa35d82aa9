package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"supplytrack/internal/database"
	"supplytrack/internal/models"
)

type itemTypeRequest struct {
	Name        *string `json:"item_name"`
	Category    *string `json:"item_type"`
	Description *string `json:"item_description"`
	Image       *string `json:"item_image"`
	Units       *string `json:"units"`
	Status      *string `json:"status"`
}

func (r itemTypeRequest) fields() (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	if r.Name != nil {
		if *r.Name == "" {
			return nil, invalid("item_name must not be empty")
		}
		fields["name"] = *r.Name
	}
	if r.Status != nil {
		if !models.Status(*r.Status).Valid() {
			return nil, invalid("status must be Active or Inactive")
		}
		fields["status"] = models.Status(*r.Status)
	}
	for col, v := range map[string]*string{
		"category":    r.Category,
		"description": r.Description,
		"image":       r.Image,
		"units":       r.Units,
	} {
		if v != nil {
			fields[col] = *v
		}
	}
	return fields, nil
}

func (a *API) ListItemTypes(c *gin.Context) {
	types, err := a.store.ListItemTypes()
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", types)
}

func (a *API) CreateItemType(c *gin.Context) {
	var req itemTypeRequest
	if err := bind(c, &req); err != nil {
		a.fail(c, err)
		return
	}
	if req.Name == nil {
		a.fail(c, invalid("item_name is required"))
		return
	}
	if _, err := req.fields(); err != nil {
		a.fail(c, err)
		return
	}

	it := &models.ItemType{Name: *req.Name}
	if req.Category != nil {
		it.Category = *req.Category
	}
	if req.Description != nil {
		it.Description = *req.Description
	}
	if req.Image != nil {
		it.Image = *req.Image
	}
	if req.Units != nil {
		it.Units = *req.Units
	}
	if req.Status != nil {
		it.Status = models.Status(*req.Status)
	}
	if err := a.store.CreateItemType(it); err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Item type created", it)
}

func (a *API) GetItemType(c *gin.Context) {
	it, err := a.store.GetItemType(c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", it)
}

func (a *API) UpdateItemType(c *gin.Context) {
	var req itemTypeRequest
	if err := bind(c, &req); err != nil {
		a.fail(c, err)
		return
	}
	fields, err := req.fields()
	if err != nil {
		a.fail(c, err)
		return
	}
	it, err := a.store.UpdateItemType(c.Param("id"), fields)
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Item type updated", it)
}

func (a *API) DeleteItemType(c *gin.Context) {
	if err := a.store.DeleteItemType(c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Item type deleted", nil)
}

type batchRequest struct {
	ItemTypeID *string `json:"item_type_id"`
	NodeID     *string `json:"node_id"`
	Count      *int64  `json:"item_count"`
	ExpireDate *string `json:"expire_date"`
	Status     *string `json:"status"`
}

func (a *API) batchFields(r batchRequest) (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	if r.ItemTypeID != nil {
		if _, err := a.store.GetItemType(*r.ItemTypeID); err != nil {
			return nil, invalid("unknown item_type_id %s", *r.ItemTypeID)
		}
		fields["item_type_id"] = *r.ItemTypeID
	}
	if r.NodeID != nil {
		if _, err := a.store.GetNode(*r.NodeID); err != nil {
			return nil, invalid("unknown node_id %s", *r.NodeID)
		}
		fields["node_id"] = r.NodeID
	}
	if r.Count != nil {
		if *r.Count < 0 {
			return nil, invalid("item_count must not be negative")
		}
		fields["item_count"] = *r.Count
	}
	if r.ExpireDate != nil {
		expire, err := parseDate("expire_date", *r.ExpireDate)
		if err != nil {
			return nil, err
		}
		fields["expire_date"] = expire
	}
	if r.Status != nil {
		if !models.Status(*r.Status).Valid() {
			return nil, invalid("status must be Active or Inactive")
		}
		fields["status"] = models.Status(*r.Status)
	}
	return fields, nil
}

func (a *API) ListBatches(c *gin.Context) {
	batches, err := a.store.ListBatches(database.BatchFilter{
		NodeID:     c.Query("node_id"),
		ItemTypeID: c.Query("item_type_id"),
		Status:     models.Status(c.Query("status")),
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", batches)
}

func (a *API) CreateBatch(c *gin.Context) {
	var req batchRequest
	if err := bind(c, &req); err != nil {
		a.fail(c, err)
		return
	}
	if req.ItemTypeID == nil || req.NodeID == nil || req.Count == nil {
		a.fail(c, invalid("item_type_id, node_id and item_count are required"))
		return
	}
	fields, err := a.batchFields(req)
	if err != nil {
		a.fail(c, err)
		return
	}

	batch := &models.ItemInstance{
		ItemTypeID: *req.ItemTypeID,
		NodeID:     req.NodeID,
		Count:      *req.Count,
	}
	if expire, found := fields["expire_date"].(*time.Time); found {
		batch.ExpireDate = expire
	}
	if req.Status != nil {
		batch.Status = models.Status(*req.Status)
	}
	if err := a.store.CreateBatch(batch); err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Item instance created", batch)
}

func (a *API) GetBatch(c *gin.Context) {
	batch, err := a.store.GetBatch(c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", batch)
}

func (a *API) UpdateBatch(c *gin.Context) {
	var req batchRequest
	if err := bind(c, &req); err != nil {
		a.fail(c, err)
		return
	}
	fields, err := a.batchFields(req)
	if err != nil {
		a.fail(c, err)
		return
	}
	batch, err := a.store.UpdateBatch(c.Param("id"), fields)
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Item instance updated", batch)
}

func (a *API) DeleteBatch(c *gin.Context) {
	if err := a.store.DeleteBatch(c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Item instance deleted", nil)
}
