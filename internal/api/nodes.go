package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"supplytrack/internal/database"
	"supplytrack/internal/models"
)

type nodeRequest struct {
	Name      *string  `json:"node_name"`
	Type      *string  `json:"node_type"`
	Address   *string  `json:"node_address"`
	Latitude  *float64 `json:"node_latitude"`
	Longitude *float64 `json:"node_longitude"`
	Status    *string  `json:"node_status"`
}

// fields validates the request and returns the columns it sets.
func (r nodeRequest) fields() (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	if r.Name != nil {
		if *r.Name == "" {
			return nil, invalid("node_name must not be empty")
		}
		fields["name"] = *r.Name
	}
	if r.Type != nil {
		if !models.NodeType(*r.Type).Valid() {
			return nil, invalid("node_type must be Source, Assembly or Distribution")
		}
		fields["type"] = models.NodeType(*r.Type)
	}
	if r.Status != nil {
		if !models.Status(*r.Status).Valid() {
			return nil, invalid("node_status must be Active or Inactive")
		}
		fields["status"] = models.Status(*r.Status)
	}
	if r.Address != nil {
		fields["address"] = *r.Address
	}
	if r.Latitude != nil {
		if *r.Latitude < -90 || *r.Latitude > 90 {
			return nil, invalid("node_latitude out of range")
		}
		fields["latitude"] = r.Latitude
	}
	if r.Longitude != nil {
		if *r.Longitude < -180 || *r.Longitude > 180 {
			return nil, invalid("node_longitude out of range")
		}
		fields["longitude"] = r.Longitude
	}
	return fields, nil
}

func (a *API) ListNodes(c *gin.Context) {
	nodes, err := a.store.ListNodes(database.NodeFilter{
		Type:   models.NodeType(c.Query("node_type")),
		Status: models.Status(c.Query("status")),
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", nodes)
}

func (a *API) CreateNode(c *gin.Context) {
	var req nodeRequest
	if err := bind(c, &req); err != nil {
		a.fail(c, err)
		return
	}
	if req.Name == nil || req.Type == nil {
		a.fail(c, invalid("node_name and node_type are required"))
		return
	}
	if _, err := req.fields(); err != nil {
		a.fail(c, err)
		return
	}

	node := &models.Node{
		Name:      *req.Name,
		Type:      models.NodeType(*req.Type),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}
	if req.Address != nil {
		node.Address = *req.Address
	}
	if req.Status != nil {
		node.Status = models.Status(*req.Status)
	}
	if err := a.store.CreateNode(node); err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Node created", node)
}

func (a *API) GetNode(c *gin.Context) {
	node, err := a.store.GetNode(c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", node)
}

func (a *API) UpdateNode(c *gin.Context) {
	var req nodeRequest
	if err := bind(c, &req); err != nil {
		a.fail(c, err)
		return
	}
	fields, err := req.fields()
	if err != nil {
		a.fail(c, err)
		return
	}

	node, err := a.store.UpdateNode(c.Param("id"), fields)
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Node updated", node)
}

func (a *API) DeleteNode(c *gin.Context) {
	if err := a.store.DeleteNode(c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Node deleted", nil)
}

// GetNodeInventory returns the available stock per item type at a node.
func (a *API) GetNodeInventory(c *gin.Context) {
	node, err := a.store.GetNode(c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	levels, err := a.store.NodeInventory(node.ID)
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", gin.H{"node": node, "inventory": levels})
}
