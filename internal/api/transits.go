package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"supplytrack/internal/database"
	"supplytrack/internal/models"
	"supplytrack/internal/transit"
)

type dispatchRequest struct {
	ItemInstanceID string `json:"item_instance_id" binding:"required"`
	SourceNodeID   string `json:"source_node_id" binding:"required"`
	DestNodeID     string `json:"dest_node_id" binding:"required"`
	Count          int64  `json:"count" binding:"required,gt=0"`
	CourierName    string `json:"courier_name"`
	CourierPhone   string `json:"courier_phone"`
}

func (a *API) ListTransits(c *gin.Context) {
	status := models.TransitStatus(c.Query("status"))
	if status != "" && status != models.TransitStatusActive && status != models.TransitStatusCompleted {
		a.fail(c, invalid("status must be active or completed"))
		return
	}
	transits, err := a.store.ListTransits(database.TransitFilter{NodeID: c.Query("node_id"), Status: status})
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", transits)
}

func (a *API) GetTransit(c *gin.Context) {
	tr, err := a.store.GetTransit(c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", tr)
}

// DispatchTransit sends part of a batch from its node toward another node.
func (a *API) DispatchTransit(c *gin.Context) {
	var req dispatchRequest
	if err := bind(c, &req); err != nil {
		a.fail(c, err)
		return
	}
	tr, err := a.transits.Dispatch(c.Request.Context(), transit.DispatchRequest(req))
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Transit dispatched", tr)
}

type completeRequest struct {
	TimeArrival string `json:"time_arrival"`
}

// CompleteTransit records the arrival of goods at the destination node.
func (a *API) CompleteTransit(c *gin.Context) {
	var req completeRequest
	if c.Request.ContentLength > 0 {
		if err := bind(c, &req); err != nil {
			a.fail(c, err)
			return
		}
	}
	arrival, err := parseDate("time_arrival", req.TimeArrival)
	if err != nil {
		a.fail(c, err)
		return
	}
	tr, err := a.transits.Complete(c.Request.Context(), c.Param("id"), arrival)
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Transit completed", tr)
}

type qrRequest struct {
	ItemInstanceID string `json:"item_instance_id" binding:"required"`
	SourceID       string `json:"source_id" binding:"required"`
	DestinationID  string `json:"destination_id" binding:"required"`
	ItemCount      int64  `json:"item_count" binding:"required,gt=0"`
}

// CreateQR issues a signed hand-off label for part of a batch.
func (a *API) CreateQR(c *gin.Context) {
	var req qrRequest
	if err := bind(c, &req); err != nil {
		a.fail(c, err)
		return
	}
	ticket, err := a.transits.IssueQR(c.Request.Context(), transit.DispatchRequest{
		ItemInstanceID: req.ItemInstanceID,
		SourceNodeID:   req.SourceID,
		DestNodeID:     req.DestinationID,
		Count:          req.ItemCount,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "QR code created", ticket)
}

type scanRequest struct {
	CourierName  string `json:"courier_name"`
	CourierPhone string `json:"courier_phone"`
}

// ScanQR dispatches the goods on first scan and records arrival on the next.
func (a *API) ScanQR(c *gin.Context) {
	var req scanRequest
	if c.Request.ContentLength > 0 {
		if err := bind(c, &req); err != nil {
			a.fail(c, err)
			return
		}
	}
	res, err := a.transits.Scan(c.Request.Context(), c.Param("token"), req.CourierName, req.CourierPhone)
	if err != nil {
		a.fail(c, err)
		return
	}
	message := "Transit started"
	if res.Action == transit.EventArrived {
		message = "Transit completed"
	}
	ok(c, http.StatusOK, message, res)
}
