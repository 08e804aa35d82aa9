package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"supplytrack/internal/database"
	"supplytrack/internal/models"
)

type reportRequest struct {
	UserID           string   `json:"user_id" binding:"required"`
	ItemTypeID       string   `json:"item_id" binding:"required"`
	ItemTransitID    *string  `json:"item_transit_id"`
	NodeID           *string  `json:"node_id"`
	Type             string   `json:"type" binding:"required"`
	Description      string   `json:"description"`
	ReceivedQuantity *int64   `json:"received_quantity" binding:"omitempty,gte=0"`
	ExpiredQuantity  *int64   `json:"expired_quantity" binding:"omitempty,gte=0"`
	Evidence         []string `json:"evidence"`
}

func (a *API) ListReports(c *gin.Context) {
	reports, err := a.store.ListReports(c.Query("node_id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", reports)
}

func (a *API) CreateReport(c *gin.Context) {
	var req reportRequest
	if err := bind(c, &req); err != nil {
		a.fail(c, err)
		return
	}
	if !models.ReportType(req.Type).Valid() {
		a.fail(c, invalid("type must be STOCK_DISCREPANCY, EXPIRED_ITEM or OTHER_ISSUE"))
		return
	}
	if _, err := a.store.GetItemType(req.ItemTypeID); err != nil {
		a.fail(c, refError("item_id", req.ItemTypeID, err))
		return
	}
	if req.ItemTransitID != nil {
		if _, err := a.store.GetTransit(*req.ItemTransitID); err != nil {
			a.fail(c, refError("item_transit_id", *req.ItemTransitID, err))
			return
		}
	}
	if req.NodeID != nil {
		if _, err := a.store.GetNode(*req.NodeID); err != nil {
			a.fail(c, refError("node_id", *req.NodeID, err))
			return
		}
	}

	report := &models.Report{
		UserID:           req.UserID,
		ItemTypeID:       req.ItemTypeID,
		ItemTransitID:    req.ItemTransitID,
		NodeID:           req.NodeID,
		Type:             models.ReportType(req.Type),
		Status:           models.ReportStatusInReview,
		Description:      req.Description,
		ReceivedQuantity: req.ReceivedQuantity,
		ExpiredQuantity:  req.ExpiredQuantity,
		Evidence:         models.StringSlice(req.Evidence),
	}
	if err := a.store.CreateReport(report); err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, "Report submitted", report)
}

func (a *API) GetReport(c *gin.Context) {
	report, err := a.store.GetReport(c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "", report)
}

type reportStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (a *API) UpdateReportStatus(c *gin.Context) {
	var req reportStatusRequest
	if err := bind(c, &req); err != nil {
		a.fail(c, err)
		return
	}
	status := models.ReportStatus(req.Status)
	if !status.Valid() {
		a.fail(c, invalid("status must be IN_REVIEW, RESOLVED or REJECTED"))
		return
	}
	report, err := a.store.UpdateReportStatus(c.Param("id"), status)
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Report status updated", report)
}

func refError(field, id string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return invalid("unknown %s %s", field, id)
	}
	return err
}
