package models

// Report represents an issue raised about goods received at a node.
type Report struct {
	Base
	UserID           string       `gorm:"type:varchar(64);not null" json:"user_id"`
	ItemTypeID       string       `gorm:"column:item_id;type:varchar(36);not null" json:"item_id"`
	ItemTransitID    *string      `gorm:"type:varchar(36);index" json:"item_transit_id"`
	NodeID           *string      `gorm:"type:varchar(36);index" json:"node_id"`
	Type             ReportType   `gorm:"not null" json:"type"`
	Status           ReportStatus `gorm:"not null" json:"status"`
	Description      string       `gorm:"type:text" json:"description,omitempty"`
	ReceivedQuantity *int64       `json:"received_quantity"`
	ExpiredQuantity  *int64       `json:"expired_quantity"`
	Evidence         StringSlice  `gorm:"type:text" json:"evidence"`

	ItemTransit *ItemTransit `gorm:"foreignkey:ItemTransitID;association_autoupdate:false;association_autocreate:false" json:"item_transit,omitempty"`
}

// ReportType represents what kind of issue was reported
type ReportType string

const (
	// Report types
	ReportTypeStockDiscrepancy ReportType = "STOCK_DISCREPANCY"
	ReportTypeExpiredItem      ReportType = "EXPIRED_ITEM"
	ReportTypeOtherIssue       ReportType = "OTHER_ISSUE"
)

// Valid reports whether t is a known report type.
func (t ReportType) Valid() bool {
	switch t {
	case ReportTypeStockDiscrepancy, ReportTypeExpiredItem, ReportTypeOtherIssue:
		return true
	}
	return false
}

// ReportStatus represents the review state of a report
type ReportStatus string

const (
	// Report statuses
	ReportStatusInReview ReportStatus = "IN_REVIEW"
	ReportStatusResolved ReportStatus = "RESOLVED"
	ReportStatusRejected ReportStatus = "REJECTED"
)

// Valid reports whether s is a known report status.
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusInReview, ReportStatusResolved, ReportStatusRejected:
		return true
	}
	return false
}
