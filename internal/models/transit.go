package models

import "time"

// ItemTransit represents the movement of part of a batch between two nodes.
// The item type and expiry are captured at dispatch so the arriving batch can
// be created even if the source batch has since been drained or edited.
type ItemTransit struct {
	Base
	ItemInstanceID string        `gorm:"type:varchar(36);not null;index" json:"item_instance_id"`
	ItemTypeID     string        `gorm:"type:varchar(36);not null" json:"item_type_id"`
	SourceNodeID   string        `gorm:"type:varchar(36);not null;index" json:"source_node_id"`
	DestNodeID     string        `gorm:"type:varchar(36);not null;index" json:"dest_node_id"`
	Count          int64         `gorm:"column:item_transit_count;not null" json:"item_transit_count"`
	ExpireDate     *time.Time    `json:"expire_date,omitempty"`
	TimeDeparture  time.Time     `json:"time_departure"`
	TimeArrival    *time.Time    `json:"time_arrival"`
	CourierName    string        `json:"courier_name,omitempty"`
	CourierPhone   string        `json:"courier_phone,omitempty"`
	QRCodeID       *string       `gorm:"type:varchar(36)" json:"qr_id,omitempty"`
	ArrivedBatchID *string       `gorm:"type:varchar(36)" json:"arrived_item_instance_id,omitempty"`
	Status         TransitStatus `gorm:"not null" json:"status"`
}

// TransitStatus represents the state of a transit
type TransitStatus string

const (
	// Transit statuses
	TransitStatusActive    TransitStatus = "active"
	TransitStatusCompleted TransitStatus = "completed"
)

// Duration returns how long the goods were on the road, or zero while the
// transit is still active.
func (t *ItemTransit) Duration() time.Duration {
	if t.TimeArrival == nil {
		return 0
	}
	return t.TimeArrival.Sub(t.TimeDeparture)
}

// QRCode represents a printed hand-off label. Scanning it the first time
// dispatches the goods; scanning it again records their arrival.
type QRCode struct {
	Base
	ItemInstanceID string  `gorm:"type:varchar(36);not null" json:"item_instance_id"`
	SourceID       string  `gorm:"type:varchar(36);not null" json:"source_id"`
	DestinationID  string  `gorm:"type:varchar(36);not null" json:"destination_id"`
	ItemCount      int64   `gorm:"not null" json:"item_count"`
	TransitID      *string `gorm:"type:varchar(36)" json:"item_transit_id,omitempty"`
}

// TableName sets the table name for QRCode
func (QRCode) TableName() string {
	return "qr_codes"
}
