package models

import "time"

// ItemType represents a kind of good (e.g. "Rice"), not a physical quantity.
type ItemType struct {
	Base
	Name        string `gorm:"not null" json:"item_name"`
	Category    string `json:"item_type"`
	Description string `json:"item_description,omitempty"`
	Image       string `json:"item_image,omitempty"`
	Units       string `json:"units,omitempty"`
	Status      Status `gorm:"not null;default:'Active'" json:"status"`
}

// ItemInstance represents a batch: a countable, depletable quantity of one item
// type sitting at one node. NodeID is nil while the goods are in transit.
type ItemInstance struct {
	Base
	ItemTypeID string     `gorm:"type:varchar(36);not null;index" json:"item_type_id"`
	NodeID     *string    `gorm:"type:varchar(36);index" json:"node_id"`
	Count      int64      `gorm:"column:item_count;not null" json:"item_count"`
	ExpireDate *time.Time `json:"expire_date"`
	Status     Status     `gorm:"not null;default:'Active'" json:"status"`

	ItemType *ItemType `gorm:"foreignkey:ItemTypeID;association_autoupdate:false;association_autocreate:false" json:"item_type,omitempty"`
	Node     *Node     `gorm:"foreignkey:NodeID;association_autoupdate:false;association_autocreate:false" json:"current_node,omitempty"`
}

// ItemName returns the display name of the batch's item type, falling back to
// the type identifier when the association was not loaded.
func (i *ItemInstance) ItemName() string {
	if i.ItemType != nil && i.ItemType.Name != "" {
		return i.ItemType.Name
	}
	return i.ItemTypeID
}

// StockLevel is the available stock of one item type at a node: the sum of
// its active batch counts.
type StockLevel struct {
	ItemTypeID string `json:"item_id"`
	ItemName   string `json:"item_name"`
	Category   string `json:"item_type"`
	Units      string `json:"units,omitempty"`
	TotalCount int64  `json:"total_count"`
	Batches    int    `json:"batches"`
}
