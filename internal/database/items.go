package database

import (
	"fmt"

	"supplytrack/internal/models"
)

// batchOrder sorts batches the way the allocator consumes them: soonest expiry
// first, undated batches last.
const batchOrder = "item_instances.expire_date IS NULL, item_instances.expire_date asc, item_instances.id asc"

func (s *Store) CreateItemType(it *models.ItemType) error {
	if it.Status == "" {
		it.Status = models.StatusActive
	}
	return translate(s.db.Create(it).Error)
}

func (s *Store) GetItemType(id string) (*models.ItemType, error) {
	var it models.ItemType
	if err := s.get(&it, id); err != nil {
		return nil, err
	}
	return &it, nil
}

// FindItemTypeByName looks an item type up by its exact display name.
func (s *Store) FindItemTypeByName(name string) (*models.ItemType, error) {
	var it models.ItemType
	if err := s.db.Where("name = ?", name).First(&it).Error; err != nil {
		return nil, translate(err)
	}
	return &it, nil
}

func (s *Store) ListItemTypes() ([]models.ItemType, error) {
	types := []models.ItemType{}
	if err := s.db.Order("name asc").Find(&types).Error; err != nil {
		return nil, translate(err)
	}
	return types, nil
}

func (s *Store) UpdateItemType(id string, fields map[string]interface{}) (*models.ItemType, error) {
	if err := s.update(&models.ItemType{}, id, fields); err != nil {
		return nil, err
	}
	return s.GetItemType(id)
}

func (s *Store) DeleteItemType(id string) error {
	return s.remove(&models.ItemType{}, id)
}

// BatchFilter narrows ListBatches. Empty fields match everything.
type BatchFilter struct {
	NodeID     string
	ItemTypeID string
	Status     models.Status
}

func (s *Store) CreateBatch(b *models.ItemInstance) error {
	if b.Count < 0 {
		return fmt.Errorf("batch count must not be negative, got %d", b.Count)
	}
	if b.Status == "" {
		b.Status = models.StatusActive
	}
	return translate(s.db.Create(b).Error)
}

func (s *Store) GetBatch(id string) (*models.ItemInstance, error) {
	var b models.ItemInstance
	if err := s.get(&b, id, "ItemType", "Node"); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) ListBatches(f BatchFilter) ([]models.ItemInstance, error) {
	q := s.db.Preload("ItemType").Preload("Node")
	if f.NodeID != "" {
		q = q.Where("node_id = ?", f.NodeID)
	}
	if f.ItemTypeID != "" {
		q = q.Where("item_type_id = ?", f.ItemTypeID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	batches := []models.ItemInstance{}
	if err := q.Order(batchOrder).Find(&batches).Error; err != nil {
		return nil, translate(err)
	}
	return batches, nil
}

// StockCandidates returns the active, non-empty batches of the given item types
// held at nodeID, in consumption order.
func (s *Store) StockCandidates(nodeID string, itemTypeIDs []string) ([]models.ItemInstance, error) {
	batches := []models.ItemInstance{}
	if len(itemTypeIDs) == 0 {
		return batches, nil
	}
	err := s.db.
		Where("node_id = ? AND item_type_id IN (?) AND status = ? AND item_count > 0",
			nodeID, itemTypeIDs, models.StatusActive).
		Order(batchOrder).
		Find(&batches).Error
	if err != nil {
		return nil, translate(err)
	}
	return batches, nil
}

func (s *Store) UpdateBatch(id string, fields map[string]interface{}) (*models.ItemInstance, error) {
	if c, ok := fields["item_count"].(int64); ok && c < 0 {
		return nil, fmt.Errorf("batch count must not be negative, got %d", c)
	}
	if err := s.update(&models.ItemInstance{}, id, fields); err != nil {
		return nil, err
	}
	return s.GetBatch(id)
}

func (s *Store) DeleteBatch(id string) error {
	return s.remove(&models.ItemInstance{}, id)
}

// DeductBatch sets a batch's count to remaining, but only while it still holds
// expected. Any concurrent change in between yields ErrStockChanged.
func (s *Store) DeductBatch(id string, expected, remaining int64) error {
	if remaining < 0 || remaining > expected {
		return fmt.Errorf("invalid deduction for batch %s: %d -> %d", id, expected, remaining)
	}
	res := s.db.Model(&models.ItemInstance{}).
		Where("id = ? AND item_count = ?", id, expected).
		Updates(map[string]interface{}{"item_count": remaining})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("%w: batch %s", ErrStockChanged, id)
	}
	return nil
}

// NodeInventory sums the active batches at a node per item type.
func (s *Store) NodeInventory(nodeID string) ([]models.StockLevel, error) {
	levels := []models.StockLevel{}
	err := s.db.Table("item_instances").
		Select("item_instances.item_type_id AS item_type_id, item_types.name AS item_name, "+
			"item_types.category AS category, item_types.units AS units, "+
			"SUM(item_instances.item_count) AS total_count, COUNT(*) AS batches").
		Joins("JOIN item_types ON item_types.id = item_instances.item_type_id").
		Where("item_instances.node_id = ? AND item_instances.status = ? AND item_instances.deleted_at IS NULL",
			nodeID, models.StatusActive).
		Group("item_instances.item_type_id, item_types.name, item_types.category, item_types.units").
		Order("item_types.name asc").
		Scan(&levels).Error
	if err != nil {
		return nil, translate(err)
	}
	return levels, nil
}
