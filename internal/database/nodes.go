package database

import (
	"supplytrack/internal/models"
)

// NodeFilter narrows ListNodes. Empty fields match everything.
type NodeFilter struct {
	Type   models.NodeType
	Status models.Status
}

func (s *Store) CreateNode(n *models.Node) error {
	if n.Status == "" {
		n.Status = models.StatusActive
	}
	return translate(s.db.Create(n).Error)
}

func (s *Store) GetNode(id string) (*models.Node, error) {
	var n models.Node
	if err := s.get(&n, id); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Store) ListNodes(f NodeFilter) ([]models.Node, error) {
	q := s.db
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	nodes := []models.Node{}
	if err := q.Order("name asc").Find(&nodes).Error; err != nil {
		return nil, translate(err)
	}
	return nodes, nil
}

// UpdateNode applies fields, keyed by column name, and returns the fresh row.
func (s *Store) UpdateNode(id string, fields map[string]interface{}) (*models.Node, error) {
	if err := s.update(&models.Node{}, id, fields); err != nil {
		return nil, err
	}
	return s.GetNode(id)
}

func (s *Store) DeleteNode(id string) error {
	return s.remove(&models.Node{}, id)
}
