package database

import (
	"supplytrack/internal/models"
)

// TransitFilter narrows ListTransits. NodeID matches either end of the trip.
type TransitFilter struct {
	NodeID string
	Status models.TransitStatus
}

func (s *Store) CreateTransit(t *models.ItemTransit) error {
	if t.Status == "" {
		t.Status = models.TransitStatusActive
	}
	return translate(s.db.Create(t).Error)
}

func (s *Store) GetTransit(id string) (*models.ItemTransit, error) {
	var t models.ItemTransit
	if err := s.get(&t, id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListTransits(f TransitFilter) ([]models.ItemTransit, error) {
	q := s.db
	if f.NodeID != "" {
		q = q.Where("source_node_id = ? OR dest_node_id = ?", f.NodeID, f.NodeID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	transits := []models.ItemTransit{}
	if err := q.Order("time_departure desc").Find(&transits).Error; err != nil {
		return nil, translate(err)
	}
	return transits, nil
}

// CompleteTransit marks an active transit as arrived. It returns ErrStockChanged
// when the transit was completed concurrently.
func (s *Store) CompleteTransit(t *models.ItemTransit) error {
	res := s.db.Model(&models.ItemTransit{}).
		Where("id = ? AND status = ?", t.ID, models.TransitStatusActive).
		Updates(map[string]interface{}{
			"status":           models.TransitStatusCompleted,
			"time_arrival":     t.TimeArrival,
			"arrived_batch_id": t.ArrivedBatchID,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected != 1 {
		return ErrStockChanged
	}
	t.Status = models.TransitStatusCompleted
	return nil
}

func (s *Store) CreateQRCode(q *models.QRCode) error {
	return translate(s.db.Create(q).Error)
}

func (s *Store) GetQRCode(id string) (*models.QRCode, error) {
	var q models.QRCode
	if err := s.get(&q, id); err != nil {
		return nil, err
	}
	return &q, nil
}

// AttachQRTransit links a QR code to the transit its first scan started. It
// returns ErrStockChanged when another scan linked one first.
func (s *Store) AttachQRTransit(qrID, transitID string) error {
	res := s.db.Model(&models.QRCode{}).
		Where("id = ? AND transit_id IS NULL", qrID).
		Updates(map[string]interface{}{"transit_id": transitID})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected != 1 {
		return ErrStockChanged
	}
	return nil
}
