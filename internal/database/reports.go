package database

import (
	"supplytrack/internal/models"
)

func (s *Store) CreateReport(r *models.Report) error {
	if r.Status == "" {
		r.Status = models.ReportStatusInReview
	}
	if r.Evidence == nil {
		r.Evidence = models.StringSlice{}
	}
	return translate(s.db.Create(r).Error)
}

func (s *Store) GetReport(id string) (*models.Report, error) {
	var r models.Report
	if err := s.get(&r, id, "ItemTransit"); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListReports returns all reports, newest first. With a nodeID it keeps the
// reports filed at that node or about goods that node shipped.
func (s *Store) ListReports(nodeID string) ([]models.Report, error) {
	q := s.db.Preload("ItemTransit")
	if nodeID != "" {
		shipped := s.db.Table("item_transits").Select("id").Where("source_node_id = ?", nodeID).QueryExpr()
		q = q.Where("node_id = ? OR item_transit_id IN (?)", nodeID, shipped)
	}

	reports := []models.Report{}
	if err := q.Order("created_at desc").Find(&reports).Error; err != nil {
		return nil, translate(err)
	}
	return reports, nil
}

func (s *Store) UpdateReportStatus(id string, status models.ReportStatus) (*models.Report, error) {
	if err := s.update(&models.Report{}, id, map[string]interface{}{"status": status}); err != nil {
		return nil, err
	}
	return s.GetReport(id)
}
