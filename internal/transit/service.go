package transit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"supplytrack/internal/database"
	"supplytrack/internal/feed"
	"supplytrack/internal/locking"
	"supplytrack/internal/models"
	"supplytrack/internal/monitoring"
	"supplytrack/internal/qrcode"
)

var (
	// ErrInvalidRequest is returned for malformed dispatch or QR requests.
	ErrInvalidRequest = errors.New("invalid transit request")
	// ErrInvalidState is returned when a transit or QR code cannot move to the
	// requested state, such as completing a transit twice.
	ErrInvalidState = errors.New("transit is not in a valid state for this action")
	// ErrInsufficientStock is returned when the source batch holds fewer items
	// than requested.
	ErrInsufficientStock = errors.New("insufficient stock in source batch")
)

// Transit events
const (
	EventDispatched = "dispatched"
	EventArrived    = "arrived"
)

// DispatchRequest moves Count items of a batch from its node to another.
type DispatchRequest struct {
	ItemInstanceID string `json:"item_instance_id"`
	SourceNodeID   string `json:"source_node_id"`
	DestNodeID     string `json:"dest_node_id"`
	Count          int64  `json:"count"`
	CourierName    string `json:"courier_name"`
	CourierPhone   string `json:"courier_phone"`
}

func (r DispatchRequest) validate() error {
	switch {
	case r.ItemInstanceID == "":
		return fmt.Errorf("%w: item_instance_id is required", ErrInvalidRequest)
	case r.SourceNodeID == "" || r.DestNodeID == "":
		return fmt.Errorf("%w: source and destination nodes are required", ErrInvalidRequest)
	case r.SourceNodeID == r.DestNodeID:
		return fmt.Errorf("%w: source and destination must differ", ErrInvalidRequest)
	case r.Count <= 0:
		return fmt.Errorf("%w: count must be greater than zero", ErrInvalidRequest)
	}
	return nil
}

// Ticket is a stored QR code and the signed token printed on it.
type Ticket struct {
	QRCode *models.QRCode `json:"qr_code"`
	Token  string         `json:"token"`
	URL    string         `json:"url"`
}

// ScanResult reports what a QR scan did.
type ScanResult struct {
	Action  string              `json:"action"`
	Transit *models.ItemTransit `json:"transit"`
}

// Service moves stock between nodes.
type Service struct {
	store       *database.Store
	locker      locking.Locker
	signer      *qrcode.Signer
	logger      *zap.Logger
	metrics     *monitoring.MetricsCollector
	monitor     *monitoring.Monitor
	feed        feed.Publisher
	maxAttempts int
	now         func() time.Time
}

// Option configures optional collaborators of a Service.
type Option func(*Service)

func WithMetrics(mc *monitoring.MetricsCollector) Option {
	return func(s *Service) { s.metrics = mc }
}

func WithMonitor(m *monitoring.Monitor) Option {
	return func(s *Service) { s.monitor = m }
}

func WithPublisher(p feed.Publisher) Option {
	return func(s *Service) { s.feed = p }
}

// NewService creates a transit service. maxAttempts bounds retries when the
// source batch changes during a dispatch.
func NewService(store *database.Store, locker locking.Locker, signer *qrcode.Signer, maxAttempts int, logger *zap.Logger, opts ...Option) *Service {
	if locker == nil {
		locker = locking.NewLocalLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	s := &Service{
		store:       store,
		locker:      locker,
		signer:      signer,
		logger:      logger,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch deducts the requested count from the source batch and records an
// active transit in one transaction.
func (s *Service) Dispatch(ctx context.Context, req DispatchRequest) (*models.ItemTransit, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := s.checkNodes(req.SourceNodeID, req.DestNodeID); err != nil {
		return nil, err
	}

	var tr *models.ItemTransit
	err := s.withSourceLock(ctx, req.SourceNodeID, func() error {
		return s.store.Transaction(func(tx *database.Store) error {
			var err error
			tr, err = s.dispatch(tx, req)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.dispatched(tr)
	return tr, nil
}

// Complete records the arrival of a transit: a batch of the same item type and
// expiry appears at the destination and the transit is marked completed.
func (s *Service) Complete(ctx context.Context, id string, arrival *time.Time) (*models.ItemTransit, error) {
	var tr *models.ItemTransit
	err := s.store.Transaction(func(tx *database.Store) error {
		var err error
		tr, err = s.complete(tx, id, arrival)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.arrived(tr)
	return tr, nil
}

// IssueQR stores a hand-off label for part of a batch and signs its token.
func (s *Service) IssueQR(ctx context.Context, req DispatchRequest) (*Ticket, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := s.checkNodes(req.SourceNodeID, req.DestNodeID); err != nil {
		return nil, err
	}
	batch, err := s.sourceBatch(s.store, req)
	if err != nil {
		return nil, err
	}

	qr := &models.QRCode{
		ItemInstanceID: batch.ID,
		SourceID:       req.SourceNodeID,
		DestinationID:  req.DestNodeID,
		ItemCount:      req.Count,
	}
	if err := s.store.CreateQRCode(qr); err != nil {
		return nil, fmt.Errorf("failed to store qr code: %w", err)
	}

	token, err := s.signer.Issue(qrcode.Claims{
		QRCodeID:       qr.ID,
		ItemInstanceID: qr.ItemInstanceID,
		SourceID:       qr.SourceID,
		DestinationID:  qr.DestinationID,
		ItemCount:      qr.ItemCount,
	})
	if err != nil {
		return nil, err
	}
	return &Ticket{QRCode: qr, Token: token, URL: s.signer.ScanURL(token)}, nil
}

// Scan advances the hand-off a QR token describes. The first scan dispatches
// the goods, the second records their arrival and any later scan fails with
// ErrInvalidState.
func (s *Service) Scan(ctx context.Context, token, courierName, courierPhone string) (*ScanResult, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		return nil, err
	}
	qr, err := s.store.GetQRCode(claims.QRCodeID)
	if err != nil {
		return nil, fmt.Errorf("qr code %s: %w", claims.QRCodeID, err)
	}

	if qr.TransitID != nil {
		tr, err := s.Complete(ctx, *qr.TransitID, nil)
		if err != nil {
			return nil, err
		}
		return &ScanResult{Action: EventArrived, Transit: tr}, nil
	}

	req := DispatchRequest{
		ItemInstanceID: qr.ItemInstanceID,
		SourceNodeID:   qr.SourceID,
		DestNodeID:     qr.DestinationID,
		Count:          qr.ItemCount,
		CourierName:    courierName,
		CourierPhone:   courierPhone,
	}

	var tr *models.ItemTransit
	err = s.withSourceLock(ctx, req.SourceNodeID, func() error {
		return s.store.Transaction(func(tx *database.Store) error {
			var err error
			tr, err = s.dispatch(tx, req)
			if err != nil {
				return err
			}
			tr.QRCodeID = &qr.ID
			if err := tx.AttachQRTransit(qr.ID, tr.ID); err != nil {
				if errors.Is(err, database.ErrStockChanged) {
					return fmt.Errorf("%w: qr code was already scanned", ErrInvalidState)
				}
				return err
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.dispatched(tr)
	return &ScanResult{Action: EventDispatched, Transit: tr}, nil
}

// withSourceLock runs fn under the source node's stock lock, retrying while
// the source batch changes between read and write.
func (s *Service) withSourceLock(ctx context.Context, nodeID string, fn func() error) error {
	return s.locker.WithLock(ctx, locking.StockKey(nodeID), func(ctx context.Context) error {
		for attempt := 1; ; attempt++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := fn()
			if !errors.Is(err, database.ErrStockChanged) {
				return err
			}
			if attempt >= s.maxAttempts {
				return fmt.Errorf("%w: source batch kept changing", ErrInvalidState)
			}
		}
	})
}

func (s *Service) dispatch(tx *database.Store, req DispatchRequest) (*models.ItemTransit, error) {
	batch, err := s.sourceBatch(tx, req)
	if err != nil {
		return nil, err
	}
	if err := tx.DeductBatch(batch.ID, batch.Count, batch.Count-req.Count); err != nil {
		return nil, err
	}

	tr := &models.ItemTransit{
		ItemInstanceID: batch.ID,
		ItemTypeID:     batch.ItemTypeID,
		SourceNodeID:   req.SourceNodeID,
		DestNodeID:     req.DestNodeID,
		Count:          req.Count,
		ExpireDate:     batch.ExpireDate,
		TimeDeparture:  s.now().UTC(),
		CourierName:    req.CourierName,
		CourierPhone:   req.CourierPhone,
		Status:         models.TransitStatusActive,
	}
	if err := tx.CreateTransit(tr); err != nil {
		return nil, fmt.Errorf("failed to record transit: %w", err)
	}
	return tr, nil
}

func (s *Service) complete(tx *database.Store, id string, arrival *time.Time) (*models.ItemTransit, error) {
	tr, err := tx.GetTransit(id)
	if err != nil {
		return nil, fmt.Errorf("transit %s: %w", id, err)
	}
	if tr.Status != models.TransitStatusActive {
		return nil, fmt.Errorf("%w: transit %s is %s", ErrInvalidState, id, tr.Status)
	}

	at := s.now().UTC()
	if arrival != nil {
		at = arrival.UTC()
	}
	if at.Before(tr.TimeDeparture) {
		return nil, fmt.Errorf("%w: arrival precedes departure", ErrInvalidRequest)
	}

	batch := &models.ItemInstance{
		ItemTypeID: tr.ItemTypeID,
		NodeID:     &tr.DestNodeID,
		Count:      tr.Count,
		ExpireDate: tr.ExpireDate,
		Status:     models.StatusActive,
	}
	if err := tx.CreateBatch(batch); err != nil {
		return nil, fmt.Errorf("failed to create arrived batch: %w", err)
	}

	tr.TimeArrival = &at
	tr.ArrivedBatchID = &batch.ID
	if err := tx.CompleteTransit(tr); err != nil {
		if errors.Is(err, database.ErrStockChanged) {
			return nil, fmt.Errorf("%w: transit %s was completed concurrently", ErrInvalidState, id)
		}
		return nil, err
	}
	return tr, nil
}

func (s *Service) sourceBatch(st *database.Store, req DispatchRequest) (*models.ItemInstance, error) {
	batch, err := st.GetBatch(req.ItemInstanceID)
	if err != nil {
		return nil, fmt.Errorf("batch %s: %w", req.ItemInstanceID, err)
	}
	if batch.NodeID == nil || *batch.NodeID != req.SourceNodeID {
		return nil, fmt.Errorf("%w: batch %s is not held at the source node", ErrInvalidRequest, batch.ID)
	}
	if batch.Status != models.StatusActive {
		return nil, fmt.Errorf("%w: batch %s is inactive", ErrInvalidRequest, batch.ID)
	}
	if batch.Count < req.Count {
		return nil, fmt.Errorf("%w: %s has %d, requested %d", ErrInsufficientStock, batch.ItemName(), batch.Count, req.Count)
	}
	return batch, nil
}

func (s *Service) checkNodes(ids ...string) error {
	for _, id := range ids {
		if _, err := s.store.GetNode(id); err != nil {
			return fmt.Errorf("node %s: %w", id, err)
		}
	}
	return nil
}

func (s *Service) dispatched(tr *models.ItemTransit) {
	s.logger.Info("transit dispatched",
		zap.String("transit_id", tr.ID),
		zap.String("source_node_id", tr.SourceNodeID),
		zap.String("dest_node_id", tr.DestNodeID),
		zap.Int64("count", tr.Count))
	s.record(EventDispatched, feed.EventTransitDispatched, tr, tr.SourceNodeID, tr.DestNodeID)
}

func (s *Service) arrived(tr *models.ItemTransit) {
	s.logger.Info("transit arrived",
		zap.String("transit_id", tr.ID),
		zap.String("dest_node_id", tr.DestNodeID),
		zap.Duration("duration", tr.Duration()))
	s.record(EventArrived, feed.EventTransitArrived, tr, tr.DestNodeID, tr.SourceNodeID)
}

func (s *Service) record(event, feedType string, tr *models.ItemTransit, nodeIDs ...string) {
	if s.metrics != nil {
		s.metrics.RecordTransit(event)
	}
	if s.monitor != nil {
		s.monitor.Increment("transits_"+event, 1)
	}
	if s.feed != nil {
		s.feed.Publish(feed.Event{Type: feedType, NodeIDs: nodeIDs, Data: tr})
	}
}
