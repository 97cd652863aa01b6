// Package datastoretest provides an in-memory record store for tests.
package datastoretest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coreybb/dropoff/datastore"
	"github.com/coreybb/dropoff/models"
	"github.com/google/uuid"
)

// Store mirrors the datastore repositories in memory. The *Err fields make
// the matching operation fail.
type Store struct {
	mu       sync.Mutex
	orders   map[string]models.Order
	pods     map[string]models.ProofOfDelivery
	receipts map[string]models.EmailReceipt

	GetOrderErr      error
	UpdateOrderErr   error
	CreatePODErr     error
	GetPODErr        error
	ReceiptExistsErr error
	CreateReceiptErr error
	MarkSentErr      error
}

func New() *Store {
	return &Store{
		orders:   make(map[string]models.Order),
		pods:     make(map[string]models.ProofOfDelivery),
		receipts: make(map[string]models.EmailReceipt),
	}
}

func (s *Store) PutOrder(o models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

func (s *Store) PutPOD(p models.ProofOfDelivery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pods[p.ID] = p
}

func (s *Store) Order(id string) (models.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

// PODs returns all stored PODs ordered by delivery time.
func (s *Store) PODs() []models.ProofOfDelivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ProofOfDelivery, 0, len(s.pods))
	for _, p := range s.pods {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeliveredAt.Before(out[j].DeliveredAt) })
	return out
}

func (s *Store) Receipt(podID string) (models.EmailReceipt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[podID]
	return r, ok
}

func (s *Store) GetOrderByID(_ context.Context, orderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetOrderErr != nil {
		return nil, s.GetOrderErr
	}
	o, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, datastore.ErrNotFound)
	}
	return &o, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, orderID string, status models.OrderStatus, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateOrderErr != nil {
		return s.UpdateOrderErr
	}
	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, datastore.ErrNotFound)
	}
	o.Status = status
	o.UpdatedAt = updatedAt
	s.orders[orderID] = o
	return nil
}

func (s *Store) CreatePOD(_ context.Context, pod *models.ProofOfDelivery) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreatePODErr != nil {
		return "", s.CreatePODErr
	}
	if pod.ID == "" {
		pod.ID = uuid.NewString()
	}
	s.pods[pod.ID] = *pod
	return pod.ID, nil
}

func (s *Store) GetPODByID(_ context.Context, podID string) (*models.ProofOfDelivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetPODErr != nil {
		return nil, s.GetPODErr
	}
	p, ok := s.pods[podID]
	if !ok {
		return nil, fmt.Errorf("POD %s: %w", podID, datastore.ErrNotFound)
	}
	return &p, nil
}

func (s *Store) ListUnreconciledPODs(_ context.Context, limit int) ([]models.ProofOfDelivery, error) {
	var out []models.ProofOfDelivery
	for _, p := range s.PODs() {
		o, ok := s.Order(p.OrderID)
		if ok && o.Status.Open() {
			out = append(out, p)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) EmailReceiptExists(_ context.Context, podID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReceiptExistsErr != nil {
		return false, s.ReceiptExistsErr
	}
	_, ok := s.receipts[podID]
	return ok, nil
}

func (s *Store) CreateEmailReceipt(_ context.Context, receipt *models.EmailReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateReceiptErr != nil {
		return s.CreateReceiptErr
	}
	if _, ok := s.receipts[receipt.PODID]; ok {
		return datastore.ErrReceiptExists
	}
	if receipt.ReservedAt.IsZero() {
		receipt.ReservedAt = time.Now().UTC()
	}
	s.receipts[receipt.PODID] = *receipt
	return nil
}

func (s *Store) MarkEmailReceiptSent(_ context.Context, podID, providerMessageID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MarkSentErr != nil {
		return s.MarkSentErr
	}
	r, ok := s.receipts[podID]
	if !ok {
		return fmt.Errorf("email receipt for POD %s: %w", podID, datastore.ErrNotFound)
	}
	r.ProviderMessageID = providerMessageID
	r.SentAt = &sentAt
	s.receipts[podID] = r
	return nil
}

func (s *Store) DeleteEmailReceipt(_ context.Context, podID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.receipts[podID]; ok && r.SentAt == nil {
		delete(s.receipts, podID)
	}
	return nil
}

func (s *Store) ReleaseStaleReservations(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	released := 0
	for id, r := range s.receipts {
		if r.SentAt == nil && r.ReservedAt.Before(cutoff) {
			delete(s.receipts, id)
			released++
		}
	}
	return released, nil
}

// PutReceipt stores r as is.
func (s *Store) PutReceipt(r models.EmailReceipt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts[r.PODID] = r
}
