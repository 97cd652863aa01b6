// Package confirmation implements the driver delivery-confirmation workflow:
// upload evidence, record the proof of delivery, mark the order delivered and
// notify the customer.
package confirmation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/coreybb/dropoff/auth"
	"github.com/coreybb/dropoff/media"
	"github.com/coreybb/dropoff/metrics"
	"github.com/coreybb/dropoff/models"
	"github.com/coreybb/dropoff/notify"
	"github.com/coreybb/dropoff/storage"
)

const (
	photoPrefix     = "pod-photos"
	signaturePrefix = "pod-signatures"
)

var (
	ErrInvalidRequest = errors.New("invalid confirmation request")
	ErrUpload         = errors.New("failed to upload delivery evidence")
	ErrSavePOD        = errors.New("failed to save POD")
	// ErrUpdateOrder is returned after the POD has been stored; the order is
	// left for Reconcile.
	ErrUpdateOrder = errors.New("failed to update order status")
)

type Store interface {
	CreatePOD(ctx context.Context, pod *models.ProofOfDelivery) (string, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, updatedAt time.Time) error
}

type Notifier interface {
	NotifyPOD(ctx context.Context, orderID, podID string, opts notify.Options) (*notify.Result, error)
}

// Request is what a driver submits. Empty strings mean "not provided".
type Request struct {
	OrderID       string
	PhotoData     string
	SignatureData string
	RecipientName string
	Notes         string
}

type Options struct {
	// NotificationsEnabled runs the notification step after a successful confirmation.
	NotificationsEnabled bool
}

type Service struct {
	store    Store
	objects  storage.ObjectStore
	notifier Notifier
	opts     Options
	now      func() time.Time
}

func NewService(store Store, objects storage.ObjectStore, notifier Notifier, opts Options) *Service {
	return &Service{
		store:    store,
		objects:  objects,
		notifier: notifier,
		opts:     opts,
		now:      time.Now,
	}
}

// Confirm records a delivery made by driver. Notification failures never
// fail the confirmation.
func (s *Service) Confirm(ctx context.Context, driver *models.Driver, req Request) (*models.ProofOfDelivery, error) {
	if driver == nil || driver.ID == "" {
		metrics.ConfirmationsTotal.WithLabelValues("auth_failure").Inc()
		return nil, auth.ErrUnauthenticated
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, fmt.Errorf("%w: order ID is required", ErrInvalidRequest)
	}

	log.Printf("INFO (Confirmation): Delivery start for order %s by driver %s", req.OrderID, driver.ID)
	now := s.now().UTC()

	photoURL, err := s.upload(ctx, "photo", photoPrefix, req.OrderID, req.PhotoData, now)
	if err != nil {
		metrics.ConfirmationsTotal.WithLabelValues("upload_failure").Inc()
		return nil, err
	}
	signatureURL, err := s.upload(ctx, "signature", signaturePrefix, req.OrderID, req.SignatureData, now)
	if err != nil {
		metrics.ConfirmationsTotal.WithLabelValues("upload_failure").Inc()
		return nil, err
	}

	pod := &models.ProofOfDelivery{
		OrderID:       req.OrderID,
		DriverID:      driver.ID,
		PhotoURL:      photoURL,
		SignatureURL:  signatureURL,
		RecipientName: optional(req.RecipientName),
		Notes:         optional(req.Notes),
		DeliveredAt:   now,
	}
	if _, err := s.store.CreatePOD(ctx, pod); err != nil {
		metrics.ConfirmationsTotal.WithLabelValues("pod_failure").Inc()
		log.Printf("ERROR (Confirmation): POD save failed for order %s: %v", req.OrderID, err)
		return nil, fmt.Errorf("%w: %w", ErrSavePOD, err)
	}
	log.Printf("INFO (Confirmation): POD %s saved for order %s", pod.ID, req.OrderID)

	if err := s.store.UpdateOrderStatus(ctx, req.OrderID, models.OrderStatusDelivered, now); err != nil {
		metrics.ConfirmationsTotal.WithLabelValues("order_failure").Inc()
		log.Printf("ERROR (Confirmation): Order %s status update failed, POD %s awaits reconciliation: %v", req.OrderID, pod.ID, err)
		return pod, fmt.Errorf("%w: %w", ErrUpdateOrder, err)
	}
	log.Printf("INFO (Confirmation): Order %s marked as delivered", req.OrderID)
	metrics.ConfirmationsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()

	s.notify(ctx, pod)
	return pod, nil
}

func (s *Service) notify(ctx context.Context, pod *models.ProofOfDelivery) {
	if !s.opts.NotificationsEnabled {
		log.Printf("INFO (Confirmation): POD email disabled, not notifying for POD %s", pod.ID)
		return
	}
	res, err := s.notifier.NotifyPOD(ctx, pod.OrderID, pod.ID, notify.Options{MissingMediaNotices: true})
	if err != nil {
		log.Printf("WARN (Confirmation): POD email for %s failed: %v", pod.ID, err)
		return
	}
	log.Printf("INFO (Confirmation): POD email for %s: %s", pod.ID, res.Outcome)
}

// upload stores one piece of evidence and returns its URL, or nil when the
// driver did not provide it.
func (s *Service) upload(ctx context.Context, kind, prefix, orderID, data string, now time.Time) (*string, error) {
	if strings.TrimSpace(data) == "" {
		return nil, nil
	}
	payload := media.Decode(data)
	if len(payload.Data) == 0 {
		log.Printf("WARN (Confirmation): %s for order %s decoded to no content, ignoring it", kind, orderID)
		return nil, nil
	}

	contentType, ext, err := media.ImageType(payload)
	if err != nil {
		log.Printf("WARN (Confirmation): %s for order %s rejected: %v", kind, orderID, err)
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRequest, kind, err)
	}
	objectPath := fmt.Sprintf("%s/%s-%d%s", prefix, orderID, now.UnixMilli(), ext)

	url, err := s.objects.Put(ctx, objectPath, payload.Data, contentType)
	if err != nil {
		log.Printf("ERROR (Confirmation): %s upload failed for order %s: %v", kind, orderID, err)
		return nil, fmt.Errorf("%w: %s: %w", ErrUpload, kind, err)
	}
	metrics.UploadBytesTotal.WithLabelValues(kind).Add(float64(len(payload.Data)))
	log.Printf("INFO (Confirmation): %s uploaded for order %s: %s", kind, orderID, url)
	return &url, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
