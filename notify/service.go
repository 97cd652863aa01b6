// Package notify implements the single "email the customer their proof of
// delivery" step shared by the confirmation workflow and the standalone
// notification endpoint.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/coreybb/dropoff/datastore"
	"github.com/coreybb/dropoff/mailer"
	"github.com/coreybb/dropoff/metrics"
	"github.com/coreybb/dropoff/models"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrPODNotFound   = errors.New("POD missing")
	// ErrPODOrderMismatch is returned when the POD belongs to a different order.
	ErrPODOrderMismatch = errors.New("POD does not belong to order")
)

// Outcome is the result of a notification attempt that did not fail.
type Outcome string

const (
	OutcomeSent        Outcome = "sent"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeAlreadySent Outcome = "already_sent"
)

const reasonNoCustomerEmail = "customer_email not set for this order"

type Result struct {
	Outcome    Outcome
	Reason     string
	To         string
	StatusCode int
	MessageID  string
}

type OrderReader interface {
	GetOrderByID(ctx context.Context, orderID string) (*models.Order, error)
}

type PODReader interface {
	GetPODByID(ctx context.Context, podID string) (*models.ProofOfDelivery, error)
}

// ReceiptLedger is the idempotency ledger. CreateEmailReceipt must return
// datastore.ErrReceiptExists when a receipt for the POD is already held.
type ReceiptLedger interface {
	EmailReceiptExists(ctx context.Context, podID string) (bool, error)
	CreateEmailReceipt(ctx context.Context, receipt *models.EmailReceipt) error
	MarkEmailReceiptSent(ctx context.Context, podID, providerMessageID string, sentAt time.Time) error
	DeleteEmailReceipt(ctx context.Context, podID string) error
}

type Sender interface {
	Configured() bool
	Send(ctx context.Context, msg mailer.Message) (*mailer.Receipt, error)
}

// Service sends at most one notification per proof of delivery.
type Service struct {
	orders   OrderReader
	pods     PODReader
	receipts ReceiptLedger
	sender   Sender
	now      func() time.Time
}

func NewService(orders OrderReader, pods PODReader, receipts ReceiptLedger, sender Sender) *Service {
	return &Service{
		orders:   orders,
		pods:     pods,
		receipts: receipts,
		sender:   sender,
		now:      time.Now,
	}
}

// Configured reports whether the sender has credentials and a sender address.
func (s *Service) Configured() bool { return s.sender.Configured() }

// NotifyPOD emails the customer of orderID the proof of delivery podID.
//
// A missing customer email or an existing receipt is not an error; they are
// reported through Result.Outcome. Configuration, lookup and provider
// failures are returned as errors and leave no receipt behind.
func (s *Service) NotifyPOD(ctx context.Context, orderID, podID string, opts Options) (*Result, error) {
	result, err := s.notify(ctx, orderID, podID, opts)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, err
	}
	metrics.NotificationsTotal.WithLabelValues(string(result.Outcome)).Inc()
	return result, nil
}

func (s *Service) notify(ctx context.Context, orderID, podID string, opts Options) (*Result, error) {
	if !s.sender.Configured() {
		log.Printf("ERROR (Notifier): Email provider not configured, cannot notify for POD %s", podID)
		return nil, mailer.ErrNotConfigured
	}

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return nil, fmt.Errorf("failed to fetch order %s: %w", orderID, err)
	}

	if order.CustomerEmail == "" {
		log.Printf("INFO (Notifier): Order %s has no customer email, skipping POD %s", orderID, podID)
		return &Result{Outcome: OutcomeSkipped, Reason: reasonNoCustomerEmail}, nil
	}

	exists, err := s.receipts.EmailReceiptExists(ctx, podID)
	if err != nil {
		return nil, fmt.Errorf("failed to check email receipt for POD %s: %w", podID, err)
	}
	if exists {
		log.Printf("INFO (Notifier): Email already sent for POD %s", podID)
		return &Result{Outcome: OutcomeAlreadySent, To: order.CustomerEmail}, nil
	}

	pod, err := s.pods.GetPODByID(ctx, podID)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPODNotFound, podID)
		}
		return nil, fmt.Errorf("failed to fetch POD %s: %w", podID, err)
	}
	if pod.OrderID != order.ID {
		return nil, fmt.Errorf("%w: POD %s, order %s", ErrPODOrderMismatch, podID, orderID)
	}

	// Reserve the ledger entry before sending so that concurrent callers for
	// the same POD cannot both reach the provider.
	reservation := &models.EmailReceipt{
		PODID:      pod.ID,
		OrderID:    order.ID,
		ToEmail:    order.CustomerEmail,
		ReservedAt: s.now().UTC(),
	}
	if err := s.receipts.CreateEmailReceipt(ctx, reservation); err != nil {
		if errors.Is(err, datastore.ErrReceiptExists) {
			log.Printf("INFO (Notifier): POD %s claimed by a concurrent sender", podID)
			return &Result{Outcome: OutcomeAlreadySent, To: order.CustomerEmail}, nil
		}
		return nil, fmt.Errorf("failed to reserve email receipt for POD %s: %w", podID, err)
	}

	msg := Compose(order, pod, opts, s.now())
	log.Printf("INFO (Notifier): Sending POD %s for order %s (photo: %t, signature: %t)",
		podID, order.Number(), pod.PhotoURL != nil, pod.SignatureURL != nil)

	receipt, sendErr := s.sender.Send(ctx, msg)
	if sendErr != nil {
		// The request context may already be done; the release must still happen.
		if err := s.receipts.DeleteEmailReceipt(context.WithoutCancel(ctx), pod.ID); err != nil {
			log.Printf("ERROR (Notifier): Failed to release email reservation for POD %s: %v", podID, err)
		}
		log.Printf("ERROR (Notifier): Send failed for POD %s: %v", podID, sendErr)
		return nil, sendErr
	}

	messageID := receipt.MessageID
	if messageID == "" {
		messageID = models.ProviderMessageIDAccepted
	}
	if err := s.receipts.MarkEmailReceiptSent(ctx, pod.ID, messageID, s.now().UTC()); err != nil {
		// The message went out and the reservation still blocks resends.
		log.Printf("ERROR (Notifier): Failed to record email receipt for POD %s: %v", podID, err)
	}

	log.Printf("INFO (Notifier): Email sent for POD %s (status %d, message %s)", podID, receipt.StatusCode, messageID)
	return &Result{
		Outcome:    OutcomeSent,
		To:         order.CustomerEmail,
		StatusCode: receipt.StatusCode,
		MessageID:  receipt.MessageID,
	}, nil
}
