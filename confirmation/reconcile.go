package confirmation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/coreybb/dropoff/metrics"
	"github.com/coreybb/dropoff/models"
)

type UnreconciledLister interface {
	ListUnreconciledPODs(ctx context.Context, limit int) ([]models.ProofOfDelivery, error)
}

// Reconciler marks orders delivered when a POD exists for them but the status
// update that should have followed the POD insert failed.
type Reconciler struct {
	pods   UnreconciledLister
	orders Store
	limit  int
	now    func() time.Time

	reservations   ReservationReleaser
	reservationTTL time.Duration
}

type ReservationReleaser interface {
	ReleaseStaleReservations(ctx context.Context, cutoff time.Time) (int, error)
}

type ReconcilerOption func(*Reconciler)

// WithStaleReservations makes each pass release email reservations that
// have gone unsent for longer than ttl, so the POD can be notified again.
// ttl must exceed the email send timeout.
func WithStaleReservations(releaser ReservationReleaser, ttl time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		r.reservations = releaser
		r.reservationTTL = ttl
	}
}

func NewReconciler(pods UnreconciledLister, orders Store, limit int, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{pods: pods, orders: orders, limit: limit, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile runs one pass and returns the number of orders repaired. Stale
// email reservations are released in the same pass when configured.
func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	pods, err := r.pods.ListUnreconciledPODs(ctx, r.limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list unreconciled PODs: %w", err)
	}

	repaired := 0
	seen := make(map[string]bool, len(pods))
	var errs []error
	for _, pod := range pods {
		if seen[pod.OrderID] {
			continue
		}
		seen[pod.OrderID] = true

		if err := r.orders.UpdateOrderStatus(ctx, pod.OrderID, models.OrderStatusDelivered, r.now().UTC()); err != nil {
			log.Printf("ERROR (Reconciler): Could not mark order %s delivered (POD %s): %v", pod.OrderID, pod.ID, err)
			errs = append(errs, fmt.Errorf("order %s: %w", pod.OrderID, err))
			continue
		}
		repaired++
		metrics.ReconciledOrdersTotal.Inc()
		log.Printf("INFO (Reconciler): Order %s marked delivered from POD %s", pod.OrderID, pod.ID)
	}

	if err := r.releaseStaleReservations(ctx); err != nil {
		errs = append(errs, err)
	}
	return repaired, errors.Join(errs...)
}

func (r *Reconciler) releaseStaleReservations(ctx context.Context) error {
	if r.reservations == nil {
		return nil
	}
	released, err := r.reservations.ReleaseStaleReservations(ctx, r.now().UTC().Add(-r.reservationTTL))
	if err != nil {
		log.Printf("ERROR (Reconciler): Could not release stale email reservations: %v", err)
		return err
	}
	if released > 0 {
		log.Printf("INFO (Reconciler): Released %d stale email reservations", released)
	}
	return nil
}
