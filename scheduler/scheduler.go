package scheduler

import (
	"context"
	"fmt"
	"log"
	"net/http"
)

// Reconciler repairs orders left behind by a failed status update.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// Scheduler runs periodic maintenance triggered from outside the service.
type Scheduler struct {
	reconciler Reconciler
}

// New creates a new Scheduler with all required dependencies.
func New(reconciler Reconciler) *Scheduler {
	return &Scheduler{reconciler: reconciler}
}

// HandleTick is an HTTP handler that triggers a scheduler tick.
// Used by Cloud Scheduler or manual curl requests.
func (s *Scheduler) HandleTick(w http.ResponseWriter, r *http.Request) {
	log.Println("INFO (Scheduler): Reconcile triggered via HTTP")

	repaired, err := s.Tick(r.Context())
	if err != nil {
		log.Printf("ERROR (Scheduler): Reconcile failed: %v", err)
		http.Error(w, "reconcile failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK: reconciled %d orders", repaired)
}

// Tick runs a single reconciliation cycle and returns the number of orders
// it marked delivered.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	repaired, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		return repaired, fmt.Errorf("reconcile: %w", err)
	}
	if repaired > 0 {
		log.Printf("INFO (Scheduler): Reconciled %d orders", repaired)
	}
	return repaired, nil
}
