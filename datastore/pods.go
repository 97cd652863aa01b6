package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/coreybb/dropoff/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const defaultUnreconciledLimit = 100

// PODRepository stores proofs of delivery. Rows are never updated.
type PODRepository struct {
	db *sql.DB
}

func NewPODRepository(db *sql.DB) *PODRepository {
	return &PODRepository{db: db}
}

// CreatePOD inserts pod, assigning a new ID when pod.ID is empty, and returns the ID.
func (r *PODRepository) CreatePOD(ctx context.Context, pod *models.ProofOfDelivery) (string, error) {
	if pod.ID == "" {
		pod.ID = uuid.NewString()
	}
	if _, err := uuid.Parse(pod.ID); err != nil {
		return "", fmt.Errorf("invalid POD ID format: %w", err)
	}
	if _, err := uuid.Parse(pod.OrderID); err != nil {
		return "", fmt.Errorf("invalid order ID format: %w", err)
	}
	if pod.DriverID == "" {
		return "", fmt.Errorf("driver ID is required")
	}

	query := `
		INSERT INTO pods (
			id, order_id, driver_id, photo_url, signature_url,
			recipient_name, notes, delivered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		pod.ID, pod.OrderID, pod.DriverID, nullString(pod.PhotoURL), nullString(pod.SignatureURL),
		nullString(pod.RecipientName), nullString(pod.Notes), pod.DeliveredAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert POD: %w", err)
	}
	return pod.ID, nil
}

// GetPODByID returns the POD or an error wrapping ErrNotFound.
func (r *PODRepository) GetPODByID(ctx context.Context, podID string) (*models.ProofOfDelivery, error) {
	if _, err := uuid.Parse(podID); err != nil {
		return nil, fmt.Errorf("invalid POD ID format: %w", err)
	}

	query := `
		SELECT id, order_id, driver_id, photo_url, signature_url,
		       recipient_name, notes, delivered_at
		FROM pods
		WHERE id = $1
	`
	pod, err := scanPOD(r.db.QueryRowContext(ctx, query, podID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("POD %s: %w", podID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get POD by ID: %w", err)
	}
	return pod, nil
}

// ListUnreconciledPODs returns PODs whose order is still open (pending,
// assigned or in transit), oldest first. Cancelled orders are never listed. These are left behind when the status update after a POD
// insert fails.
func (r *PODRepository) ListUnreconciledPODs(ctx context.Context, limit int) ([]models.ProofOfDelivery, error) {
	if limit <= 0 {
		limit = defaultUnreconciledLimit
	}

	query := `
		SELECT p.id, p.order_id, p.driver_id, p.photo_url, p.signature_url,
		       p.recipient_name, p.notes, p.delivered_at
		FROM pods p
		JOIN orders o ON o.id = p.order_id
		WHERE o.status = ANY($1)
		ORDER BY p.delivered_at ASC
		LIMIT $2
	`
	statuses := make([]string, len(models.OpenOrderStatuses))
	for i, st := range models.OpenOrderStatuses {
		statuses[i] = string(st)
	}
	rows, err := r.db.QueryContext(ctx, query, pq.Array(statuses), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unreconciled PODs: %w", err)
	}
	defer rows.Close()

	var pods []models.ProofOfDelivery
	for rows.Next() {
		pod, err := scanPOD(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan POD row: %w", err)
		}
		pods = append(pods, *pod)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating POD rows: %w", err)
	}
	return pods, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPOD(row rowScanner) (*models.ProofOfDelivery, error) {
	var (
		pod                                models.ProofOfDelivery
		photo, signature, recipient, notes sql.NullString
	)
	if err := row.Scan(
		&pod.ID, &pod.OrderID, &pod.DriverID, &photo, &signature,
		&recipient, &notes, &pod.DeliveredAt,
	); err != nil {
		return nil, err
	}
	pod.PhotoURL = stringPtr(photo)
	pod.SignatureURL = stringPtr(signature)
	pod.RecipientName = stringPtr(recipient)
	pod.Notes = stringPtr(notes)
	return &pod, nil
}
