package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/coreybb/dropoff/models"
	"github.com/google/uuid"
)

// EmailReceiptRepository is the idempotency ledger for POD notifications.
// The pod_id primary key guarantees at most one receipt per POD.
type EmailReceiptRepository struct {
	db *sql.DB
}

func NewEmailReceiptRepository(db *sql.DB) *EmailReceiptRepository {
	return &EmailReceiptRepository{db: db}
}

func (r *EmailReceiptRepository) EmailReceiptExists(ctx context.Context, podID string) (bool, error) {
	_, err := r.GetEmailReceiptByPODID(ctx, podID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *EmailReceiptRepository) GetEmailReceiptByPODID(ctx context.Context, podID string) (*models.EmailReceipt, error) {
	if _, err := uuid.Parse(podID); err != nil {
		return nil, fmt.Errorf("invalid POD ID format: %w", err)
	}

	query := `
		SELECT pod_id, order_id, to_email, provider_message_id, sent_at, reserved_at
		FROM pod_emails
		WHERE pod_id = $1
	`
	var receipt models.EmailReceipt
	err := r.db.QueryRowContext(ctx, query, podID).Scan(
		&receipt.PODID, &receipt.OrderID, &receipt.ToEmail, &receipt.ProviderMessageID, &receipt.SentAt, &receipt.ReservedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("email receipt for POD %s: %w", podID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get email receipt: %w", err)
	}
	return &receipt, nil
}

// CreateEmailReceipt inserts receipt. If a receipt for the same POD already
// exists, nothing is written and ErrReceiptExists is returned; concurrent
// callers racing on one POD therefore see exactly one success.
func (r *EmailReceiptRepository) CreateEmailReceipt(ctx context.Context, receipt *models.EmailReceipt) error {
	if _, err := uuid.Parse(receipt.PODID); err != nil {
		return fmt.Errorf("invalid POD ID format: %w", err)
	}
	if _, err := uuid.Parse(receipt.OrderID); err != nil {
		return fmt.Errorf("invalid order ID format: %w", err)
	}

	query := `
		INSERT INTO pod_emails (pod_id, order_id, to_email, provider_message_id, sent_at, reserved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (pod_id) DO NOTHING
	`
	if receipt.ReservedAt.IsZero() {
		receipt.ReservedAt = time.Now().UTC()
	}
	result, err := r.db.ExecContext(ctx, query,
		receipt.PODID, receipt.OrderID, receipt.ToEmail, receipt.ProviderMessageID, receipt.SentAt, receipt.ReservedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrReceiptExists
		}
		return fmt.Errorf("failed to insert email receipt: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for email receipt: %w", err)
	}
	if rowsAffected == 0 {
		return ErrReceiptExists
	}
	return nil
}

func (r *EmailReceiptRepository) MarkEmailReceiptSent(ctx context.Context, podID, providerMessageID string, sentAt time.Time) error {
	query := `
		UPDATE pod_emails
		SET provider_message_id = $2, sent_at = $3
		WHERE pod_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, podID, providerMessageID, sentAt)
	if err != nil {
		return fmt.Errorf("failed to mark email receipt sent for POD %s: %w", podID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("email receipt for POD %s: %w", podID, ErrNotFound)
	}
	return nil
}

// DeleteEmailReceipt releases a reservation whose send failed so that the
// notification can be attempted again.
func (r *EmailReceiptRepository) DeleteEmailReceipt(ctx context.Context, podID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pod_emails WHERE pod_id = $1 AND sent_at IS NULL`, podID)
	if err != nil {
		return fmt.Errorf("failed to delete email receipt for POD %s: %w", podID, err)
	}
	return nil
}

// ReleaseStaleReservations deletes unsent reservations made before cutoff.
// They are left behind when the process stops between reserving and
// sending, and would otherwise block the POD's notification for good.
func (r *EmailReceiptRepository) ReleaseStaleReservations(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM pod_emails WHERE sent_at IS NULL AND reserved_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to release stale email reservations: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected for stale reservations: %w", err)
	}
	return int(n), nil
}
