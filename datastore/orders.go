package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/coreybb/dropoff/models"
	"github.com/google/uuid"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// GetOrderByID returns the order or an error wrapping ErrNotFound.
func (r *OrderRepository) GetOrderByID(ctx context.Context, orderID string) (*models.Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, fmt.Errorf("invalid order ID format: %w", err)
	}

	query := `
		SELECT id, customer_name, customer_email, address, city, state, zip,
		       delivery_address, status, updated_at
		FROM orders
		WHERE id = $1
	`
	var (
		order                            models.Order
		customerName, customerEmail      sql.NullString
		street, city, state, zip, legacy sql.NullString
		statusStr                        string
	)

	row := r.db.QueryRowContext(ctx, query, orderID)
	err := row.Scan(
		&order.ID, &customerName, &customerEmail, &street, &city, &state, &zip,
		&legacy, &statusStr, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order by ID: %w", err)
	}

	order.CustomerName = customerName.String
	order.CustomerEmail = customerEmail.String
	order.Address = models.Address{Street: street.String, City: city.String, State: state.String, Zip: zip.String}
	order.LegacyAddress = legacy.String
	order.Status = models.OrderStatus(statusStr)

	return &order, nil
}

func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, updatedAt time.Time) error {
	if _, err := uuid.Parse(orderID); err != nil {
		return fmt.Errorf("invalid order ID format: %w", err)
	}

	query := `
		UPDATE orders
		SET status = $2, updated_at = $3
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, orderID, string(status), updatedAt)
	if err != nil {
		return fmt.Errorf("failed to update order status for ID %s: %w", orderID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Printf("WARN: Could not get rows affected for order status update %s: %v", orderID, err)
		return nil
	}
	if rowsAffected == 0 {
		return fmt.Errorf("order %s not found for status update: %w", orderID, ErrNotFound)
	}

	return nil
}
