package models

import "time"

// ProofOfDelivery captures the evidence a driver submits when handing over
// an order. Optional fields are nil when the driver did not provide them.
type ProofOfDelivery struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"order_id"`
	DriverID      string    `json:"driver_id"`
	PhotoURL      *string   `json:"photo_url"`
	SignatureURL  *string   `json:"signature_url"`
	RecipientName *string   `json:"recipient_name"`
	Notes         *string   `json:"notes"`
	DeliveredAt   time.Time `json:"delivered_at"`
}
