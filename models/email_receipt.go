package models

import "time"

// ProviderMessageIDAccepted is recorded when the provider accepted a message
// without returning an identifier for it.
const ProviderMessageIDAccepted = "accepted"

// EmailReceipt records the delivery notification sent for a proof of
// delivery. PODID is unique; a receipt with a nil SentAt is a reservation
// held while the send is in flight.
type EmailReceipt struct {
	PODID             string     `json:"pod_id"`
	OrderID           string     `json:"order_id"`
	ToEmail           string     `json:"to_email"`
	ProviderMessageID string     `json:"provider_message_id"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	// ReservedAt is when the send was claimed. Unsent reservations older
	// than the reconciliation cutoff are released.
	ReservedAt time.Time `json:"reserved_at"`
}
