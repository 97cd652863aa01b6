package models

// Driver is the authenticated caller submitting a delivery confirmation.
type Driver struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
