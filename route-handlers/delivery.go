package routehandlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/coreybb/dropoff/auth"
	"github.com/coreybb/dropoff/confirmation"
	"github.com/coreybb/dropoff/models"
	"github.com/coreybb/dropoff/webutil"
	"github.com/google/uuid"
)

const msgAuthenticationRequired = "Authentication required"

type Authenticator interface {
	Authenticate(r *http.Request) (*models.Driver, error)
}

type Confirmer interface {
	Confirm(ctx context.Context, driver *models.Driver, req confirmation.Request) (*models.ProofOfDelivery, error)
}

// DeliveryHandler accepts delivery confirmations from drivers.
type DeliveryHandler struct {
	Auth          Authenticator
	Confirmations Confirmer
}

func NewDeliveryHandler(authenticator Authenticator, confirmations Confirmer) *DeliveryHandler {
	return &DeliveryHandler{Auth: authenticator, Confirmations: confirmations}
}

type deliverRequest struct {
	OrderID       string `json:"orderId"`
	PhotoData     string `json:"photoData"`
	SignatureData string `json:"signatureData"`
	RecipientName string `json:"recipientName"`
	Notes         string `json:"notes"`
}

// HandleDeliver records a proof of delivery and marks the order delivered.
// Route: POST /api/driver/deliver
func (h *DeliveryHandler) HandleDeliver(w http.ResponseWriter, r *http.Request) error {
	driver, err := h.Auth.Authenticate(r)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			return webutil.ErrUnauthorizedWrap(msgAuthenticationRequired, err)
		}
		return webutil.NewHTTPErrorWrap(http.StatusInternalServerError, "Failed to verify session", err)
	}

	var req deliverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return webutil.ErrBadRequest("Invalid request payload: " + err.Error())
	}
	defer r.Body.Close()

	if req.OrderID == "" {
		return webutil.ErrBadRequest("orderId is required")
	}
	if _, err := uuid.Parse(req.OrderID); err != nil {
		return webutil.ErrBadRequest("Invalid orderId format")
	}

	pod, err := h.Confirmations.Confirm(r.Context(), driver, confirmation.Request{
		OrderID:       req.OrderID,
		PhotoData:     req.PhotoData,
		SignatureData: req.SignatureData,
		RecipientName: req.RecipientName,
		Notes:         req.Notes,
	})
	if err != nil {
		return confirmationError(err)
	}

	log.Printf("INFO (Delivery): Order %s delivered, POD %s", req.OrderID, pod.ID)
	webutil.RespondWithJSON(w, http.StatusOK, map[string]any{"success": true, "podId": pod.ID})
	return nil
}

func confirmationError(err error) error {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return webutil.ErrUnauthorizedWrap(msgAuthenticationRequired, err)
	case errors.Is(err, confirmation.ErrInvalidRequest):
		return webutil.ErrBadRequestWrap(err.Error(), err)
	case errors.Is(err, confirmation.ErrUpload):
		return webutil.NewHTTPErrorWrap(http.StatusInternalServerError, "Failed to upload delivery evidence", err)
	case errors.Is(err, confirmation.ErrSavePOD):
		return webutil.NewHTTPErrorWrap(http.StatusInternalServerError, "Failed to save POD", err)
	case errors.Is(err, confirmation.ErrUpdateOrder):
		return webutil.NewHTTPErrorWrap(http.StatusInternalServerError, "Failed to update order status", err)
	default:
		return err
	}
}
