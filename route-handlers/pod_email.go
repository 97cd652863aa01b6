package routehandlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreybb/dropoff/mailer"
	"github.com/coreybb/dropoff/notify"
	"github.com/coreybb/dropoff/webutil"
	"github.com/google/uuid"
)

type PODNotifier interface {
	Configured() bool
	NotifyPOD(ctx context.Context, orderID, podID string, opts notify.Options) (*notify.Result, error)
}

// PODEmailHandler sends the proof-of-delivery email on request.
type PODEmailHandler struct {
	Notifier PODNotifier
}

func NewPODEmailHandler(notifier PODNotifier) *PODEmailHandler {
	return &PODEmailHandler{Notifier: notifier}
}

type podEmailRequest struct {
	OrderID string `json:"orderId"`
	PODID   string `json:"podId"`
}

// HandleSendPODEmail emails the customer the proof of delivery, at most once per POD.
// Route: POST /api/pod-email
func (h *PODEmailHandler) HandleSendPODEmail(w http.ResponseWriter, r *http.Request) error {
	var req podEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return webutil.ErrBadRequest("Invalid request payload: " + err.Error())
	}
	defer r.Body.Close()

	if !h.Notifier.Configured() {
		return webutil.ErrInternalServer("Missing SEND_GRID_API_KEY or DELIVERY_FROM_EMAIL")
	}
	if req.OrderID == "" || req.PODID == "" {
		return webutil.ErrBadRequest("orderId and podId are required")
	}
	if _, err := uuid.Parse(req.OrderID); err != nil {
		return webutil.ErrBadRequest("Invalid orderId format")
	}
	if _, err := uuid.Parse(req.PODID); err != nil {
		return webutil.ErrBadRequest("Invalid podId format")
	}

	res, err := h.Notifier.NotifyPOD(r.Context(), req.OrderID, req.PODID, notify.Options{})
	if err != nil {
		return notificationError(err)
	}

	switch res.Outcome {
	case notify.OutcomeSkipped:
		webutil.RespondWithJSON(w, http.StatusOK, map[string]any{"ok": true, "skipped": true, "reason": res.Reason})
	case notify.OutcomeAlreadySent:
		webutil.RespondWithJSON(w, http.StatusOK, map[string]any{"ok": true, "alreadySent": true})
	default:
		webutil.RespondWithJSON(w, http.StatusOK, map[string]any{
			"ok":        true,
			"status":    res.StatusCode,
			"messageId": res.MessageID,
		})
	}
	return nil
}

func notificationError(err error) error {
	var providerErr *mailer.ProviderError
	switch {
	case errors.Is(err, mailer.ErrNotConfigured):
		return webutil.NewHTTPErrorWrap(http.StatusInternalServerError, "Missing SEND_GRID_API_KEY or DELIVERY_FROM_EMAIL", err)
	case errors.Is(err, notify.ErrOrderNotFound):
		return webutil.ErrBadRequestWrap("Order not found", err)
	case errors.Is(err, notify.ErrPODNotFound):
		return webutil.ErrBadRequestWrap("POD missing", err)
	case errors.Is(err, notify.ErrPODOrderMismatch):
		return webutil.ErrBadRequestWrap("POD does not belong to order", err)
	case errors.As(err, &providerErr):
		return webutil.NewHTTPErrorWrap(http.StatusInternalServerError, "SendGrid error", err).
			WithDetails(map[string]any{"status": providerErr.StatusCode, "body": providerErr.Body})
	default:
		return webutil.NewHTTPErrorWrap(http.StatusInternalServerError, "Failed to send POD email", fmt.Errorf("notify: %w", err))
	}
}
