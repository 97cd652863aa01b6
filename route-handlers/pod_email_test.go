package routehandlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/coreybb/dropoff/datastore/datastoretest"
	"github.com/coreybb/dropoff/mailer"
	"github.com/coreybb/dropoff/mailer/mailertest"
	"github.com/coreybb/dropoff/models"
	"github.com/coreybb/dropoff/notify"
	"github.com/coreybb/dropoff/webutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func podEmailRoute(store *datastoretest.Store, sender *mailertest.Recorder) http.HandlerFunc {
	h := NewPODEmailHandler(notify.NewService(store, store, store, sender))
	return webutil.MakeHandler(h.HandleSendPODEmail, webutil.WithEnvelope(webutil.OKEnvelope))
}

func storeWithPOD() *datastoretest.Store {
	store := newStore()
	sig := "https://blob.test/pod-signatures/x.png"
	store.PutPOD(models.ProofOfDelivery{
		ID:           podID,
		OrderID:      orderID,
		DriverID:     "driver-1",
		SignatureURL: &sig,
		DeliveredAt:  time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	})
	return store
}

func TestHandleSendPODEmail_SendsOnce(t *testing.T) {
	store := storeWithPOD()
	sender := &mailertest.Recorder{MessageID: "msg-1"}
	route := podEmailRoute(store, sender)
	req := map[string]string{"orderId": orderID, "podId": podID}

	rec, body := do(t, route, http.MethodPost, "/api/pod-email", req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "msg-1", body["messageId"])
	assert.Equal(t, float64(http.StatusAccepted), body["status"])

	rec, body = do(t, route, http.MethodPost, "/api/pod-email", req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"ok": true, "alreadySent": true}, body)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].HTML, "12 Main St, Springfield, IL, 62704")
	assert.Contains(t, sent[0].HTML, "https://blob.test/pod-signatures/x.png")
	assert.NotContains(t, sent[0].HTML, "No delivery photo available")
}

func TestHandleSendPODEmail_NoCustomerEmail(t *testing.T) {
	store := storeWithPOD()
	store.PutOrder(models.Order{ID: orderID, CustomerName: "Ada", Status: models.OrderStatusDelivered})
	sender := &mailertest.Recorder{}

	rec, body := do(t, podEmailRoute(store, sender), http.MethodPost, "/api/pod-email",
		map[string]string{"orderId": orderID, "podId": podID})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"ok": true, "skipped": true, "reason": "customer_email not set for this order"}, body)
	assert.Empty(t, sender.Sent())
	_, ok := store.Receipt(podID)
	assert.False(t, ok)
}

func TestHandleSendPODEmail_Errors(t *testing.T) {
	tests := []struct {
		name    string
		sender  *mailertest.Recorder
		req     map[string]string
		code    int
		message string
	}{
		{"missing config", &mailertest.Recorder{Unconfigured: true}, map[string]string{"orderId": orderID, "podId": podID},
			http.StatusInternalServerError, "Missing SEND_GRID_API_KEY or DELIVERY_FROM_EMAIL"},
		{"missing ids", &mailertest.Recorder{}, map[string]string{"orderId": orderID},
			http.StatusBadRequest, "orderId and podId are required"},
		{"unknown order", &mailertest.Recorder{}, map[string]string{"orderId": "00000000-0000-4000-8000-000000000000", "podId": podID},
			http.StatusBadRequest, "Order not found"},
		{"unknown pod", &mailertest.Recorder{}, map[string]string{"orderId": orderID, "podId": "00000000-0000-4000-8000-000000000000"},
			http.StatusBadRequest, "POD missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, podEmailRoute(storeWithPOD(), tt.sender), http.MethodPost, "/api/pod-email", tt.req)
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, false, body["ok"])
			assert.Equal(t, tt.message, body["error"])
		})
	}
}

func TestHandleSendPODEmail_ProviderError(t *testing.T) {
	store := storeWithPOD()
	sender := &mailertest.Recorder{Err: &mailer.ProviderError{StatusCode: http.StatusForbidden, Body: "sender not verified"}}

	rec, body := do(t, podEmailRoute(store, sender), http.MethodPost, "/api/pod-email",
		map[string]string{"orderId": orderID, "podId": podID})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, float64(http.StatusForbidden), body["status"])
	assert.Equal(t, "sender not verified", body["body"])

	_, ok := store.Receipt(podID)
	assert.False(t, ok, "failed sends must not leave a receipt")
}
