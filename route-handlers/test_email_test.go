package routehandlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/coreybb/dropoff/mailer"
	"github.com/coreybb/dropoff/mailer/mailertest"
	"github.com/coreybb/dropoff/webutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type onceCooldown map[string]bool

func (c onceCooldown) Acquire(_ context.Context, key string) (bool, error) {
	if c[key] {
		return false, nil
	}
	c[key] = true
	return true, nil
}

func (c onceCooldown) Release(_ context.Context, key string) error {
	delete(c, key)
	return nil
}

func testEmailRoute(sender *mailertest.Recorder, cooldown onceCooldown) http.HandlerFunc {
	h := NewTestEmailHandler(sender, cooldown)
	return webutil.MakeHandler(h.HandleTestEmail)
}

func TestHandleTestEmail_Success(t *testing.T) {
	sender := &mailertest.Recorder{Sender: "ops@example.com", MessageID: "m-9"}

	rec, body := do(t, testEmailRoute(sender, onceCooldown{}), http.MethodGet, "/api/test-email?to=me@example.com", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "m-9", body["messageId"])
	assert.Equal(t, "me@example.com", body["to"])
	assert.Equal(t, "ops@example.com", body["from"])
	assert.Len(t, body["instructions"], 4)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Test Email - Delivery System", sent[0].Subject)
}

func TestHandleTestEmail_Validation(t *testing.T) {
	tests := []struct {
		name   string
		sender *mailertest.Recorder
		target string
		code   int
		errMsg string
	}{
		{"missing to", &mailertest.Recorder{Sender: "ops@example.com"}, "/api/test-email",
			http.StatusBadRequest, "Missing ?to=email@example.com parameter"},
		{"bad address", &mailertest.Recorder{Sender: "ops@example.com"}, "/api/test-email?to=nope",
			http.StatusBadRequest, "Invalid email address"},
		{"no key", &mailertest.Recorder{Sender: "ops@example.com", NoAPIKey: true}, "/api/test-email?to=me@example.com",
			http.StatusInternalServerError, "SENDGRID_API_KEY not configured"},
		{"no sender", &mailertest.Recorder{}, "/api/test-email?to=me@example.com",
			http.StatusInternalServerError, "DELIVERY_FROM_EMAIL not configured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, testEmailRoute(tt.sender, onceCooldown{}), http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.errMsg, body["error"])
			assert.Empty(t, tt.sender.Sent())
		})
	}
}

func TestHandleTestEmail_ProviderError(t *testing.T) {
	sender := &mailertest.Recorder{
		Sender: "ops@example.com",
		Err:    &mailer.ProviderError{StatusCode: http.StatusUnauthorized, Body: `{"errors":[]}`},
	}

	rec, body := do(t, testEmailRoute(sender, onceCooldown{}), http.MethodGet, "/api/test-email?to=me@example.com", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "SendGrid API error", body["error"])
	assert.Equal(t, float64(http.StatusUnauthorized), body["status"])
	assert.Equal(t, `{"errors":[]}`, body["details"])
	assert.Contains(t, body["troubleshooting"], "401")
}

func TestHandleTestEmail_Cooldown(t *testing.T) {
	sender := &mailertest.Recorder{Sender: "ops@example.com"}
	route := testEmailRoute(sender, onceCooldown{})

	rec, _ := do(t, route, http.MethodGet, "/api/test-email?to=me@example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, route, http.MethodGet, "/api/test-email?to=me@example.com", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Len(t, sender.Sent(), 1)
}

func TestHandleTestEmail_FailedSendDoesNotStartCooldown(t *testing.T) {
	sender := &mailertest.Recorder{Sender: "ops@example.com", Err: errors.New("connection reset")}
	route := testEmailRoute(sender, onceCooldown{})

	rec, _ := do(t, route, http.MethodGet, "/api/test-email?to=me@example.com", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	sender.Err = nil
	rec, body := do(t, route, http.MethodGet, "/api/test-email?to=me@example.com", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Len(t, sender.Sent(), 2)
}
