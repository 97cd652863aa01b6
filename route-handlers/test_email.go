package routehandlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/mail"
	"time"

	"github.com/coreybb/dropoff/mailer"
	"github.com/coreybb/dropoff/notify"
	"github.com/coreybb/dropoff/ratelimit"
	"github.com/coreybb/dropoff/webutil"
)

var testEmailInstructions = []string{
	"1. Check your inbox (and spam folder)",
	"2. If email is in spam, verify your sender domain in SendGrid",
	"3. Track this email in SendGrid dashboard using the message ID above",
	"4. Go to: https://app.sendgrid.com/email_activity",
}

var sendGridTroubleshooting = map[string]string{
	"400": "Bad request - check sender email is verified",
	"401": "Invalid API key - check SENDGRID_API_KEY",
	"403": "Forbidden - sender email not verified or account suspended",
	"429": "Rate limit exceeded - wait and try again",
}

type TestMailer interface {
	HasAPIKey() bool
	From() string
	Send(ctx context.Context, msg mailer.Message) (*mailer.Receipt, error)
}

// TestEmailHandler sends a deliverability check to an arbitrary address.
type TestEmailHandler struct {
	Mailer   TestMailer
	Cooldown ratelimit.Cooldown
	now      func() time.Time
}

func NewTestEmailHandler(m TestMailer, cooldown ratelimit.Cooldown) *TestEmailHandler {
	if cooldown == nil {
		cooldown = ratelimit.Unlimited{}
	}
	return &TestEmailHandler{Mailer: m, Cooldown: cooldown, now: time.Now}
}

// HandleTestEmail sends one test message to the "to" query parameter.
// Route: GET /api/test-email?to=
func (h *TestEmailHandler) HandleTestEmail(w http.ResponseWriter, r *http.Request) error {
	to := r.URL.Query().Get("to")
	if to == "" {
		return webutil.ErrBadRequest("Missing ?to=email@example.com parameter")
	}
	if _, err := mail.ParseAddress(to); err != nil {
		return webutil.ErrBadRequestWrap("Invalid email address", err)
	}

	log.Printf("INFO (TestEmail): Testing email to %s (API key set: %t, from: %s)", to, h.Mailer.HasAPIKey(), h.Mailer.From())

	if !h.Mailer.HasAPIKey() {
		return webutil.ErrInternalServer("SENDGRID_API_KEY not configured").
			WithDetails(map[string]any{"help": "Add SENDGRID_API_KEY to environment variables"})
	}
	from := h.Mailer.From()
	if from == "" {
		return webutil.ErrInternalServer("DELIVERY_FROM_EMAIL not configured").
			WithDetails(map[string]any{"help": "Add DELIVERY_FROM_EMAIL to environment variables"})
	}

	ok, err := h.Cooldown.Acquire(r.Context(), to)
	if err != nil {
		log.Printf("WARN (TestEmail): Cooldown check failed, sending anyway: %v", err)
	} else if !ok {
		return webutil.ErrTooManyRequests("A test email was sent to this address recently, try again later")
	}

	receipt, err := h.Mailer.Send(r.Context(), notify.TestMessage(from, to, h.now()))
	if err != nil {
		// Nothing was delivered, so the recipient may retry immediately.
		if relErr := h.Cooldown.Release(context.WithoutCancel(r.Context()), to); relErr != nil {
			log.Printf("WARN (TestEmail): Failed to release cooldown for %s: %v", to, relErr)
		}
		var providerErr *mailer.ProviderError
		if errors.As(err, &providerErr) {
			log.Printf("ERROR (TestEmail): SendGrid returned %d: %s", providerErr.StatusCode, providerErr.Body)
			return webutil.NewHTTPErrorWrap(http.StatusInternalServerError, "SendGrid API error", err).
				WithDetails(map[string]any{
					"status":          providerErr.StatusCode,
					"details":         providerErr.Body,
					"troubleshooting": sendGridTroubleshooting,
				})
		}
		return webutil.NewHTTPErrorWrap(http.StatusInternalServerError, "Failed to send test email", err).
			WithDetails(map[string]any{"details": err.Error()})
	}

	log.Printf("INFO (TestEmail): SendGrid status %d, message %s", receipt.StatusCode, receipt.MessageID)
	webutil.RespondWithJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"status":       receipt.StatusCode,
		"message":      "Test email sent successfully!",
		"messageId":    receipt.MessageID,
		"to":           to,
		"from":         from,
		"instructions": testEmailInstructions,
	})
	return nil
}
