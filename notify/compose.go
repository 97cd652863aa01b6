package notify

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/coreybb/dropoff/mailer"
	"github.com/coreybb/dropoff/models"
	"github.com/microcosm-cc/bluemonday"
)

const deliveredAtLayout = "Jan 2, 2006 3:04 PM MST"

// Options tunes the message for the calling path.
type Options struct {
	// MissingMediaNotices renders a warning when the photo or signature is absent.
	MissingMediaNotices bool
}

var textPolicy = bluemonday.StrictPolicy()

// Compose builds the delivery notification for order and pod.
func Compose(order *models.Order, pod *models.ProofOfDelivery, opts Options, now time.Time) mailer.Message {
	deliveredAt := pod.DeliveredAt
	if deliveredAt.IsZero() {
		deliveredAt = now
	}

	customer := order.CustomerName
	if strings.TrimSpace(customer) == "" {
		customer = "N/A"
	}

	var b strings.Builder
	b.WriteString(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">`)
	b.WriteString(`<h2 style="color: #2563eb;">Delivery Completed</h2>`)
	b.WriteString(`<p>Your order has been successfully delivered!</p>`)

	b.WriteString(`<div style="background: #f3f4f6; padding: 20px; border-radius: 8px; margin: 20px 0;">`)
	fmt.Fprintf(&b, `<p><strong>Order Number:</strong> #%s</p>`, text(order.Number()))
	fmt.Fprintf(&b, `<p><strong>Customer:</strong> %s</p>`, text(customer))
	fmt.Fprintf(&b, `<p><strong>Delivery Address:</strong> %s</p>`, text(order.DeliveryAddress()))
	fmt.Fprintf(&b, `<p><strong>Delivered At:</strong> %s</p>`, deliveredAt.UTC().Format(deliveredAtLayout))
	if v := optional(pod.RecipientName); v != "" {
		fmt.Fprintf(&b, `<p><strong>Received By:</strong> %s</p>`, text(v))
	}
	if v := optional(pod.Notes); v != "" {
		fmt.Fprintf(&b, `<p><strong>Notes:</strong> %s</p>`, text(v))
	}
	b.WriteString(`</div>`)

	writeMedia(&b, "Delivery Photo", "max-width: 100%;", optional(pod.PhotoURL),
		"No delivery photo available", opts.MissingMediaNotices)
	writeMedia(&b, "Signature", "max-width: 300px; border: 1px solid #e5e7eb;", optional(pod.SignatureURL),
		"No signature available", opts.MissingMediaNotices)

	b.WriteString(`<p style="color: #6b7280; font-size: 12px; margin-top: 30px;">`)
	b.WriteString(`This is an automated delivery notification. Please do not reply to this email.</p>`)
	b.WriteString(`</div>`)

	return mailer.Message{
		To:      order.CustomerEmail,
		Subject: fmt.Sprintf("Delivery Complete - Order #%s", order.Number()),
		HTML:    b.String(),
	}
}

func writeMedia(b *strings.Builder, label, style, rawURL, missing string, notice bool) {
	link, ok := safeURL(rawURL)
	if !ok {
		if notice {
			fmt.Fprintf(b, `<p style="color: #ef4444;">&#9888;&#65039; %s</p>`, missing)
		}
		return
	}
	b.WriteString(`<div style="margin: 20px 0;">`)
	fmt.Fprintf(b, `<p><strong>%s:</strong></p>`, label)
	fmt.Fprintf(b, `<img src="%s" alt="%s" style="%s height: auto; border-radius: 8px;" />`, link, label, style)
	fmt.Fprintf(b, `<p><a href="%s" style="color: #2563eb;">View Full Size</a></p>`, link)
	b.WriteString(`</div>`)
}

// safeURL accepts only absolute http(s) URLs and returns them attribute-escaped.
func safeURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	return html.EscapeString(u.String()), true
}

func text(s string) string {
	return textPolicy.Sanitize(s)
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
