package notify

import (
	"fmt"
	"html"
	"time"

	"github.com/coreybb/dropoff/mailer"
)

// TestMessage builds the deliverability check sent by the test endpoint.
func TestMessage(from, to string, now time.Time) mailer.Message {
	body := fmt.Sprintf(`<h2>Test Email Successful!</h2>
<p>If you're reading this, your SendGrid integration is working correctly.</p>
<p><strong>Configuration:</strong></p>
<ul>
<li>From: %s</li>
<li>To: %s</li>
<li>Sent at: %s</li>
</ul>
<p>Next steps:</p>
<ol>
<li>Check if this email went to spam</li>
<li>If in spam, verify your sender domain in SendGrid</li>
<li>Set up domain authentication for better deliverability</li>
</ol>`, html.EscapeString(from), html.EscapeString(to), now.UTC().Format(time.RFC3339))

	return mailer.Message{
		To:      to,
		Subject: "Test Email - Delivery System",
		HTML:    body,
	}
}
