// Package mailertest provides a recording sender for tests.
package mailertest

import (
	"context"
	"net/http"
	"sync"

	"github.com/coreybb/dropoff/mailer"
)

// Recorder records messages instead of sending them.
type Recorder struct {
	mu   sync.Mutex
	sent []mailer.Message

	Unconfigured bool
	// NoAPIKey makes HasAPIKey report false.
	NoAPIKey bool
	Sender       string
	MessageID    string
	// Err, when set, is returned from Send; the message is still recorded
	// as an attempted call.
	Err error
}

func (r *Recorder) Configured() bool { return !r.Unconfigured }

func (r *Recorder) From() string { return r.Sender }

func (r *Recorder) HasAPIKey() bool { return !r.Unconfigured && !r.NoAPIKey }

func (r *Recorder) Send(_ context.Context, msg mailer.Message) (*mailer.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Unconfigured {
		return nil, mailer.ErrNotConfigured
	}
	r.sent = append(r.sent, msg)
	if r.Err != nil {
		return nil, r.Err
	}
	return &mailer.Receipt{StatusCode: http.StatusAccepted, MessageID: r.MessageID}, nil
}

// Sent returns every message passed to Send, including failed ones.
func (r *Recorder) Sent() []mailer.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mailer.Message(nil), r.sent...)
}
