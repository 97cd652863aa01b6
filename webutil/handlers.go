package webutil

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/coreybb/dropoff/datastore"
)

// AppHandler represents a handler function that returns an error.
type AppHandler func(w http.ResponseWriter, r *http.Request) error

// Envelope shapes the JSON body of an error response. details holds any
// extra fields attached with HTTPError.WithDetails.
type Envelope func(message string, details map[string]any) map[string]any

// ErrorEnvelope renders {"error": message}.
func ErrorEnvelope(message string, details map[string]any) map[string]any {
	return withFlag("", false, message, details)
}

// SuccessEnvelope renders {"success": false, "error": message}.
func SuccessEnvelope(message string, details map[string]any) map[string]any {
	return withFlag("success", false, message, details)
}

// OKEnvelope renders {"ok": false, "error": message}.
func OKEnvelope(message string, details map[string]any) map[string]any {
	return withFlag("ok", false, message, details)
}

func withFlag(flag string, value bool, message string, details map[string]any) map[string]any {
	body := make(map[string]any, len(details)+2)
	for k, v := range details {
		body[k] = v
	}
	if flag != "" {
		body[flag] = value
	}
	body["error"] = message
	return body
}

// HandlerOption configures MakeHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	envelope Envelope
}

// WithEnvelope sets the error body shape for a route.
func WithEnvelope(e Envelope) HandlerOption {
	return func(c *handlerConfig) { c.envelope = e }
}

// MakeHandler adapts an AppHandler to the standard http.HandlerFunc signature.
// It executes the AppHandler and handles any returned error by logging appropriately
// and sending a JSON error response in the route's envelope.
func MakeHandler(handler AppHandler, opts ...HandlerOption) http.HandlerFunc {
	cfg := handlerConfig{envelope: ErrorEnvelope}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		err := handler(ww, r)
		if err == nil {
			// The handler wrote its own successful response.
			return
		}

		var httpErr *HTTPError
		var publicMessage string
		var statusCode int
		var details map[string]any

		switch {
		case errors.As(err, &httpErr):
			statusCode = httpErr.Code
			publicMessage = httpErr.Message
			details = httpErr.Details
			logLevel := slog.LevelWarn // Treat client errors as warnings server-side
			if statusCode >= 500 {
				logLevel = slog.LevelError
			}
			attrs := []any{
				"code", httpErr.Code,
				"msg", httpErr.Message,
				"path", r.URL.Path,
				"method", r.Method,
			}
			// Log the underlying cause if present and different from the public message
			if cause := errors.Unwrap(httpErr); cause != nil && cause.Error() != publicMessage {
				attrs = append(attrs, "cause", cause)
			}
			slog.Log(r.Context(), logLevel, "Client error response", attrs...)

		case errors.Is(err, datastore.ErrNotFound):
			statusCode = http.StatusNotFound
			publicMessage = msgNotFound
			slog.Info("Resource not found", "path", r.URL.Path, "method", r.Method, "error", err)

		default:
			statusCode = http.StatusInternalServerError
			publicMessage = msgInternalServer
			slog.Error("Unhandled internal error", "path", r.URL.Path, "method", r.Method, "error", err)
		}

		if ww.Status() != 0 {
			slog.Warn("Handler returned error after writing response header",
				"path", r.URL.Path,
				"method", r.Method,
				"error", err,
			)
			return
		}

		RespondWithJSON(ww, statusCode, cfg.envelope(publicMessage, details))
	}
}
