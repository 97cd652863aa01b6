package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	rh "github.com/coreybb/dropoff/route-handlers"
	"github.com/coreybb/dropoff/scheduler"
	"github.com/coreybb/dropoff/webutil"
)

const (
	apiBasePath       = "/api"
	driverBasePath    = "/driver"
	schedulerBasePath = "/scheduler"
	filesBasePath     = "/files"
)

const (
	deliverSubPath   = "/deliver"
	podEmailSubPath  = "/pod-email"
	testEmailSubPath = "/test-email"
	reconcileSubPath = "/reconcile"
)

// SetupRoutes builds the service router. files serves locally stored
// objects and may be nil when uploads go to a remote store.
func SetupRoutes(
	deliveryHandler *rh.DeliveryHandler,
	podEmailHandler *rh.PODEmailHandler,
	testEmailHandler *rh.TestEmailHandler,
	sched *scheduler.Scheduler,
	files http.Handler,
) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)                    // Log every request
	r.Use(middleware.Recoverer)                 // Recover from panics
	r.Use(Instrument)                           // Prometheus request metrics
	r.Use(middleware.Timeout(60 * time.Second)) // Set a timeout context for requests

	r.Route(apiBasePath, func(r chi.Router) {
		r.Use(SetHeader(webutil.HeaderContentType, webutil.ContentTypeJSONUTF8)) // Default Content-Type
		configureDriverRoutes(r, deliveryHandler)
		configureEmailRoutes(r, podEmailHandler, testEmailHandler)
	})

	r.Route(schedulerBasePath, func(r chi.Router) {
		r.Post(reconcileSubPath, sched.HandleTick)
	})

	if files != nil {
		r.With(SetHeader("X-Content-Type-Options", "nosniff")).
			Handle(filesBasePath+"/*", http.StripPrefix(filesBasePath, files))
	}

	r.Get("/healthz", handleHealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// --- Driver Routes ---
func configureDriverRoutes(r chi.Router, handler *rh.DeliveryHandler) {
	r.Route(driverBasePath, func(r chi.Router) {
		r.Post(deliverSubPath, webutil.MakeHandler(handler.HandleDeliver, webutil.WithEnvelope(webutil.SuccessEnvelope)))
	})
}

// --- Notification Routes ---
func configureEmailRoutes(r chi.Router, podEmail *rh.PODEmailHandler, testEmail *rh.TestEmailHandler) {
	r.Post(podEmailSubPath, webutil.MakeHandler(podEmail.HandleSendPODEmail, webutil.WithEnvelope(webutil.OKEnvelope)))
	r.Get(testEmailSubPath, webutil.MakeHandler(testEmail.HandleTestEmail))
}

// handleHealthCheck responds to a health check request.
func handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	webutil.RespondWithText(w, http.StatusOK, "OK")
}
