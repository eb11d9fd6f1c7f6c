package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dtn-bard/bard/internal/logger"
	"github.com/dtn-bard/bard/pkg/api/handlers"
	"github.com/dtn-bard/bard/pkg/bard"
)

// NewRouter builds the chi router exposing BARD's command surface
// over HTTP. There is no authentication layer: bardctl and this
// server share the same trust boundary as the rest of the bundle
// protocol stack.
//
// Routes:
//   - GET /health, /health/ready - liveness/readiness probes
//   - POST   /api/v1/quotas                             - add_quota
//   - GET    /api/v1/quotas                              - quotas
//   - DELETE /api/v1/quotas/{type}/{scheme}/{node}        - del_quota
//   - POST   /api/v1/quotas/{type}/{scheme}/{node}/unlimited - unlimited_quota
//   - GET    /api/v1/usage                                - usage
//   - GET    /api/v1/dump                                 - dump
//   - POST   /api/v1/rescan                               - rescan
//   - POST   /api/v1/reload_all                           - reload_all
//   - DELETE /api/v1/restaged_bundles                      - del_all_restaged_bundles
//   - POST   /api/v1/keys/{key}/force_restage              - force_restage
//   - POST   /api/v1/keys/{key}/reload                     - reload
//   - DELETE /api/v1/keys/{key}/restaged_bundles            - del_restaged_bundles
func NewRouter(owner *bard.BARD) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(owner)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	bardHandler := handlers.NewBARDHandler(owner)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/quotas", func(r chi.Router) {
			r.Post("/", bardHandler.AddQuota)
			r.Get("/", bardHandler.Quotas)
			r.Delete("/{type}/{scheme}/{node}", bardHandler.DelQuota)
			r.Post("/{type}/{scheme}/{node}/unlimited", bardHandler.UnlimitedQuota)
		})

		r.Get("/usage", bardHandler.Usage)
		r.Get("/dump", bardHandler.Dump)

		r.Post("/rescan", bardHandler.Rescan)
		r.Post("/reload_all", bardHandler.ReloadAll)
		r.Delete("/restaged_bundles", bardHandler.DelAllRestagedBundles)

		r.Route("/keys/{key}", func(r chi.Router) {
			r.Post("/force_restage", bardHandler.ForceRestage)
			r.Post("/reload", bardHandler.Reload)
			r.Delete("/restaged_bundles", bardHandler.DelRestagedBundles)
		})
	})

	return r
}

// requestLogger logs every request at debug on start and info on
// completion, mirroring the daemon's structured logging elsewhere.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
