package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/logging"
	"github.com/ariefcatur/storefront-orders/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type RouterConfig struct {
	Log        logging.Logger
	Metrics    *metrics.Metrics
	DB         Pinger
	CORSOrigin string
}

func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(cfg.Log), middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Instrument)
	}
	r.Use(middleware.Timeout(15 * time.Second))
	if cfg.CORSOrigin != "" {
		r.Use(cors(cfg.CORSOrigin))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", readyz(cfg.DB, cfg.Log))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}
	return r
}

func readyz(db Pinger, log logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			log.Warn(r.Context(), "readiness check failed", "err", err)
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

type routeRegistrar interface {
	Register(r chi.Router)
}

// MountAPI registers every handler under /api.
func MountAPI(r chi.Router, handlers ...routeRegistrar) {
	r.Route("/api", func(api chi.Router) {
		for _, h := range handlers {
			h.Register(api)
		}
	})
}
