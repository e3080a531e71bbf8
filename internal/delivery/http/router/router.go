package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/user/tablemagnifier/internal/delivery/http/handler"
	"github.com/user/tablemagnifier/internal/delivery/http/middleware"
	"github.com/user/tablemagnifier/pkg/metrics"
)

// New mounts the operational endpoints. gatherer backs /metrics and is
// normally the registry m was created with.
func New(h *handler.Handler, gatherer prometheus.Gatherer, m *metrics.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/api/health", h.HandleHealthCheck)
	r.NotFound(h.HandleNotFound)

	return r
}
