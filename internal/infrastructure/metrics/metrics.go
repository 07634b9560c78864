package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Contadores del motor de sincronización y del change feed.
var (
	SyncOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "obrastock_sync_operations_total",
		Help: "Operaciones optimistas por entidad, operación y resultado.",
	}, []string{"entity", "op", "result"})

	SyncRollbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "obrastock_sync_rollbacks_total",
		Help: "Rollbacks locales tras fallo de la operación remota.",
	}, []string{"entity", "op"})

	FeedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "obrastock_changefeed_events_total",
		Help: "Eventos del change feed entregados a reconciliadores.",
	}, []string{"table", "type"})

	FeedDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "obrastock_changefeed_dropped_total",
		Help: "Eventos descartados por suscriptor saturado.",
	})
)

// Server expone /metrics y /health en un servidor aparte del API.
type Server struct {
	srv *http.Server
}

// NewServer construye el servidor de métricas.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{srv: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}}
}

// Start bloquea sirviendo hasta Shutdown.
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown apaga el servidor con gracia.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
