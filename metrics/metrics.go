// Package metrics exposes Prometheus counters for provisioning outcomes and
// a standalone metrics server, kept off the public listener so operators can
// scrape it without exposing it.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ProvisionAttempts counts provisioning requests by outcome. Outcomes are
// "success", "invalid_request", "invalid_signature", "no_machine",
// "address_used", "registry_error", "ledger_error", "key_error" and
// "broadcast_error".
var ProvisionAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "account_provisioner_attempts_total",
	Help: "Provisioning attempts by outcome",
}, []string{"outcome"})

// MachineChecks counts standalone ownership lookups served over HTTP.
var MachineChecks = promauto.NewCounter(prometheus.CounterOpts{
	Name: "account_provisioner_machine_checks_total",
	Help: "Standalone Bitcoin Machine ownership lookups",
})

// MetricsServer serves the Prometheus scrape endpoint.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server listening on addr. The name labels nothing
// yet but keeps the signature stable for multi-service deployments.
func New(name, addr string) (*MetricsServer, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
