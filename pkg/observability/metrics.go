package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "protobridge"

// BridgeMetrics counts packet-path outcomes. A nil receiver is valid and
// turns every update into a no-op, so the bridge runs unchanged with
// metrics disabled.
type BridgeMetrics struct {
	packets          prometheus.Counter
	decodeFailures   prometheus.Counter
	acks             prometheus.Counter
	unroutable       prometheus.Counter
	conversionErrors prometheus.Counter
	txBytes          prometheus.Counter
}

// NewBridgeMetrics registers the bridge counters with reg.
func NewBridgeMetrics(reg prometheus.Registerer, target string) *BridgeMetrics {
	labels := prometheus.Labels{"target": target}
	m := &BridgeMetrics{
		packets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "packets_total",
			Help:        "Inbound frames that decoded as a comm_msg envelope.",
			ConstLabels: labels,
		}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "decode_failures_total",
			Help:        "Inbound frames discarded as corrupted.",
			ConstLabels: labels,
		}),
		acks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "acks_total",
			Help:        "Acknowledgement envelopes sent back to clients.",
			ConstLabels: labels,
		}),
		unroutable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "unroutable_total",
			Help:        "Envelopes no handler claimed.",
			ConstLabels: labels,
		}),
		conversionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "conversion_errors_total",
			Help:        "Well-formed envelopes whose payload a handler rejected.",
			ConstLabels: labels,
		}),
		txBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "tx_bytes_total",
			Help:        "Bytes handed to the transmit sink.",
			ConstLabels: labels,
		}),
	}
	reg.MustRegister(m.packets, m.decodeFailures, m.acks, m.unroutable, m.conversionErrors, m.txBytes)
	return m
}

func (m *BridgeMetrics) Packet() {
	if m != nil {
		m.packets.Inc()
	}
}

func (m *BridgeMetrics) DecodeFailure() {
	if m != nil {
		m.decodeFailures.Inc()
	}
}

func (m *BridgeMetrics) Ack() {
	if m != nil {
		m.acks.Inc()
	}
}

func (m *BridgeMetrics) Unroutable() {
	if m != nil {
		m.unroutable.Inc()
	}
}

func (m *BridgeMetrics) ConversionError() {
	if m != nil {
		m.conversionErrors.Inc()
	}
}

func (m *BridgeMetrics) TxBytes(n int) {
	if m != nil {
		m.txBytes.Add(float64(n))
	}
}

// MetricsServer exposes /metrics and /health over HTTP.
type MetricsServer struct {
	httpServer *http.Server
}

// NewMetricsServer builds the server for addr (e.g. ":9090").
func NewMetricsServer(addr string, gatherer prometheus.Gatherer) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &MetricsServer{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start begins serving without blocking. The returned channel reports a
// listen failure, then closes.
func (s *MetricsServer) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
