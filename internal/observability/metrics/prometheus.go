package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonsearch/pkg/constants"
)

// SearchMetrics provides Prometheus-based metrics for search runs. A nil
// *SearchMetrics is valid and records nothing.
type SearchMetrics struct {
	logger   *logrus.Logger
	registry *prometheus.Registry
	server   *http.Server
	config   *PrometheusConfig

	checksTotal      *prometheus.CounterVec
	checkDuration    *prometheus.HistogramVec
	evaluationsTotal *prometheus.CounterVec
	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	optimumLoss      *prometheus.GaugeVec
	epsilonSpent     *prometheus.CounterVec
	historySnapshots prometheus.Gauge
}

// PrometheusConfig configures Prometheus metrics
type PrometheusConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Port      int    `json:"port" mapstructure:"port"`
	Path      string `json:"path" mapstructure:"path"`
	Namespace string `json:"namespace" mapstructure:"namespace"`
}

// NewSearchMetrics creates and registers the search metrics
func NewSearchMetrics(config *PrometheusConfig, logger *logrus.Logger) (*SearchMetrics, error) {
	if config == nil {
		config = getDefaultPrometheusConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}

	sm := &SearchMetrics{
		logger:   logger,
		registry: prometheus.NewRegistry(),
		config:   config,
	}
	sm.initializeMetrics()

	if err := sm.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return sm, nil
}

// Start serves the registry over HTTP when enabled
func (sm *SearchMetrics) Start(ctx context.Context) error {
	if sm == nil || !sm.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(sm.config.Path, sm.Handler())
	sm.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", sm.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sm.logger.WithFields(logrus.Fields{
		"port": sm.config.Port,
		"path": sm.config.Path,
	}).Info("Starting Prometheus metrics server")

	go func() {
		if err := sm.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sm.logger.WithError(err).Error("Prometheus metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (sm *SearchMetrics) Stop(ctx context.Context) error {
	if sm == nil || sm.server == nil {
		return nil
	}
	sm.logger.Info("Stopping Prometheus metrics server")
	return sm.server.Shutdown(ctx)
}

// Handler exposes the registry in the Prometheus text format
func (sm *SearchMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(sm.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordCheck counts one check
func (sm *SearchMetrics) RecordCheck(algorithm string, duration time.Duration) {
	if sm == nil {
		return
	}
	sm.checksTotal.WithLabelValues(algorithm).Inc()
	sm.checkDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
}

// RecordEvaluation counts one independent loss evaluation
func (sm *SearchMetrics) RecordEvaluation(algorithm string) {
	if sm == nil {
		return
	}
	sm.evaluationsTotal.WithLabelValues(algorithm).Inc()
}

// RecordRun records a finished run
func (sm *SearchMetrics) RecordRun(algorithm string, optimal bool, duration time.Duration) {
	if sm == nil {
		return
	}
	sm.runsTotal.WithLabelValues(algorithm, strconv.FormatBool(optimal)).Inc()
	sm.runDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
}

// SetOptimumLoss publishes the loss of the current optimum
func (sm *SearchMetrics) SetOptimumLoss(algorithm string, loss float64) {
	if sm == nil {
		return
	}
	sm.optimumLoss.WithLabelValues(algorithm).Set(loss)
}

// RecordEpsilonSpent adds to the spent privacy budget
func (sm *SearchMetrics) RecordEpsilonSpent(algorithm string, epsilon float64) {
	if sm == nil {
		return
	}
	sm.epsilonSpent.WithLabelValues(algorithm).Add(epsilon)
}

// SetHistorySnapshots publishes the number of cached snapshots
func (sm *SearchMetrics) SetHistorySnapshots(count int) {
	if sm == nil {
		return
	}
	sm.historySnapshots.Set(float64(count))
}

// GetRegistry returns the Prometheus registry
func (sm *SearchMetrics) GetRegistry() *prometheus.Registry {
	return sm.registry
}

func (sm *SearchMetrics) initializeMetrics() {
	namespace := sm.config.Namespace

	sm.checksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Total number of transformation checks",
		},
		[]string{"algorithm"},
	)

	sm.checkDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Duration of a single transformation check in seconds",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1, 10},
		},
		[]string{"algorithm"},
	)

	sm.evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Total number of independent information loss evaluations",
		},
		[]string{"algorithm"},
	)

	sm.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of finished search runs",
		},
		[]string{"algorithm", "optimal"},
	)

	sm.runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Search run duration in seconds",
			Buckets:   []float64{0.01, 0.1, 1, 5, 10, 30, 60, 300, 600},
		},
		[]string{"algorithm"},
	)

	sm.optimumLoss = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "optimum_loss",
			Help:      "Information loss of the current global optimum",
		},
		[]string{"algorithm"},
	)

	sm.epsilonSpent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "epsilon_spent_total",
			Help:      "Privacy budget spent by differentially private searches",
		},
		[]string{"algorithm"},
	)

	sm.historySnapshots = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_snapshots",
			Help:      "Number of equivalence class snapshots in the history",
		},
	)
}

func (sm *SearchMetrics) registerMetrics() error {
	collectors := []prometheus.Collector{
		sm.checksTotal,
		sm.checkDuration,
		sm.evaluationsTotal,
		sm.runsTotal,
		sm.runDuration,
		sm.optimumLoss,
		sm.epsilonSpent,
		sm.historySnapshots,
	}

	for _, collector := range collectors {
		if err := sm.registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

func getDefaultPrometheusConfig() *PrometheusConfig {
	return &PrometheusConfig{
		Enabled:   false,
		Port:      9090,
		Path:      "/metrics",
		Namespace: constants.MetricsNamespace,
	}
}
