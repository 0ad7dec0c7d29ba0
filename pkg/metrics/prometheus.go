package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	providerRequests *prometheus.CounterVec
	providerErrors   *prometheus.CounterVec
	degraded         *prometheus.CounterVec
	trainingSeconds  *prometheus.HistogramVec
	predictions      *prometheus.CounterVec
	backtests        *prometheus.CounterVec
	alerts           *prometheus.CounterVec
}

// New creates a recorder registered on reg; nil means the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		providerRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_monitor_provider_requests_total",
				Help: "Upstream market data requests by provider and operation",
			},
			[]string{"provider", "op"},
		),
		providerErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_monitor_provider_errors_total",
				Help: "Failed upstream market data requests",
			},
			[]string{"provider", "op"},
		),
		degraded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_monitor_degraded_signals_total",
				Help: "Signals that fell back to a neutral value",
			},
			[]string{"signal"},
		),
		trainingSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "market_monitor_training_duration_seconds",
				Help:    "Model fit duration",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_monitor_predictions_total",
				Help: "Predictions served by model kind",
			},
			[]string{"kind"},
		),
		backtests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_monitor_backtests_total",
				Help: "Backtests run by strategy",
			},
			[]string{"strategy"},
		),
		alerts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_monitor_alerts_total",
				Help: "Alert deliveries by channel and result",
			},
			[]string{"channel", "result"},
		),
	}
}

func (r *Recorder) RecordProviderRequest(provider, op string) {
	r.providerRequests.WithLabelValues(provider, op).Inc()
}

func (r *Recorder) RecordProviderError(provider, op string) {
	r.providerErrors.WithLabelValues(provider, op).Inc()
}

func (r *Recorder) RecordDegraded(signal string) {
	r.degraded.WithLabelValues(signal).Inc()
}

// RecordTraining observes one fit; the histogram count doubles as the training counter.
func (r *Recorder) RecordTraining(kind string, seconds float64) {
	r.trainingSeconds.WithLabelValues(kind).Observe(seconds)
}

func (r *Recorder) RecordPrediction(kind string) {
	r.predictions.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordBacktest(strategy string) {
	r.backtests.WithLabelValues(strategy).Inc()
}

func (r *Recorder) RecordAlert(channel string, delivered bool) {
	result := "failed"
	if delivered {
		result = "delivered"
	}
	r.alerts.WithLabelValues(channel, result).Inc()
}
