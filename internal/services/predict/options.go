package predict

import (
	"github.com/prateek8731/Market-Monitor/internal/domain/repository"
	"github.com/prateek8731/Market-Monitor/pkg/logger"
)

type options struct {
	metrics repository.Metrics
	log     *logger.Logger
}

// Option configures a model.
type Option func(*options)

// WithMetrics records training and prediction counters.
func WithMetrics(m repository.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithLogger sets the model logger.
func WithLogger(l *logger.Logger) Option { return func(o *options) { o.log = l } }

func buildOptions(opts []Option) options {
	o := options{log: logger.Nop()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func (o options) recordTraining(kind string, seconds float64) {
	if o.metrics != nil {
		o.metrics.RecordTraining(kind, seconds)
	}
}

func (o options) recordPrediction(kind string) {
	if o.metrics != nil {
		o.metrics.RecordPrediction(kind)
	}
}
