package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := New(prometheus.NewRegistry())
	r.RecordProviderRequest("finnhub", "quote")
	r.RecordProviderRequest("finnhub", "quote")
	r.RecordProviderError("alphavantage", "historical")
	r.RecordAlert("webhook", true)
	r.RecordAlert("sms", false)
	r.RecordDegraded("classifier")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.providerRequests.WithLabelValues("finnhub", "quote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.providerErrors.WithLabelValues("alphavantage", "historical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.alerts.WithLabelValues("webhook", "delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.alerts.WithLabelValues("sms", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.degraded.WithLabelValues("classifier")))
}
