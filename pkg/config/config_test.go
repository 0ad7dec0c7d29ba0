package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 20*time.Second, c.Providers.Timeout)
	assert.Equal(t, []string{"finnhub", "alphavantage"}, c.Providers.Order)
	assert.Equal(t, "random", c.Model.Regression.SplitMode)
	assert.Equal(t, int64(42), c.Model.Classifier.Seed)
	assert.Equal(t, 200, c.Model.Classifier.Trees)
	assert.Equal(t, 3, c.Model.Classifier.Horizon)
	assert.Equal(t, 0.01, c.Model.Classifier.Threshold)
	assert.Equal(t, 100000.0, c.Portfolio.InitialBalance)
	assert.Equal(t, 72*time.Hour, c.News.Window)
	assert.Len(t, c.News.Feeds, 4)
	assert.True(t, c.Metrics.Enabled)
	assert.Equal(t, time.Hour, c.Alerts.Cooldown)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: production
server:
  port: 9090
metrics:
  enabled: false
model:
  regression:
    split_mode: chronological
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, 15*time.Second, c.Server.ReadTimeout)
	assert.False(t, c.Metrics.Enabled)
	assert.Equal(t, "chronological", c.Model.Regression.SplitMode)
	assert.Equal(t, 0.2, c.Model.Regression.TestSize)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"split mode":     "model:\n  regression:\n    split_mode: weekly\n",
		"provider":       "providers:\n  order: [polygon]\n",
		"windows":        "backtest:\n  short_window: 50\n  long_window: 20\n",
		"retrain":        "retrain:\n  enabled: true\n",
		"malformed yaml": "server: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	env := map[string]string{
		"FINNHUB_API_KEY": "fh",
		"ALPHAV_API_KEY":  "av",
		"SMTP_PORT":       "2525",
		"KAFKA_BROKERS":   "k1:9092,k2:9092",
		"WEBHOOK_URL":     "http://hook",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }
	require.NoError(t, c.ApplyEnv(lookup))

	assert.Equal(t, "fh", c.Providers.Finnhub.APIKey)
	assert.Equal(t, "av", c.Providers.AlphaVantage.APIKey)
	assert.Equal(t, 2525, c.Alerts.SMTP.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, "http://hook", c.Alerts.Webhook.URL)

	env["SMTP_PORT"] = "abc"
	assert.Error(t, c.ApplyEnv(lookup))
}

func TestLoad_ZeroThresholdOverridesDefault(t *testing.T) {
	path := writeConfig(t, `
model:
  classifier:
    threshold: 0
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.0, c.Model.Classifier.Threshold)
	assert.Equal(t, 3, c.Model.Classifier.Horizon)
}
