package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger(LoggingConfig{Level: "warn", Format: "json", Output: "stderr"})
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
}

func TestNewMetricsWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry("harvester", reg)

	m.RunsStarted.Inc()
	m.RunsAborted.WithLabelValues("no_results").Inc()
	m.EnrichmentDegraded.WithLabelValues("keywords", "panic").Add(2)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RunsStarted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RunsAborted.WithLabelValues("no_results")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.EnrichmentDegraded.WithLabelValues("keywords", "panic")))

	// Registering twice with the same registry must fail; the registry owns
	// the collectors created above.
	require.Panics(t, func() {
		NewMetricsWithRegistry("harvester", reg)
	})
}
