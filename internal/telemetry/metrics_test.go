package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsIsSingleton(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	assert.Same(t, a, b)
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	before := testutil.ToFloat64(m.Fallbacks.WithLabelValues("vendor_response"))
	m.Fallbacks.WithLabelValues("vendor_response").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(m.Fallbacks.WithLabelValues("vendor_response")))

	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, WriteTextfile(path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "negotiation_eval_fallbacks_total")
}
