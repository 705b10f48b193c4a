package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CacheHit("article", "GetByID")
	m.CacheHit("article", "GetByID")
	m.CacheMiss("article", "All")
	m.CacheError("article", "get")
	m.Invalidation("articles", nil)
	m.Invalidation("articles", errors.New("down"))
	m.Tx("articles", "commit", 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheHits.WithLabelValues("article", "GetByID")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses.WithLabelValues("article", "All")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheErrors.WithLabelValues("article", "get")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheInvalidations.WithLabelValues("articles", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheInvalidations.WithLabelValues("articles", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TxTotal.WithLabelValues("articles", "commit")))

	count, err := testutil.GatherAndCount(reg, "content_repository_tx_duration_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CacheHit("a", "b")
		m.CacheMiss("a", "b")
		m.CacheError("a", "get")
		m.Invalidation("t", nil)
		m.Tx("t", "commit", time.Second)
	})
}

func TestNew_PrivateRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil)
		New(nil)
	})
}
