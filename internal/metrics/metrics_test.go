package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSourceQuery("arcticshift", nil)
	c.RecordSourceQuery("arcticshift", nil)
	c.RecordSourceQuery("arcticshift", errors.New("boom"))
	c.RecordSourcePosts("arcticshift", 7)
	c.RecordSourcePosts("arcticshift", 0)
	c.RecordSourceSkip("pullpush", "probe")
	c.RecordLLMCall("groq", "rate_limited")
	c.RecordResolution("keyword", true)
	c.RecordRun("completed", 3*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.sourceQueries.WithLabelValues("arcticshift", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sourceQueries.WithLabelValues("arcticshift", "error")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.sourcePosts.WithLabelValues("arcticshift")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sourceSkips.WithLabelValues("pullpush", "probe")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.llmCalls.WithLabelValues("groq", "rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.resolutions.WithLabelValues("keyword", "true")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.runDuration))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordSourceQuery("x", nil)
		c.RecordSourcePosts("x", 1)
		c.RecordSourceSkip("x", "probe")
		c.RecordLLMCall("x", "success")
		c.RecordResolution("batch", false)
		c.RecordRun("completed", time.Second)
	})
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordLLMCall("groq", "success")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `research_llm_calls_total{outcome="success",provider="groq"} 1`)
}
