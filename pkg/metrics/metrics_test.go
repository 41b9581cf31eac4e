package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	r := New()
	c := r.Counter("requests_total", "Total requests")
	c.Inc()
	c.Add(4)
	assert.Equal(t, int64(5), c.Value())
	assert.Same(t, c, r.Counter("requests_total", ""), "same series returns same counter")
}

func TestGauge(t *testing.T) {
	g := New().Gauge("vectors", "")
	g.Set(10)
	g.Inc()
	g.Dec()
	g.Add(0.5)
	assert.InDelta(t, 10.5, g.Value(), 1e-9)
}

func TestHistogram(t *testing.T) {
	h := New().Histogram("latency", "", []float64{1, 0.1, 0.5})
	for _, v := range []float64{0.05, 0.3, 0.3, 0.9, 7} {
		h.Observe(v)
	}
	s := h.snapshot()
	assert.Equal(t, []float64{0.1, 0.5, 1}, s.bounds)
	assert.Equal(t, []uint64{1, 2, 1}, s.counts)
	assert.Equal(t, uint64(5), s.count)
	assert.InDelta(t, 8.55, s.sum, 1e-9)
}

func TestHistogramSince(t *testing.T) {
	h := New().Histogram("since", "", nil)
	h.Since(time.Now().Add(-10 * time.Millisecond))
	assert.Equal(t, uint64(1), h.Count())
}

func TestWithLabels(t *testing.T) {
	assert.Equal(t, `foo{k="v",a="b"}`, WithLabels("foo", "k", "v", "a", "b"))
	assert.Equal(t, "foo", WithLabels("foo"))
	assert.Equal(t, "foo", WithLabels("foo", "odd"))
}

func TestRender(t *testing.T) {
	r := New()
	r.Counter(WithLabels("answers_total", "source", "grounded"), "Answers").Add(2)
	r.Counter(WithLabels("answers_total", "source", "fallback"), "").Inc()
	r.Gauge("vectors", "Stored vectors").Set(1234)
	h := r.Histogram(WithLabels("dur", "route", "chat"), "Duration", []float64{0.5, 1})
	h.Observe(0.25)
	h.Observe(0.75)

	out := r.Render()
	for _, want := range []string{
		"# HELP answers_total Answers\n# TYPE answers_total counter\n",
		`answers_total{source="fallback"} 1`,
		`answers_total{source="grounded"} 2`,
		"# TYPE vectors gauge\nvectors 1234\n",
		`dur_bucket{le="0.5",route="chat"} 1`,
		`dur_bucket{le="1",route="chat"} 2`,
		`dur_bucket{le="+Inf",route="chat"} 2`,
		`dur_sum{route="chat"} 1`,
		`dur_count{route="chat"} 2`,
	} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "answers_total"), strings.Index(out, "vectors"), "families render in registration order")
}

func TestHandler(t *testing.T) {
	r := New()
	r.Counter("up", "").Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "up 1")
}

func TestPipeline(t *testing.T) {
	r := New()
	p := NewPipeline(r)
	p.AnswerServed("grounded", 0.94, 120*time.Millisecond)
	p.AnswerServed("fallback", 0, 80*time.Millisecond)
	p.StageFailed("search")

	out := r.Render()
	assert.Contains(t, out, `bookrag_answers_total{source="grounded"} 1`)
	assert.Contains(t, out, `bookrag_answers_total{source="fallback"} 1`)
	assert.Contains(t, out, `bookrag_stage_failures_total{stage="search"} 1`)
	assert.Contains(t, out, "bookrag_answer_duration_seconds_count 2")
	assert.Contains(t, out, "bookrag_answer_confidence_count 1")
}
