package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_counters(t *testing.T) {
	m := New()
	m.IncAdvance("timer")
	m.IncAdvance("timer")
	m.IncAdvance("skip")
	m.IncReset("drift")
	m.AddArchived(3)
	m.AddArchived(-1)
	m.SetCatalogItems(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.advancesTotal.WithLabelValues("timer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.advancesTotal.WithLabelValues("skip")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resetsTotal.WithLabelValues("drift")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.archivedTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.catalogItems))
}

func TestRequestMiddleware_counts_errors(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bad", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal))
}

func TestHandler_exposes_registry(t *testing.T) {
	m := New()
	m.IncDrift()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), "signage_catalog_drift_total 1"))
}

func TestRequestMiddleware_labels_by_route_pattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(RequestMiddleware(m))
	r.Post("/api/media/approve/{id}", func(w http.ResponseWriter, r *http.Request) {})

	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/media/approve/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, 2, testutil.CollectAndCount(m.requestLatency), "one series per pattern")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal), "404 counted as error")
}
