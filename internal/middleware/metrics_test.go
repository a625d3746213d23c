package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentagger/tagstore/internal/middleware"
)

// newMetricsRouter wires the metrics middleware into a chi router the way
// main.go does, backed by a fresh registry so tests don't collide on the
// default registerer.
func newMetricsRouter(reg *prometheus.Registry) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.NewMetrics(reg))
	r.Get("/product/{product}/{key}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func TestMetrics_CountsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	router := newMetricsRouter(reg)

	for _, product := range []string{"111", "222", "333"} {
		req := httptest.NewRequest(http.MethodGet, "/product/"+product+"/color", nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]int{}
	var routeLabel string
	for _, mf := range families {
		byName[mf.GetName()] = len(mf.GetMetric())
		if mf.GetName() == "tagstore_http_requests_total" {
			for _, lp := range mf.GetMetric()[0].GetLabel() {
				if lp.GetName() == "route" {
					routeLabel = lp.GetValue()
				}
			}
			assert.EqualValues(t, 3, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}

	assert.Equal(t, 1, byName["tagstore_http_requests_total"],
		"three products must collapse into one series")
	assert.Equal(t, 1, byName["tagstore_http_request_duration_seconds"])
	assert.Equal(t, "/product/{product}/{key}", routeLabel,
		"the route pattern, not the raw path, keeps cardinality bounded")
}

func TestMetrics_RecordsStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := chi.NewRouter()
	r.Use(middleware.NewMetrics(reg))
	r.Get("/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	families, err := reg.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() != "tagstore_http_requests_total" {
			continue
		}
		for _, lp := range mf.GetMetric()[0].GetLabel() {
			if lp.GetName() == "status" && lp.GetValue() == "404" {
				found = true
			}
		}
	}
	assert.True(t, found, "status label must carry the handler's response code")
}
