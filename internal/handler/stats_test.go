package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentagger/tagstore/internal/domain"
)

// ---- GET /products ---------------------------------------------------------

func TestListProducts_200(t *testing.T) {
	var gotFilter domain.TagFilter
	svc := &mockTagServicer{
		listProducts: func(_ context.Context, _ string, f domain.TagFilter) ([]domain.ProductEntry, error) {
			gotFilter = f
			return []domain.ProductEntry{
				{Product: "111", Key: "color", Value: "red"},
				{Product: "222", Key: "color", Value: "red"},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/products?k=color&v=red&owner=alice", nil)
	rec := httptest.NewRecorder()

	newHTTPHandler(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.TagFilter{Owner: "alice", Key: "color", Value: "red"}, gotFilter)

	var resp []domain.ProductEntry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp, 2)
}

func TestListProducts_422_MissingKey(t *testing.T) {
	svc := &mockTagServicer{
		listProducts: func(_ context.Context, _ string, _ domain.TagFilter) ([]domain.ProductEntry, error) {
			return nil, fmt.Errorf("service.TagService.ListProducts: %w",
				&domain.FieldError{Field: "k", Reason: "missing value"})
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	rec := httptest.NewRecorder()

	newHTTPHandler(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"validation_error"`)
}

// ---- GET /products/stats ---------------------------------------------------

func TestProductStats_200(t *testing.T) {
	svc := &mockTagServicer{
		productStats: func(_ context.Context, _ string, _ domain.TagFilter) ([]domain.ProductStats, error) {
			return []domain.ProductStats{{
				Product:  "111",
				Keys:     4,
				Editors:  2,
				LastEdit: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/products/stats", nil)
	rec := httptest.NewRecorder()

	newHTTPHandler(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []domain.ProductStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, 4, resp[0].Keys)
	assert.Equal(t, 2, resp[0].Editors)
}

// ---- GET /keys -------------------------------------------------------------

func TestKeyStats_200(t *testing.T) {
	var gotOwner, gotQ string
	svc := &mockTagServicer{
		keyStats: func(_ context.Context, _, owner, q string) ([]domain.KeyStats, error) {
			gotOwner, gotQ = owner, q
			return []domain.KeyStats{{Key: "color", Count: 12, Values: 3}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/keys?owner=alice&q=col", nil)
	rec := httptest.NewRecorder()

	newHTTPHandler(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", gotOwner)
	assert.Equal(t, "col", gotQ)

	var resp []domain.KeyStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "color", resp[0].Key)
	assert.Equal(t, 12, resp[0].Count)
}

// ---- GET /values/{key} -----------------------------------------------------

func TestValueCounts_200(t *testing.T) {
	var gotKey string
	var gotLimit int
	svc := &mockTagServicer{
		valueCounts: func(_ context.Context, _, _, key, _ string, limit int) ([]domain.ValueCount, error) {
			gotKey, gotLimit = key, limit
			return []domain.ValueCount{{Value: "red", Products: 7}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/values/color?limit=10", nil)
	rec := httptest.NewRecorder()

	newHTTPHandler(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "color", gotKey)
	assert.Equal(t, 10, gotLimit)
}

func TestValueCounts_200_NoLimit(t *testing.T) {
	svc := &mockTagServicer{
		valueCounts: func(_ context.Context, _, _, _, _ string, limit int) ([]domain.ValueCount, error) {
			assert.Equal(t, 0, limit, "absent limit is passed as 0; the service applies the default")
			return []domain.ValueCount{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/values/color", nil)
	rec := httptest.NewRecorder()

	newHTTPHandler(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValueCounts_422_BadLimit(t *testing.T) {
	for _, limit := range []string{"abc", "0", "-5"} {
		t.Run(limit, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/values/color?limit="+limit, nil)
			rec := httptest.NewRecorder()

			newHTTPHandler(&mockTagServicer{}).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Body.String(), "limit must be a positive integer")
		})
	}
}
