package handler

import (
	"net/http"
	"strconv"

	"github.com/opentagger/tagstore/internal/domain"
	"github.com/opentagger/tagstore/internal/middleware"
)

// ListProducts handles GET /products?owner&k&v: the products carrying the
// given key, or key=value pair. k is required.
func (s *Server) ListProducts(w http.ResponseWriter, r *http.Request) {
	entries, err := s.tags.ListProducts(r.Context(), middleware.Identity(r.Context()), filterFromQuery(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// ProductStats handles GET /products/stats?owner&k&v: per-product tag counts,
// distinct editor counts, and latest edit timestamps.
func (s *Server) ProductStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.tags.ProductStats(r.Context(), middleware.Identity(r.Context()), filterFromQuery(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// KeyStats handles GET /keys?owner&q: per-key usage and distinct-value counts,
// most used first, optionally filtered by a case-insensitive substring.
func (s *Server) KeyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.tags.KeyStats(r.Context(), middleware.Identity(r.Context()),
		r.URL.Query().Get("owner"), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ValueCounts handles GET /values/{key}?owner&q&limit: the distinct values of
// a key with per-value product counts. limit defaults to 50, capped at 1000.
func (s *Server) ValueCounts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			requestError(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	counts, err := s.tags.ValueCounts(r.Context(), middleware.Identity(r.Context()),
		r.URL.Query().Get("owner"), urlKey(r), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// filterFromQuery builds the shared owner/k/v filter of the listing and
// stats endpoints.
func filterFromQuery(r *http.Request) domain.TagFilter {
	q := r.URL.Query()
	return domain.TagFilter{
		Owner: q.Get("owner"),
		Key:   q.Get("k"),
		Value: q.Get("v"),
	}
}
