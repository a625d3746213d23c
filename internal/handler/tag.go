package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/opentagger/tagstore/internal/domain"
	"github.com/opentagger/tagstore/internal/middleware"
)

// CreateTag handles POST /product: create a brand-new tag at version 1.
// A body without a version defaults to 1; any other version is rejected.
// Creating a triple that already exists answers 422 with a conflict code.
func (s *Server) CreateTag(w http.ResponseWriter, r *http.Request) {
	tag, ok := decodeTag(w, r)
	if !ok {
		return
	}
	if tag.Version == 0 {
		tag.Version = 1
	}

	created, err := s.tags.Create(r.Context(), middleware.Identity(r.Context()), tag)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, created)
}

// UpdateTag handles PUT /product: replace the value of a live tag.
// The submitted version must be exactly current+1; on a mismatch the response
// carries the current version so the client can retry.
func (s *Server) UpdateTag(w http.ResponseWriter, r *http.Request) {
	tag, ok := decodeTag(w, r)
	if !ok {
		return
	}

	updated, err := s.tags.Update(r.Context(), middleware.Identity(r.Context()), tag)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteTag handles DELETE /product/{product}/{key}?version=n.
// The version query parameter must name the tag's exact current version.
func (s *Server) DeleteTag(w http.ResponseWriter, r *http.Request) {
	versionParam := r.URL.Query().Get("version")
	version, err := strconv.Atoi(versionParam)
	if err != nil || version < 1 {
		requestError(w, "version must be a positive integer")
		return
	}

	err = s.tags.Delete(r.Context(), middleware.Identity(r.Context()),
		chi.URLParam(r, "product"), r.URL.Query().Get("owner"), urlKey(r), version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "ok")
}

// GetTag handles GET /product/{product}/{key}.
// A key with a trailing '*' returns the tag hierarchy: the key itself plus
// every key:subkey under it, as a list. Without the star the response is the
// single tag, or 404.
func (s *Server) GetTag(w http.ResponseWriter, r *http.Request) {
	identity := middleware.Identity(r.Context())
	product := chi.URLParam(r, "product")
	owner := r.URL.Query().Get("owner")
	key := urlKey(r)

	if base, isPrefix := strings.CutSuffix(key, "*"); isPrefix {
		tags, err := s.tags.GetHierarchy(r.Context(), identity, product, owner, base)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, tags)
		return
	}

	tag, err := s.tags.Get(r.Context(), identity, product, owner, key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

// ListProductTags handles GET /product/{product}?owner&keys.
// The optional keys parameter is a comma-separated list restricting the
// result to those keys.
func (s *Server) ListProductTags(w http.ResponseWriter, r *http.Request) {
	var keys []string
	if raw := r.URL.Query().Get("keys"); raw != "" {
		keys = strings.Split(raw, ",")
	}

	tags, err := s.tags.ListByProduct(r.Context(), middleware.Identity(r.Context()),
		chi.URLParam(r, "product"), r.URL.Query().Get("owner"), keys)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// ListTagVersions handles GET /product/{product}/{key}/versions: the archived
// snapshots of a tag, newest first. The live row is not included.
func (s *Server) ListTagVersions(w http.ResponseWriter, r *http.Request) {
	tags, err := s.tags.ListVersions(r.Context(), middleware.Identity(r.Context()),
		chi.URLParam(r, "product"), r.URL.Query().Get("owner"), urlKey(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// decodeTag reads a JSON tag body, answering 422 on malformed input.
func decodeTag(w http.ResponseWriter, r *http.Request) (domain.Tag, bool) {
	var tag domain.Tag
	if err := json.NewDecoder(r.Body).Decode(&tag); err != nil {
		requestError(w, "malformed request body")
		return domain.Tag{}, false
	}
	return tag, true
}
