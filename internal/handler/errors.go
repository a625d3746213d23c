package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/opentagger/tagstore/internal/domain"
	"github.com/opentagger/tagstore/internal/service"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps a domain/service error onto the HTTP taxonomy:
// 401 missing identity, 404 unknown triple, 422 validation / version conflict /
// ownership mismatch, 503 inconsistent outcome or unavailable dependency,
// 500 anything unexpected.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		versionErr *domain.VersionMismatchError
		ownerErr   *domain.OwnerMismatchError
	)
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSON(w, http.StatusUnauthorized, errBody("unauthorized", err))
	case errors.As(err, &versionErr):
		writeJSON(w, http.StatusUnprocessableEntity, errBody("version_mismatch", versionErr))
	case errors.As(err, &ownerErr):
		writeJSON(w, http.StatusUnprocessableEntity, errBody("owner_mismatch", ownerErr))
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, errBody("validation_error", err))
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusUnprocessableEntity, errBody("conflict", err))
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errBody("not_found", err))
	case errors.Is(err, domain.ErrInconsistent), errors.Is(err, service.ErrAuthServerUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errBody("unavailable", err))
	default:
		slog.ErrorContext(r.Context(), "internal error", "error", err, "path", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError,
			errorBody{Error: errorDetail{Code: "internal", Message: "internal server error"}})
	}
}

// requestError answers a bad request rejected before reaching the service
// layer (e.g. missing or malformed body or query parameter).
func requestError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnprocessableEntity,
		errorBody{Error: errorDetail{Code: "validation_error", Message: message}})
}

func errBody(code string, err error) errorBody {
	return errorBody{Error: errorDetail{Code: code, Message: unwrapMessage(err)}}
}

// callSitePrefix matches the "package.Type.Method: " prefixes added by %w
// wrapping on the way up, e.g. "service.TagService.Create: repo.TagRepo.Insert: ".
var callSitePrefix = regexp.MustCompile(`^(?:(?:service|repo)\.\w+\.\w+: )+`)

// unwrapMessage strips internal call-site prefixes from a wrapped error so
// the client sees only the human-readable part.
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	return callSitePrefix.ReplaceAllString(err.Error(), "")
}
