package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/opentagger/tagstore/spec"
)

// helloResponse is the body of GET /.
type helloResponse struct {
	Message string `json:"message"`
}

// pingResponse is the body of GET /ping.
type pingResponse struct {
	Ping string `json:"ping"`
}

// Hello handles GET /.
func (s *Server) Hello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, helloResponse{
		Message: "Hello tagstore! Tip: open /openapi.yaml for the API description",
	})
}

// Ping handles GET /ping. It round-trips the database so a 200 means the
// whole read path is healthy, not just the process.
func (s *Server) Ping(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable,
			errorBody{Error: errorDetail{Code: "unavailable", Message: "database unreachable"}})
		return
	}
	writeJSON(w, http.StatusOK, pingResponse{
		Ping: fmt.Sprintf("pong @ %s", time.Now().UTC().Format(time.RFC3339)),
	})
}

// OpenAPI handles GET /openapi.yaml, serving the API description embedded in
// the binary so the description and the running code are always in sync.
func (s *Server) OpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(spec.OpenAPI)
}
