package handler

import (
	"net/http"
)

// tokenResponse is the body of a successful authentication.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login handles POST /auth: exchange form credentials (username, password)
// for a bearer token. The credentials themselves are checked by the external
// auth server; only the resulting token lives here.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		requestError(w, "malformed form body")
		return
	}

	token, err := s.auth.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// LoginByCookie handles POST /auth_by_cookie: exchange a session cookie for a
// bearer token.
func (s *Server) LoginByCookie(w http.ResponseWriter, r *http.Request) {
	session := ""
	if c, err := r.Cookie("session"); err == nil {
		session = c.Value
	}

	token, err := s.auth.LoginByCookie(r.Context(), session)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}
