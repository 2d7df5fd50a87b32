package httpapi

import (
	"net/http"
	"time"

	"redish/server/internal/model"
	"redish/server/internal/session"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

type sessionResponse struct {
	Session model.Session `json:"session"`
	User    model.User    `json:"user"`
}

func clientInfo(r *http.Request) session.ClientInfo {
	return session.ClientInfo{
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   !s.cfg.Development(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !s.cfg.Development(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req session.SignUpInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	id, err := s.sessions.SignUp(r.Context(), req, clientInfo(r))
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.metrics.Event("user_signed_up")
	s.setSessionCookie(w, id.Token, id.Session.ExpiresAt)
	writeJSON(w, http.StatusOK, authResponse{Token: id.Token, User: id.User})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	id, err := s.sessions.SignIn(r.Context(), req.Email, req.Password, clientInfo(r))
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.setSessionCookie(w, id.Token, id.Session.ExpiresAt)
	writeJSON(w, http.StatusOK, authResponse{Token: id.Token, User: id.User})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	token := sessionTokenFromContext(r.Context())
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := s.sessions.SignOut(r.Context(), token); err != nil {
		respondError(w, r, err)
		return
	}

	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: id.Session, User: id.User})
}
