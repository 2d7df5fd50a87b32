package httpapi

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type authorizeRequest struct {
	ClientID string `json:"clientId"`
	Consent  any    `json:"consent"`
	State    string `json:"state"`
}

// GET /oauth/authorize?clientId=&state=
func (s *Server) handleAuthorizeStart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientID := q.Get("clientId")
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "clientId is required")
		return
	}

	u, err := s.oauth.StartAuthorization(r.Context(), clientID, q.Get("state"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// POST /oauth/authorize, called by the consent page on behalf of the
// signed-in user.
func (s *Server) handleAuthorizeConsent(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	var req authorizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.ClientID == "" {
		writeError(w, http.StatusBadRequest, "clientId is required")
		return
	}

	grant, err := s.oauth.CreateAuthorization(r.Context(), id.User.ID, req.ClientID, req.Consent, req.State)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.metrics.Event("authorization_code_issued")
	writeJSON(w, http.StatusOK, grant)
}

// clientCredentials reads client_id and client_secret from HTTP Basic auth,
// or from the form when no Basic header is present. ok is false when the
// Basic header is not valid base64.
func clientCredentials(r *http.Request) (clientID, secret string, ok bool) {
	const prefix = "Basic "
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, prefix) {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(auth[len(prefix):]))
		if err != nil {
			return "", "", false
		}
		clientID, secret, _ = strings.Cut(string(raw), ":")
		return clientID, secret, true
	}
	return r.PostFormValue("client_id"), r.PostFormValue("client_secret"), true
}

// POST /oauth/token
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	code := r.PostFormValue("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	clientID, secret, ok := clientCredentials(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid authorization header")
		return
	}
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "client_id is required")
		return
	}
	if secret == "" {
		writeError(w, http.StatusBadRequest, "client authentication required")
		return
	}

	tok, err := s.oauth.CreateToken(r.Context(), code, clientID, secret)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.metrics.Event("access_token_issued")
	writeJSON(w, http.StatusOK, tok)
}

// POST /oauth/revoke
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	token := r.PostFormValue("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	if err := s.oauth.RevokeToken(r.Context(), token); err != nil {
		respondError(w, r, err)
		return
	}
	s.metrics.Event("access_token_revoked")
	writeJSON(w, http.StatusOK, map[string]string{"message": "OK"})
}

// GET /oauth/clients/{clientID}
func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	c, err := s.oauth.GetClient(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
