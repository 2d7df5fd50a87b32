package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type feedSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

func (s *Server) handleCreateFeed(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	feedID, err := s.feeds.CreateFeed(r.Context(), id.User.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.metrics.Event("feed_created")
	writeJSON(w, http.StatusOK, map[string]string{"feedId": feedID})
}

func (s *Server) handleListFeeds(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	list, err := s.feeds.ListFeeds(r.Context(), id.User.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]feedSummary, 0, len(list))
	for _, f := range list {
		out = append(out, feedSummary{ID: f.ID, Title: f.Title, Description: f.Description, Link: f.Link})
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /feeds/{feedID} is what RSS readers subscribe to, so it needs no
// session.
func (s *Server) handleGetPublicFeed(w http.ResponseWriter, r *http.Request) {
	doc, err := s.feeds.GetPublicFeed(r.Context(), chi.URLParam(r, "feedID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeXML(w, doc)
}

func (s *Server) handleGetFeedDocument(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	doc, err := s.feeds.GetFeed(r.Context(), id.User.ID, chi.URLParam(r, "feedID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeXML(w, doc)
}

// POST /feeds/{feedID}/items?link=
func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	var link string
	if links := r.URL.Query()["link"]; len(links) > 0 {
		link = links[0]
	}

	if err := s.feeds.AddItem(r.Context(), id.User.ID, chi.URLParam(r, "feedID"), link); err != nil {
		respondError(w, r, err)
		return
	}
	s.metrics.Event("feed_item_added")
	writeJSON(w, http.StatusOK, struct{}{})
}
