package memory

import (
	"sync"

	"redish/server/internal/model"
)

// Store keeps every table in maps guarded by one mutex, so each method is
// atomic in the same way a single database transaction would be.
type Store struct {
	mu sync.Mutex

	clients        map[string]model.OAuthClient
	authorizations map[string]model.Authorization // keyed by code
	tokens         map[string]model.Token         // keyed by access token
	feeds          map[string]model.Feed
	users          map[string]model.User
	sessions       map[string]model.Session // keyed by token
}

func NewStore() *Store {
	return &Store{
		clients:        make(map[string]model.OAuthClient),
		authorizations: make(map[string]model.Authorization),
		tokens:         make(map[string]model.Token),
		feeds:          make(map[string]model.Feed),
		users:          make(map[string]model.User),
		sessions:       make(map[string]model.Session),
	}
}
