package service

import (
	gosync "sync"

	"github.com/google/uuid"
)

// Factory builds a Service bound to one session id.
type Factory func(sessionID string) (Service, error)

// Registry hands out one Service per cart session. The engine owns the
// in-memory cart per session, so all requests for a session must reach
// the same instance.
type Registry struct {
	mu       gosync.Mutex
	factory  Factory
	sessions map[string]Service
}

// NewRegistry builds a registry over the given factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory:  factory,
		sessions: make(map[string]Service),
	}
}

// Session returns the service for the session id, creating it on first
// use. An empty id starts a fresh session; the generated id is returned
// so the caller can hand it back to the client.
func (r *Registry) Session(sessionID string) (Service, string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if svc, ok := r.sessions[sessionID]; ok {
		return svc, sessionID, nil
	}
	svc, err := r.factory(sessionID)
	if err != nil {
		return nil, "", err
	}
	r.sessions[sessionID] = svc
	return svc, sessionID, nil
}

// Close stops every session's background work.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, svc := range r.sessions {
		svc.Close()
	}
	r.sessions = make(map[string]Service)
}
