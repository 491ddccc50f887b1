// Package runtime wires inbound envelopes to persistence and fan-out.
// It orchestrates the system without containing business logic or domain
// rules.
package runtime

import (
	"sync"

	"chatline/contract"
)

// Registry tracks which live connection belongs to which user. One
// connection maps to at most one user at a time (last bind wins); a user
// may hold zero or many connections. Entries are process-local and never
// persisted.
//
// Registry is safe for concurrent use by multiple goroutines.
type Registry struct {
	mu       sync.RWMutex
	sessions map[contract.Sink]int64
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[contract.Sink]int64)}
}

// Bind upserts the mapping for a connection, overwriting any prior user.
// Every inbound message re-binds its connection, so a re-login on the
// same socket takes effect immediately.
func (r *Registry) Bind(sink contract.Sink, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sink] = userID
}

// Unbind removes the mapping for a connection. Calling it for an unknown
// connection is a no-op; once it returns, the connection can no longer be
// observed through SinksForMembers.
func (r *Registry) Unbind(sink contract.Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sink)
}

// SinksForMembers returns the currently bound connections whose mapped
// user id is in memberIDs. The caller supplies the authoritative member
// set, fetched fresh from the store; the registry never caches
// membership.
func (r *Registry) SinksForMembers(memberIDs []int64) []contract.Sink {
	members := make(map[int64]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		members[id] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []contract.Sink
	for sink, userID := range r.sessions {
		if _, ok := members[userID]; ok {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

// Size reports the number of live bindings, for telemetry.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
