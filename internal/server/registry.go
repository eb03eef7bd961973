// Package server tracks which connections belong to which channel via the
// Registry type.
package server

import "sync"

// Registry maps channel names to the set of live connections subscribed to
// them. Membership is the only liveness signal the relay keeps: a
// connection that is not in the registry receives nothing.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]map[*Conn]struct{}
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]map[*Conn]struct{}),
	}
}

// Register adds conn to channel, creating the channel set when needed.
// Registering the same connection twice leaves a single entry.
func (r *Registry) Register(channel string, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.channels[channel]
	if !ok {
		members = make(map[*Conn]struct{})
		r.channels[channel] = members
	}
	members[conn] = struct{}{}
}

// Unregister removes conn from channel and reports whether it was present.
// Removing an absent connection is a no-op.
func (r *Registry) Unregister(channel string, conn *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.channels[channel]
	if !ok {
		return false
	}
	if _, ok := members[conn]; !ok {
		return false
	}

	delete(members, conn)
	if len(members) == 0 {
		delete(r.channels, channel)
	}
	return true
}

// Members returns a snapshot of the connections in channel. The slice is
// owned by the caller and is unaffected by later registry changes.
func (r *Registry) Members(channel string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.channels[channel]
	snapshot := make([]*Conn, 0, len(members))
	for conn := range members {
		snapshot = append(snapshot, conn)
	}
	return snapshot
}

// Count returns the number of connections in channel.
func (r *Registry) Count(channel string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[channel])
}

// All returns a snapshot of every registered connection across channels.
func (r *Registry) All() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*Conn
	for _, members := range r.channels {
		for conn := range members {
			all = append(all, conn)
		}
	}
	return all
}

// Channels returns the member count of every non-empty channel.
func (r *Registry) Channels() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int, len(r.channels))
	for name, members := range r.channels {
		counts[name] = len(members)
	}
	return counts
}

// Len returns the total number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, members := range r.channels {
		total += len(members)
	}
	return total
}
