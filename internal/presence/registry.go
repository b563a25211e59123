// Package presence tracks which user is reachable on which relay connection.
package presence

import (
	"errors"
	"sort"
	"sync"
)

// ErrEmptyUserID is returned when a join carries no user id.
var ErrEmptyUserID = errors.New("presence: empty user id")

// Entry is one registered user and the connection currently serving them.
type Entry struct {
	UserID   string `json:"userId"`
	SocketID string `json:"socketId"`

	seq uint64
}

// Registry maps user ids to connection handles. At most one entry exists per
// user; the most recent join wins. It is safe for concurrent use, although the
// relay hub is its only writer.
type Registry struct {
	mu       sync.RWMutex
	byUser   map[string]*Entry
	bySocket map[string]map[string]struct{}
	seq      uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser:   make(map[string]*Entry),
		bySocket: make(map[string]map[string]struct{}),
	}
}

// Join registers userID on socketID. If the user was already registered on a
// different socket, that handle is replaced and returned as previous.
// The entry keeps its original position in snapshots.
func (r *Registry) Join(userID, socketID string) (previous string, err error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.byUser[userID]; ok {
		previous = e.SocketID
		if previous == socketID {
			return "", nil
		}
		r.unindex(previous, userID)
		e.SocketID = socketID
		r.index(socketID, userID)
		return previous, nil
	}

	r.seq++
	r.byUser[userID] = &Entry{UserID: userID, SocketID: socketID, seq: r.seq}
	r.index(socketID, userID)
	return "", nil
}

// Leave removes every entry served by socketID and returns the removed user ids.
// Entries for the same users on other sockets are untouched.
func (r *Registry) Leave(socketID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, ok := r.bySocket[socketID]
	if !ok {
		return nil
	}
	removed := make([]string, 0, len(users))
	for userID := range users {
		delete(r.byUser, userID)
		removed = append(removed, userID)
	}
	delete(r.bySocket, socketID)
	sort.Strings(removed)
	return removed
}

// Lookup returns the entry registered for userID.
func (r *Registry) Lookup(userID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byUser[userID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Snapshot returns all entries in first-join order.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	entries := make([]Entry, 0, len(r.byUser))
	for _, e := range r.byUser {
		entries = append(entries, *e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	return entries
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

func (r *Registry) index(socketID, userID string) {
	users, ok := r.bySocket[socketID]
	if !ok {
		users = make(map[string]struct{})
		r.bySocket[socketID] = users
	}
	users[userID] = struct{}{}
}

func (r *Registry) unindex(socketID, userID string) {
	users, ok := r.bySocket[socketID]
	if !ok {
		return
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(r.bySocket, socketID)
	}
}
