package core

import (
	"errors"
	"sync"
)

var (
	// ErrCalleeOffline is returned when the called user has no live connection.
	ErrCalleeOffline = errors.New("callee is offline")
	// ErrCalleeBusy is returned when the called user is already engaged in a call.
	ErrCalleeBusy = errors.New("callee is busy")
)

// CallTable tracks which identities are currently engaged in a call. It is
// shared between the call signaling handlers and the presence registry, so a
// disconnect always clears the flag of the dropped identity even when the
// peer is unreachable.
type CallTable struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func NewCallTable() *CallTable {
	return &CallTable{busy: make(map[string]struct{})}
}

// Engage marks both parties of a call as busy. It fails with ErrCalleeBusy
// if the callee is already engaged, in which case neither flag changes.
func (t *CallTable) Engage(caller, callee string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.busy[callee]; ok {
		return ErrCalleeBusy
	}
	t.busy[caller] = struct{}{}
	t.busy[callee] = struct{}{}
	return nil
}

// Release clears the busy flag for the given identities. Releasing an
// identity that is not busy is a no-op; cleanup must never depend on the
// call having been fully established.
func (t *CallTable) Release(usernames ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, u := range usernames {
		delete(t.busy, u)
	}
}

func (t *CallTable) Busy(username string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.busy[username]
	return ok
}
