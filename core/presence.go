package core

import "sync"

// Presence maps online identities to their live connection. Each identity
// owns at most one connection at a time: registering a new connection for an
// identity unbinds the previous one (last registration wins). The registry
// holds no persistent state; after a restart every identity is offline until
// it reconnects and re-registers.
type Presence struct {
	mu     sync.RWMutex
	byUser map[string]*Conn
	byConn map[*Conn]string
	calls  *CallTable
}

func NewPresence(calls *CallTable) *Presence {
	return &Presence{
		byUser: make(map[string]*Conn),
		byConn: make(map[*Conn]string),
		calls:  calls,
	}
}

// Register binds username to conn, replacing any prior registration for
// either the username or the connection.
func (p *Presence) Register(username string, conn *Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.byUser[username]; ok && prev != conn {
		delete(p.byConn, prev)
	}
	if prevName, ok := p.byConn[conn]; ok && prevName != username {
		if p.byUser[prevName] == conn {
			delete(p.byUser, prevName)
		}
	}
	p.byUser[username] = conn
	p.byConn[conn] = username
}

// Lookup returns the live connection of an identity, if any.
func (p *Presence) Lookup(username string) (*Conn, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.byUser[username]
	return c, ok
}

// Identity returns the username bound to a connection, if any.
func (p *Presence) Identity(conn *Conn) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.byConn[conn]
	return u, ok
}

func (p *Presence) Online(username string) bool {
	_, ok := p.Lookup(username)
	return ok
}

// Unregister removes the mapping for conn. The identity binding is removed
// only if conn is still the currently registered connection for it, so a
// stale connection cannot knock a newer session offline. When the live
// binding goes away the identity's busy call flag is cleared too, so an
// abrupt drop never leaves a permanently busy user.
func (p *Presence) Unregister(conn *Conn) {
	p.mu.Lock()
	username, ok := p.byConn[conn]
	current := false
	if ok {
		delete(p.byConn, conn)
		if p.byUser[username] == conn {
			delete(p.byUser, username)
			current = true
		}
	}
	p.mu.Unlock()

	if current {
		p.calls.Release(username)
	}
}
