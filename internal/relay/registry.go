package relay

import "github.com/google/uuid"

// peer is the connection record. It is owned by the registry and only touched
// from the hub goroutine.
type peer struct {
	id     string
	conn   Conn
	writer *peerWriter

	// alive is reset when a probe goes out and set again by the pong.
	alive bool

	// lastValue is the last update accepted from this peer, nil until the first one.
	lastValue *float64
}

type registry struct {
	peers  map[string]*peer
	byConn map[Conn]string
}

func newRegistry() *registry {
	return &registry{
		peers:  make(map[string]*peer),
		byConn: make(map[Conn]string),
	}
}

// register creates a record for conn under a fresh identity.
// A connection that is already registered keeps its record.
func (r *registry) register(conn Conn, writer *peerWriter) *peer {
	if id, ok := r.byConn[conn]; ok {
		return r.peers[id]
	}

	p := &peer{
		id:     uuid.NewString(),
		conn:   conn,
		writer: writer,
		alive:  true,
	}
	r.peers[p.id] = p
	r.byConn[conn] = p.id
	return p
}

// unregister removes the record for id. Missing ids are ignored.
func (r *registry) unregister(id string) (*peer, bool) {
	p, ok := r.peers[id]
	if !ok {
		return nil, false
	}
	delete(r.peers, id)
	delete(r.byConn, p.conn)
	return p, true
}

func (r *registry) get(id string) (*peer, bool) {
	p, ok := r.peers[id]
	return p, ok
}

func (r *registry) lookup(conn Conn) (*peer, bool) {
	id, ok := r.byConn[conn]
	if !ok {
		return nil, false
	}
	return r.peers[id], true
}

// forEach calls fn for every record. fn may unregister the record it is given.
func (r *registry) forEach(fn func(*peer)) {
	for _, p := range r.peers {
		fn(p)
	}
}

// forEachExcept calls fn for every record except the one with the given id.
func (r *registry) forEachExcept(id string, fn func(*peer)) {
	for pid, p := range r.peers {
		if pid == id {
			continue
		}
		fn(p)
	}
}

func (r *registry) len() int {
	return len(r.peers)
}
