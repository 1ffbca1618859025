package chat

import (
	"slices"
	"strings"

	"github.com/andy6609/chatlite/internal/protocol"
	"golang.org/x/exp/maps"
)

const DefaultCapacity = 1024

// Registry is the table of live connections. It has no locking: the hub
// goroutine is its only user.
type Registry struct {
	capacity int
	conns    map[ConnID]*Conn
}

func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		capacity: capacity,
		conns:    make(map[ConnID]*Conn),
	}
}

// Register stores c under id with the default name "anon:<id>".
func (r *Registry) Register(id ConnID, c *Conn) (*Conn, error) {
	if len(r.conns) >= r.capacity {
		return nil, ErrCapacityExceeded
	}
	if _, exists := r.conns[id]; exists {
		return nil, ErrDuplicateID
	}
	c.ID = id
	c.Name = DefaultName(id)
	c.State = StateActive
	r.conns[id] = c
	return c, nil
}

// Rename trims name and cuts it to protocol.MaxNameLen. An unknown id or a
// blank name leaves everything unchanged.
func (r *Registry) Rename(id ConnID, name string) (string, error) {
	c, ok := r.conns[id]
	if !ok {
		return "", ErrNotFound
	}
	name = strings.TrimSpace(protocol.TruncateName(strings.TrimSpace(name)))
	if name == "" {
		return c.Name, ErrInvalidName
	}
	c.Name = name
	return name, nil
}

func (r *Registry) Unregister(id ConnID) (*Conn, error) {
	c, ok := r.conns[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.conns, id)
	return c, nil
}

func (r *Registry) Get(id ConnID) (*Conn, bool) {
	c, ok := r.conns[id]
	return c, ok
}

// ListExcept returns a snapshot of every connection but id, in id order.
// Passing an id that is not registered lists everyone.
func (r *Registry) ListExcept(id ConnID) []*Conn {
	ids := maps.Keys(r.conns)
	slices.Sort(ids)
	out := make([]*Conn, 0, len(ids))
	for _, other := range ids {
		if other == id {
			continue
		}
		out = append(out, r.conns[other])
	}
	return out
}

func (r *Registry) Len() int { return len(r.conns) }

func (r *Registry) Cap() int { return r.capacity }

func DefaultName(id ConnID) string {
	return "anon:" + id.String()
}
