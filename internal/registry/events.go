package registry

import "github.com/mendels/forgestore/internal/models"

// EventType marks what happened to a package.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventRemoved EventType = "removed"
)

// Event carries a point-in-time copy of the affected package, so consumers
// never share memory with the registry.
type Event struct {
	Type    EventType             `json:"type"`
	Package models.TrackedPackage `json:"package"`
}

// Subscribe returns a channel receiving registry events. Slow consumers drop
// events rather than block mutations.
func (r *Registry) Subscribe() <-chan Event {
	ch := make(chan Event, 16)
	r.subMu.Lock()
	r.subscribers = append(r.subscribers, ch)
	r.subMu.Unlock()
	return ch
}

func (r *Registry) publish(ev Event) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}
