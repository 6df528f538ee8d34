package ws

import (
	"encoding/json"
	"log"
	"time"

	"ridehub/internal/app/ds"
)

// Event is a business-level occurrence the router publishes to
// registered sinks. Sinks decouple transport handling from downstream
// side effects (analytics, brokers).
type Event struct {
	Kind    string          `json:"kind"`
	Vehicle string          `json:"vehicle,omitempty"`
	Rider   string          `json:"rider,omitempty"`
	OrderID string          `json:"order_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

const (
	EventVehicleMoved    = "vehicle_moved"
	EventOrderDispatched = "order_dispatched"
	EventOrderQueued     = "order_queued"
	EventRiderBoarded    = "rider_boarded"
)

// EventSink consumes router events. Publish must not block.
type EventSink interface {
	Publish(Event)
}

// Hub owns the connection registry, the vehicle bindings and the
// pending-request table, and provides the delivery primitives built on
// them. One Hub instance is constructed per process and handed to every
// connection handler; nothing here is a package-level singleton.
type Hub struct {
	Registry *Registry
	Bindings *BindingTable
	Pending  *PendingTable

	sinks []EventSink
}

func NewHub() *Hub {
	return &Hub{
		Registry: NewRegistry(),
		Bindings: NewBindingTable(),
		Pending:  NewPendingTable(),
	}
}

// AddSink registers an event sink. Call before the hub starts serving
// connections; the sink list is not guarded afterwards.
func (h *Hub) AddSink(s EventSink) {
	h.sinks = append(h.sinks, s)
}

// PublishEvent fans ev out to every sink.
func (h *Hub) PublishEvent(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	for _, s := range h.sinks {
		s.Publish(ev)
	}
}

// Send queues msg on the client's outbound channel. A full or closed
// channel means the peer stopped draining; the client is dropped, which
// is how dead connections get pruned.
func (h *Hub) Send(c *ds.Client, msg []byte) bool {
	ok := trySend(c, msg)
	if !ok {
		log.Printf("WS--> send to %s %s failed, dropping connection", c.Class, c.UUID)
		h.Drop(c, 0)
	}
	return ok
}

func trySend(c *ds.Client, msg []byte) (ok bool) {
	// Send races with Drop closing the channel; the recover keeps that
	// window from killing the sender.
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

// SendJSON marshals v and queues it on c.
func (h *Hub) SendJSON(c *ds.Client, v any) bool {
	msg, err := json.Marshal(v)
	if err != nil {
		log.Printf("WS--> marshal outbound message: %v", err)
		return false
	}
	return h.Send(c, msg)
}

// Unicast delivers msg to the rider's live connection. A rider without
// one is a logged no-op, never an error for the caller.
func (h *Hub) Unicast(riderID string, msg []byte) {
	c, ok := h.Registry.LookupRider(riderID)
	if !ok {
		log.Printf("WS--> unicast: rider %s has no live connection", riderID)
		return
	}
	h.Send(c, msg)
}

// Broadcast delivers msg to every connection in the given classes, or
// to all connections when no class is given. Failed sends prune the
// connection; iteration runs over a snapshot so pruning never mutates
// the set being walked.
func (h *Hub) Broadcast(msg []byte, classes ...ds.ClientClass) {
	for _, c := range h.Registry.Clients(classes...) {
		h.Send(c, msg)
	}
}

// BroadcastJSON marshals v once and broadcasts it.
func (h *Hub) BroadcastJSON(v any, classes ...ds.ClientClass) {
	msg, err := json.Marshal(v)
	if err != nil {
		log.Printf("WS--> marshal broadcast message: %v", err)
		return
	}
	h.Broadcast(msg, classes...)
}

// Drop removes c from the registry and bindings and closes its send
// channel, releasing the write pump. code, when nonzero, is the close
// code the write pump reports to the peer. Safe to call twice; only the
// first call tears down.
func (h *Hub) Drop(c *ds.Client, code int) {
	if !h.Registry.Unregister(c) {
		return
	}
	if code != 0 {
		c.SetCloseCode(code)
	}
	if c.RiderID != "" {
		h.Bindings.UnbindRider(c.RiderID)
	}
	close(c.Send)
	log.Printf("WS--> %s %s disconnected", c.Class, c.UUID)
}
