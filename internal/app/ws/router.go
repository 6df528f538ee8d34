package ws

import (
	"context"
	"log"

	"ridehub/internal/app/ds"
)

// VehicleStore is the narrow slice of the record store the router
// needs. Lookups returning (nil, nil) mean "no such record".
type VehicleStore interface {
	FindVehicleByName(ctx context.Context, name string) (*ds.Driver, error)
	UpdateVehiclePosition(ctx context.Context, name string, lat, lon, yaw float64) error
	FindPendingOrderForRider(ctx context.Context, riderID string) (*ds.Order, error)
	AssignDriverToOrder(ctx context.Context, orderID, vehicleName string) error
	SetOrderStatus(ctx context.Context, orderID string, status ds.OrderStatus) error
}

// Router dispatches inbound envelopes to per-type handlers. Handler
// failures are logged and contained: no store error or malformed field
// ever terminates the connection or leaks to other messages.
type Router struct {
	hub   *Hub
	store VehicleStore
}

func NewRouter(hub *Hub, store VehicleStore) *Router {
	return &Router{hub: hub, store: store}
}

// HandleFrame processes one inbound frame from a registered client.
// Non-JSON frames are logged and discarded.
func (r *Router) HandleFrame(ctx context.Context, c *ds.Client, data []byte) {
	env, err := ds.DecodeEnvelope(data)
	if err != nil {
		log.Printf("WS--> non-JSON frame from %s %s: %v", c.Class, c.UUID, err)
		return
	}

	switch c.Class {
	case ds.ClassAgent:
		r.handleAgent(ctx, env)
	case ds.ClassRider:
		r.handleRider(c, env)
	default:
		log.Printf("WS--> ignoring %q frame from %s", env.Type, c.Class)
	}
}

func (r *Router) handleAgent(ctx context.Context, env *ds.Envelope) {
	switch env.Type {
	case ds.TypeOdom:
		r.handleOdom(ctx, env)
	case ds.TypeDispatched:
		r.handleDispatched(ctx, env, ds.OrderAssigned)
	case ds.TypeQueued:
		r.handleDispatched(ctx, env, ds.OrderAccepted)
	case ds.TypeEstimate:
		r.handleEstimate(env)
	case ds.TypeReady2Trip:
		r.handleReady2Trip(env)
	default:
		log.Printf("WS--> ignoring unrecognized agent frame %q", env.Type)
	}
}

func (r *Router) handleRider(c *ds.Client, env *ds.Envelope) {
	switch env.Type {
	case ds.TypeGetOn:
		// Two independent deliveries, deliberately non-transactional.
		r.hub.Broadcast(env.Raw, ds.ClassAgent)
		r.hub.Broadcast(env.Raw, ds.ClassOperator)
		r.hub.PublishEvent(Event{
			Kind:    EventRiderBoarded,
			Rider:   c.RiderID,
			Payload: env.Raw,
		})
	default:
		log.Printf("WS--> ignoring unrecognized rider frame %q", env.Type)
	}
}

// handleOdom persists the vehicle position and relays the frame to
// every rider bound to that vehicle.
func (r *Router) handleOdom(ctx context.Context, env *ds.Envelope) {
	var msg ds.OdomMsg
	if err := env.Decode(&msg); err != nil {
		log.Printf("WS--> bad odom frame: %v", err)
		return
	}
	if msg.Name == "" {
		log.Printf("WS--> odom frame without vehicle name, skipping")
		return
	}

	// Persistence is best effort; telemetry relay below runs either way.
	switch vehicle, err := r.store.FindVehicleByName(ctx, msg.Name); {
	case err != nil:
		log.Printf("WS--> look up vehicle %s: %v", msg.Name, err)
	case vehicle == nil:
		log.Printf("WS--> odom from unknown vehicle %s, position not stored", msg.Name)
	default:
		pos := msg.Pose.Position
		if err := r.store.UpdateVehiclePosition(ctx, msg.Name, pos.Lat, pos.Lon, msg.Pose.Yaw); err != nil {
			log.Printf("WS--> update position for %s: %v", msg.Name, err)
		}
	}

	for _, rider := range r.hub.Bindings.RidersFor(msg.Name) {
		r.hub.Unicast(rider, env.Raw)
	}

	r.hub.PublishEvent(Event{
		Kind:    EventVehicleMoved,
		Vehicle: msg.Name,
		Payload: env.Raw,
	})
}

// handleDispatched applies a dispatch decision: bind the rider to the
// assigned vehicle, persist the assignment, resolve any pending request
// keyed by the order id, and fan the decision out.
func (r *Router) handleDispatched(ctx context.Context, env *ds.Envelope, status ds.OrderStatus) {
	var msg ds.DispatchedMsg
	if err := env.Decode(&msg); err != nil {
		log.Printf("WS--> bad %s frame: %v", env.Type, err)
		return
	}

	rider := msg.UserID.String()
	if rider != "" && msg.AssignedVehicle != "" {
		r.hub.Bindings.Bind(msg.AssignedVehicle, rider)
	}

	orderID := msg.OrderID
	if orderID == "" && rider != "" {
		order, err := r.store.FindPendingOrderForRider(ctx, rider)
		if err != nil {
			log.Printf("WS--> pending order lookup for rider %s: %v", rider, err)
		} else if order != nil {
			orderID = order.OrderID
		}
	}
	if orderID != "" {
		if msg.AssignedVehicle != "" {
			if err := r.store.AssignDriverToOrder(ctx, orderID, msg.AssignedVehicle); err != nil {
				log.Printf("WS--> assign %s to order %s: %v", msg.AssignedVehicle, orderID, err)
			}
		}
		if err := r.store.SetOrderStatus(ctx, orderID, status); err != nil {
			log.Printf("WS--> set order %s status: %v", orderID, err)
		}
		r.hub.Pending.Resolve(orderID, env.Raw)
	}

	if rider != "" {
		r.hub.Unicast(rider, env.Raw)
	}
	r.hub.Broadcast(env.Raw, ds.ClassOperator)

	kind := EventOrderDispatched
	if status == ds.OrderAccepted {
		kind = EventOrderQueued
	}
	r.hub.PublishEvent(Event{
		Kind:    kind,
		Vehicle: msg.AssignedVehicle,
		Rider:   rider,
		OrderID: orderID,
		Payload: env.Raw,
	})
}

// handleEstimate bridges the asynchronous route-preview reply back to
// the HTTP caller awaiting it.
func (r *Router) handleEstimate(env *ds.Envelope) {
	var msg ds.EstimateMsg
	if err := env.Decode(&msg); err != nil {
		log.Printf("WS--> bad estimate frame: %v", err)
		return
	}
	if msg.MessageID == "" {
		log.Printf("WS--> estimate frame without message_id, skipping")
		return
	}
	if !r.hub.Pending.Resolve(msg.MessageID, env.Raw) {
		log.Printf("WS--> estimate %s had no waiter (late or duplicate reply)", msg.MessageID)
	}
	// No sink event: an estimate reply answers one awaiting caller, it
	// is not a fleet state change.
}

func (r *Router) handleReady2Trip(env *ds.Envelope) {
	var msg ds.Ready2TripMsg
	if err := env.Decode(&msg); err != nil {
		log.Printf("WS--> bad ready_2_trip frame: %v", err)
		return
	}
	if msg.UserID.String() == "" {
		log.Printf("WS--> ready_2_trip frame without user_id, skipping")
		return
	}
	r.hub.Unicast(msg.UserID.String(), env.Raw)
}
