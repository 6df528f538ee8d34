package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridehub/internal/app/ds"
)

type fakeStore struct {
	mu            sync.Mutex
	positions     map[string][3]float64
	assignments   map[string]string
	statuses      map[string]ds.OrderStatus
	pendingOrders map[string]*ds.Order
	failWrites    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		positions:     make(map[string][3]float64),
		assignments:   make(map[string]string),
		statuses:      make(map[string]ds.OrderStatus),
		pendingOrders: make(map[string]*ds.Order),
	}
}

func (f *fakeStore) FindVehicleByName(ctx context.Context, name string) (*ds.Driver, error) {
	if name == "ghost" {
		return nil, nil
	}
	return &ds.Driver{Name: name}, nil
}

func (f *fakeStore) UpdateVehiclePosition(ctx context.Context, name string, lat, lon, yaw float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errors.New("store down")
	}
	f.positions[name] = [3]float64{lat, lon, yaw}
	return nil
}

func (f *fakeStore) FindPendingOrderForRider(ctx context.Context, riderID string) (*ds.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pendingOrders[riderID], nil
}

func (f *fakeStore) AssignDriverToOrder(ctx context.Context, orderID, vehicleName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errors.New("store down")
	}
	f.assignments[orderID] = vehicleName
	return nil
}

func (f *fakeStore) SetOrderStatus(ctx context.Context, orderID string, status ds.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errors.New("store down")
	}
	f.statuses[orderID] = status
	return nil
}

func (f *fakeStore) position(name string) ([3]float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.positions[name]
	return p, ok
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordingSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Kind
	}
	return out
}

func newRouterFixture(t *testing.T) (*Router, *Hub, *fakeStore, *recordingSink) {
	t.Helper()
	hub := NewHub()
	sink := &recordingSink{}
	hub.AddSink(sink)
	st := newFakeStore()
	return NewRouter(hub, st), hub, st, sink
}

// drain pops one queued frame from a client, failing if none arrives.
func drain(t *testing.T, c *ds.Client) []byte {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	default:
		t.Fatalf("expected a frame queued for %s %s", c.Class, c.UUID)
		return nil
	}
}

func TestRouterOdomDeliveredToBoundRiders(t *testing.T) {
	router, hub, st, sink := newRouterFixture(t)

	rider := newTestClient(ds.ClassRider, "u1")
	hub.Registry.Register(rider)
	hub.Registry.BindRider("u1", rider)
	hub.Bindings.Bind("car1", "u1")

	stranger := newTestClient(ds.ClassRider, "u2")
	hub.Registry.Register(stranger)
	hub.Registry.BindRider("u2", stranger)

	agent := newTestClient(ds.ClassAgent, "")
	hub.Registry.Register(agent)

	frame := []byte(`{"type":"odom","name":"car1","pose":{"position":{"lat":1.0,"lon":2.0},"yaw":90}}`)
	router.HandleFrame(context.Background(), agent, frame)

	assert.Equal(t, frame, drain(t, rider), "bound rider receives the frame verbatim")
	assert.Empty(t, stranger.Send, "unbound rider receives nothing")

	pos, ok := st.position("car1")
	require.True(t, ok)
	assert.Equal(t, [3]float64{1.0, 2.0, 90}, pos)

	assert.Contains(t, sink.kinds(), EventVehicleMoved)
}

func TestRouterOdomStoreFailureStillDelivers(t *testing.T) {
	router, hub, st, _ := newRouterFixture(t)
	st.failWrites = true

	rider := newTestClient(ds.ClassRider, "u1")
	hub.Registry.Register(rider)
	hub.Registry.BindRider("u1", rider)
	hub.Bindings.Bind("car1", "u1")

	agent := newTestClient(ds.ClassAgent, "")
	hub.Registry.Register(agent)

	frame := []byte(`{"type":"odom","name":"car1","pose":{"position":{"lat":3,"lon":4},"yaw":0}}`)
	router.HandleFrame(context.Background(), agent, frame)

	assert.Equal(t, frame, drain(t, rider), "store failure must not block telemetry relay")
}

func TestRouterOdomUnknownVehicleSkipsPersistButRelays(t *testing.T) {
	router, hub, st, _ := newRouterFixture(t)

	rider := newTestClient(ds.ClassRider, "u1")
	hub.Registry.Register(rider)
	hub.Registry.BindRider("u1", rider)
	hub.Bindings.Bind("ghost", "u1")

	agent := newTestClient(ds.ClassAgent, "")
	hub.Registry.Register(agent)

	frame := []byte(`{"type":"odom","name":"ghost","pose":{"position":{"lat":5,"lon":6},"yaw":0}}`)
	router.HandleFrame(context.Background(), agent, frame)

	assert.Equal(t, frame, drain(t, rider))
	_, stored := st.position("ghost")
	assert.False(t, stored, "unknown vehicle position must not be stored")
}

func TestRouterDispatchedBindsAndPersists(t *testing.T) {
	router, hub, st, sink := newRouterFixture(t)

	rider := newTestClient(ds.ClassRider, "u1")
	hub.Registry.Register(rider)
	hub.Registry.BindRider("u1", rider)

	operator := newTestClient(ds.ClassOperator, "")
	hub.Registry.Register(operator)

	agent := newTestClient(ds.ClassAgent, "")
	hub.Registry.Register(agent)

	p := hub.Pending.Register("order-7")

	frame := []byte(`{"type":"dispatched","order_id":"order-7","user_id":"u1","assigned_vehicle":"car1"}`)
	router.HandleFrame(context.Background(), agent, frame)

	assert.ElementsMatch(t, []string{"u1"}, hub.Bindings.RidersFor("car1"))
	assert.Equal(t, "car1", st.assignments["order-7"])
	assert.Equal(t, ds.OrderAssigned, st.statuses["order-7"])

	assert.Equal(t, frame, drain(t, rider))
	assert.Equal(t, frame, drain(t, operator))

	got, err := p.Await(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, frame, []byte(got))

	assert.Contains(t, sink.kinds(), EventOrderDispatched)

	// subsequent odom frames for car1 now reach u1
	odom := []byte(`{"type":"odom","name":"car1","pose":{"position":{"lat":1,"lon":2},"yaw":0}}`)
	router.HandleFrame(context.Background(), agent, odom)
	assert.Equal(t, odom, drain(t, rider))
}

func TestRouterQueuedSetsAcceptedStatus(t *testing.T) {
	router, hub, st, sink := newRouterFixture(t)

	agent := newTestClient(ds.ClassAgent, "")
	hub.Registry.Register(agent)

	frame := []byte(`{"type":"queued","order_id":"order-9","user_id":"u3","assigned_vehicle":"car2"}`)
	router.HandleFrame(context.Background(), agent, frame)

	assert.Equal(t, ds.OrderAccepted, st.statuses["order-9"])
	assert.Contains(t, sink.kinds(), EventOrderQueued)
}

func TestRouterDispatchedFallsBackToPendingOrderLookup(t *testing.T) {
	router, hub, st, _ := newRouterFixture(t)
	st.pendingOrders["u1"] = &ds.Order{OrderID: "order-42", Status: ds.OrderPending}

	agent := newTestClient(ds.ClassAgent, "")
	hub.Registry.Register(agent)

	frame := []byte(`{"type":"dispatched","user_id":"u1","assigned_vehicle":"car1"}`)
	router.HandleFrame(context.Background(), agent, frame)

	assert.Equal(t, "car1", st.assignments["order-42"])
	assert.Equal(t, ds.OrderAssigned, st.statuses["order-42"])
}

func TestRouterEstimateResolvesPending(t *testing.T) {
	router, hub, _, _ := newRouterFixture(t)

	agent := newTestClient(ds.ClassAgent, "")
	hub.Registry.Register(agent)

	p := hub.Pending.Register("req1")

	frame := []byte(`{"type":"estimate","message_id":"req1","route":[[1,2],[3,4]]}`)
	router.HandleFrame(context.Background(), agent, frame)

	got, err := p.Await(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, frame, []byte(got), "caller observes the exact reply payload")
}

func TestRouterLateEstimateIsDiscarded(t *testing.T) {
	router, hub, _, _ := newRouterFixture(t)

	agent := newTestClient(ds.ClassAgent, "")
	hub.Registry.Register(agent)

	// no waiter registered; must not panic or error
	router.HandleFrame(context.Background(), agent,
		[]byte(`{"type":"estimate","message_id":"ghost"}`))
}

func TestRouterReady2TripUnicast(t *testing.T) {
	router, hub, _, _ := newRouterFixture(t)

	rider := newTestClient(ds.ClassRider, "u1")
	hub.Registry.Register(rider)
	hub.Registry.BindRider("u1", rider)

	agent := newTestClient(ds.ClassAgent, "")
	hub.Registry.Register(agent)

	frame := []byte(`{"type":"ready_2_trip","user_id":"u1"}`)
	router.HandleFrame(context.Background(), agent, frame)

	assert.Equal(t, frame, drain(t, rider))
}

func TestRouterGetOnRelayedToAgentsAndOperators(t *testing.T) {
	router, hub, _, sink := newRouterFixture(t)

	rider := newTestClient(ds.ClassRider, "u1")
	agent := newTestClient(ds.ClassAgent, "")
	operator := newTestClient(ds.ClassOperator, "")
	hub.Registry.Register(rider)
	hub.Registry.Register(agent)
	hub.Registry.Register(operator)

	frame := []byte(`{"type":"geton","user_id":"u1"}`)
	router.HandleFrame(context.Background(), rider, frame)

	assert.Equal(t, frame, drain(t, agent))
	assert.Equal(t, frame, drain(t, operator))
	assert.Empty(t, rider.Send, "sender gets no echo")
	assert.Contains(t, sink.kinds(), EventRiderBoarded)
}

func TestRouterIgnoresUnknownAndMalformedFrames(t *testing.T) {
	router, hub, _, _ := newRouterFixture(t)

	agent := newTestClient(ds.ClassAgent, "")
	rider := newTestClient(ds.ClassRider, "u1")
	hub.Registry.Register(agent)
	hub.Registry.Register(rider)

	router.HandleFrame(context.Background(), agent, []byte(`not json at all`))
	router.HandleFrame(context.Background(), agent, []byte(`{"type":"warp_drive"}`))
	router.HandleFrame(context.Background(), rider, []byte(`{"type":"odom"}`))

	assert.Equal(t, 1, hub.Registry.Count(ds.ClassAgent), "bad frames never drop the connection")
	assert.Equal(t, 1, hub.Registry.Count(ds.ClassRider))
}

func TestRouterFlexIDAcceptsNumericUserID(t *testing.T) {
	router, hub, _, _ := newRouterFixture(t)

	rider := newTestClient(ds.ClassRider, "1")
	hub.Registry.Register(rider)
	hub.Registry.BindRider("1", rider)

	agent := newTestClient(ds.ClassAgent, "")
	hub.Registry.Register(agent)

	frame := []byte(`{"type":"ready_2_trip","user_id":1}`)
	router.HandleFrame(context.Background(), agent, frame)

	assert.Equal(t, frame, drain(t, rider))

	var decoded ds.Ready2TripMsg
	require.NoError(t, json.Unmarshal(frame, &decoded))
	assert.Equal(t, "1", decoded.UserID.String())
}
