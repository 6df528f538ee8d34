package ds

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// message types carried in the envelope `type` field

const (
	TypeOdom       = "odom"
	TypeDispatch   = "dispatch"
	TypeDispatched = "dispatched"
	TypeQueued     = "queued"
	TypeEstimate   = "estimate"
	TypeReady2Trip = "ready_2_trip"
	TypeGetOn      = "geton"
	TypeAuth       = "auth"
)

// Envelope is one decoded websocket frame. Raw keeps the original bytes
// so handlers can relay the frame verbatim or re-decode it into the
// variant matching Type. Unknown fields are ignored on decode.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// DecodeEnvelope parses a frame into an Envelope. Frames without a
// string `type` field decode with Type == "" and fall through to the
// router's default case.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	env.Raw = json.RawMessage(data)
	return &env, nil
}

// Decode re-parses the raw frame into the typed variant v.
func (e *Envelope) Decode(v any) error {
	return json.Unmarshal(e.Raw, v)
}

// FlexID is an identity field that clients send either as a JSON string
// or as a number. It always compares as its decimal string form.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) String() string { return string(f) }

// FlexIDFromInt converts a store record id to its wire form.
func FlexIDFromInt(id int64) FlexID { return FlexID(strconv.FormatInt(id, 10)) }

// LatLng is a point on the map.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Position is the odom pose position; agents report lat/lon.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Pose struct {
	Position Position `json:"position"`
	Yaw      float64  `json:"yaw"`
}

// OdomMsg is vehicle telemetry from an agent.
type OdomMsg struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Pose Pose   `json:"pose"`
}

// DispatchMsg asks the agents to plan a pickup for a fresh order.
type DispatchMsg struct {
	Type    string `json:"type"`
	OrderID string `json:"order_id"`
	UserID  FlexID `json:"user_id"`
	PickUp  LatLng `json:"pick_up"`
	DropOff LatLng `json:"drop_off"`
}

// DispatchedMsg is the agents' dispatch decision (`dispatched` or
// `queued`). OrderID may be absent in older agent builds.
type DispatchedMsg struct {
	Type            string   `json:"type"`
	OrderID         string   `json:"order_id,omitempty"`
	UserID          FlexID   `json:"user_id"`
	AssignedVehicle string   `json:"assigned_vehicle"`
	EtaToPick       float64  `json:"eta_to_pick,omitempty"`
	EtaTrip         float64  `json:"eta_trip,omitempty"`
	Path1           []LatLng `json:"path1,omitempty"`
	Path2           []LatLng `json:"path2,omitempty"`
}

// EstimateMsg is both the route-preview request sent to agents and the
// reply they send back; MessageID correlates the two.
type EstimateMsg struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	UserID    FlexID `json:"user_id,omitempty"`
	PickUp    LatLng `json:"pick_up,omitempty"`
	DropOff   LatLng `json:"drop_off,omitempty"`
}

// Ready2TripMsg tells one rider their vehicle has arrived.
type Ready2TripMsg struct {
	Type   string `json:"type"`
	UserID FlexID `json:"user_id"`
}

// AuthRequest is the first frame a rider or operator sends.
type AuthRequest struct {
	Token       string `json:"token"`
	RiderID     FlexID `json:"rider_id"`
	VehicleName string `json:"vehicle_name"`
}

// AuthResponse acknowledges a completed handshake.
type AuthResponse struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Heartbeat is the periodic server ping, kept byte-compatible with the
// clients already in the field.
type Heartbeat struct {
	ClientType string `json:"client_type"`
	Msg        string `json:"msg"`
}
