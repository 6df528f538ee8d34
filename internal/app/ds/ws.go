package ds

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ClientClass partitions connections by the kind of peer behind them.
type ClientClass string

const (
	ClassRider    ClientClass = "rider"
	ClassOperator ClientClass = "operator"
	ClassAgent    ClientClass = "agent"
)

// Valid reports whether c is one of the three known classes.
func (c ClientClass) Valid() bool {
	switch c {
	case ClassRider, ClassOperator, ClassAgent:
		return true
	}
	return false
}

// Handshake close codes. Each rejection cause gets its own code so
// clients can branch on it.
const (
	CloseUnsupportedClass = 4000
	CloseAuthNotJSON      = 4001
	CloseMissingToken     = 4002
	CloseMissingRiderID   = 4003
	CloseAuthTimeout      = 4004
	CloseIdentityMismatch = 4005
	CloseInvalidToken     = 4006
	CloseMissingVehicle   = 4007
	CloseInsufficientRole = 4008
	CloseSuperseded       = 4009
)

// Client is a middleman between one websocket connection and the hub.
// Once registered it is owned by the hub and must not be reused after
// removal.
type Client struct {
	UUID uuid.UUID

	Class ClientClass

	// RiderID is set only for rider-class clients.
	RiderID string

	// The websocket connection. Nil in tests that exercise the hub
	// without a transport.
	Conn *websocket.Conn

	// Buffered channel of outbound frames, drained by the write pump.
	Send chan []byte

	closeCode atomic.Int32
}

// SetCloseCode records the close code the write pump should report to
// the peer when the send channel drains.
func (c *Client) SetCloseCode(code int) {
	c.closeCode.Store(int32(code))
}

// CloseCode returns the recorded close code, or websocket.CloseNormalClosure
// when none was set.
func (c *Client) CloseCode() int {
	if code := c.closeCode.Load(); code != 0 {
		return int(code)
	}
	return websocket.CloseNormalClosure
}

// NewClient builds an unregistered client around conn.
func NewClient(conn *websocket.Conn, class ClientClass) *Client {
	return &Client{
		UUID:  uuid.New(),
		Class: class,
		Conn:  conn,
		Send:  make(chan []byte, 256),
	}
}
