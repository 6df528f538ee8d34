package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"ridehub/internal/app/auth"
	"ridehub/internal/app/ds"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 65536
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWs handles websocket requests from the peer. The client class is
// selected by the client_type query parameter before any handshake
// frame is read.
func (a *Application) ServeWs(w http.ResponseWriter, r *http.Request) {
	class := ds.ClientClass(strings.ToLower(r.URL.Query().Get("client_type")))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("WS--> upgrade:", err)
		return
	}

	if !class.Valid() {
		closeWith(conn, ds.CloseUnsupportedClass, "Unsupported client_type")
		conn.Close()
		return
	}

	client, err := a.handshake(r.Context(), conn, class)
	if err != nil {
		conn.Close()
		return
	}

	log.Printf("WS--> new %s connection %s", client.Class, client.UUID)

	go a.writePump(client)
	go a.readPump(client)
}

// handshake runs the per-class onboarding protocol and registers the
// connection. On failure the connection has already been closed with
// the cause-specific code.
func (a *Application) handshake(ctx context.Context, conn *websocket.Conn, class ds.ClientClass) (*ds.Client, error) {
	client := ds.NewClient(conn, class)

	switch class {
	case ds.ClassAgent:
		// Agents are trusted infrastructure on a private link and skip
		// authentication.
		a.hub.Registry.Register(client)
		return client, nil

	case ds.ClassOperator:
		ident, err := a.verifyOperator(ctx, conn)
		if err != nil {
			return nil, err
		}
		a.hub.Registry.Register(client)
		a.hub.SendJSON(client, ds.AuthResponse{
			Type:    ds.TypeAuth,
			Status:  "success",
			Message: fmt.Sprintf("Manager %s connection established.", ident.ID),
		})
		return client, nil

	case ds.ClassRider:
		ident, vehicle, err := a.verifyRider(ctx, conn)
		if err != nil {
			return nil, err
		}
		client.RiderID = ident.ID
		a.hub.Registry.Register(client)
		if displaced := a.hub.Registry.BindRider(ident.ID, client); displaced != nil {
			log.Printf("WS--> rider %s superseded connection %s", ident.ID, displaced.UUID)
			a.hub.Drop(displaced, ds.CloseSuperseded)
		}
		a.hub.Bindings.Bind(vehicle, ident.ID)
		a.hub.SendJSON(client, ds.AuthResponse{
			Type:    ds.TypeAuth,
			Status:  "success",
			Message: fmt.Sprintf("User %s connection established.", ident.ID),
		})
		return client, nil
	}

	closeWith(conn, ds.CloseUnsupportedClass, "Unsupported client_type")
	return nil, errors.New("unsupported client class")
}

// readAuthFrame waits for the single credentials frame and parses it.
func (a *Application) readAuthFrame(conn *websocket.Conn) (*ds.AuthRequest, error) {
	conn.SetReadDeadline(time.Now().Add(a.config.AuthTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			closeWith(conn, ds.CloseAuthTimeout, "Auth timeout")
		}
		return nil, fmt.Errorf("read auth frame: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	var req ds.AuthRequest
	if err := json.Unmarshal(data, &req); err != nil {
		closeWith(conn, ds.CloseAuthNotJSON, "Auth must be JSON")
		return nil, fmt.Errorf("parse auth frame: %w", err)
	}
	if req.Token == "" {
		closeWith(conn, ds.CloseMissingToken, "Missing token")
		return nil, errors.New("missing token")
	}
	return &req, nil
}

func (a *Application) verifyOperator(ctx context.Context, conn *websocket.Conn) (auth.Identity, error) {
	req, err := a.readAuthFrame(conn)
	if err != nil {
		return auth.Identity{}, err
	}
	ident, err := a.auth.Validate(ctx, req.Token)
	if err != nil {
		closeWith(conn, ds.CloseInvalidToken, "Invalid token")
		return auth.Identity{}, fmt.Errorf("validate operator token: %w", err)
	}
	if !ident.CanOperate() {
		closeWith(conn, ds.CloseInsufficientRole, "Admin privileges required")
		return auth.Identity{}, errors.New("insufficient role")
	}
	return ident, nil
}

func (a *Application) verifyRider(ctx context.Context, conn *websocket.Conn) (auth.Identity, string, error) {
	req, err := a.readAuthFrame(conn)
	if err != nil {
		return auth.Identity{}, "", err
	}
	ident, err := a.auth.Validate(ctx, req.Token)
	if err != nil {
		closeWith(conn, ds.CloseInvalidToken, "Invalid token")
		return auth.Identity{}, "", fmt.Errorf("validate rider token: %w", err)
	}
	if req.RiderID.String() == "" {
		closeWith(conn, ds.CloseMissingRiderID, "Missing rider_id")
		return auth.Identity{}, "", errors.New("missing rider_id")
	}
	if req.VehicleName == "" {
		closeWith(conn, ds.CloseMissingVehicle, "Missing vehicle_name")
		return auth.Identity{}, "", errors.New("missing vehicle_name")
	}
	if ident.ID != req.RiderID.String() {
		closeWith(conn, ds.CloseIdentityMismatch, "Rider ID mismatch with token")
		return auth.Identity{}, "", errors.New("rider identity mismatch")
	}
	return ident, req.VehicleName, nil
}

// closeWith sends a close frame with the cause-specific code. Best
// effort; the peer may already be gone.
func closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(writeWait)
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}

// readPump pumps messages from the websocket connection to the router.
//
// There is at most one reader per connection; frames from one
// connection are therefore processed strictly in arrival order.
func (a *Application) readPump(c *ds.Client) {
	defer func() {
		a.hub.Drop(c, 0)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("WS--> read from %s %s: %v", c.Class, c.UUID, err)
			}
			break
		}
		a.router.HandleFrame(context.Background(), c, message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
//
// All writes to the connection happen from this goroutine. One JSON
// object per frame; no batching.
func (a *Application) writePump(c *ds.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub dropped this client; report why.
				c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(c.CloseCode(), ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
