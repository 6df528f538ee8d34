package app

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strconv"

	"github.com/google/uuid"

	"ridehub/internal/app/auth"
	"ridehub/internal/app/ds"
	"ridehub/internal/app/store"
	"ridehub/internal/app/ws"
)

var phonePattern = regexp.MustCompile(`^09\d{8}$`)

func (a *Application) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", a.ServeWs)

	mux.HandleFunc("POST /api/v1/auth/register", a.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("POST /api/v1/auth/create", a.withUser(a.handleAdminCreateUser))

	mux.HandleFunc("GET /api/v1/user/me", a.withUser(a.handleGetProfile))
	mux.HandleFunc("PUT /api/v1/user/me", a.withUser(a.handleUpdateProfile))
	mux.HandleFunc("PUT /api/v1/user/me/password", a.withUser(a.handleUpdatePassword))
	mux.HandleFunc("DELETE /api/v1/user/{id}", a.withUser(a.handleDeleteUser))

	mux.HandleFunc("POST /api/v1/admin/orders/filter", a.withUser(a.handleFilterOrders))
	mux.HandleFunc("POST /api/v1/admin/users/filter", a.withUser(a.handleFilterUsers))

	mux.HandleFunc("POST /api/v1/orders", a.withUser(a.handleCreateOrder))
	mux.HandleFunc("GET /api/v1/orders/history", a.withUser(a.handleOrderHistory))
	mux.HandleFunc("GET /api/v1/orders/{id}", a.withUser(a.handleGetOrder))
	mux.HandleFunc("PUT /api/v1/orders/{id}", a.withUser(a.handleUpdateOrder))
	mux.HandleFunc("DELETE /api/v1/orders/{id}", a.withUser(a.handleDeleteOrder))

	mux.HandleFunc("POST /api/v1/route/preview", a.withUser(a.handleRoutePreview))

	mux.HandleFunc("GET /api/v1/drivers", a.withUser(a.handleListDrivers))
	mux.HandleFunc("POST /api/v1/drivers", a.withUser(a.handleCreateDriver))

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("HTTP--> write response:", err)
	}
}

func httpError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ds.ErrorRp{Detail: detail})
}

// withUser authenticates the bearer token and hands the identity to h.
func (a *Application) withUser(h func(http.ResponseWriter, *http.Request, auth.Identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			httpError(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		ident, err := a.auth.Validate(r.Context(), header[len(prefix):])
		if err != nil {
			httpError(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		h(w, r, ident)
	}
}

func (a *Application) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req ds.RegisterRq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if !phonePattern.MatchString(req.Phone) {
		writeJSON(w, http.StatusOK, ds.RegisterRp{Status: false, Message: "Invalid phone format"})
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "Server error")
		return
	}
	_, err = a.store.CreateUser(r.Context(), req.Phone, req.Name, hash, "user")
	if errors.Is(err, store.ErrDuplicatePhone) {
		writeJSON(w, http.StatusOK, ds.RegisterRp{Status: false, Message: "Phone number already exists"})
		return
	}
	if err != nil {
		log.Println("HTTP--> register:", err)
		httpError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, ds.RegisterRp{Status: true, Message: "Registration successful"})
}

func (a *Application) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req ds.LoginRq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	user, err := a.store.FindUserByPhone(r.Context(), req.Phone)
	if err != nil {
		log.Println("HTTP--> login:", err)
		httpError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeJSON(w, http.StatusOK, ds.LoginRp{Status: false, Message: "Invalid phone or password"})
		return
	}
	token, err := a.auth.Issue(user)
	if err != nil {
		log.Println("HTTP--> login:", err)
		httpError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, ds.LoginRp{
		Status:      true,
		Message:     "Login successful",
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// identUserID converts the identity to its numeric account id; a
// malformed identity rejects the request as unauthenticated.
func identUserID(w http.ResponseWriter, ident auth.Identity) (int64, bool) {
	userID, err := strconv.ParseInt(ident.ID, 10, 64)
	if err != nil {
		httpError(w, http.StatusUnauthorized, "Could not validate credentials")
		return 0, false
	}
	return userID, true
}

func (a *Application) handleCreateOrder(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	var req ds.OrderCreateRq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	userID, ok := identUserID(w, ident)
	if !ok {
		return
	}

	order := &ds.Order{
		OrderID:     uuid.New().String(),
		UserID:      userID,
		PickupLat:   req.PickupLat,
		PickupLng:   req.PickupLng,
		PickupName:  req.PickupName,
		DropoffLat:  req.DropoffLat,
		DropoffLng:  req.DropoffLng,
		DropoffName: req.DropoffName,
		Status:      ds.OrderPending,
		Passengers:  req.Passengers,
		Pooling:     req.Pooling,
	}
	if err := a.store.CreateOrder(r.Context(), order); err != nil {
		log.Println("HTTP--> create order:", err)
		httpError(w, http.StatusInternalServerError, "Database error")
		return
	}

	// Fire-and-forget: ask the fleet to plan a pickup. The order stays
	// PENDING until an agent answers with dispatched/queued.
	a.hub.BroadcastJSON(ds.DispatchMsg{
		Type:    ds.TypeDispatch,
		OrderID: order.OrderID,
		UserID:  ds.FlexIDFromInt(userID),
		PickUp:  ds.LatLng{Lat: order.PickupLat, Lng: order.PickupLng},
		DropOff: ds.LatLng{Lat: order.DropoffLat, Lng: order.DropoffLng},
	}, ds.ClassAgent)

	writeJSON(w, http.StatusOK, ds.OrderRp{
		OrderID: order.OrderID,
		Status:  order.Status,
		Message: "Order created successfully",
	})
}

func (a *Application) handleOrderHistory(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	userID, ok := identUserID(w, ident)
	if !ok {
		return
	}
	orders, err := a.store.OrdersForUser(r.Context(), userID)
	if err != nil {
		log.Println("HTTP--> order history:", err)
		httpError(w, http.StatusInternalServerError, "Database error")
		return
	}
	out := make([]ds.OrderHistoryRp, 0, len(orders))
	for _, o := range orders {
		out = append(out, ds.OrderHistoryRp{
			OrderID:     o.OrderID,
			PickupLat:   o.PickupLat,
			PickupLng:   o.PickupLng,
			DropoffLat:  o.DropoffLat,
			DropoffLng:  o.DropoffLng,
			PickupName:  o.PickupName,
			DropoffName: o.DropoffName,
			Passengers:  o.Passengers,
			Pooling:     o.Pooling,
			Date:        o.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *Application) handleGetOrder(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	order, err := a.store.FindOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		log.Println("HTTP--> get order:", err)
		httpError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if order == nil {
		httpError(w, http.StatusNotFound, "Order not found")
		return
	}
	if strconv.FormatInt(order.UserID, 10) != ident.ID {
		httpError(w, http.StatusForbidden, "Not authorized to view this order")
		return
	}
	writeJSON(w, http.StatusOK, ds.OrderRp{OrderID: order.OrderID, Status: order.Status, Message: "Success"})
}

func (a *Application) handleUpdateOrder(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	var req ds.OrderUpdateRq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	orderID := r.PathValue("id")
	order, err := a.store.FindOrder(r.Context(), orderID)
	if err != nil {
		log.Println("HTTP--> update order:", err)
		httpError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if order == nil {
		httpError(w, http.StatusNotFound, "Order not found")
		return
	}
	// Admins may update any order, a user only their own.
	if !ident.CanOperate() && strconv.FormatInt(order.UserID, 10) != ident.ID {
		httpError(w, http.StatusForbidden, "Not authorized to update this order")
		return
	}
	if err := a.store.SetOrderStatus(r.Context(), orderID, req.Status); err != nil {
		log.Println("HTTP--> update order:", err)
		httpError(w, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, ds.OrderRp{OrderID: orderID, Status: req.Status})
}

func (a *Application) handleDeleteOrder(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	if !ident.CanOperate() {
		httpError(w, http.StatusForbidden, "Admin privileges required")
		return
	}
	orderID := r.PathValue("id")
	err := a.store.DeleteOrder(r.Context(), orderID)
	if errors.Is(err, store.ErrNotFound) {
		httpError(w, http.StatusNotFound, "Order not found")
		return
	}
	if err != nil {
		log.Println("HTTP--> delete order:", err)
		httpError(w, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Order deleted successfully",
		"order_id": orderID,
	})
}

// handleRoutePreview bridges the HTTP caller onto the asynchronous
// estimate exchange: register a pending request under the caller's
// message id, broadcast the request to the fleet, await the first
// matching reply.
func (a *Application) handleRoutePreview(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	var req ds.RoutePreviewRq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	messageID := req.MessageID
	if messageID == "" {
		messageID = uuid.New().String()
	}

	pending := a.hub.Pending.Register(messageID)

	a.hub.BroadcastJSON(ds.EstimateMsg{
		Type:      ds.TypeEstimate,
		MessageID: messageID,
		UserID:    ds.FlexID(ident.ID),
		PickUp:    ds.LatLng{Lat: req.PickupLat, Lng: req.PickupLng},
		DropOff:   ds.LatLng{Lat: req.DropoffLat, Lng: req.DropoffLng},
	}, ds.ClassAgent)

	payload, err := pending.Await(r.Context(), a.config.EstimateTimeout)
	if errors.Is(err, ws.ErrPendingTimeout) {
		httpError(w, http.StatusGatewayTimeout, "Route estimate timeout")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "Error waiting for route estimate")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

func (a *Application) handleListDrivers(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	if !ident.CanOperate() {
		httpError(w, http.StatusForbidden, "Admin privileges required")
		return
	}
	drivers, err := a.store.ListDrivers(r.Context())
	if err != nil {
		log.Println("HTTP--> list drivers:", err)
		httpError(w, http.StatusInternalServerError, "Database error")
		return
	}
	out := make([]ds.DriverRp, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, ds.DriverRp{
			ID:         d.ID,
			Name:       d.Name,
			Status:     d.Status,
			CurrentLat: d.CurrentLat,
			CurrentLng: d.CurrentLng,
			Yaw:        d.Yaw,
			Available:  d.Available,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *Application) handleCreateDriver(w http.ResponseWriter, r *http.Request, ident auth.Identity) {
	if ident.Role != "admin" {
		httpError(w, http.StatusForbidden, "Admin privileges required")
		return
	}
	var req ds.DriverCreateRq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		httpError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	driver, err := a.store.CreateDriver(r.Context(), req.Name)
	if err != nil {
		log.Println("HTTP--> create driver:", err)
		httpError(w, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, ds.DriverRp{ID: driver.ID, Name: driver.Name, Status: driver.Status})
}
