package ds

import "time"

// HTTP request/response schemas for the /api/v1 surface.

type RegisterRq struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type RegisterRp struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

type LoginRq struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type LoginRp struct {
	Status      bool   `json:"status"`
	Message     string `json:"message"`
	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
}

type OrderCreateRq struct {
	PickupLat   float64 `json:"pickup_lat"`
	PickupLng   float64 `json:"pickup_lng"`
	DropoffLat  float64 `json:"dropoff_lat"`
	DropoffLng  float64 `json:"dropoff_lng"`
	PickupName  string  `json:"pickup_name,omitempty"`
	DropoffName string  `json:"dropoff_name,omitempty"`
	Passengers  int     `json:"passengers,omitempty"`
	Pooling     bool    `json:"accept_pooling,omitempty"`
}

type OrderRp struct {
	OrderID string      `json:"order_id"`
	Status  OrderStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

type OrderUpdateRq struct {
	Status OrderStatus `json:"status"`
}

type OrderHistoryRp struct {
	OrderID     string    `json:"order_id"`
	PickupLat   float64   `json:"pickup_lat"`
	PickupLng   float64   `json:"pickup_lng"`
	DropoffLat  float64   `json:"dropoff_lat"`
	DropoffLng  float64   `json:"dropoff_lng"`
	PickupName  string    `json:"pickup_name,omitempty"`
	DropoffName string    `json:"dropoff_name,omitempty"`
	Passengers  int       `json:"passengers"`
	Pooling     bool      `json:"accept_pooling"`
	Date        time.Time `json:"date"`
}

type RoutePreviewRq struct {
	MessageID  string  `json:"message_id"`
	PickupLat  float64 `json:"pickup_lat"`
	PickupLng  float64 `json:"pickup_lng"`
	DropoffLat float64 `json:"dropoff_lat"`
	DropoffLng float64 `json:"dropoff_lng"`
}

type DriverCreateRq struct {
	Name string `json:"name"`
}

type DriverRp struct {
	ID         int64        `json:"id"`
	Name       string       `json:"name"`
	Status     DriverStatus `json:"status"`
	CurrentLat *float64     `json:"current_lat,omitempty"`
	CurrentLng *float64     `json:"current_lng,omitempty"`
	Yaw        *float64     `json:"yaw,omitempty"`
	Available  bool         `json:"is_available"`
}

type ErrorRp struct {
	Detail string `json:"detail"`
}

type StatusRp struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
}

type UserProfileRp struct {
	ID        int64     `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type UserUpdateRq struct {
	Name string `json:"name"`
}

type PasswordUpdateRq struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type AdminCreateUserRq struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type AdminCreateUserRp struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	UserID  *int64 `json:"user_id"`
}

type OrderFilterRq struct {
	Page        int           `json:"page"`
	Size        int           `json:"size"`
	Status      []OrderStatus `json:"status,omitempty"`
	UserID      *int64        `json:"user_id,omitempty"`
	DriverID    *int64        `json:"driver_id,omitempty"`
	PickupName  string        `json:"pickup_name,omitempty"`
	DropoffName string        `json:"dropoff_name,omitempty"`
}

type OrderDetailRp struct {
	OrderID     string      `json:"order_id"`
	UserID      int64       `json:"user_id"`
	DriverID    *int64      `json:"driver_id"`
	PickupLat   float64     `json:"pickup_lat"`
	PickupLng   float64     `json:"pickup_lng"`
	PickupName  string      `json:"pickup_name,omitempty"`
	DropoffLat  float64     `json:"dropoff_lat"`
	DropoffLng  float64     `json:"dropoff_lng"`
	DropoffName string      `json:"dropoff_name,omitempty"`
	Status      OrderStatus `json:"status"`
	Passengers  int         `json:"passengers"`
	Pooling     bool        `json:"accept_pooling"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type PagedOrdersRp struct {
	Total int             `json:"total"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
	Data  []OrderDetailRp `json:"data"`
}

type UserFilterRq struct {
	Page  int    `json:"page"`
	Size  int    `json:"size"`
	Name  string `json:"username,omitempty"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role,omitempty"`
}

type PagedUsersRp struct {
	Total int             `json:"total"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
	Data  []UserProfileRp `json:"data"`
}
