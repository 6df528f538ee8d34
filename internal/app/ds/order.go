package ds

import "time"

// Order statuses, stored as small integers.
type OrderStatus int

const (
	OrderPending OrderStatus = iota
	OrderAccepted
	OrderAssigned
	OrderInProgress
	OrderCompleted
	OrderCancelled
)

// Driver statuses.
type DriverStatus int

const (
	DriverPending DriverStatus = iota
	DriverIdle
	DriverEnRoute
	DriverOnTrip
	DriverOffline
)

// User is an account record.
type User struct {
	ID           int64
	Phone        string
	Name         string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// Order is one ride request.
type Order struct {
	OrderID     string
	UserID      int64
	DriverID    *int64
	PickupLat   float64
	PickupLng   float64
	PickupName  string
	DropoffLat  float64
	DropoffLng  float64
	DropoffName string
	Status      OrderStatus
	Passengers  int
	Pooling     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Driver is one vehicle record; Name is the vehicle name the agents
// report telemetry under.
type Driver struct {
	ID         int64
	Name       string
	Status     DriverStatus
	TotalRides int
	CurrentLat *float64
	CurrentLng *float64
	Yaw        *float64
	Available  bool
	UpdatedAt  time.Time
}
