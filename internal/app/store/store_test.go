package store

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridehub/internal/app/ds"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUserCreateAndLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "0912345678", "amy", "hash", "user")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)

	got, err := s.FindUserByPhone(ctx, "0912345678")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "amy", got.Name)

	byID, err := s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "0912345678", byID.Phone)

	missing, err := s.FindUserByPhone(ctx, "0900000000")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = s.CreateUser(ctx, "0912345678", "amy2", "hash", "user")
	assert.ErrorIs(t, err, ErrDuplicatePhone)
}

func TestUserUpdateAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "0912345678", "amy", "hash", "user")
	require.NoError(t, err)

	require.NoError(t, s.UpdateUserName(ctx, u.ID, "amelia"))
	require.NoError(t, s.UpdateUserPassword(ctx, u.ID, "newhash"))

	got, err := s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "amelia", got.Name)
	assert.Equal(t, "newhash", got.PasswordHash)

	assert.ErrorIs(t, s.UpdateUserName(ctx, 999, "x"), ErrNotFound)
	assert.ErrorIs(t, s.UpdateUserPassword(ctx, 999, "x"), ErrNotFound)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	assert.ErrorIs(t, s.DeleteUser(ctx, u.ID), ErrNotFound)
}

func TestFilterUsers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "0911111111", "amy", "hash", "user")
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, "0922222222", "bob", "hash", "user")
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, "0933333333", "ops", "hash", "admin")
	require.NoError(t, err)

	total, users, err := s.FilterUsers(ctx, UserFilter{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, users, 2)

	total, users, err = s.FilterUsers(ctx, UserFilter{Role: "admin", Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "ops", users[0].Name)

	total, _, err = s.FilterUsers(ctx, UserFilter{Phone: "0922", Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestFilterOrders(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "0912345678", "amy", "hash", "user")
	require.NoError(t, err)
	other, err := s.CreateUser(ctx, "0922222222", "bob", "hash", "user")
	require.NoError(t, err)

	mk := func(id string, userID int64, status ds.OrderStatus, pickup string) {
		require.NoError(t, s.CreateOrder(ctx, &ds.Order{
			OrderID: id, UserID: userID, PickupName: pickup, Status: status,
		}))
	}
	mk("ord-1", u.ID, ds.OrderPending, "station")
	mk("ord-2", u.ID, ds.OrderCompleted, "airport")
	mk("ord-3", other.ID, ds.OrderCompleted, "station north")

	total, orders, err := s.FilterOrders(ctx, OrderFilter{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, orders, 2)

	total, orders, err = s.FilterOrders(ctx, OrderFilter{
		Statuses: []ds.OrderStatus{ds.OrderCompleted}, UserID: &u.ID, Page: 1, Size: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, orders, 1)
	assert.Equal(t, "ord-2", orders[0].OrderID)

	total, _, err = s.FilterOrders(ctx, OrderFilter{PickupName: "station", Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestVehiclePositionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateDriver(ctx, "car1")
	require.NoError(t, err)

	require.NoError(t, s.UpdateVehiclePosition(ctx, "car1", 1.0, 2.0, 90))

	d, err := s.FindVehicleByName(ctx, "car1")
	require.NoError(t, err)
	require.NotNil(t, d)
	require.NotNil(t, d.CurrentLat)
	assert.Equal(t, 1.0, *d.CurrentLat)
	assert.Equal(t, 2.0, *d.CurrentLng)
	assert.Equal(t, 90.0, *d.Yaw)

	err = s.UpdateVehiclePosition(ctx, "ghost", 0, 0, 0)
	assert.ErrorIs(t, err, ErrNotFound)

	missing, err := s.FindVehicleByName(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "0912345678", "amy", "hash", "user")
	require.NoError(t, err)
	_, err = s.CreateDriver(ctx, "car1")
	require.NoError(t, err)

	order := &ds.Order{
		OrderID:    "ord-1",
		UserID:     u.ID,
		PickupLat:  24.06,
		PickupLng:  120.55,
		DropoffLat: 24.07,
		DropoffLng: 120.56,
		Status:     ds.OrderPending,
	}
	require.NoError(t, s.CreateOrder(ctx, order))

	pending, err := s.FindPendingOrderForRider(ctx, strconv.FormatInt(u.ID, 10))
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, "ord-1", pending.OrderID)

	require.NoError(t, s.AssignDriverToOrder(ctx, "ord-1", "car1"))
	require.NoError(t, s.SetOrderStatus(ctx, "ord-1", ds.OrderAssigned))

	got, err := s.FindOrder(ctx, "ord-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ds.OrderAssigned, got.Status)
	require.NotNil(t, got.DriverID)

	// assigned orders are no longer pending
	pending, err = s.FindPendingOrderForRider(ctx, strconv.FormatInt(u.ID, 10))
	require.NoError(t, err)
	assert.Nil(t, pending)

	d, err := s.FindVehicleByName(ctx, "car1")
	require.NoError(t, err)
	assert.Equal(t, 1, d.TotalRides)

	history, err := s.OrdersForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)

	require.NoError(t, s.DeleteOrder(ctx, "ord-1"))
	assert.ErrorIs(t, s.DeleteOrder(ctx, "ord-1"), ErrNotFound)
}

func TestAssignDriverErrors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "0912345678", "amy", "hash", "user")
	require.NoError(t, err)
	require.NoError(t, s.CreateOrder(ctx, &ds.Order{OrderID: "ord-1", UserID: u.ID}))

	assert.ErrorIs(t, s.AssignDriverToOrder(ctx, "ord-1", "ghost"), ErrNotFound)

	_, err = s.CreateDriver(ctx, "car1")
	require.NoError(t, err)
	assert.ErrorIs(t, s.AssignDriverToOrder(ctx, "no-such-order", "car1"), ErrNotFound)

	assert.ErrorIs(t, s.SetOrderStatus(ctx, "no-such-order", ds.OrderCancelled), ErrNotFound)
}

func TestFindPendingOrderBadRiderID(t *testing.T) {
	s := openTestStore(t)
	_, err := s.FindPendingOrderForRider(context.Background(), "not-a-number")
	assert.Error(t, err)
}
