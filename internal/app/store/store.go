package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"ridehub/internal/app/ds"
)

// ErrNotFound marks lookups that must distinguish absence from failure.
var ErrNotFound = errors.New("record not found")

// Store is the sqlite-backed record store for users, orders and
// drivers. Every method is one short transaction; nothing here holds a
// transaction across calls.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	phone         TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'user',
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS drivers (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL,
	status       INTEGER NOT NULL DEFAULT 0,
	total_rides  INTEGER NOT NULL DEFAULT 0,
	current_lat  REAL,
	current_lng  REAL,
	yaw          REAL,
	is_available INTEGER NOT NULL DEFAULT 0,
	updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS orders (
	order_id     TEXT PRIMARY KEY,
	user_id      INTEGER NOT NULL REFERENCES users(id),
	driver_id    INTEGER REFERENCES drivers(id),
	pickup_lat   REAL NOT NULL,
	pickup_lng   REAL NOT NULL,
	pickup_name  TEXT NOT NULL DEFAULT '',
	dropoff_lat  REAL NOT NULL,
	dropoff_lng  REAL NOT NULL,
	dropoff_name TEXT NOT NULL DEFAULT '',
	status       INTEGER NOT NULL DEFAULT 0,
	passengers   INTEGER NOT NULL DEFAULT 1,
	pooling      INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id, created_at);
`

// Open opens (and if needed creates) the database at path. Use
// ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite allows a single writer; one pooled connection avoids
	// SQLITE_BUSY and keeps :memory: databases from fragmenting across
	// pool connections.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// ----------------------
// users
// ----------------------

// CreateUser inserts a user and returns it with the assigned id.
// Duplicate phones return ErrDuplicatePhone.
func (s *Store) CreateUser(ctx context.Context, phone, name, passwordHash, role string) (*ds.User, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (phone, name, password_hash, role) VALUES (?, ?, ?, ?)`,
		phone, name, passwordHash, role)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicatePhone
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert user id: %w", err)
	}
	return &ds.User{ID: id, Phone: phone, Name: name, PasswordHash: passwordHash, Role: role}, nil
}

// ErrDuplicatePhone is returned when registering an existing phone.
var ErrDuplicatePhone = errors.New("phone number already exists")

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// FindUserByPhone returns (nil, nil) when no such user exists.
func (s *Store) FindUserByPhone(ctx context.Context, phone string) (*ds.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, phone, name, password_hash, role, created_at FROM users WHERE phone = ?`, phone)
	return scanUser(row)
}

// FindUserByID returns (nil, nil) when no such user exists.
func (s *Store) FindUserByID(ctx context.Context, id int64) (*ds.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, phone, name, password_hash, role, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*ds.User, error) {
	var u ds.User
	err := row.Scan(&u.ID, &u.Phone, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// UpdateUserName renames an account. Unknown users return ErrNotFound.
func (s *Store) UpdateUserName(ctx context.Context, id int64, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("update user name: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateUserPassword replaces the stored password hash.
func (s *Store) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteUser removes an account. Unknown users return ErrNotFound.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

// UserFilter narrows FilterUsers; zero values apply no condition.
type UserFilter struct {
	Name  string
	Phone string
	Role  string
	Page  int
	Size  int
}

// FilterUsers returns one page of accounts matching the filter plus the
// total match count.
func (s *Store) FilterUsers(ctx context.Context, f UserFilter) (int, []ds.User, error) {
	var where []string
	var args []any
	if f.Name != "" {
		where = append(where, `name LIKE '%' || ? || '%'`)
		args = append(args, f.Name)
	}
	if f.Phone != "" {
		where = append(where, `phone LIKE '%' || ? || '%'`)
		args = append(args, f.Phone)
	}
	if f.Role != "" {
		where = append(where, `role = ?`)
		args = append(args, f.Role)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+clause, args...).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("count users: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, phone, name, password_hash, role, created_at FROM users`+clause+
			` ORDER BY id ASC LIMIT ? OFFSET ?`,
		append(args, f.Size, (f.Page-1)*f.Size)...)
	if err != nil {
		return 0, nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []ds.User
	for rows.Next() {
		var u ds.User
		if err := rows.Scan(&u.ID, &u.Phone, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
			return 0, nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return total, out, rows.Err()
}

// ----------------------
// drivers
// ----------------------

// CreateDriver inserts a vehicle record.
func (s *Store) CreateDriver(ctx context.Context, name string) (*ds.Driver, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO drivers (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert driver: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert driver id: %w", err)
	}
	return &ds.Driver{ID: id, Name: name, Status: ds.DriverPending}, nil
}

// FindVehicleByName returns (nil, nil) when no such vehicle exists.
func (s *Store) FindVehicleByName(ctx context.Context, name string) (*ds.Driver, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, total_rides, current_lat, current_lng, yaw, is_available, updated_at
		 FROM drivers WHERE name = ?`, name)
	var d ds.Driver
	err := row.Scan(&d.ID, &d.Name, &d.Status, &d.TotalRides,
		&d.CurrentLat, &d.CurrentLng, &d.Yaw, &d.Available, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan driver: %w", err)
	}
	return &d, nil
}

// UpdateVehiclePosition writes the latest telemetry pose for the named
// vehicle. Unknown vehicles return ErrNotFound.
func (s *Store) UpdateVehiclePosition(ctx context.Context, name string, lat, lon, yaw float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE drivers SET current_lat = ?, current_lng = ?, yaw = ?, updated_at = ? WHERE name = ?`,
		lat, lon, yaw, time.Now().UTC(), name)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("vehicle %q: %w", name, ErrNotFound)
	}
	return nil
}

// ListDrivers returns every vehicle record.
func (s *Store) ListDrivers(ctx context.Context) ([]ds.Driver, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, status, total_rides, current_lat, current_lng, yaw, is_available, updated_at
		 FROM drivers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	defer rows.Close()

	var out []ds.Driver
	for rows.Next() {
		var d ds.Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.Status, &d.TotalRides,
			&d.CurrentLat, &d.CurrentLng, &d.Yaw, &d.Available, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan driver: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ----------------------
// orders
// ----------------------

// CreateOrder persists a fresh PENDING order.
func (s *Store) CreateOrder(ctx context.Context, o *ds.Order) error {
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	if o.Passengers == 0 {
		o.Passengers = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (order_id, user_id, pickup_lat, pickup_lng, pickup_name,
		                     dropoff_lat, dropoff_lng, dropoff_name, status, passengers, pooling,
		                     created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderID, o.UserID, o.PickupLat, o.PickupLng, o.PickupName,
		o.DropoffLat, o.DropoffLng, o.DropoffName, o.Status, o.Passengers, o.Pooling,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// FindOrder returns (nil, nil) when no such order exists.
func (s *Store) FindOrder(ctx context.Context, orderID string) (*ds.Order, error) {
	row := s.db.QueryRowContext(ctx, selectOrder+` WHERE order_id = ?`, orderID)
	return scanOrder(row.Scan)
}

const selectOrder = `
SELECT order_id, user_id, driver_id, pickup_lat, pickup_lng, pickup_name,
       dropoff_lat, dropoff_lng, dropoff_name, status, passengers, pooling,
       created_at, updated_at
FROM orders`

func scanOrder(scan func(...any) error) (*ds.Order, error) {
	var o ds.Order
	err := scan(&o.OrderID, &o.UserID, &o.DriverID, &o.PickupLat, &o.PickupLng, &o.PickupName,
		&o.DropoffLat, &o.DropoffLng, &o.DropoffName, &o.Status, &o.Passengers, &o.Pooling,
		&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &o, nil
}

// FindPendingOrderForRider returns the rider's newest order still
// waiting for a vehicle, or (nil, nil).
func (s *Store) FindPendingOrderForRider(ctx context.Context, riderID string) (*ds.Order, error) {
	uid, err := strconv.ParseInt(riderID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("rider id %q: %w", riderID, err)
	}
	row := s.db.QueryRowContext(ctx,
		selectOrder+` WHERE user_id = ? AND status = ? ORDER BY created_at DESC LIMIT 1`,
		uid, ds.OrderPending)
	return scanOrder(row.Scan)
}

// OrdersForUser returns the user's orders, newest first.
func (s *Store) OrdersForUser(ctx context.Context, userID int64) ([]ds.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		selectOrder+` WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []ds.Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// OrderFilter narrows FilterOrders; zero values apply no condition.
type OrderFilter struct {
	Statuses    []ds.OrderStatus
	UserID      *int64
	DriverID    *int64
	PickupName  string
	DropoffName string
	Page        int
	Size        int
}

// FilterOrders returns one page of orders matching the filter plus the
// total match count, ordered by order id.
func (s *Store) FilterOrders(ctx context.Context, f OrderFilter) (int, []ds.Order, error) {
	var where []string
	var args []any
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			marks[i] = "?"
			args = append(args, st)
		}
		where = append(where, `status IN (`+strings.Join(marks, ", ")+`)`)
	}
	if f.UserID != nil {
		where = append(where, `user_id = ?`)
		args = append(args, *f.UserID)
	}
	if f.DriverID != nil {
		where = append(where, `driver_id = ?`)
		args = append(args, *f.DriverID)
	}
	if f.PickupName != "" {
		where = append(where, `pickup_name LIKE '%' || ? || '%'`)
		args = append(args, f.PickupName)
	}
	if f.DropoffName != "" {
		where = append(where, `dropoff_name LIKE '%' || ? || '%'`)
		args = append(args, f.DropoffName)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+clause, args...).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("count orders: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		selectOrder+clause+` ORDER BY order_id ASC LIMIT ? OFFSET ?`,
		append(args, f.Size, (f.Page-1)*f.Size)...)
	if err != nil {
		return 0, nil, fmt.Errorf("filter orders: %w", err)
	}
	defer rows.Close()

	var out []ds.Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return 0, nil, err
		}
		out = append(out, *o)
	}
	return total, out, rows.Err()
}

// AssignDriverToOrder resolves vehicleName to a driver record and
// points the order at it; the driver's ride count bumps in the same
// transaction.
func (s *Store) AssignDriverToOrder(ctx context.Context, orderID, vehicleName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("assign driver: %w", err)
	}
	defer tx.Rollback()

	var driverID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM drivers WHERE name = ?`, vehicleName).Scan(&driverID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("vehicle %q: %w", vehicleName, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("assign driver: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET driver_id = ?, updated_at = ? WHERE order_id = ?`,
		driverID, time.Now().UTC(), orderID)
	if err != nil {
		return fmt.Errorf("assign driver: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %q: %w", orderID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE drivers SET total_rides = total_rides + 1 WHERE id = ?`, driverID); err != nil {
		return fmt.Errorf("assign driver: %w", err)
	}
	return tx.Commit()
}

// SetOrderStatus transitions an order. Unknown orders return
// ErrNotFound.
func (s *Store) SetOrderStatus(ctx context.Context, orderID string, status ds.OrderStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE order_id = ?`,
		status, time.Now().UTC(), orderID)
	if err != nil {
		return fmt.Errorf("set order status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %q: %w", orderID, ErrNotFound)
	}
	return nil
}

// DeleteOrder removes an order. Unknown orders return ErrNotFound.
func (s *Store) DeleteOrder(ctx context.Context, orderID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE order_id = ?`, orderID)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %q: %w", orderID, ErrNotFound)
	}
	return nil
}
