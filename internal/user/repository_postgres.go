package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/wichananm65/vendor-supply-backend/internal/database"
	"github.com/wichananm65/vendor-supply-backend/internal/geo"
)

type PostgresRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

const (
	userColumns = `id, email, password, name, phone, role, business_name, latitude, longitude, address, city, state, pincode, created_at, updated_at`

	getUserByIDQuery    = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	getUserByEmailQuery = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	insertUserQuery = `
		INSERT INTO users (email, password, name, phone, role, business_name, latitude, longitude, address, city, state, pincode, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`
	updateUserQuery = `
		UPDATE users
		SET name = $1,
			phone = $2,
			business_name = $3,
			latitude = $4,
			longitude = $5,
			address = $6,
			city = $7,
			state = $8,
			pincode = $9,
			updated_at = $10
		WHERE id = $11
	`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, getUserByIDQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}

	return user, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, getUserByEmailQuery, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}

	return user, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user User) (User, error) {
	lat, lng := coordinateArgs(user.Location)
	err := r.db.QueryRowContext(ctx,
		insertUserQuery,
		user.Email,
		user.Password,
		user.Name,
		user.Phone,
		string(user.Role),
		user.BusinessName,
		lat,
		lng,
		user.Location.Address,
		user.Location.City,
		user.Location.State,
		user.Location.Pincode,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return User{}, ErrEmailExists
		}
		return User{}, err
	}

	return user, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id int, userUpdate User) (User, error) {
	lat, lng := coordinateArgs(userUpdate.Location)
	result, err := r.db.ExecContext(ctx,
		updateUserQuery,
		userUpdate.Name,
		userUpdate.Phone,
		userUpdate.BusinessName,
		lat,
		lng,
		userUpdate.Location.Address,
		userUpdate.Location.City,
		userUpdate.Location.State,
		userUpdate.Location.Pincode,
		userUpdate.UpdatedAt,
		id,
	)
	if err != nil {
		return User{}, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return User{}, err
	}
	if affected == 0 {
		return User{}, ErrNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *PostgresRepository) ListSuppliers(ctx context.Context, filter SupplierFilter) ([]User, error) {
	var (
		where = []string{"role = 'supplier'"}
		args  []any
	)
	if filter.City != "" {
		args = append(args, filter.City)
		where = append(where, fmt.Sprintf("lower(city) = lower($%d)", len(args)))
	}
	if filter.Box != nil {
		args = append(args, filter.Box.MinLat, filter.Box.MaxLat, filter.Box.MinLng, filter.Box.MaxLng)
		n := len(args)
		where = append(where, fmt.Sprintf(
			"latitude BETWEEN $%d AND $%d AND longitude BETWEEN $%d AND $%d", n-3, n-2, n-1, n))
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// coordinateArgs stores missing coordinates as NULL.
func coordinateArgs(loc geo.Location) (any, any) {
	if !loc.HasCoordinates() {
		return nil, nil
	}
	return loc.Latitude, loc.Longitude
}

func scanUser(scanner rowScanner) (User, error) {
	user := User{}
	var role string
	var lat, lng sql.NullFloat64

	if err := scanner.Scan(
		&user.ID,
		&user.Email,
		&user.Password,
		&user.Name,
		&user.Phone,
		&role,
		&user.BusinessName,
		&lat,
		&lng,
		&user.Location.Address,
		&user.Location.City,
		&user.Location.State,
		&user.Location.Pincode,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return User{}, err
	}

	user.Role = Role(role)
	if lat.Valid && lng.Valid {
		user.Location.Latitude = lat.Float64
		user.Location.Longitude = lng.Float64
	}

	return user, nil
}
