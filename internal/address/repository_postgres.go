package address

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepository stores addresses in the address table, one row per
// saved address, keyed by user_id.
type PostgresRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

const (
	addressColumns = `id, user_id, label, line, city, state, pincode, latitude, longitude, phone, created_at, updated_at`

	listAddressesQuery = `SELECT ` + addressColumns + ` FROM address WHERE user_id = $1 ORDER BY id`
	getAddressQuery    = `SELECT ` + addressColumns + ` FROM address WHERE user_id = $1 AND id = $2`
	insertAddressQuery = `
		INSERT INTO address (user_id, label, line, city, state, pincode, latitude, longitude, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + addressColumns
	updateAddressQuery = `
		UPDATE address
		SET label = $3, line = $4, city = $5, state = $6, pincode = $7, latitude = $8, longitude = $9, phone = $10, updated_at = $11
		WHERE user_id = $1 AND id = $2
		RETURNING ` + addressColumns
	deleteAddressQuery = `DELETE FROM address WHERE user_id = $1 AND id = $2`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, userID int) ([]Address, error) {
	rows, err := r.db.QueryContext(ctx, listAddressesQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Address, 0)
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Get(ctx context.Context, userID, addressID int) (Address, error) {
	a, err := scanAddress(r.db.QueryRowContext(ctx, getAddressQuery, userID, addressID))
	if errors.Is(err, sql.ErrNoRows) {
		return Address{}, ErrNotFound
	}
	return a, err
}

func (r *PostgresRepository) Create(ctx context.Context, a Address) (Address, error) {
	lat, lng := coordinateArgs(a)
	return scanAddress(r.db.QueryRowContext(ctx, insertAddressQuery,
		a.UserID, a.Label, a.Line, a.City, a.State, a.Pincode, lat, lng, a.Phone, a.CreatedAt, a.UpdatedAt,
	))
}

func (r *PostgresRepository) Update(ctx context.Context, a Address) (Address, error) {
	lat, lng := coordinateArgs(a)
	updated, err := scanAddress(r.db.QueryRowContext(ctx, updateAddressQuery,
		a.UserID, a.AddressID, a.Label, a.Line, a.City, a.State, a.Pincode, lat, lng, a.Phone, a.UpdatedAt,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return Address{}, ErrNotFound
	}
	return updated, err
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, addressID int) error {
	res, err := r.db.ExecContext(ctx, deleteAddressQuery, userID, addressID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func coordinateArgs(a Address) (any, any) {
	if !a.Location().HasCoordinates() {
		return nil, nil
	}
	return a.Latitude, a.Longitude
}

func scanAddress(scanner rowScanner) (Address, error) {
	var (
		a        Address
		lat, lng sql.NullFloat64
	)
	if err := scanner.Scan(
		&a.AddressID,
		&a.UserID,
		&a.Label,
		&a.Line,
		&a.City,
		&a.State,
		&a.Pincode,
		&lat,
		&lng,
		&a.Phone,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return Address{}, err
	}
	if lat.Valid && lng.Valid {
		a.Latitude, a.Longitude = lat.Float64, lng.Float64
	}
	return a, nil
}
