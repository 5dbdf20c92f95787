package material

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/wichananm65/vendor-supply-backend/internal/database"
	"github.com/wichananm65/vendor-supply-backend/internal/geo"
	"github.com/wichananm65/vendor-supply-backend/internal/metrics"
)

type PostgresRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

const (
	materialColumns = `id, name, description, category, price, quantity, unit, min_order_quantity, supplier_id, latitude, longitude, address, city, state, pincode, is_available, created_at, updated_at`

	getMaterialByIDQuery   = `SELECT ` + materialColumns + ` FROM materials WHERE id = $1`
	getMaterialsByIDsQuery = `SELECT ` + materialColumns + ` FROM materials WHERE id = ANY($1)`

	insertMaterialQuery = `
		INSERT INTO materials (name, description, category, price, quantity, unit, min_order_quantity, supplier_id, latitude, longitude, address, city, state, pincode, is_available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id
	`
	updateMaterialQuery = `
		UPDATE materials
		SET name = $1,
			description = $2,
			category = $3,
			price = $4,
			quantity = $5,
			unit = $6,
			min_order_quantity = $7,
			latitude = $8,
			longitude = $9,
			address = $10,
			city = $11,
			state = $12,
			pincode = $13,
			is_available = $14,
			updated_at = $15
		WHERE id = $16
	`
	setAvailabilityQuery = `UPDATE materials SET is_available = $1, updated_at = now() WHERE id = $2`
	deleteMaterialQuery  = `DELETE FROM materials WHERE id = $1`

	// the quantity guard makes the decrement a compare-and-set
	reserveStockQuery = `
		UPDATE materials
		SET quantity = quantity - $1, updated_at = now()
		WHERE id = $2 AND is_available AND quantity >= $1
		RETURNING quantity
	`
	releaseStockQuery = `
		UPDATE materials
		SET quantity = quantity + $1, updated_at = now()
		WHERE id = $2
		RETURNING quantity
	`
	stockStateQuery = `SELECT name, quantity, is_available FROM materials WHERE id = $1`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, filter Filter) ([]Material, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, vals ...any) {
		for _, v := range vals {
			args = append(args, v)
			clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(args)), 1)
		}
		where = append(where, clause)
	}

	if filter.Category != "" {
		add("category = ?", string(filter.Category))
	}
	if filter.SupplierID != 0 {
		add("supplier_id = ?", filter.SupplierID)
	}
	if filter.City != "" {
		add("lower(city) = lower(?)", filter.City)
	}
	if filter.Available != nil {
		add("is_available = ?", *filter.Available)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + s + "%"
		add("(name ILIKE ? OR description ILIKE ?)", pattern, pattern)
	}

	query := `SELECT ` + materialColumns + ` FROM materials`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	materials := make([]Material, 0)
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (Material, error) {
	m, err := scanMaterial(r.db.QueryRowContext(ctx, getMaterialByIDQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Material{}, ErrNotFound
		}
		return Material{}, err
	}
	return m, nil
}

func (r *PostgresRepository) GetByIDs(ctx context.Context, ids []int) (map[int]Material, error) {
	out := make(map[int]Material, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ids64 := make([]int64, len(ids))
	for i, id := range ids {
		ids64[i] = int64(id)
	}

	rows, err := r.db.QueryContext(ctx, getMaterialsByIDsQuery, pq.Array(ids64))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		out[m.ID] = m
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Create(ctx context.Context, m Material) (Material, error) {
	lat, lng := coordinateArgs(m.Location)
	err := r.db.QueryRowContext(ctx,
		insertMaterialQuery,
		m.Name,
		m.Description,
		string(m.Category),
		m.Price,
		m.Quantity,
		string(m.Unit),
		m.MinOrderQuantity,
		m.SupplierID,
		lat,
		lng,
		m.Location.Address,
		m.Location.City,
		m.Location.State,
		m.Location.Pincode,
		m.IsAvailable,
		m.CreatedAt,
		m.UpdatedAt,
	).Scan(&m.ID)
	if err != nil {
		return Material{}, err
	}
	return m, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id int, m Material) (Material, error) {
	lat, lng := coordinateArgs(m.Location)
	result, err := r.db.ExecContext(ctx,
		updateMaterialQuery,
		m.Name,
		m.Description,
		string(m.Category),
		m.Price,
		m.Quantity,
		string(m.Unit),
		m.MinOrderQuantity,
		lat,
		lng,
		m.Location.Address,
		m.Location.City,
		m.Location.State,
		m.Location.Pincode,
		m.IsAvailable,
		m.UpdatedAt,
		id,
	)
	if err != nil {
		return Material{}, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return Material{}, err
	}
	if affected == 0 {
		return Material{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *PostgresRepository) SetAvailability(ctx context.Context, id int, available bool) (Material, error) {
	result, err := r.db.ExecContext(ctx, setAvailabilityQuery, available, id)
	if err != nil {
		return Material{}, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return Material{}, err
	}
	if affected == 0 {
		return Material{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, deleteMaterialQuery, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Reserve(ctx context.Context, lines []StockLine) error {
	var levels map[int]int
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		levels, err = ReserveTx(ctx, tx, lines)
		return err
	})
	if err != nil {
		return err
	}
	PublishLevels(levels)
	return nil
}

func (r *PostgresRepository) Release(ctx context.Context, lines []StockLine) error {
	var levels map[int]int
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		levels, err = ReleaseTx(ctx, tx, lines)
		return err
	})
	if err != nil {
		return err
	}
	PublishLevels(levels)
	return nil
}

// ReserveTx decrements every line inside tx and returns the remaining
// quantities. On the first line that cannot be covered it returns
// ErrNotFound or a *StockError; the caller must roll tx back.
func ReserveTx(ctx context.Context, tx *sql.Tx, lines []StockLine) (map[int]int, error) {
	levels := make(map[int]int, len(lines))
	for _, l := range MergeLines(lines) {
		var remaining int
		err := tx.QueryRowContext(ctx, reserveStockQuery, l.Quantity, l.MaterialID).Scan(&remaining)
		if err == nil {
			levels[l.MaterialID] = remaining
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reserve material %d: %w", l.MaterialID, err)
		}

		var (
			name      string
			quantity  int
			available bool
		)
		if err := tx.QueryRowContext(ctx, stockStateQuery, l.MaterialID).Scan(&name, &quantity, &available); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if !available {
			quantity = 0
		}
		return nil, &StockError{MaterialID: l.MaterialID, Name: name, Available: quantity}
	}
	return levels, nil
}

// ReleaseTx increments every line inside tx. Materials deleted since the
// reservation are skipped.
func ReleaseTx(ctx context.Context, tx *sql.Tx, lines []StockLine) (map[int]int, error) {
	levels := make(map[int]int, len(lines))
	for _, l := range MergeLines(lines) {
		var remaining int
		err := tx.QueryRowContext(ctx, releaseStockQuery, l.Quantity, l.MaterialID).Scan(&remaining)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("release material %d: %w", l.MaterialID, err)
		}
		levels[l.MaterialID] = remaining
	}
	return levels, nil
}

// PublishLevels exports committed stock levels as metrics.
func PublishLevels(levels map[int]int) {
	for id, qty := range levels {
		metrics.RecordStock(id, qty)
	}
}

func coordinateArgs(loc geo.Location) (any, any) {
	if !loc.HasCoordinates() {
		return nil, nil
	}
	return loc.Latitude, loc.Longitude
}

func scanMaterial(scanner rowScanner) (Material, error) {
	m := Material{}
	var category, unit string
	var lat, lng sql.NullFloat64

	if err := scanner.Scan(
		&m.ID,
		&m.Name,
		&m.Description,
		&category,
		&m.Price,
		&m.Quantity,
		&unit,
		&m.MinOrderQuantity,
		&m.SupplierID,
		&lat,
		&lng,
		&m.Location.Address,
		&m.Location.City,
		&m.Location.State,
		&m.Location.Pincode,
		&m.IsAvailable,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return Material{}, err
	}

	m.Category = Category(category)
	m.Unit = Unit(unit)
	if lat.Valid && lng.Valid {
		m.Location.Latitude = lat.Float64
		m.Location.Longitude = lng.Float64
	}
	return m, nil
}
