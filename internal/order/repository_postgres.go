package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/wichananm65/vendor-supply-backend/internal/database"
	"github.com/wichananm65/vendor-supply-backend/internal/material"
)

type PostgresRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

const (
	orderColumns = `id, order_number, vendor_id, items, total_items, subtotal, delivery_fee, discount, taxes, total_amount, status, delivery_address, payment, notes, tracking_number, estimated_delivery, actual_delivery, cancelled_at, cancelled_by, cancel_reason, tracking, created_at, updated_at`

	getOrderByIDQuery = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	orderExistsQuery  = `SELECT status FROM orders WHERE id = $1`

	insertOrderQuery = `
		INSERT INTO orders (order_number, vendor_id, supplier_ids, items, total_items, subtotal, delivery_fee, discount, taxes, total_amount, status, delivery_address, payment, notes, tracking, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id
	`
	// the status guard makes the update a compare-and-set
	updateStatusQuery = `
		UPDATE orders
		SET status = $1,
			tracking = tracking || $2::jsonb,
			estimated_delivery = COALESCE($3, estimated_delivery),
			tracking_number = CASE WHEN $4 = '' THEN tracking_number ELSE $4 END,
			actual_delivery = COALESCE(actual_delivery, $5),
			updated_at = $6
		WHERE id = $7 AND status = $8
		RETURNING ` + orderColumns
	cancelOrderQuery = `
		UPDATE orders
		SET status = 'cancelled',
			cancelled_at = $1,
			cancelled_by = $2,
			cancel_reason = $3,
			tracking = tracking || $4::jsonb,
			updated_at = $1
		WHERE id = $5 AND status = ANY($6)
		RETURNING ` + orderColumns
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create decrements stock and inserts the order in one transaction, so a
// failed line or a clashing order number leaves every quantity untouched.
func (r *PostgresRepository) Create(ctx context.Context, o Order) (Order, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return Order{}, fmt.Errorf("encode order items: %w", err)
	}
	address, err := json.Marshal(o.DeliveryAddress)
	if err != nil {
		return Order{}, fmt.Errorf("encode delivery address: %w", err)
	}
	payment, err := json.Marshal(o.Payment)
	if err != nil {
		return Order{}, fmt.Errorf("encode payment: %w", err)
	}
	tracking, err := json.Marshal(o.Tracking)
	if err != nil {
		return Order{}, fmt.Errorf("encode tracking: %w", err)
	}

	var levels map[int]int
	err = database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		levels, err = material.ReserveTx(ctx, tx, o.StockLines())
		if err != nil {
			return err
		}

		err = tx.QueryRowContext(ctx, insertOrderQuery,
			o.OrderNumber,
			o.VendorID,
			pq.Array(int64s(o.SupplierIDs())),
			items,
			o.TotalItems,
			o.Subtotal,
			o.DeliveryFee,
			o.Discount,
			o.Taxes,
			o.TotalAmount,
			string(o.Status),
			address,
			payment,
			o.Notes,
			tracking,
			o.CreatedAt,
			o.UpdatedAt,
		).Scan(&o.ID)
		if database.IsUniqueViolation(err) {
			return ErrDuplicateNumber
		}
		return err
	})
	if err != nil {
		return Order{}, err
	}

	material.PublishLevels(levels)
	return o, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, getOrderByIDQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	return o, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter Filter) ([]Order, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if filter.VendorID != 0 {
		add("vendor_id = $%d", filter.VendorID)
	}
	if filter.SupplierID != 0 {
		add("$%d = ANY(supplier_ids)", filter.SupplierID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
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

	out := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id int, u StatusUpdate) (Order, error) {
	event, err := json.Marshal([]TrackingEvent{u.event()})
	if err != nil {
		return Order{}, fmt.Errorf("encode tracking event: %w", err)
	}

	var delivered any
	if u.To == StatusDelivered {
		delivered = u.At
	}

	o, err := scanOrder(r.db.QueryRowContext(ctx, updateStatusQuery,
		string(u.To),
		event,
		nullTime(u.EstimatedDelivery),
		u.TrackingNumber,
		delivered,
		u.At,
		id,
		string(u.From),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, r.missOrMoved(ctx, r.db, id, ErrStatusChanged)
	}
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

// Cancel flips the status and restores stock in one transaction. Only the
// caller whose conditional update matched restores quantities.
func (r *PostgresRepository) Cancel(ctx context.Context, id int, c Cancellation) (Order, error) {
	event, err := json.Marshal([]TrackingEvent{c.event()})
	if err != nil {
		return Order{}, fmt.Errorf("encode tracking event: %w", err)
	}

	var (
		out    Order
		levels map[int]int
	)
	err = database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		o, err := scanOrder(tx.QueryRowContext(ctx, cancelOrderQuery,
			c.At,
			c.By,
			c.Reason,
			event,
			id,
			pq.Array(cancellableStatuses()),
		))
		if errors.Is(err, sql.ErrNoRows) {
			return r.missOrMoved(ctx, tx, id, ErrNotCancellable)
		}
		if err != nil {
			return err
		}

		levels, err = material.ReleaseTx(ctx, tx, o.StockLines())
		if err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	material.PublishLevels(levels)
	return out, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// missOrMoved tells a missing order apart from one whose status no longer
// matches.
func (r *PostgresRepository) missOrMoved(ctx context.Context, q querier, id int, moved error) error {
	var status string
	err := q.QueryRowContext(ctx, orderExistsQuery, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return moved
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func int64s(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func scanOrder(scanner rowScanner) (Order, error) {
	o := Order{}
	var (
		status                            string
		items, address, payment, tracking []byte
		estimated, delivered, cancelledAt sql.NullTime
		cancelledBy                       sql.NullInt64
	)

	if err := scanner.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.VendorID,
		&items,
		&o.TotalItems,
		&o.Subtotal,
		&o.DeliveryFee,
		&o.Discount,
		&o.Taxes,
		&o.TotalAmount,
		&status,
		&address,
		&payment,
		&o.Notes,
		&o.TrackingNumber,
		&estimated,
		&delivered,
		&cancelledAt,
		&cancelledBy,
		&o.CancelReason,
		&tracking,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return Order{}, err
	}

	o.Status = Status(status)
	if err := decodeJSON(items, &o.Items, "items"); err != nil {
		return Order{}, err
	}
	if err := decodeJSON(address, &o.DeliveryAddress, "delivery address"); err != nil {
		return Order{}, err
	}
	if err := decodeJSON(payment, &o.Payment, "payment"); err != nil {
		return Order{}, err
	}
	if err := decodeJSON(tracking, &o.Tracking, "tracking"); err != nil {
		return Order{}, err
	}
	if o.Items == nil {
		o.Items = []Item{}
	}
	if o.Tracking == nil {
		o.Tracking = []TrackingEvent{}
	}

	if estimated.Valid {
		o.EstimatedDelivery = &estimated.Time
	}
	if delivered.Valid {
		o.ActualDelivery = &delivered.Time
	}
	if cancelledAt.Valid {
		o.CancelledAt = &cancelledAt.Time
	}
	if cancelledBy.Valid {
		by := int(cancelledBy.Int64)
		o.CancelledBy = &by
	}
	return o, nil
}

func decodeJSON(raw []byte, dst any, what string) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode order %s: %w", what, err)
	}
	return nil
}
