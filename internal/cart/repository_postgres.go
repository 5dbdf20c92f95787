package cart

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wichananm65/vendor-supply-backend/internal/database"
)

type PostgresRepository struct {
	db *sql.DB
}

const (
	getCartQuery    = `SELECT items, updated_at FROM carts WHERE user_id = $1`
	ensureCartQuery = `INSERT INTO carts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`
	lockCartQuery   = `SELECT items, updated_at FROM carts WHERE user_id = $1 FOR UPDATE`
	updateCartQuery = `
		UPDATE carts
		SET items = $1, total_items = $2, total_amount = $3, updated_at = $4
		WHERE user_id = $5
	`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, userID int) (Cart, error) {
	c, err := scanCart(r.db.QueryRowContext(ctx, getCartQuery, userID), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return newCart(userID), nil
	}
	return c, err
}

func (r *PostgresRepository) Mutate(ctx context.Context, userID int, fn func(*Cart) error) (Cart, error) {
	var out Cart
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, ensureCartQuery, userID); err != nil {
			return err
		}

		c, err := scanCart(tx.QueryRowContext(ctx, lockCartQuery, userID), userID)
		if err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}

		items, err := json.Marshal(c.Items)
		if err != nil {
			return fmt.Errorf("encode cart items: %w", err)
		}
		if _, err := tx.ExecContext(ctx, updateCartQuery, items, c.TotalItems, c.TotalAmount, c.UpdatedAt, userID); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return Cart{}, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCart(scanner rowScanner, userID int) (Cart, error) {
	c := newCart(userID)
	var raw []byte
	if err := scanner.Scan(&raw, &c.UpdatedAt); err != nil {
		return Cart{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &c.Items); err != nil {
			return Cart{}, fmt.Errorf("decode cart items: %w", err)
		}
	}
	if c.Items == nil {
		c.Items = []Item{}
	}
	c.Recalculate()
	return c, nil
}
