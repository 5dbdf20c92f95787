package cart

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wichananm65/vendor-supply-backend/internal/material"
)

func TestPostgresGet_MissingCartIsEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(getCartQuery)).WithArgs(3).WillReturnRows(sqlmock.NewRows([]string{"items", "updated_at"}))

	c, err := NewPostgresRepository(db).Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, c.UserID)
	assert.Empty(t, c.Items)
}

func TestPostgresMutate_LocksAndWrites(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(ensureCartQuery)).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(lockCartQuery)).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"items", "updated_at"}).
			AddRow([]byte(`[{"materialId":1,"supplierId":5,"name":"Onion","unit":"kg","quantity":2,"price":32.5}]`), now))
	mock.ExpectExec("UPDATE carts").
		WithArgs(sqlmock.AnyArg(), 5, 97.5, sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, err := NewPostgresRepository(db).Mutate(context.Background(), 3, func(c *Cart) error {
		c.Put(material.Material{ID: 1, SupplierID: 5, Name: "Onion", Unit: material.UnitKg, Price: 32.5}, 3, now)
		c.Put(material.Material{ID: 2, SupplierID: 5, Name: "Salt", Unit: material.UnitKg, Price: 0}, 2, now)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, c.TotalItems)
	assert.Equal(t, 97.5, c.TotalAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMutate_ErrorRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(ensureCartQuery)).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(lockCartQuery)).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"items", "updated_at"}).AddRow([]byte(`[]`), time.Now()))
	mock.ExpectRollback()

	boom := errors.New("out of stock")
	_, err = NewPostgresRepository(db).Mutate(context.Background(), 3, func(*Cart) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
