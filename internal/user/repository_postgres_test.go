package user

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wichananm65/vendor-supply-backend/internal/geo"
)

var userCols = []string{"id", "email", "password", "name", "phone", "role", "business_name", "latitude", "longitude", "address", "city", "state", "pincode", "created_at", "updated_at"}

func TestPostgresRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(getUserByIDQuery)).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(4, "s@example.com", "hash", "Fresh Farms", "99", "supplier", "Fresh Farms Pvt", 19.07, 72.87, "Dadar", "Mumbai", "MH", "400014", now, now))

	repo := NewPostgresRepository(db)
	u, err := repo.GetByID(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, RoleSupplier, u.Role)
	assert.True(t, u.Location.HasCoordinates())
	assert.Equal(t, "400014", u.Location.Pincode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(getUserByIDQuery)).WithArgs(9).WillReturnRows(sqlmock.NewRows(userCols))

	_, err = NewPostgresRepository(db).GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepository_CreateDuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO users").WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err = NewPostgresRepository(db).Create(context.Background(), User{Email: "dup@example.com", Role: RoleVendor})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestPostgresRepository_ListSuppliersWithBox(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	box := geo.BoundingBox(geo.Point{Lat: 19, Lng: 72.8}, 10)
	now := time.Now()
	mock.ExpectQuery(`FROM users WHERE role = 'supplier' AND lower\(city\) = lower\(\$1\) AND latitude BETWEEN \$2 AND \$3 AND longitude BETWEEN \$4 AND \$5`).
		WithArgs("Mumbai", box.MinLat, box.MaxLat, box.MinLng, box.MaxLng).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(2, "a@example.com", "h", "A", "", "supplier", "", nil, nil, "", "Mumbai", "", "400001", now, now))

	users, err := NewPostgresRepository(db).ListSuppliers(context.Background(), SupplierFilter{City: "Mumbai", Box: &box})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.False(t, users[0].Location.HasCoordinates())
	assert.NoError(t, mock.ExpectationsWereMet())
}
