package order

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"pgregory.net/rapid"

	"github.com/wichananm65/vendor-supply-backend/internal/address"
	"github.com/wichananm65/vendor-supply-backend/internal/apperr"
	"github.com/wichananm65/vendor-supply-backend/internal/cart"
	"github.com/wichananm65/vendor-supply-backend/internal/geo"
	"github.com/wichananm65/vendor-supply-backend/internal/material"
	"github.com/wichananm65/vendor-supply-backend/internal/user"
)

var (
	vendor      = user.Identity{UserID: 7, Role: user.RoleVendor}
	otherVendor = user.Identity{UserID: 8, Role: user.RoleVendor}
	supplierA   = user.Identity{UserID: 5, Role: user.RoleSupplier}
	supplierB   = user.Identity{UserID: 6, Role: user.RoleSupplier}
	outsider    = user.Identity{UserID: 9, Role: user.RoleSupplier}

	mumbai = geo.Location{Latitude: 19.0760, Longitude: 72.8777, City: "Mumbai", Pincode: "400001"}
)

type fixture struct {
	materials *material.InMemoryRepository
	carts     *cart.Service
	repo      *InMemoryRepository
	svc       *Service
}

func newFixture() *fixture {
	materials := material.NewInMemoryRepository([]material.Material{
		{ID: 1, Name: "Potato", Category: material.CategoryVegetables, Price: 22.5, Quantity: 100, Unit: material.UnitKg, MinOrderQuantity: 1, SupplierID: 5, Location: mumbai, IsAvailable: true},
		{ID: 2, Name: "Tomato", Category: material.CategoryVegetables, Price: 40, Quantity: 50, Unit: material.UnitKg, MinOrderQuantity: 1, SupplierID: 6, Location: mumbai, IsAvailable: true},
		{ID: 3, Name: "Rice", Category: material.CategoryGrains, Price: 61.25, Quantity: 1000, Unit: material.UnitKg, MinOrderQuantity: 1, SupplierID: 5, IsAvailable: true},
		{ID: 4, Name: "Paper Plates", Category: material.CategoryPackaging, Price: 0.35, Quantity: 5000, Unit: material.UnitPiece, MinOrderQuantity: 100, SupplierID: 6, IsAvailable: true},
	})
	catalog := material.NewService(materials, nil)
	carts := cart.NewService(cart.NewInMemoryRepository(), catalog)
	repo := NewInMemoryRepository(materials)
	addresses := address.NewService(address.NewInMemoryRepository(map[int][]address.Address{
		7: {{AddressID: 1, UserID: 7, Label: "Stall", Line: "Stall 9, Dadar Market", City: "Mumbai", Pincode: "400014", Latitude: 19.0176, Longitude: 72.8562}},
	}))

	svc := NewService(Deps{
		Repo:        repo,
		Catalog:     catalog,
		Carts:       carts,
		Addresses:   addresses,
		Sequencer:   NewMemorySequencer(),
		DeliveryFee: 50,
	})
	svc.now = func() time.Time { return time.Date(2024, time.March, 7, 10, 0, 0, 0, time.UTC) }
	return &fixture{materials: materials, carts: carts, repo: repo, svc: svc}
}

func (f *fixture) quantity(t require.TestingT, id int) int {
	m, err := f.materials.GetByID(context.Background(), id)
	require.NoError(t, err)
	return m.Quantity
}

func checkout(lines ...LineInput) CreateInput {
	return CreateInput{
		Materials:       lines,
		DeliveryAddress: DeliveryAddress{Address: "Stall 4, Dadar Market", City: "Mumbai"},
		PaymentMethod:   "cash",
	}
}

func TestCreate_SnapshotsItemsAndTotals(t *testing.T) {
	f := newFixture()

	o, err := f.svc.Create(context.Background(), vendor, checkout(
		LineInput{MaterialID: 1, Quantity: 10},
		LineInput{MaterialID: 2, Quantity: 3},
		LineInput{MaterialID: 1, Quantity: 2},
	))
	require.NoError(t, err)

	assert.Equal(t, "IBP2403070001", o.OrderNumber)
	assert.Equal(t, StatusPending, o.Status)
	require.Len(t, o.Items, 2)
	assert.Equal(t, 12, o.Items[0].Quantity)
	assert.Equal(t, 270.0, o.Items[0].TotalPrice)
	assert.Equal(t, 5, o.Items[0].SupplierID)
	assert.Equal(t, 15, o.TotalItems)
	assert.Equal(t, 390.0, o.Subtotal)
	assert.Equal(t, 50.0, o.DeliveryFee)
	assert.Equal(t, 440.0, o.TotalAmount)
	assert.Equal(t, Payment{Method: "cash", Status: "pending", Amount: 440}, o.Payment)
	require.Len(t, o.Tracking, 1)
	assert.Equal(t, StatusPending, o.Tracking[0].Status)

	assert.Equal(t, 88, f.quantity(t, 1))
	assert.Equal(t, 47, f.quantity(t, 2))
	assert.ElementsMatch(t, []int{5, 6}, o.SupplierIDs())
}

func TestCreate_ItemsAliasAndSnapshotIsImmutable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	in := checkout()
	in.Items = []LineInput{{MaterialID: 2, Quantity: 1}}
	o, err := f.svc.Create(ctx, vendor, in)
	require.NoError(t, err)
	require.Len(t, o.Items, 1)

	m, _ := f.materials.GetByID(ctx, 2)
	m.Price = 99
	_, err = f.materials.Update(ctx, 2, m)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, vendor, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 40.0, got.Items[0].Price)
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, vendor, checkout(LineInput{MaterialID: 1, Quantity: 101}))
	require.Error(t, err)
	assert.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 100, *appErr.Available)
	assert.Equal(t, 100, f.quantity(t, 1))

	_, err = f.svc.Create(ctx, vendor, checkout(LineInput{MaterialID: 42, Quantity: 1}))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.svc.Create(ctx, vendor, checkout(LineInput{MaterialID: 4, Quantity: 10}))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.Create(ctx, vendor, checkout())
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	in := checkout(LineInput{MaterialID: 1, Quantity: 1})
	in.PaymentMethod = "barter"
	_, err = f.svc.Create(ctx, vendor, in)
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "paymentMethod")

	in = checkout(LineInput{MaterialID: 1, Quantity: 1})
	in.DeliveryAddress = DeliveryAddress{}
	_, err = f.svc.Create(ctx, vendor, in)
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "deliveryAddress")

	_, err = f.svc.Create(ctx, supplierA, checkout(LineInput{MaterialID: 1, Quantity: 1}))
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	orders, _ := f.repo.List(ctx, Filter{})
	assert.Empty(t, orders)
	assert.Equal(t, 100, f.quantity(t, 1))
}

func TestCreate_DeliveryFeeByDistance(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	near := checkout(LineInput{MaterialID: 1, Quantity: 1})
	near.DeliveryAddress.Latitude, near.DeliveryAddress.Longitude = 19.0176, 72.8562 // Dadar, ~7 km
	o, err := f.svc.Create(ctx, vendor, near)
	require.NoError(t, err)
	assert.Equal(t, 50.0, o.DeliveryFee)

	far := checkout(LineInput{MaterialID: 2, Quantity: 1})
	far.DeliveryAddress.Latitude, far.DeliveryAddress.Longitude = 18.5204, 73.8567 // Pune
	o, err = f.svc.Create(ctx, vendor, far)
	require.NoError(t, err)
	assert.Equal(t, 150.0, o.DeliveryFee)

	// rice has no supplier location, so the flat fee applies
	f.svc.deliveryFee = 65
	unknown := checkout(LineInput{MaterialID: 3, Quantity: 1})
	unknown.DeliveryAddress.Latitude, unknown.DeliveryAddress.Longitude = 19.0176, 72.8562
	o, err = f.svc.Create(ctx, vendor, unknown)
	require.NoError(t, err)
	assert.Equal(t, 65.0, o.DeliveryFee)
	assert.Equal(t, 126.25, o.TotalAmount)
}

func TestCreate_ClearsCart(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, vendor.UserID, 1, 5)
	require.NoError(t, err)

	in := checkout(LineInput{MaterialID: 1, Quantity: 5})
	in.ClearCart = true
	_, err = f.svc.Create(ctx, vendor, in)
	require.NoError(t, err)

	c, err := f.carts.Get(ctx, vendor.UserID)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Zero(t, c.TotalAmount)
}

func TestCreate_SavedAddress(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	in := CreateInput{
		Materials:     []LineInput{{MaterialID: 2, Quantity: 2}},
		AddressID:     1,
		PaymentMethod: "online",
	}
	o, err := f.svc.Create(ctx, vendor, in)
	require.NoError(t, err)
	assert.Equal(t, "Stall 9, Dadar Market", o.DeliveryAddress.Address)
	assert.Equal(t, "400014", o.DeliveryAddress.Pincode)
	// Dadar is about 7 km from the supplier
	assert.Equal(t, 50.0, o.DeliveryFee)

	_, err = f.svc.Create(ctx, otherVendor, in)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

type scriptedSequencer struct {
	mu     sync.Mutex
	values []int
}

func (s *scriptedSequencer) Next(context.Context, string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.values[0]
	s.values = s.values[1:]
	return n, nil
}

func TestCreate_RetriesTakenOrderNumber(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.svc.seq = &scriptedSequencer{values: []int{1, 1, 2, 2, 2, 2}}

	first, err := f.svc.Create(ctx, vendor, checkout(LineInput{MaterialID: 1, Quantity: 1}))
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, vendor, checkout(LineInput{MaterialID: 1, Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, "IBP2403070001", first.OrderNumber)
	assert.Equal(t, "IBP2403070002", second.OrderNumber)

	_, err = f.svc.Create(ctx, vendor, checkout(LineInput{MaterialID: 1, Quantity: 1}))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, 98, f.quantity(t, 1))
}

func TestCreate_ConcurrentOverOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newFixture()
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), vendor, checkout(LineInput{MaterialID: 1, Quantity: 60}))
			switch {
			case err == nil:
				succeeded.Add(1)
			case apperr.Is(err, apperr.KindInsufficientStock):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, succeeded.Load())
	assert.EqualValues(t, 1, rejected.Load())
	assert.Equal(t, 40, f.quantity(t, 1))
}

func TestCreate_UniqueOrderNumbersUnderConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newFixture()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[string]bool{}
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := f.svc.Create(context.Background(), vendor, checkout(LineInput{MaterialID: 3, Quantity: 1}))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, numbers[o.OrderNumber], "duplicate %s", o.OrderNumber)
			numbers[o.OrderNumber] = true
		}()
	}
	wg.Wait()

	assert.Len(t, numbers, 50)
	for n := range numbers {
		assert.Regexp(t, `^IBP240307\d{4}$`, n)
	}
	assert.Equal(t, 950, f.quantity(t, 3))
}

func TestCancel_RestoresStock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o, err := f.svc.Create(ctx, vendor, checkout(LineInput{MaterialID: 1, Quantity: 20}))
	require.NoError(t, err)
	assert.Equal(t, 80, f.quantity(t, 1))

	cancelled, err := f.svc.Cancel(ctx, vendor, o.ID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, 100, f.quantity(t, 1))
	assert.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, vendor.UserID, *cancelled.CancelledBy)
	assert.Equal(t, "changed my mind", cancelled.CancelReason)
	require.Len(t, cancelled.Tracking, 2)
	assert.Equal(t, StatusCancelled, cancelled.Tracking[1].Status)

	_, err = f.svc.Cancel(ctx, vendor, o.ID, "")
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
	assert.Equal(t, 100, f.quantity(t, 1))
}

func TestCancel_Guards(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o, err := f.svc.Create(ctx, vendor, checkout(LineInput{MaterialID: 1, Quantity: 5}))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, otherVendor, o.ID, "")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = f.svc.Cancel(ctx, supplierB, o.ID, "")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = f.svc.Cancel(ctx, vendor, 999, "")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.svc.UpdateStatus(ctx, supplierA, o.ID, StatusInput{Status: StatusShipped})
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, vendor, o.ID, "")
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
	assert.Equal(t, 95, f.quantity(t, 1))

	// an involved supplier may cancel before shipping
	o, err = f.svc.Create(ctx, vendor, checkout(LineInput{MaterialID: 1, Quantity: 5}))
	require.NoError(t, err)
	cancelled, err := f.svc.UpdateStatus(ctx, supplierA, o.ID, StatusInput{Status: StatusCancelled, Notes: "out of stock"})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, "out of stock", cancelled.CancelReason)
	assert.Equal(t, 95, f.quantity(t, 1))
}

func TestCancel_ConcurrentRestoresOnce(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newFixture()
	o, err := f.svc.Create(context.Background(), vendor, checkout(LineInput{MaterialID: 1, Quantity: 30}))
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Cancel(context.Background(), vendor, o.ID, ""); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, succeeded.Load())
	assert.Equal(t, 100, f.quantity(t, 1))
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o, err := f.svc.Create(ctx, vendor, checkout(LineInput{MaterialID: 1, Quantity: 5}))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, vendor, o.ID, StatusInput{Status: StatusConfirmed})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = f.svc.UpdateStatus(ctx, supplierB, o.ID, StatusInput{Status: StatusConfirmed})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.svc.UpdateStatus(ctx, supplierA, o.ID, StatusInput{Status: "teleported"})
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Extra["validStatuses"], "out_for_delivery")

	eta := time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC)
	o, err = f.svc.UpdateStatus(ctx, supplierA, o.ID, StatusInput{
		Status:            StatusConfirmed,
		EstimatedDelivery: &eta,
		TrackingNumber:    "TRK-1",
		Location:          "Vashi APMC",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, o.Status)
	assert.Equal(t, "TRK-1", o.TrackingNumber)
	require.NotNil(t, o.EstimatedDelivery)
	assert.True(t, eta.Equal(*o.EstimatedDelivery))
	assert.Equal(t, "Vashi APMC", o.Tracking[1].Location)

	_, err = f.svc.UpdateStatus(ctx, supplierA, o.ID, StatusInput{Status: StatusPending})
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))

	o, err = f.svc.UpdateStatus(ctx, supplierA, o.ID, StatusInput{Status: StatusDelivered})
	require.NoError(t, err)
	require.NotNil(t, o.ActualDelivery)
	assert.Equal(t, "TRK-1", o.TrackingNumber)
	assert.Len(t, o.Tracking, 3)

	_, err = f.svc.UpdateStatus(ctx, supplierA, o.ID, StatusInput{Status: StatusReturned})
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
}

func TestGetAndList_PartiesOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	mixed, err := f.svc.Create(ctx, vendor, checkout(LineInput{MaterialID: 1, Quantity: 1}, LineInput{MaterialID: 2, Quantity: 1}))
	require.NoError(t, err)
	onlyA, err := f.svc.Create(ctx, vendor, checkout(LineInput{MaterialID: 3, Quantity: 1}))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, otherVendor, checkout(LineInput{MaterialID: 3, Quantity: 1}))
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, supplierB, mixed.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, supplierB, onlyA.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = f.svc.Get(ctx, otherVendor, mixed.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = f.svc.Get(ctx, outsider, 999)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	mine, err := f.svc.List(ctx, vendor, Filter{VendorID: 8})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	forB, err := f.svc.List(ctx, supplierB, Filter{})
	require.NoError(t, err)
	require.Len(t, forB, 1)
	assert.Equal(t, mixed.ID, forB[0].ID)

	forA, err := f.svc.List(ctx, supplierA, Filter{Status: StatusPending})
	require.NoError(t, err)
	assert.Len(t, forA, 3)

	_, err = f.svc.List(ctx, vendor, Filter{Status: "lost"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestList_PagesAfterCappingLimit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for i := 0; i < 150; i++ {
		_, err := f.svc.Create(ctx, vendor, checkout(LineInput{MaterialID: 3, Quantity: 1}))
		require.NoError(t, err)
	}

	first, err := f.svc.List(ctx, vendor, Filter{Page: 1, Limit: 500})
	require.NoError(t, err)
	require.Len(t, first, maxPageSize)
	assert.Equal(t, 150, first[0].ID)
	assert.Equal(t, 51, first[len(first)-1].ID)

	second, err := f.svc.List(ctx, vendor, Filter{Page: 2, Limit: 500})
	require.NoError(t, err)
	require.Len(t, second, 50)
	assert.Equal(t, 50, second[0].ID)
	assert.Equal(t, 1, second[len(second)-1].ID)
}

func TestStockNeverNegative(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture()
		ctx := context.Background()
		open := map[int]int{}

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if len(open) > 0 && rapid.Bool().Draw(rt, "cancel") {
				ids := make([]int, 0, len(open))
				for id := range open {
					ids = append(ids, id)
				}
				sort.Ints(ids)
				id := rapid.SampledFrom(ids).Draw(rt, "order")
				if _, err := f.svc.Cancel(ctx, vendor, id, ""); err != nil {
					rt.Fatalf("cancel %d: %v", id, err)
				}
				delete(open, id)
			} else {
				qty := rapid.IntRange(1, 60).Draw(rt, "quantity")
				o, err := f.svc.Create(ctx, vendor, checkout(LineInput{MaterialID: 1, Quantity: qty}))
				switch {
				case err == nil:
					open[o.ID] = qty
				case !apperr.Is(err, apperr.KindInsufficientStock):
					rt.Fatalf("create: %v", err)
				}
			}

			reserved := 0
			for _, q := range open {
				reserved += q
			}
			qty := f.quantity(rt, 1)
			if qty < 0 {
				rt.Fatalf("quantity went negative: %d", qty)
			}
			if qty+reserved != 100 {
				rt.Fatalf("quantity %d + reserved %d != 100", qty, reserved)
			}
		}
	})
}
