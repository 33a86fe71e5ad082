package profile

import (
	"context"
	"errors"
	"testing"

	"cedra_storefront/internal/auth"
	"cedra_storefront/internal/orders"
	"cedra_storefront/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFinder struct {
	order orders.Order
	err   error
	calls int
}

func (f *fakeFinder) LatestForEmail(_ context.Context, _ string) (orders.Order, error) {
	f.calls++
	return f.order, f.err
}

func newStore() *Store {
	return NewStore(repository.New(repository.NewMemoryBackend()))
}

var asha = &auth.Identity{ID: "user-1", Email: "asha@example.com", Name: "Asha"}

func pastOrder() orders.Order {
	return orders.Order{
		OrderNumber: "ORD-9",
		UserEmail:   "asha@example.com",
		ShippingAddress: orders.ShippingAddress{
			FullName:    "Asha Rao",
			Phone:       "9876543210",
			AddressLine: "12 MG Road, Indiranagar",
			City:        "Bengaluru",
			State:       "Karnataka",
			Pincode:     "560038",
		},
	}
}

func TestAutofill_SavedProfileFirst(t *testing.T) {
	store := newStore()
	finder := &fakeFinder{order: pastOrder()}
	svc := NewDefaultService(store, finder)
	ctx := context.Background()

	_, err := store.Upsert(ctx, Profile{IdentityID: "user-1", Name: "Asha Saved", Phone: "9000000000", Address: Address{City: "Pune"}})
	require.NoError(t, err)

	shipping, source := svc.Autofill(ctx, asha)
	assert.Equal(t, SourceSavedProfile, source)
	assert.Equal(t, "Asha Saved", shipping.FullName)
	assert.Equal(t, "asha@example.com", shipping.Email)
	assert.Equal(t, "Pune", shipping.City)
	assert.Zero(t, finder.calls)
}

func TestAutofill_BackfillsFromPastOrders(t *testing.T) {
	store := newStore()
	svc := NewDefaultService(store, &fakeFinder{order: pastOrder()})
	ctx := context.Background()

	shipping, source := svc.Autofill(ctx, asha)
	assert.Equal(t, SourcePastOrders, source)
	assert.Equal(t, "560038", shipping.Pincode)
	assert.Equal(t, "asha@example.com", shipping.Email)

	saved, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "12 MG Road, Indiranagar", saved.Address.Street)
	assert.False(t, saved.UpdatedAt.IsZero())
}

func TestAutofill_FallsBackToIdentity(t *testing.T) {
	tests := []struct {
		name   string
		finder *fakeFinder
	}{
		{"no orders", &fakeFinder{err: orders.ErrOrderNotFound}},
		{"order lookup fails", &fakeFinder{err: errors.New("scylla down")}},
		{"order without address", &fakeFinder{order: orders.Order{OrderNumber: "ORD-1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewDefaultService(newStore(), tt.finder)

			shipping, source := svc.Autofill(context.Background(), asha)
			assert.Equal(t, SourceIdentityFields, source)
			assert.Equal(t, orders.ShippingAddress{FullName: "Asha", Email: "asha@example.com"}, shipping)
		})
	}
}

func TestAutofill_NoStrategies(t *testing.T) {
	svc := NewService(newStore())
	shipping, source := svc.Autofill(context.Background(), asha)
	assert.Equal(t, SourceIdentityFields, source)
	assert.Equal(t, "Asha", shipping.FullName)
}

func TestSave_UpsertsSingleDocument(t *testing.T) {
	store := newStore()
	svc := NewDefaultService(store, &fakeFinder{err: orders.ErrOrderNotFound})
	ctx := context.Background()

	first := pastOrder().ShippingAddress
	_, err := svc.Save(ctx, asha, first)
	require.NoError(t, err)

	second := first
	second.City = "Mysuru"
	p, err := svc.Save(ctx, asha, second)
	require.NoError(t, err)
	assert.Equal(t, "Mysuru", p.Address.City)

	all, err := store.docs.GetAll(ctx, Collection)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	got, err := svc.Get(ctx, asha)
	require.NoError(t, err)
	assert.Equal(t, second, got.Shipping())
}

func TestStore_GetMissing(t *testing.T) {
	_, err := newStore().Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNoProfile)
}

func TestUpsert_RequiresIdentity(t *testing.T) {
	_, err := newStore().Upsert(context.Background(), Profile{Name: "x"})
	assert.Error(t, err)
}
