package storefront

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/storage"
)

var testNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

type stubAddressAPI struct {
	listFn   func(context.Context, string) ([]domain.Address, error)
	addFn    func(context.Context, string, domain.Address) ([]domain.Address, error)
	deleteFn func(context.Context, string, string) ([]domain.Address, error)
}

func (s *stubAddressAPI) ListAddresses(ctx context.Context, token string) ([]domain.Address, error) {
	if s.listFn != nil {
		return s.listFn(ctx, token)
	}
	return nil, nil
}

func (s *stubAddressAPI) AddAddress(ctx context.Context, token string, address domain.Address) ([]domain.Address, error) {
	if s.addFn != nil {
		return s.addFn(ctx, token, address)
	}
	return nil, errors.New("not implemented")
}

func (s *stubAddressAPI) DeleteAddress(ctx context.Context, token, addressID string) ([]domain.Address, error) {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, token, addressID)
	}
	return nil, errors.New("not implemented")
}

type stubOrderAPI struct {
	createFn func(context.Context, string, OrderDraft, string) (domain.Order, error)
	listFn   func(context.Context, string) ([]domain.OrderSummary, error)
	getFn    func(context.Context, string, string) (domain.Order, error)
}

func (s *stubOrderAPI) CreateOrder(ctx context.Context, token string, draft OrderDraft, key string) (domain.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, token, draft, key)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderAPI) ListMyOrders(ctx context.Context, token string) ([]domain.OrderSummary, error) {
	if s.listFn != nil {
		return s.listFn(ctx, token)
	}
	return nil, nil
}

func (s *stubOrderAPI) GetOrder(ctx context.Context, token, orderID string) (domain.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, token, orderID)
	}
	return domain.Order{}, &NotFoundError{Resource: "order", ID: orderID}
}

// flakyStore fails Save for the named blobs while failing is set.
type flakyStore struct {
	*storage.MemoryStore
	mu      sync.Mutex
	failing map[string]bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: storage.NewMemoryStore(), failing: map[string]bool{}}
}

func (s *flakyStore) failSaves(name string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[name] = fail
}

func (s *flakyStore) Save(ctx context.Context, name string, data []byte) error {
	s.mu.Lock()
	fail := s.failing[name]
	s.mu.Unlock()
	if fail {
		return fmt.Errorf("disk full writing %s", name)
	}
	return s.MemoryStore.Save(ctx, name, data)
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("tok-%d", n)
	}
}

func newTestStore(t *testing.T, blobs storage.Store, addresses AddressAPI, orders OrderAPI) *Store {
	t.Helper()
	if addresses == nil {
		addresses = &stubAddressAPI{}
	}
	if orders == nil {
		orders = &stubOrderAPI{}
	}
	store, err := NewStore(context.Background(), StoreDeps{
		Blobs:     blobs,
		Addresses: addresses,
		Orders:    orders,
		LoginURL:  "https://shop.test/login",
		Clock:     func() time.Time { return testNow },
		NewID:     sequentialIDs(),
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func signIn(t *testing.T, store *Store) {
	t.Helper()
	err := store.Session().SignIn(context.Background(), domain.UserProfile{ID: "u1", Name: "Asha", Email: "asha@example.com"}, "token-u1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
}

var (
	tee    = domain.Product{ID: "p-tee", Name: "Tee", Price: 200, Image: "tee.png"}
	hoodie = domain.Product{ID: "p-hoodie", Name: "Hoodie", Price: 450}
)

func homeAddress() domain.Address {
	return domain.Address{
		ID:         "adr_1",
		FirstName:  "Asha",
		LastName:   "Rao",
		Phone:      "9990001111",
		Line1:      "12 MG Road",
		City:       "Pune",
		State:      "MH",
		PostalCode: "411001",
		Country:    "IN",
		IsDefault:  true,
	}
}
