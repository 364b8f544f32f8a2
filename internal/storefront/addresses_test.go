package storefront

import (
	"context"
	"errors"
	"testing"

	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/storage"
)

func TestAddressBookReplacesCacheWithServerList(t *testing.T) {
	ctx := context.Background()
	office := homeAddress()
	office.ID, office.IsDefault, office.Line1 = "adr_2", false, "1 Tech Park"

	server := []domain.Address{homeAddress()}
	listCalls := 0
	api := &stubAddressAPI{
		listFn: func(_ context.Context, token string) ([]domain.Address, error) {
			if token != "token-u1" {
				t.Fatalf("unexpected token %q", token)
			}
			listCalls++
			return server, nil
		},
		addFn: func(_ context.Context, _ string, address domain.Address) ([]domain.Address, error) {
			address.ID = "adr_2"
			server = append(server, address)
			return server, nil
		},
		deleteFn: func(_ context.Context, _ string, id string) ([]domain.Address, error) {
			if id != "adr_1" {
				return nil, &NotFoundError{Resource: "address", ID: id}
			}
			server = server[1:]
			return server, nil
		},
	}
	store := newTestStore(t, storage.NewMemoryStore(), api, nil)
	signIn(t, store)
	book := store.Addresses()

	if res := book.Load(ctx); res.State != LoadSucceeded || len(res.Value) != 1 {
		t.Fatalf("unexpected load %+v", res)
	}

	list, err := book.Add(ctx, office)
	if err != nil || len(list) != 2 || len(book.Current().Value) != 2 {
		t.Fatalf("expected cache replaced after add, got %+v %v", list, err)
	}
	if def, ok := book.Default(); !ok || def.ID != "adr_1" {
		t.Fatalf("expected default address adr_1, got %+v", def)
	}

	_, err = book.Delete(ctx, "adr_9")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
	if listCalls != 2 {
		t.Fatalf("expected refresh from server after not found, got %d list calls", listCalls)
	}

	list, err = book.Delete(ctx, "adr_1")
	if err != nil || len(list) != 1 || list[0].ID != "adr_2" {
		t.Fatalf("unexpected list after delete %+v %v", list, err)
	}
	if def, _ := book.Default(); def.ID != "adr_2" {
		t.Fatalf("expected first address as fallback default, got %+v", def)
	}

	if _, err := book.Choose(ctx, "adr_1"); !errors.As(err, &nf) {
		t.Fatalf("expected deleted address to be unchoosable, got %v", err)
	}
}

func TestAddressBookRequiresCredential(t *testing.T) {
	store := newTestStore(t, storage.NewMemoryStore(), nil, nil)
	res := store.Addresses().Load(context.Background())
	if res.State != LoadFailed || !errors.Is(res.Err, ErrNotAuthenticated) {
		t.Fatalf("expected auth failure, got %+v", res)
	}
	if _, err := store.Addresses().Add(context.Background(), homeAddress()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected auth failure, got %v", err)
	}
}

func TestAddressBookValidatesBeforeSending(t *testing.T) {
	api := &stubAddressAPI{
		addFn: func(context.Context, string, domain.Address) ([]domain.Address, error) {
			t.Fatalf("invalid address must not reach the api")
			return nil, nil
		},
	}
	store := newTestStore(t, storage.NewMemoryStore(), api, nil)
	signIn(t, store)

	address := homeAddress()
	address.City = ""
	var vErr *ValidationError
	if _, err := store.Addresses().Add(context.Background(), address); !errors.As(err, &vErr) || vErr.Field != "address.city" {
		t.Fatalf("expected city validation error, got %v", err)
	}
}
