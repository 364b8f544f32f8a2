package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/storefront/internal/orderapi"
	"github.com/hanko-field/storefront/internal/repositories/memory"
	"github.com/hanko-field/storefront/internal/services"
)

func newAddressTestRouter(t *testing.T) chi.Router {
	t.Helper()
	svc, err := services.NewAddressService(services.AddressServiceDeps{
		Addresses: memory.NewRegistry().Addresses(),
		Clock:     func() time.Time { return time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("address service: %v", err)
	}
	router := chi.NewRouter()
	router.Route("/addresses", NewAddressHandlers(svc).Routes)
	return router
}

func decodeAddressList(t *testing.T, rr *httptest.ResponseRecorder) orderapi.AddressListEnvelope {
	t.Helper()
	var envelope orderapi.AddressListEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v (%s)", err, rr.Body.String())
	}
	return envelope
}

const testAddressBody = `{"firstName":"Asha","lastName":"Rao","addressLine1":"12 MG Road","city":"Pune","zipCode":"411001","country":"IN"}`

func TestAddressHandlersLifecycle(t *testing.T) {
	router := newAddressTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodGet, "/addresses", nil), "user-1"))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"addresses":[]`) {
		t.Fatalf("expected empty list, got %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodPost, "/addresses", strings.NewReader(testAddressBody)), "user-1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	list := decodeAddressList(t, rr).Addresses
	if len(list) != 1 || !list[0].IsDefault || !strings.HasPrefix(list[0].ID, "adr_") {
		t.Fatalf("unexpected list %+v", list)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodDelete, "/addresses/"+list[0].ID, nil), "user-1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", rr.Code)
	}
	if got := decodeAddressList(t, rr).Addresses; len(got) != 0 {
		t.Fatalf("expected empty list after delete, got %+v", got)
	}
}

func TestAddressHandlersErrors(t *testing.T) {
	router := newAddressTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodPost, "/addresses", strings.NewReader(`{"firstName":"Asha"}`)), "user-1"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for incomplete address, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodDelete, "/addresses/adr_missing", nil), "user-1"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/addresses", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rr.Code)
	}
}
