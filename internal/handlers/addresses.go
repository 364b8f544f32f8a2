package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/orderapi"
	"github.com/hanko-field/storefront/internal/platform/httpx"
	"github.com/hanko-field/storefront/internal/services"
)

const maxAddressBodySize = 8 * 1024

// AddressHandlers serves the signed-in user's address book. Every response carries the full list.
type AddressHandlers struct {
	addresses services.AddressService
}

// NewAddressHandlers constructs AddressHandlers.
func NewAddressHandlers(addresses services.AddressService) *AddressHandlers {
	return &AddressHandlers{addresses: addresses}
}

// Routes registers the /addresses endpoints.
func (h *AddressHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listAddresses)
	r.Post("/", h.addAddress)
	r.Delete("/{addressID}", h.deleteAddress)
}

func (h *AddressHandlers) listAddresses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	list, err := h.addresses.List(ctx, userID)
	writeAddressList(ctx, w, list, err)
}

func (h *AddressHandlers) addAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	var addr domain.Address
	if !decodeBody(ctx, w, r, maxAddressBodySize, &addr) {
		return
	}
	list, err := h.addresses.Add(ctx, services.AddAddressCommand{UserID: userID, Address: addr})
	writeAddressList(ctx, w, list, err)
}

func (h *AddressHandlers) deleteAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	addressID := strings.TrimSpace(chi.URLParam(r, "addressID"))
	if addressID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "address id is required", http.StatusBadRequest))
		return
	}
	list, err := h.addresses.Delete(ctx, userID, addressID)
	writeAddressList(ctx, w, list, err)
}

func (h *AddressHandlers) requireUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.addresses == nil {
		httpx.WriteError(ctx, w, httpx.NewError("address_service_unavailable", "address service unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	return requireIdentity(ctx, w)
}

func writeAddressList(ctx context.Context, w http.ResponseWriter, list []domain.Address, err error) {
	switch {
	case err == nil:
		if list == nil {
			list = []domain.Address{}
		}
		httpx.WriteJSON(w, http.StatusOK, orderapi.AddressListEnvelope{Addresses: list})
	case errors.Is(err, services.ErrAddressInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_address", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrAddressNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("address_not_found", "address not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("address_error", "failed to process address request", http.StatusInternalServerError))
	}
}
