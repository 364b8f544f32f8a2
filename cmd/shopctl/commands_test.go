package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hanko-field/storefront/internal/handlers"
	"github.com/hanko-field/storefront/internal/orderapi"
	"github.com/hanko-field/storefront/internal/platform/auth"
	"github.com/hanko-field/storefront/internal/platform/idempotency"
	"github.com/hanko-field/storefront/internal/platform/storage"
	"github.com/hanko-field/storefront/internal/repositories/memory"
	"github.com/hanko-field/storefront/internal/services"
	"github.com/hanko-field/storefront/internal/storefront"
)

const testSigningSecret = "0123456789abcdef0123456789abcdef"

type harness struct {
	t      *testing.T
	tokens *auth.HMACTokens
	blobs  storage.Store
	api    *orderapi.Client
	out    bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tokens, err := auth.NewHMACTokens(testSigningSecret, "storefront-test")
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	registry := memory.NewRegistry()
	orders, err := services.NewOrderService(services.OrderServiceDeps{Orders: registry.Orders()})
	if err != nil {
		t.Fatalf("order service: %v", err)
	}
	addresses, err := services.NewAddressService(services.AddressServiceDeps{Addresses: registry.Addresses()})
	if err != nil {
		t.Fatalf("address service: %v", err)
	}
	authn := auth.NewAuthenticator(tokens)
	router := handlers.NewRouter(
		handlers.WithAPIMiddlewares(authn.RequireAuth()),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(authn, orders,
			handlers.WithCreateOrderMiddleware(idempotency.Middleware(idempotency.NewMemoryStore()))).Routes),
		handlers.WithAddressRoutes(handlers.NewAddressHandlers(addresses).Routes),
	)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	api, err := orderapi.NewClient(server.URL+"/api/v1", 5*time.Second, orderapi.WithLoginURL("https://shop.example/login"))
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return &harness{t: t, tokens: tokens, blobs: storage.NewMemoryStore(), api: api}
}

// run executes one shopctl invocation against a freshly restored store, like a new process would.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	store, err := storefront.NewStore(context.Background(), storefront.StoreDeps{
		Blobs:     h.blobs,
		Addresses: h.api,
		Orders:    h.api,
		LoginURL:  "https://shop.example/login",
	})
	if err != nil {
		h.t.Fatalf("store: %v", err)
	}
	h.out.Reset()
	err = newApp(store, h.api, &h.out).dispatch(context.Background(), args)
	return h.out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("shopctl %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestShopctlCheckoutFlow(t *testing.T) {
	h := newHarness(t)
	token, err := h.tokens.Issue(auth.Identity{UID: "user-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := h.run("addresses", "list"); !errors.Is(err, storefront.ErrNotAuthenticated) {
		t.Fatalf("expected auth error before login, got %v", err)
	}

	h.mustRun("login", "-token", token, "-uid", "user-1", "-name", "Asha")
	h.mustRun("addresses", "add", "-first-name", "Asha", "-line1", "12 MG Road", "-city", "Pune", "-zip", "411001", "-country", "IN")

	h.mustRun("cart", "add", "-id", "p1", "-name", "Kurta", "-price", "300", "-size", "M", "-color", "Blue")
	h.mustRun("cart", "add", "-id", "p1", "-name", "Kurta", "-price", "300", "-size", "M", "-color", "Blue")
	out := h.mustRun("cart", "list")
	if !strings.Contains(out, "2 item(s), subtotal ₹600") {
		t.Fatalf("expected merged line in cart listing, got:\n%s", out)
	}

	out = h.mustRun("checkout", "-shipping", "express")
	if !strings.Contains(out, "ready for payment") || !strings.Contains(out, "total ₹807") {
		t.Fatalf("unexpected checkout output:\n%s", out)
	}

	out = h.mustRun("pay", "-method", "cod")
	if !strings.Contains(out, "placed (pending)") {
		t.Fatalf("unexpected pay output:\n%s", out)
	}

	out = h.mustRun("cart", "list")
	if !strings.Contains(out, "0 item(s)") {
		t.Fatalf("expected empty cart after order, got:\n%s", out)
	}

	if _, err := h.run("pay", "-method", "cod"); err == nil {
		t.Fatal("expected second payment of the same checkout to fail")
	}

	out = h.mustRun("confirmation")
	if !strings.Contains(out, "placed (pending)") {
		t.Fatalf("expected persisted confirmation, got:\n%s", out)
	}

	out = h.mustRun("orders", "list")
	if !strings.Contains(out, "pending") || !strings.Contains(out, "₹807") {
		t.Fatalf("unexpected order list:\n%s", out)
	}
	orderID := strings.Fields(out)[0]

	out = h.mustRun("orders", "cancel", "-reason", "ordered twice", orderID)
	if !strings.Contains(out, "cancelled: ordered twice") {
		t.Fatalf("unexpected cancel output:\n%s", out)
	}
}

func TestShopctlCardPaymentValidation(t *testing.T) {
	h := newHarness(t)
	token, err := h.tokens.Issue(auth.Identity{UID: "user-2"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	h.mustRun("login", "-token", token)
	h.mustRun("addresses", "add", "-first-name", "Ravi", "-line1", "1 Park St", "-city", "Kolkata", "-zip", "700016", "-country", "IN")
	h.mustRun("cart", "add", "-id", "p9", "-name", "Saree", "-price", "1200")
	h.mustRun("checkout")

	_, err = h.run("pay", "-method", "card", "-card-number", "4111", "-card-name", "Ravi", "-card-expiry", "12/29", "-card-cvv", "123")
	var validation *storefront.ValidationError
	if !errors.As(err, &validation) || validation.Field != "card.number" {
		t.Fatalf("expected card number validation error, got %v", err)
	}

	out := h.mustRun("pay", "-method", "card", "-card-number", "4111 1111 1111 1111", "-card-name", "Ravi", "-card-expiry", "12/29", "-card-cvv", "123")
	if !strings.Contains(out, "placed (confirmed)") || !strings.Contains(out, "total ₹1,416") {
		t.Fatalf("unexpected card payment output:\n%s", out)
	}
}

func TestShopctlWishlistMove(t *testing.T) {
	h := newHarness(t)
	h.mustRun("wishlist", "add", "-id", "p3", "-name", "Dupatta", "-price", "250")
	if out := h.mustRun("wishlist"); !strings.Contains(out, "Dupatta") {
		t.Fatalf("expected wishlist entry, got:\n%s", out)
	}
	h.mustRun("wishlist", "move", "-id", "p3", "-size", "Free")
	if out := h.mustRun("wishlist"); strings.Contains(out, "Dupatta") {
		t.Fatalf("expected wishlist entry to move, got:\n%s", out)
	}
	if out := h.mustRun("cart"); !strings.Contains(out, "Dupatta") {
		t.Fatalf("expected cart line after move, got:\n%s", out)
	}
}

func TestShopctlUnknownCommand(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run("frobnicate"); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestMoneyFormatterGroupsDigits(t *testing.T) {
	m := newMoneyFormatter()
	if got := m.format(1234567); got != "₹1,234,567" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := m.format(-50); got != "-₹50" {
		t.Fatalf("unexpected negative format %q", got)
	}
}
