package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestWriteErrorIncludesRequestID(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-123")
	rec := httptest.NewRecorder()

	WriteError(ctx, rec, NewError("order_not_found", "order\nnot found", http.StatusNotFound).WithDetails(map[string]any{"id": "ord_1"}))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "order_not_found" {
		t.Fatalf("unexpected code %v", body["error"])
	}
	if body["message"] != "order not found" {
		t.Fatalf("expected newline to be stripped, got %q", body["message"])
	}
	if body["request_id"] != "req-123" {
		t.Fatalf("expected request id, got %v", body["request_id"])
	}
	if _, ok := body["trace_id"]; ok {
		t.Fatalf("trace id should be omitted without a span")
	}
	details, ok := body["details"].(map[string]any)
	if !ok || details["id"] != "ord_1" {
		t.Fatalf("unexpected details %v", body["details"])
	}
}

func TestNewErrorDefaultsStatus(t *testing.T) {
	if got := NewError("x", "y", 0).Status; got != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", got)
	}
}
