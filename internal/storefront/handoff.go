package storefront

import (
	"context"
	"fmt"
	"time"

	"github.com/hanko-field/storefront/internal/platform/storage"
)

// Handoff is a typed single-use value passed from one navigation step to the next.
// It is persisted so it survives a restart, and Consumed stops it from being used twice.
type Handoff[T any] struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	IssuedAt time.Time `json:"issuedAt"`
	Consumed bool      `json:"consumed"`
	Payload  T         `json:"payload"`
}

// handoffSlot keeps at most one outstanding hand-off of a kind in a named blob.
// Issuing a new token replaces the previous one.
type handoffSlot[T any] struct {
	blobs storage.Store
	blob  string
	kind  string
	clock func() time.Time
	newID func() string
}

func (s handoffSlot[T]) issue(ctx context.Context, payload T) (Handoff[T], error) {
	h := Handoff[T]{
		ID:       s.newID(),
		Kind:     s.kind,
		IssuedAt: s.clock().UTC(),
		Payload:  payload,
	}
	if err := storage.SaveJSON(ctx, s.blobs, s.blob, h); err != nil {
		return Handoff[T]{}, err
	}
	return h, nil
}

// latest returns the stored hand-off whether or not it was consumed.
func (s handoffSlot[T]) latest(ctx context.Context) (Handoff[T], bool, error) {
	var h Handoff[T]
	found, err := storage.LoadJSON(ctx, s.blobs, s.blob, &h)
	if err != nil || !found {
		return Handoff[T]{}, false, err
	}
	if h.Kind != s.kind {
		return Handoff[T]{}, false, nil
	}
	return h, true, nil
}

// peek returns the outstanding hand-off with id without consuming it.
func (s handoffSlot[T]) peek(ctx context.Context, id string) (Handoff[T], error) {
	h, found, err := s.latest(ctx)
	if err != nil {
		return Handoff[T]{}, err
	}
	if !found || h.ID != id {
		return Handoff[T]{}, fmt.Errorf("%w: %s %s", ErrHandoffNotFound, s.kind, id)
	}
	if h.Consumed {
		return Handoff[T]{}, fmt.Errorf("%w: %s %s", ErrHandoffConsumed, s.kind, id)
	}
	return h, nil
}

// consume marks the hand-off with id as used and returns it.
func (s handoffSlot[T]) consume(ctx context.Context, id string) (Handoff[T], error) {
	h, err := s.peek(ctx, id)
	if err != nil {
		return Handoff[T]{}, err
	}
	h.Consumed = true
	if err := storage.SaveJSON(ctx, s.blobs, s.blob, h); err != nil {
		return Handoff[T]{}, err
	}
	return h, nil
}

func (s handoffSlot[T]) discard(ctx context.Context) error {
	return s.blobs.Delete(ctx, s.blob)
}
