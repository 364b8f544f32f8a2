package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Collection gives typed access to the documents under a collection path. The path may name a
// sub-collection ("users/u1/addresses").
type Collection[T any] struct {
	provider *Provider
	path     string
}

// NewCollection binds a typed collection to path.
func NewCollection[T any](provider *Provider, path string) Collection[T] {
	return Collection[T]{provider: provider, path: strings.Trim(path, "/")}
}

// Doc returns the reference for id.
func (c Collection[T]) Doc(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%s: document id is required", c.path)
	}
	coll, err := c.Ref(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

// Create writes value under id and fails with a conflict when the document exists.
func (c Collection[T]) Create(ctx context.Context, id string, value T) error {
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	_, err = doc.Create(ctx, value)
	return WrapError(c.op("create"), err)
}

// Set overwrites the document under id.
func (c Collection[T]) Set(ctx context.Context, id string, value T) error {
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	_, err = doc.Set(ctx, value)
	return WrapError(c.op("set"), err)
}

// Get decodes the document with id.
func (c Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return out, err
	}
	snap, err := doc.Get(ctx)
	if err != nil {
		return out, WrapError(c.op("get"), err)
	}
	if err := snap.DataTo(&out); err != nil {
		return out, fmt.Errorf("%s: decode %s: %w", c.path, id, err)
	}
	return out, nil
}

// Delete removes the document with id. Deleting a missing document succeeds.
func (c Collection[T]) Delete(ctx context.Context, id string) error {
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	_, err = doc.Delete(ctx)
	return WrapError(c.op("delete"), err)
}

// Query runs build over the collection and decodes every match.
func (c Collection[T]) Query(ctx context.Context, build func(firestore.Query) firestore.Query) ([]T, error) {
	coll, err := c.Ref(ctx)
	if err != nil {
		return nil, err
	}
	query := coll.Query
	if build != nil {
		query = build(query)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []T
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, WrapError(c.op("query"), err)
		}
		var item T
		if err := snap.DataTo(&item); err != nil {
			return nil, fmt.Errorf("%s: decode %s: %w", c.path, snap.Ref.ID, err)
		}
		out = append(out, item)
	}
}

// Ref returns the underlying collection reference, for queries inside transactions.
func (c Collection[T]) Ref(ctx context.Context) (*firestore.CollectionRef, error) {
	if c.provider == nil || c.path == "" {
		return nil, errors.New("firestore: collection is not configured")
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(c.path), nil
}

func (c Collection[T]) op(action string) string {
	return c.path + "." + action
}
