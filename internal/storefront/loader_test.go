package storefront

import (
	"context"
	"errors"
	"testing"
)

func TestLoaderLifecycle(t *testing.T) {
	fail := true
	loader := NewLoader(func(context.Context) (int, error) {
		if fail {
			return 0, errors.New("offline")
		}
		return 42, nil
	})

	if loader.Current().State != LoadIdle {
		t.Fatalf("expected idle before first load")
	}

	res := loader.Load(context.Background())
	if res.State != LoadFailed || res.Err == nil {
		t.Fatalf("expected failure, got %+v", res)
	}

	fail = false
	res = loader.Load(context.Background())
	if res.State != LoadSucceeded || res.Value != 42 || res.Err != nil {
		t.Fatalf("expected success, got %+v", res)
	}

	fail = true
	res = loader.Load(context.Background())
	if res.State != LoadFailed || res.Value != 42 {
		t.Fatalf("expected failed reload to keep last value, got %+v", res)
	}
}

func TestLoaderNewLoadSupersedesInFlight(t *testing.T) {
	started := make(chan struct{})
	calls := 0
	loader := NewLoader(func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			close(started)
			<-ctx.Done()
			return "stale", ctx.Err()
		}
		return "fresh", nil
	})

	first := make(chan Result[string], 1)
	go func() {
		first <- loader.Load(context.Background())
	}()
	<-started

	second := loader.Load(context.Background())
	if second.State != LoadSucceeded || second.Value != "fresh" {
		t.Fatalf("expected fresh result, got %+v", second)
	}

	stale := <-first
	if !errors.Is(stale.Err, ErrLoadSuperseded) {
		t.Fatalf("expected superseded error, got %+v", stale)
	}
	if cur := loader.Current(); cur.Value != "fresh" || cur.State != LoadSucceeded {
		t.Fatalf("stale load overwrote current result: %+v", cur)
	}
}

func TestLoaderSetCancelsInFlight(t *testing.T) {
	started := make(chan struct{})
	loader := NewLoader(func(ctx context.Context) ([]string, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	done := make(chan Result[[]string], 1)
	go func() {
		done <- loader.Load(context.Background())
	}()
	<-started

	loader.Set([]string{"from-mutation"})
	res := <-done
	if !errors.Is(res.Err, ErrLoadSuperseded) {
		t.Fatalf("expected superseded load, got %+v", res)
	}
	if cur := loader.Current(); len(cur.Value) != 1 || cur.Value[0] != "from-mutation" {
		t.Fatalf("unexpected current %+v", cur)
	}
}
