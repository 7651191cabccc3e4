package gridbot

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type fakeSource struct {
	price uint64
	err   error
	calls int
}

func (f *fakeSource) Price(context.Context, string) (uint64, error) {
	f.calls++
	return f.price, f.err
}

func TestOracleResolve_PrefersStream(t *testing.T) {
	stream := &fakeSource{price: 510_000}
	meta := &fakeSource{price: 500_000}
	o := &Oracle{Stream: stream, Meta: meta}

	p, src, err := o.Resolve(context.Background(), "t")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if p != 510_000 || src != "stream" {
		t.Fatalf("got %d from %q, want stream price", p, src)
	}
	if meta.calls != 0 {
		t.Fatalf("meta consulted despite stream hit")
	}
}

func TestOracleResolve_FallsBackToBook(t *testing.T) {
	stream := &fakeSource{err: fmt.Errorf("stale")}
	meta := &fakeSource{err: fmt.Errorf("gamma down")}
	book := &fakeSource{price: 495_000}
	o := &Oracle{Stream: stream, Meta: meta, Book: book}

	p, src, err := o.Resolve(context.Background(), "t")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if p != 495_000 || src != "book" {
		t.Fatalf("got %d from %q, want book price", p, src)
	}
}

func TestOracleResolve_AllSourcesFail(t *testing.T) {
	o := &Oracle{
		Meta: &fakeSource{err: fmt.Errorf("gamma down")},
		Book: &fakeSource{err: fmt.Errorf("book empty")},
	}
	_, _, err := o.Resolve(context.Background(), "t")
	if !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("err = %v, want ErrPriceUnavailable", err)
	}
}

func TestOracleResolve_ZeroPriceIsNotAPrice(t *testing.T) {
	o := &Oracle{Meta: &fakeSource{price: 0}}
	_, _, err := o.Resolve(context.Background(), "t")
	if !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("err = %v, want ErrPriceUnavailable", err)
	}
}
