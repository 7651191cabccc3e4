package gridbot

import (
	"context"
	"errors"
	"fmt"
)

// ErrPriceUnavailable means no source could produce a current price for a
// token. The caller must skip that token's cycle; nothing is quoted without
// a live price.
var ErrPriceUnavailable = errors.New("price unavailable")

// PriceSource resolves the current market price of a token in micros.
type PriceSource interface {
	Price(ctx context.Context, tokenID string) (uint64, error)
}

// Oracle resolves the current price for a token. The metadata source (Gamma)
// is tried first since it is cheap, falling back to the order-book midpoint.
// When a stream feed is configured its cached price takes precedence over
// both, as it is the freshest. The oracle has no side effects and no state of
// its own.
type Oracle struct {
	Stream PriceSource // optional; nil when -source=poll
	Meta   PriceSource // Gamma outcome price
	Book   PriceSource // order-book midpoint
}

// Resolve returns the price and the name of the source that produced it.
// All sources failing yields ErrPriceUnavailable with the underlying causes
// attached.
func (o *Oracle) Resolve(ctx context.Context, tokenID string) (uint64, string, error) {
	var errs []error
	if o.Stream != nil {
		p, err := o.Stream.Price(ctx, tokenID)
		if err == nil && p > 0 {
			return p, "stream", nil
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("stream: %w", err))
		}
	}
	if o.Meta != nil {
		p, err := o.Meta.Price(ctx, tokenID)
		if err == nil && p > 0 {
			return p, "gamma", nil
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("gamma: %w", err))
		}
	}
	if o.Book != nil {
		p, err := o.Book.Price(ctx, tokenID)
		if err == nil && p > 0 {
			return p, "book", nil
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("book: %w", err))
		}
	}
	if joined := errors.Join(errs...); joined != nil {
		return 0, "", fmt.Errorf("%w: %w", ErrPriceUnavailable, joined)
	}
	return 0, "", ErrPriceUnavailable
}
