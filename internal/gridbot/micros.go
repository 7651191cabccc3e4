package gridbot

import (
	"fmt"
	"strings"
)

// All prices, share counts and dollar amounts are handled in integer micro
// units (1e6 scale), matching the CLOB's 6-decimal collateral token.
const microsScale = uint64(1_000_000)

// priceQuantum returns the price step implied by a decimal precision, e.g.
// precision=3 -> 1_000 micros ($0.001).
func priceQuantum(precision int) uint64 {
	q := microsScale
	for i := 0; i < precision; i++ {
		q /= 10
	}
	return q
}

// roundHalfUpToStep snaps v to the nearest multiple of step, ties away from
// zero. step must be > 0.
func roundHalfUpToStep(v, step uint64) uint64 {
	return (v + step/2) / step * step
}

// roundNearestToStep behaves like roundHalfUpToStep; kept as a separate name
// where the call site rounds sizes rather than prices.
func roundNearestToStep(v, step uint64) uint64 {
	return roundHalfUpToStep(v, step)
}

func roundDownToStep(v, step uint64) uint64 {
	return v / step * step
}

// parseDecimalMicros parses a non-negative decimal string ("0.48", "10",
// ".5") into 1e6-scale units. Extra fractional digits beyond six are
// rejected rather than silently truncated: config values must be exactly
// representable.
func parseDecimalMicros(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty decimal string")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("negative not supported: %q", s)
	}

	parts := strings.SplitN(s, ".", 3)
	if len(parts) > 2 {
		return 0, fmt.Errorf("invalid decimal: %q", s)
	}
	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 6 {
		return 0, fmt.Errorf("too many decimals (max 6): %q", s)
	}
	for len(frac) < 6 {
		frac += "0"
	}

	var out uint64
	for _, c := range whole {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid decimal: %q", s)
		}
		out = out*10 + uint64(c-'0')
		if out > (1<<63)/microsScale {
			return 0, fmt.Errorf("decimal out of range: %q", s)
		}
	}
	out *= microsScale
	var f uint64
	for _, c := range frac {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid decimal: %q", s)
		}
		f = f*10 + uint64(c-'0')
	}
	return out + f, nil
}

func formatMicros(m uint64) string {
	whole := m / microsScale
	frac := m % microsScale
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	fs := strings.TrimRight(fmt.Sprintf("%06d", frac), "0")
	return fmt.Sprintf("%d.%s", whole, fs)
}

func formatSignedMicros(m int64) string {
	if m < 0 {
		return "-" + formatMicros(uint64(-m))
	}
	return formatMicros(uint64(m))
}

// mulPriceShares computes price*shares/1e6: the dollar value (in micros) of
// sharesMicros shares at priceMicros per share.
func mulPriceShares(priceMicros, sharesMicros uint64) uint64 {
	return priceMicros * sharesMicros / microsScale
}
