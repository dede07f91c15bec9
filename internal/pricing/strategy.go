package pricing

import "fmt"

// Strategy selects which arithmetic branch the calculator executes.
// The set is closed: unknown values are rejected at the API boundary
// via ParseStrategy and never reach the arithmetic.
type Strategy string

const (
	// IncreaseCompareOnly raises only the compare-at price, widening the
	// visible discount without touching what the customer pays.
	IncreaseCompareOnly Strategy = "increase_compare_only"
	// DecreasePriceOnly lowers the selling price; the old price (or the
	// existing compare-at price) becomes the discount anchor.
	DecreasePriceOnly Strategy = "decrease_price_only"
	// BothDirections moves both prices, with the compare-at price growing
	// 1.5x as fast so the discount widens even for small values.
	BothDirections Strategy = "both_directions"
	// SetDiscountPercentage back-solves the compare-at price so the
	// displayed discount lands exactly on the requested percentage.
	SetDiscountPercentage Strategy = "set_discount_percentage"
)

// ParseStrategy converts the wire value into a Strategy.
// Unknown values fail here so the calculator can assume a valid input.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case IncreaseCompareOnly, DecreasePriceOnly, BothDirections, SetDiscountPercentage:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Description returns the fixed operator-facing text shown in previews
// and stored on rollback sessions.
func (s Strategy) Description() string {
	switch s {
	case IncreaseCompareOnly:
		return "Increase compare-at price only (widen discount)"
	case DecreasePriceOnly:
		return "Decrease selling price only (widen discount, lower price)"
	case BothDirections:
		return "Move both prices (maximum discount control)"
	case SetDiscountPercentage:
		return "Set an exact discount percentage"
	default:
		return "Unknown strategy"
	}
}

func (s Strategy) String() string { return string(s) }
