package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownStrategy is returned for strategy values outside the closed set.
	ErrUnknownStrategy = errors.New("unknown discount strategy")
	// ErrTargetDiscountRequired is returned when SetDiscountPercentage is
	// selected without a target percentage.
	ErrTargetDiscountRequired = errors.New("target discount percentage is required for set_discount_percentage")
	// ErrInvalidTargetDiscount is returned for targets >= 100%, which have
	// no finite compare-at price.
	ErrInvalidTargetDiscount = errors.New("target discount percentage must be below 100")
)

var hundred = decimal.NewFromInt(100)

// Quote is one priced unit's state: the selling price plus the optional
// compare-at ("was") price the discount is computed against.
type Quote struct {
	Price        decimal.Decimal
	ComparePrice *decimal.Decimal
}

// CalculateNewPrices computes the proposed price pair for one unit.
//
// value is a percentage expressed as e.g. 15 for 15%. targetDiscount is
// only consulted for SetDiscountPercentage. The returned compare price is
// nil only when the arithmetic produced none; callers must then omit the
// field from the remote update payload rather than send an empty value.
func CalculateNewPrices(
	currentPrice decimal.Decimal,
	currentCompare *decimal.Decimal,
	strategy Strategy,
	value decimal.Decimal,
	targetDiscount *decimal.Decimal,
) (decimal.Decimal, *decimal.Decimal, error) {
	factor := hundred.Add(value).Div(hundred) // 1 + value/100

	switch strategy {
	case IncreaseCompareOnly:
		// Selling price untouched; grow the existing compare-at price, or
		// synthesize one from the current price.
		base := currentPrice
		if currentCompare != nil {
			base = *currentCompare
		}
		newCompare := base.Mul(factor)
		return currentPrice, &newCompare, nil

	case DecreasePriceOnly:
		// Magnitude of value — a negative input still decreases.
		drop := hundred.Sub(value.Abs()).Div(hundred)
		newPrice := currentPrice.Mul(drop)
		newCompare := currentPrice
		if currentCompare != nil {
			newCompare = *currentCompare
		}
		return newPrice, &newCompare, nil

	case BothDirections:
		newPrice := currentPrice.Mul(factor)
		var newCompare decimal.Decimal
		if currentCompare != nil {
			// Compare-at price moves 1.5x as much as the selling price so
			// the discount widens even for small values.
			compareFactor := hundred.Add(value.Mul(decimal.NewFromFloat(1.5))).Div(hundred)
			newCompare = currentCompare.Mul(compareFactor)
		} else {
			synthFactor := hundred.Add(value.Abs().Mul(decimal.NewFromInt(2))).Div(hundred)
			newCompare = currentPrice.Mul(synthFactor)
		}
		return newPrice, &newCompare, nil

	case SetDiscountPercentage:
		if targetDiscount == nil {
			return decimal.Decimal{}, nil, ErrTargetDiscountRequired
		}
		if targetDiscount.GreaterThanOrEqual(hundred) {
			return decimal.Decimal{}, nil, ErrInvalidTargetDiscount
		}
		// compare = price / (1 - target/100)
		newCompare := currentPrice.Mul(hundred).Div(hundred.Sub(*targetDiscount))
		return currentPrice, &newCompare, nil

	default:
		return decimal.Decimal{}, nil, ErrUnknownStrategy
	}
}

// CalculateDiscountPercentage returns the displayed discount for a price
// pair. Zero when the compare-at price does not exceed the selling price —
// the result is never negative.
func CalculateDiscountPercentage(price, comparePrice decimal.Decimal) decimal.Decimal {
	if comparePrice.LessThanOrEqual(price) {
		return decimal.Zero
	}
	return comparePrice.Sub(price).Div(comparePrice).Mul(hundred)
}

// DiscountOf is CalculateDiscountPercentage over a Quote, treating an
// absent compare-at price as no discount.
func DiscountOf(q Quote) decimal.Decimal {
	if q.ComparePrice == nil {
		return decimal.Zero
	}
	return CalculateDiscountPercentage(q.Price, *q.ComparePrice)
}
