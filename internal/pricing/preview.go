package pricing

import "github.com/shopspring/decimal"

// PreviewResult is the before/after comparison for a single unit.
// All values are rounded to 2 places for display; nothing is persisted.
type PreviewResult struct {
	CurrentPrice           decimal.Decimal  `json:"current_price"`
	CurrentComparePrice    *decimal.Decimal `json:"current_compare_at_price"`
	CurrentDiscountPercent decimal.Decimal  `json:"current_discount_percentage"`
	NewPrice               decimal.Decimal  `json:"new_price"`
	NewComparePrice        *decimal.Decimal `json:"new_compare_at_price"`
	NewDiscountPercent     decimal.Decimal  `json:"new_discount_percentage"`
	DiscountChange         decimal.Decimal  `json:"discount_change"`
	StrategyDescription    string           `json:"strategy_description"`
}

// PreviewChange composes the calculator into a display-ready comparison.
// Pure and deterministic: same inputs, same result, no I/O.
func PreviewChange(
	current Quote,
	strategy Strategy,
	value decimal.Decimal,
	targetDiscount *decimal.Decimal,
) (*PreviewResult, error) {
	currentDiscount := DiscountOf(current)

	newPrice, newCompare, err := CalculateNewPrices(current.Price, current.ComparePrice, strategy, value, targetDiscount)
	if err != nil {
		return nil, err
	}

	newDiscount := DiscountOf(Quote{Price: newPrice, ComparePrice: newCompare})

	res := &PreviewResult{
		CurrentPrice:           current.Price.Round(2),
		CurrentDiscountPercent: currentDiscount.Round(2),
		NewPrice:               newPrice.Round(2),
		NewDiscountPercent:     newDiscount.Round(2),
		DiscountChange:         newDiscount.Sub(currentDiscount).Round(2),
		StrategyDescription:    strategy.Description(),
	}
	if current.ComparePrice != nil {
		rounded := current.ComparePrice.Round(2)
		res.CurrentComparePrice = &rounded
	}
	if newCompare != nil {
		rounded := newCompare.Round(2)
		res.NewComparePrice = &rounded
	}
	return res, nil
}
