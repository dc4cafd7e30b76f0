package utils

import (
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/shopspring/decimal"
)

// OrderCost is price * quantity plus the commission of the fill, in exact decimal.
func OrderCost(price float64, quantity decimal.Decimal, commissionFee commission_fee.CommissionFee) decimal.Decimal {
	qty, _ := quantity.Float64()

	return decimal.NewFromFloat(price).
		Mul(quantity).
		Add(decimal.NewFromFloat(commissionFee.Calculate(price, qty)))
}

// MaxAffordableQuantity is the largest quantity at decimalPrecision places whose OrderCost
// does not exceed balance.
func MaxAffordableQuantity(balance decimal.Decimal, price float64, commissionFee commission_fee.CommissionFee, decimalPrecision int) decimal.Decimal {
	if price <= 0 || !balance.IsPositive() {
		return decimal.Zero
	}

	precision := int32(decimalPrecision)
	qty := balance.Div(decimal.NewFromFloat(price)).RoundDown(precision)

	// scale down by the overshoot until the fee fits
	for i := 0; i < 10; i++ {
		cost := OrderCost(price, qty, commissionFee)
		if cost.LessThanOrEqual(balance) || !cost.IsPositive() {
			break
		}

		qty = qty.Mul(balance).Div(cost).RoundDown(precision)
	}

	step := decimal.New(1, -precision)
	for qty.IsPositive() && OrderCost(price, qty, commissionFee).GreaterThan(balance) {
		qty = qty.Sub(step)
	}

	if qty.IsNegative() {
		return decimal.Zero
	}

	return qty
}

// RoundToDecimalPrecision rounds the quantity down to the specified decimal precision.
func RoundToDecimalPrecision(quantity float64, decimalPrecision int) float64 {
	rounded, _ := decimal.NewFromFloat(quantity).RoundDown(int32(decimalPrecision)).Float64()

	return rounded
}
