package commission_fee

import "math"

type PercentageCommissionFee struct {
	Rate float64
}

func NewPercentageCommissionFee(rate float64) CommissionFee {
	return &PercentageCommissionFee{Rate: rate}
}

func (c *PercentageCommissionFee) Calculate(price, quantity float64) float64 {
	return c.Rate * math.Abs(price*quantity)
}
