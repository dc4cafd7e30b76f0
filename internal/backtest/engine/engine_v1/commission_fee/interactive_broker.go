package commission_fee

import "math"

const (
	ibPerShare   = 0.005
	ibMinimum    = 1.0
	ibMaxPercent = 0.01
)

// InteractiveBrokerCommissionFee follows the fixed tier: $0.005 per share, at least $1.00
// and at most 1% of the trade value.
type InteractiveBrokerCommissionFee struct {
}

func NewInteractiveBrokerCommissionFee() CommissionFee {
	return &InteractiveBrokerCommissionFee{}
}

func (c *InteractiveBrokerCommissionFee) Calculate(price, quantity float64) float64 {
	quantity = math.Abs(quantity)
	if quantity == 0 {
		return 0
	}

	fee := math.Max(ibPerShare*quantity, ibMinimum)

	return math.Min(fee, ibMaxPercent*math.Abs(price)*quantity)
}
