package commission_fee

type CommissionFee interface {
	// Calculate the commission fee for a fill of quantity units at price and returns the fee in quote currency
	Calculate(price, quantity float64) float64
}

type Broker string

const (
	// BrokerPercentage charges commission_rate * notional on every fill
	BrokerPercentage        Broker = "percentage"
	BrokerInteractiveBroker Broker = "interactive_broker"
	BrokerZero              Broker = "zero_commission"
)

var AllBrokers = []any{
	BrokerPercentage,
	BrokerInteractiveBroker,
	BrokerZero,
}

// GetCommissionFeeHandler returns the fee model for broker. The rate only applies to BrokerPercentage;
// a zero rate yields the zero commission model.
func GetCommissionFeeHandler(broker Broker, rate float64) CommissionFee {
	switch broker {
	case BrokerInteractiveBroker:
		return NewInteractiveBrokerCommissionFee()
	case BrokerZero:
		return NewZeroCommissionFee()
	default:
		if rate == 0 {
			return NewZeroCommissionFee()
		}

		return NewPercentageCommissionFee(rate)
	}
}
