package types

import (
	"fmt"
	"time"
)

type SignalType string

const (
	// SignalTypeBuy opens a long position if none is open
	SignalTypeBuy SignalType = "BUY"
	// SignalTypeSell closes the open position
	SignalTypeSell SignalType = "SELL"
	// SignalTypeHold takes no action
	SignalTypeHold SignalType = "HOLD"
)

// Valid reports whether the signal type is one of BUY, SELL or HOLD.
func (s SignalType) Valid() bool {
	switch s {
	case SignalTypeBuy, SignalTypeSell, SignalTypeHold:
		return true
	default:
		return false
	}
}

type Signal struct {
	// Time is the timestamp of the bar the signal belongs to.
	// A zero time means the bar at the signal's index.
	Time time.Time `json:"time" yaml:"time"`
	// Type is the type of the signal
	Type SignalType `json:"type" yaml:"type"`
	// Reason is the reason for the signal
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Hold returns a HOLD signal for the given bar.
func Hold(t time.Time) Signal {
	return Signal{Time: t, Type: SignalTypeHold}
}

func (s Signal) String() string {
	if s.Reason == "" {
		return string(s.Type)
	}

	return fmt.Sprintf("%s (%s)", s.Type, s.Reason)
}
