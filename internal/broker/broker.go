package broker

import "context"

// Side is the order direction.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Broker submits orders and reports acceptance. The engine only ever uses
// market orders; price is whatever the book gives.
type Broker interface {
	// SubmitOrder places a market order and returns the broker's order ID.
	SubmitOrder(ctx context.Context, side Side, size int) (string, error)
}
