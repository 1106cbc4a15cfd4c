package engine

import (
	"fmt"
	"math"
)

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

func (s OrderSide) valid() bool {
	return s == SideBuy || s == SideSell
}

type OrderType string

const (
	TypeLimit  OrderType = "LIMIT"
	TypeMarket OrderType = "MARKET"
	TypeCancel OrderType = "CANCEL"
)

// Order is one instruction to the book. Build it with NewLimitOrder,
// NewMarketOrder or NewCancelOrder; the value is never mutated afterwards.
//
// Price is only meaningful for LIMIT orders and Size only for LIMIT and MARKET.
// A CANCEL order carries neither.
type Order struct {
	ID        int64
	Side      OrderSide
	Type      OrderType
	Price     float64
	Size      int64
	Timestamp float64
	TraderID  string
	Latency   float64
}

type OrderOption func(*Order)

func WithTraderID(traderID string) OrderOption {
	return func(o *Order) {
		o.TraderID = traderID
	}
}

// WithLatency attaches a simulated submission latency in seconds. It is carried
// along for callers and never acted upon by the book.
func WithLatency(latency float64) OrderOption {
	return func(o *Order) {
		o.Latency = latency
	}
}

func NewLimitOrder(id int64, side OrderSide, price float64, size int64, timestamp float64, opts ...OrderOption) (Order, error) {
	return build(Order{
		ID:        id,
		Side:      side,
		Type:      TypeLimit,
		Price:     price,
		Size:      size,
		Timestamp: timestamp,
	}, opts)
}

func NewMarketOrder(id int64, side OrderSide, size int64, timestamp float64, opts ...OrderOption) (Order, error) {
	return build(Order{
		ID:        id,
		Side:      side,
		Type:      TypeMarket,
		Size:      size,
		Timestamp: timestamp,
	}, opts)
}

// NewCancelOrder targets the resting order with the given id.
func NewCancelOrder(id int64, timestamp float64, opts ...OrderOption) (Order, error) {
	return build(Order{
		ID:        id,
		Type:      TypeCancel,
		Timestamp: timestamp,
	}, opts)
}

func build(o Order, opts []OrderOption) (Order, error) {
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.Validate(); err != nil {
		return Order{}, err
	}
	return o, nil
}

// WithTimestamp returns a copy of the order stamped at ts.
func (o Order) WithTimestamp(ts float64) (Order, error) {
	o.Timestamp = ts
	if err := o.Validate(); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (o Order) Validate() error {
	if !finite(o.Timestamp) || o.Timestamp < 0 {
		return &ValidationError{Field: "timestamp", Reason: fmt.Sprintf("must be a finite value >= 0, got %v", o.Timestamp)}
	}
	if !finite(o.Latency) || o.Latency < 0 {
		return &ValidationError{Field: "latency", Reason: fmt.Sprintf("must be a finite value >= 0, got %v", o.Latency)}
	}

	switch o.Type {
	case TypeCancel:
		return nil
	case TypeLimit, TypeMarket:
	default:
		return &ValidationError{Field: "order_type", Reason: fmt.Sprintf("unknown order type %q", o.Type)}
	}

	if !o.Side.valid() {
		return &ValidationError{Field: "side", Reason: fmt.Sprintf("must be BUY or SELL, got %q", o.Side)}
	}
	if o.Size <= 0 {
		return &ValidationError{Field: "size", Reason: fmt.Sprintf("must be positive for %s orders, got %d", o.Type, o.Size)}
	}
	// edge case: price is ignored for MARKET orders
	if o.Type == TypeLimit && (!finite(o.Price) || o.Price <= 0) {
		return &ValidationError{Field: "price", Reason: fmt.Sprintf("must be positive for LIMIT orders, got %v", o.Price)}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Fill is one matched quantity between an aggressor and a resting order.
// Price is always the resting order's price.
type Fill struct {
	TradeID          string
	AggressorOrderID int64
	PassiveOrderID   int64
	Side             OrderSide
	Price            float64
	PriceTicks       Ticks
	Size             int64
	Timestamp        float64
}

// SignedSize is positive for buyer-initiated fills and negative otherwise.
func (f Fill) SignedSize() int64 {
	if f.Side == SideSell {
		return -f.Size
	}
	return f.Size
}

// RestingOrder is an order sitting in a PriceLevel with its unfilled size.
type RestingOrder struct {
	Order     Order
	Remaining int64
	Ticks     Ticks
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "Invalid order: " + e.Field + " " + e.Reason
}
