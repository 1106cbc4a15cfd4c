package engine

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/btree"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultImbalanceDepth = 5
	defaultSnapshotLevels = 10
	btreeDegree           = 32
)

var ErrDuplicateOrderID = errors.New("order id is already resting in the book")

// defaultTradeNamespace seeds deterministic trade ids when no namespace is given.
var defaultTradeNamespace = uuid.MustParse("6f1c3f0e-2a8e-4f4e-9a57-5b0d8c1e7a21")

type indexEntry struct {
	order *RestingOrder
	side  OrderSide
	level *PriceLevel
}

// LimitOrderBook is a single-instrument book with price-time priority.
// It is not safe for concurrent use; one simulation owns one book.
type LimitOrderBook struct {
	grid TickGrid
	bids *btree.BTreeG[*PriceLevel] // sorted descending (highest first)
	asks *btree.BTreeG[*PriceLevel] // sorted ascending (lowest first)

	orders map[int64]indexEntry

	nextOrderID int64
	totalVolume int64
	totalTrades int64
	currentTime float64

	imbalanceDepth int
	tradeNamespace uuid.UUID
	log            zerolog.Logger
}

type BookOption func(*LimitOrderBook)

func WithLogger(log zerolog.Logger) BookOption {
	return func(b *LimitOrderBook) {
		b.log = log
	}
}

// WithImbalanceDepth sets how many levels per side feed OrderBookImbalance.
func WithImbalanceDepth(levels int) BookOption {
	return func(b *LimitOrderBook) {
		if levels > 0 {
			b.imbalanceDepth = levels
		}
	}
}

// WithTradeNamespace scopes generated trade ids, e.g. to one simulation run.
func WithTradeNamespace(ns uuid.UUID) BookOption {
	return func(b *LimitOrderBook) {
		b.tradeNamespace = ns
	}
}

func NewLimitOrderBook(tickSize float64, opts ...BookOption) (*LimitOrderBook, error) {
	grid, err := NewTickGrid(tickSize)
	if err != nil {
		return nil, err
	}

	b := &LimitOrderBook{
		grid: grid,
		bids: btree.NewG(btreeDegree, func(a, b *PriceLevel) bool {
			return a.Price > b.Price
		}),
		asks: btree.NewG(btreeDegree, func(a, b *PriceLevel) bool {
			return a.Price < b.Price
		}),
		orders:         make(map[int64]indexEntry),
		nextOrderID:    1,
		imbalanceDepth: defaultImbalanceDepth,
		tradeNamespace: defaultTradeNamespace,
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// SubmitOrder validates the order and dispatches it by type. Validation
// failures return before the book is touched.
func (b *LimitOrderBook) SubmitOrder(order Order) ([]Fill, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	switch order.Type {
	case TypeCancel:
		b.CancelOrder(order.ID)
		return nil, nil
	case TypeMarket:
		b.reserveID(order.ID)
		fills, unfilled := b.match(order, order.Size, 0, false)
		if unfilled > 0 {
			b.log.Debug().
				Int64("order_id", order.ID).
				Int64("requested", order.Size).
				Int64("dropped", unfilled).
				Msg("Market order exhausted opposite side")
		}
		return fills, nil
	default:
		return b.submitLimit(order)
	}
}

func (b *LimitOrderBook) submitLimit(order Order) ([]Fill, error) {
	price := b.grid.ToTicks(order.Price)
	if price <= 0 {
		return nil, &ValidationError{Field: "price", Reason: fmt.Sprintf("%v rounds to %d ticks", order.Price, price)}
	}
	if _, exists := b.orders[order.ID]; exists {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateOrderID, order.ID)
	}
	b.reserveID(order.ID)

	fills, remaining := b.match(order, order.Size, price, true)
	if remaining > 0 {
		b.rest(&RestingOrder{Order: order, Remaining: remaining, Ticks: price})
	}
	return fills, nil
}

// reserveID keeps book-assigned ids ahead of every id the book has seen.
func (b *LimitOrderBook) reserveID(id int64) {
	if id >= b.nextOrderID {
		b.nextOrderID = id + 1
	}
}

func (b *LimitOrderBook) rest(order *RestingOrder) {
	tree := b.tree(order.Order.Side)
	level, ok := tree.Get(&PriceLevel{Price: order.Ticks})
	if !ok {
		level = NewPriceLevel(order.Ticks)
		tree.ReplaceOrInsert(level)
	}
	level.AddOrder(order)
	b.orders[order.Order.ID] = indexEntry{order: order, side: order.Order.Side, level: level}
}

// CancelOrder removes a resting order. Unknown ids return false.
func (b *LimitOrderBook) CancelOrder(orderID int64) bool {
	entry, exists := b.orders[orderID]
	if !exists {
		b.log.Debug().Int64("order_id", orderID).Msg("Cancel ignored: order not resting")
		return false
	}

	entry.level.RemoveOrder(orderID)
	// edge case: remove empty price level
	if entry.level.Empty() {
		b.tree(entry.side).Delete(entry.level)
	}
	delete(b.orders, orderID)
	return true
}

func (b *LimitOrderBook) tree(side OrderSide) *btree.BTreeG[*PriceLevel] {
	if side == SideBuy {
		return b.bids
	}
	return b.asks
}

func (b *LimitOrderBook) bestLevel(side OrderSide) (*PriceLevel, bool) {
	return b.tree(side).Min()
}

func (b *LimitOrderBook) BestBid() (float64, bool) {
	level, ok := b.bestLevel(SideBuy)
	if !ok {
		return 0, false
	}
	return b.grid.ToPrice(level.Price), true
}

func (b *LimitOrderBook) BestAsk() (float64, bool) {
	level, ok := b.bestLevel(SideSell)
	if !ok {
		return 0, false
	}
	return b.grid.ToPrice(level.Price), true
}

func (b *LimitOrderBook) Midprice() (float64, bool) {
	bid, hasBid := b.BestBid()
	ask, hasAsk := b.BestAsk()
	if !hasBid || !hasAsk {
		return 0, false
	}
	return (bid + ask) / 2, true
}

func (b *LimitOrderBook) Spread() (float64, bool) {
	bid, hasBid := b.bestLevel(SideBuy)
	ask, hasAsk := b.bestLevel(SideSell)
	if !hasBid || !hasAsk {
		return 0, false
	}
	return b.grid.ToPrice(ask.Price - bid.Price), true
}

func (b *LimitOrderBook) depth(side OrderSide, levels int) int64 {
	var total int64
	count := 0
	b.tree(side).Ascend(func(level *PriceLevel) bool {
		if count >= levels {
			return false
		}
		total += level.TotalSize()
		count++
		return true
	})
	return total
}

// OrderBookImbalance is (bid depth - ask depth) / (bid depth + ask depth) over
// the configured number of levels per side, or 0 when both are empty.
func (b *LimitOrderBook) OrderBookImbalance() float64 {
	bidDepth := b.depth(SideBuy, b.imbalanceDepth)
	askDepth := b.depth(SideSell, b.imbalanceDepth)
	if bidDepth+askDepth == 0 {
		return 0
	}
	return float64(bidDepth-askDepth) / float64(bidDepth+askDepth)
}

type LevelSize struct {
	Price float64 `json:"price"`
	Size  int64   `json:"size"`
}

// Depth lists aggregated levels best-first on each side.
type Depth struct {
	Bids []LevelSize `json:"bids"`
	Asks []LevelSize `json:"asks"`
}

func (b *LimitOrderBook) BookDepth(levels int) Depth {
	return Depth{
		Bids: b.levels(SideBuy, levels),
		Asks: b.levels(SideSell, levels),
	}
}

func (b *LimitOrderBook) levels(side OrderSide, levels int) []LevelSize {
	out := make([]LevelSize, 0, max(levels, 0))
	b.tree(side).Ascend(func(level *PriceLevel) bool {
		if len(out) >= levels {
			return false
		}
		out = append(out, LevelSize{Price: b.grid.ToPrice(level.Price), Size: level.TotalSize()})
		return true
	})
	return out
}

func (b *LimitOrderBook) QueuePosition(orderID int64) (QueuePosition, bool) {
	entry, exists := b.orders[orderID]
	if !exists {
		return QueuePosition{}, false
	}
	return entry.level.QueuePosition(orderID)
}

// Order returns a copy of a resting order.
func (b *LimitOrderBook) Order(orderID int64) (RestingOrder, bool) {
	entry, exists := b.orders[orderID]
	if !exists {
		return RestingOrder{}, false
	}
	return *entry.order, true
}

// BookSnapshot bundles the top-of-book queries with the running counters.
type BookSnapshot struct {
	Timestamp   float64 `json:"timestamp"`
	BestBid     float64 `json:"best_bid"`
	HasBid      bool    `json:"has_bid"`
	BestAsk     float64 `json:"best_ask"`
	HasAsk      bool    `json:"has_ask"`
	Midprice    float64 `json:"midprice"`
	Spread      float64 `json:"spread"`
	Imbalance   float64 `json:"imbalance"`
	Depth       Depth   `json:"depth"`
	TotalVolume int64   `json:"total_volume"`
	TotalTrades int64   `json:"total_trades"`
	NumOrders   int     `json:"num_orders"`
}

func (b *LimitOrderBook) StateSnapshot() BookSnapshot {
	snap := BookSnapshot{
		Timestamp:   b.currentTime,
		Imbalance:   b.OrderBookImbalance(),
		Depth:       b.BookDepth(defaultSnapshotLevels),
		TotalVolume: b.totalVolume,
		TotalTrades: b.totalTrades,
		NumOrders:   len(b.orders),
	}
	snap.BestBid, snap.HasBid = b.BestBid()
	snap.BestAsk, snap.HasAsk = b.BestAsk()
	snap.Midprice, _ = b.Midprice()
	snap.Spread, _ = b.Spread()
	return snap
}

// NextOrderID hands out a fresh book-assigned id.
func (b *LimitOrderBook) NextOrderID() int64 {
	id := b.nextOrderID
	b.nextOrderID++
	return id
}

func (b *LimitOrderBook) TotalVolume() int64 {
	return b.totalVolume
}

func (b *LimitOrderBook) TotalTrades() int64 {
	return b.totalTrades
}

func (b *LimitOrderBook) RestingOrders() int {
	return len(b.orders)
}

func (b *LimitOrderBook) CurrentTime() float64 {
	return b.currentTime
}

func (b *LimitOrderBook) SetCurrentTime(t float64) {
	b.currentTime = t
}

func (b *LimitOrderBook) AdvanceTime(d float64) {
	b.currentTime += d
}

func (b *LimitOrderBook) TickSize() float64 {
	return b.grid.Size()
}

func (b *LimitOrderBook) RoundPrice(price float64) float64 {
	return b.grid.Round(price)
}

func (b *LimitOrderBook) Grid() TickGrid {
	return b.grid
}

func (b *LimitOrderBook) tradeID(seq int64) string {
	return uuid.NewSHA1(b.tradeNamespace, []byte(strconv.FormatInt(seq, 10))).String()
}
