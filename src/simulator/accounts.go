package simulator

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"lob-sim/src/engine"
)

var ErrAccountExists = errors.New("market maker already registered")

type account struct {
	id          string
	initialCash float64
	cash        float64
	inventory   int64
	orders      map[int64]struct{} // resting order ids
	pnl         []float64
}

func newAccount(id string, cash float64) *account {
	return &account{
		id:          id,
		initialCash: cash,
		cash:        cash,
		orders:      make(map[int64]struct{}),
		pnl:         []float64{0},
	}
}

// book applies one execution. bought is true when the account took the
// BUY side of the trade.
func (a *account) book(bought bool, price float64, size int64) {
	notional := price * float64(size)
	if bought {
		a.inventory += size
		a.cash -= notional
	} else {
		a.inventory -= size
		a.cash += notional
	}
}

// AccountState is a read-only view of one market maker's ledger.
type AccountState struct {
	ID          string    `json:"mm_id"`
	Inventory   int64     `json:"inventory"`
	Cash        float64   `json:"cash"`
	InitialCash float64   `json:"initial_cash"`
	PnL         float64   `json:"pnl"`
	NumOrders   int       `json:"num_orders"`
	OrderIDs    []int64   `json:"order_ids"`
	PnLHistory  []float64 `json:"pnl_history"`
}

// reconcile books every fill whose passive order belongs to an account.
// Aggressor fills never touch a ledger, even when a market maker submitted
// the aggressing order.
func (s *Simulator) reconcile(fills []engine.Fill) {
	for _, f := range fills {
		owner, ok := s.owners[f.PassiveOrderID]
		if !ok {
			continue
		}
		acct := s.accounts[owner]
		// the passive side is the opposite of the aggressor's
		acct.book(f.Side == engine.SideSell, f.Price, f.Size)

		if _, resting := s.book.Order(f.PassiveOrderID); !resting {
			delete(s.owners, f.PassiveOrderID)
			delete(acct.orders, f.PassiveOrderID)
		}
	}
}

func (s *Simulator) RegisterMarketMaker(mmID string, initialCash float64) error {
	if _, exists := s.accounts[mmID]; exists {
		return ErrAccountExists
	}
	s.accounts[mmID] = newAccount(mmID, initialCash)
	s.log.Info().Str("mm_id", mmID).Float64("cash", initialCash).Msg("Market maker registered")
	return nil
}

func (s *Simulator) accountFor(mmID string) *account {
	acct, ok := s.accounts[mmID]
	if !ok {
		acct = newAccount(mmID, s.cfg.DefaultInitialCash)
		s.accounts[mmID] = acct
		s.log.Info().Str("mm_id", mmID).Float64("cash", acct.cash).Msg("Market maker auto-registered")
	}
	return acct
}

// SubmitMMOrder places a limit order for mmID at the current simulation
// time and returns its book id. Unknown market makers are registered with
// the default cash. A rejected order leaves the book, the id allocator and
// the accounts untouched.
func (s *Simulator) SubmitMMOrder(mmID string, side engine.OrderSide, price float64, size int64) (int64, error) {
	order, err := engine.NewLimitOrder(0, side, price, size, s.currentTime, engine.WithTraderID(mmID))
	if err != nil {
		return 0, err
	}
	if ticks := s.book.Grid().ToTicks(price); ticks <= 0 {
		return 0, &engine.ValidationError{Field: "price", Reason: fmt.Sprintf("%v rounds to %d ticks", price, ticks)}
	}
	order.ID = s.book.NextOrderID()

	fills, err := s.book.SubmitOrder(order)
	if err != nil {
		return 0, err
	}
	acct := s.accountFor(mmID)
	s.metrics.ObserveOrder(string(engine.TypeLimit), "mm")

	if _, resting := s.book.Order(order.ID); resting {
		s.owners[order.ID] = mmID
		acct.orders[order.ID] = struct{}{}
	}
	s.reconcile(fills)
	s.checkInventory(acct)
	s.metrics.ObserveAccount(mmID, acct.inventory, acct.cash)

	s.log.Debug().
		Str("mm_id", mmID).
		Int64("order_id", order.ID).
		Str("side", string(side)).
		Float64("price", order.Price).
		Int64("size", size).
		Int("fills", len(fills)).
		Msg("Market maker order submitted")
	return order.ID, nil
}

// CancelMMOrder cancels one of mmID's resting orders. Orders owned by
// someone else, or no longer resting, return false.
func (s *Simulator) CancelMMOrder(mmID string, orderID int64) bool {
	acct, ok := s.accounts[mmID]
	if !ok {
		return false
	}
	if _, owned := acct.orders[orderID]; !owned {
		return false
	}
	if !s.book.CancelOrder(orderID) {
		return false
	}
	delete(acct.orders, orderID)
	delete(s.owners, orderID)
	s.metrics.ObserveOrder(string(engine.TypeCancel), "mm")
	return true
}

// MMPnL is cash, plus inventory at the current midprice when markToMarket is
// set and the book has a midprice. Unknown ids yield 0.
func (s *Simulator) MMPnL(mmID string, markToMarket bool) float64 {
	acct, ok := s.accounts[mmID]
	if !ok {
		return 0
	}
	return s.pnl(acct, markToMarket)
}

func (s *Simulator) pnl(acct *account, markToMarket bool) float64 {
	pnl := acct.cash
	if markToMarket {
		if mid, ok := s.book.Midprice(); ok {
			pnl += float64(acct.inventory) * mid
		}
	}
	return pnl
}

func (s *Simulator) MMState(mmID string) (AccountState, bool) {
	acct, ok := s.accounts[mmID]
	if !ok {
		return AccountState{}, false
	}
	ids := slices.Sorted(maps.Keys(acct.orders))
	return AccountState{
		ID:          acct.id,
		Inventory:   acct.inventory,
		Cash:        acct.cash,
		InitialCash: acct.initialCash,
		PnL:         s.pnl(acct, true),
		NumOrders:   len(ids),
		OrderIDs:    ids,
		PnLHistory:  slices.Clone(acct.pnl),
	}, true
}

// MarketMakers lists registered ids in sorted order.
func (s *Simulator) MarketMakers() []string {
	return slices.Sorted(maps.Keys(s.accounts))
}

func (s *Simulator) checkInventory(acct *account) {
	limit := s.cfg.InventoryAlert
	if limit <= 0 {
		return
	}
	if acct.inventory > limit || acct.inventory < -limit {
		s.log.Warn().
			Str("mm_id", acct.id).
			Int64("inventory", acct.inventory).
			Int64("threshold", limit).
			Msg("Inventory exceeds alert threshold")
	}
}
