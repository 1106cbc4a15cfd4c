package engine

// match walks the opposite side best price first, consuming resting orders
// in arrival order until the aggressor is exhausted, the side is empty, or
// (when hasLimit) the best opposite price is no longer marketable.
// It returns the fills and the aggressor's unmatched size.
func (b *LimitOrderBook) match(aggressor Order, remaining int64, limit Ticks, hasLimit bool) ([]Fill, int64) {
	opposite := b.tree(aggressor.Side.Opposite())
	var fills []Fill

	for remaining > 0 {
		level, ok := opposite.Min()
		if !ok {
			break
		}
		if hasLimit && !marketable(aggressor.Side, limit, level.Price) {
			break
		}

		for remaining > 0 && !level.Empty() {
			head := level.Head()
			qty := min(remaining, head.Remaining)

			b.totalTrades++
			b.totalVolume += qty
			fills = append(fills, Fill{
				TradeID:          b.tradeID(b.totalTrades),
				AggressorOrderID: aggressor.ID,
				PassiveOrderID:   head.Order.ID,
				Side:             aggressor.Side,
				Price:            b.grid.ToPrice(level.Price),
				PriceTicks:       level.Price,
				Size:             qty,
				Timestamp:        aggressor.Timestamp,
			})

			remaining -= qty
			if consumed, done := level.fill(qty); done {
				delete(b.orders, consumed.Order.ID)
			}
		}

		// edge case: remove empty price level
		if level.Empty() {
			opposite.Delete(level)
		}
	}

	if len(fills) > 0 {
		b.log.Trace().
			Int64("order_id", aggressor.ID).
			Str("side", string(aggressor.Side)).
			Str("type", string(aggressor.Type)).
			Int("fills", len(fills)).
			Int64("remaining", remaining).
			Msg("Order matched")
	}
	return fills, remaining
}

func marketable(side OrderSide, limit, opposite Ticks) bool {
	if side == SideBuy {
		return limit >= opposite
	}
	return limit <= opposite
}
