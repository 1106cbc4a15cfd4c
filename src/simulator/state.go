package simulator

import "math"

// MarketState is the per-step record. Midprice and Spread fall back to the
// configured initial values while a side of the book is empty.
type MarketState struct {
	Timestamp   float64 `json:"timestamp"`
	Midprice    float64 `json:"midprice"`
	Spread      float64 `json:"spread"`
	BestBid     float64 `json:"best_bid"`
	HasBid      bool    `json:"has_bid"`
	BestAsk     float64 `json:"best_ask"`
	HasAsk      bool    `json:"has_ask"`
	Imbalance   float64 `json:"imbalance"`
	Volatility  float64 `json:"volatility"`
	TotalVolume int64   `json:"total_volume"`
	NumTrades   int64   `json:"num_trades"`
}

// Summary aggregates a RunSimulation call over the full state history.
type Summary struct {
	Duration      float64      `json:"duration"`
	NumSteps      int          `json:"num_steps"`
	TotalTrades   int64        `json:"total_trades"`
	TotalVolume   int64        `json:"total_volume"`
	NumFills      int          `json:"num_fills"`
	AvgMidprice   float64      `json:"avg_midprice"`
	MidpriceStd   float64      `json:"midprice_std"`
	AvgSpread     float64      `json:"avg_spread"`
	SpreadStd     float64      `json:"spread_std"`
	AvgImbalance  float64      `json:"avg_imbalance"`
	AvgVolatility float64      `json:"avg_volatility"`
	FinalState    *MarketState `json:"final_state"`
}

func summarize(states []MarketState) Summary {
	var s Summary
	if len(states) == 0 {
		return s
	}

	mids := make([]float64, len(states))
	spreads := make([]float64, len(states))
	var imbalance, vol float64
	for i, st := range states {
		mids[i] = st.Midprice
		spreads[i] = st.Spread
		imbalance += st.Imbalance
		vol += st.Volatility
	}
	n := float64(len(states))

	s.AvgMidprice, s.MidpriceStd = meanStd(mids)
	s.AvgSpread, s.SpreadStd = meanStd(spreads)
	s.AvgImbalance = imbalance / n
	s.AvgVolatility = vol / n
	final := states[len(states)-1]
	s.FinalState = &final
	return s
}

// meanStd returns the mean and population standard deviation.
func meanStd(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / float64(len(xs)))
}
