package models

import "lob-sim/src/simulator"

type StepRequest struct {
	Duration float64 `json:"duration"` // simulated seconds per step, 0 uses the configured time step
	Steps    int     `json:"steps"`    // 0 means 1
}

type StepResponse struct {
	Steps       int                   `json:"steps"`
	NumFills    int                   `json:"num_fills"`
	Volume      int64                 `json:"volume"`
	SignedFlow  int64                 `json:"signed_flow"` // buy volume minus sell volume
	Fills       []FillInfo            `json:"fills,omitempty"`
	State       simulator.MarketState `json:"state"`
	TotalImpact float64               `json:"total_impact"`
}

type FillInfo struct {
	TradeID          string  `json:"trade_id"`
	AggressorOrderID int64   `json:"aggressor_order_id"`
	PassiveOrderID   int64   `json:"passive_order_id"`
	Side             string  `json:"side"`
	Price            float64 `json:"price"`
	Size             int64   `json:"size"`
	Timestamp        float64 `json:"timestamp"`
}

type ResetRequest struct {
	Seed *uint64 `json:"seed,omitempty"`
}

type ResetResponse struct {
	Seed  uint64                `json:"seed"`
	State simulator.MarketState `json:"state"`
}

type HistoryResponse struct {
	Count  int                     `json:"count"`
	States []simulator.MarketState `json:"states"`
}

type OrderBookResponse struct {
	Timestamp float64          `json:"timestamp"` // simulation time
	Bids      []PriceLevelInfo `json:"bids"`      // sorted descending (highest first)
	Asks      []PriceLevelInfo `json:"asks"`      // sorted ascending (lowest first)
	Imbalance float64          `json:"imbalance"`
}

type PriceLevelInfo struct {
	Price float64 `json:"price"`
	Size  int64   `json:"size"` // aggregated size at this price
}

type QueuePositionResponse struct {
	OrderID   int64 `json:"order_id"`
	Position  int   `json:"position"`   // zero-based
	SizeAhead int64 `json:"size_ahead"` // includes the order itself
	Remaining int64 `json:"remaining"`
}

type ImpactResponse struct {
	Model      string  `json:"model"`
	Time       float64 `json:"time"`
	Temporary  float64 `json:"temporary_impact"`
	Permanent  float64 `json:"permanent_impact"`
	Total      float64 `json:"total_impact"`
	NumTrades  int     `json:"num_trades"`
	LastUpdate float64 `json:"last_update"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	SimTime       float64 `json:"sim_time"`
	RestingOrders int     `json:"resting_orders"`
	Seed          uint64  `json:"seed"`
}
