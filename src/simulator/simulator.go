package simulator

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lob-sim/src/engine"
	"lob-sim/src/flow"
	"lob-sim/src/metrics"
)

var ErrInvalidDuration = errors.New("step duration must be finite and positive")

const liquidityProvider = "liquidity_provider"

// runNamespace scopes trade ids per seed so two runs with different seeds
// never share trade ids.
var runNamespace = uuid.MustParse("0d7c6a52-4a51-4c8e-b1c5-3f1f54a0c9d3")

// StepObserver receives the state and fills of every completed step.
type StepObserver func(state MarketState, fills []engine.Fill)

// Simulator owns one book, one flow generator and the market maker ledgers.
// It is single-threaded; callers serialise access.
type Simulator struct {
	cfg  Config
	seed uint64

	book      *engine.LimitOrderBook
	generator *flow.Generator

	currentTime float64
	history     []MarketState

	accounts map[string]*account
	owners   map[int64]string // resting order id -> market maker

	observers []StepObserver
	metrics   *metrics.Collector
	log       zerolog.Logger
}

type Option func(*Simulator)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Simulator) {
		s.log = log
	}
}

// WithMetrics attaches a collector. Each replica should get its own.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Simulator) {
		s.metrics = c
	}
}

func WithStepObserver(fn StepObserver) Option {
	return func(s *Simulator) {
		s.observers = append(s.observers, fn)
	}
}

func New(cfg Config, opts ...Option) (*Simulator, error) {
	if cfg.Flow.TickSize == 0 {
		cfg.Flow.TickSize = cfg.TickSize
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Simulator{
		cfg:  cfg,
		seed: cfg.Seed,
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	gen, err := flow.NewGenerator(cfg.Flow, cfg.Seed,
		flow.WithIDSource(func() int64 { return s.book.NextOrderID() }),
		flow.WithLogger(s.log.With().Str("component", "flow").Logger()),
	)
	if err != nil {
		return nil, err
	}
	s.generator = gen

	if err := s.rebuild(); err != nil {
		return nil, err
	}
	s.log.Info().
		Uint64("seed", s.seed).
		Float64("midprice", cfg.InitialMidprice).
		Float64("spread", cfg.InitialSpread).
		Int("resting", s.book.RestingOrders()).
		Msg("Simulator initialised")
	return s, nil
}

// rebuild replaces the book and ledgers and seeds the liquidity ladder.
func (s *Simulator) rebuild() error {
	book, err := engine.NewLimitOrderBook(s.cfg.TickSize,
		engine.WithLogger(s.log.With().Str("component", "book").Logger()),
		engine.WithImbalanceDepth(s.cfg.ImbalanceDepth),
		engine.WithTradeNamespace(uuid.NewSHA1(runNamespace, []byte(strconv.FormatUint(s.seed, 10)))),
	)
	if err != nil {
		return err
	}
	s.book = book
	s.currentTime = 0
	s.history = nil
	s.accounts = make(map[string]*account)
	s.owners = make(map[int64]string)
	s.metrics.Reset()
	return s.seedLadder()
}

// seedLadder places symmetric resting liquidity around the initial mid,
// growing in size away from the touch.
func (s *Simulator) seedLadder() error {
	half := s.cfg.InitialSpread / 2
	for i := 0; i < s.cfg.LadderLevels; i++ {
		size := s.cfg.LadderBaseSize + int64(i)*s.cfg.LadderSizeStep
		offset := half + float64(i)*s.cfg.TickSize

		for _, q := range []struct {
			side  engine.OrderSide
			price float64
		}{
			{engine.SideBuy, s.cfg.InitialMidprice - offset},
			{engine.SideSell, s.cfg.InitialMidprice + offset},
		} {
			if q.price <= 0 {
				continue
			}
			order, err := engine.NewLimitOrder(s.book.NextOrderID(), q.side, q.price, size, 0,
				engine.WithTraderID(liquidityProvider))
			if err != nil {
				return fmt.Errorf("seed ladder level %d: %w", i, err)
			}
			if _, err := s.book.SubmitOrder(order); err != nil {
				return fmt.Errorf("seed ladder level %d: %w", i, err)
			}
		}
	}
	return nil
}

// Step generates and submits one window of exogenous flow, then advances the
// clock and records the resulting MarketState.
func (s *Simulator) Step(duration float64) ([]engine.Fill, error) {
	if !(duration > 0) || math.IsInf(duration, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDuration, duration)
	}
	started := time.Now()

	mid, ok := s.book.Midprice()
	if !ok {
		mid = s.cfg.InitialMidprice
	}
	spread, ok := s.book.Spread()
	if !ok {
		spread = s.cfg.InitialSpread
	}

	orders, _ := s.generator.GenerateOrderFlowAt(s.currentTime, duration, mid, spread)

	var fills []engine.Fill
	for _, order := range orders {
		got, err := s.book.SubmitOrder(order)
		if err != nil {
			s.log.Warn().Err(err).Int64("order_id", order.ID).Msg("Generated order rejected")
			continue
		}
		s.metrics.ObserveOrder(string(order.Type), "flow")
		s.reconcile(got)
		fills = append(fills, got...)
	}

	s.currentTime += duration
	s.book.SetCurrentTime(s.currentTime)

	state := s.MarketState()
	s.history = append(s.history, state)

	for _, acct := range s.accounts {
		acct.pnl = append(acct.pnl, s.pnl(acct, true))
		s.checkInventory(acct)
		s.metrics.ObserveAccount(acct.id, acct.inventory, acct.cash)
	}

	var volume int64
	for _, f := range fills {
		volume += f.Size
	}
	s.metrics.ObserveStep(metrics.StepSample{
		Seconds:    time.Since(started).Seconds(),
		Fills:      len(fills),
		Volume:     volume,
		Midprice:   state.Midprice,
		HasMid:     state.HasBid && state.HasAsk,
		Spread:     state.Spread,
		Imbalance:  state.Imbalance,
		Volatility: state.Volatility,
		Resting:    s.book.RestingOrders(),
	})
	for _, observe := range s.observers {
		observe(state, fills)
	}

	s.log.Debug().
		Float64("time", s.currentTime).
		Int("orders", len(orders)).
		Int("fills", len(fills)).
		Int64("volume", volume).
		Float64("midprice", state.Midprice).
		Msg("Step complete")
	return fills, nil
}

// RunSimulation steps floor(duration/timeStep) times; a non-positive
// timeStep uses the configured one.
func (s *Simulator) RunSimulation(duration, timeStep float64) (Summary, error) {
	if timeStep <= 0 {
		timeStep = s.cfg.TimeStep
	}
	if !(duration >= 0) || math.IsInf(duration, 0) {
		return Summary{}, fmt.Errorf("%w: %v", ErrInvalidDuration, duration)
	}
	steps := int(duration / timeStep)

	numFills := 0
	for i := 0; i < steps; i++ {
		fills, err := s.Step(timeStep)
		if err != nil {
			return Summary{}, err
		}
		numFills += len(fills)
	}

	summary := summarize(s.history)
	summary.Duration = duration
	summary.NumSteps = steps
	summary.NumFills = numFills
	summary.TotalTrades = s.book.TotalTrades()
	summary.TotalVolume = s.book.TotalVolume()

	s.log.Info().
		Int("steps", steps).
		Int64("trades", summary.TotalTrades).
		Int64("volume", summary.TotalVolume).
		Float64("avg_midprice", summary.AvgMidprice).
		Float64("avg_spread", summary.AvgSpread).
		Msg("Simulation run finished")
	return summary, nil
}

func (s *Simulator) MarketState() MarketState {
	state := MarketState{
		Timestamp:   s.currentTime,
		Imbalance:   s.book.OrderBookImbalance(),
		Volatility:  s.generator.CurrentVolatility(),
		TotalVolume: s.book.TotalVolume(),
		NumTrades:   s.book.TotalTrades(),
	}
	state.BestBid, state.HasBid = s.book.BestBid()
	state.BestAsk, state.HasAsk = s.book.BestAsk()

	var ok bool
	if state.Midprice, ok = s.book.Midprice(); !ok {
		state.Midprice = s.cfg.InitialMidprice
	}
	if state.Spread, ok = s.book.Spread(); !ok {
		state.Spread = s.cfg.InitialSpread
	}
	return state
}

func (s *Simulator) StateHistory() []MarketState {
	return slices.Clone(s.history)
}

func (s *Simulator) BookSnapshot() engine.BookSnapshot {
	return s.book.StateSnapshot()
}

func (s *Simulator) QueuePosition(orderID int64) (engine.QueuePosition, bool) {
	return s.book.QueuePosition(orderID)
}

// Book exposes the live book. Mutating it directly bypasses the ledgers.
func (s *Simulator) Book() *engine.LimitOrderBook {
	return s.book
}

func (s *Simulator) Generator() *flow.Generator {
	return s.generator
}

func (s *Simulator) CurrentTime() float64 {
	return s.currentTime
}

func (s *Simulator) Seed() uint64 {
	return s.seed
}

func (s *Simulator) Config() Config {
	return s.cfg
}

// Reset rebuilds everything from the current seed. There is no partial reset.
func (s *Simulator) Reset() error {
	return s.ResetWithSeed(s.seed)
}

func (s *Simulator) ResetWithSeed(seed uint64) error {
	s.seed = seed
	s.generator.Reseed(seed)
	if err := s.rebuild(); err != nil {
		return err
	}
	s.log.Info().Uint64("seed", seed).Msg("Simulator reset")
	return nil
}
