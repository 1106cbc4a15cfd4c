package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns one registry so parallel simulator replicas never share
// metric state. A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	StepsTotal      prometheus.Counter
	OrdersSubmitted *prometheus.CounterVec
	FillsTotal      prometheus.Counter
	VolumeTotal     prometheus.Counter
	StepDuration    prometheus.Histogram

	Midprice      prometheus.Gauge
	Spread        prometheus.Gauge
	Imbalance     prometheus.Gauge
	Volatility    prometheus.Gauge
	RestingOrders prometheus.Gauge
	MMInventory   *prometheus.GaugeVec
	MMCash        *prometheus.GaugeVec
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		StepsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "lobsim_steps_total",
			Help: "Total number of simulation steps",
		}),
		OrdersSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lobsim_orders_submitted_total",
			Help: "Orders submitted to the book",
		}, []string{"type", "source"}), // source: flow, mm
		FillsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "lobsim_fills_total",
			Help: "Total number of fills",
		}),
		VolumeTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "lobsim_volume_total",
			Help: "Total matched volume",
		}),
		StepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lobsim_step_duration_seconds",
			Help:    "Wall time spent in one simulation step",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		Midprice: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lobsim_midprice",
			Help: "Current book midprice",
		}),
		Spread: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lobsim_spread",
			Help: "Current book spread",
		}),
		Imbalance: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lobsim_order_book_imbalance",
			Help: "Bid/ask depth imbalance in [-1, 1]",
		}),
		Volatility: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lobsim_volatility",
			Help: "Volatility of the order flow regime",
		}),
		RestingOrders: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lobsim_resting_orders",
			Help: "Number of orders resting in the book",
		}),
		MMInventory: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lobsim_mm_inventory",
			Help: "Market maker inventory",
		}, []string{"mm_id"}),
		MMCash: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lobsim_mm_cash",
			Help: "Market maker cash",
		}, []string{"mm_id"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lobsim_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lobsim_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	return c
}

// WithRuntimeCollectors adds Go runtime and process metrics. Only the
// process-wide server collector should call this.
func (c *Collector) WithRuntimeCollectors() *Collector {
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// StepSample is what the simulator reports after each step.
type StepSample struct {
	Seconds    float64
	Fills      int
	Volume     int64
	Midprice   float64
	HasMid     bool
	Spread     float64
	Imbalance  float64
	Volatility float64
	Resting    int
}

func (c *Collector) ObserveStep(s StepSample) {
	if c == nil {
		return
	}
	c.StepsTotal.Inc()
	c.StepDuration.Observe(s.Seconds)
	c.FillsTotal.Add(float64(s.Fills))
	c.VolumeTotal.Add(float64(s.Volume))
	if s.HasMid {
		c.Midprice.Set(s.Midprice)
		c.Spread.Set(s.Spread)
	}
	c.Imbalance.Set(s.Imbalance)
	c.Volatility.Set(s.Volatility)
	c.RestingOrders.Set(float64(s.Resting))
}

func (c *Collector) ObserveOrder(orderType, source string) {
	if c == nil {
		return
	}
	c.OrdersSubmitted.WithLabelValues(orderType, source).Inc()
}

func (c *Collector) ObserveAccount(mmID string, inventory int64, cash float64) {
	if c == nil {
		return
	}
	c.MMInventory.WithLabelValues(mmID).Set(float64(inventory))
	c.MMCash.WithLabelValues(mmID).Set(cash)
}

func (c *Collector) ObserveRequest(method, route, status string, seconds float64) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(seconds)
}

// Reset clears per-account series after a simulator reset.
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.MMInventory.Reset()
	c.MMCash.Reset()
}
