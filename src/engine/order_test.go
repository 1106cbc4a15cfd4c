package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLimitOrderValidation(t *testing.T) {
	cases := []struct {
		name  string
		price float64
		size  int64
		ts    float64
		field string
	}{
		{"zero size", 100, 0, 0, "size"},
		{"negative size", 100, -5, 0, "size"},
		{"zero price", 0, 10, 0, "price"},
		{"negative price", -1, 10, 0, "price"},
		{"nan price", math.NaN(), 10, 0, "price"},
		{"negative timestamp", 100, 10, -0.5, "timestamp"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLimitOrder(1, SideBuy, tc.price, tc.size, tc.ts)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestNewOrderNegativeLatencyRejected(t *testing.T) {
	_, err := NewMarketOrder(1, SideSell, 10, 0, WithLatency(-0.001))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "latency", verr.Field)
}

func TestNewMarketOrderIgnoresPrice(t *testing.T) {
	order, err := NewMarketOrder(7, SideBuy, 25, 1.5, WithTraderID("trader_3"), WithLatency(0.002))
	require.NoError(t, err)

	assert.Equal(t, TypeMarket, order.Type)
	assert.Equal(t, 0.0, order.Price)
	assert.Equal(t, "trader_3", order.TraderID)
	assert.Equal(t, 0.002, order.Latency)
}

// A cancel carries no size, so no placeholder is needed to pass validation.
func TestNewCancelOrderHasNoSize(t *testing.T) {
	order, err := NewCancelOrder(42, 3.0)
	require.NoError(t, err)

	assert.Equal(t, TypeCancel, order.Type)
	assert.Equal(t, int64(0), order.Size)
	assert.NoError(t, order.Validate())
}

func TestUnknownSideRejected(t *testing.T) {
	_, err := NewLimitOrder(1, OrderSide("HOLD"), 100, 10, 0)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "side", verr.Field)
}

func TestWithTimestampReturnsCopy(t *testing.T) {
	order, err := NewLimitOrder(1, SideBuy, 100, 10, 0.5)
	require.NoError(t, err)

	moved, err := order.WithTimestamp(10.5)
	require.NoError(t, err)
	assert.Equal(t, 10.5, moved.Timestamp)
	assert.Equal(t, 0.5, order.Timestamp)

	_, err = order.WithTimestamp(-1)
	assert.Error(t, err)
}

func TestFillSignedSize(t *testing.T) {
	assert.Equal(t, int64(30), Fill{Side: SideBuy, Size: 30}.SignedSize())
	assert.Equal(t, int64(-30), Fill{Side: SideSell, Size: 30}.SignedSize())
}

func TestTickGridRounding(t *testing.T) {
	grid, err := NewTickGrid(0.01)
	require.NoError(t, err)

	assert.Equal(t, Ticks(10000), grid.ToTicks(100.0))
	assert.Equal(t, Ticks(9996), grid.ToTicks(99.96))
	assert.Equal(t, Ticks(10000), grid.ToTicks(100.005)) // exact half goes to even
	assert.Equal(t, Ticks(10002), grid.ToTicks(100.015))
	assert.Equal(t, 99.96, grid.ToPrice(9996))
	assert.Equal(t, 100.01, grid.Round(100.0149))

	_, err = NewTickGrid(0)
	assert.ErrorIs(t, err, ErrInvalidTickSize)
}
