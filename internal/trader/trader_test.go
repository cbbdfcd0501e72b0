package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func sampleState() State {
	return State{
		Symbol:            "BNB/USDT",
		BasePrice:         ptr(600),
		CurrentPrice:      620,
		GridSize:          ptr(2),
		BaseBalance:       1.5,
		QuoteBalance:      500,
		InitialPrincipal:  1000,
		LastTradePrice:    ptr(610),
		LastTradeTime:     ptr(1709294400), // 2024-03-01 12:00:00 UTC
		TargetOrderAmount: 140,
		PositionRatio:     0.65,
		S1DailyHigh:       ptr(630),
		S1DailyLow:        ptr(590),
	}
}

func TestBuildStatus(t *testing.T) {
	status := BuildStatus(sampleState(), time.UTC)

	assert.Equal(t, "BNB/USDT", status.Symbol)
	assert.InDelta(t, 0.02, status.GridSize, 1e-12)
	assert.InDelta(t, 0.004, status.Threshold, 1e-12)
	assert.InDelta(t, 1430, status.TotalAssets, 1e-9)
	assert.InDelta(t, 430, status.TotalProfit, 1e-9)
	assert.InDelta(t, 43, status.ProfitRate, 1e-9)
	assert.InDelta(t, 65, status.PositionPercentage, 1e-9)
	assert.Equal(t, "2024-03-01 12:00:00", status.LastTradeTimeStr)
	require.NotNil(t, status.GridUpperBand)
	require.NotNil(t, status.GridLowerBand)
	assert.InDelta(t, 612, *status.GridUpperBand, 1e-9)
	assert.InDelta(t, 588, *status.GridLowerBand, 1e-9)
	assert.Equal(t, 630.0, *status.S1DailyHigh)
	assert.NotNil(t, status.TradeHistory)
	assert.Empty(t, status.TradeHistory)
}

func TestBuildStatus_NoPrincipal(t *testing.T) {
	state := sampleState()
	state.InitialPrincipal = 0

	status := BuildStatus(state, time.UTC)
	assert.Zero(t, status.TotalProfit)
	assert.Zero(t, status.ProfitRate)
	assert.InDelta(t, 1430, status.TotalAssets, 1e-9)
}

func TestBuildStatus_MissingOptionalFields(t *testing.T) {
	status := BuildStatus(State{CurrentPrice: 10, QuoteBalance: 5}, time.UTC)

	assert.Zero(t, status.GridSize)
	assert.Zero(t, status.Threshold)
	assert.Equal(t, "--", status.LastTradeTimeStr)
	assert.Nil(t, status.GridUpperBand)
	assert.Nil(t, status.GridLowerBand)
	assert.Nil(t, status.BasePrice)

	data, err := json.Marshal(status)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"base_price":null`)
	assert.Contains(t, string(data), `"trade_history":[]`)
}

func TestBuildStatus_KeepsLastTenTrades(t *testing.T) {
	state := sampleState()
	for i := 0; i < 15; i++ {
		side := "buy"
		if i%2 == 1 {
			side = ""
		}
		state.Trades = append(state.Trades, Trade{
			Timestamp: float64(1709294400 + i*60),
			Side:      side,
			Price:     float64(600 + i),
			Amount:    0.1,
		})
	}

	status := BuildStatus(state, time.UTC)
	require.Len(t, status.TradeHistory, 10)
	assert.Equal(t, 605.0, status.TradeHistory[0].Price)
	assert.Equal(t, "2024-03-01 12:05:00", status.TradeHistory[0].Timestamp)
	assert.Equal(t, "--", status.TradeHistory[0].Side)
	assert.Equal(t, "buy", status.TradeHistory[1].Side)
	assert.Equal(t, 614.0, status.TradeHistory[9].Price)
}

func TestFileSource_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	data, err := json.Marshal(sampleState())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	state, err := NewFileSource(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "BNB/USDT", state.Symbol)
	require.NotNil(t, state.GridSize)
	assert.Equal(t, 2.0, *state.GridSize)
}

func TestFileSource_Missing(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "nope.json")).Load(context.Background())
	assert.ErrorIs(t, err, ErrStatusUnavailable)

	_, err = NewFileSource("").Load(context.Background())
	assert.ErrorIs(t, err, ErrStatusUnavailable)
}

func TestFileSource_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileSource(path).Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStatusUnavailable)
}

func TestFileSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFileSource("state.json").Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func ExampleBuildStatus() {
	grid := 1.0
	status := BuildStatus(State{GridSize: &grid, QuoteBalance: 100, InitialPrincipal: 80}, time.UTC)
	fmt.Printf("%.3f %.1f %.0f\n", status.Threshold, status.TotalProfit, status.ProfitRate)
	// Output: 0.002 20.0 25
}
