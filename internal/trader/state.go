// Package trader reads the state the grid-trading process publishes and turns
// it into the dashboard status payload.
package trader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrStatusUnavailable is returned when the trading process has not published
// a state file yet.
var ErrStatusUnavailable = errors.New("trader status unavailable")

// Trade is one filled order as recorded by the trading process.
type Trade struct {
	Timestamp float64 `json:"timestamp"` // unix seconds
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Amount    float64 `json:"amount"`
	Profit    float64 `json:"profit"`
}

// State is the snapshot the trading process writes after every tick.
//
// Pointer fields are optional and stay null in the status payload when unset.
type State struct {
	Symbol            string   `json:"symbol"`
	BasePrice         *float64 `json:"base_price"`
	CurrentPrice      float64  `json:"current_price"`
	GridSize          *float64 `json:"grid_size"` // percent
	BaseBalance       float64  `json:"base_balance"`
	QuoteBalance      float64  `json:"quote_balance"`
	InitialPrincipal  float64  `json:"initial_principal"`
	LastTradePrice    *float64 `json:"last_trade_price"`
	LastTradeTime     *float64 `json:"last_trade_time"` // unix seconds
	Trades            []Trade  `json:"trades"`
	TargetOrderAmount float64  `json:"target_order_amount"`
	PositionRatio     float64  `json:"position_ratio"`
	S1DailyHigh       *float64 `json:"s1_daily_high"`
	S1DailyLow        *float64 `json:"s1_daily_low"`
}

// Source loads the latest trader state.
type Source interface {
	Load(ctx context.Context) (State, error)
}

// FileSource reads the state from a JSON file on disk.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the state file location.
func (s *FileSource) Path() string {
	return s.path
}

// Load reads and decodes the state file.
//
// A missing file yields ErrStatusUnavailable.
func (s *FileSource) Load(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	if s.path == "" {
		return State{}, ErrStatusUnavailable
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, fmt.Errorf("%w: %s", ErrStatusUnavailable, s.path)
		}
		return State{}, fmt.Errorf("read trader state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("decode trader state %s: %w", s.path, err)
	}
	return state, nil
}
