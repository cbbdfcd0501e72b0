package trader

import "time"

const (
	// TimeLayout is used for every timestamp shown on the dashboard.
	TimeLayout = "2006-01-02 15:04:05"

	// maxTradeHistory is how many trades the status payload carries.
	maxTradeHistory = 10

	// thresholdDivisor relates the grid size to the rebound threshold.
	thresholdDivisor = 5
)

// TradeView is a trade formatted for the dashboard.
type TradeView struct {
	Timestamp string  `json:"timestamp"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Amount    float64 `json:"amount"`
	Profit    float64 `json:"profit"`
}

// Status is the /api/status payload.
type Status struct {
	Symbol             string      `json:"symbol"`
	BasePrice          *float64    `json:"base_price"`
	CurrentPrice       float64     `json:"current_price"`
	GridSize           float64     `json:"grid_size"`
	Threshold          float64     `json:"threshold"`
	TotalAssets        float64     `json:"total_assets"`
	QuoteBalance       float64     `json:"usdt_balance"`
	BaseBalance        float64     `json:"bnb_balance"`
	TargetOrderAmount  float64     `json:"target_order_amount"`
	TradeHistory       []TradeView `json:"trade_history"`
	LastTradePrice     *float64    `json:"last_trade_price"`
	LastTradeTime      *float64    `json:"last_trade_time"`
	LastTradeTimeStr   string      `json:"last_trade_time_str"`
	TotalProfit        float64     `json:"total_profit"`
	ProfitRate         float64     `json:"profit_rate"`
	S1DailyHigh        *float64    `json:"s1_daily_high"`
	S1DailyLow         *float64    `json:"s1_daily_low"`
	PositionPercentage float64     `json:"position_percentage"`
	GridUpperBand      *float64    `json:"grid_upper_band"`
	GridLowerBand      *float64    `json:"grid_lower_band"`
}

// BuildStatus derives the dashboard status from a trader state.
//
// Timestamps are rendered in loc; a nil loc means time.Local.
func BuildStatus(state State, loc *time.Location) Status {
	if loc == nil {
		loc = time.Local
	}

	var gridDecimal float64
	if state.GridSize != nil {
		gridDecimal = *state.GridSize / 100
	}

	totalAssets := state.QuoteBalance + state.BaseBalance*state.CurrentPrice

	var totalProfit, profitRate float64
	if state.InitialPrincipal > 0 {
		totalProfit = totalAssets - state.InitialPrincipal
		profitRate = totalProfit / state.InitialPrincipal * 100
	}

	lastTradeStr := "--"
	if state.LastTradeTime != nil && *state.LastTradeTime != 0 {
		lastTradeStr = formatUnix(*state.LastTradeTime, loc)
	}

	trades := state.Trades
	if len(trades) > maxTradeHistory {
		trades = trades[len(trades)-maxTradeHistory:]
	}
	history := make([]TradeView, 0, len(trades))
	for _, t := range trades {
		side := t.Side
		if side == "" {
			side = "--"
		}
		history = append(history, TradeView{
			Timestamp: formatUnix(t.Timestamp, loc),
			Side:      side,
			Price:     t.Price,
			Amount:    t.Amount,
			Profit:    t.Profit,
		})
	}

	status := Status{
		Symbol:             state.Symbol,
		BasePrice:          state.BasePrice,
		CurrentPrice:       state.CurrentPrice,
		GridSize:           gridDecimal,
		Threshold:          gridDecimal / thresholdDivisor,
		TotalAssets:        totalAssets,
		QuoteBalance:       state.QuoteBalance,
		BaseBalance:        state.BaseBalance,
		TargetOrderAmount:  state.TargetOrderAmount,
		TradeHistory:       history,
		LastTradePrice:     state.LastTradePrice,
		LastTradeTime:      state.LastTradeTime,
		LastTradeTimeStr:   lastTradeStr,
		TotalProfit:        totalProfit,
		ProfitRate:         profitRate,
		S1DailyHigh:        state.S1DailyHigh,
		S1DailyLow:         state.S1DailyLow,
		PositionPercentage: state.PositionRatio * 100,
	}

	if state.BasePrice != nil && state.GridSize != nil {
		upper := *state.BasePrice * (1 + gridDecimal)
		lower := *state.BasePrice * (1 - gridDecimal)
		status.GridUpperBand = &upper
		status.GridLowerBand = &lower
	}

	return status
}

func formatUnix(seconds float64, loc *time.Location) string {
	sec := int64(seconds)
	nsec := int64((seconds - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).In(loc).Format(TimeLayout)
}
