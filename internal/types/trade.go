package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one completed round trip: an entry and the exit that closed it.
// Trades are derived from closed positions and are the unit of the P&L report.
type Trade struct {
	// TradeID uniquely identifies the trade within a session.
	TradeID string `json:"trade_id"`
	// PositionID links back to the position this trade closed.
	PositionID string `json:"position_id"`
	// EntryNodeID is the entry node that opened the position.
	EntryNodeID string `json:"entry_node_id"`
	// ExitNodeID is the exit node that closed it, empty for cutoff closes.
	ExitNodeID string `json:"exit_node_id,omitempty"`
	// ReEntryNum matches the position's re-entry counter.
	ReEntryNum int `json:"re_entry_num"`
	// Symbol is the traded instrument.
	Symbol string `json:"symbol"`
	// Side is the position direction.
	Side Side `json:"side"`
	// OptionType is CE/PE for option legs, empty otherwise.
	OptionType OptionType `json:"option_type,omitempty"`
	// Quantity is the number of units traded.
	Quantity float64 `json:"quantity"`
	// Multiplier is the contract multiplier.
	Multiplier float64 `json:"multiplier"`
	// Scale is the position-sizing factor applied to P&L.
	Scale float64 `json:"scale"`
	// EntryTime/EntryPrice describe the opening fill.
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	// ExitTime/ExitPrice describe the closing fill.
	ExitTime  time.Time `json:"exit_time"`
	ExitPrice float64   `json:"exit_price"`
	// HoldingBars is the number of steps the position was open.
	HoldingBars int64 `json:"holding_bars"`
	// PnL is the realized profit and loss net of slippage and commission.
	PnL float64 `json:"pnl"`
	// CutoffClose is true when the trade was produced by the end-of-session
	// mark-to-market close rather than an exit condition.
	CutoffClose bool `json:"cutoff_close,omitempty"`
}

// ComputePnL returns the realized profit and loss for one round trip:
//
//	(exitPrice - entryPrice) * direction * quantity * multiplier * scale - slippage - commission
//
// The calculation goes through decimal arithmetic so that repeated runs over
// the same inputs produce bit-identical results.
func ComputePnL(entryPrice, exitPrice float64, side Side, quantity, multiplier, scale, slippage, commission float64) float64 {
	gross := decimal.NewFromFloat(exitPrice).
		Sub(decimal.NewFromFloat(entryPrice)).
		Mul(decimal.NewFromFloat(side.Direction())).
		Mul(decimal.NewFromFloat(quantity)).
		Mul(decimal.NewFromFloat(multiplier)).
		Mul(decimal.NewFromFloat(scale))

	costs := decimal.NewFromFloat(slippage).Add(decimal.NewFromFloat(commission))

	pnl, _ := gross.Sub(costs).Float64()

	return pnl
}
