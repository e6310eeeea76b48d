package types

import "time"

// PnLSummary aggregates realized profit and loss over a set of trades.
type PnLSummary struct {
	// NetPnL is the sum of all trade P&L, net of slippage and commission.
	NetPnL float64 `json:"net_pnl"`
	// GrossProfit is the sum of winning trades' P&L.
	GrossProfit float64 `json:"gross_profit"`
	// GrossLoss is the sum of losing trades' P&L (non-positive).
	GrossLoss float64 `json:"gross_loss"`
	// MaxTradeProfit is the largest single-trade P&L.
	MaxTradeProfit float64 `json:"max_trade_profit"`
	// MaxTradeLoss is the smallest single-trade P&L.
	MaxTradeLoss float64 `json:"max_trade_loss"`
	// MaxDrawdown is the largest peak-to-trough decline of the running
	// cumulative P&L, reported as a non-negative number.
	MaxDrawdown float64 `json:"max_drawdown"`
}

// NodeMetrics is the per-entry-node breakdown of trading activity.
type NodeMetrics struct {
	// Trades is the number of completed round trips for this node.
	Trades int `json:"trades"`
	// ReEntriesUsed is the number of positions opened with reEntryNum > 0.
	ReEntriesUsed int `json:"re_entries_used"`
	// NetPnL is the node's total realized P&L.
	NetPnL float64 `json:"net_pnl"`
}

// Metrics is the session-level summary written to metrics.json.
type Metrics struct {
	// SessionID is the session the metrics describe.
	SessionID string `json:"session_id"`
	// StrategyID is the strategy that produced the trades.
	StrategyID string `json:"strategy_id"`
	// GeneratedAt is when the metrics were computed.
	GeneratedAt time.Time `json:"generated_at"`
	// TotalTrades is the count of completed round trips.
	TotalTrades int `json:"total_trades"`
	// WinningTrades is the count of trades with positive P&L.
	WinningTrades int `json:"winning_trades"`
	// LosingTrades is the count of trades with negative P&L.
	LosingTrades int `json:"losing_trades"`
	// WinRate is WinningTrades / TotalTrades, 0 when no trades.
	WinRate float64 `json:"win_rate"`
	// PnL aggregates realized profit and loss.
	PnL PnLSummary `json:"pnl"`
	// PerNode breaks activity down by entry node ID.
	PerNode map[string]NodeMetrics `json:"per_node"`
}

// ComputeMetrics derives a Metrics summary from a completed trade sequence.
// The computation is a pure fold over the trades in order, so the same trades
// always produce the same metrics.
func ComputeMetrics(sessionID, strategyID string, generatedAt time.Time, trades []Trade) Metrics {
	m := Metrics{
		SessionID:   sessionID,
		StrategyID:  strategyID,
		GeneratedAt: generatedAt,
		PerNode:     make(map[string]NodeMetrics),
	}

	var cumulative, peak float64

	for _, trade := range trades {
		m.TotalTrades++
		m.PnL.NetPnL += trade.PnL

		switch {
		case trade.PnL > 0:
			m.WinningTrades++
			m.PnL.GrossProfit += trade.PnL
		case trade.PnL < 0:
			m.LosingTrades++
			m.PnL.GrossLoss += trade.PnL
		}

		if trade.PnL > m.PnL.MaxTradeProfit {
			m.PnL.MaxTradeProfit = trade.PnL
		}

		if trade.PnL < m.PnL.MaxTradeLoss {
			m.PnL.MaxTradeLoss = trade.PnL
		}

		cumulative += trade.PnL
		if cumulative > peak {
			peak = cumulative
		}

		if drawdown := peak - cumulative; drawdown > m.PnL.MaxDrawdown {
			m.PnL.MaxDrawdown = drawdown
		}

		node := m.PerNode[trade.EntryNodeID]
		node.Trades++
		node.NetPnL += trade.PnL

		if trade.ReEntryNum > 0 {
			node.ReEntriesUsed++
		}

		m.PerNode[trade.EntryNodeID] = node
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	}

	return m
}
