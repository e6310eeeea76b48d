package graph

import (
	"github.com/moznion/go-optional"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/indicator"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
)

// NodeType enumerates the closed set of node variants. Unknown types are
// rejected at load time, never dispatched dynamically.
type NodeType string

const (
	// NodeTypeStart is the single control-flow root of a graph.
	NodeTypeStart NodeType = "start"
	// NodeTypeEntrySignal gates an entry node's first position.
	NodeTypeEntrySignal NodeType = "entrySignal"
	// NodeTypeEntry owns the position lifecycle for one logical leg.
	NodeTypeEntry NodeType = "entry"
	// NodeTypeReEntrySignal gates additional entries on a target entry node.
	NodeTypeReEntrySignal NodeType = "reEntrySignal"
	// NodeTypeExit closes open positions of the entry nodes wired into it.
	NodeTypeExit NodeType = "exit"
	// NodeTypeIndicator declares an indicator series to keep warm.
	NodeTypeIndicator NodeType = "indicator"
)

// IsValid reports whether the type is one of the closed set.
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTypeStart, NodeTypeEntrySignal, NodeTypeEntry, NodeTypeReEntrySignal, NodeTypeExit, NodeTypeIndicator:
		return true
	}

	return false
}

// Node is one vertex of a strategy graph, polymorphic over a shared
// {id, type, data} shape.
type Node struct {
	ID   string   `json:"id"`
	Type NodeType `json:"type"`
	Data NodeData `json:"data"`
}

// NodeData carries the per-type payload. Which fields are meaningful depends
// on the node type; load-time validation enforces the mandatory ones.
type NodeData struct {
	// Label is an optional display name.
	Label string `json:"label,omitempty"`
	// Conditions gates entrySignal, reEntrySignal and exit nodes.
	Conditions *ConditionGroup `json:"conditions,omitempty"`
	// MaxEntries caps total positions an entry node may open across a
	// session, re-entries included. Missing defaults to 1 with a warning.
	MaxEntries optional.Option[int] `json:"maxEntries,omitempty"`
	// Side is the direction of positions an entry node opens.
	Side types.Side `json:"side,omitempty"`
	// OptionType marks CE/PE legs on entry nodes, empty otherwise.
	OptionType types.OptionType `json:"optionType,omitempty"`
	// Quantity is the number of units per position.
	Quantity float64 `json:"quantity,omitempty"`
	// Multiplier is the contract multiplier, default 1.
	Multiplier float64 `json:"multiplier,omitempty"`
	// Scale is the position-sizing factor applied to P&L, default 1.
	Scale float64 `json:"scale,omitempty"`
	// TargetEntryNodeID binds a reEntrySignal node to its entry node. The
	// graph must also carry the matching reEntrySignal -> entry edge.
	TargetEntryNodeID string `json:"targetEntryNodeId,omitempty"`
	// Indicator is the declaration payload of an indicator node.
	Indicator *indicator.Spec `json:"indicator,omitempty"`
	// Symbol/Timeframe bind an indicator node to an instrument other than
	// the strategy's execution instrument.
	Symbol    string          `json:"symbol,omitempty"`
	Timeframe types.Timeframe `json:"timeframe,omitempty"`
}

// HasConditions reports whether the node type is gated by a condition group.
func (t NodeType) HasConditions() bool {
	switch t {
	case NodeTypeEntrySignal, NodeTypeReEntrySignal, NodeTypeExit:
		return true
	}

	return false
}
