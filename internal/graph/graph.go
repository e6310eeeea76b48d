// Package graph models a strategy as a validated node/edge flow graph:
// signal, entry, re-entry, exit and indicator declarations wired by directed
// edges from a single start node. Loading is pure; the caller supplies the
// raw JSON and receives either an immutable graph or validation findings.
package graph

import (
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/indicator"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
)

// Edge is one directed connection between two nodes.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Document is the raw strategy JSON shape before validation.
type Document struct {
	// SchemaVersion gates compatibility between authoring tool and engine.
	SchemaVersion string `json:"schemaVersion"`
	// StrategyID/Name identify the strategy; the ID may be overridden by the
	// store the document was fetched from.
	StrategyID string `json:"strategyId,omitempty"`
	Name       string `json:"name,omitempty"`
	// Symbol/Timeframe name the execution instrument every unqualified
	// market field and the entry fills resolve against.
	Symbol    string          `json:"symbol"`
	Timeframe types.Timeframe `json:"timeframe"`
	// Nodes in document order; order is preserved for deterministic stepping.
	Nodes []Node `json:"nodes"`
	// Edges in document order.
	Edges []Edge `json:"edges"`
}

// DeclaredIndicator is one indicator-node declaration resolved to its
// instrument.
type DeclaredIndicator struct {
	Spec      indicator.Spec
	Symbol    string
	Timeframe types.Timeframe
}

// InstrumentRequirement lists the indicator specs one instrument needs warm.
type InstrumentRequirement struct {
	Symbol    string
	Timeframe types.Timeframe
	Specs     []indicator.Spec
}

// Graph is the parsed, validated strategy graph. Immutable after Load.
type Graph struct {
	SchemaVersion string
	StrategyID    string
	Name          string
	Symbol        string
	Timeframe     types.Timeframe

	nodes     map[string]*Node
	order     []string
	edges     []Edge
	outgoing  map[string][]string
	incoming  map[string][]string
	startID   string
	signalFor map[string]string            // entrySignal ID -> bound entry ID
	targetFor map[string]string            // reEntrySignal ID -> target entry ID
	exitFor   map[string][]string          // exit ID -> entry IDs wired into it
	declared  map[string]DeclaredIndicator // indicator key -> declaration
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	node, ok := g.nodes[id]

	return node, ok
}

// Nodes returns all nodes in document order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id])
	}

	return nodes
}

// NodesOfType returns the nodes of one type in document order.
func (g *Graph) NodesOfType(t NodeType) []*Node {
	var nodes []*Node

	for _, id := range g.order {
		if node := g.nodes[id]; node.Type == t {
			nodes = append(nodes, node)
		}
	}

	return nodes
}

// Edges returns the edges in document order.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// HasEdge reports whether a directed edge source -> target exists. The driver
// uses it to spot explicit exit -> entry re-arm wiring.
func (g *Graph) HasEdge(source, target string) bool {
	for _, next := range g.outgoing[source] {
		if next == target {
			return true
		}
	}

	return false
}

// Start returns the graph's single start node.
func (g *Graph) Start() *Node {
	return g.nodes[g.startID]
}

// BoundEntry returns the entry node gated by an entrySignal node.
func (g *Graph) BoundEntry(signalID string) (string, bool) {
	entryID, ok := g.signalFor[signalID]

	return entryID, ok
}

// ReEntryTarget returns the entry node targeted by a reEntrySignal node.
func (g *Graph) ReEntryTarget(reEntryID string) (string, bool) {
	entryID, ok := g.targetFor[reEntryID]

	return entryID, ok
}

// ExitBindings returns the entry nodes whose open positions an exit node
// closes: exactly those with an edge into the exit node.
func (g *Graph) ExitBindings(exitID string) []string {
	return g.exitFor[exitID]
}

// DeclaredIndicators maps indicator series keys to their declarations.
func (g *Graph) DeclaredIndicators() map[string]DeclaredIndicator {
	return g.declared
}

// Requirements groups the declared indicators by instrument, always
// including the execution instrument so market fields resolve even for
// indicator-free strategies. Order is deterministic: execution instrument
// first, others in first-declaration order.
func (g *Graph) Requirements() []InstrumentRequirement {
	reqs := []InstrumentRequirement{{Symbol: g.Symbol, Timeframe: g.Timeframe}}
	index := map[instrumentKey]int{{symbol: g.Symbol, timeframe: g.Timeframe}: 0}

	for _, id := range g.order {
		node := g.nodes[id]
		if node.Type != NodeTypeIndicator || node.Data.Indicator == nil {
			continue
		}

		symbol, timeframe := g.indicatorInstrument(node)

		key := instrumentKey{symbol: symbol, timeframe: timeframe}
		at, ok := index[key]
		if !ok {
			at = len(reqs)
			index[key] = at

			reqs = append(reqs, InstrumentRequirement{Symbol: symbol, Timeframe: timeframe})
		}

		reqs[at].Specs = append(reqs[at].Specs, *node.Data.Indicator)
	}

	return reqs
}

type instrumentKey struct {
	symbol    string
	timeframe types.Timeframe
}

// indicatorInstrument resolves an indicator node's instrument, defaulting to
// the execution instrument.
func (g *Graph) indicatorInstrument(node *Node) (string, types.Timeframe) {
	symbol := node.Data.Symbol
	if symbol == "" {
		symbol = g.Symbol
	}

	timeframe := node.Data.Timeframe
	if timeframe == "" {
		timeframe = g.Timeframe
	}

	return symbol, timeframe
}
