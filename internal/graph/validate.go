package graph

import (
	"encoding/json"
	"fmt"

	"github.com/moznion/go-optional"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/version"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

// Severity classifies a validation finding.
type Severity string

const (
	// SeverityError findings reject the graph before any session starts.
	SeverityError Severity = "error"
	// SeverityWarning findings are surfaced but do not reject the graph.
	SeverityWarning Severity = "warning"
)

// ValidationKind names one class of graph defect.
type ValidationKind string

const (
	ValidationUnknownNodeType       ValidationKind = "unknown_node_type"
	ValidationDuplicateNodeID       ValidationKind = "duplicate_node_id"
	ValidationMissingStartNode      ValidationKind = "missing_start_node"
	ValidationMultipleStartNodes    ValidationKind = "multiple_start_nodes"
	ValidationOrphanNode            ValidationKind = "orphan_node"
	ValidationDanglingEdge          ValidationKind = "dangling_edge"
	ValidationDanglingReEntryTarget ValidationKind = "dangling_re_entry_target"
	ValidationMissingMaxEntries     ValidationKind = "missing_max_entries"
	ValidationUndeclaredIndicator   ValidationKind = "undeclared_indicator"
	ValidationMissingConditions     ValidationKind = "missing_conditions"
	ValidationInvalidOperand        ValidationKind = "invalid_operand"
	ValidationSignalBinding         ValidationKind = "signal_binding"
	ValidationExitBinding           ValidationKind = "exit_binding"
	ValidationInstrument            ValidationKind = "instrument"
	ValidationSchemaVersion         ValidationKind = "schema_version"
	ValidationIndicatorDeclaration  ValidationKind = "indicator_declaration"
	ValidationEntryParams           ValidationKind = "entry_params"
)

// ValidationError describes one defect found while loading a graph.
type ValidationError struct {
	Kind     ValidationKind `json:"kind"`
	Severity Severity       `json:"severity"`
	NodeID   string         `json:"node_id,omitempty"`
	Message  string         `json:"message"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s [%s] node %s: %s", e.Severity, e.Kind, e.NodeID, e.Message)
	}

	return fmt.Sprintf("%s [%s]: %s", e.Severity, e.Kind, e.Message)
}

// HasErrors reports whether any finding has error severity.
func HasErrors(findings []ValidationError) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}

	return false
}

// Load parses raw strategy JSON and validates it. Loading is pure: no I/O,
// no store access. On malformed JSON the error is non-nil. Otherwise the
// findings carry every defect discovered; the graph is non-nil only when no
// finding has error severity. Warnings (e.g. a defaulted maxEntries) leave
// the graph usable.
func Load(raw []byte) (*Graph, []ValidationError, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidGraph, "strategy JSON is malformed", err)
	}

	return Build(doc)
}

// Build validates an already-parsed document. Node payloads are normalized
// in place (defaulted maxEntries, multiplier, scale). See Load.
func Build(doc Document) (*Graph, []ValidationError, error) {
	v := newValidator(doc)

	v.checkSchemaVersion()
	v.checkInstrument()
	v.indexNodes()
	v.checkEdges()
	v.checkStart()
	v.collectDeclaredIndicators()
	v.checkNodes()
	v.checkReachability()

	if HasErrors(v.findings) {
		return nil, v.findings, nil
	}

	return v.assemble(), v.findings, nil
}

type validator struct {
	doc      Document
	findings []ValidationError

	nodes    map[string]*Node
	order    []string
	outgoing map[string][]string
	incoming map[string][]string
	startID  string
	declared map[string]DeclaredIndicator
}

func newValidator(doc Document) *validator {
	return &validator{
		doc:      doc,
		findings: nil,
		nodes:    make(map[string]*Node),
		order:    nil,
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
		startID:  "",
		declared: make(map[string]DeclaredIndicator),
	}
}

func (v *validator) errorf(kind ValidationKind, nodeID, format string, args ...any) {
	v.findings = append(v.findings, ValidationError{
		Kind:     kind,
		Severity: SeverityError,
		NodeID:   nodeID,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (v *validator) warnf(kind ValidationKind, nodeID, format string, args ...any) {
	v.findings = append(v.findings, ValidationError{
		Kind:     kind,
		Severity: SeverityWarning,
		NodeID:   nodeID,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (v *validator) checkSchemaVersion() {
	if v.doc.SchemaVersion == "" {
		v.warnf(ValidationSchemaVersion, "", "schemaVersion missing, assuming %s", version.SchemaVersion)

		return
	}

	if err := version.CheckSchemaCompatibility(v.doc.SchemaVersion); err != nil {
		v.errorf(ValidationSchemaVersion, "", "%v", err)
	}
}

func (v *validator) checkInstrument() {
	if v.doc.Symbol == "" {
		v.errorf(ValidationInstrument, "", "strategy symbol is required")
	}

	if !v.doc.Timeframe.IsValid() {
		v.errorf(ValidationInstrument, "", "strategy timeframe %q is not supported", v.doc.Timeframe)
	}
}

func (v *validator) indexNodes() {
	for i := range v.doc.Nodes {
		node := v.doc.Nodes[i]

		if node.ID == "" {
			v.errorf(ValidationDuplicateNodeID, "", "node at position %d has no id", i)

			continue
		}

		if _, exists := v.nodes[node.ID]; exists {
			v.errorf(ValidationDuplicateNodeID, node.ID, "node id declared more than once")

			continue
		}

		if !node.Type.IsValid() {
			v.errorf(ValidationUnknownNodeType, node.ID, "unknown node type %q", node.Type)

			continue
		}

		v.nodes[node.ID] = &v.doc.Nodes[i]
		v.order = append(v.order, node.ID)
	}
}

func (v *validator) checkEdges() {
	for _, edge := range v.doc.Edges {
		if _, ok := v.nodes[edge.Source]; !ok {
			v.errorf(ValidationDanglingEdge, edge.Source, "edge source %q does not exist", edge.Source)

			continue
		}

		if _, ok := v.nodes[edge.Target]; !ok {
			v.errorf(ValidationDanglingEdge, edge.Target, "edge target %q does not exist", edge.Target)

			continue
		}

		v.outgoing[edge.Source] = append(v.outgoing[edge.Source], edge.Target)
		v.incoming[edge.Target] = append(v.incoming[edge.Target], edge.Source)
	}
}

func (v *validator) checkStart() {
	for _, id := range v.order {
		if v.nodes[id].Type != NodeTypeStart {
			continue
		}

		if v.startID != "" {
			v.errorf(ValidationMultipleStartNodes, id, "graph already has start node %q", v.startID)

			continue
		}

		v.startID = id
	}

	if v.startID == "" {
		v.errorf(ValidationMissingStartNode, "", "graph has no start node")
	}
}

func (v *validator) collectDeclaredIndicators() {
	for _, id := range v.order {
		node := v.nodes[id]
		if node.Type != NodeTypeIndicator {
			continue
		}

		spec := node.Data.Indicator
		if spec == nil || spec.Name == "" || spec.Key == "" {
			v.errorf(ValidationIndicatorDeclaration, id, "indicator node must declare name and key")

			continue
		}

		if _, exists := v.declared[spec.Key]; exists {
			v.errorf(ValidationIndicatorDeclaration, id, "indicator key %q declared more than once", spec.Key)

			continue
		}

		symbol := node.Data.Symbol
		if symbol == "" {
			symbol = v.doc.Symbol
		}

		timeframe := node.Data.Timeframe
		if timeframe == "" {
			timeframe = v.doc.Timeframe
		} else if !timeframe.IsValid() {
			v.errorf(ValidationIndicatorDeclaration, id, "indicator timeframe %q is not supported", timeframe)

			continue
		}

		v.declared[spec.Key] = DeclaredIndicator{Spec: *spec, Symbol: symbol, Timeframe: timeframe}
	}
}

func (v *validator) checkNodes() {
	for _, id := range v.order {
		node := v.nodes[id]

		switch node.Type {
		case NodeTypeEntry:
			v.checkEntryNode(node)
		case NodeTypeEntrySignal:
			v.checkEntrySignalNode(node)
		case NodeTypeReEntrySignal:
			v.checkReEntrySignalNode(node)
		case NodeTypeExit:
			v.checkExitNode(node)
		case NodeTypeStart, NodeTypeIndicator:
			// No per-node payload rules beyond those already checked.
		}

		if node.Type.HasConditions() {
			v.checkConditions(node)
		}
	}
}

func (v *validator) checkEntryNode(node *Node) {
	if node.Data.MaxEntries.IsNone() {
		// Never silently unlimited: a missing budget defaults to a single
		// entry and the author is told about it.
		node.Data.MaxEntries = optional.Some(1)
		v.warnf(ValidationMissingMaxEntries, node.ID, "maxEntries missing, defaulting to 1")
	} else if budget := node.Data.MaxEntries.Unwrap(); budget < 1 {
		v.errorf(ValidationEntryParams, node.ID, "maxEntries must be >= 1, got %d", budget)
	}

	if !node.Data.Side.IsValid() {
		v.errorf(ValidationEntryParams, node.ID, "entry side must be BUY or SELL, got %q", node.Data.Side)
	}

	if node.Data.Quantity <= 0 {
		v.errorf(ValidationEntryParams, node.ID, "entry quantity must be positive, got %v", node.Data.Quantity)
	}

	// Has the entry at least one gate wired in?
	gated := false

	for _, sourceID := range v.incoming[node.ID] {
		sourceType := v.nodes[sourceID].Type
		if sourceType == NodeTypeEntrySignal || sourceType == NodeTypeReEntrySignal {
			gated = true

			break
		}
	}

	if !gated {
		v.errorf(ValidationSignalBinding, node.ID, "entry node has no entrySignal or reEntrySignal wired into it")
	}
}

func (v *validator) checkEntrySignalNode(node *Node) {
	entries := 0

	for _, targetID := range v.outgoing[node.ID] {
		if v.nodes[targetID].Type == NodeTypeEntry {
			entries++
		}
	}

	if entries != 1 {
		v.errorf(ValidationSignalBinding, node.ID, "entrySignal must gate exactly one entry node, found %d", entries)
	}
}

func (v *validator) checkReEntrySignalNode(node *Node) {
	targetID := node.Data.TargetEntryNodeID
	if targetID == "" {
		v.errorf(ValidationDanglingReEntryTarget, node.ID, "targetEntryNodeId is required")

		return
	}

	target, ok := v.nodes[targetID]
	if !ok {
		v.errorf(ValidationDanglingReEntryTarget, node.ID, "targetEntryNodeId %q does not exist", targetID)

		return
	}

	if target.Type != NodeTypeEntry {
		v.errorf(ValidationDanglingReEntryTarget, node.ID, "targetEntryNodeId %q is a %s node, not an entry node", targetID, target.Type)

		return
	}

	// The declared target and the wiring must agree.
	wired := false

	for _, outID := range v.outgoing[node.ID] {
		if outID == targetID {
			wired = true

			break
		}
	}

	if !wired {
		v.errorf(ValidationDanglingReEntryTarget, node.ID, "missing edge to target entry node %q", targetID)
	}
}

func (v *validator) checkExitNode(node *Node) {
	entries := 0

	for _, sourceID := range v.incoming[node.ID] {
		if v.nodes[sourceID].Type == NodeTypeEntry {
			entries++
		}
	}

	if entries == 0 {
		v.errorf(ValidationExitBinding, node.ID, "exit node has no entry node wired into it, it can never close a position")
	}
}

func (v *validator) checkConditions(node *Node) {
	group := node.Data.Conditions
	if group == nil || len(group.Children) == 0 {
		v.errorf(ValidationMissingConditions, node.ID, "%s node requires a non-empty condition group", node.Type)

		return
	}

	v.checkGroup(node.ID, group)
}

func (v *validator) checkGroup(nodeID string, group *ConditionGroup) {
	if !group.Logic.IsValid() {
		v.errorf(ValidationInvalidOperand, nodeID, "group logic must be AND or OR, got %q", group.Logic)
	}

	for _, item := range group.Children {
		switch {
		case item.Group != nil:
			v.checkGroup(nodeID, item.Group)
		case item.Condition != nil:
			v.checkCondition(nodeID, *item.Condition)
		default:
			v.errorf(ValidationInvalidOperand, nodeID, "empty condition item")
		}
	}
}

func (v *validator) checkCondition(nodeID string, cond Condition) {
	if !cond.Operator.IsValid() {
		v.errorf(ValidationInvalidOperand, nodeID, "unknown operator %q", cond.Operator)
	}

	v.checkOperand(nodeID, cond.LHS)
	v.checkOperand(nodeID, cond.RHS)
}

func (v *validator) checkOperand(nodeID string, op Operand) {
	switch op.Kind {
	case OperandIndicator:
		if op.Name == "" {
			v.errorf(ValidationInvalidOperand, nodeID, "indicator operand requires a name")

			return
		}

		if _, ok := v.declared[op.Name]; !ok {
			v.errorf(ValidationUndeclaredIndicator, nodeID, "condition references indicator %q never declared on an indicator node", op.Name)
		}

		v.checkOffset(nodeID, op)
	case OperandMarketField:
		switch op.Field {
		case "open", "high", "low", "close", "volume":
		default:
			v.errorf(ValidationInvalidOperand, nodeID, "marketField %q is not an OHLCV component", op.Field)
		}

		if op.Timeframe != "" && !op.Timeframe.IsValid() {
			v.errorf(ValidationInvalidOperand, nodeID, "marketField timeframe %q is not supported", op.Timeframe)
		}

		v.checkOffset(nodeID, op)
	case OperandLiveField:
		switch op.Field {
		case "ltp", "bid", "ask", "volume", "oi":
		default:
			v.errorf(ValidationInvalidOperand, nodeID, "liveField %q is not a tick field", op.Field)
		}
	case OperandConstant:
		// Any numeric literal is fine.
	case OperandCurrentTime:
		if !op.Unit.IsValid() {
			v.errorf(ValidationInvalidOperand, nodeID, "currentTime unit %q is not supported", op.Unit)
		}
	default:
		v.errorf(ValidationInvalidOperand, nodeID, "unknown operand kind %q", op.Kind)
	}
}

func (v *validator) checkOffset(nodeID string, op Operand) {
	if op.Offset > 0 {
		v.errorf(ValidationInvalidOperand, nodeID, "%s offset must be <= 0 (lag only), got %d", op.Describe(), op.Offset)
	}
}

// checkReachability walks the control flow from the start node. Re-entry
// activation is state-driven at run time, but the graph must still be
// connected: a reEntrySignal with no incoming edge is an orphan like any
// other node. Indicator nodes are declarations, not control flow, and are
// exempt.
func (v *validator) checkReachability() {
	if v.startID == "" {
		return
	}

	reached := map[string]bool{v.startID: true}
	queue := []string{v.startID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range v.outgoing[current] {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}

	for _, id := range v.order {
		node := v.nodes[id]
		if node.Type == NodeTypeIndicator || reached[id] {
			continue
		}

		v.errorf(ValidationOrphanNode, id, "%s node is not reachable from the start node", node.Type)
	}
}

// assemble builds the immutable graph after all checks passed.
func (v *validator) assemble() *Graph {
	g := &Graph{
		SchemaVersion: v.doc.SchemaVersion,
		StrategyID:    v.doc.StrategyID,
		Name:          v.doc.Name,
		Symbol:        v.doc.Symbol,
		Timeframe:     v.doc.Timeframe,
		nodes:         v.nodes,
		order:         v.order,
		edges:         v.doc.Edges,
		outgoing:      v.outgoing,
		incoming:      v.incoming,
		startID:       v.startID,
		signalFor:     make(map[string]string),
		targetFor:     make(map[string]string),
		exitFor:       make(map[string][]string),
		declared:      v.declared,
	}

	if g.SchemaVersion == "" {
		g.SchemaVersion = version.SchemaVersion
	}

	for _, id := range v.order {
		node := v.nodes[id]

		switch node.Type {
		case NodeTypeEntrySignal:
			for _, targetID := range v.outgoing[id] {
				if v.nodes[targetID].Type == NodeTypeEntry {
					g.signalFor[id] = targetID
				}
			}
		case NodeTypeReEntrySignal:
			g.targetFor[id] = node.Data.TargetEntryNodeID
		case NodeTypeExit:
			for _, sourceID := range v.incoming[id] {
				if v.nodes[sourceID].Type == NodeTypeEntry {
					g.exitFor[id] = append(g.exitFor[id], sourceID)
				}
			}
		case NodeTypeStart, NodeTypeEntry, NodeTypeIndicator:
		}

		// Fill entry order defaults.
		if node.Type == NodeTypeEntry {
			if node.Data.Multiplier == 0 {
				node.Data.Multiplier = 1
			}

			if node.Data.Scale == 0 {
				node.Data.Scale = 1
			}
		}
	}

	return g
}
