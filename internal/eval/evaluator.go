package eval

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/graph"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/logger"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

// LeafTrace records one leaf comparison with its resolved operands.
type LeafTrace struct {
	// Condition is the leaf rendering, e.g. "rsi_14[-1] < 30".
	Condition string  `json:"condition"`
	LHS       float64 `json:"lhs"`
	RHS       float64 `json:"rhs"`
	Result    bool    `json:"result"`
	// Degraded names why the leaf failed closed, empty on a clean resolve.
	Degraded string `json:"degraded,omitempty"`
}

// Trace is the diagnostic record of one condition-group evaluation: every
// leaf in document order, the resolved value of every non-constant operand
// and the combined result.
type Trace struct {
	Result  bool               `json:"result"`
	Summary string             `json:"summary"`
	Leaves  []LeafTrace        `json:"leaves"`
	Values  map[string]float64 `json:"values,omitempty"`
}

// DegradedLeaves lists the leaves that failed closed with their reasons.
func (t Trace) DegradedLeaves() []string {
	var reasons []string

	for _, leaf := range t.Leaves {
		if leaf.Degraded != "" {
			reasons = append(reasons, leaf.Condition+": "+leaf.Degraded)
		}
	}

	return reasons
}

// Evaluator computes condition groups against a resolver.
type Evaluator struct {
	resolver *Resolver
	logger   *logger.Logger
}

// NewEvaluator creates an evaluator over one strategy's resolver.
func NewEvaluator(resolver *Resolver, log *logger.Logger) *Evaluator {
	return &Evaluator{
		resolver: resolver,
		logger:   log,
	}
}

// Evaluate computes a condition group at the given step wall-clock.
// Short-circuiting is disabled on purpose: every leaf is resolved and
// recorded even when an earlier sibling already decided the group, because
// the trace is a user-facing diagnostic artifact, not a performance path.
// Leaf-level failures degrade that leaf to false and never escape; the
// returned error is non-nil only for a cache miss, which is fatal to the
// session.
func (e *Evaluator) Evaluate(group *graph.ConditionGroup, now time.Time) (Trace, error) {
	trace := Trace{Values: make(map[string]float64)}

	result, err := e.evalGroup(group, now, &trace)
	if err != nil {
		return Trace{}, err
	}

	trace.Result = result
	trace.Summary = describeGroup(group)

	if len(trace.Values) == 0 {
		trace.Values = nil
	}

	return trace, nil
}

func (e *Evaluator) evalGroup(group *graph.ConditionGroup, now time.Time, trace *Trace) (bool, error) {
	if group == nil || len(group.Children) == 0 {
		// Validation rejects empty groups; fail closed if one slips through.
		return false, nil
	}

	isAnd := group.Logic == graph.GroupLogicAnd
	result := isAnd

	for _, item := range group.Children {
		var (
			childResult bool
			err         error
		)

		switch {
		case item.Condition != nil:
			childResult, err = e.evalLeaf(*item.Condition, now, trace)
		case item.Group != nil:
			childResult, err = e.evalGroup(item.Group, now, trace)
		}

		if err != nil {
			return false, err
		}

		if isAnd {
			result = result && childResult
		} else {
			result = result || childResult
		}
	}

	return result, nil
}

func (e *Evaluator) evalLeaf(cond graph.Condition, now time.Time, trace *Trace) (bool, error) {
	leaf := LeafTrace{Condition: cond.Describe()}

	lhs, lhsErr := e.resolver.Resolve(cond.LHS, now)
	rhs, rhsErr := e.resolver.Resolve(cond.RHS, now)

	// A cache miss is a configuration defect, not a data gap, and aborts the
	// session even when the sibling operand degraded.
	for _, err := range []error{lhsErr, rhsErr} {
		if errors.HasCode(err, errors.ErrCodeCacheMiss) {
			return false, err
		}
	}

	if lhsErr == nil {
		e.record(trace, cond.LHS, lhs)
	}

	if rhsErr == nil {
		e.record(trace, cond.RHS, rhs)
	}

	if reason := e.degradeReason(cond, lhsErr, rhsErr); reason != "" {
		leaf.Degraded = reason
		trace.Leaves = append(trace.Leaves, leaf)

		return false, nil
	}

	leaf.LHS = lhs
	leaf.RHS = rhs

	result, err := cond.Operator.Apply(lhs, rhs)
	if err != nil {
		leaf.Degraded = err.Error()
		trace.Leaves = append(trace.Leaves, leaf)

		e.logger.Warn("condition degraded to false",
			zap.String("condition", leaf.Condition),
			zap.Error(err),
		)

		return false, nil
	}

	leaf.Result = result
	trace.Leaves = append(trace.Leaves, leaf)

	return result, nil
}

// record stores a resolved operand value for the trigger snapshot. Constants
// are omitted, they carry no diagnostic signal.
func (e *Evaluator) record(trace *Trace, op graph.Operand, value float64) {
	if op.Kind == graph.OperandConstant {
		return
	}

	trace.Values[op.Describe()] = value
}

// degradeReason classifies leaf-level resolution failures. Insufficient
// history is routine and logged at debug; a resolution error is a strategy
// defect worth a warning.
func (e *Evaluator) degradeReason(cond graph.Condition, lhsErr, rhsErr error) string {
	for _, err := range []error{lhsErr, rhsErr} {
		if err == nil {
			continue
		}

		if errors.IsDataUnavailableError(err) {
			e.logger.Debug("leaf failed closed, data unavailable",
				zap.String("condition", cond.Describe()),
				zap.Error(err),
			)
		} else {
			e.logger.Warn("leaf failed closed, condition resolution error",
				zap.String("condition", cond.Describe()),
				zap.Error(err),
			)
		}

		return err.Error()
	}

	return ""
}

// describeGroup renders the group for event summaries, e.g.
// "rsi_14[-1] < 30 AND (close[0] > open[-1] OR time.hhmm >= 1000)".
func describeGroup(group *graph.ConditionGroup) string {
	if group == nil {
		return ""
	}

	parts := make([]string, 0, len(group.Children))

	for _, item := range group.Children {
		switch {
		case item.Condition != nil:
			parts = append(parts, item.Condition.Describe())
		case item.Group != nil:
			parts = append(parts, "("+describeGroup(item.Group)+")")
		}
	}

	return strings.Join(parts, " "+string(group.Logic)+" ")
}
