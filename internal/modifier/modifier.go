// Package modifier implements the decorator nodes of the evaluation
// tree: arithmetic, drop/keep selection, and exploding rerolls. Every
// parameter is validated at construction so that a built tree can never
// fail while rolling.
package modifier

import (
	"errors"

	"dicecup/internal/cup"
	"dicecup/internal/dice"
	"dicecup/internal/trace"
)

var (
	// ErrUnknownOperator indicates an arithmetic operator outside + - * / ^.
	ErrUnknownOperator = errors.New("unknown operator")
	// ErrInvalidOperand indicates a negative operand, or division by zero.
	ErrInvalidOperand = errors.New("invalid operand")
	// ErrUnknownAlgorithm indicates a drop/keep code outside DH DL KH KL.
	ErrUnknownAlgorithm = errors.New("unknown drop/keep algorithm")
	// ErrTooManyDropped indicates a drop/keep threshold outside the pool size.
	ErrTooManyDropped = errors.New("drop/keep threshold exceeds pool size")
	// ErrUnknownComparator indicates an explode comparator outside = > <.
	ErrUnknownComparator = errors.New("unknown comparator")
	// ErrInfiniteLoop indicates explode parameters that would re-trigger on
	// every roll of some die in the pool.
	ErrInfiniteLoop = errors.New("explode can never settle")
)

// inner holds the pool a selection modifier operates on, remembering
// whether the constructor wrapped a bare rollable so Unwrap can return
// what the caller handed in.
type inner struct {
	pool    *cup.Cup
	wrapped dice.Rollable // non-nil when auto-wrapped
}

func wrap(r dice.Rollable) inner {
	if c, ok := r.(*cup.Cup); ok {
		return inner{pool: c}
	}
	return inner{pool: cup.New(r), wrapped: r}
}

func (in inner) unwrap() dice.Rollable {
	if in.wrapped != nil {
		return in.wrapped
	}
	return in.pool
}

// observer is the optional profiler attachment shared by all modifiers.
type observer struct {
	profiler trace.Profiler
}

// SetProfiler attaches a sink that receives every outcome this modifier
// produces. Passing nil detaches.
func (o *observer) SetProfiler(p trace.Profiler) {
	o.profiler = p
}

func (o *observer) emit(notation string, res dice.Result) {
	if o.profiler == nil {
		return
	}
	trace.Emit(o.profiler, trace.Record{
		Notation: notation,
		Method:   "roll",
		Value:    res.Value,
		Trace:    res.Trace,
	})
}
