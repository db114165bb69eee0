// Package dice implements the rollable primitives of the dicecup engine:
// the Rollable contract, the randomness Source, and the die variants.
package dice

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidDie indicates a die was constructed with an impossible shape.
var ErrInvalidDie = errors.New("invalid die")

// Rollable is any node of an evaluation tree: a die, a cup of dice, or a
// modifier wrapping either. Bounds are computed without randomness; Roll
// consults the node's Source. A validly constructed Rollable never fails
// at evaluation time.
type Rollable interface {
	// Minimum returns the lowest value Roll can produce (explode trees
	// report their non-exploded floor).
	Minimum() int
	// Maximum returns the highest value Roll can produce, or math.MaxInt
	// where the true bound is unbounded.
	Maximum() int
	// Roll evaluates the node and returns the outcome with its derivation
	// trace.
	Roll() Result
	// Notation renders the node back into dice notation.
	Notation() string
}

// Result is the immutable outcome of a single evaluation call.
type Result struct {
	// Value is the summed integer outcome.
	Value int
	// Trace is a human-readable derivation, e.g. "3 + 2 + (-1)".
	Trace string
	// From is the node that produced the result.
	From Rollable
}

// Sided is a die with faces 1..N.
type Sided struct {
	sides  int
	source Source
}

// NewSided returns an N-sided die. Sides below 2 fail with ErrInvalidDie.
func NewSided(src Source, sides int) (*Sided, error) {
	if sides < 2 {
		return nil, fmt.Errorf("%w: %d sides", ErrInvalidDie, sides)
	}
	return &Sided{sides: sides, source: orDefault(src)}, nil
}

func (d *Sided) Minimum() int { return 1 }
func (d *Sided) Maximum() int { return d.sides }

func (d *Sided) Roll() Result {
	v := d.source.IntN(1, d.sides)
	return Result{Value: v, Trace: TraceValue(v), From: d}
}

func (d *Sided) Notation() string {
	return "D" + strconv.Itoa(d.sides)
}

// Sides returns the face count.
func (d *Sided) Sides() int { return d.sides }

// Custom is a die with an arbitrary fixed face list. Faces may repeat and
// need not be contiguous; rolling picks a face position uniformly, so
// repeated faces weigh proportionally.
type Custom struct {
	faces  []int
	source Source
}

// NewCustom returns a die over the given faces. An empty face list fails
// with ErrInvalidDie.
func NewCustom(src Source, faces ...int) (*Custom, error) {
	if len(faces) == 0 {
		return nil, fmt.Errorf("%w: no faces", ErrInvalidDie)
	}
	own := make([]int, len(faces))
	copy(own, faces)
	return &Custom{faces: own, source: orDefault(src)}, nil
}

// NewFudge returns the three-sided fudge die with faces -1, 0, 1.
func NewFudge(src Source) *Custom {
	d, _ := NewCustom(src, -1, 0, 1)
	return d
}

func (d *Custom) Minimum() int {
	min := d.faces[0]
	for _, f := range d.faces[1:] {
		if f < min {
			min = f
		}
	}
	return min
}

func (d *Custom) Maximum() int {
	max := d.faces[0]
	for _, f := range d.faces[1:] {
		if f > max {
			max = f
		}
	}
	return max
}

func (d *Custom) Roll() Result {
	idx := d.source.IntN(0, len(d.faces)-1)
	v := d.faces[idx]
	return Result{Value: v, Trace: TraceValue(v), From: d}
}

func (d *Custom) Notation() string {
	parts := make([]string, len(d.faces))
	for i, f := range d.faces {
		parts[i] = strconv.Itoa(f)
	}
	return "D[" + strings.Join(parts, ",") + "]"
}

// Faces returns a copy of the face list in declaration order.
func (d *Custom) Faces() []int {
	out := make([]int, len(d.faces))
	copy(out, d.faces)
	return out
}

// TraceValue renders a single rolled value for a trace, parenthesizing
// negatives so concatenated traces stay readable.
func TraceValue(v int) string {
	if v < 0 {
		return "(" + strconv.Itoa(v) + ")"
	}
	return strconv.Itoa(v)
}
