// Package cup implements the pool node: an ordered collection of
// rollables aggregated by summation.
package cup

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"dicecup/internal/dice"
)

// ErrInvalidCup indicates a cup construction or cup-dependent operation
// received an unusable pool.
var ErrInvalidCup = errors.New("invalid cup")

// Cup is an ordered, summed pool of rollables. A cup owns its children;
// the tree is immutable after construction. An empty cup is legal to hold
// but modifiers that need dice to select from reject it.
type Cup struct {
	children []dice.Rollable
}

// New returns a cup over the given children in order.
func New(children ...dice.Rollable) *Cup {
	own := make([]dice.Rollable, len(children))
	copy(own, children)
	return &Cup{children: own}
}

// FromRollable returns a cup holding the same rollable count times.
// Count below 1 fails with ErrInvalidCup.
func FromRollable(r dice.Rollable, count int) (*Cup, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: count %d", ErrInvalidCup, count)
	}
	children := make([]dice.Rollable, count)
	for i := range children {
		children[i] = r
	}
	return &Cup{children: children}, nil
}

// Size returns the number of children.
func (c *Cup) Size() int { return len(c.children) }

// Children returns the children in order. The returned slice is a copy;
// the cup's own ordering is fixed.
func (c *Cup) Children() []dice.Rollable {
	out := make([]dice.Rollable, len(c.children))
	copy(out, c.children)
	return out
}

func (c *Cup) Minimum() int {
	sum := 0
	for _, child := range c.children {
		sum += child.Minimum()
	}
	return sum
}

// Maximum sums child maxima. An exploding child reports math.MaxInt;
// that marker is sticky so an unbounded cup never wraps below its
// minimum.
func (c *Cup) Maximum() int {
	sum := 0
	for _, child := range c.children {
		max := child.Maximum()
		if max == math.MaxInt {
			return math.MaxInt
		}
		sum += max
	}
	return sum
}

func (c *Cup) Roll() dice.Result {
	sum := 0
	parts := make([]string, 0, len(c.children))
	for _, child := range c.children {
		res := child.Roll()
		sum += res.Value
		parts = append(parts, WrapTrace(res.Trace))
	}
	return dice.Result{Value: sum, Trace: strings.Join(parts, " + "), From: c}
}

// Notation joins child notations with "+", collapsing runs of identical
// bare die notation into "{count}D{sides}".
func (c *Cup) Notation() string {
	var parts []string
	i := 0
	for i < len(c.children) {
		n := c.children[i].Notation()
		run := 1
		for i+run < len(c.children) && c.children[i+run].Notation() == n {
			run++
		}
		if run > 1 && bareDie(n) {
			parts = append(parts, strconv.Itoa(run)+n)
		} else {
			for j := 0; j < run; j++ {
				parts = append(parts, n)
			}
		}
		i += run
	}
	return strings.Join(parts, "+")
}

// bareDie reports whether n renders a plain die: "D<sides>", "DF" or
// "D[faces]". Modifier notations like "D6KH1" must not collapse into a
// count prefix; "2D6KH1" re-parses as a selection over a two-die pool.
func bareDie(n string) bool {
	if len(n) < 2 || n[0] != 'D' {
		return false
	}
	rest := n[1:]
	if rest == "F" {
		return true
	}
	if rest[0] == '[' {
		return strings.IndexByte(rest, ']') == len(rest)-1
	}
	for i := 0; i < len(rest); i++ {
		if rest[i] < '0' || rest[i] > '9' {
			return false
		}
	}
	return true
}

// WrapTrace parenthesizes a child trace that already contains a sum so
// concatenated traces keep their grouping.
func WrapTrace(t string) string {
	if strings.Contains(t, "+") {
		return "(" + t + ")"
	}
	return t
}
