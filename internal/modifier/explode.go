package modifier

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"dicecup/internal/cup"
	"dicecup/internal/dice"
)

// Comparator decides whether an explode reroll triggers.
type Comparator int8

const (
	Equal Comparator = iota
	Greater
	Less
)

// ParseComparator maps a notation token to a Comparator.
func ParseComparator(s string) (Comparator, error) {
	switch s {
	case "=":
		return Equal, nil
	case ">":
		return Greater, nil
	case "<":
		return Less, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownComparator, s)
}

func (c Comparator) String() string {
	switch c {
	case Equal:
		return "="
	case Greater:
		return ">"
	case Less:
		return "<"
	}
	return "?"
}

// Explode rerolls each child of a pool for as long as its result matches
// the comparator against the threshold, accumulating every roll. Safety
// is structural: construction rejects parameter combinations that would
// re-trigger on every roll, so a built Explode always settles.
type Explode struct {
	observer
	in           inner
	comparator   Comparator
	threshold    int
	hasThreshold bool
}

// NewExplode wraps r (auto-wrapping a bare rollable into a one-element
// cup). A nil threshold defaults to the pool's maximum. Construction
// fails with ErrInfiniteLoop when the condition would hold for every
// possible roll, checked against the pool bounds and against each child's
// own bounds.
func NewExplode(r dice.Rollable, comparator Comparator, threshold *int) (*Explode, error) {
	switch comparator {
	case Equal, Greater, Less:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownComparator, comparator)
	}
	in := wrap(r)
	if in.pool.Size() == 0 {
		return nil, fmt.Errorf("%w: empty pool", cup.ErrInvalidCup)
	}
	e := &Explode{in: in, comparator: comparator}
	if threshold != nil {
		e.threshold = *threshold
		e.hasThreshold = true
	} else {
		e.threshold = in.pool.Maximum()
	}
	if err := e.validateSettles(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Explode) validateSettles() error {
	check := func(min, max int) error {
		switch e.comparator {
		case Greater:
			if e.threshold <= min {
				return fmt.Errorf("%w: every roll exceeds %d", ErrInfiniteLoop, e.threshold)
			}
		case Less:
			if e.threshold >= max {
				return fmt.Errorf("%w: every roll is below %d", ErrInfiniteLoop, e.threshold)
			}
		case Equal:
			if min == max && e.threshold == max {
				return fmt.Errorf("%w: constant roll equals %d", ErrInfiniteLoop, e.threshold)
			}
		}
		return nil
	}
	if err := check(e.in.pool.Minimum(), e.in.pool.Maximum()); err != nil {
		return err
	}
	for _, child := range e.in.pool.Children() {
		if err := check(child.Minimum(), child.Maximum()); err != nil {
			return err
		}
	}
	return nil
}

// Inner returns the rollable handed to the constructor, unwrapping the
// implicit one-element cup when one was added.
func (e *Explode) Inner() dice.Rollable { return e.in.unwrap() }

// Comparator returns the trigger comparator.
func (e *Explode) Comparator() Comparator { return e.comparator }

// Threshold returns the effective threshold and whether it was explicit.
func (e *Explode) Threshold() (int, bool) { return e.threshold, e.hasThreshold }

func (e *Explode) triggers(v int) bool {
	switch e.comparator {
	case Equal:
		return v == e.threshold
	case Greater:
		return v > e.threshold
	default:
		return v < e.threshold
	}
}

// Minimum is the non-exploded floor: exploding only ever adds rolls.
func (e *Explode) Minimum() int { return e.in.pool.Minimum() }

// Maximum is unbounded; reroll depth is probabilistic.
func (e *Explode) Maximum() int { return math.MaxInt }

func (e *Explode) Roll() dice.Result {
	sum := 0
	var parts []string
	for _, child := range e.in.pool.Children() {
		for {
			res := child.Roll()
			sum += res.Value
			parts = append(parts, cup.WrapTrace(res.Trace))
			if !e.triggers(res.Value) {
				break
			}
		}
	}
	res := dice.Result{Value: sum, Trace: strings.Join(parts, " + "), From: e}
	e.emit(e.Notation(), res)
	return res
}

func (e *Explode) Notation() string {
	n := e.in.pool.Notation()
	if strings.Contains(n, "+") {
		n = "(" + n + ")"
	}
	n += "!"
	if e.comparator != Equal || e.hasThreshold {
		n += e.comparator.String()
	}
	if e.hasThreshold {
		n += strconv.Itoa(e.threshold)
	}
	return n
}
