package modifier

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"dicecup/internal/cup"
	"dicecup/internal/dice"
)

// Algorithm selects which ranked subset of a pool's rolls survives.
type Algorithm int8

const (
	DropHighest Algorithm = iota
	DropLowest
	KeepHighest
	KeepLowest
)

// ParseAlgorithm maps a notation code (case-insensitive) to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToUpper(s) {
	case "DH":
		return DropHighest, nil
	case "DL":
		return DropLowest, nil
	case "KH":
		return KeepHighest, nil
	case "KL":
		return KeepLowest, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

func (a Algorithm) String() string {
	switch a {
	case DropHighest:
		return "DH"
	case DropLowest:
		return "DL"
	case KeepHighest:
		return "KH"
	case KeepLowest:
		return "KL"
	}
	return "??"
}

// DropKeep rolls every child of a pool independently, ranks the values,
// and sums the surviving subset. Ties rank by original roll order.
type DropKeep struct {
	observer
	in        inner
	algorithm Algorithm
	threshold int
}

// NewDropKeep wraps r (auto-wrapping a bare rollable into a one-element
// cup) with the given algorithm and threshold. The threshold must lie in
// [0, pool size]; anything else fails with ErrTooManyDropped.
func NewDropKeep(r dice.Rollable, algorithm Algorithm, threshold int) (*DropKeep, error) {
	switch algorithm {
	case DropHighest, DropLowest, KeepHighest, KeepLowest:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, algorithm)
	}
	in := wrap(r)
	if in.pool.Size() == 0 {
		return nil, fmt.Errorf("%w: empty pool", cup.ErrInvalidCup)
	}
	if threshold < 0 || threshold > in.pool.Size() {
		return nil, fmt.Errorf("%w: threshold %d, pool size %d", ErrTooManyDropped, threshold, in.pool.Size())
	}
	return &DropKeep{in: in, algorithm: algorithm, threshold: threshold}, nil
}

// Inner returns the rollable handed to the constructor, unwrapping the
// implicit one-element cup when one was added.
func (d *DropKeep) Inner() dice.Rollable { return d.in.unwrap() }

// Algorithm returns the selection algorithm.
func (d *DropKeep) Algorithm() Algorithm { return d.algorithm }

// Threshold returns the rank threshold.
func (d *DropKeep) Threshold() int { return d.threshold }

// keepMask ranks values ascending (stable, so ties keep roll order) and
// returns which original positions survive the selection.
func (d *DropKeep) keepMask(values []int) []bool {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })

	keep := make([]bool, len(values))
	n := len(values)
	var kept []int
	switch d.algorithm {
	case DropHighest:
		kept = order[:n-d.threshold]
	case DropLowest:
		kept = order[d.threshold:]
	case KeepHighest:
		kept = order[n-d.threshold:]
	case KeepLowest:
		kept = order[:d.threshold]
	}
	for _, idx := range kept {
		keep[idx] = true
	}
	return keep
}

// selectSum applies the ranking filter to one value per child and returns
// the surviving sum plus the survivors in original order.
func (d *DropKeep) selectSum(values []int) (int, []int) {
	keep := d.keepMask(values)
	sum := 0
	var retained []int
	for i, v := range values {
		if keep[i] {
			sum += v
			retained = append(retained, v)
		}
	}
	return sum, retained
}

// Minimum filters the vector of child minimums, not a single scalar, so
// the bound stays tight for mixed pools.
func (d *DropKeep) Minimum() int {
	sum, _ := d.selectSum(childBounds(d.in.pool, dice.Rollable.Minimum))
	return sum
}

// Maximum ranks the child maxima and sums the survivors. A surviving
// unbounded child (math.MaxInt) keeps the whole bound at math.MaxInt;
// summing it would wrap. A dropped one leaves a finite bound.
func (d *DropKeep) Maximum() int {
	values := childBounds(d.in.pool, dice.Rollable.Maximum)
	keep := d.keepMask(values)
	sum := 0
	for i, v := range values {
		if !keep[i] {
			continue
		}
		if v == math.MaxInt {
			return math.MaxInt
		}
		sum += v
	}
	return sum
}

func (d *DropKeep) Roll() dice.Result {
	children := d.in.pool.Children()
	values := make([]int, len(children))
	for i, child := range children {
		values[i] = child.Roll().Value
	}
	sum, retained := d.selectSum(values)
	parts := make([]string, len(retained))
	for i, v := range retained {
		parts[i] = dice.TraceValue(v)
	}
	t := strings.Join(parts, " + ")
	if t == "" {
		t = "0"
	}
	res := dice.Result{Value: sum, Trace: t, From: d}
	d.emit(d.Notation(), res)
	return res
}

func (d *DropKeep) Notation() string {
	n := d.in.pool.Notation()
	if strings.Contains(n, "+") {
		n = "(" + n + ")"
	}
	return n + d.algorithm.String() + strconv.Itoa(d.threshold)
}

func childBounds(c *cup.Cup, bound func(dice.Rollable) int) []int {
	children := c.Children()
	out := make([]int, len(children))
	for i, child := range children {
		out[i] = bound(child)
	}
	return out
}
