package modifier

import (
	"fmt"
	"math"
	"strconv"

	"dicecup/internal/cup"
	"dicecup/internal/dice"
)

// Operator is an arithmetic operation applied to an inner outcome.
type Operator int8

const (
	Add Operator = iota
	Sub
	Mul
	Div
	Pow
)

// ParseOperator maps a notation token to an Operator.
func ParseOperator(s string) (Operator, error) {
	switch s {
	case "+":
		return Add, nil
	case "-":
		return Sub, nil
	case "*":
		return Mul, nil
	case "/":
		return Div, nil
	case "^":
		return Pow, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOperator, s)
}

func (op Operator) String() string {
	switch op {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Pow:
		return "^"
	}
	return "?"
}

// Arithmetic applies an integer operator and constant operand to the
// outcome of the wrapped rollable. Division truncates toward zero;
// exponentiation is integer with a non-negative exponent.
type Arithmetic struct {
	observer
	inner   dice.Rollable
	op      Operator
	operand int
}

// NewArithmetic wraps r with op and operand. The operand must be
// non-negative, and non-zero for division.
func NewArithmetic(r dice.Rollable, op Operator, operand int) (*Arithmetic, error) {
	switch op {
	case Add, Sub, Mul, Div, Pow:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownOperator, op)
	}
	if operand < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOperand, operand)
	}
	if op == Div && operand == 0 {
		return nil, fmt.Errorf("%w: division by zero", ErrInvalidOperand)
	}
	return &Arithmetic{inner: r, op: op, operand: operand}, nil
}

// Inner returns the wrapped rollable.
func (a *Arithmetic) Inner() dice.Rollable { return a.inner }

// Operator returns the operator.
func (a *Arithmetic) Operator() Operator { return a.op }

// Operand returns the constant operand.
func (a *Arithmetic) Operand() int { return a.operand }

func (a *Arithmetic) apply(v int) int {
	switch a.op {
	case Add:
		return v + a.operand
	case Sub:
		return v - a.operand
	case Mul:
		return v * a.operand
	case Div:
		return v / a.operand // Go truncates toward zero
	default:
		return ipow(v, a.operand)
	}
}

// Minimum applies the operator across the candidate extremes of the inner
// range. Exponentiation of a range spanning zero bottoms out at the value
// closest to zero, so that point is a candidate alongside the endpoints.
func (a *Arithmetic) Minimum() int {
	lo, _ := a.bounds()
	return lo
}

func (a *Arithmetic) Maximum() int {
	_, hi := a.bounds()
	return hi
}

func (a *Arithmetic) bounds() (int, int) {
	min, max := a.inner.Minimum(), a.inner.Maximum()
	unbounded := max == math.MaxInt
	if unbounded && a.operand == 0 && (a.op == Mul || a.op == Pow) {
		// x*0 and x^0 are constant; the unbounded inner cannot escape.
		unbounded = false
		max = min
	}
	candidates := []int{a.apply(min)}
	if !unbounded {
		// Applying the operator to math.MaxInt would wrap; the marker
		// stays sticky instead.
		candidates = append(candidates, a.apply(max))
	}
	if a.op == Pow && min < 0 && max > 0 {
		candidates = append(candidates, a.apply(0))
	}
	lo, hi := candidates[0], candidates[0]
	for _, c := range candidates[1:] {
		if c < lo {
			lo = c
		}
		if c > hi {
			hi = c
		}
	}
	if unbounded {
		hi = math.MaxInt
	}
	return lo, hi
}

func (a *Arithmetic) Roll() dice.Result {
	in := a.inner.Roll()
	res := dice.Result{
		Value: a.apply(in.Value),
		Trace: cup.WrapTrace(in.Trace) + " " + a.op.String() + " " + strconv.Itoa(a.operand),
		From:  a,
	}
	a.emit(a.Notation(), res)
	return res
}

func (a *Arithmetic) Notation() string {
	return a.inner.Notation() + a.op.String() + strconv.Itoa(a.operand)
}

// ipow is integer exponentiation with exp >= 0.
func ipow(base, exp int) int {
	result := 1
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}
