package modifier_test

import (
	"errors"
	"math"
	"testing"

	"dicecup/internal/dice"
	"dicecup/internal/modifier"
)

// seq returns a source replaying the given values in order, cycling.
func seq(values ...int) dice.Source {
	i := 0
	return dice.SourceFunc(func(min, max int) int {
		v := values[i%len(values)]
		i++
		return v
	})
}

func sided(t *testing.T, src dice.Source, sides int) *dice.Sided {
	t.Helper()
	d, err := dice.NewSided(src, sides)
	if err != nil {
		t.Fatalf("new sided: %v", err)
	}
	return d
}

func custom(t *testing.T, src dice.Source, faces ...int) *dice.Custom {
	t.Helper()
	d, err := dice.NewCustom(src, faces...)
	if err != nil {
		t.Fatalf("new custom: %v", err)
	}
	return d
}

func TestArithmeticOperations(t *testing.T) {
	cases := []struct {
		op      modifier.Operator
		operand int
		rolled  int
		want    int
	}{
		{modifier.Add, 4, 3, 7},
		{modifier.Sub, 4, 3, -1},
		{modifier.Mul, 3, 5, 15},
		{modifier.Div, 4, 7, 1},
		{modifier.Div, 4, -7, -1}, // truncation toward zero
		{modifier.Pow, 3, 2, 8},
		{modifier.Pow, 0, 5, 1},
	}
	for _, tc := range cases {
		inner := custom(t, seq(0), tc.rolled)
		a, err := modifier.NewArithmetic(inner, tc.op, tc.operand)
		if err != nil {
			t.Fatalf("%v %d: %v", tc.op, tc.operand, err)
		}
		if got := a.Roll().Value; got != tc.want {
			t.Fatalf("%d %s %d = %d, want %d", tc.rolled, tc.op, tc.operand, got, tc.want)
		}
	}
}

func TestArithmeticInvalidParameters(t *testing.T) {
	d := sided(t, dice.NewSource(1), 6)
	if _, err := modifier.NewArithmetic(d, modifier.Operator(9), 1); !errors.Is(err, modifier.ErrUnknownOperator) {
		t.Fatalf("expected ErrUnknownOperator, got %v", err)
	}
	if _, err := modifier.NewArithmetic(d, modifier.Add, -1); !errors.Is(err, modifier.ErrInvalidOperand) {
		t.Fatalf("expected ErrInvalidOperand, got %v", err)
	}
	if _, err := modifier.NewArithmetic(d, modifier.Div, 0); !errors.Is(err, modifier.ErrInvalidOperand) {
		t.Fatalf("expected ErrInvalidOperand for /0, got %v", err)
	}
}

func TestArithmeticBounds(t *testing.T) {
	src := dice.NewSource(1)
	cases := []struct {
		name     string
		inner    dice.Rollable
		op       modifier.Operator
		operand  int
		min, max int
	}{
		{"d6+4", sided(t, src, 6), modifier.Add, 4, 5, 10},
		{"d6-2", sided(t, src, 6), modifier.Sub, 2, -1, 4},
		{"d6*3", sided(t, src, 6), modifier.Mul, 3, 3, 18},
		{"d6/2", sided(t, src, 6), modifier.Div, 2, 0, 3},
		{"d6^2", sided(t, src, 6), modifier.Pow, 2, 1, 36},
		// Ranges spanning a sign change.
		{"neg*2", custom(t, src, -3, 5), modifier.Mul, 2, -6, 10},
		{"neg^2", custom(t, src, -3, 0, 2), modifier.Pow, 2, 0, 9},
		{"neg^3", custom(t, src, -3, 2), modifier.Pow, 3, -27, 8},
		{"allneg^2", custom(t, src, -3, -1), modifier.Pow, 2, 1, 9},
	}
	for _, tc := range cases {
		a, err := modifier.NewArithmetic(tc.inner, tc.op, tc.operand)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if a.Minimum() != tc.min || a.Maximum() != tc.max {
			t.Fatalf("%s: bounds [%d,%d], want [%d,%d]", tc.name, a.Minimum(), a.Maximum(), tc.min, tc.max)
		}
	}
}

func TestArithmeticBoundsWithUnboundedInner(t *testing.T) {
	// An exploding inner reports math.MaxInt; the marker stays sticky
	// through the operator instead of wrapping, except where the
	// operand makes the result constant.
	ex, err := modifier.NewExplode(sided(t, dice.NewSource(1), 6), modifier.Equal, nil)
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		op       modifier.Operator
		operand  int
		min, max int
	}{
		{modifier.Add, 2, 3, math.MaxInt},
		{modifier.Sub, 1, 0, math.MaxInt},
		{modifier.Div, 4, 0, math.MaxInt},
		{modifier.Pow, 2, 1, math.MaxInt},
		{modifier.Mul, 0, 0, 0},
		{modifier.Pow, 0, 1, 1},
	}
	for _, tc := range cases {
		a, err := modifier.NewArithmetic(ex, tc.op, tc.operand)
		if err != nil {
			t.Fatalf("%s %d: %v", tc.op, tc.operand, err)
		}
		if a.Minimum() != tc.min || a.Maximum() != tc.max {
			t.Fatalf("%s %d: bounds [%d,%d], want [%d,%d]", tc.op, tc.operand, a.Minimum(), a.Maximum(), tc.min, tc.max)
		}
	}
}

func TestArithmeticIdentityMatchesInner(t *testing.T) {
	// x+0 with the same randomness sequence equals the bare die.
	a, err := modifier.NewArithmetic(sided(t, dice.NewSource(11), 20), modifier.Add, 0)
	if err != nil {
		t.Fatal(err)
	}
	bare := sided(t, dice.NewSource(11), 20)
	for i := 0; i < 1000; i++ {
		if x, y := a.Roll().Value, bare.Roll().Value; x != y {
			t.Fatalf("iteration %d: %d != %d", i, x, y)
		}
	}
}

func TestArithmeticTraceAndNotation(t *testing.T) {
	a, err := modifier.NewArithmetic(sided(t, seq(3), 6), modifier.Mul, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := a.Notation(); got != "D6*2" {
		t.Fatalf("notation %q", got)
	}
	if res := a.Roll(); res.Trace != "3 * 2" || res.Value != 6 {
		t.Fatalf("roll %d %q", res.Value, res.Trace)
	}
}
