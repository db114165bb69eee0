package cup_test

import (
	"errors"
	"math"
	"testing"

	"dicecup/internal/cup"
	"dicecup/internal/dice"
)

func mustSided(t *testing.T, src dice.Source, sides int) *dice.Sided {
	t.Helper()
	d, err := dice.NewSided(src, sides)
	if err != nil {
		t.Fatalf("new sided: %v", err)
	}
	return d
}

// fixed is a stub rollable with scripted bounds and notation.
type fixed struct {
	min, max int
	notation string
}

func (f fixed) Minimum() int      { return f.min }
func (f fixed) Maximum() int      { return f.max }
func (f fixed) Roll() dice.Result { return dice.Result{Value: f.min, Trace: dice.TraceValue(f.min)} }
func (f fixed) Notation() string  { return f.notation }

func TestBoundsSumChildren(t *testing.T) {
	src := dice.NewSource(1)
	c := cup.New(mustSided(t, src, 6), mustSided(t, src, 8), dice.NewFudge(src))
	if c.Minimum() != 1+1-1 {
		t.Fatalf("minimum %d", c.Minimum())
	}
	if c.Maximum() != 6+8+1 {
		t.Fatalf("maximum %d", c.Maximum())
	}
}

func TestRollSumsAndBounds(t *testing.T) {
	src := dice.NewSource(99)
	c, err := cup.FromRollable(mustSided(t, src, 6), 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10000; i++ {
		res := c.Roll()
		if res.Value < c.Minimum() || res.Value > c.Maximum() {
			t.Fatalf("roll %d outside [%d,%d]", res.Value, c.Minimum(), c.Maximum())
		}
	}
}

func TestFromRollableCount(t *testing.T) {
	d := mustSided(t, dice.NewSource(1), 6)
	if _, err := cup.FromRollable(d, 0); !errors.Is(err, cup.ErrInvalidCup) {
		t.Fatalf("count 0: expected ErrInvalidCup, got %v", err)
	}
	if _, err := cup.FromRollable(d, -2); !errors.Is(err, cup.ErrInvalidCup) {
		t.Fatalf("count -2: expected ErrInvalidCup, got %v", err)
	}
	c, err := cup.FromRollable(d, 4)
	if err != nil {
		t.Fatal(err)
	}
	if c.Size() != 4 {
		t.Fatalf("size %d, want 4", c.Size())
	}
}

func TestNotationCollapsesRuns(t *testing.T) {
	src := dice.NewSource(1)
	d6 := mustSided(t, src, 6)
	d8 := mustSided(t, src, 8)
	cases := []struct {
		cup  *cup.Cup
		want string
	}{
		{cup.New(d6, d6), "2D6"},
		{cup.New(d6), "D6"},
		{cup.New(d6, d6, d8), "2D6+D8"},
		{cup.New(d8, d6, d6, d6), "D8+3D6"},
		{cup.New(d6, d8, d6), "D6+D8+D6"},
	}
	for _, tc := range cases {
		if got := tc.cup.Notation(); got != tc.want {
			t.Fatalf("notation %q, want %q", got, tc.want)
		}
	}
}

func TestMaximumSticksAtUnboundedChild(t *testing.T) {
	src := dice.NewSource(1)
	c := cup.New(mustSided(t, src, 20), fixed{min: 1, max: math.MaxInt, notation: "D4!"})
	if c.Minimum() != 2 {
		t.Fatalf("minimum %d, want 2", c.Minimum())
	}
	if c.Maximum() != math.MaxInt {
		t.Fatalf("maximum %d, want math.MaxInt", c.Maximum())
	}
}

func TestNotationCollapsesOnlyBareDice(t *testing.T) {
	kh := fixed{min: 1, max: 6, notation: "D6KH1"}
	ex := fixed{min: 1, max: math.MaxInt, notation: "D6!"}
	faces := fixed{min: -1, max: 1, notation: "D[-1,0,1]"}
	cases := []struct {
		cup  *cup.Cup
		want string
	}{
		{cup.New(kh, kh), "D6KH1+D6KH1"},
		{cup.New(ex, ex), "D6!+D6!"},
		{cup.New(faces, faces), "2D[-1,0,1]"},
	}
	for _, tc := range cases {
		if got := tc.cup.Notation(); got != tc.want {
			t.Fatalf("notation %q, want %q", got, tc.want)
		}
	}
}

func TestRollTraceJoinsWithPlus(t *testing.T) {
	vals := []int{3, 2}
	i := 0
	src := dice.SourceFunc(func(min, max int) int {
		v := vals[i%len(vals)]
		i++
		return v
	})
	d, err := dice.NewSided(src, 6)
	if err != nil {
		t.Fatal(err)
	}
	c := cup.New(d, d)
	res := c.Roll()
	if res.Value != 5 {
		t.Fatalf("value %d, want 5", res.Value)
	}
	if res.Trace != "3 + 2" {
		t.Fatalf("trace %q, want \"3 + 2\"", res.Trace)
	}
}

func TestRollWrapsNestedSumTraces(t *testing.T) {
	src := dice.SourceFunc(func(min, max int) int { return max })
	d, err := dice.NewSided(src, 4)
	if err != nil {
		t.Fatal(err)
	}
	nested := cup.New(d, d)
	outer := cup.New(nested, d)
	res := outer.Roll()
	if res.Trace != "(4 + 4) + 4" {
		t.Fatalf("trace %q", res.Trace)
	}
	if res.Value != 12 {
		t.Fatalf("value %d, want 12", res.Value)
	}
}

func TestEmptyCupRollsZero(t *testing.T) {
	c := cup.New()
	if res := c.Roll(); res.Value != 0 || res.Trace != "" {
		t.Fatalf("empty cup rolled %d %q", res.Value, res.Trace)
	}
	if c.Minimum() != 0 || c.Maximum() != 0 {
		t.Fatalf("empty cup bounds [%d,%d]", c.Minimum(), c.Maximum())
	}
}
