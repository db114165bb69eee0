// Package notation parses dice notation strings like "3D20+4" or
// "4D6DH1!>5" into evaluation trees. The parser performs no randomness
// and no semantic validation beyond the grammar itself; node constructors
// own the semantic checks and their errors propagate unchanged.
package notation

import (
	"fmt"

	"dicecup/internal/cup"
	"dicecup/internal/dice"
	"dicecup/internal/modifier"
	"dicecup/internal/trace"
)

// maxArithmeticChain caps consecutive arithmetic suffixes applied to one
// expression segment. Joining a new dice group with "+" opens a new
// segment and resets the chain.
const maxArithmeticChain = 2

// SyntaxError reports input that does not match the grammar.
type SyntaxError struct {
	Input    string
	Offset   int
	Fragment string
	Reason   string
}

func (e *SyntaxError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("syntax error at offset %d: %s", e.Offset, e.Reason)
	}
	return fmt.Sprintf("syntax error at %q (offset %d): %s", e.Fragment, e.Offset, e.Reason)
}

// Parser builds evaluation trees from notation strings. Dice built by
// the parser draw from Source; when Profiler is set it is attached to
// every modifier the parser constructs.
type Parser struct {
	Source   dice.Source
	Profiler trace.Profiler
}

// New returns a parser over the given randomness source.
func New(src dice.Source) *Parser {
	return &Parser{Source: src}
}

// Parse converts a notation string into an evaluation tree.
func Parse(src dice.Source, input string) (dice.Rollable, error) {
	return New(src).Parse(input)
}

// Parse converts a notation string into an evaluation tree. Keywords are
// case-insensitive and no whitespace is required between tokens.
func (p *Parser) Parse(input string) (dice.Rollable, error) {
	s := newScanner(input)
	if s.eof() {
		return nil, s.errorf(s.pos, "empty notation")
	}
	root, err := p.parseTerm(s)
	if err != nil {
		return nil, err
	}

	// Fold arithmetic suffixes and cup joins left to right. Each
	// arithmetic token wraps the accumulated tree so far; there is no
	// operator precedence.
	arithChain := 0
	var joined []dice.Rollable
	for !s.eof() {
		start := s.pos
		opTok, ok := s.takeOperator()
		if !ok {
			return nil, s.errorf(start, "expected operator")
		}
		if opTok == "+" && s.atGroup() {
			term, err := p.parseTerm(s)
			if err != nil {
				return nil, err
			}
			if joined == nil {
				joined = []dice.Rollable{root}
			}
			joined = append(joined, term)
			root = cup.New(joined...)
			arithChain = 0
			continue
		}
		op, err := modifier.ParseOperator(opTok)
		if err != nil {
			return nil, s.errorf(start, "unknown operator %q", opTok)
		}
		operand, ok := s.takeInt()
		if !ok {
			return nil, s.errorf(s.pos, "expected integer operand after %q", opTok)
		}
		arithChain++
		if arithChain > maxArithmeticChain {
			return nil, s.errorf(start, "more than %d chained arithmetic modifiers", maxArithmeticChain)
		}
		arith, err := modifier.NewArithmetic(root, op, operand)
		if err != nil {
			return nil, err
		}
		p.observe(arith)
		root = arith
		joined = nil
	}
	return root, nil
}

// parseTerm parses one pool: a dice group with optional select and
// explode suffixes, select first.
func (p *Parser) parseTerm(s *scanner) (dice.Rollable, error) {
	root, err := p.parseGroup(s)
	if err != nil {
		return nil, err
	}
	if root, err = p.parseSelectSuffix(s, root); err != nil {
		return nil, err
	}
	if root, err = p.parseExplodeSuffix(s, root); err != nil {
		return nil, err
	}
	return root, nil
}

// parseGroup parses count? 'D' sides.
func (p *Parser) parseGroup(s *scanner) (dice.Rollable, error) {
	start := s.pos
	count, hasCount := s.takeInt()
	if !s.takeByte('D') {
		return nil, s.errorf(start, "expected dice group")
	}

	var die dice.Rollable
	switch {
	case s.takeByte('F'):
		die = dice.NewFudge(p.Source)
	case s.takeByte('['):
		faces, err := p.parseFaces(s)
		if err != nil {
			return nil, err
		}
		d, err := dice.NewCustom(p.Source, faces...)
		if err != nil {
			return nil, err
		}
		die = d
	default:
		sidesStart := s.pos
		sides, ok := s.takeInt()
		if !ok {
			return nil, s.errorf(sidesStart, "expected side count, 'F' or face list")
		}
		if sides < 2 {
			return nil, s.errorf(sidesStart, "a die needs at least 2 sides, got %d", sides)
		}
		d, err := dice.NewSided(p.Source, sides)
		if err != nil {
			return nil, err
		}
		die = d
	}

	if !hasCount {
		return die, nil
	}
	pool, err := cup.FromRollable(die, count)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

func (p *Parser) parseFaces(s *scanner) ([]int, error) {
	var faces []int
	for {
		start := s.pos
		face, ok := s.takeSignedInt()
		if !ok {
			return nil, s.errorf(start, "expected face value")
		}
		faces = append(faces, face)
		if s.takeByte(',') {
			continue
		}
		if s.takeByte(']') {
			return faces, nil
		}
		return nil, s.errorf(s.pos, "expected ',' or ']' in face list")
	}
}

func (p *Parser) parseSelectSuffix(s *scanner, root dice.Rollable) (dice.Rollable, error) {
	code, ok := s.takeSelectCode()
	if !ok {
		return root, nil
	}
	algorithm, err := modifier.ParseAlgorithm(code)
	if err != nil {
		return nil, err
	}
	threshold, ok := s.takeInt()
	if !ok {
		threshold = 1
	}
	dk, err := modifier.NewDropKeep(root, algorithm, threshold)
	if err != nil {
		return nil, err
	}
	p.observe(dk)
	return dk, nil
}

func (p *Parser) parseExplodeSuffix(s *scanner, root dice.Rollable) (dice.Rollable, error) {
	if !s.takeByte('!') {
		return root, nil
	}
	comparator := modifier.Equal
	if tok, ok := s.takeComparator(); ok {
		c, err := modifier.ParseComparator(tok)
		if err != nil {
			return nil, err
		}
		comparator = c
	}
	var threshold *int
	if t, ok := s.takeInt(); ok {
		threshold = &t
	}
	ex, err := modifier.NewExplode(root, comparator, threshold)
	if err != nil {
		return nil, err
	}
	p.observe(ex)
	return ex, nil
}

type profiled interface {
	SetProfiler(trace.Profiler)
}

func (p *Parser) observe(node profiled) {
	if p.Profiler != nil {
		node.SetProfiler(p.Profiler)
	}
}
