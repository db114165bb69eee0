package notation

import "fmt"

// scanner is a cursor over a notation string. Matching is byte-wise and
// case-insensitive; the original input is kept for error fragments.
type scanner struct {
	input string
	pos   int
}

func newScanner(input string) *scanner {
	return &scanner{input: input}
}

func (s *scanner) eof() bool {
	return s.pos >= len(s.input)
}

func (s *scanner) peekAt(off int) (byte, bool) {
	if s.pos+off >= len(s.input) {
		return 0, false
	}
	return upper(s.input[s.pos+off]), true
}

func (s *scanner) peek() (byte, bool) {
	return s.peekAt(0)
}

// takeByte consumes c if it is next, ignoring case.
func (s *scanner) takeByte(c byte) bool {
	if b, ok := s.peek(); ok && b == upper(c) {
		s.pos++
		return true
	}
	return false
}

// takeInt consumes an unsigned integer.
func (s *scanner) takeInt() (int, bool) {
	start := s.pos
	for {
		b, ok := s.peek()
		if !ok || !isDigit(b) {
			break
		}
		s.pos++
	}
	if s.pos == start {
		return 0, false
	}
	n := 0
	for _, c := range []byte(s.input[start:s.pos]) {
		n = n*10 + int(c-'0')
	}
	return n, true
}

// takeSignedInt consumes an optionally negated integer (face lists allow
// negative values).
func (s *scanner) takeSignedInt() (int, bool) {
	mark := s.pos
	neg := s.takeByte('-')
	n, ok := s.takeInt()
	if !ok {
		s.pos = mark
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

// takeSelectCode consumes one of DH, DL, KH, KL.
func (s *scanner) takeSelectCode() (string, bool) {
	a, ok := s.peekAt(0)
	if !ok {
		return "", false
	}
	b, ok := s.peekAt(1)
	if !ok {
		return "", false
	}
	if (a == 'D' || a == 'K') && (b == 'H' || b == 'L') {
		s.pos += 2
		return string([]byte{a, b}), true
	}
	return "", false
}

// takeComparator consumes one of = > <.
func (s *scanner) takeComparator() (string, bool) {
	b, ok := s.peek()
	if !ok {
		return "", false
	}
	switch b {
	case '=', '>', '<':
		s.pos++
		return string(b), true
	}
	return "", false
}

// takeOperator consumes one of + - * / ^.
func (s *scanner) takeOperator() (string, bool) {
	b, ok := s.peek()
	if !ok {
		return "", false
	}
	switch b {
	case '+', '-', '*', '/', '^':
		s.pos++
		return string(b), true
	}
	return "", false
}

// atGroup reports whether a dice group starts at the cursor: 'D' or an
// integer count followed by 'D'.
func (s *scanner) atGroup() bool {
	off := 0
	for {
		b, ok := s.peekAt(off)
		if !ok {
			return false
		}
		if isDigit(b) {
			off++
			continue
		}
		return b == 'D'
	}
}

func (s *scanner) errorf(offset int, format string, args ...any) error {
	fragment := s.input[offset:]
	if len(fragment) > 12 {
		fragment = fragment[:12]
	}
	return &SyntaxError{
		Input:    s.input,
		Offset:   offset,
		Fragment: fragment,
		Reason:   fmt.Sprintf(format, args...),
	}
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
