// Package scanner turns source text into a stream of tokens with an unbounded lookahead
// buffer. Lexical errors do not abort scanning: they are delivered in-band as Illegal
// tokens so that the consumer decides when to fail.
package scanner

import (
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/robbyt/go-classbody/platform/diag"
	"github.com/robbyt/go-classbody/platform/script/loader"
)

// Scanner is the token source consumed by the parser.
type Scanner struct {
	origin string
	src    string
	offset int
	line   int
	col    int
	buf    []Token
}

// New reads all of r and returns a scanner over it. The origin labels locations and is
// typically a file name or a source URL; it may be empty.
func New(origin string, r io.Reader) (*Scanner, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: reader is nil", diag.ErrInvalidArgument)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}
	return FromString(string(b), origin), nil
}

// FromString returns a scanner over text.
func FromString(text, origin string) *Scanner {
	return &Scanner{
		origin: origin,
		src:    text,
		line:   1,
		col:    1,
	}
}

// FromLoader reads the loader's content and labels tokens with its source URL.
func FromLoader(l loader.Loader) (*Scanner, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: loader is nil", diag.ErrInvalidArgument)
	}
	rc, err := l.GetReader()
	if err != nil {
		return nil, fmt.Errorf("failed to get reader from loader: %w", err)
	}
	origin := ""
	if u := l.GetSourceURL(); u != nil {
		origin = u.String()
	}
	s, err := New(origin, rc)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	if err := rc.Close(); err != nil {
		return nil, fmt.Errorf("failed to close reader: %w", err)
	}
	return s, nil
}

func (s *Scanner) String() string {
	return fmt.Sprintf("scanner.Scanner{Origin: %q}", s.origin)
}

// Origin returns the label given at construction.
func (s *Scanner) Origin() string {
	return s.origin
}

// Location returns the location of the next token.
func (s *Scanner) Location() diag.Location {
	return s.Peek().Loc
}

// Peek returns the next token without consuming it.
func (s *Scanner) Peek() Token {
	return s.PeekAt(0)
}

// PeekAt returns the token n positions ahead of the next one without consuming anything.
func (s *Scanner) PeekAt(n int) Token {
	for len(s.buf) <= n {
		if len(s.buf) > 0 && s.buf[len(s.buf)-1].Kind == EOF {
			return s.buf[len(s.buf)-1]
		}
		s.buf = append(s.buf, s.scan())
	}
	return s.buf[n]
}

// Read consumes and returns the next token. End of input is sticky.
func (s *Scanner) Read() Token {
	t := s.Peek()
	if t.Kind != EOF {
		s.buf = s.buf[1:]
	}
	return t
}

func (s *Scanner) loc() diag.Location {
	return diag.Location{File: s.origin, Line: s.line, Column: s.col}
}

func (s *Scanner) peekRune(ahead int) rune {
	off := s.offset
	for i := 0; ; i++ {
		if off >= len(s.src) {
			return -1
		}
		r, w := utf8.DecodeRuneInString(s.src[off:])
		if i == ahead {
			return r
		}
		off += w
	}
}

func (s *Scanner) next() rune {
	if s.offset >= len(s.src) {
		return -1
	}
	r, w := utf8.DecodeRuneInString(s.src[s.offset:])
	s.offset += w
	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return r
}

func (s *Scanner) illegal(loc diag.Location, format string, args ...any) Token {
	return Token{Kind: Illegal, Text: fmt.Sprintf(format, args...), Loc: loc}
}

// skipSpace consumes whitespace and comments. An unterminated block comment yields an
// Illegal token.
func (s *Scanner) skipSpace() *Token {
	for {
		r := s.peekRune(0)
		switch {
		case r == -1:
			return nil
		case unicode.IsSpace(r):
			s.next()
		case r == '/' && s.peekRune(1) == '/':
			for r := s.peekRune(0); r != -1 && r != '\n'; r = s.peekRune(0) {
				s.next()
			}
		case r == '/' && s.peekRune(1) == '*':
			loc := s.loc()
			s.next()
			s.next()
			for {
				c := s.next()
				if c == -1 {
					t := s.illegal(loc, "unterminated comment")
					return &t
				}
				if c == '*' && s.peekRune(0) == '/' {
					s.next()
					break
				}
			}
		default:
			return nil
		}
	}
}

func (s *Scanner) scan() Token {
	if t := s.skipSpace(); t != nil {
		s.offset = len(s.src)
		return *t
	}
	loc := s.loc()
	r := s.peekRune(0)
	switch {
	case r == -1:
		return Token{Kind: EOF, Loc: loc}
	case isIdentStart(r):
		return s.scanIdentifier(loc)
	case isDigit(r) || (r == '.' && isDigit(s.peekRune(1))):
		return s.scanNumber(loc)
	case r == '"':
		return s.scanString(loc)
	case r == '\'':
		s.next()
		return s.illegal(loc, "character literals are not supported")
	}
	rest := s.src[s.offset:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			for range op {
				s.next()
			}
			return Token{Kind: Operator, Text: op, Loc: loc}
		}
	}
	s.next()
	return s.illegal(loc, "invalid character %q", r)
}

func (s *Scanner) scanIdentifier(loc diag.Location) Token {
	start := s.offset
	for isIdentPart(s.peekRune(0)) {
		s.next()
	}
	text := s.src[start:s.offset]
	if keywords[text] {
		return Token{Kind: Keyword, Text: text, Loc: loc}
	}
	return Token{Kind: Identifier, Text: text, Loc: loc}
}

func (s *Scanner) scanNumber(loc diag.Location) Token {
	start := s.offset
	if s.peekRune(0) == '0' && (s.peekRune(1) == 'x' || s.peekRune(1) == 'X') {
		s.next()
		s.next()
		if !isHexDigit(s.peekRune(0)) {
			return s.illegal(loc, "malformed hexadecimal literal")
		}
		for isHexDigit(s.peekRune(0)) {
			s.next()
		}
		return s.intSuffix(loc, start)
	}

	isDouble := false
	for isDigit(s.peekRune(0)) {
		s.next()
	}
	if s.peekRune(0) == '.' && isDigit(s.peekRune(1)) ||
		s.peekRune(0) == '.' && !isIdentStart(s.peekRune(1)) && s.peekRune(1) != '.' {
		isDouble = true
		s.next()
		for isDigit(s.peekRune(0)) {
			s.next()
		}
	}
	if r := s.peekRune(0); r == 'e' || r == 'E' {
		isDouble = true
		s.next()
		if r := s.peekRune(0); r == '+' || r == '-' {
			s.next()
		}
		if !isDigit(s.peekRune(0)) {
			return s.illegal(loc, "malformed exponent")
		}
		for isDigit(s.peekRune(0)) {
			s.next()
		}
	}
	switch s.peekRune(0) {
	case 'd', 'D', 'f', 'F':
		s.next()
		return Token{Kind: DoubleLiteral, Text: s.src[start:s.offset], Loc: loc}
	}
	if isDouble {
		return Token{Kind: DoubleLiteral, Text: s.src[start:s.offset], Loc: loc}
	}
	return s.intSuffix(loc, start)
}

func (s *Scanner) intSuffix(loc diag.Location, start int) Token {
	if r := s.peekRune(0); r == 'l' || r == 'L' {
		s.next()
		return Token{Kind: LongLiteral, Text: s.src[start:s.offset], Loc: loc}
	}
	if isIdentPart(s.peekRune(0)) {
		return s.illegal(loc, "malformed number literal")
	}
	return Token{Kind: IntLiteral, Text: s.src[start:s.offset], Loc: loc}
}

func (s *Scanner) scanString(loc diag.Location) Token {
	start := s.offset
	s.next()
	var b strings.Builder
	for {
		r := s.next()
		switch r {
		case -1, '\n':
			return s.illegal(loc, "unterminated string literal")
		case '"':
			return Token{Kind: StringLiteral, Text: s.src[start:s.offset], Value: b.String(), Loc: loc}
		case '\\':
			esc := s.next()
			switch esc {
			case 'b':
				b.WriteByte('\b')
			case 't':
				b.WriteByte('\t')
			case 'n':
				b.WriteByte('\n')
			case 'f':
				b.WriteByte('\f')
			case 'r':
				b.WriteByte('\r')
			case '"', '\'', '\\':
				b.WriteRune(esc)
			case 'u':
				var v rune
				for range 4 {
					h := s.next()
					if !isHexDigit(h) {
						return s.illegal(loc, "malformed unicode escape")
					}
					v = v<<4 | hexValue(h)
				}
				b.WriteRune(v)
			default:
				if esc >= '0' && esc <= '7' {
					v := esc - '0'
					for i := 0; i < 2 && s.peekRune(0) >= '0' && s.peekRune(0) <= '7'; i++ {
						v = v*8 + (s.next() - '0')
					}
					b.WriteRune(v)
					continue
				}
				return s.illegal(loc, "invalid escape sequence \\%c", esc)
			}
		default:
			b.WriteRune(r)
		}
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func hexValue(r rune) rune {
	switch {
	case r >= 'a':
		return r - 'a' + 10
	case r >= 'A':
		return r - 'A' + 10
	default:
		return r - '0'
	}
}
