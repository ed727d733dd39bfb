package scanner

import (
	"fmt"

	"github.com/robbyt/go-classbody/platform/diag"
)

// Kind is the lexical category of a Token.
type Kind int

const (
	EOF Kind = iota
	Illegal
	Identifier
	Keyword
	IntLiteral
	LongLiteral
	DoubleLiteral
	StringLiteral
	Operator
)

var kindNames = [...]string{
	EOF:           "end of input",
	Illegal:       "illegal token",
	Identifier:    "identifier",
	Keyword:       "keyword",
	IntLiteral:    "int literal",
	LongLiteral:   "long literal",
	DoubleLiteral: "double literal",
	StringLiteral: "string literal",
	Operator:      "operator",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is one lexical unit. For StringLiteral, Value holds the unescaped text; for
// Illegal, Text holds the diagnostic message.
type Token struct {
	Kind  Kind
	Text  string
	Value string
	Loc   diag.Location
}

func (t Token) IsEOF() bool {
	return t.Kind == EOF
}

func (t Token) IsKeyword(k string) bool {
	return t.Kind == Keyword && t.Text == k
}

func (t Token) IsOperator(op string) bool {
	return t.Kind == Operator && t.Text == op
}

func (t Token) IsIdentifier() bool {
	return t.Kind == Identifier
}

// IsAnyOperator reports whether the token is one of ops.
func (t Token) IsAnyOperator(ops ...string) bool {
	if t.Kind != Operator {
		return false
	}
	for _, op := range ops {
		if t.Text == op {
			return true
		}
	}
	return false
}

func (t Token) String() string {
	switch t.Kind {
	case EOF:
		return "end of input"
	case Illegal:
		return "illegal token"
	default:
		return t.Text
	}
}

var keywords = map[string]bool{
	"abstract": true, "assert": true, "boolean": true, "break": true, "byte": true,
	"case": true, "catch": true, "char": true, "class": true, "const": true,
	"continue": true, "default": true, "do": true, "double": true, "else": true,
	"enum": true, "extends": true, "false": true, "final": true, "finally": true,
	"float": true, "for": true, "goto": true, "if": true, "implements": true,
	"import": true, "instanceof": true, "int": true, "interface": true, "long": true,
	"native": true, "new": true, "null": true, "package": true, "private": true,
	"protected": true, "public": true, "return": true, "short": true, "static": true,
	"strictfp": true, "super": true, "switch": true, "synchronized": true, "this": true,
	"throw": true, "throws": true, "transient": true, "true": true, "try": true,
	"void": true, "volatile": true, "while": true,
}

// IsReserved reports whether word is a keyword of the language.
func IsReserved(word string) bool {
	return keywords[word]
}

// operators sorted so that longer spellings are tried first.
var operators = []string{
	">>>=",
	"<<=", ">>=", ">>>",
	"==", "!=", "<=", ">=", "&&", "||", "++", "--", "+=", "-=", "*=", "/=", "%=",
	"&=", "|=", "^=", "<<", ">>",
	"(", ")", "{", "}", "[", "]", ";", ",", ".", "=", ">", "<", "!", "~", "?", ":",
	"+", "-", "*", "/", "&", "|", "^", "%", "@",
}
