package parser

import (
	"math"
	"strconv"
	"strings"

	"github.com/robbyt/go-classbody/compiler/ast"
	"github.com/robbyt/go-classbody/compiler/scanner"
)

var assignmentOperators = []string{
	"=", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<=", ">>=", ">>>=",
}

// binaryPrecedence is zero for tokens that are not binary operators.
func binaryPrecedence(tok scanner.Token) int {
	if tok.IsKeyword("instanceof") {
		return 7
	}
	if tok.Kind != scanner.Operator {
		return 0
	}
	switch tok.Text {
	case "||":
		return 1
	case "&&":
		return 2
	case "|":
		return 3
	case "^":
		return 4
	case "&":
		return 5
	case "==", "!=":
		return 6
	case "<", ">", "<=", ">=":
		return 7
	case "<<", ">>", ">>>":
		return 8
	case "+", "-":
		return 9
	case "*", "/", "%":
		return 10
	}
	return 0
}

// ParseExpression parses an assignment expression.
func (p *Parser) ParseExpression() (ast.Expr, error) {
	lhs, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	tok := p.peek()
	if !tok.IsAnyOperator(assignmentOperators...) {
		return lhs, nil
	}
	switch ast.Unparen(lhs).(type) {
	case *ast.Name, *ast.FieldAccess, *ast.SuperFieldAccess:
	default:
		return nil, p.errorAt(tok, "left-hand side of %q is not a variable", tok.Text)
	}
	p.read()
	rhs, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.Assign{Pos: ast.At(tok.Loc), Op: tok.Text, LHS: lhs, RHS: rhs}, nil
}

func (p *Parser) parseConditional() (ast.Expr, error) {
	cond, err := p.parseBinary(1)
	if err != nil {
		return nil, err
	}
	q := p.peek()
	if !q.IsOperator("?") {
		return cond, nil
	}
	p.read()
	then, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOperator(":"); err != nil {
		return nil, err
	}
	els, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	return &ast.Conditional{Pos: ast.At(q.Loc), Cond: cond, Then: then, Else: els}, nil
}

func (p *Parser) parseBinary(minPrec int) (ast.Expr, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		prec := binaryPrecedence(op)
		if prec == 0 || prec < minPrec {
			return x, nil
		}
		p.read()
		if op.IsKeyword("instanceof") {
			t, err := p.parseType()
			if err != nil {
				return nil, err
			}
			x = &ast.InstanceOf{Pos: ast.At(op.Loc), X: x, Type: t}
			continue
		}
		y, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		x = &ast.Binary{Pos: ast.At(op.Loc), Op: op.Text, X: x, Y: y}
	}
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	tok := p.peek()
	switch {
	case tok.IsOperator("-") && (p.peekAt(1).Kind == scanner.IntLiteral || p.peekAt(1).Kind == scanner.LongLiteral):
		// Folded so that the minimum int and long values can be written as literals.
		p.read()
		lit, err := p.parseNumberLiteral(p.read(), true)
		if err != nil {
			return nil, err
		}
		lit.Loc = tok.Loc
		return p.parseSelectors(lit)
	case tok.IsAnyOperator("+", "-", "!", "~", "++", "--"):
		p.read()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Pos: ast.At(tok.Loc), Op: tok.Text, X: x}, nil
	case tok.IsOperator("(") && p.isCast():
		return p.parseCast()
	}
	return p.parsePostfix()
}

// isCast decides whether "(" starts a cast. Primitive casts are recognized by their type
// keyword; reference casts need a name in parentheses followed by an operand that cannot
// continue a binary expression.
func (p *Parser) isCast() bool {
	t := p.peekAt(1)
	if t.Kind == scanner.Keyword && (primitiveTypes[t.Text] || unsupportedTypes[t.Text]) {
		return p.peekAt(2).IsOperator(")")
	}
	if !t.IsIdentifier() {
		return false
	}
	i := 2
	for p.peekAt(i).IsOperator(".") && p.peekAt(i+1).IsIdentifier() {
		i += 2
	}
	if !p.peekAt(i).IsOperator(")") {
		return false
	}
	next := p.peekAt(i + 1)
	switch next.Kind {
	case scanner.Identifier, scanner.IntLiteral, scanner.LongLiteral, scanner.DoubleLiteral, scanner.StringLiteral:
		return true
	case scanner.Keyword:
		switch next.Text {
		case "this", "super", "new", "true", "false", "null":
			return true
		}
	case scanner.Operator:
		return next.IsAnyOperator("(", "!", "~")
	}
	return false
}

func (p *Parser) parseCast() (ast.Expr, error) {
	open := p.read()
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOperator(")"); err != nil {
		return nil, err
	}
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &ast.Cast{Pos: ast.At(open.Loc), Type: t, X: x}, nil
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if x, err = p.parseSelectors(x); err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if !tok.IsAnyOperator("++", "--") {
			return x, nil
		}
		p.read()
		x = &ast.Postfix{Pos: ast.At(tok.Loc), Op: tok.Text, X: x}
	}
}

// parseSelectors parses ".name" and ".name(args)" suffixes.
func (p *Parser) parseSelectors(x ast.Expr) (ast.Expr, error) {
	for {
		tok := p.peek()
		if tok.IsOperator("[") {
			return nil, p.errorAt(tok, "array access is not supported")
		}
		if !tok.IsOperator(".") {
			return x, nil
		}
		p.read()
		name, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		if p.peek().IsOperator("(") {
			args, err := p.parseArguments()
			if err != nil {
				return nil, err
			}
			x = &ast.MethodCall{Pos: ast.At(name.Loc), X: x, Name: name.Text, Args: args}
			continue
		}
		x = &ast.FieldAccess{Pos: ast.At(name.Loc), X: x, Name: name.Text}
	}
}

func (p *Parser) parseArguments() ([]ast.Expr, error) {
	if _, err := p.expectOperator("("); err != nil {
		return nil, err
	}
	var args []ast.Expr
	if p.acceptOperator(")") {
		return args, nil
	}
	for {
		a, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.acceptOperator(")") {
			return args, nil
		}
		if _, err := p.expectOperator(","); err != nil {
			return nil, err
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.peek()
	switch tok.Kind {
	case scanner.IntLiteral, scanner.LongLiteral:
		p.read()
		return p.parseNumberLiteral(tok, false)
	case scanner.DoubleLiteral:
		p.read()
		text := strings.TrimRight(tok.Text, "dDfF")
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, p.errorAt(tok, "invalid floating-point literal %q", tok.Text)
		}
		return &ast.Literal{Pos: ast.At(tok.Loc), Kind: ast.DoubleLit, Value: v}, nil
	case scanner.StringLiteral:
		p.read()
		return &ast.Literal{Pos: ast.At(tok.Loc), Kind: ast.StringLit, Value: tok.Value}, nil
	case scanner.Identifier:
		return p.parseNamePrimary()
	}

	switch {
	case tok.IsKeyword("true"), tok.IsKeyword("false"):
		p.read()
		return &ast.Literal{Pos: ast.At(tok.Loc), Kind: ast.BoolLit, Value: tok.Text == "true"}, nil
	case tok.IsKeyword("null"):
		p.read()
		return &ast.Literal{Pos: ast.At(tok.Loc), Kind: ast.NullLit}, nil
	case tok.IsOperator("("):
		p.read()
		x, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOperator(")"); err != nil {
			return nil, err
		}
		return &ast.Paren{Pos: ast.At(tok.Loc), X: x}, nil
	case tok.IsKeyword("this"):
		p.read()
		if p.peek().IsOperator("(") {
			return nil, p.errorAt(tok, "explicit constructor invocations are not supported")
		}
		return &ast.This{Pos: ast.At(tok.Loc)}, nil
	case tok.IsKeyword("super"):
		p.read()
		if p.peek().IsOperator("(") {
			return nil, p.errorAt(tok, "explicit constructor invocations are not supported")
		}
		if _, err := p.expectOperator("."); err != nil {
			return nil, err
		}
		name, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		if p.peek().IsOperator("(") {
			args, err := p.parseArguments()
			if err != nil {
				return nil, err
			}
			return &ast.SuperMethodCall{Pos: ast.At(tok.Loc), Name: name.Text, Args: args}, nil
		}
		return &ast.SuperFieldAccess{Pos: ast.At(tok.Loc), Name: name.Text}, nil
	case tok.IsKeyword("new"):
		p.read()
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if p.peek().IsOperator("{") {
			return nil, p.errorAt(p.peek(), "anonymous classes are not supported")
		}
		args, err := p.parseArguments()
		if err != nil {
			return nil, err
		}
		if p.peek().IsOperator("{") {
			return nil, p.errorAt(p.peek(), "anonymous classes are not supported")
		}
		return &ast.New{Pos: ast.At(tok.Loc), Type: t, Args: args}, nil
	case tok.Kind == scanner.Keyword && primitiveTypes[tok.Text] && p.peekAt(1).IsOperator("."):
		return nil, p.errorAt(tok, "class literals are not supported")
	}
	return nil, p.unexpected(tok, "expression")
}

// parseNamePrimary parses "a.b.c" and "a.b.m(args)". The longest dotted prefix that is
// not followed by an argument list becomes an ast.Name.
func (p *Parser) parseNamePrimary() (ast.Expr, error) {
	first := p.read()
	parts := []string{first.Text}
	for p.peek().IsOperator(".") && p.peekAt(1).IsIdentifier() {
		if p.peekAt(2).IsOperator("(") {
			p.read()
			name := p.read()
			args, err := p.parseArguments()
			if err != nil {
				return nil, err
			}
			recv := &ast.Name{Pos: ast.At(first.Loc), Parts: parts}
			return &ast.MethodCall{Pos: ast.At(name.Loc), X: recv, Name: name.Text, Args: args}, nil
		}
		p.read()
		parts = append(parts, p.read().Text)
	}
	if len(parts) == 1 && p.peek().IsOperator("(") {
		args, err := p.parseArguments()
		if err != nil {
			return nil, err
		}
		return &ast.MethodCall{Pos: ast.At(first.Loc), Name: first.Text, Args: args}, nil
	}
	return &ast.Name{Pos: ast.At(first.Loc), Parts: parts}, nil
}

// parseNumberLiteral converts an int or long token. Decimal literals must fit the signed
// range after applying negate; hexadecimal literals may use the full unsigned width.
func (p *Parser) parseNumberLiteral(tok scanner.Token, negate bool) (*ast.Literal, error) {
	long := tok.Kind == scanner.LongLiteral
	text := strings.TrimRight(tok.Text, "lL")

	bits := 32
	if long {
		bits = 64
	}

	var v int64
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		u, err := strconv.ParseUint(text[2:], 16, bits)
		if err != nil {
			return nil, p.errorAt(tok, "integer literal %q is out of range", tok.Text)
		}
		if long {
			v = int64(u)
		} else {
			v = int64(int32(uint32(u)))
		}
		if negate {
			v = -v
		}
	} else {
		u, err := strconv.ParseUint(text, 10, 64)
		limit := uint64(math.MaxInt32)
		if long {
			limit = math.MaxInt64
		}
		if negate {
			limit++
		}
		if err != nil || u > limit {
			return nil, p.errorAt(tok, "integer literal %q is out of range", tok.Text)
		}
		v = int64(u)
		if negate {
			v = -v
		}
	}

	if long {
		return &ast.Literal{Pos: ast.At(tok.Loc), Kind: ast.LongLit, Value: v}, nil
	}
	return &ast.Literal{Pos: ast.At(tok.Loc), Kind: ast.IntLit, Value: int32(v)}, nil
}
