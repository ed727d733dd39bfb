package parser

import (
	"github.com/robbyt/go-classbody/compiler/ast"
	"github.com/robbyt/go-classbody/compiler/scanner"
)

// unsupportedStatements start with a keyword the language reserves but does not implement.
var unsupportedStatements = map[string]string{
	"switch":       "switch statements are not supported",
	"try":          "try statements are not supported",
	"throw":        "throw statements are not supported",
	"synchronized": "synchronized statements are not supported",
	"assert":       "assert statements are not supported",
	"class":        "local class declarations are not supported",
	"interface":    "local interface declarations are not supported",
	"goto":         "goto is reserved",
	"const":        "const is reserved",
}

// ParseBlock parses "{ BlockStatement* }".
func (p *Parser) ParseBlock() (*ast.Block, error) {
	open, err := p.expectOperator("{")
	if err != nil {
		return nil, err
	}
	b := &ast.Block{Pos: ast.At(open.Loc)}
	for !p.peek().IsOperator("}") {
		if p.peek().IsEOF() {
			return nil, p.unexpected(p.peek(), `"}"`)
		}
		s, err := p.parseBlockStatement()
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, s)
	}
	p.read()
	return b, nil
}

func (p *Parser) parseBlockStatement() (ast.Stmt, error) {
	if p.peek().IsKeyword("final") || p.isLocalVarDecl() {
		d, err := p.parseLocalVarDecl()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOperator(";"); err != nil {
			return nil, err
		}
		return d, nil
	}
	return p.ParseStatement()
}

// isLocalVarDecl looks ahead for "Type Identifier" without consuming tokens.
func (p *Parser) isLocalVarDecl() bool {
	tok := p.peek()
	if tok.Kind == scanner.Keyword {
		return primitiveTypes[tok.Text] || unsupportedTypes[tok.Text]
	}
	if !tok.IsIdentifier() {
		return false
	}
	i := 1
	for p.peekAt(i).IsOperator(".") && p.peekAt(i+1).IsIdentifier() {
		i += 2
	}
	next := p.peekAt(i)
	return next.IsIdentifier() || next.IsOperator("[") && p.peekAt(i+1).IsOperator("]")
}

func (p *Parser) parseLocalVarDecl() (*ast.LocalVarDecl, error) {
	start := p.peek()
	d := &ast.LocalVarDecl{Pos: ast.At(start.Loc)}
	if start.IsKeyword("final") {
		p.read()
		d.Final = true
	}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	d.Type = t
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	if d.Vars, err = p.parseVariableDeclaratorsRest(name); err != nil {
		return nil, err
	}
	return d, nil
}

// ParseStatement parses one statement. Local variable declarations are only accepted by
// ParseBlock.
func (p *Parser) ParseStatement() (ast.Stmt, error) {
	tok := p.peek()
	if tok.Kind == scanner.Keyword {
		if msg, ok := unsupportedStatements[tok.Text]; ok {
			return nil, p.errorAt(tok, "%s", msg)
		}
	}

	switch {
	case tok.IsOperator("{"):
		return p.ParseBlock()
	case tok.IsOperator(";"):
		p.read()
		return &ast.EmptyStmt{Pos: ast.At(tok.Loc)}, nil
	case tok.IsKeyword("if"):
		return p.parseIf()
	case tok.IsKeyword("while"):
		return p.parseWhile()
	case tok.IsKeyword("do"):
		return p.parseDo()
	case tok.IsKeyword("for"):
		return p.parseFor()
	case tok.IsKeyword("break"), tok.IsKeyword("continue"):
		p.read()
		if p.peek().IsIdentifier() {
			return nil, p.errorAt(p.peek(), "labeled %s is not supported", tok.Text)
		}
		if _, err := p.expectOperator(";"); err != nil {
			return nil, err
		}
		if tok.Text == "break" {
			return &ast.BreakStmt{Pos: ast.At(tok.Loc)}, nil
		}
		return &ast.ContinueStmt{Pos: ast.At(tok.Loc)}, nil
	case tok.IsKeyword("return"):
		p.read()
		r := &ast.ReturnStmt{Pos: ast.At(tok.Loc)}
		if !p.peek().IsOperator(";") {
			x, err := p.ParseExpression()
			if err != nil {
				return nil, err
			}
			r.X = x
		}
		if _, err := p.expectOperator(";"); err != nil {
			return nil, err
		}
		return r, nil
	}

	if tok.IsIdentifier() && p.peekAt(1).IsOperator(":") {
		return nil, p.errorAt(tok, "labeled statements are not supported")
	}

	s, err := p.parseExpressionStatement()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOperator(";"); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *Parser) parseExpressionStatement() (*ast.ExprStmt, error) {
	tok := p.peek()
	x, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	switch e := x.(type) {
	case *ast.Assign, *ast.MethodCall, *ast.SuperMethodCall, *ast.New, *ast.Postfix:
	case *ast.Unary:
		if e.Op != "++" && e.Op != "--" {
			return nil, p.errorAt(tok, "not a statement")
		}
	default:
		return nil, p.errorAt(tok, "not a statement")
	}
	return &ast.ExprStmt{Pos: ast.At(tok.Loc), X: x}, nil
}

func (p *Parser) parseParenCondition() (ast.Expr, error) {
	if _, err := p.expectOperator("("); err != nil {
		return nil, err
	}
	x, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOperator(")"); err != nil {
		return nil, err
	}
	return x, nil
}

func (p *Parser) parseIf() (*ast.IfStmt, error) {
	kw := p.read()
	cond, err := p.parseParenCondition()
	if err != nil {
		return nil, err
	}
	then, err := p.ParseStatement()
	if err != nil {
		return nil, err
	}
	s := &ast.IfStmt{Pos: ast.At(kw.Loc), Cond: cond, Then: then}
	if p.peek().IsKeyword("else") {
		p.read()
		if s.Else, err = p.ParseStatement(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (p *Parser) parseWhile() (*ast.WhileStmt, error) {
	kw := p.read()
	cond, err := p.parseParenCondition()
	if err != nil {
		return nil, err
	}
	body, err := p.ParseStatement()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Pos: ast.At(kw.Loc), Cond: cond, Body: body}, nil
}

func (p *Parser) parseDo() (*ast.DoStmt, error) {
	kw := p.read()
	body, err := p.ParseStatement()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("while"); err != nil {
		return nil, err
	}
	cond, err := p.parseParenCondition()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOperator(";"); err != nil {
		return nil, err
	}
	return &ast.DoStmt{Pos: ast.At(kw.Loc), Body: body, Cond: cond}, nil
}

func (p *Parser) parseFor() (*ast.ForStmt, error) {
	kw := p.read()
	if _, err := p.expectOperator("("); err != nil {
		return nil, err
	}
	s := &ast.ForStmt{Pos: ast.At(kw.Loc)}

	if !p.peek().IsOperator(";") {
		if p.peek().IsKeyword("final") || p.isLocalVarDecl() {
			d, err := p.parseLocalVarDecl()
			if err != nil {
				return nil, err
			}
			if p.peek().IsOperator(":") {
				return nil, p.errorAt(p.peek(), "enhanced for statements are not supported")
			}
			s.Init = []ast.Stmt{d}
		} else {
			for {
				es, err := p.parseExpressionStatement()
				if err != nil {
					return nil, err
				}
				s.Init = append(s.Init, es)
				if !p.acceptOperator(",") {
					break
				}
			}
		}
	}
	if _, err := p.expectOperator(";"); err != nil {
		return nil, err
	}

	if !p.peek().IsOperator(";") {
		cond, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		s.Cond = cond
	}
	if _, err := p.expectOperator(";"); err != nil {
		return nil, err
	}

	if !p.peek().IsOperator(")") {
		for {
			es, err := p.parseExpressionStatement()
			if err != nil {
				return nil, err
			}
			s.Update = append(s.Update, es.X)
			if !p.acceptOperator(",") {
				break
			}
		}
	}
	if _, err := p.expectOperator(")"); err != nil {
		return nil, err
	}

	body, err := p.ParseStatement()
	if err != nil {
		return nil, err
	}
	s.Body = body
	return s, nil
}
