// Package parser is a recursive-descent parser over a scanner.Scanner. Besides whole
// compilation units it exposes the entry points needed to assemble a unit piecemeal:
// import declarations, import declaration bodies and single class body declarations that
// are appended to an existing class declaration.
package parser

import (
	"github.com/robbyt/go-classbody/compiler/ast"
	"github.com/robbyt/go-classbody/compiler/scanner"
	"github.com/robbyt/go-classbody/platform/diag"
)

// Parser consumes tokens from one scanner.
type Parser struct {
	s *scanner.Scanner
}

// New creates a parser reading from s.
func New(s *scanner.Scanner) *Parser {
	return &Parser{s: s}
}

func (p *Parser) String() string {
	return "parser.Parser"
}

func (p *Parser) peek() scanner.Token {
	return p.s.Peek()
}

func (p *Parser) peekAt(n int) scanner.Token {
	return p.s.PeekAt(n)
}

func (p *Parser) read() scanner.Token {
	return p.s.Read()
}

func (p *Parser) errorAt(tok scanner.Token, format string, args ...any) error {
	loc := tok.Loc
	if tok.Kind == scanner.Illegal {
		return diag.Syntaxf(&loc, "%s", tok.Text)
	}
	return diag.Syntaxf(&loc, format, args...)
}

func (p *Parser) unexpected(tok scanner.Token, want string) error {
	return p.errorAt(tok, "%s expected instead of %q", want, tok.String())
}

func (p *Parser) expectOperator(op string) (scanner.Token, error) {
	tok := p.peek()
	if !tok.IsOperator(op) {
		return tok, p.unexpected(tok, `"`+op+`"`)
	}
	return p.read(), nil
}

func (p *Parser) expectKeyword(kw string) (scanner.Token, error) {
	tok := p.peek()
	if !tok.IsKeyword(kw) {
		return tok, p.unexpected(tok, `"`+kw+`"`)
	}
	return p.read(), nil
}

func (p *Parser) expectIdentifier() (scanner.Token, error) {
	tok := p.peek()
	if !tok.IsIdentifier() {
		return tok, p.unexpected(tok, "identifier")
	}
	return p.read(), nil
}

// acceptOperator consumes the next token if it is op.
func (p *Parser) acceptOperator(op string) bool {
	if p.peek().IsOperator(op) {
		p.read()
		return true
	}
	return false
}

// ParseCompilationUnit parses "[package] {import} {type declaration}" up to end of input.
func (p *Parser) ParseCompilationUnit() (*ast.CompilationUnit, error) {
	unit := ast.NewCompilationUnit(p.s.Origin())

	if p.peek().IsKeyword("package") {
		pkg, err := p.ParsePackageDeclaration()
		if err != nil {
			return nil, err
		}
		unit.SetPackage(pkg)
	}

	for p.peek().IsKeyword("import") {
		imp, err := p.ParseImportDeclaration()
		if err != nil {
			return nil, err
		}
		unit.AddImport(imp)
	}

	for !p.peek().IsEOF() {
		if p.acceptOperator(";") {
			continue
		}
		td, err := p.ParseTypeDeclaration()
		if err != nil {
			return nil, err
		}
		unit.AddType(td)
	}
	return unit, nil
}

// ParsePackageDeclaration parses "package a.b.c;".
func (p *Parser) ParsePackageDeclaration() (*ast.PackageDecl, error) {
	kw, err := p.expectKeyword("package")
	if err != nil {
		return nil, err
	}
	parts, err := p.parseQualifiedIdentifier()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOperator(";"); err != nil {
		return nil, err
	}
	return &ast.PackageDecl{Pos: ast.At(kw.Loc), Name: joinParts(parts)}, nil
}

// ParseImportDeclaration parses "import ImportDeclarationBody ;".
func (p *Parser) ParseImportDeclaration() (*ast.ImportDecl, error) {
	kw, err := p.expectKeyword("import")
	if err != nil {
		return nil, err
	}
	imp, err := p.ParseImportDeclarationBody()
	if err != nil {
		return nil, err
	}
	imp.Loc = kw.Loc
	if _, err := p.expectOperator(";"); err != nil {
		return nil, err
	}
	return imp, nil
}

// ParseImportDeclarationBody parses "[static] a.b.C" or "[static] a.b.*", the part of an
// import declaration between the keyword and the semicolon.
func (p *Parser) ParseImportDeclarationBody() (*ast.ImportDecl, error) {
	imp := &ast.ImportDecl{Pos: ast.At(p.peek().Loc)}
	if p.peek().IsKeyword("static") {
		p.read()
		imp.Static = true
	}

	first, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	imp.Parts = []string{first.Text}
	for p.peek().IsOperator(".") {
		p.read()
		if p.peek().IsOperator("*") {
			p.read()
			imp.OnDemand = true
			break
		}
		id, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		imp.Parts = append(imp.Parts, id.Text)
	}
	if !imp.OnDemand && len(imp.Parts) < 2 {
		return nil, p.errorAt(first, "single-type import %q must be qualified", first.Text)
	}
	if imp.Static && !imp.OnDemand && len(imp.Parts) < 3 {
		return nil, p.errorAt(first, "static import must name a type member")
	}
	return imp, nil
}

func (p *Parser) parseQualifiedIdentifier() ([]string, error) {
	id, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	parts := []string{id.Text}
	for p.peek().IsOperator(".") && p.peekAt(1).IsIdentifier() {
		p.read()
		parts = append(parts, p.read().Text)
	}
	return parts, nil
}

// parseModifiers consumes modifier keywords. Duplicates are a syntax error.
func (p *Parser) parseModifiers() (ast.Modifiers, error) {
	var mods ast.Modifiers
	for {
		tok := p.peek()
		if tok.Kind != scanner.Keyword {
			return mods, nil
		}
		m := ast.ModifierFor(tok.Text)
		if m == 0 {
			return mods, nil
		}
		// "static {" starts a static initializer, not a modifier list.
		if m == ast.Static && p.peekAt(1).IsOperator("{") {
			return mods, nil
		}
		if mods.Has(m) {
			return 0, p.errorAt(tok, "duplicate modifier %q", tok.Text)
		}
		p.read()
		mods |= m
	}
}

// ParseTypeDeclaration parses a top-level class or interface declaration.
func (p *Parser) ParseTypeDeclaration() (ast.TypeDecl, error) {
	mods, err := p.parseModifiers()
	if err != nil {
		return nil, err
	}
	tok := p.peek()
	switch {
	case tok.IsKeyword("class"):
		p.read()
		return p.parseClassDeclaration(tok, mods)
	case tok.IsKeyword("interface"):
		p.read()
		return p.parseInterfaceDeclaration(tok, mods)
	default:
		return nil, p.unexpected(tok, `"class" or "interface"`)
	}
}

func (p *Parser) parseClassDeclaration(kw scanner.Token, mods ast.Modifiers) (*ast.ClassDecl, error) {
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	cd := &ast.ClassDecl{Pos: ast.At(kw.Loc), Modifiers: mods, Name: name.Text}

	if p.peek().IsKeyword("extends") {
		p.read()
		if cd.Extends, err = p.parseType(); err != nil {
			return nil, err
		}
	}
	if p.peek().IsKeyword("implements") {
		p.read()
		if cd.Implements, err = p.parseTypeList(); err != nil {
			return nil, err
		}
	}

	if _, err := p.expectOperator("{"); err != nil {
		return nil, err
	}
	for !p.peek().IsOperator("}") {
		if p.peek().IsEOF() {
			return nil, p.unexpected(p.peek(), `"}"`)
		}
		if err := p.ParseClassBodyDeclaration(cd); err != nil {
			return nil, err
		}
	}
	p.read()
	return cd, nil
}

func (p *Parser) parseInterfaceDeclaration(kw scanner.Token, mods ast.Modifiers) (*ast.InterfaceDecl, error) {
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	id := &ast.InterfaceDecl{Pos: ast.At(kw.Loc), Modifiers: mods | ast.Abstract, Name: name.Text}

	if p.peek().IsKeyword("extends") {
		p.read()
		if id.Extends, err = p.parseTypeList(); err != nil {
			return nil, err
		}
	}

	if _, err := p.expectOperator("{"); err != nil {
		return nil, err
	}
	for !p.peek().IsOperator("}") {
		if p.peek().IsEOF() {
			return nil, p.unexpected(p.peek(), `"}"`)
		}
		if err := p.ParseInterfaceBodyDeclaration(id); err != nil {
			return nil, err
		}
	}
	p.read()
	return id, nil
}

func (p *Parser) parseTypeList() ([]*ast.TypeRef, error) {
	var refs []*ast.TypeRef
	for {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		refs = append(refs, t)
		if !p.acceptOperator(",") {
			return refs, nil
		}
	}
}

// ParseClassBodyDeclaration parses one member (field, method, constructor or initializer)
// and appends it to cd.
func (p *Parser) ParseClassBodyDeclaration(cd *ast.ClassDecl) error {
	if p.acceptOperator(";") {
		return nil
	}

	if tok := p.peek(); tok.IsOperator("{") {
		body, err := p.ParseBlock()
		if err != nil {
			return err
		}
		cd.AddMember(&ast.Initializer{Pos: ast.At(tok.Loc), Body: body})
		return nil
	}
	if tok := p.peek(); tok.IsKeyword("static") && p.peekAt(1).IsOperator("{") {
		p.read()
		body, err := p.ParseBlock()
		if err != nil {
			return err
		}
		cd.AddMember(&ast.Initializer{Pos: ast.At(tok.Loc), Static: true, Body: body})
		return nil
	}

	start := p.peek()
	mods, err := p.parseModifiers()
	if err != nil {
		return err
	}

	tok := p.peek()
	if tok.IsKeyword("class") || tok.IsKeyword("interface") {
		return p.errorAt(tok, "member type declarations are not supported")
	}

	if tok.IsIdentifier() && tok.Text == cd.Name && p.peekAt(1).IsOperator("(") {
		p.read()
		params, err := p.parseFormalParameters()
		if err != nil {
			return err
		}
		if p.peek().IsKeyword("throws") {
			return p.errorAt(p.peek(), "throws clauses are not supported")
		}
		body, err := p.ParseBlock()
		if err != nil {
			return err
		}
		cd.AddMember(&ast.ConstructorDecl{Pos: ast.At(start.Loc), Modifiers: mods, Params: params, Body: body})
		return nil
	}

	m, err := p.parseMemberRest(start, mods)
	if err != nil {
		return err
	}
	cd.AddMember(m)
	return nil
}

// ParseInterfaceBodyDeclaration parses one interface member. Methods are implicitly public
// and abstract, fields implicitly public static final.
func (p *Parser) ParseInterfaceBodyDeclaration(id *ast.InterfaceDecl) error {
	if p.acceptOperator(";") {
		return nil
	}
	start := p.peek()
	mods, err := p.parseModifiers()
	if err != nil {
		return err
	}
	if tok := p.peek(); tok.IsKeyword("class") || tok.IsKeyword("interface") {
		return p.errorAt(tok, "member type declarations are not supported")
	}

	m, err := p.parseMemberRest(start, mods)
	if err != nil {
		return err
	}
	switch m := m.(type) {
	case *ast.MethodDecl:
		if m.Body != nil {
			return diag.Syntaxf(&m.Loc, "interface method %q cannot have a body", m.Name)
		}
		m.Modifiers |= ast.Public | ast.Abstract
	case *ast.FieldDecl:
		m.Modifiers |= ast.Public | ast.Static | ast.Final
	}
	id.AddMember(m)
	return nil
}

// parseMemberRest parses "Type name ..." or "void name(...)" after the modifiers.
func (p *Parser) parseMemberRest(start scanner.Token, mods ast.Modifiers) (ast.Member, error) {
	var ret *ast.TypeRef
	if tok := p.peek(); tok.IsKeyword("void") {
		p.read()
		ret = &ast.TypeRef{Pos: ast.At(tok.Loc), Name: "void"}
	} else {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		ret = t
	}

	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}

	if p.peek().IsOperator("(") {
		params, err := p.parseFormalParameters()
		if err != nil {
			return nil, err
		}
		if p.peek().IsKeyword("throws") {
			return nil, p.errorAt(p.peek(), "throws clauses are not supported")
		}
		md := &ast.MethodDecl{Pos: ast.At(start.Loc), Modifiers: mods, Return: ret, Name: name.Text, Params: params}
		if p.acceptOperator(";") {
			return md, nil
		}
		if md.Body, err = p.ParseBlock(); err != nil {
			return nil, err
		}
		return md, nil
	}

	if ret.Name == "void" {
		return nil, p.errorAt(name, "field %q cannot have type void", name.Text)
	}
	vars, err := p.parseVariableDeclaratorsRest(name)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOperator(";"); err != nil {
		return nil, err
	}
	return &ast.FieldDecl{Pos: ast.At(start.Loc), Modifiers: mods, Type: ret, Vars: vars}, nil
}

// parseVariableDeclaratorsRest parses "[= init] {, name [= init]}" after the first name.
func (p *Parser) parseVariableDeclaratorsRest(first scanner.Token) ([]*ast.VarDeclarator, error) {
	var vars []*ast.VarDeclarator
	name := first
	for {
		if p.peek().IsOperator("[") {
			return nil, p.errorAt(p.peek(), "array types are not supported")
		}
		v := &ast.VarDeclarator{Pos: ast.At(name.Loc), Name: name.Text}
		if p.acceptOperator("=") {
			init, err := p.ParseExpression()
			if err != nil {
				return nil, err
			}
			v.Init = init
		}
		vars = append(vars, v)
		if !p.acceptOperator(",") {
			return vars, nil
		}
		var err error
		if name, err = p.expectIdentifier(); err != nil {
			return nil, err
		}
	}
}

func (p *Parser) parseFormalParameters() ([]*ast.Param, error) {
	if _, err := p.expectOperator("("); err != nil {
		return nil, err
	}
	var params []*ast.Param
	if p.acceptOperator(")") {
		return params, nil
	}
	for {
		start := p.peek()
		final := false
		if start.IsKeyword("final") {
			p.read()
			final = true
		}
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		name, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		params = append(params, &ast.Param{Pos: ast.At(start.Loc), Final: final, Type: t, Name: name.Text})
		if p.acceptOperator(")") {
			return params, nil
		}
		if _, err := p.expectOperator(","); err != nil {
			return nil, err
		}
	}
}

var primitiveTypes = map[string]bool{"int": true, "long": true, "double": true, "boolean": true}

var unsupportedTypes = map[string]bool{"byte": true, "short": true, "char": true, "float": true}

// parseType parses a primitive type or a (qualified) class name. void is not a type here.
func (p *Parser) parseType() (*ast.TypeRef, error) {
	tok := p.peek()
	var ref *ast.TypeRef
	switch {
	case tok.Kind == scanner.Keyword && primitiveTypes[tok.Text]:
		p.read()
		ref = &ast.TypeRef{Pos: ast.At(tok.Loc), Name: tok.Text}
	case tok.Kind == scanner.Keyword && unsupportedTypes[tok.Text]:
		return nil, p.errorAt(tok, "type %q is not supported", tok.Text)
	case tok.IsIdentifier():
		parts, err := p.parseQualifiedIdentifier()
		if err != nil {
			return nil, err
		}
		ref = &ast.TypeRef{Pos: ast.At(tok.Loc), Name: joinParts(parts)}
	default:
		return nil, p.unexpected(tok, "type")
	}
	if p.peek().IsOperator("[") {
		return nil, p.errorAt(p.peek(), "array types are not supported")
	}
	return ref, nil
}

func joinParts(parts []string) string {
	n := 0
	for _, s := range parts {
		n += len(s) + 1
	}
	b := make([]byte, 0, n)
	for i, s := range parts {
		if i > 0 {
			b = append(b, '.')
		}
		b = append(b, s...)
	}
	return string(b)
}
