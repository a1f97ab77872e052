package parser

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/latticeql/lattice"
	"github.com/latticeql/lattice/ast"
)

// Parse parses a single model source. The file name is used only for
// positions; imports are not followed (see ParseFile).
func Parse(file, src string) (*ast.System, error) {
	toks, derr := newLexer(file, src).scan()
	if derr != nil {
		return nil, lattice.Diagnostics{derr}
	}
	p := &parser{file: file, toks: toks}
	sys, err := p.parseSystem()
	if err != nil {
		return nil, lattice.Diagnostics{err}
	}
	return sys, nil
}

// ParseFile parses the model file at path and recursively loads its
// imports, resolved relative to the importing file. The returned system
// is the merged compilation unit; Imports lists every loaded file in
// load order.
func ParseFile(path string) (*ast.System, error) {
	merged := &ast.System{}
	seen := make(map[string]bool)
	if err := loadInto(merged, path, seen); err != nil {
		return nil, err
	}
	return merged, nil
}

func loadInto(merged *ast.System, path string, seen map[string]bool) error {
	clean := filepath.Clean(path)
	if seen[clean] {
		return nil
	}
	seen[clean] = true

	src, err := os.ReadFile(clean)
	if err != nil {
		return fmt.Errorf("lattice: reading model: %w", err)
	}
	sys, err := Parse(clean, string(src))
	if err != nil {
		return err
	}
	merged.Imports = append(merged.Imports, clean)
	for _, imp := range sys.Imports {
		if err := loadInto(merged, filepath.Join(filepath.Dir(clean), imp), seen); err != nil {
			return err
		}
	}
	merged.Types = append(merged.Types, sys.Types...)
	merged.Enums = append(merged.Enums, sys.Enums...)
	merged.Modules = append(merged.Modules, sys.Modules...)
	return nil
}

type parser struct {
	file string
	toks []token
	i    int
}

func (p *parser) cur() token { return p.toks[p.i] }
func (p *parser) peek() token {
	if p.i+1 < len(p.toks) {
		return p.toks[p.i+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() token {
	t := p.toks[p.i]
	if p.i < len(p.toks)-1 {
		p.i++
	}
	return t
}

func (p *parser) at(kind tokenKind) bool { return p.cur().kind == kind }

func (p *parser) atKeyword(kw string) bool {
	return p.cur().kind == tokIdent && p.cur().text == kw
}

func (p *parser) accept(kind tokenKind) bool {
	if p.at(kind) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(kind tokenKind) (token, *lattice.Diagnostic) {
	if !p.at(kind) {
		return token{}, p.errf("expected %s, found %s", kind, p.cur())
	}
	return p.next(), nil
}

func (p *parser) errf(format string, args ...any) *lattice.Diagnostic {
	return lattice.Errorf(lattice.KindSyntax, p.cur().pos, format, args...)
}

func (p *parser) parseSystem() (*ast.System, *lattice.Diagnostic) {
	sys := &ast.System{}
	for !p.at(tokEOF) {
		anns, err := p.parseAnnotations()
		if err != nil {
			return nil, err
		}
		switch {
		case p.atKeyword("import"):
			if len(anns) > 0 {
				return nil, p.errf("annotations are not allowed on import")
			}
			p.next()
			path, err := p.expect(tokString)
			if err != nil {
				return nil, err
			}
			sys.Imports = append(sys.Imports, path.text)
		case p.atKeyword("context"), p.atKeyword("type"):
			m, err := p.parseModel(anns)
			if err != nil {
				return nil, err
			}
			sys.Types = append(sys.Types, m)
		case p.atKeyword("enum"):
			if len(anns) > 0 {
				return nil, p.errf("annotations are not allowed on enum")
			}
			e, err := p.parseEnum()
			if err != nil {
				return nil, err
			}
			sys.Enums = append(sys.Enums, e)
		case p.atKeyword("module"):
			m, err := p.parseModule(anns)
			if err != nil {
				return nil, err
			}
			sys.Modules = append(sys.Modules, m)
		default:
			return nil, p.errf("expected declaration, found %s", p.cur())
		}
	}
	return sys, nil
}

func (p *parser) parseAnnotations() ([]*ast.Annotation, *lattice.Diagnostic) {
	var anns []*ast.Annotation
	for p.at(tokAt) {
		pos := p.next().pos
		name, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		params, perr := p.parseAnnotationParams()
		if perr != nil {
			return nil, perr
		}
		anns = append(anns, &ast.Annotation{Name: name.text, Params: params, Pos: pos})
	}
	return anns, nil
}

func (p *parser) parseAnnotationParams() (ast.AnnotationParams, *lattice.Diagnostic) {
	if !p.accept(tokLParen) {
		return ast.NoParams{}, nil
	}
	// Named-map form: ident '=' (but not '==').
	if p.at(tokIdent) && p.peek().kind == tokAssign {
		mp := &ast.MapParams{
			Values: make(map[string]ast.Expr),
			Spans:  make(map[string][]lattice.Position),
		}
		for {
			key, err := p.expect(tokIdent)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokAssign); err != nil {
				return nil, err
			}
			value, verr := p.parseExpr()
			if verr != nil {
				return nil, verr
			}
			if _, dup := mp.Values[key.text]; !dup {
				mp.Values[key.text] = value
			}
			mp.Spans[key.text] = append(mp.Spans[key.text], key.pos)
			if !p.accept(tokComma) {
				break
			}
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return mp, nil
	}
	pos := p.cur().pos
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.accept(tokComma) {
		elems := []ast.Expr{first}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if !p.accept(tokComma) {
				break
			}
		}
		first = &ast.ListLit{Elems: elems, Span: pos}
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return &ast.SingleParam{Value: first, Span: pos}, nil
}

func (p *parser) parseModel(anns []*ast.Annotation) (*ast.Model, *lattice.Diagnostic) {
	kind := ast.KindType
	if p.cur().text == "context" {
		kind = ast.KindContext
	}
	pos := p.next().pos
	name, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	var fields []*ast.Field
	for !p.at(tokRBrace) {
		f, err := p.parseField()
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
		p.accept(tokSemi)
	}
	p.next() // }
	return &ast.Model{Name: name.text, Kind: kind, Fields: fields, Annotations: anns, Pos: pos}, nil
}

func (p *parser) parseField() (*ast.Field, *lattice.Diagnostic) {
	anns, err := p.parseAnnotations()
	if err != nil {
		return nil, err
	}
	name, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokColon); err != nil {
		return nil, err
	}
	typ, terr := p.parseType()
	if terr != nil {
		return nil, terr
	}
	f := &ast.Field{Name: name.text, Type: typ, Annotations: anns, Pos: name.pos}
	if p.accept(tokAssign) {
		def, derr := p.parseDefault()
		if derr != nil {
			return nil, derr
		}
		f.Default = def
	}
	return f, nil
}

func (p *parser) parseDefault() (*ast.FieldDefault, *lattice.Diagnostic) {
	pos := p.cur().pos
	// `= name(args)` is a default function; anything else is a value.
	if p.at(tokIdent) && p.peek().kind == tokLParen {
		name := p.next()
		p.next() // (
		var args []ast.Expr
		for !p.at(tokRParen) {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !p.accept(tokComma) {
				break
			}
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &ast.FieldDefault{FuncName: name.text, Args: args, Pos: pos}, nil
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.FieldDefault{Value: value, Pos: pos}, nil
}

func (p *parser) parseType() (ast.FieldType, *lattice.Diagnostic) {
	base, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	t := &ast.PlainType{Base: base.text, Span: base.pos}
	if p.accept(tokDot) {
		name, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		t.Module, t.Base = base.text, name.text
	}
	if p.accept(tokLAngle) {
		for {
			arg, err := p.parseType()
			if err != nil {
				return nil, err
			}
			t.Args = append(t.Args, arg)
			if !p.accept(tokComma) {
				break
			}
		}
		if _, err := p.expect(tokRAngle); err != nil {
			return nil, err
		}
	}
	var ft ast.FieldType = t
	if p.accept(tokQuestion) {
		ft = &ast.OptionalType{Inner: t}
	}
	return ft, nil
}

func (p *parser) parseEnum() (*ast.Enum, *lattice.Diagnostic) {
	pos := p.next().pos // enum
	name, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	e := &ast.Enum{Name: name.text, Pos: pos}
	for !p.at(tokRBrace) {
		c, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		e.Cases = append(e.Cases, &ast.EnumCase{Name: c.text, Pos: c.pos})
		if !p.accept(tokComma) {
			p.accept(tokSemi)
		}
	}
	p.next() // }
	return e, nil
}

func (p *parser) parseModule(anns []*ast.Annotation) (*ast.Module, *lattice.Diagnostic) {
	pos := p.next().pos // module
	name, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	mod := &ast.Module{Name: name.text, Annotations: anns, BaseFile: p.file, Pos: pos}
	for !p.at(tokRBrace) {
		decls, err := p.parseAnnotations()
		if err != nil {
			return nil, err
		}
		switch {
		case p.atKeyword("type"), p.atKeyword("context"):
			m, err := p.parseModel(decls)
			if err != nil {
				return nil, err
			}
			mod.Types = append(mod.Types, m)
		case p.atKeyword("enum"):
			if len(decls) > 0 {
				return nil, p.errf("annotations are not allowed on enum")
			}
			e, err := p.parseEnum()
			if err != nil {
				return nil, err
			}
			mod.Enums = append(mod.Enums, e)
		case p.atKeyword("query"), p.atKeyword("mutation"), p.atKeyword("export"):
			m, err := p.parseMethod(decls)
			if err != nil {
				return nil, err
			}
			mod.Methods = append(mod.Methods, m)
		case p.atKeyword("interceptor"):
			ic, err := p.parseInterceptor(decls)
			if err != nil {
				return nil, err
			}
			mod.Interceptors = append(mod.Interceptors, ic)
		default:
			return nil, p.errf("expected module declaration, found %s", p.cur())
		}
	}
	p.next() // }
	return mod, nil
}

func (p *parser) parseMethod(anns []*ast.Annotation) (*ast.Method, *lattice.Diagnostic) {
	exported := false
	if p.atKeyword("export") {
		exported = true
		p.next()
	}
	kind := ast.Query
	switch {
	case p.atKeyword("query"):
	case p.atKeyword("mutation"):
		kind = ast.Mutation
	default:
		return nil, p.errf("expected query or mutation, found %s", p.cur())
	}
	pos := p.next().pos
	name, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	args, aerr := p.parseArguments()
	if aerr != nil {
		return nil, aerr
	}
	if _, err := p.expect(tokColon); err != nil {
		return nil, err
	}
	ret, rerr := p.parseType()
	if rerr != nil {
		return nil, rerr
	}
	return &ast.Method{
		Name: name.text, Kind: kind, Arguments: args, ReturnType: ret,
		Exported: exported, Annotations: anns, Pos: pos,
	}, nil
}

func (p *parser) parseInterceptor(anns []*ast.Annotation) (*ast.Interceptor, *lattice.Diagnostic) {
	pos := p.next().pos // interceptor
	name, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	args, aerr := p.parseArguments()
	if aerr != nil {
		return nil, aerr
	}
	return &ast.Interceptor{Name: name.text, Arguments: args, Annotations: anns, Pos: pos}, nil
}

func (p *parser) parseArguments() ([]*ast.Argument, *lattice.Diagnostic) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	var args []*ast.Argument
	for !p.at(tokRParen) {
		anns, err := p.parseAnnotations()
		if err != nil {
			return nil, err
		}
		name, nerr := p.expect(tokIdent)
		if nerr != nil {
			return nil, nerr
		}
		if _, err := p.expect(tokColon); err != nil {
			return nil, err
		}
		typ, terr := p.parseType()
		if terr != nil {
			return nil, terr
		}
		args = append(args, &ast.Argument{Name: name.text, Type: typ, Annotations: anns, Pos: name.pos})
		if !p.accept(tokComma) {
			break
		}
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return args, nil
}

// Expression parsing. Binding, tightest first: unary ! > relational
// (== != < <= > >= in) > && > ||. Parentheses override.

func (p *parser) parseExpr() (ast.Expr, *lattice.Diagnostic) {
	return p.parseOr()
}

func (p *parser) parseOr() (ast.Expr, *lattice.Diagnostic) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.at(tokOrOr) {
		pos := p.next().pos
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.LogicalExpr{Op: ast.Or, Left: left, Right: right, Span: pos}
	}
	return left, nil
}

func (p *parser) parseAnd() (ast.Expr, *lattice.Diagnostic) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.at(tokAndAnd) {
		pos := p.next().pos
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &ast.LogicalExpr{Op: ast.And, Left: left, Right: right, Span: pos}
	}
	return left, nil
}

var relationalOps = map[tokenKind]ast.RelationalOpKind{
	tokEq:     ast.Eq,
	tokNeq:    ast.Neq,
	tokLAngle: ast.Lt,
	tokLte:    ast.Lte,
	tokRAngle: ast.Gt,
	tokGte:    ast.Gte,
}

func (p *parser) parseRelational() (ast.Expr, *lattice.Diagnostic) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	op, ok := relationalOps[p.cur().kind]
	if !ok {
		if !p.atKeyword("in") {
			return left, nil
		}
		op = ast.In
	}
	pos := p.next().pos
	right, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &ast.RelationalExpr{Op: op, Left: left, Right: right, Span: pos}, nil
}

func (p *parser) parseUnary() (ast.Expr, *lattice.Diagnostic) {
	if p.at(tokBang) {
		pos := p.next().pos
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.LogicalExpr{Op: ast.Not, Left: operand, Span: pos}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (ast.Expr, *lattice.Diagnostic) {
	t := p.cur()
	switch t.kind {
	case tokString:
		p.next()
		return &ast.StringLit{Value: t.text, Span: t.pos}, nil
	case tokNumber:
		p.next()
		return &ast.NumberLit{Raw: t.text, Span: t.pos}, nil
	case tokLBracket:
		p.next()
		list := &ast.ListLit{Span: t.pos}
		for !p.at(tokRBracket) {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			list.Elems = append(list.Elems, e)
			if !p.accept(tokComma) {
				break
			}
		}
		if _, err := p.expect(tokRBracket); err != nil {
			return nil, err
		}
		return list, nil
	case tokLParen:
		p.next()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return inner, nil
	case tokIdent:
		switch t.text {
		case "true", "false":
			p.next()
			return &ast.BooleanLit{Value: t.text == "true", Span: t.pos}, nil
		case "null":
			p.next()
			return &ast.NullLit{Span: t.pos}, nil
		}
		return p.parseSelection()
	}
	return nil, p.errf("expected expression, found %s", t)
}

func (p *parser) parseSelection() (ast.Expr, *lattice.Diagnostic) {
	head, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	sel := &ast.Selection{
		Elem: &ast.Ident{Name: head.text, Span: head.pos},
		Span: head.pos,
	}
	for p.accept(tokDot) {
		name, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		elem, eerr := p.parseSelectionStep(name)
		if eerr != nil {
			return nil, eerr
		}
		sel = &ast.Selection{Prefix: sel, Elem: elem, Span: name.pos}
	}
	return sel, nil
}

// parseSelectionStep parses the element after a dot: a plain field name,
// a higher-order call `some(x => expr)`, or a plain call `contains(x)`.
func (p *parser) parseSelectionStep(name token) (ast.SelectionElem, *lattice.Diagnostic) {
	if !p.accept(tokLParen) {
		return &ast.Ident{Name: name.text, Span: name.pos}, nil
	}
	if p.at(tokIdent) && p.peek().kind == tokArrow {
		param := p.next()
		p.next() // =>
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return &ast.HofCall{Name: name.text, Param: param.text, Expr: body, Span: name.pos}, nil
	}
	call := &ast.NormalCall{Name: name.text, Span: name.pos}
	for !p.at(tokRParen) {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if !p.accept(tokComma) {
			break
		}
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return call, nil
}
