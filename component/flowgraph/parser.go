package flowgraph

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/c360/mspikes/errors"
)

// SourceRef names an upstream node and the filters applied to its output.
type SourceRef struct {
	Name    string   `json:"name"`
	Filters []string `json:"filters,omitempty"`
}

// NodeDef is one statement of a graph definition:
//
//	name = type(source, (source, filter, ...), key=value, ...)
type NodeDef struct {
	Name    string         `json:"name"`
	Type    string         `json:"type"`
	Sources []SourceRef    `json:"sources,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
}

// Parse reads a graph definition. Statements are separated by semicolons or
// newlines; newlines inside parentheses or brackets are ignored. Comments
// start with '#' and run to the end of the line.
func Parse(src string) ([]NodeDef, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	var defs []NodeDef
	for {
		p.skipSeparators()
		if p.peek().kind == scanner.EOF {
			return defs, nil
		}
		def, err := p.statement()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
		if t := p.peek(); t.kind != scanner.EOF && t.kind != ';' {
			return nil, p.errorf(t, "expected end of statement, found %s", t)
		}
	}
}

// ParseValue parses a single literal as it would appear on the right of a
// keyword argument.
func ParseValue(src string) (any, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != scanner.EOF {
		return nil, p.errorf(t, "unexpected %s after value", t)
	}
	return v, nil
}

type token struct {
	kind rune
	text string
	pos  scanner.Position
}

func (t token) String() string {
	switch t.kind {
	case scanner.EOF:
		return "end of input"
	case ';':
		return "end of statement"
	}
	return strconv.Quote(t.text)
}

type parser struct {
	toks []token
	pos  int
}

func newParser(src string) (*parser, error) {
	var s scanner.Scanner
	s.Init(strings.NewReader(stripComments(src)))
	s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanStrings | scanner.ScanRawStrings
	s.Whitespace = 1<<'\t' | 1<<'\r' | 1<<' '
	s.Filename = "definition"

	var scanErr error
	s.Error = func(s *scanner.Scanner, msg string) {
		if scanErr == nil {
			scanErr = definitionError(s.Position, "%s", msg)
		}
	}

	p := &parser{}
	depth := 0
	for {
		r := s.Scan()
		if scanErr != nil {
			return nil, scanErr
		}
		tok := token{kind: r, text: s.TokenText(), pos: s.Position}
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case '\n':
			if depth > 0 {
				continue
			}
			tok.kind = ';'
		}
		p.toks = append(p.toks, tok)
		if r == scanner.EOF {
			return p, nil
		}
	}
}

func stripComments(src string) string {
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		if idx := commentStart(line); idx >= 0 {
			lines[i] = line[:idx]
		}
	}
	return strings.Join(lines, "\n")
}

func commentStart(line string) int {
	var quote rune
	for i, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '`':
			quote = r
		case r == '#':
			return i
		}
	}
	return -1
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != scanner.EOF {
		p.pos++
	}
	return t
}

func (p *parser) skipSeparators() {
	for p.peek().kind == ';' {
		p.next()
	}
}

func (p *parser) expect(kind rune, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, p.errorf(t, "expected %s, found %s", what, t)
	}
	return t, nil
}

func (p *parser) statement() (NodeDef, error) {
	name, err := p.expect(scanner.Ident, "node name")
	if err != nil {
		return NodeDef{}, err
	}
	if _, err := p.expect('=', "'='"); err != nil {
		return NodeDef{}, err
	}
	typ, err := p.expect(scanner.Ident, "node type")
	if err != nil {
		return NodeDef{}, err
	}
	if _, err := p.expect('(', "'('"); err != nil {
		return NodeDef{}, err
	}

	def := NodeDef{Name: name.text, Type: typ.text, Params: map[string]any{}}
	for p.peek().kind != ')' {
		t := p.peek()
		switch {
		case t.kind == scanner.Ident && p.peekAt(1).kind == '=':
			p.next()
			p.next()
			if _, dup := def.Params[t.text]; dup {
				return NodeDef{}, p.errorf(t, "duplicate keyword argument %q", t.text)
			}
			v, err := p.value()
			if err != nil {
				return NodeDef{}, err
			}
			def.Params[t.text] = v
		case len(def.Params) > 0:
			return NodeDef{}, p.errorf(t, "positional argument follows keyword argument")
		case t.kind == scanner.Ident:
			p.next()
			def.Sources = append(def.Sources, SourceRef{Name: t.text})
		case t.kind == '(':
			ref, err := p.filteredSource()
			if err != nil {
				return NodeDef{}, err
			}
			def.Sources = append(def.Sources, ref)
		default:
			return NodeDef{}, p.errorf(t, "unexpected %s in argument list", t)
		}
		if p.peek().kind == ',' {
			p.next()
			continue
		}
		if p.peek().kind != ')' {
			return NodeDef{}, p.errorf(p.peek(), "expected ',' or ')', found %s", p.peek())
		}
	}
	p.next()
	return def, nil
}

func (p *parser) filteredSource() (SourceRef, error) {
	p.next()
	name, err := p.expect(scanner.Ident, "source name")
	if err != nil {
		return SourceRef{}, err
	}
	ref := SourceRef{Name: name.text}
	for p.peek().kind == ',' {
		p.next()
		if p.peek().kind == ')' {
			break
		}
		f, err := p.expect(scanner.Ident, "filter name")
		if err != nil {
			return SourceRef{}, err
		}
		ref.Filters = append(ref.Filters, f.text)
	}
	if _, err := p.expect(')', "')'"); err != nil {
		return SourceRef{}, err
	}
	return ref, nil
}

func (p *parser) value() (any, error) {
	t := p.next()
	switch t.kind {
	case '-', '+':
		n := p.next()
		if n.kind != scanner.Int && n.kind != scanner.Float {
			return nil, p.errorf(n, "expected number after %q", t.text)
		}
		return parseNumber(t.text+n.text, n)
	case scanner.Int, scanner.Float:
		return parseNumber(t.text, t)
	case scanner.String, scanner.RawString:
		s, err := strconv.Unquote(t.text)
		if err != nil {
			return nil, definitionError(t.pos, "bad string literal %s", t.text)
		}
		return s, nil
	case scanner.Ident:
		switch t.text {
		case "true", "True":
			return true, nil
		case "false", "False":
			return false, nil
		case "None", "null":
			return nil, nil
		}
		return nil, p.errorf(t, "unknown value %q", t.text)
	case '[', '(':
		closer := rune(']')
		if t.kind == '(' {
			closer = ')'
		}
		list := []any{}
		for p.peek().kind != closer {
			v, err := p.value()
			if err != nil {
				return nil, err
			}
			list = append(list, v)
			if p.peek().kind == ',' {
				p.next()
				continue
			}
			if p.peek().kind != closer {
				return nil, p.errorf(p.peek(), "expected ',' or %q, found %s", closer, p.peek())
			}
		}
		p.next()
		return list, nil
	}
	return nil, p.errorf(t, "expected value, found %s", t)
}

func parseNumber(text string, t token) (any, error) {
	if t.kind == scanner.Int {
		if n, err := strconv.ParseInt(text, 0, 64); err == nil {
			return n, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, definitionError(t.pos, "bad number %s", text)
	}
	return f, nil
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return definitionError(t.pos, format, args...)
}

func definitionError(pos scanner.Position, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return errors.WrapFatal(fmt.Errorf("%w: line %d, column %d: %s", errors.ErrDefinition, pos.Line, pos.Column, msg),
		"Flowgraph", "Parse", "parse definition")
}
