package param

import (
	"strconv"
	"strings"
	"unicode"
)

const eof rune = -1

// textParser is a recursive descent parser over the textual encoding. It
// does not run a preprocessor: directive lines are skipped.
type textParser struct {
	src  []rune
	i    int
	line int
	col  int
}

func parseText(rootName, text string) (*Tree, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	p := &textParser{src: []rune(text), line: 1, col: 1}
	root := &Class{Name: rootName, Pos: Position{Line: 1, Col: 1}}
	if err := p.parseBody(root, false); err != nil {
		return nil, err
	}
	return &Tree{Root: root, Format: FormatText}, nil
}

func (p *textParser) pos() Position {
	return Position{Line: p.line, Col: p.col, Offset: p.i}
}

func (p *textParser) peek() rune {
	if p.i >= len(p.src) {
		return eof
	}
	return p.src[p.i]
}

func (p *textParser) peekAt(n int) rune {
	if p.i+n >= len(p.src) {
		return eof
	}
	return p.src[p.i+n]
}

func (p *textParser) next() rune {
	r := p.peek()
	if r == eof {
		return r
	}
	p.i++
	if r == '\n' {
		p.line++
		p.col = 1
	} else {
		p.col++
	}
	return r
}

// skipSpace skips whitespace, comments and preprocessor lines.
func (p *textParser) skipSpace() error {
	for {
		r := p.peek()
		switch {
		case r == eof:
			return nil
		case unicode.IsSpace(r):
			p.next()
		case r == '/' && p.peekAt(1) == '/':
			for r := p.peek(); r != '\n' && r != eof; r = p.peek() {
				p.next()
			}
		case r == '/' && p.peekAt(1) == '*':
			start := p.pos()
			p.next()
			p.next()
			for {
				if p.peek() == eof {
					return errorf(start, "unterminated block comment")
				}
				if p.peek() == '*' && p.peekAt(1) == '/' {
					p.next()
					p.next()
					break
				}
				p.next()
			}
		case r == '#':
			for r := p.peek(); r != '\n' && r != eof; r = p.peek() {
				if r == '\\' && (p.peekAt(1) == '\n' || (p.peekAt(1) == '\r' && p.peekAt(2) == '\n')) {
					p.next()
				}
				p.next()
			}
		default:
			return nil
		}
	}
}

func (p *textParser) expect(want rune) error {
	if err := p.skipSpace(); err != nil {
		return err
	}
	if got := p.peek(); got != want {
		return errorf(p.pos(), "expected %q, found %s", want, describe(got))
	}
	p.next()
	return nil
}

func (p *textParser) ident() (string, error) {
	if err := p.skipSpace(); err != nil {
		return "", err
	}
	start := p.i
	for r := p.peek(); r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r); r = p.peek() {
		p.next()
	}
	if p.i == start {
		return "", errorf(p.pos(), "expected identifier, found %s", describe(p.peek()))
	}
	return string(p.src[start:p.i]), nil
}

func (p *textParser) parseBody(cls *Class, nested bool) error {
	for {
		if err := p.skipSpace(); err != nil {
			return err
		}
		pos := p.pos()
		switch p.peek() {
		case eof:
			if nested {
				return errorf(pos, "missing '}' to close class %s", cls.Name)
			}
			return nil
		case '}':
			if !nested {
				return errorf(pos, "unexpected '}'")
			}
			p.next()
			return p.expect(';')
		case ';':
			p.next()
			continue
		}

		word, err := p.ident()
		if err != nil {
			return err
		}
		switch strings.ToLower(word) {
		case "class":
			err = p.parseClass(cls, pos)
		case "delete":
			err = p.parseDelete(cls, pos)
		case "enum":
			err = p.skipEnum()
		default:
			err = p.parseAssignment(cls, word, pos)
		}
		if err != nil {
			return err
		}
	}
}

func (p *textParser) parseClass(owner *Class, pos Position) error {
	name, err := p.ident()
	if err != nil {
		return err
	}
	c := &Class{Name: name, Pos: pos}
	if err := p.skipSpace(); err != nil {
		return err
	}
	switch p.peek() {
	case ';':
		p.next()
		c.Extern = true
		owner.Members = append(owner.Members, Member{Kind: MemberClass, Name: name, Class: c, Pos: pos})
		return nil
	case ':':
		p.next()
		if c.Parent, err = p.ident(); err != nil {
			return err
		}
	}
	if err := p.expect('{'); err != nil {
		return err
	}
	if err := p.parseBody(c, true); err != nil {
		return err
	}
	owner.Members = append(owner.Members, Member{Kind: MemberClass, Name: name, Class: c, Pos: pos})
	return nil
}

func (p *textParser) parseDelete(owner *Class, pos Position) error {
	name, err := p.ident()
	if err != nil {
		return err
	}
	if err := p.expect(';'); err != nil {
		return err
	}
	owner.Members = append(owner.Members, Member{Kind: MemberDelete, Name: name, Pos: pos})
	return nil
}

func (p *textParser) skipEnum() error {
	if err := p.expect('{'); err != nil {
		return err
	}
	start := p.pos()
	for depth := 1; depth > 0; {
		switch p.next() {
		case eof:
			return errorf(start, "unterminated enum")
		case '{':
			depth++
		case '}':
			depth--
		}
	}
	return p.expect(';')
}

func (p *textParser) parseAssignment(owner *Class, name string, pos Position) error {
	if err := p.skipSpace(); err != nil {
		return err
	}
	if p.peek() == '[' {
		p.next()
		if err := p.expect(']'); err != nil {
			return err
		}
		if err := p.skipSpace(); err != nil {
			return err
		}
		appendArr := false
		if p.peek() == '+' {
			p.next()
			appendArr = true
		}
		if err := p.expect('='); err != nil {
			return err
		}
		arr, err := p.parseArray()
		if err != nil {
			return err
		}
		if err := p.expect(';'); err != nil {
			return err
		}
		owner.Members = append(owner.Members, Member{Kind: MemberArray, Name: name, Value: arr, Append: appendArr, Pos: pos})
		return nil
	}

	if err := p.expect('='); err != nil {
		return err
	}
	v, err := p.parseScalar(";")
	if err != nil {
		return err
	}
	if err := p.expect(';'); err != nil {
		return err
	}
	owner.Members = append(owner.Members, Member{Kind: MemberProperty, Name: name, Value: v, Pos: pos})
	return nil
}

func (p *textParser) parseArray() (Value, error) {
	if err := p.expect('{'); err != nil {
		return Value{}, err
	}
	arr := Value{Kind: KindArray, Items: []Value{}}
	for {
		if err := p.skipSpace(); err != nil {
			return Value{}, err
		}
		switch p.peek() {
		case '}':
			p.next()
			return arr, nil
		case eof:
			return Value{}, errorf(p.pos(), "unterminated array")
		}

		var (
			item Value
			err  error
		)
		if p.peek() == '{' {
			item, err = p.parseArray()
		} else {
			item, err = p.parseScalar(",}")
		}
		if err != nil {
			return Value{}, err
		}
		arr.Items = append(arr.Items, item)

		if err := p.skipSpace(); err != nil {
			return Value{}, err
		}
		switch r := p.peek(); r {
		case ',':
			p.next()
		case '}':
		default:
			return Value{}, errorf(p.pos(), "expected ',' or '}' in array, found %s", describe(r))
		}
	}
}

// parseScalar reads a quoted string or a bare word ending before any rune in
// stop.
func (p *textParser) parseScalar(stop string) (Value, error) {
	if err := p.skipSpace(); err != nil {
		return Value{}, err
	}
	if p.peek() == '"' {
		s, err := p.parseString()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindString, Str: s}, nil
	}

	pos := p.pos()
	start := p.i
	for r := p.peek(); r != eof && !strings.ContainsRune(stop, r); r = p.peek() {
		p.next()
	}
	if p.peek() == eof {
		return Value{}, errorf(pos, "unexpected end of input in value")
	}
	raw := strings.TrimSpace(string(p.src[start:p.i]))
	if raw == "" {
		return Value{}, errorf(pos, "missing value")
	}
	return classify(raw), nil
}

func (p *textParser) parseString() (string, error) {
	start := p.pos()
	p.next()
	var sb strings.Builder
	for {
		r := p.next()
		switch r {
		case eof:
			return "", errorf(start, "unterminated string")
		case '"':
			if p.peek() != '"' {
				return sb.String(), nil
			}
			p.next()
		}
		sb.WriteRune(r)
	}
}

// classify turns a bare word into an int, a float or a string.
func classify(raw string) Value {
	if c := raw[0]; c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9') {
		lower := strings.ToLower(raw)
		if strings.HasPrefix(lower, "0x") {
			if n, err := strconv.ParseInt(lower[2:], 16, 64); err == nil {
				return Value{Kind: KindInt, Int: n}
			}
		}
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return Value{Kind: KindInt, Int: n}
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return Value{Kind: KindFloat, Float: f}
		}
	}
	return Value{Kind: KindString, Str: raw}
}

func describe(r rune) string {
	if r == eof {
		return "end of input"
	}
	return strconv.QuoteRune(r)
}
