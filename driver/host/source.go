package host

import (
	"fmt"
	"strings"
	"unicode"
	"unsafe"
)

// ParamKind classifies a kernel parameter by how its argument is bound.
type ParamKind int

const (
	// ParamScalar is a by-value argument (scalar or vector).
	ParamScalar ParamKind = iota
	// ParamGlobal is a pointer into a global buffer (or an image).
	ParamGlobal
	// ParamConstant is a pointer into a constant buffer.
	ParamConstant
	// ParamLocal is a pointer into work-group local memory.
	ParamLocal
)

// String returns the OpenCL address space spelling of the kind.
func (k ParamKind) String() string {
	switch k {
	case ParamScalar:
		return "private"
	case ParamGlobal:
		return "global"
	case ParamConstant:
		return "constant"
	case ParamLocal:
		return "local"
	default:
		return fmt.Sprintf("ParamKind(%d)", int(k))
	}
}

// IsMemory reports whether arguments of this kind are bound to a cl_mem.
func (k ParamKind) IsMemory() bool {
	return k == ParamGlobal || k == ParamConstant
}

// Param describes one kernel parameter as declared in source.
type Param struct {
	Name string
	// Type is the element type spelling, e.g. "uchar" or "float4".
	Type string
	Kind ParamKind
	// Size is the byte size of Type (element size for pointers).
	Size int
	// Pointer reports whether the parameter is declared as a pointer.
	Pointer bool
}

// KernelDef is a kernel signature found in program source.
type KernelDef struct {
	Name   string
	Params []Param
	Line   int
	Col    int
}

// diagnostic is one compiler message destined for the build log.
type diagnostic struct {
	line, col int
	msg       string
}

func (d diagnostic) String() string {
	return fmt.Sprintf("<program>:%d:%d: error: %s", d.line, d.col, d.msg)
}

// formatLog renders diagnostics the way clang-based OpenCL compilers do.
func formatLog(diags []diagnostic) string {
	if len(diags) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, d := range diags {
		sb.WriteString(d.String())
		sb.WriteByte('\n')
	}
	if len(diags) == 1 {
		sb.WriteString("1 error generated.")
	} else {
		fmt.Fprintf(&sb, "%d errors generated.", len(diags))
	}
	return sb.String()
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokPunct
	tokLiteral
)

type token struct {
	kind      tokenKind
	text      string
	line, col int
}

// scanner splits OpenCL C source into tokens. Comments and preprocessor
// lines are skipped; lexical errors are collected as diagnostics.
type scanner struct {
	src       []rune
	pos       int
	line, col int
	diags     []diagnostic
}

func newScanner(src string) *scanner {
	return &scanner{src: []rune(src), line: 1, col: 1}
}

func (s *scanner) peek(off int) rune {
	if s.pos+off < len(s.src) {
		return s.src[s.pos+off]
	}
	return 0
}

func (s *scanner) advance() rune {
	r := s.src[s.pos]
	s.pos++
	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return r
}

func (s *scanner) errorf(line, col int, format string, args ...any) {
	s.diags = append(s.diags, diagnostic{line: line, col: col, msg: fmt.Sprintf(format, args...)})
}

func (s *scanner) scan() []token {
	var toks []token
	atLineStart := true
	for s.pos < len(s.src) {
		r := s.peek(0)
		line, col := s.line, s.col

		switch {
		case r == '\n':
			s.advance()
			atLineStart = true
			continue
		case unicode.IsSpace(r):
			s.advance()
			continue
		case r == '#' && atLineStart:
			s.skipDirective()
			continue
		case r == '/' && s.peek(1) == '/':
			for s.pos < len(s.src) && s.peek(0) != '\n' {
				s.advance()
			}
			continue
		case r == '/' && s.peek(1) == '*':
			s.advance()
			s.advance()
			closed := false
			for s.pos < len(s.src) {
				if s.peek(0) == '*' && s.peek(1) == '/' {
					s.advance()
					s.advance()
					closed = true
					break
				}
				s.advance()
			}
			if !closed {
				s.errorf(line, col, "unterminated /* comment")
			}
			continue
		}

		atLineStart = false
		switch {
		case r == '_' || unicode.IsLetter(r):
			start := s.pos
			for s.pos < len(s.src) && (s.peek(0) == '_' || unicode.IsLetter(s.peek(0)) || unicode.IsDigit(s.peek(0))) {
				s.advance()
			}
			toks = append(toks, token{kind: tokIdent, text: string(s.src[start:s.pos]), line: line, col: col})
		case unicode.IsDigit(r) || (r == '.' && unicode.IsDigit(s.peek(1))):
			start := s.pos
			for s.pos < len(s.src) && (unicode.IsLetter(s.peek(0)) || unicode.IsDigit(s.peek(0)) || s.peek(0) == '.') {
				s.advance()
			}
			toks = append(toks, token{kind: tokNumber, text: string(s.src[start:s.pos]), line: line, col: col})
		case r == '"' || r == '\'':
			toks = append(toks, s.scanLiteral(r, line, col))
		default:
			s.advance()
			toks = append(toks, token{kind: tokPunct, text: string(r), line: line, col: col})
		}
	}
	return toks
}

func (s *scanner) skipDirective() {
	for s.pos < len(s.src) {
		if s.peek(0) == '\\' && s.peek(1) == '\n' {
			s.advance()
			s.advance()
			continue
		}
		if s.peek(0) == '\n' {
			return
		}
		s.advance()
	}
}

func (s *scanner) scanLiteral(quote rune, line, col int) token {
	start := s.pos
	s.advance()
	for s.pos < len(s.src) {
		r := s.peek(0)
		if r == '\n' {
			break
		}
		s.advance()
		if r == '\\' && s.pos < len(s.src) {
			s.advance()
			continue
		}
		if r == quote {
			return token{kind: tokLiteral, text: string(s.src[start:s.pos]), line: line, col: col}
		}
	}
	if quote == '"' {
		s.errorf(line, col, "missing terminating '\"' character")
	} else {
		s.errorf(line, col, "missing terminating ' character")
	}
	return token{kind: tokLiteral, text: string(s.src[start:s.pos]), line: line, col: col}
}

var closers = map[string]string{"(": ")", "[": "]", "{": "}"}

// checkBrackets reports unbalanced (), [] and {}.
func checkBrackets(toks []token) []diagnostic {
	var diags []diagnostic
	var stack []token
	for _, t := range toks {
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "(", "[", "{":
			stack = append(stack, t)
		case ")", "]", "}":
			if len(stack) == 0 {
				diags = append(diags, diagnostic{t.line, t.col, fmt.Sprintf("extraneous closing '%s'", t.text)})
				continue
			}
			open := stack[len(stack)-1]
			if closers[open.text] != t.text {
				diags = append(diags, diagnostic{t.line, t.col,
					fmt.Sprintf("expected '%s' to match '%s' at %d:%d", closers[open.text], open.text, open.line, open.col)})
				return diags
			}
			stack = stack[:len(stack)-1]
		}
	}
	for i := len(stack) - 1; i >= 0; i-- {
		open := stack[i]
		diags = append(diags, diagnostic{open.line, open.col,
			fmt.Sprintf("expected '%s' to match this '%s'", closers[open.text], open.text)})
	}
	return diags
}

// binaryOps are tokens that must be followed by an operand.
var binaryOps = map[string]bool{"=": true, "/": true, "%": true, "<": true, ">": true, "&": true, "|": true, "^": true}

// checkExpressions reports operators directly followed by a terminator,
// the most common typo class in kernel bodies ("x = ;").
func checkExpressions(toks []token) []diagnostic {
	var diags []diagnostic
	for i := 0; i+1 < len(toks); i++ {
		t, next := toks[i], toks[i+1]
		if t.kind != tokPunct || !binaryOps[t.text] || next.kind != tokPunct {
			continue
		}
		if next.text == ";" || next.text == ")" || next.text == "]" || next.text == "," {
			diags = append(diags, diagnostic{next.line, next.col, "expected expression"})
		}
	}
	return diags
}

var scalarSizes = map[string]int{
	"bool": 1, "char": 1, "uchar": 1,
	"short": 2, "ushort": 2, "half": 2,
	"int": 4, "uint": 4, "float": 4,
	"long": 8, "ulong": 8, "double": 8,
	"size_t":    int(unsafe.Sizeof(uintptr(0))),
	"ptrdiff_t": int(unsafe.Sizeof(uintptr(0))),
	"intptr_t":  int(unsafe.Sizeof(uintptr(0))),
	"uintptr_t": int(unsafe.Sizeof(uintptr(0))),
}

var imageTypes = map[string]bool{
	"image1d_t": true, "image2d_t": true, "image3d_t": true,
	"image1d_array_t": true, "image2d_array_t": true, "image1d_buffer_t": true,
}

// typeSize returns the byte size of an OpenCL C type name, including
// vector types such as float4, or 0 if the name is unknown.
func typeSize(name string) int {
	if n, ok := scalarSizes[name]; ok {
		return n
	}
	for _, width := range []string{"16", "8", "4", "3", "2"} {
		base, ok := strings.CutSuffix(name, width)
		if !ok {
			continue
		}
		elem, ok := scalarSizes[base]
		if !ok || base == "bool" || strings.HasSuffix(base, "_t") {
			return 0
		}
		lanes := map[string]int{"2": 2, "3": 4, "4": 4, "8": 8, "16": 16}[width]
		return elem * lanes
	}
	return 0
}

var qualifiers = map[string]ParamKind{
	"__global": ParamGlobal, "global": ParamGlobal,
	"__constant": ParamConstant, "constant": ParamConstant,
	"__local": ParamLocal, "local": ParamLocal,
	"__private": ParamScalar, "private": ParamScalar,
}

var ignoredQualifiers = map[string]bool{
	"const": true, "restrict": true, "__restrict": true, "volatile": true,
	"__read_only": true, "read_only": true, "__write_only": true, "write_only": true,
	"__read_write": true, "read_write": true,
}

// parseParam parses the tokens of a single parameter declaration.
func parseParam(toks []token) (Param, *diagnostic) {
	var (
		p         Param
		space     = ParamScalar
		spaceSet  bool
		typeName  string
		signed    string
		nameTok   *token
		pointers  int
		lastToken = toks[len(toks)-1]
	)
	for i := range toks {
		t := toks[i]
		switch {
		case t.kind == tokIdent && qualifiers[t.text] != ParamScalar:
			space, spaceSet = qualifiers[t.text], true
		case t.kind == tokIdent && (t.text == "__private" || t.text == "private"):
		case t.kind == tokIdent && ignoredQualifiers[t.text]:
		case t.kind == tokIdent && (t.text == "unsigned" || t.text == "signed"):
			signed = t.text
		case t.kind == tokIdent && typeName == "" && signed == "" && nameTok == nil:
			typeName = t.text
		case t.kind == tokIdent && typeName == "" && signed != "" && typeSize(t.text) > 0:
			typeName = t.text
		case t.kind == tokIdent && nameTok == nil:
			nameTok = &toks[i]
		case t.kind == tokPunct && t.text == "*":
			if nameTok != nil {
				return p, &diagnostic{t.line, t.col, "expected ')'"}
			}
			pointers++
		default:
			return p, &diagnostic{t.line, t.col, fmt.Sprintf("unexpected '%s' in parameter declaration", t.text)}
		}
	}

	if signed != "" {
		switch typeName {
		case "":
			typeName = "int"
		case "char", "short", "int", "long":
		default:
			return p, &diagnostic{toks[0].line, toks[0].col, fmt.Sprintf("'%s %s' is invalid", signed, typeName)}
		}
		if signed == "unsigned" {
			typeName = "u" + typeName
		}
	}
	if typeName == "" {
		return p, &diagnostic{toks[0].line, toks[0].col, "expected parameter type"}
	}
	if nameTok == nil {
		return p, &diagnostic{lastToken.line, lastToken.col, "expected parameter name"}
	}
	if pointers > 1 {
		return p, &diagnostic{nameTok.line, nameTok.col, "kernel parameter cannot be declared as a pointer to a pointer"}
	}

	p.Name = nameTok.text
	p.Type = typeName
	p.Pointer = pointers == 1

	if imageTypes[typeName] {
		if p.Pointer {
			return p, &diagnostic{nameTok.line, nameTok.col, "pointer to image type is not allowed"}
		}
		p.Kind = ParamGlobal
		p.Size = int(unsafe.Sizeof(uintptr(0)))
		return p, nil
	}

	p.Size = typeSize(typeName)
	if p.Size == 0 && typeName != "void" {
		return p, &diagnostic{toks[0].line, toks[0].col, fmt.Sprintf("unknown type name '%s'", typeName)}
	}
	if typeName == "void" && !p.Pointer {
		return p, &diagnostic{nameTok.line, nameTok.col, "parameter has incomplete type 'void'"}
	}

	switch {
	case p.Pointer && !spaceSet:
		return p, &diagnostic{nameTok.line, nameTok.col,
			"kernel pointer arguments must point to global, constant or local memory"}
	case !p.Pointer && spaceSet:
		return p, &diagnostic{nameTok.line, nameTok.col,
			fmt.Sprintf("parameter '%s' may not be qualified with an address space", p.Name)}
	}
	p.Kind = space
	return p, nil
}

// splitParams splits the tokens between a kernel's parentheses on
// top-level commas.
func splitParams(toks []token) [][]token {
	var (
		out   [][]token
		cur   []token
		depth int
	)
	for _, t := range toks {
		if t.kind == tokPunct {
			switch t.text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			case ",":
				if depth == 0 {
					out = append(out, cur)
					cur = nil
					continue
				}
			}
		}
		cur = append(cur, t)
	}
	return append(out, cur)
}

// skipAttribute skips an __attribute__((...)) group starting at toks[i].
func skipAttribute(toks []token, i int) int {
	if i >= len(toks) || toks[i].text != "__attribute__" {
		return i
	}
	i++
	depth := 0
	for ; i < len(toks); i++ {
		switch toks[i].text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return i
}

// parseSource extracts kernel signatures from OpenCL C source.
//
// The returned diagnostics are compiler errors. Unbalanced brackets stop
// the scan early and no kernels are reported.
func parseSource(src string) ([]*KernelDef, []diagnostic) {
	sc := newScanner(src)
	toks := sc.scan()
	diags := sc.diags
	diags = append(diags, checkBrackets(toks)...)
	if len(diags) > 0 {
		return nil, diags
	}
	diags = append(diags, checkExpressions(toks)...)

	var kernels []*KernelDef
	seen := make(map[string]bool)
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.kind != tokIdent || (t.text != "__kernel" && t.text != "kernel") {
			continue
		}
		j := skipAttribute(toks, i+1)
		if j >= len(toks) || toks[j].text != "void" {
			at := t
			if j < len(toks) {
				at = toks[j]
			}
			diags = append(diags, diagnostic{at.line, at.col, "kernel functions must have void return type"})
			continue
		}
		j = skipAttribute(toks, j+1)
		if j >= len(toks) || toks[j].kind != tokIdent {
			diags = append(diags, diagnostic{t.line, t.col, "expected kernel name"})
			continue
		}
		nameTok := toks[j]
		j++
		if j >= len(toks) || toks[j].text != "(" {
			diags = append(diags, diagnostic{nameTok.line, nameTok.col, "expected '(' after kernel name"})
			continue
		}

		// Brackets are balanced, so the matching ')' exists.
		start, depth := j+1, 1
		for j++; depth > 0; j++ {
			switch toks[j].text {
			case "(":
				depth++
			case ")":
				depth--
			}
		}
		end := j - 1

		def := &KernelDef{Name: nameTok.text, Line: nameTok.line, Col: nameTok.col}
		if inner := toks[start:end]; len(inner) > 0 && !(len(inner) == 1 && inner[0].text == "void") {
			for _, pt := range splitParams(inner) {
				if len(pt) == 0 {
					at := toks[end]
					diags = append(diags, diagnostic{at.line, at.col, "expected parameter declarator"})
					continue
				}
				p, d := parseParam(pt)
				if d != nil {
					diags = append(diags, *d)
					continue
				}
				def.Params = append(def.Params, p)
			}
		}

		j = skipAttribute(toks, j)
		if j < len(toks) && toks[j].text == ";" {
			// Prototype only.
			i = j
			continue
		}
		if j >= len(toks) || toks[j].text != "{" {
			at := toks[end]
			diags = append(diags, diagnostic{at.line, at.col, "expected function body after kernel declarator"})
			continue
		}
		if seen[def.Name] {
			diags = append(diags, diagnostic{nameTok.line, nameTok.col, fmt.Sprintf("redefinition of '%s'", def.Name)})
		}
		seen[def.Name] = true
		kernels = append(kernels, def)
		i = j
	}

	return kernels, diags
}
