package parser

import (
	"strconv"
	"strings"
	"unicode/utf8"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"staticreflect/internal/engine/source"
)

// literalKinds are the pieces of an interpolated string that carry text.
var literalKinds = map[string]bool{
	"string_content":     true,
	"string_value":       true,
	"escape_sequence":    true,
	"heredoc_start":      true,
	"heredoc_end":        true,
	"nowdoc_string":      true,
	"text_interpolation": true,
}

func decodeSingleQuoted(raw string) string {
	if len(raw) > 0 && (raw[0] == 'b' || raw[0] == 'B') {
		raw = raw[1:]
	}
	if len(raw) >= 2 && raw[0] == '\'' && raw[len(raw)-1] == '\'' {
		raw = raw[1 : len(raw)-1]
	}
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) && (raw[i+1] == '\\' || raw[i+1] == '\'') {
			i++
		}
		sb.WriteByte(raw[i])
	}
	return sb.String()
}

var simpleEscapes = map[byte]string{
	'n':  "\n",
	't':  "\t",
	'r':  "\r",
	'v':  "\v",
	'e':  "\x1b",
	'f':  "\f",
	'\\': "\\",
	'$':  "$",
	'"':  "\"",
}

// decodeDoubleQuoted applies double-quote escape rules. Unknown sequences are
// kept verbatim, backslash included.
func decodeDoubleQuoted(raw string, quote bool) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			sb.WriteByte(c)
			continue
		}
		next := raw[i+1]
		if s, ok := simpleEscapes[next]; ok && (next != '"' || quote) {
			sb.WriteString(s)
			i++
			continue
		}
		switch {
		case next >= '0' && next <= '7':
			j := i + 1
			for j < len(raw) && j < i+4 && raw[j] >= '0' && raw[j] <= '7' {
				j++
			}
			n, _ := strconv.ParseUint(raw[i+1:j], 8, 16)
			sb.WriteByte(byte(n))
			i = j - 1
		case next == 'x' && i+2 < len(raw) && isHex(raw[i+2]):
			j := i + 2
			for j < len(raw) && j < i+4 && isHex(raw[j]) {
				j++
			}
			n, _ := strconv.ParseUint(raw[i+2:j], 16, 8)
			sb.WriteByte(byte(n))
			i = j - 1
		case next == 'u' && i+2 < len(raw) && raw[i+2] == '{':
			end := strings.IndexByte(raw[i+2:], '}')
			if end < 0 {
				sb.WriteByte(c)
				continue
			}
			n, err := strconv.ParseUint(raw[i+3:i+2+end], 16, 32)
			if err != nil || !utf8.ValidRune(rune(n)) {
				sb.WriteByte(c)
				continue
			}
			sb.WriteRune(rune(n))
			i += 2 + end
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// encapsed converts a double-quoted string. Without embedded expressions it
// is a plain literal.
func (c *ExtractionContext) encapsed(node *sitter.Node, pos source.Position) source.Expr {
	raw := c.Text(node)
	start, end := int(node.StartByte()), int(node.EndByte())
	open := strings.IndexByte(raw, '"')
	if open < 0 || end-start < 2 {
		return &source.Unknown{Position: pos, Kind: node.Kind()}
	}
	bodyStart, bodyEnd := start+open+1, end-1
	exprs := c.interpolations(node)
	if len(exprs) == 0 {
		return &source.StringLit{Position: pos, Value: decodeDoubleQuoted(string(c.Source[bodyStart:bodyEnd]), true), Raw: raw}
	}
	return c.interpolated(pos, exprs, bodyStart, bodyEnd, true)
}

// interpolations returns the embedded expressions of a string body. Every
// interpolation starts with a variable, so anything without '$' is text.
func (c *ExtractionContext) interpolations(node *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, child := range namedChildren(node) {
		if child.Kind() == "heredoc_body" {
			out = append(out, c.interpolations(child)...)
			continue
		}
		if !literalKinds[child.Kind()] && strings.Contains(c.Text(child), "$") {
			out = append(out, child)
		}
	}
	return out
}

func (c *ExtractionContext) interpolated(pos source.Position, exprs []*sitter.Node, from, to int, quote bool) source.Expr {
	out := &source.InterpolatedString{Position: pos}
	literal := func(a, b int) {
		text := string(c.Source[a:b])
		text = strings.TrimSuffix(strings.TrimPrefix(text, "}"), "{")
		if text != "" {
			out.Parts = append(out.Parts, &source.StringLit{Value: decodeDoubleQuoted(text, quote), Raw: text})
		}
	}
	cursor := from
	for _, e := range exprs {
		s, en := int(e.StartByte()), int(e.EndByte())
		if s < cursor || en > to {
			continue
		}
		literal(cursor, s)
		out.Parts = append(out.Parts, c.Expr(e))
		cursor = en
	}
	literal(cursor, to)
	return out
}

// heredoc handles both heredoc and nowdoc bodies, removing the closing
// marker's indentation from every line.
func (c *ExtractionContext) heredoc(node *sitter.Node, pos source.Position, interpolate bool) source.Expr {
	raw := c.Text(node)
	first := strings.IndexByte(raw, '\n')
	last := strings.LastIndexByte(raw, '\n')
	if first < 0 {
		return &source.Unknown{Position: pos, Kind: node.Kind()}
	}
	if last <= first {
		return &source.StringLit{Position: pos, Raw: raw}
	}
	closing := raw[last+1:]
	indent := len(closing) - len(strings.TrimLeft(closing, " \t"))
	start := int(node.StartByte())
	bodyStart, bodyEnd := start+first+1, start+last

	if interpolate {
		if exprs := c.interpolations(node); len(exprs) > 0 {
			return c.interpolated(pos, exprs, bodyStart, bodyEnd, false)
		}
	}
	lines := strings.Split(raw[first+1:last], "\n")
	for i, line := range lines {
		n := 0
		for n < indent && n < len(line) && (line[n] == ' ' || line[n] == '\t') {
			n++
		}
		lines[i] = line[n:]
	}
	body := strings.Join(lines, "\n")
	if interpolate {
		body = decodeDoubleQuoted(body, false)
	}
	return &source.StringLit{Position: pos, Value: body, Raw: raw}
}
