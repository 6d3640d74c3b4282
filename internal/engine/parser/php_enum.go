package parser

import (
	"bytes"
	"strings"

	"staticreflect/internal/engine/source"
)

// The PHP grammar only admits cases, methods and trait uses in an enum body.
// Constants declared there are handed to tree-sitter spelled as cases, with
// every byte offset kept, and turned back into constants during extraction.

type enumConst struct {
	mods     source.Modifier
	typeText string
	typ      source.TypeExpr
}

type enumPatch struct {
	content []byte
	copied  bool
	// keyed by the start byte of the constant name
	consts map[uint]*enumConst
	// keyed by the start byte of the enum name; value is the member line
	unsupported map[uint]int
}

type phpToken struct {
	text       string
	start, end int
	word       bool
}

var constModifiers = map[string]source.Modifier{
	"public":    source.ModPublic,
	"protected": source.ModProtected,
	"private":   source.ModPrivate,
	"final":     source.ModFinal,
}

func rewriteEnumConstants(src []byte) *enumPatch {
	patch := &enumPatch{
		content:     src,
		consts:      make(map[uint]*enumConst),
		unsupported: make(map[uint]int),
	}
	if !bytes.Contains(bytes.ToLower(src), []byte("enum")) {
		return patch
	}
	toks := lexPHP(src)
	for i := 0; i < len(toks); i++ {
		if !isEnumHeader(toks, i) {
			continue
		}
		open := i + 2
		for open < len(toks) && toks[open].text != "{" {
			open++
		}
		if open >= len(toks) {
			break
		}
		i = patch.enumBody(src, toks, toks[i+1], open)
	}
	return patch
}

func isEnumHeader(toks []phpToken, i int) bool {
	if !toks[i].word || !strings.EqualFold(toks[i].text, "enum") || i+2 >= len(toks) {
		return false
	}
	if i > 0 {
		switch prev := strings.ToLower(toks[i-1].text); prev {
		case "->", "::", "function", "const", "new", "case":
			return false
		}
	}
	name := toks[i+1]
	if !name.word || strings.HasPrefix(name.text, "$") {
		return false
	}
	next := toks[i+2].text
	return next == ":" || next == "{" || strings.EqualFold(next, "implements")
}

// enumBody patches the members between toks[open] and its closing brace and
// returns the index of that brace.
func (p *enumPatch) enumBody(src []byte, toks []phpToken, name phpToken, open int) int {
	j := open + 1
	for j < len(toks) {
		if toks[j].text == "}" {
			return j
		}
		end := memberEnd(toks, j)
		p.member(src, toks[j:end+1], name)
		j = end + 1
	}
	return j
}

// memberEnd finds the last token of the member starting at toks[j]: its ';'
// or the brace closing its body.
func memberEnd(toks []phpToken, j int) int {
	depth := 0
	for k := j; k < len(toks); k++ {
		switch toks[k].text {
		case "(", "[", "#[", "{":
			depth++
		case ")", "]":
			depth--
		case "}":
			if depth == 0 {
				return k - 1
			}
			depth--
			if depth == 0 {
				return k
			}
		case ";":
			if depth == 0 {
				return k
			}
		}
	}
	return len(toks) - 1
}

func (p *enumPatch) member(src []byte, toks []phpToken, name phpToken) {
	k := 0
	for k < len(toks) && toks[k].text == "#[" {
		k = skipGroup(toks, k)
	}
	first := k
	var mods source.Modifier
	for ; k < len(toks) && toks[k].word; k++ {
		m, ok := constModifiers[strings.ToLower(toks[k].text)]
		if !ok {
			break
		}
		if m&source.VisibilityMask != 0 {
			mods = mods.WithVisibility(m)
		} else {
			mods |= m
		}
	}
	if k >= len(toks) || !toks[k].word || !strings.EqualFold(toks[k].text, "const") {
		return
	}
	kw := k

	eq, commas, depth := -1, 0, 0
	for m := kw + 1; m < len(toks); m++ {
		switch toks[m].text {
		case "(", "[", "#[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case "=":
			if depth == 0 && eq < 0 {
				eq = m
			}
		case ",":
			if depth == 0 && eq >= 0 {
				commas++
			}
		}
	}
	nameIdx := eq - 1
	if eq < 0 || nameIdx <= kw || !toks[nameIdx].word || commas > 0 {
		// blank the member so the rest of the file still parses
		p.blank(toks[0].start, toks[len(toks)-1].end, "")
		key := uint(name.start)
		if _, seen := p.unsupported[key]; !seen {
			p.unsupported[key] = 1 + bytes.Count(src[:toks[first].start], []byte("\n"))
		}
		return
	}
	p.consts[uint(toks[nameIdx].start)] = &enumConst{
		mods:     mods,
		typeText: strings.TrimSpace(string(src[toks[kw].end:toks[nameIdx].start])),
	}
	p.blank(toks[first].start, toks[nameIdx].start, "case")
}

func skipGroup(toks []phpToken, k int) int {
	depth := 0
	for ; k < len(toks); k++ {
		switch toks[k].text {
		case "[", "#[":
			depth++
		case "]":
			depth--
			if depth == 0 {
				return k + 1
			}
		}
	}
	return k
}

// blank overwrites content[from:to] with lead followed by spaces. Line breaks
// are kept so positions after the span do not move.
func (p *enumPatch) blank(from, to int, lead string) {
	if !p.copied {
		p.content = bytes.Clone(p.content)
		p.copied = true
	}
	for i := from; i < to; i++ {
		switch c := p.content[i]; {
		case i-from < len(lead):
			p.content[i] = lead[i-from]
		case c == '\n' || c == '\r':
		default:
			p.content[i] = ' '
		}
	}
}

// lexPHP splits PHP code into words and punctuation. Strings, heredocs and
// comments become single opaque tokens or disappear; inline HTML is skipped.
func lexPHP(src []byte) []phpToken {
	var out []phpToken
	n := len(src)
	html := true
	for i := 0; i < n; {
		if html {
			j := bytes.Index(src[i:], []byte("<?"))
			if j < 0 {
				break
			}
			i += j + 2
			if i+3 <= n && strings.EqualFold(string(src[i:i+3]), "php") {
				i += 3
			} else if i < n && src[i] == '=' {
				i++
			}
			html = false
			continue
		}
		c := src[i]
		next := byte(0)
		if i+1 < n {
			next = src[i+1]
		}
		start := i
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '?' && next == '>':
			i += 2
			html = true
		case c == '/' && next == '/', c == '#' && next != '[':
			i = skipLineComment(src, i)
		case c == '/' && next == '*':
			if j := bytes.Index(src[i+2:], []byte("*/")); j >= 0 {
				i += j + 4
			} else {
				i = n
			}
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(src, i)
			out = append(out, phpToken{text: string(c), start: start, end: i})
		case c == '<' && bytes.HasPrefix(src[i:], []byte("<<<")):
			i = skipHeredoc(src, i)
			out = append(out, phpToken{text: "<<<", start: start, end: i})
		case c == '$' || c == '\\' || isWordByte(c):
			i++
			for i < n && (src[i] == '\\' || isWordByte(src[i])) {
				i++
			}
			out = append(out, phpToken{text: string(src[start:i]), start: start, end: i, word: true})
		case c == '#', c == '-' && next == '>', c == ':' && next == ':':
			i += 2
			out = append(out, phpToken{text: string(src[start:i]), start: start, end: i})
		default:
			i++
			out = append(out, phpToken{text: string(c), start: start, end: i})
		}
	}
	return out
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func skipLineComment(src []byte, i int) int {
	for i < len(src) && src[i] != '\n' {
		if src[i] == '?' && i+1 < len(src) && src[i+1] == '>' {
			return i
		}
		i++
	}
	return i
}

func skipQuoted(src []byte, i int) int {
	q := src[i]
	for i++; i < len(src); {
		switch {
		case src[i] == '\\':
			i += 2
		case src[i] == q:
			return i + 1
		case q != '\'' && src[i] == '{' && i+1 < len(src) && src[i+1] == '$':
			i = skipInterpolation(src, i)
		default:
			i++
		}
	}
	return len(src)
}

func skipInterpolation(src []byte, i int) int {
	depth := 0
	for i < len(src) {
		switch src[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		case '\'', '"':
			i = skipQuoted(src, i)
			continue
		}
		i++
	}
	return len(src)
}

func skipHeredoc(src []byte, i int) int {
	i += 3
	for i < len(src) && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	if i < len(src) && (src[i] == '\'' || src[i] == '"') {
		i++
	}
	start := i
	for i < len(src) && isWordByte(src[i]) {
		i++
	}
	id := src[start:i]
	if len(id) == 0 {
		return i
	}
	nl := bytes.IndexByte(src[i:], '\n')
	if nl < 0 {
		return len(src)
	}
	for i += nl + 1; i < len(src); {
		line := i
		for line < len(src) && (src[line] == ' ' || src[line] == '\t') {
			line++
		}
		if bytes.HasPrefix(src[line:], id) {
			end := line + len(id)
			if end >= len(src) || !isWordByte(src[end]) {
				return end
			}
		}
		nl := bytes.IndexByte(src[i:], '\n')
		if nl < 0 {
			return len(src)
		}
		i += nl + 1
	}
	return len(src)
}
