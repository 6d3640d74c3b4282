package eval

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"staticreflect/internal/engine/value"
)

// regexTimeout bounds backtracking on hostile patterns.
const regexTimeout = 100 * time.Millisecond

var closingDelimiter = map[byte]byte{'(': ')', '{': '}', '[': ']', '<': '>'}

// compilePattern converts a delimited PCRE pattern such as "/a+/i".
func compilePattern(pattern string) (*regexp2.Regexp, error) {
	pattern = strings.TrimLeft(pattern, " \t\n\r\v\f")
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty regular expression", value.ErrUnsupportedOperand)
	}
	open := pattern[0]
	if open == '\\' || (open >= 'a' && open <= 'z') || (open >= 'A' && open <= 'Z') || (open >= '0' && open <= '9') {
		return nil, fmt.Errorf("%w: delimiter must not be alphanumeric or backslash", value.ErrUnsupportedOperand)
	}
	closing := open
	if c, ok := closingDelimiter[open]; ok {
		closing = c
	}
	end := strings.LastIndexByte(pattern, closing)
	if end <= 0 {
		return nil, fmt.Errorf("%w: no ending delimiter %q found", value.ErrUnsupportedOperand, closing)
	}
	body, modifiers := pattern[1:end], pattern[end+1:]

	opts := regexp2.RegexOptions(regexp2.None)
	for _, m := range modifiers {
		switch m {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			opts |= regexp2.Singleline
		case 'x':
			opts |= regexp2.IgnorePatternWhitespace
		case 'u', 'D', 'U', '\n', ' ':
		default:
			return nil, fmt.Errorf("%w: unknown modifier %q", value.ErrUnsupportedOperand, m)
		}
	}
	re, err := regexp2.Compile(body, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", value.ErrUnsupportedOperand, err)
	}
	re.MatchTimeout = regexTimeout
	return re, nil
}

func fnPregMatch(args []value.Value) (value.Value, error) {
	if err := arity(args, 2, 2); err != nil {
		return value.Value{}, err
	}
	pattern, err := stringArg(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	subject, err := stringArg(args, 1)
	if err != nil {
		return value.Value{}, err
	}
	re, err := compilePattern(pattern)
	if err != nil {
		return value.Value{}, err
	}
	ok, err := re.MatchString(subject)
	if err != nil {
		return value.Value{}, err
	}
	if ok {
		return value.Int(1), nil
	}
	return value.Int(0), nil
}

func fnPregReplace(args []value.Value) (value.Value, error) {
	if err := arity(args, 3, 4); err != nil {
		return value.Value{}, err
	}
	patterns, err := stringList(args[0])
	if err != nil {
		return value.Value{}, err
	}
	replacements, err := stringList(args[1])
	if err != nil {
		return value.Value{}, err
	}
	subject, err := stringArg(args, 2)
	if err != nil {
		return value.Value{}, err
	}
	limit, err := intArg(args, 3, -1)
	if err != nil {
		return value.Value{}, err
	}
	scalarReplacement := args[1].Kind() != value.KindArray
	for i, pattern := range patterns {
		re, err := compilePattern(pattern)
		if err != nil {
			return value.Value{}, err
		}
		repl := ""
		switch {
		case scalarReplacement:
			repl = replacements[0]
		case i < len(replacements):
			repl = replacements[i]
		}
		subject, err = re.Replace(subject, convertReplacement(repl), -1, int(limit))
		if err != nil {
			return value.Value{}, err
		}
	}
	return value.String(subject), nil
}

// convertReplacement rewrites PCRE back-references (\1, $1, ${1}) into the
// $n form understood by regexp2 and escapes other dollars.
func convertReplacement(repl string) string {
	var sb strings.Builder
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		if (c == '\\' || c == '$') && i+1 < len(repl) && repl[i+1] >= '0' && repl[i+1] <= '9' {
			j := i + 1
			for j < len(repl) && j < i+3 && repl[j] >= '0' && repl[j] <= '9' {
				j++
			}
			sb.WriteString("${" + repl[i+1:j] + "}")
			i = j - 1
			continue
		}
		if c == '$' && i+1 < len(repl) && repl[i+1] == '{' {
			if end := strings.IndexByte(repl[i:], '}'); end > 0 {
				sb.WriteString(repl[i : i+end+1])
				i += end
				continue
			}
		}
		if c == '$' {
			sb.WriteString("$$")
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

const pregSpecial = `.\+*?[^]$(){}=!<>|:-#`

func fnPregQuote(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, 2); err != nil {
		return value.Value{}, err
	}
	s, err := stringArg(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	delim := ""
	if len(args) == 2 && !args[1].IsNull() {
		if delim, err = stringArg(args, 1); err != nil {
			return value.Value{}, err
		}
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == 0:
			sb.WriteString(`\000`)
			continue
		case strings.IndexByte(pregSpecial, c) >= 0 || (delim != "" && c == delim[0]):
			sb.WriteByte('\\')
		}
		sb.WriteByte(c)
	}
	return value.String(sb.String()), nil
}

func fnMbStrlen(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, 2); err != nil {
		return value.Value{}, err
	}
	s, err := stringArg(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	return value.Int(int64(utf8.RuneCountInString(s))), nil
}

const (
	mbCaseUpper = 0
	mbCaseLower = 1
	mbCaseTitle = 2
)

func mbConvert(s string, mode int64) (string, error) {
	var c cases.Caser
	switch mode {
	case mbCaseUpper:
		c = cases.Upper(language.Und)
	case mbCaseLower:
		c = cases.Lower(language.Und)
	case mbCaseTitle:
		c = cases.Title(language.Und)
	default:
		return "", fmt.Errorf("%w: unsupported case mode %d", value.ErrUnsupportedOperand, mode)
	}
	return c.String(s), nil
}

func mbCase(mode int64) Builtin {
	return func(args []value.Value) (value.Value, error) {
		if err := arity(args, 1, 2); err != nil {
			return value.Value{}, err
		}
		s, err := stringArg(args, 0)
		if err != nil {
			return value.Value{}, err
		}
		out, err := mbConvert(s, mode)
		if err != nil {
			return value.Value{}, err
		}
		return value.String(out), nil
	}
}

func fnMbConvertCase(args []value.Value) (value.Value, error) {
	if err := arity(args, 2, 3); err != nil {
		return value.Value{}, err
	}
	mode, err := value.ToInt(args[1])
	if err != nil {
		return value.Value{}, err
	}
	return mbCase(mode)(args[:1])
}
