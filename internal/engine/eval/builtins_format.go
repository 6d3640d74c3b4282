package eval

import (
	"fmt"
	"strconv"
	"strings"

	"staticreflect/internal/engine/value"
)

type formatSpec struct {
	argnum    int
	left      bool
	plus      bool
	pad       byte
	width     int
	precision int
	verb      byte
}

func fnSprintf(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, -1); err != nil {
		return value.Value{}, err
	}
	format, err := stringArg(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	out, err := sprintf(format, args[1:])
	if err != nil {
		return value.Value{}, err
	}
	return value.String(out), nil
}

func sprintf(format string, args []value.Value) (string, error) {
	var sb strings.Builder
	next := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			sb.WriteByte(c)
			continue
		}
		if i+1 >= len(format) {
			return "", fmt.Errorf("%w: missing format specifier at end of string", value.ErrUnsupportedOperand)
		}
		if format[i+1] == '%' {
			sb.WriteByte('%')
			i++
			continue
		}
		spec, end, err := parseFormatSpec(format, i+1)
		if err != nil {
			return "", err
		}
		i = end

		argIdx := next
		if spec.argnum > 0 {
			argIdx = spec.argnum - 1
		} else {
			next++
		}
		if argIdx >= len(args) {
			return "", fmt.Errorf("%w: %d arguments are required, %d given", errArgumentCount, argIdx+2, len(args)+1)
		}
		s, err := formatArg(spec, args[argIdx])
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

// parseFormatSpec reads %[argnum$][flags][width][.precision]verb starting
// after the percent sign and returns the index of the verb.
func parseFormatSpec(format string, j int) (formatSpec, int, error) {
	spec := formatSpec{pad: ' ', precision: -1}
	if k := j; k < len(format) {
		for k < len(format) && format[k] >= '0' && format[k] <= '9' {
			k++
		}
		if k > j && k < len(format) && format[k] == '$' {
			spec.argnum, _ = strconv.Atoi(format[j:k])
			if spec.argnum == 0 {
				return spec, 0, fmt.Errorf("%w: argument number must be greater than zero", value.ErrUnsupportedOperand)
			}
			j = k + 1
		}
	}
flags:
	for j < len(format) {
		switch format[j] {
		case '-':
			spec.left = true
		case '+':
			spec.plus = true
		case '0':
			spec.pad = '0'
		case ' ':
			spec.pad = ' '
		case '\'':
			if j+1 >= len(format) {
				return spec, 0, fmt.Errorf("%w: missing padding character", value.ErrUnsupportedOperand)
			}
			spec.pad = format[j+1]
			j++
		default:
			break flags
		}
		j++
	}
	start := j
	for j < len(format) && format[j] >= '0' && format[j] <= '9' {
		j++
	}
	if j > start {
		spec.width, _ = strconv.Atoi(format[start:j])
	}
	if j < len(format) && format[j] == '.' {
		j++
		start = j
		for j < len(format) && format[j] >= '0' && format[j] <= '9' {
			j++
		}
		spec.precision, _ = strconv.Atoi(format[start:j])
	}
	if j >= len(format) {
		return spec, 0, fmt.Errorf("%w: missing format specifier at end of string", value.ErrUnsupportedOperand)
	}
	spec.verb = format[j]
	return spec, j, nil
}

func formatArg(spec formatSpec, arg value.Value) (string, error) {
	var (
		body    string
		sign    string
		numeric = true
	)
	switch spec.verb {
	case 's':
		s, err := value.ToString(arg)
		if err != nil {
			return "", err
		}
		if spec.precision >= 0 && spec.precision < len(s) {
			s = s[:spec.precision]
		}
		body, numeric = s, false
	case 'd':
		i, err := value.ToInt(arg)
		if err != nil {
			return "", err
		}
		body = strconv.FormatInt(i, 10)
		if i < 0 {
			sign, body = "-", body[1:]
		} else if spec.plus {
			sign = "+"
		}
	case 'u':
		i, err := value.ToInt(arg)
		if err != nil {
			return "", err
		}
		body = strconv.FormatUint(uint64(i), 10)
	case 'c':
		i, err := value.ToInt(arg)
		if err != nil {
			return "", err
		}
		return string([]byte{byte(i)}), nil
	case 'x', 'X', 'o', 'b':
		i, err := value.ToInt(arg)
		if err != nil {
			return "", err
		}
		base := map[byte]int{'x': 16, 'X': 16, 'o': 8, 'b': 2}[spec.verb]
		body = strconv.FormatUint(uint64(i), base)
		if spec.verb == 'X' {
			body = strings.ToUpper(body)
		}
	case 'f', 'F', 'e', 'E', 'g', 'G':
		x, err := value.ToFloat(arg)
		if err != nil {
			return "", err
		}
		body = formatFloatVerb(spec, x)
		if strings.HasPrefix(body, "-") {
			sign, body = "-", body[1:]
		} else if spec.plus {
			sign = "+"
		}
	default:
		return "", fmt.Errorf("%w: unknown format specifier %q", value.ErrUnsupportedOperand, spec.verb)
	}

	padding := spec.width - len(sign) - len(body)
	if padding <= 0 {
		return sign + body, nil
	}
	fill := strings.Repeat(string(spec.pad), padding)
	switch {
	case spec.left:
		return sign + body + fill, nil
	case numeric && spec.pad == '0':
		return sign + fill + body, nil
	}
	return fill + sign + body, nil
}

func formatFloatVerb(spec formatSpec, x float64) string {
	prec := spec.precision
	if prec < 0 {
		prec = 6
	}
	switch spec.verb {
	case 'e', 'E':
		s := strconv.FormatFloat(x, 'e', prec, 64)
		mant, exp, _ := strings.Cut(s, "e")
		expSign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		if digits == "" {
			digits = "0"
		}
		if expSign == "-" {
			s = mant + "e-" + digits
		} else {
			s = mant + "e+" + digits
		}
		if spec.verb == 'E' {
			s = strings.ToUpper(s)
		}
		return s
	case 'g', 'G':
		if prec == 0 {
			prec = 1
		}
		return strconv.FormatFloat(x, spec.verb, prec, 64)
	}
	return strconv.FormatFloat(x, 'f', prec, 64)
}
