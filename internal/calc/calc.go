// Package calc implements the evaluate tool: a restricted arithmetic evaluator.
//
// Input is tokenized with text/scanner and parsed by a small recursive-descent parser
// that only understands arithmetic, so untrusted text can never reach anything else.
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/" | "%") unary }
//	unary   = ("+" | "-") unary | power
//	power   = primary [ ("^" | "**") unary ]
//	primary = number | constant | func "(" expr { "," expr } ")" | "(" expr ")"
package calc

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/butlerbot/relay/internal/biz/domain"
)

// MaxExpressionLen bounds the size of accepted input
const MaxExpressionLen = 1024

const maxDepth = 64

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

type function struct {
	arity int // -1: variadic, at least one argument
	fn    func(args []float64) float64
}

func unary(f func(float64) float64) function {
	return function{arity: 1, fn: func(a []float64) float64 { return f(a[0]) }}
}

func fold(f func(a, b float64) float64) function {
	return function{arity: -1, fn: func(a []float64) float64 {
		acc := a[0]
		for _, v := range a[1:] {
			acc = f(acc, v)
		}
		return acc
	}}
}

var functions = map[string]function{
	"sqrt":  unary(math.Sqrt),
	"abs":   unary(math.Abs),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"round": unary(math.Round),
	"ln":    unary(math.Log),
	"log":   unary(math.Log),
	"log10": unary(math.Log10),
	"log2":  unary(math.Log2),
	"exp":   unary(math.Exp),
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"asin":  unary(math.Asin),
	"acos":  unary(math.Acos),
	"atan":  unary(math.Atan),
	"pow":   {arity: 2, fn: func(a []float64) float64 { return math.Pow(a[0], a[1]) }},
	"min":   fold(math.Min),
	"max":   fold(math.Max),
}

// Evaluate parses and evaluates an arithmetic expression.
// All errors wrap domain.ErrEvaluation.
func Evaluate(expr string) (float64, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, evalErr("empty expression")
	}
	if len(expr) > MaxExpressionLen {
		return 0, evalErr("expression longer than %d bytes", MaxExpressionLen)
	}

	p := newParser(expr)
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if p.tok != scanner.EOF {
		return 0, evalErr("unexpected %q", p.text)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, evalErr("result is not a finite number")
	}
	return v, nil
}

func evalErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrEvaluation, fmt.Sprintf(format, args...))
}

type parser struct {
	s       scanner.Scanner
	tok     rune
	text    string
	depth   int
	scanErr error
}

func newParser(expr string) *parser {
	p := &parser{}
	p.s.Init(strings.NewReader(expr))
	p.s.Mode = scanner.ScanIdents | scanner.ScanFloats
	p.s.Error = func(_ *scanner.Scanner, msg string) {
		if p.scanErr == nil {
			p.scanErr = evalErr("%s", msg)
		}
	}
	p.next()
	return p
}

func (p *parser) next() {
	p.tok = p.s.Scan()
	p.text = p.s.TokenText()
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return evalErr("expression nested too deeply")
	}
	return p.scanErr
}

func (p *parser) leave() { p.depth-- }

// isPower reports whether the current token starts a power operator
func (p *parser) isPower() bool {
	return p.tok == '^' || (p.tok == '*' && p.s.Peek() == '*')
}

func (p *parser) expr() (float64, error) {
	x, err := p.term()
	if err != nil {
		return 0, err
	}
	for p.tok == '+' || p.tok == '-' {
		op := p.tok
		p.next()
		y, err := p.term()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			x += y
		} else {
			x -= y
		}
	}
	return x, nil
}

func (p *parser) term() (float64, error) {
	x, err := p.unary()
	if err != nil {
		return 0, err
	}
	for (p.tok == '*' && !p.isPower()) || p.tok == '/' || p.tok == '%' {
		op := p.tok
		p.next()
		y, err := p.unary()
		if err != nil {
			return 0, err
		}
		switch op {
		case '*':
			x *= y
		case '/':
			if y == 0 {
				return 0, evalErr("division by zero")
			}
			x /= y
		case '%':
			if y == 0 {
				return 0, evalErr("division by zero")
			}
			x = math.Mod(x, y)
		}
	}
	return x, nil
}

func (p *parser) unary() (float64, error) {
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.leave()

	switch p.tok {
	case '+':
		p.next()
		return p.unary()
	case '-':
		p.next()
		x, err := p.unary()
		return -x, err
	}
	return p.power()
}

func (p *parser) power() (float64, error) {
	base, err := p.primary()
	if err != nil {
		return 0, err
	}
	if !p.isPower() {
		return base, nil
	}
	if p.tok == '*' {
		p.next() // first star of **
	}
	p.next()
	exp, err := p.unary()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

func (p *parser) primary() (float64, error) {
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.leave()

	switch p.tok {
	case scanner.Int, scanner.Float:
		v, err := number(p.text)
		if err != nil {
			return 0, err
		}
		p.next()
		return v, nil

	case scanner.Ident:
		name := strings.ToLower(p.text)
		p.next()
		if p.tok == '(' {
			return p.call(name)
		}
		if v, ok := constants[name]; ok {
			return v, nil
		}
		return 0, evalErr("unknown identifier %q", name)

	case '(':
		p.next()
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if p.tok != ')' {
			return 0, evalErr("missing closing parenthesis")
		}
		p.next()
		return v, nil

	case scanner.EOF:
		return 0, evalErr("unexpected end of expression")
	}

	if p.scanErr != nil {
		return 0, p.scanErr
	}
	return 0, evalErr("unsupported token %q", p.text)
}

func (p *parser) call(name string) (float64, error) {
	f, ok := functions[name]
	if !ok {
		return 0, evalErr("unknown function %q", name)
	}
	p.next() // (

	var args []float64
	if p.tok != ')' {
		for {
			v, err := p.expr()
			if err != nil {
				return 0, err
			}
			args = append(args, v)
			if p.tok != ',' {
				break
			}
			p.next()
		}
	}
	if p.tok != ')' {
		return 0, evalErr("missing closing parenthesis after %s arguments", name)
	}
	p.next()

	if f.arity >= 0 && len(args) != f.arity {
		return 0, evalErr("%s takes %d argument(s), got %d", name, f.arity, len(args))
	}
	if len(args) == 0 {
		return 0, evalErr("%s needs at least one argument", name)
	}
	return f.fn(args), nil
}

func number(text string) (float64, error) {
	clean := strings.ReplaceAll(text, "_", "")
	if v, err := strconv.ParseFloat(clean, 64); err == nil {
		return v, nil
	}
	// Hex, octal and binary integer forms.
	if i, err := strconv.ParseInt(clean, 0, 64); err == nil {
		return float64(i), nil
	}
	return 0, evalErr("bad number %q", text)
}

// FormatResult renders a result without a trailing ".0" for whole numbers
func FormatResult(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
