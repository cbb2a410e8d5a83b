// Package lint is a fast, purely local syntax check run before any source is
// handed to the engine. It finds unbalanced delimiters, unterminated strings
// and comments, and warns about statements that look like they lost their
// terminating semicolon.
package lint

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/scadlive/internal/diag"
)

// Result is the outcome of one Check call.
type Result struct {
	Diagnostics []diag.Diagnostic
	// Valid is true when no diagnostic has Error severity.
	Valid bool
}

// Errors returns the Error-severity diagnostics.
func (r Result) Errors() []diag.Diagnostic {
	return diag.Filter(r.Diagnostics, diag.Error)
}

// Warnings returns the Warning-severity diagnostics.
func (r Result) Warnings() []diag.Diagnostic {
	return diag.Filter(r.Diagnostics, diag.Warning)
}

type scanState int

const (
	inCode scanState = iota
	inLineComment
	inBlockComment
	inString
)

type delim struct {
	r         rune
	line, col int
}

// lineInfo is the code-only text of one source line (comments dropped,
// string literals collapsed to "") plus whether the line starts and ends
// outside any paren or bracket.
type lineInfo struct {
	code       string
	startsFlat bool
	endsFlat   bool
}

var closerFor = map[rune]rune{'(': ')', '[': ']', '{': '}'}

// Check scans src once and returns its diagnostics.
func Check(src string) Result {
	s := &scanner{runes: []rune(src), line: 1}
	s.run()
	ds := append(s.diags, missingTerminators(s.lines)...)
	return Result{Diagnostics: ds, Valid: !diag.HasErrors(ds)}
}

type scanner struct {
	runes []rune
	i     int
	line  int
	col   int
	state scanState

	// position of the string or block comment that is currently open
	openLine, openCol int

	stack []delim
	diags []diag.Diagnostic

	lines     []lineInfo
	cur       strings.Builder
	lineStart bool
}

func (s *scanner) peek() rune {
	if s.i+1 < len(s.runes) {
		return s.runes[s.i+1]
	}
	return 0
}

// advance consumes the rune after the current one on the same line.
func (s *scanner) advance() {
	s.i++
	s.col++
}

func (s *scanner) flat() bool {
	if s.state != inCode {
		return false
	}
	for _, d := range s.stack {
		if d.r != '{' {
			return false
		}
	}
	return true
}

func (s *scanner) endLine() {
	flat := s.flat()
	s.lines = append(s.lines, lineInfo{code: s.cur.String(), startsFlat: s.lineStart, endsFlat: flat})
	s.cur.Reset()
	s.lineStart = flat
}

func (s *scanner) errorAt(line, col int, width int, format string, args ...any) {
	end := 0
	if width > 0 {
		end = col + width
	}
	s.diags = append(s.diags, diag.Diagnostic{
		Line:      line,
		Column:    col,
		EndColumn: end,
		Message:   fmt.Sprintf(format, args...),
		Severity:  diag.Error,
		Origin:    diag.StaticLint,
	})
}

func (s *scanner) run() {
	s.lineStart = true
	for ; s.i < len(s.runes); s.i++ {
		r := s.runes[s.i]
		s.col++

		if r == '\n' {
			if s.state == inLineComment {
				s.state = inCode
			}
			s.endLine()
			s.line++
			s.col = 0
			continue
		}

		switch s.state {
		case inLineComment:
			continue
		case inBlockComment:
			if r == '*' && s.peek() == '/' {
				s.advance()
				s.state = inCode
				s.cur.WriteRune(' ')
			}
			continue
		case inString:
			if r == '\\' && s.peek() != '\n' && s.peek() != 0 {
				s.advance()
				continue
			}
			if r == '"' {
				s.state = inCode
				s.cur.WriteString(`""`)
			}
			continue
		}

		switch r {
		case '/':
			switch s.peek() {
			case '/':
				s.advance()
				s.state = inLineComment
				continue
			case '*':
				s.openLine, s.openCol = s.line, s.col
				s.advance()
				s.state = inBlockComment
				continue
			}
		case '"':
			s.openLine, s.openCol = s.line, s.col
			s.state = inString
			continue
		case '(', '[', '{':
			s.stack = append(s.stack, delim{r: r, line: s.line, col: s.col})
		case ')', ']', '}':
			s.closeDelim(r)
		}
		s.cur.WriteRune(r)
	}
	s.endLine()
	s.finish()
}

func (s *scanner) closeDelim(r rune) {
	if len(s.stack) == 0 {
		s.errorAt(s.line, s.col, 1, "unexpected closing '%c'", r)
		return
	}
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	if closerFor[top.r] != r {
		s.errorAt(s.line, s.col, 1, "'%c' does not match '%c' opened at line %d, column %d", r, top.r, top.line, top.col)
	}
}

func (s *scanner) finish() {
	switch s.state {
	case inString:
		s.errorAt(s.openLine, s.openCol, 0, "unterminated string")
	case inBlockComment:
		s.errorAt(s.openLine, s.openCol, 0, "unterminated block comment")
	}
	for _, d := range s.stack {
		s.errorAt(d.line, d.col, 1, "unclosed '%c' (missing '%c')", d.r, closerFor[d.r])
	}
}
