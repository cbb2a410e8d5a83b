package lint

import (
	"regexp"
	"strings"

	"github.com/specialistvlad/scadlive/internal/diag"
)

var (
	assignmentLine = regexp.MustCompile(`^\$?[A-Za-z_][A-Za-z0-9_]*\s*=[^=]`)

	// Primitives never take children, so a call ending the line must be
	// followed by ';'. Transforms like translate() legitimately are not.
	primitiveCall = regexp.MustCompile(`^[#%!*]?\s*(cube|sphere|cylinder|polyhedron|square|circle|polygon|text|import|surface)\s*\(.*\)$`)

	continuationPrefixes = []string{"&&", "||", "+", "-", "*", "/", "%", "?", ":", ",", ".", ")", "]", ";"}
)

// missingTerminators flags flat lines whose trailing statement looks
// complete but has no ';'.
func missingTerminators(lines []lineInfo) []diag.Diagnostic {
	var out []diag.Diagnostic
	for i, li := range lines {
		if !li.startsFlat || !li.endsFlat {
			continue
		}
		code := strings.TrimSpace(li.code)
		if idx := strings.LastIndex(code, ";"); idx >= 0 {
			code = strings.TrimSpace(code[idx+1:])
		}
		if code == "" || !looksTerminable(code) {
			continue
		}
		if next, ok := nextCode(lines, i+1); ok && continues(next) {
			continue
		}
		indent := len(li.code) - len(strings.TrimLeft(li.code, " \t"))
		out = append(out, diag.Diagnostic{
			Line:     i + 1,
			Column:   indent + 1,
			Message:  "statement may be missing ';'",
			Severity: diag.Warning,
			Origin:   diag.StaticLint,
		})
	}
	return out
}

func looksTerminable(code string) bool {
	if primitiveCall.MatchString(code) {
		return true
	}
	if !assignmentLine.MatchString(code) {
		return false
	}
	last := code[len(code)-1]
	return !strings.ContainsRune("{},+-*/%?:=&|!<>", rune(last))
}

func nextCode(lines []lineInfo, from int) (string, bool) {
	for j := from; j < len(lines); j++ {
		if code := strings.TrimSpace(lines[j].code); code != "" {
			return code, true
		}
	}
	return "", false
}

func continues(next string) bool {
	for _, p := range continuationPrefixes {
		if strings.HasPrefix(next, p) {
			return true
		}
	}
	return false
}
