package diag

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// levelPrefix matches the severity tag the engine puts on each message.
	levelPrefix = regexp.MustCompile(`^\s*(ERROR|WARNING|DEPRECATED):\s*(.*)$`)

	// Position forms: `in file input.scad, line 12` and `"input.scad", line 12`.
	inFileLine   = regexp.MustCompile(`\s*,?\s*in file\s+("[^"]*"|\S+?),\s*line\s+(\d+)`)
	quotedLine   = regexp.MustCompile(`\s*"[^"]*",\s*line\s+(\d+)`)
	bareLineOnly = regexp.MustCompile(`\s*,?\s*\bline\s+(\d+)\b`)
)

// ParseEngineOutput extracts positioned diagnostics from the engine's error
// channel. Lines without a recognizable severity tag and line number (TRACE,
// ECHO, progress chatter) are skipped.
func ParseEngineOutput(lines []string) []Diagnostic {
	var out []Diagnostic
	for _, raw := range lines {
		d, ok := parseEngineLine(raw)
		if ok {
			out = append(out, d)
		}
	}
	return out
}

func parseEngineLine(raw string) (Diagnostic, bool) {
	m := levelPrefix.FindStringSubmatch(raw)
	if m == nil {
		return Diagnostic{}, false
	}
	sev := Error
	if m[1] != "ERROR" {
		sev = Warning
	}
	body := m[2]

	var lineNo int
	var loc []int
	for _, re := range []*regexp.Regexp{inFileLine, quotedLine, bareLineOnly} {
		sub := re.FindStringSubmatchIndex(body)
		if sub == nil {
			continue
		}
		// The line number is always the last capture group.
		n := len(sub)
		lineNo, _ = strconv.Atoi(body[sub[n-2]:sub[n-1]])
		loc = sub[:2]
		break
	}
	if loc == nil || lineNo <= 0 {
		return Diagnostic{}, false
	}

	msg := strings.TrimSpace(body[:loc[0]] + body[loc[1]:])
	msg = strings.Trim(msg, ":, ")
	if msg == "" {
		msg = strings.TrimSpace(body)
	}
	return Diagnostic{
		Line:     lineNo,
		Column:   1,
		Message:  msg,
		Severity: sev,
		Origin:   EngineOutput,
	}, true
}
