package aipool

import "regexp"

// denylist is the set of identifiers commonly used to reach the
// outside environment. Scrubbing them is defense-in-depth, not a
// security boundary (spec.md §9) — expr-lang's expression sandbox
// never exposes a filesystem, network, or process API to begin with,
// but a participant program containing these tokens is rewritten
// before compilation so that any future relaxation of the evaluator's
// function set fails closed rather than silently reopening a hole.
var denylist = []string{
	"os", "exec", "net", "syscall", "unsafe", "plugin", "cgo",
	"Dial", "import", "require", "eval", "Open", "Remove", "Command",
	"Getenv", "Setenv", "ReadFile", "WriteFile",
}

var denylistPattern = buildDenylistPattern()

func buildDenylistPattern() *regexp.Regexp {
	pattern := `\b(`
	for i, id := range denylist {
		if i > 0 {
			pattern += "|"
		}
		pattern += regexp.QuoteMeta(id)
	}
	pattern += `)\b`
	return regexp.MustCompile(pattern)
}

// scrubSource rewrites every denylisted identifier occurrence to a
// comment placeholder. Identifiers of four or more characters keep
// their length, so line/column offsets in compiler error messages stay
// meaningful; shorter ones become the four-character "/**/", which
// shifts later columns on that line.
func scrubSource(src string) string {
	return denylistPattern.ReplaceAllStringFunc(src, func(m string) string {
		if len(m) <= 4 {
			return "/**/"
		}
		pad := make([]byte, len(m)-4)
		for i := range pad {
			pad[i] = '_'
		}
		return "/*" + string(pad) + "*/"
	})
}
