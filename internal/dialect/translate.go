// Package dialect rewrites warehouse-flavored SQL into SQLite-compatible
// SQL. The rewrite is a deterministic, idempotent, purely textual pass
// over the query string; it is not a parser.
//
// Only the canonical call forms emitted by the upstream query templates
// are recognized:
//
//	@name                                              -> :name
//	SAFE_DIVIDE(a, b)                                  -> CASE WHEN (b) = 0 THEN NULL ELSE CAST((a) AS REAL) / (b) END
//	COUNTIF(pred)                                      -> SUM(CASE WHEN pred THEN 1 ELSE 0 END)
//	TIMESTAMP_SUB(CURRENT_TIMESTAMP(), INTERVAL n DAY) -> datetime('now', '-n days')
//	`identifier`                                       -> identifier
//
// Function arguments may contain at most one level of nested parentheses.
// Arbitrary nesting, overlapping argument lists, and constructs outside
// this whitelist have undefined output; such input fails at the embedded
// engine with a syntax error, surfaced like any other execution failure.
package dialect

import (
	"regexp"
	"strings"
)

// arg matches a function argument with at most one level of nested
// parentheses, e.g. "revenue" or "SUM(cost_usd)".
const arg = `[^,()]*(?:\([^()]*\)[^,()]*)*`

var (
	placeholderRe  = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_]*)`)
	safeDivideRe   = regexp.MustCompile(`(?i)SAFE_DIVIDE\(\s*(` + arg + `?)\s*,\s*(` + arg + `?)\s*\)`)
	countIfRe      = regexp.MustCompile(`(?i)COUNTIF\(\s*(` + arg + `?)\s*\)`)
	timestampSubRe = regexp.MustCompile(`(?i)TIMESTAMP_SUB\(\s*CURRENT_TIMESTAMP\(\)\s*,\s*INTERVAL\s+(@?[A-Za-z0-9_]+)\s+DAY\s*\)`)
	numberRe       = regexp.MustCompile(`^[0-9]+$`)
)

// Translate rewrites warehouse SQL text into SQLite SQL text. Applying it
// to already-translated text is a no-op.
func Translate(sql string) string {
	out := strings.ReplaceAll(sql, "`", "")
	out = rewriteSafeDivide(out)
	out = rewriteCountIf(out)
	out = rewriteTimestampSub(out)
	out = rewritePlaceholders(out)
	return out
}

// BindMarker returns the embedded engine's named bind marker for a
// canonical parameter name.
func BindMarker(name string) string {
	return ":" + name
}

// rewritePlaceholders converts every @name placeholder into the :name
// form, preserving names one-to-one.
func rewritePlaceholders(sql string) string {
	return placeholderRe.ReplaceAllString(sql, ":$1")
}

// rewriteSafeDivide expands SAFE_DIVIDE(a, b) into a CASE expression that
// yields NULL when the divisor is zero and real (floating) division
// otherwise. It never raises a division error.
func rewriteSafeDivide(sql string) string {
	return safeDivideRe.ReplaceAllString(sql,
		"CASE WHEN ($2) = 0 THEN NULL ELSE CAST(($1) AS REAL) / ($2) END")
}

// rewriteCountIf expands COUNTIF(pred) into SUM(CASE WHEN pred THEN 1
// ELSE 0 END); rows where pred is false or NULL contribute 0.
func rewriteCountIf(sql string) string {
	return countIfRe.ReplaceAllString(sql, "SUM(CASE WHEN $1 THEN 1 ELSE 0 END)")
}

// rewriteTimestampSub converts the canonical "now minus n days" form into
// SQLite's datetime modifier syntax. n may be an integer literal or a
// bound parameter; a parameter is spliced via string concatenation so the
// placeholder pass can still rewrite it.
func rewriteTimestampSub(sql string) string {
	return timestampSubRe.ReplaceAllStringFunc(sql, func(m string) string {
		n := timestampSubRe.FindStringSubmatch(m)[1]
		if numberRe.MatchString(n) {
			return "datetime('now', '-" + n + " days')"
		}
		return "datetime('now', '-' || " + n + " || ' days')"
	})
}
