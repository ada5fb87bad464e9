package datemath

import "strings"

// Native date-math fragments understood by the engine. Queries built directly
// against the engine interpolate these instead of hardcoding syntax.
const (
	Now         = "now"
	Year        = "y"
	Month       = "M"
	Week        = "w"
	Day         = "d"
	Hour        = "h"
	Minute      = "m"
	Second      = "s"
	Millisecond = "ms"
	Microsecond = "micros"
	Nanosecond  = "nanos"
	Separator   = "||"
	DateEnd     = "Z"
)

// replacements maps the symbolic vocabulary to native fragments. The order is
// load-bearing: MILLISECOND, MICROSECOND and NANOSECOND contain SECOND as a
// literal substring and must be rewritten before it.
var replacements = []struct {
	symbol, native string
}{
	{"NOW", Now},
	{"YEAR", Year},
	{"MONTH", Month},
	{"WEEK", Week},
	{"DAY", Day},
	{"HOUR", Hour},
	{"MINUTE", Minute},
	{"MILLISECOND", Millisecond},
	{"MICROSECOND", Microsecond},
	{"NANOSECOND", Nanosecond},
	{"SECOND", Second},
	{"SEPARATOR", Separator},
	{"DATE_END", DateEnd},
}

// Translate rewrites a symbolic date-math expression into the engine's native
// syntax. It is a deterministic left-to-right sequence of substring
// replacements with no escaping or backtracking; input that is already in
// native syntax passes through unchanged.
func Translate(expr string) string {
	for _, r := range replacements {
		expr = strings.ReplaceAll(expr, r.symbol, r.native)
	}
	return expr
}
