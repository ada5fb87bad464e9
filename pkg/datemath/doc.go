// Package datemath translates symbolic date-math expressions into the native
// syntax of the backing search engine.
//
// Callers that build queries against relative dates can either interpolate the
// native fragment constants directly (Now, Day, Separator, ...) or write the
// engine-agnostic symbolic vocabulary and translate the whole expression once:
//
//	import "github.com/dmitrymomot/searchstore/pkg/datemath"
//
//	datemath.Translate("NOW-1DAY/DAY")
//	// "now-1d/d"
//
//	datemath.Translate("2024-05-01T00:00:00DATE_ENDSEPARATOR-4HOUR")
//	// "2024-05-01T00:00:00Z||-4h"
//
// # Vocabulary
//
// The symbolic vocabulary is the fixed set of uppercase tokens NOW, YEAR,
// MONTH, WEEK, DAY, HOUR, MINUTE, SECOND, MILLISECOND, MICROSECOND,
// NANOSECOND, SEPARATOR and DATE_END. Everything else in the expression is
// passed through verbatim, so absolute dates, numbers, rounding slashes and
// range syntax survive translation untouched.
//
// Translation is a plain substring rewrite with no escaping, applied in a
// fixed order so that compound tokens (MILLISECOND, MICROSECOND, NANOSECOND)
// are consumed before the SECOND token they contain. Output contains no
// symbolic tokens, which makes Translate idempotent: feeding it an
// already-translated expression changes nothing.
package datemath
