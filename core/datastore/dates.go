package datastore

import "github.com/dmitrymomot/searchstore/pkg/datemath"

// Date-math accessors expose the engine's native fragments so query builders
// never hardcode engine syntax. Swapping the backing engine only touches the
// datemath package, not every query in the codebase.

// Now returns the engine's anchor for the current time.
func (s *Store) Now() string { return datemath.Now }

// Year returns the engine's year unit.
func (s *Store) Year() string { return datemath.Year }

// Month returns the engine's month unit.
func (s *Store) Month() string { return datemath.Month }

// Week returns the engine's week unit.
func (s *Store) Week() string { return datemath.Week }

// Day returns the engine's day unit.
func (s *Store) Day() string { return datemath.Day }

// Hour returns the engine's hour unit.
func (s *Store) Hour() string { return datemath.Hour }

// Minute returns the engine's minute unit.
func (s *Store) Minute() string { return datemath.Minute }

// Second returns the engine's second unit.
func (s *Store) Second() string { return datemath.Second }

// Millisecond returns the engine's millisecond unit.
func (s *Store) Millisecond() string { return datemath.Millisecond }

// Microsecond returns the engine's microsecond unit.
func (s *Store) Microsecond() string { return datemath.Microsecond }

// Nanosecond returns the engine's nanosecond unit.
func (s *Store) Nanosecond() string { return datemath.Nanosecond }

// DateSeparator returns the separator between a literal date and its math.
func (s *Store) DateSeparator() string { return datemath.Separator }

// ToNativeDateMath translates a symbolic date-math expression into the
// engine's native syntax.
func (s *Store) ToNativeDateMath(expr string) string {
	return datemath.Translate(expr)
}
