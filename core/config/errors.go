package config

import "errors"

// ErrNilConfig is returned when Load is called with a nil config pointer.
// Use errors.Is() to distinguish caller bugs from environment parse failures.
var ErrNilConfig = errors.New("nil config pointer")
