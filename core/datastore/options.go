package datastore

import (
	"log/slog"
	"net/http"
)

// Option is a functional option for configuring a Store
type Option func(*storeOptions)

type storeOptions struct {
	logger    *slog.Logger
	transport http.RoundTripper
	validate  bool
}

// WithLogger sets the logger used for retry, reconnect and maintenance events.
// The default logger discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(o *storeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTransport sets a custom HTTP transport shared by every connection the
// store creates, including reconnects. Primarily used for testing with fakes.
func WithTransport(transport http.RoundTripper) Option {
	return func(o *storeOptions) {
		if transport != nil {
			o.transport = transport
		}
	}
}

// WithoutValidation disables schema validation for collection proxies and
// bypasses the collection cache entirely: every Collection call constructs a
// fresh proxy. Meant for ephemeral administrative access where a stale cached
// configuration is unacceptable.
func WithoutValidation() Option {
	return func(o *storeOptions) {
		o.validate = false
	}
}
