package datastore

import (
	"fmt"
	"regexp"
)

// collectionNameRe is the allowed charset for collection names. Names become
// engine index names, which must stay lowercase.
var collectionNameRe = regexp.MustCompile(`^[a-z0-9_]*$`)

// Register binds a schema to a collection name. The schema may be nil for a
// schemaless collection. Registering the same name again replaces the
// schema used for future index creation; proxies already handed out keep
// working against the same index.
func (s *Store) Register(name string, schema *Schema) error {
	if !collectionNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[name] = schema
	return nil
}

// Collection returns the proxy for a registered collection. With validation
// enabled (the default) proxies are cached and reused; with validation
// disabled every call builds a fresh proxy so administrative tooling never
// operates through a stale cached one.
func (s *Store) Collection(name string) (*Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	schema, ok := s.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}

	if !s.validate {
		return &Collection{store: s, name: name, schema: schema}, nil
	}

	if c, ok := s.collections[name]; ok {
		return c, nil
	}
	c := &Collection{store: s, name: name, schema: schema}
	s.collections[name] = c
	return c, nil
}
