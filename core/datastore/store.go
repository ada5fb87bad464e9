package datastore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/dmitrymomot/searchstore/core/logger"
	"github.com/dmitrymomot/searchstore/integration/database/opensearch"
)

// Store is a resilient, long-lived handle to the search engine, shared by
// many goroutines. Every outward operation funnels through Execute, which
// classifies failures, retries transient ones with linear capped backoff and
// rebuilds the connection when the transport looks broken.
//
// The connection is held behind an atomic pointer: it is non-nil exactly
// while the store is open. Close nulls it, so in-flight retry loops observe
// the closed state on their next attempt and fail fast instead of
// reconnecting forever.
type Store struct {
	id                  string
	requestTimeout      time.Duration
	rootCAPath          string
	verifyCerts         bool
	archiveAccess       bool
	archiveIndices      []string
	archiveAlternateDTL int
	validate            bool

	log       *slog.Logger
	transport http.RoundTripper

	client atomic.Pointer[opensearchgo.Client]

	mu          sync.Mutex // guards hosts, models, collections and client swaps
	hosts       []string
	models      map[string]*Schema
	collections map[string]*Collection

	engineVersion *semver.Version

	// sleep is swapped out by tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New connects to the engine, verifies the minimum supported version and
// returns a ready store. Construction fails fast on an unreachable cluster
// or an unsupported engine version; transient cluster trouble during the
// version probe is retried like any other operation.
func New(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if len(cfg.Hosts) == 0 {
		return nil, ErrNoHosts
	}

	options := &storeOptions{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		validate: true,
	}
	for _, opt := range opts {
		opt(options)
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}

	transport := options.transport
	if transport == nil {
		tr, err := opensearch.NewTransport(opensearch.Config{
			RootCAPath:  cfg.RootCAPath,
			VerifyCerts: cfg.VerifyCerts,
		})
		if err != nil {
			return nil, err
		}
		transport = tr
	}

	s := &Store{
		id:                  uuid.NewString(),
		requestTimeout:      cfg.RequestTimeout,
		rootCAPath:          cfg.RootCAPath,
		verifyCerts:         cfg.VerifyCerts,
		archiveAccess:       cfg.ArchiveAccess,
		archiveIndices:      slices.Clone(cfg.ArchiveIndices),
		archiveAlternateDTL: cfg.ArchiveAlternateDTL,
		validate:            options.validate,
		log:                 options.logger,
		transport:           transport,
		hosts:               slices.Clone(cfg.Hosts),
		models:              make(map[string]*Schema),
		collections:         make(map[string]*Collection),
		sleep:               sleepContext,
	}

	client, err := s.newClient(s.hosts)
	if err != nil {
		return nil, err
	}
	s.client.Store(client)

	if err := s.checkEngineVersion(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	s.log.InfoContext(ctx, "connected to search engine",
		logger.Component("datastore"),
		logger.Key("store_id", s.id),
		logger.Version(s.EngineVersion()),
		logger.Hosts(s.Hosts(true)),
	)

	return s, nil
}

// newClient builds a fresh low-level client for the given host list. The
// client carries no retry of its own: retry policy lives in Execute, and two
// layers multiplying attempts would hammer an already degraded cluster.
func (s *Store) newClient(hosts []string) (*opensearchgo.Client, error) {
	return opensearch.Open(opensearch.Config{
		Addresses:    hosts,
		RootCAPath:   s.rootCAPath,
		VerifyCerts:  s.verifyCerts,
		MaxRetries:   0,
		DisableRetry: true,
	}, opensearch.WithTransport(s.transport))
}

// reset discards the current connection and builds a fresh one against the
// current host list, dropping broken keepalive connections so the next
// attempt dials anew. Resetting a closed store is refused so an in-flight
// retry loop cannot resurrect the handle after Close.
func (s *Store) reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client.Load() == nil {
		return ErrStoreClosed
	}

	if transport, ok := s.transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}

	client, err := s.newClient(s.hosts)
	if err != nil {
		return err
	}
	s.client.Store(client)

	s.log.InfoContext(ctx, "reconnected to search engine",
		logger.Key("store_id", s.id),
		logger.Hosts(safeHosts(s.hosts)),
	)
	return nil
}

// Close tears down the handle. Any operation issued afterwards, including
// in-flight retry loops reaching their next attempt, fails with
// ErrStoreClosed instead of silently reconnecting. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client.Load() == nil {
		return nil
	}
	s.client.Store(nil)

	if transport, ok := s.transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}

// IsClosed reports whether Close has been called.
func (s *Store) IsClosed() bool {
	return s.client.Load() == nil
}

// Ping reports whether the engine currently answers. It never returns an
// error: any failure, including a closed store, reads as false.
func (s *Store) Ping(ctx context.Context) bool {
	client := s.client.Load()
	if client == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	res, err := opensearchapi.PingRequest{}.Do(ctx, client)
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// Hosts returns the configured host URIs. In safe mode embedded credentials
// are stripped and only bare hostnames are returned, suitable for logging.
func (s *Store) Hosts(safe bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if safe {
		return safeHosts(s.hosts)
	}
	return slices.Clone(s.hosts)
}

// Models returns a snapshot of the registered collection schemas.
func (s *Store) Models() map[string]*Schema {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.models)
}

// ArchiveAccess reports whether archive indices are reachable through this handle.
func (s *Store) ArchiveAccess() bool { return s.archiveAccess }

// ArchiveEnabled reports whether the named collection keeps an archive index
// that searches should span.
func (s *Store) ArchiveEnabled(name string) bool {
	return s.archiveAccess && slices.Contains(s.archiveIndices, name)
}

// ArchiveAlternateDTL returns the alternate days-to-live applied to archive writes.
func (s *Store) ArchiveAlternateDTL() int { return s.archiveAlternateDTL }

// String identifies the store and its hosts with credentials stripped.
func (s *Store) String() string {
	return fmt.Sprintf("datastore.Store(%s)", strings.Join(s.Hosts(true), " | "))
}

// safeHosts strips each host URI down to its bare hostname. Entries that do
// not parse as URLs are passed through so the caller still sees something
// identifying the host.
func safeHosts(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if u, err := url.Parse(h); err == nil {
			if u.Hostname() != "" {
				out = append(out, u.Hostname())
				continue
			}
			if u.Path != "" {
				out = append(out, u.Path)
				continue
			}
		}
		out = append(out, h)
	}
	return out
}
