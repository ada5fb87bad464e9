package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/dmitrymomot/searchstore/core/logger"
)

const (
	// maxRetryBackoff caps the linear backoff between attempts.
	maxRetryBackoff = 10 * time.Second

	// conflictJitter bounds the randomized delay applied before a strict
	// version conflict is surfaced, de-synchronizing writers racing on the
	// same documents.
	conflictJitter = 100 * time.Millisecond

	// lostContextMarker identifies a 404 caused by an index disappearing
	// under a running query rather than by a missing document.
	lostContextMarker = "No search context found"
)

// Operation is a single engine call executed through the retry loop.
type Operation struct {
	// Name identifies the operation in logs.
	Name string

	// Index is the index this operation targets, if any. Several failure
	// classes are only retryable when the failure is tied to a named index.
	Index string

	// RaiseConflicts makes optimistic-concurrency conflicts surface as
	// ErrVersionConflict instead of being absorbed and retried.
	RaiseConflicts bool

	// Do performs the call against the current connection. It is invoked
	// once per attempt and must build any request body from scratch so a
	// retried attempt never reuses a drained reader.
	Do func(ctx context.Context, client *opensearchgo.Client) (*opensearchapi.Response, error)
}

// Result is a successful, fully-read engine response.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Updated and Deleted are the operation's document counts, including
	// work reported by conflict responses that were absorbed and retried.
	Updated int64
	Deleted int64

	// Retries is the number of failed attempts before this response.
	Retries int
}

// Decode unmarshals the response body into v.
func (r *Result) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

type outcome int

const (
	outcomeFatal outcome = iota
	outcomeConflict
	outcomeRetry
	outcomeRetryReset
)

type retryReason int

const (
	reasonNone retryReason = iota
	reasonLostContext
	reasonTimeout
	reasonConnection
	reasonBusy
	reasonIndexNotReady
	reasonWriteBlocked
)

// classification is the verdict on a single failed attempt.
type classification struct {
	outcome outcome
	reason  retryReason
	// cause is the error to surface for fatal outcomes, or the underlying
	// failure kept for logging on retryable ones.
	cause error
	// message describes a version conflict.
	message string
	// updated and deleted are partial counts salvaged from a conflict body.
	updated int64
	deleted int64
}

// Execute runs op through the retry loop. Transient failures are retried
// indefinitely with linear capped backoff; bounding the total wait is the
// caller's business via ctx, which is honored both between and during
// attempts. The first fatal failure or context cancellation ends the loop.
//
// Version conflicts get special treatment. With op.RaiseConflicts set, the
// first conflict fails the operation with ErrVersionConflict after a short
// randomized delay. Otherwise the conflict is absorbed: any partial document
// counts in its body are banked, the attempt is retried, and the banked
// counts are folded into the eventual successful Result.
func (s *Store) Execute(ctx context.Context, op Operation) (*Result, error) {
	var retries int
	var updated, deleted int64

	for {
		client := s.client.Load()
		if client == nil {
			return nil, ErrStoreClosed
		}

		status, header, body, err := s.attempt(ctx, client, op)
		if err == nil && status < http.StatusMultipleChoices {
			if retries > 0 {
				s.log.InfoContext(ctx, "datastore operation recovered",
					logger.Key("operation", op.Name),
					logger.Index(op.Index),
					logger.RetryCount(retries),
				)
			}
			return newResult(status, header, body, updated, deleted, retries), nil
		}

		// The caller gave up; report that rather than the attempt's noise.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		c := classify(op, status, body, err)
		switch c.outcome {
		case outcomeFatal:
			return nil, c.cause

		case outcomeConflict:
			if op.RaiseConflicts {
				if err := s.sleep(ctx, time.Duration(rand.Int63n(int64(conflictJitter)))); err != nil {
					return nil, err
				}
				return nil, fmt.Errorf("%w: %s", ErrVersionConflict, c.message)
			}
			updated += c.updated
			deleted += c.deleted

		case outcomeRetry, outcomeRetryReset:
			s.logRetry(ctx, op, c, retries)
		}

		if err := s.sleep(ctx, backoffDelay(retries)); err != nil {
			return nil, err
		}

		if c.outcome == outcomeRetryReset {
			if err := s.reset(ctx); err != nil {
				if errors.Is(err, ErrStoreClosed) {
					return nil, err
				}
				s.log.WarnContext(ctx, "datastore reconnect failed", logger.Error(err))
			}
		}

		retries++
	}
}

// attempt performs one call with the per-attempt request timeout applied and
// the response body fully read, so the loop can classify the failure and
// hand callers a reusable payload.
func (s *Store) attempt(ctx context.Context, client *opensearchgo.Client, op Operation) (int, http.Header, []byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	res, err := op.Do(attemptCtx, client)
	if err != nil {
		return 0, nil, nil, err
	}

	var body []byte
	if res.Body != nil {
		defer res.Body.Close()
		if body, err = io.ReadAll(res.Body); err != nil {
			return 0, nil, nil, err
		}
	}

	return res.StatusCode, res.Header, body, nil
}

// classify maps a failed attempt onto the closed set of outcomes. It is a
// pure function of the operation's shape and the observed failure, which
// keeps the classification table independently testable.
func classify(op Operation, status int, body []byte, err error) classification {
	if err != nil {
		if isTimeout(err) {
			return classification{outcome: outcomeRetryReset, reason: reasonTimeout, cause: err}
		}
		return classification{outcome: outcomeRetryReset, reason: reasonConnection, cause: err}
	}

	switch status {
	case http.StatusNotFound:
		// A named index disappearing under a running query is routine
		// during index rollovers; any other 404 is the caller's problem.
		if op.Index != "" && bytes.Contains(body, []byte(lostContextMarker)) {
			return classification{outcome: outcomeRetry, reason: reasonLostContext}
		}

	case http.StatusConflict:
		var counts struct {
			Updated int64 `json:"updated"`
			Deleted int64 `json:"deleted"`
		}
		// Bodies without counts leave both at zero.
		_ = json.Unmarshal(body, &counts)
		return classification{
			outcome: outcomeConflict,
			message: newAPIError(status, body).Error(),
			updated: counts.Updated,
			deleted: counts.Deleted,
		}

	case http.StatusUnauthorized:
		// Credentials were rotated under us; reconnect picks up the
		// rewritten host URIs.
		return classification{outcome: outcomeRetryReset, reason: reasonConnection, cause: newAPIError(status, body)}

	case http.StatusTooManyRequests:
		return classification{outcome: outcomeRetry, reason: reasonBusy, cause: newAPIError(status, body)}

	case http.StatusServiceUnavailable:
		if op.Index != "" {
			return classification{outcome: outcomeRetry, reason: reasonIndexNotReady}
		}

	case http.StatusForbidden:
		if op.Index != "" {
			return classification{outcome: outcomeRetry, reason: reasonWriteBlocked}
		}
	}

	return classification{outcome: outcomeFatal, cause: newAPIError(status, body)}
}

func (s *Store) logRetry(ctx context.Context, op Operation, c classification, retries int) {
	switch c.reason {
	case reasonLostContext:
		s.log.WarnContext(ctx, "index was removed while a query was running, retrying",
			logger.Index(op.Index),
			logger.RetryCount(retries),
		)
	case reasonTimeout:
		s.log.WarnContext(ctx, "search engine connection timeout, retrying",
			logger.Key("operation", op.Name),
			logger.Hosts(s.Hosts(true)),
			logger.RetryCount(retries),
		)
	case reasonConnection:
		s.log.WarnContext(ctx, "no connection to search engine, retrying",
			logger.Key("operation", op.Name),
			logger.Error(c.cause),
			logger.Hosts(s.Hosts(true)),
			logger.RetryCount(retries),
		)
	case reasonBusy:
		if op.Index != "" {
			s.log.WarnContext(ctx, "search engine is too busy to perform the requested task, retrying",
				logger.Index(op.Index),
				logger.RetryCount(retries),
			)
		} else {
			s.log.WarnContext(ctx, "search engine is too busy to perform the requested task, retrying",
				logger.Error(c.cause),
				logger.RetryCount(retries),
			)
		}
	case reasonIndexNotReady:
		s.log.WarnContext(ctx, "index is not ready yet, retrying",
			logger.Index(op.Index),
			logger.RetryCount(retries),
		)
	case reasonWriteBlocked:
		s.log.WarnContext(ctx, "cluster is preventing write operations, retrying",
			logger.Index(op.Index),
			logger.RetryCount(retries),
		)
	}
}

func newResult(status int, header http.Header, body []byte, updated, deleted int64, retries int) *Result {
	var counts struct {
		Updated int64 `json:"updated"`
		Deleted int64 `json:"deleted"`
	}
	_ = json.Unmarshal(body, &counts)

	return &Result{
		StatusCode: status,
		Header:     header,
		Body:       body,
		Updated:    counts.Updated + updated,
		Deleted:    counts.Deleted + deleted,
		Retries:    retries,
	}
}

// backoffDelay grows linearly with the retry count: no delay before the
// first retry, then one second more per attempt up to maxRetryBackoff.
func backoffDelay(retries int) time.Duration {
	return min(time.Duration(retries)*time.Second, maxRetryBackoff)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// sleepContext blocks for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
