package datastore

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"slices"

	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/searchstore/core/logger"
)

// alternateUsers is the allow-list of identities the store may rotate to.
var alternateUsers = []string{"plumber"}

const (
	taskManagementRole = "manage_tasks"
	superuserRole      = "all_access"

	securityRolesPath = "/_plugins/_security/api/roles/"
	securityUsersPath = "/_plugins/_security/api/internalusers/"
)

// SwitchUser rotates the identity used on the connection. Only allow-listed
// identities are honored; anything else logs a warning and leaves the store
// untouched.
//
// For an honored identity the store provisions a role with full access to
// the internal task-tracking index, upserts the user under a fresh random
// secret, rewrites the embedded credentials of every host URI that carries
// any, and reconnects. Hosts without embedded credentials are left alone.
func (s *Store) SwitchUser(ctx context.Context, username string) error {
	if !slices.Contains(alternateUsers, username) {
		s.log.WarnContext(ctx, "unknown alternative user to switch to", logger.User(username))
		return nil
	}

	if err := s.ensureTaskManagementRole(ctx); err != nil {
		return err
	}

	secret, err := generateSecret()
	if err != nil {
		return err
	}
	if err := s.upsertUser(ctx, username, secret); err != nil {
		return err
	}

	s.mu.Lock()
	s.hosts = rewriteHostCredentials(s.hosts, username, secret)
	s.mu.Unlock()

	if err := s.reset(ctx); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "switched datastore user", logger.User(username))
	return nil
}

// ensureTaskManagementRole upserts the role granting full privileges on the
// internal task-tracking index, restricted system index status included.
func (s *Store) ensureTaskManagementRole(ctx context.Context) error {
	body := map[string]any{
		"index_permissions": []map[string]any{{
			"index_patterns":  []string{taskIndex},
			"allowed_actions": []string{"indices_all"},
		}},
	}
	_, err := s.Execute(ctx, Operation{
		Name: "security.put_role",
		Do:   securityPut(securityRolesPath+taskManagementRole, body),
	})
	return err
}

// upsertUser creates or updates the internal user bound to the task
// management and superuser roles. The secret is pre-hashed with bcrypt so it
// never crosses the wire in plain text.
func (s *Store) upsertUser(ctx context.Context, username, secret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	body := map[string]any{
		"hash":                      string(hash),
		"opendistro_security_roles": []string{taskManagementRole, superuserRole},
	}
	_, err = s.Execute(ctx, Operation{
		Name: "security.put_user",
		Do:   securityPut(securityUsersPath+username, body),
	})
	return err
}

// securityPut builds a raw request against the security plugin REST API,
// which has no typed request in the client. The transport fills in scheme,
// host and credentials from the active connection.
func securityPut(path string, body any) func(context.Context, *opensearchgo.Client) (*opensearchapi.Response, error) {
	return func(ctx context.Context, client *opensearchgo.Client) (*opensearchapi.Response, error) {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPut, path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		res, err := client.Perform(req)
		if err != nil {
			return nil, err
		}
		return &opensearchapi.Response{StatusCode: res.StatusCode, Header: res.Header, Body: res.Body}, nil
	}
}

// generateSecret returns a URL-safe random secret for a rotated identity.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// rewriteHostCredentials swaps the embedded credentials of every host URI
// that carries userinfo. Hosts relying on other authentication keep their
// URI untouched.
func rewriteHostCredentials(hosts []string, username, secret string) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		u, err := url.Parse(h)
		if err != nil || u.User == nil {
			out = append(out, h)
			continue
		}
		u.User = url.UserPassword(username, secret)
		out = append(out, u.String())
	}
	return out
}
