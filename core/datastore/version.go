package datastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// MinEngineVersion is the oldest engine release the store will talk to.
// Older releases predate the task and security APIs the store depends on.
const MinEngineVersion = "2.0.0"

// checkEngineVersion probes the cluster once during construction and fails
// fast when the reported version is below MinEngineVersion. The probe runs
// through the retry loop, so a cluster that is merely slow to come up does
// not fail construction.
func (s *Store) checkEngineVersion(ctx context.Context) error {
	res, err := s.Execute(ctx, Operation{
		Name: "info",
		Do: func(ctx context.Context, client *opensearchgo.Client) (*opensearchapi.Response, error) {
			return opensearchapi.InfoRequest{}.Do(ctx, client)
		},
	})
	if err != nil {
		return err
	}

	var info struct {
		Version struct {
			Number string `json:"number"`
		} `json:"version"`
	}
	if err := res.Decode(&info); err != nil {
		return errors.Join(ErrUnexpectedResponse, err)
	}

	v, err := semver.NewVersion(info.Version.Number)
	if err != nil {
		return fmt.Errorf("%w: cannot parse engine version %q", ErrUnexpectedResponse, info.Version.Number)
	}
	s.engineVersion = v

	if !s.IsSupportedVersion(MinEngineVersion) {
		return fmt.Errorf("%w: engine version %s is below the minimum supported %s",
			ErrUnsupportedVersion, v.Original(), MinEngineVersion)
	}
	return nil
}

// EngineVersion returns the engine version detected at construction.
func (s *Store) EngineVersion() string {
	if s.engineVersion == nil {
		return ""
	}
	return s.engineVersion.Original()
}

// IsSupportedVersion reports whether the detected engine version satisfies
// the given minimum. Partial versions like "2.11" are accepted.
func (s *Store) IsSupportedVersion(minVersion string) bool {
	required, err := semver.NewVersion(minVersion)
	if err != nil || s.engineVersion == nil {
		return false
	}
	return !s.engineVersion.LessThan(required)
}
