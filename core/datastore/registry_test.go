package datastore

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	t.Parallel()

	transport := &stubTransport{}
	store := newTestStore(t, transport)

	t.Run("accepts lowercase names", func(t *testing.T) {
		t.Parallel()

		for _, name := range []string{"submission", "file_info", "results2", "_hidden", ""} {
			assert.NoError(t, store.Register(name, nil), "name %q", name)
		}
	})

	t.Run("rejects names outside the allowed charset", func(t *testing.T) {
		t.Parallel()

		for _, name := range []string{"Bad-Name!", "UPPER", "with space", "dash-ed", "dotted.name", "tab\tname"} {
			assert.ErrorIs(t, store.Register(name, nil), ErrInvalidName, "name %q", name)
		}
	})

	t.Run("re-registering replaces the schema", func(t *testing.T) {
		t.Parallel()

		first := &Schema{Mappings: json.RawMessage(`{"properties":{}}`)}
		second := &Schema{Mappings: json.RawMessage(`{"properties":{"state":{"type":"keyword"}}}`)}

		require.NoError(t, store.Register("replaceable", first))
		require.NoError(t, store.Register("replaceable", second))
		assert.Same(t, second, store.Models()["replaceable"])
	})
}

func TestCollectionLookup(t *testing.T) {
	t.Parallel()

	t.Run("unregistered names fail", func(t *testing.T) {
		t.Parallel()

		transport := &stubTransport{}
		store := newTestStore(t, transport)

		_, err := store.Collection("ghost")
		assert.ErrorIs(t, err, ErrNotRegistered)
	})

	t.Run("proxies are cached by default", func(t *testing.T) {
		t.Parallel()

		transport := &stubTransport{}
		store := newTestStore(t, transport)
		require.NoError(t, store.Register("submission", nil))

		first, err := store.Collection("submission")
		require.NoError(t, err)
		second, err := store.Collection("submission")
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Equal(t, "submission", first.Name())
	})

	t.Run("validation disabled builds a fresh proxy per call", func(t *testing.T) {
		t.Parallel()

		transport := &stubTransport{}
		transport.enqueue(respond(http.StatusOK, clusterInfoBody))

		store, err := New(context.Background(),
			DefaultConfig("http://localhost:9200"),
			WithTransport(transport),
			WithoutValidation(),
		)
		require.NoError(t, err)
		defer store.Close()

		require.NoError(t, store.Register("submission", nil))

		first, err := store.Collection("submission")
		require.NoError(t, err)
		second, err := store.Collection("submission")
		require.NoError(t, err)
		assert.NotSame(t, first, second)
	})
}
