package registry

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rediwo/redi-migrate/types"
)

// Schemes are registered into package-level state, so every test uses its own
// scheme name to stay independent of registration order.

func stubOpen(uri string) (*sql.DB, types.Dialect, error) {
	return nil, nil, nil
}

func TestRegisterAndGet(t *testing.T) {
	Register("testdb1", stubOpen)

	open, err := Get("testdb1")
	require.NoError(t, err)
	assert.NotNil(t, open)

	_, err = Get("unregistered")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestRegisterDuplicatePanics(t *testing.T) {
	Register("testdb2", stubOpen)
	assert.Panics(t, func() {
		Register("testdb2", stubOpen)
	})
}

func TestOpenParsesScheme(t *testing.T) {
	var gotURI string
	Register("testdb3", func(uri string) (*sql.DB, types.Dialect, error) {
		gotURI = uri
		return nil, nil, nil
	})

	_, _, err := Open("testdb3://host/dbname")
	require.NoError(t, err)
	assert.Equal(t, "testdb3://host/dbname", gotURI)
}

func TestOpenRejectsMissingScheme(t *testing.T) {
	_, _, err := Open("/path/to/db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing scheme")

	_, _, err = Open("testdb4://whatever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestSchemesSorted(t *testing.T) {
	Register("testdb5b", stubOpen)
	Register("testdb5a", stubOpen)

	schemes := Schemes()
	assert.IsIncreasing(t, schemes)
	assert.Contains(t, schemes, "testdb5a")
	assert.Contains(t, schemes, "testdb5b")
}
