package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenNone(t *testing.T) {
	s, err := Open(context.Background(), "none", "", time.Hour)
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(context.Background(), "", "", time.Hour)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slots.db")
	s, err := Open(context.Background(), "sqlite", path, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, s)
	defer s.Close()

	// migration ran, the table is queryable
	infos, err := s.ListSlots(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "", time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}
