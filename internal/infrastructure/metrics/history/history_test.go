package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndRecent(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Append("web", "api", Sample{Timestamp: int64(i), CPU: float32(i), Memory: uint64(i)}))
	}

	samples, err := s.Recent("web", "api", 3)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, int64(7), samples[0].Timestamp)
	assert.Equal(t, int64(9), samples[2].Timestamp)
}

func TestRecentUnknownServiceIsEmpty(t *testing.T) {
	s := openTestStore(t)
	samples, err := s.Recent("web", "ghost", 5)
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestAppendPrunesOldest(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < maxSamples+25; i++ {
		require.NoError(t, s.Append("web", "api", Sample{Timestamp: int64(i)}))
	}

	samples, err := s.Recent("web", "api", maxSamples*2)
	require.NoError(t, err)
	require.Len(t, samples, maxSamples)
	assert.Equal(t, int64(25), samples[0].Timestamp)
}
