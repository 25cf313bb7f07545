package dupstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMarkThenSeen(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	seen, err := s.Seen("msg-1")
	require.NoError(t, err)
	require.False(t, seen)

	require.NoError(t, s.Mark("msg-1"))

	seen, err = s.Seen("msg-1")
	require.NoError(t, err)
	require.True(t, seen)
}

func TestMarkIsIdempotent(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Mark("msg-1"))
	require.NoError(t, s.Mark("msg-1"))

	seen, err := s.Seen("msg-1")
	require.NoError(t, err)
	require.True(t, seen)
}

func TestSweepRemovesOnlyExpiredEntries(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	clock := int64(1_000_000)
	s.now = func() int64 { return clock }

	require.NoError(t, s.Mark("old"))
	clock += int64((2 * time.Hour).Seconds())
	require.NoError(t, s.Mark("fresh"))

	n, err := s.Sweep(time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	seen, err := s.Seen("old")
	require.NoError(t, err)
	require.False(t, seen)

	seen, err = s.Seen("fresh")
	require.NoError(t, err)
	require.True(t, seen)
}

func TestSweepZeroRetentionIsNoop(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Mark("msg-1"))
	n, err := s.Sweep(0)
	require.NoError(t, err)
	require.Zero(t, n)

	seen, err := s.Seen("msg-1")
	require.NoError(t, err)
	require.True(t, seen)
}
