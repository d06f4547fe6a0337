package preprocess

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuvault/docscan/pkg/logger"
)

func TestTempTrackerCreateAndRelease(t *testing.T) {
	tracker := NewTempTracker(logger.NewTestLogger())

	f, err := tracker.Create("docscan-test-*.png")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, 1, tracker.Count())

	_, err = os.Stat(f.Name())
	require.NoError(t, err)

	tracker.Release()
	assert.Equal(t, 0, tracker.Count())

	_, err = os.Stat(f.Name())
	assert.True(t, os.IsNotExist(err))
}

func TestTempTrackerTracksExternalFiles(t *testing.T) {
	tracker := NewTempTracker(logger.NewTestLogger())

	f, err := os.CreateTemp(t.TempDir(), "external-*.jpg")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	tracker.Track(f.Name())
	assert.Equal(t, 1, tracker.Count())

	tracker.Release()
	_, err = os.Stat(f.Name())
	assert.True(t, os.IsNotExist(err))
}

func TestTempTrackerReleaseIsIdempotent(t *testing.T) {
	tracker := NewTempTracker(logger.NewTestLogger())

	f, err := tracker.Create("docscan-test-*.png")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	tracker.Release()
	tracker.Release() // second release must not warn or panic
	assert.Equal(t, 0, tracker.Count())
}

func TestTempTrackerReleaseToleratesMissingFile(t *testing.T) {
	tracker := NewTempTracker(logger.NewTestLogger())

	f, err := tracker.Create("docscan-test-*.png")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, os.Remove(f.Name()))

	tracker.Release()
	assert.Equal(t, 0, tracker.Count())
}
