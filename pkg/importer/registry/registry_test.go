package registry

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	want := []string{"gpx", "mylaps", "racechrono", "trd-long", "weather"}
	if diff := cmp.Diff(want, Names()); diff != "" {
		t.Errorf("names not correct: %s", diff)
	}
}

func TestLookup(t *testing.T) {
	fn, err := Lookup("mylaps")
	require.NoError(t, err)
	assert.NotNil(t, fn)

	fn, err = Lookup(" TRD-Long ")
	require.NoError(t, err)
	assert.NotNil(t, fn)

	_, err = Lookup("csv")
	assert.ErrorContains(t, err, "unknown format")
}

func TestDetect(t *testing.T) {
	format, fn, err := Detect("track.gpx", []byte("whatever"))
	require.NoError(t, err)
	assert.Equal(t, "gpx", format)
	assert.NotNil(t, fn)

	format, _, err = Detect("track.xml", []byte("<gpx version=\"1.1\">"))
	require.NoError(t, err)
	assert.Equal(t, "gpx", format)

	_, _, err = Detect("laps.csv", []byte("LAP,DRIVER_NUMBER\n"))
	assert.ErrorContains(t, err, "cannot detect format")
}
