//nolint:funlen,lll // ok for tests
package racechrono

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/trackdata-manager-go/pkg/importer"
	"github.com/mpapenbr/trackdata-manager-go/pkg/model"
)

const header = "Time (s),Speed (km/h),Longitude,Latitude,Throttle pos (%)\n"

func TestImport(t *testing.T) {
	data := []byte(header +
		"10.123,120.5,9.123456,48.654321,75\n" +
		"10.223,121.0,9.123460,48.654325,80\n")
	bundle, warnings, err := Import(data, "s1")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, model.SourceChrono, bundle.Session.Source)
	require.Len(t, bundle.Telemetry, 2)

	want := &model.Telemetry{
		SessionID:   "s1",
		TsMS:        10123,
		SpeedKPH:    lo.ToPtr(120.5),
		ThrottlePct: lo.ToPtr(75.0),
		LatDeg:      lo.ToPtr(48.654321),
		LonDeg:      lo.ToPtr(9.123456),
	}
	if diff := cmp.Diff(want, bundle.Telemetry[0]); diff != "" {
		t.Errorf("sample not correct: %s", diff)
	}
}

func TestImportClampsEverything(t *testing.T) {
	data := []byte(header + "5.0,450,-200,95,120\n")
	bundle, _, err := Import(data, "s1")
	require.NoError(t, err)
	require.Len(t, bundle.Telemetry, 1)
	sample := bundle.Telemetry[0]
	// the device is trusted, values clamp instead of dropping
	assert.Equal(t, 400.0, *sample.SpeedKPH)
	assert.Equal(t, 100.0, *sample.ThrottlePct)
	assert.Equal(t, 90.0, *sample.LatDeg)
	assert.Equal(t, -180.0, *sample.LonDeg)
}

func TestImportBrakeColumnWarns(t *testing.T) {
	data := []byte("Time (s),Speed (km/h),Brake pos (%)\n1.0,100,50\n")
	bundle, warnings, err := Import(data, "s1")
	require.NoError(t, err)
	assert.Contains(t, warnings,
		"racechrono: brake_pos_pct not mapped to Telemetry.brake_bar (different units), dropped")
	assert.Nil(t, bundle.Telemetry[0].BrakeBar)
}

func TestImportTimeValidation(t *testing.T) {
	data := []byte(header +
		"abc,100,9,48,50\n" +
		"90000,100,9,48,50\n" +
		"-1,100,9,48,50\n" +
		"1.0,100,9,48,50\n")
	bundle, warnings, err := Import(data, "s1")
	require.NoError(t, err)
	require.Len(t, bundle.Telemetry, 1)
	assert.Contains(t, warnings, "Row 1: Invalid time format 'abc'")
	assert.Contains(t, warnings, "Row 2: Time 90000s outside reasonable range")
	assert.Contains(t, warnings, "Row 3: Time -1s outside reasonable range")
}

func TestImportDeduplicatesNearTimestamps(t *testing.T) {
	// 1.000s and 1.001s land within the same millisecond window; the
	// richer sample wins
	data := []byte(header +
		"1.000,100,,,\n" +
		"1.001,101,9.1,48.2,50\n" +
		"1.010,102,9.1,48.2,50\n")
	bundle, _, err := Import(data, "s1")
	require.NoError(t, err)
	require.Len(t, bundle.Telemetry, 2)
	assert.Equal(t, int64(1001), bundle.Telemetry[0].TsMS)
	assert.Equal(t, 101.0, *bundle.Telemetry[0].SpeedKPH)
	assert.Equal(t, int64(1010), bundle.Telemetry[1].TsMS)
}

func TestImportNoValidRows(t *testing.T) {
	data := []byte(header + "1.0,,,,\n")
	_, _, err := Import(data, "s1")
	var impErr *importer.Error
	require.ErrorAs(t, err, &impErr)
	assert.Equal(t, importer.BadInput, impErr.Kind)
	assert.Equal(t, "no valid telemetry rows found", impErr.Reason)
}

func TestImportEmpty(t *testing.T) {
	_, _, err := Import([]byte(header), "s1")
	var impErr *importer.Error
	require.ErrorAs(t, err, &impErr)
	assert.Equal(t, "empty CSV file", impErr.Reason)
}
