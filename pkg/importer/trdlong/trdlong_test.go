//nolint:funlen,lll // ok for tests
package trdlong

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/trackdata-manager-go/pkg/importer"
	"github.com/mpapenbr/trackdata-manager-go/pkg/model"
)

func longCSV(rows ...string) []byte {
	return []byte("ts_ms,name,value\n" + strings.Join(rows, "\n") + "\n")
}

func TestImport(t *testing.T) {
	data := longCSV(
		"1000,speed,250.5",
		"1000,aps,80",
		"1000,pbrake_f,5.5",
		"1000,gear,4",
		"1000,accx_can,1.2",
		"1000,accy_can,-0.8",
	)
	bundle, warnings, err := Import(data, "s1")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, model.SourceTRDLong, bundle.Session.Source)
	assert.Equal(t, "s1", bundle.Session.ID)
	require.Len(t, bundle.Telemetry, 1)

	want := &model.Telemetry{
		SessionID:   "s1",
		TsMS:        1000,
		SpeedKPH:    lo.ToPtr(250.5),
		ThrottlePct: lo.ToPtr(80.0),
		BrakeBar:    lo.ToPtr(5.5),
		Gear:        lo.ToPtr(4),
		AccLongG:    lo.ToPtr(1.2),
		AccLatG:     lo.ToPtr(-0.8),
	}
	if diff := cmp.Diff(want, bundle.Telemetry[0]); diff != "" {
		t.Errorf("sample not correct: %s", diff)
	}
}

func TestImportThrottleClampsButSpeedRejects(t *testing.T) {
	data := longCSV(
		"1000,speed,999", // beyond 350, rejected as outlier
		"1000,aps,150",   // clamped to 100
		"1000,pbrake_f,5.5",
		"1000,gear,4",
		"1000,accx_can,1.2",
		"1000,accy_can,-0.8",
		"1000,Steering_Angle,45",
	)
	bundle, _, err := Import(data, "s1")
	require.NoError(t, err)
	require.Len(t, bundle.Telemetry, 1)
	sample := bundle.Telemetry[0]
	assert.Nil(t, sample.SpeedKPH)
	require.NotNil(t, sample.ThrottlePct)
	assert.Equal(t, 100.0, *sample.ThrottlePct)
}

func TestImportPopulatedFieldsGate(t *testing.T) {
	// four populated fields are not enough for a sample
	data := longCSV(
		"1000,speed,250.5",
		"1000,aps,80",
		"1000,pbrake_f,5.5",
		"1000,gear,4",
	)
	_, _, err := Import(data, "s1")
	var impErr *importer.Error
	require.ErrorAs(t, err, &impErr)
	assert.Equal(t, importer.InsufficientChannels, impErr.Kind)
	assert.Equal(t, "no valid telemetry rows found", impErr.Reason)
}

func TestImportBrakeFallback(t *testing.T) {
	data := longCSV(
		"1000,speed,250",
		"1000,aps,80",
		"1000,gear,4",
		"1000,accx_can,1.0",
		"1000,pbrake_f,3",
		"1000,pbrake_r,9",
		"5000,speed,250",
		"5000,aps,80",
		"5000,gear,4",
		"5000,accx_can,1.0",
		"5000,pbrake_r,9",
	)
	bundle, _, err := Import(data, "s1")
	require.NoError(t, err)
	require.Len(t, bundle.Telemetry, 2)
	// front pressure wins when present, rear only fills the gap
	assert.Equal(t, 3.0, *bundle.Telemetry[0].BrakeBar)
	assert.Equal(t, 9.0, *bundle.Telemetry[1].BrakeBar)
}

func TestImportDeduplicatesNearTimestamps(t *testing.T) {
	// 1000 and 1001 collapse, the richer sample wins; 1003 stands alone
	data := longCSV(
		"1000,speed,250",
		"1000,aps,80",
		"1000,gear,4",
		"1000,accx_can,1.0",
		"1000,accy_can,0.5",
		"1001,speed,251",
		"1003,speed,250",
		"1003,aps,80",
		"1003,gear,4",
		"1003,accx_can,1.0",
		"1003,accy_can,0.5",
	)
	bundle, _, err := Import(data, "s1")
	require.NoError(t, err)
	require.Len(t, bundle.Telemetry, 2)
	assert.Equal(t, int64(1000), bundle.Telemetry[0].TsMS)
	assert.Equal(t, 250.0, *bundle.Telemetry[0].SpeedKPH)
	assert.Equal(t, int64(1003), bundle.Telemetry[1].TsMS)
}

func TestImportISOTimestamps(t *testing.T) {
	data := []byte("timestamp,telemetry_name,telemetry_value\n" +
		"2025-04-04T18:10:23.456Z,speed,250\n" +
		"2025-04-04T18:10:23.456Z,aps,80\n" +
		"2025-04-04T18:10:23.456Z,gear,4\n" +
		"2025-04-04T18:10:23.456Z,accx_can,1.0\n" +
		"2025-04-04T18:10:23.456Z,accy_can,0.5\n")
	bundle, _, err := Import(data, "s1")
	require.NoError(t, err)
	require.Len(t, bundle.Telemetry, 1)
	assert.Equal(t, int64(1743790223456), bundle.Telemetry[0].TsMS)
}

func TestImportWarnings(t *testing.T) {
	data := longCSV(
		",speed,250",
		"abc,speed,250",
		"1000,speed,250",
		"1000,aps,80",
		"1000,gear,4",
		"1000,accx_can,1.0",
		"1000,wheelspin_rl,0.1",
		"1000,engine_rpm,8000",
		"1000,accy_can,0.5",
	)
	bundle, warnings, err := Import(data, "s1")
	require.NoError(t, err)
	require.Len(t, bundle.Telemetry, 1)
	assert.Contains(t, warnings, "Row missing timestamp, skipping")
	assert.Contains(t, warnings, "Unknown telemetry names: engine_rpm, wheelspin_rl")
	hasInvalid := lo.SomeBy(warnings, func(w string) bool {
		return strings.HasPrefix(w, "Invalid timestamp 'abc'")
	})
	assert.True(t, hasInvalid)
}

func TestImportMissingHeaders(t *testing.T) {
	data := []byte("time,channel_id,reading\n1000,speed,250\n")
	_, _, err := Import(data, "s1")
	var impErr *importer.Error
	require.ErrorAs(t, err, &impErr)
	assert.Equal(t, importer.InsufficientChannels, impErr.Kind)
	assert.Contains(t, impErr.Reason, "required headers not found")
	assert.Contains(t, impErr.Missing, "ts_ms")
	assert.Contains(t, impErr.Missing, "value")
}

func TestImportEmpty(t *testing.T) {
	_, _, err := Import([]byte(""), "s1")
	var impErr *importer.Error
	require.ErrorAs(t, err, &impErr)
	assert.Equal(t, importer.BadInput, impErr.Kind)
}

func TestInspect(t *testing.T) {
	data := longCSV(
		"1000,speed,250",
		"1000,aps,80",
		"1001,wheelspin_rl,0.1",
	)
	report := Inspect(data)
	assert.Equal(t, 3, report.RowsTotal)
	assert.Contains(t, report.RecognizedChannels, "speed")
	assert.Contains(t, report.RecognizedChannels, "aps")
	assert.Contains(t, report.MissingExpected, "gear")
	assert.Contains(t, report.UnrecognizedNames, "wheelspin_rl")
	assert.Equal(t, 2, report.TimestampCount)
}
