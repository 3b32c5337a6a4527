//nolint:funlen,lll // ok for tests
package gpx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/trackdata-manager-go/pkg/importer"
	"github.com/mpapenbr/trackdata-manager-go/pkg/model"
)

const sampleGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" xmlns:gpxtpx="http://www.garmin.com/xmlschemas/TrackPointExtension/v1">
  <trk>
    <trkseg>
      <trkpt lat="48.654321" lon="9.123456">
        <ele>320.5</ele>
        <time>2025-04-04T18:10:23Z</time>
        <extensions>
          <gpxtpx:TrackPointExtension>
            <gpxtpx:speed>25.0</gpxtpx:speed>
          </gpxtpx:TrackPointExtension>
        </extensions>
      </trkpt>
      <trkpt lat="48.654400" lon="9.123500">
        <time>2025-04-04T18:10:24Z</time>
        <extensions>
          <gpxtpx:TrackPointExtension>
            <gpxtpx:speed>0</gpxtpx:speed>
          </gpxtpx:TrackPointExtension>
        </extensions>
      </trkpt>
      <trkpt lat="48.654500" lon="9.123600"/>
    </trkseg>
  </trk>
</gpx>`

func TestSniff(t *testing.T) {
	assert.True(t, Sniff([]byte(sampleGPX)))
	assert.True(t, Sniff([]byte("  \n<trkpt lat=\"1\" lon=\"2\">")))
	assert.False(t, Sniff([]byte("ts_ms,name,value\n1,speed,100\n")))
}

func TestImport(t *testing.T) {
	bundle, warnings, err := Import([]byte(sampleGPX), "s1")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, model.SourceGPX, bundle.Session.Source)
	// the point without <time> is skipped
	require.Len(t, bundle.Telemetry, 2)

	first := bundle.Telemetry[0]
	assert.Equal(t, int64(1743790223000), first.TsMS)
	assert.Equal(t, 48.654321, *first.LatDeg)
	assert.Equal(t, 9.123456, *first.LonDeg)
	require.NotNil(t, first.SpeedKPH)
	assert.InDelta(t, 90.0, *first.SpeedKPH, 1e-9)

	// a speed of exactly zero stays absent
	assert.Nil(t, bundle.Telemetry[1].SpeedKPH)
}

func TestImportNaiveTime(t *testing.T) {
	data := []byte(`<gpx><trk><trkseg>
		<trkpt lat="1.0" lon="2.0"><time>2025-04-04T18:10:23</time></trkpt>
	</trkseg></trk></gpx>`)
	bundle, _, err := Import(data, "s1")
	require.NoError(t, err)
	require.Len(t, bundle.Telemetry, 1)
	assert.Equal(t, int64(1743790223000), bundle.Telemetry[0].TsMS)
}

func TestImportUnparseableTimeBecomesZero(t *testing.T) {
	data := []byte(`<gpx><trk><trkseg>
		<trkpt lat="1.0" lon="2.0"><time>yesterday</time></trkpt>
	</trkseg></trk></gpx>`)
	bundle, _, err := Import(data, "s1")
	require.NoError(t, err)
	require.Len(t, bundle.Telemetry, 1)
	assert.Equal(t, int64(0), bundle.Telemetry[0].TsMS)
}

func TestImportNoPoints(t *testing.T) {
	data := []byte(`<gpx><trk><trkseg></trkseg></trk></gpx>`)
	_, _, err := Import(data, "s1")
	var impErr *importer.Error
	require.ErrorAs(t, err, &impErr)
	assert.Equal(t, importer.BadInput, impErr.Kind)
	assert.Equal(t, "no <trkpt> with time/lat/lon found", impErr.Reason)
}

func TestImportMalformedXML(t *testing.T) {
	_, _, err := Import([]byte("<gpx><trk>"), "s1")
	var impErr *importer.Error
	require.ErrorAs(t, err, &impErr)
	assert.Equal(t, importer.BadInput, impErr.Kind)
}
