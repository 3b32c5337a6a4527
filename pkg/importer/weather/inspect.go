package weather

import (
	"fmt"

	"github.com/mpapenbr/trackdata-manager-go/pkg/importer/parse"
	"github.com/mpapenbr/trackdata-manager-go/pkg/importer/sniff"
)

// Report is the diagnostic view of a weather CSV.
type Report struct {
	Headers    []string          `json:"headers"`
	Recognized map[string]string `json:"recognized"`
	Reasons    []string          `json:"reasons"`
	RowsTotal  int               `json:"rows_total"`
	Timestamps int               `json:"timestamps"`
}

// Inspect produces read-only diagnostics for a weather CSV; it never fails.
func Inspect(data []byte) Report {
	report := Report{Headers: []string{}, Recognized: map[string]string{}, Reasons: []string{}}

	tbl, err := sniff.ReadTable(data)
	if err != nil {
		report.Reasons = append(report.Reasons, err.Error())
		return report
	}
	if len(tbl.Headers) == 0 {
		report.Reasons = append(report.Reasons, "Empty CSV file")
		return report
	}
	report.Headers = tbl.Headers
	report.RowsTotal = tbl.Len()

	resolved := resolveColumns(tbl.Headers)
	for _, canonical := range canonicalOrder {
		info, ok := resolved[canonical]
		if !ok {
			continue
		}
		display := canonical
		if d, found := displayName[canonical]; found {
			display = d
		}
		report.Recognized[display] = info.header
		report.Reasons = append(report.Reasons, fmt.Sprintf(
			"Weather field '%s' found: '%s' with conversion '%s'",
			canonical, info.header, info.conversion))
	}
	if _, ok := resolved["ts"]; !ok {
		report.Reasons = append(report.Reasons,
			"No timestamp field found among expected: ts_ms, utc, utc_seconds, timestamp, time_s, time_ms")
	}
	if _, ok := resolved["temp"]; !ok {
		report.Reasons = append(report.Reasons,
			"No temperature field found among expected: temp, temp_c, temperature, air_temp_c")
	}
	if _, ok := resolved["humidity"]; !ok {
		report.Reasons = append(report.Reasons,
			"No humidity field found among expected: humidity, humidity_pct, rh, relative_humidity")
	}
	if _, ok := resolved["wind"]; !ok {
		report.Reasons = append(report.Reasons,
			"No wind field found among expected: wind, wind_kph, wind_speed_kph, wind_mps")
	}

	if tsInfo, ok := resolved["ts"]; ok {
		distinct := map[string]struct{}{}
		for i := 0; i < tbl.Len(); i++ {
			if v := parse.CleanString(tbl.Get(i, tsInfo.header)); v != "" {
				distinct[v] = struct{}{}
			}
		}
		report.Timestamps = len(distinct)
	}
	return report
}
