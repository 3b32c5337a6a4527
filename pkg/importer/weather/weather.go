// Package weather imports weather log CSVs. Vendor headers are resolved via
// alias tables kept as data; each alias carries the unit conversion applied
// to its values.
package weather

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/mpapenbr/trackdata-manager-go/pkg/importer"
	"github.com/mpapenbr/trackdata-manager-go/pkg/importer/parse"
	"github.com/mpapenbr/trackdata-manager-go/pkg/importer/sniff"
	"github.com/mpapenbr/trackdata-manager-go/pkg/model"
)

type conversion string

const (
	convNone        conversion = "none"
	convSecondsToMS conversion = "seconds_to_ms"
	convMphToKph    conversion = "mph_to_kph"
	convMpsToKph    conversion = "mps_to_kph"
)

// fieldAliases maps each canonical weather field to its accepted header
// spellings, in declared order; the first alias that matches a header
// (case-insensitively) wins.
var fieldAliases = map[string][]string{
	"ts": {
		"ts_ms", "time_ms", "timestamp_ms", "ts", "timestamp", "utc",
		"epoch", "epoch_ms", "utc_seconds", "time_s", "TIME_UTC_SECONDS", "TIME",
	},
	"temp":       {"temp", "temp_c", "air_temp_c", "AIR_TEMP", "AIR_TEMPERATURE", "temperature"},
	"track_temp": {"track_temp", "track_temp_c", "TRACK_TEMP", "TRACK_TEMPERATURE"},
	"wind": {
		"wind", "wind_kph", "wind_km_h", "wind_mph", "wind_mps",
		"WIND_SPEED", "WIND", "wind_speed_kph",
	},
	"humidity": {"humidity", "humidity_pct", "HUMIDITY", "HUMIDITY_PCT", "rh", "relative_humidity"},
	"pressure": {"pressure", "pressure_hpa", "PRESSURE", "PRESSURE_HPA"},
	"wind_dir": {"wind_dir", "wind_dir_deg", "WIND_DIRECTION", "WIND_DIR"},
	"rain":     {"rain", "rain_flag", "RAIN", "RAIN_FLAG"},
}

// canonicalOrder keeps resolution and reporting deterministic.
var canonicalOrder = []string{
	"ts", "temp", "track_temp", "wind", "humidity", "pressure", "wind_dir", "rain",
}

// displayName is the field name used in alias warnings.
var displayName = map[string]string{
	"ts":       "ts_ms",
	"temp":     "temp_c",
	"wind":     "wind_kph",
	"humidity": "humidity_pct",
}

type resolvedField struct {
	header     string
	conversion conversion
	aliasUsed  bool
}

// determineConversion derives the unit conversion from the alias spelling.
func determineConversion(canonical, alias string) conversion {
	lower := strings.ToLower(alias)
	switch canonical {
	case "ts":
		if strings.HasSuffix(lower, "_ms") {
			return convNone
		}
		// _s, _seconds, utc and plain time columns all carry seconds
		return convSecondsToMS
	case "wind":
		switch {
		case strings.HasSuffix(lower, "_mph"):
			return convMphToKph
		case strings.HasSuffix(lower, "_mps"):
			return convMpsToKph
		default:
			return convNone
		}
	default:
		return convNone
	}
}

// resolveColumns maps CSV headers to canonical weather fields.
func resolveColumns(headers []string) map[string]resolvedField {
	resolved := map[string]resolvedField{}
	for _, canonical := range canonicalOrder {
		for _, alias := range fieldAliases[canonical] {
			match, found := lo.Find(headers, func(h string) bool {
				return strings.EqualFold(strings.TrimSpace(h), alias)
			})
			if !found {
				continue
			}
			resolved[canonical] = resolvedField{
				header:     match,
				conversion: determineConversion(canonical, alias),
				aliasUsed:  !strings.EqualFold(alias, canonical),
			}
			break
		}
	}
	return resolved
}

// stripInlineComment drops trailing "  # ..." style comments from a value.
func stripInlineComment(value string) string {
	if idx := strings.Index(value, "  #"); idx >= 0 {
		return strings.TrimSpace(value[:idx])
	}
	return value
}

// Import parses a weather CSV into a normalized bundle.
//
//nolint:funlen,gocognit // row pipeline reads best as one pass
func Import(data []byte, sessionID string) (
	bundle *model.Bundle, warnings []string, err error,
) {
	defer importer.Recover(&bundle, &warnings, &err)

	tbl, err := sniff.ReadTable(data)
	if err != nil {
		if errors.Is(err, sniff.ErrUndecodable) {
			return nil, nil, importer.NewBadInput(err.Error())
		}
		return nil, nil, importer.NewBadInput("invalid CSV format: " + err.Error())
	}
	if tbl.Len() == 0 {
		return nil, nil, importer.NewBadInput("empty CSV file")
	}

	resolved := resolveColumns(tbl.Headers)
	_, hasTS := resolved["ts"]
	hasPrimary := lo.SomeBy([]string{"temp", "humidity", "wind"}, func(f string) bool {
		_, ok := resolved[f]
		return ok
	})
	if !hasTS || !hasPrimary {
		var missing []string
		if !hasTS {
			missing = append(missing, "ts")
		}
		if !hasPrimary {
			missing = append(missing, "temp|humidity|wind")
		}
		return nil, nil, importer.NewInsufficientChannels(
			"missing required columns: need a timestamp column and at least one weather column",
			missing)
	}

	var points []*model.Weather
	var discardReasons []string

	for i := 0; i < tbl.Len(); i++ {
		rowNum := i + 1
		point, rowWarnings, discardReason := processRow(tbl, i, rowNum, sessionID, resolved)
		warnings = append(warnings, rowWarnings...)
		if discardReason != "" {
			discardReasons = append(discardReasons, discardReason)
			continue
		}
		points = append(points, point)
	}

	if len(points) == 0 {
		return nil, discardReasons, importer.NewBadInput("no valid weather rows found")
	}
	if len(discardReasons) > 0 {
		warnings = append(warnings, discardReasons...)
		warnings = append(warnings, fmt.Sprintf(
			"weather import: %d rows skipped due to invalid data", len(discardReasons)))
	}

	bundle = &model.Bundle{
		Session: model.Session{
			ID:            sessionID,
			Source:        model.SourceWeather,
			TrackID:       "unknown",
			SchemaVersion: model.SchemaVersion,
		},
		Weather: points,
	}
	return bundle, warnings, nil
}

//nolint:funlen,gocognit,gocyclo // per-field policies are flat and explicit
func processRow(
	tbl *sniff.Table, row, rowNum int, sessionID string,
	resolved map[string]resolvedField,
) (point *model.Weather, warnings []string, discardReason string) {
	tsInfo := resolved["ts"]
	tsRaw := parse.CleanString(tbl.Get(row, tsInfo.header))
	tsValue := parse.Float(tsRaw)
	if tsValue == nil || *tsValue < 0 {
		return nil, nil, fmt.Sprintf("row %d: missing/invalid timestamp", rowNum)
	}
	var tsMS int64
	if tsInfo.conversion == convSecondsToMS {
		tsMS = int64(*tsValue * 1000)
	} else {
		tsMS = int64(*tsValue)
	}

	point = &model.Weather{SessionID: sessionID, TsMS: tsMS}
	validFields := 0

	aliasWarning := func(canonical string) {
		info := resolved[canonical]
		if info.aliasUsed {
			display := canonical
			if d, ok := displayName[canonical]; ok {
				display = d
			}
			warnings = append(warnings,
				fmt.Sprintf("row %d: alias_used: %s→%s", rowNum, info.header, display))
		}
	}

	// primary trio: values are stored even when out of range, with a warning
	if info, ok := resolved["temp"]; ok {
		raw := stripInlineComment(parse.CleanString(tbl.Get(row, info.header)))
		if v := parse.Float(raw); v != nil {
			point.AirTempC = v
			validFields++
			if *v < -30 || *v > 60 {
				warnings = append(warnings,
					fmt.Sprintf("row %d: out-of-range temp %vC", rowNum, *v))
			}
		} else {
			warnings = append(warnings, fmt.Sprintf("row %d: invalid temp value", rowNum))
		}
		aliasWarning("temp")
	}
	if info, ok := resolved["wind"]; ok {
		raw := stripInlineComment(parse.CleanString(tbl.Get(row, info.header)))
		if v := parse.Float(raw); v != nil {
			wind := *v
			switch info.conversion {
			case convMphToKph:
				wind *= 1.60934
			case convMpsToKph:
				wind *= 3.6
			}
			point.WindSpeed = &wind
			validFields++
			if wind < 0 {
				warnings = append(warnings,
					fmt.Sprintf("row %d: out-of-range wind %.0fkph (negative)", rowNum, wind))
			} else if wind > 250 {
				warnings = append(warnings,
					fmt.Sprintf("row %d: out-of-range wind %.0fkph", rowNum, wind))
			}
		} else {
			warnings = append(warnings, fmt.Sprintf("row %d: invalid wind value", rowNum))
		}
		aliasWarning("wind")
	}
	if info, ok := resolved["humidity"]; ok {
		raw := stripInlineComment(parse.CleanString(tbl.Get(row, info.header)))
		if v := parse.Float(raw); v != nil {
			point.HumidityPct = v
			validFields++
			if *v < 0 || *v > 100 {
				warnings = append(warnings,
					fmt.Sprintf("row %d: out-of-range humidity %v%%", rowNum, *v))
			}
		} else {
			warnings = append(warnings, fmt.Sprintf("row %d: invalid humidity value", rowNum))
		}
		aliasWarning("humidity")
	}

	// secondary fields store only in range
	if info, ok := resolved["track_temp"]; ok {
		raw := parse.CleanString(tbl.Get(row, info.header))
		if v := parse.Float(raw); v != nil {
			if *v >= -50 && *v <= 80 {
				point.TrackTempC = v
				validFields++
			} else {
				warnings = append(warnings, fmt.Sprintf(
					"Row %d: Track temperature %v°C outside reasonable range", rowNum, *v))
			}
		} else if raw != "" {
			warnings = append(warnings, fmt.Sprintf("row %d: invalid track_temp value", rowNum))
		}
		aliasWarning("track_temp")
	}
	if info, ok := resolved["pressure"]; ok {
		raw := parse.CleanString(tbl.Get(row, info.header))
		if v := parse.Float(raw); v != nil {
			if *v >= 800 && *v <= 1200 {
				point.PressureHPA = v
				validFields++
			} else {
				warnings = append(warnings, fmt.Sprintf(
					"Row %d: Pressure %v hPa outside reasonable range", rowNum, *v))
			}
		} else if raw != "" {
			warnings = append(warnings, fmt.Sprintf("row %d: invalid pressure value", rowNum))
		}
		aliasWarning("pressure")
	}
	if info, ok := resolved["wind_dir"]; ok {
		raw := parse.CleanString(tbl.Get(row, info.header))
		if v := parse.Float(raw); v != nil {
			if *v >= 0 && *v <= 360 {
				point.WindDirDeg = v
				validFields++
			} else {
				warnings = append(warnings, fmt.Sprintf(
					"Row %d: Wind direction %v° outside 0-360° range", rowNum, *v))
			}
		} else if raw != "" {
			warnings = append(warnings, fmt.Sprintf("row %d: invalid wind direction value", rowNum))
		}
		aliasWarning("wind_dir")
	}
	if info, ok := resolved["rain"]; ok {
		raw := parse.CleanString(tbl.Get(row, info.header))
		if v := parse.Int(raw); v != nil {
			if *v == 0 || *v == 1 {
				point.RainFlag = v
				validFields++
			} else {
				warnings = append(warnings, fmt.Sprintf(
					"Row %d: Rain flag should be 0 or 1, got %d", rowNum, *v))
			}
		} else if raw != "" {
			warnings = append(warnings, fmt.Sprintf("row %d: invalid rain flag value", rowNum))
		}
		aliasWarning("rain")
	}

	if validFields == 0 {
		return nil, warnings, fmt.Sprintf("row %d: no valid weather fields", rowNum)
	}
	return point, warnings, ""
}
