// Package trdlong imports TRD long-format telemetry: repeated
// (timestamp, channel, value) rows pivoted into wide per-timestamp samples.
package trdlong

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/mpapenbr/trackdata-manager-go/pkg/importer"
	"github.com/mpapenbr/trackdata-manager-go/pkg/importer/parse"
	"github.com/mpapenbr/trackdata-manager-go/pkg/importer/sniff"
	"github.com/mpapenbr/trackdata-manager-go/pkg/model"
)

// pivotMap maps raw channel names to canonical sample fields.
var pivotMap = map[string]string{
	"speed":             "speed_kph",
	"aps":               "throttle_pct",
	"pbrake_f":          "brake_bar",
	"pbrake_r":          "brake_bar", // fallback when pbrake_f is absent
	"gear":              "gear",
	"accx_can":          "acc_long_g",
	"accy_can":          "acc_lat_g",
	"Steering_Angle":    "steer_deg",
	"VBOX_Lat_Min":      "lat_deg",
	"VBOX_Long_Minutes": "lon_deg",
}

// synonyms normalizes case/spelling variants before the pivot map lookup.
var synonyms = map[string]string{
	"vbox_long_min":  "VBOX_Long_Minutes",
	"steering_angle": "Steering_Angle",
}

type fieldPolicy struct {
	min, max float64
	clamp    bool // clamp into range instead of rejecting as outlier
	integer  bool // truncate via float ("6.0" -> 6)
}

var policies = map[string]fieldPolicy{
	"speed_kph":    {min: 0, max: 350},
	"throttle_pct": {min: 0, max: 100, clamp: true},
	"brake_bar":    {min: 0, max: 200},
	"gear":         {min: 0, max: 10, integer: true},
	"acc_long_g":   {min: -10, max: 10},
	"acc_lat_g":    {min: -10, max: 10},
	"steer_deg":    {min: -720, max: 720},
	"lat_deg":      {min: -90, max: 90},
	"lon_deg":      {min: -180, max: 180},
}

// minPopulatedFields is the row acceptance gate: a pivoted record survives
// only with at least this many populated fields.
const minPopulatedFields = 5

var (
	tsAliases    = []string{"ts_ms", "timestamp_ms", "timestamp", "meta_time", "time_ms"}
	nameAliases  = []string{"name", "telemetry_name", "channel", "signal"}
	valueAliases = []string{"value", "telemetry_value", "val"}
	// timestamp columns with these names parse as integer milliseconds,
	// the others as ISO-8601
	integerTSNames = []string{"ts_ms", "timestamp_ms", "time_ms"}
)

const headerErrReason = "required headers not found. " +
	"Expected: ts_ms,name,value or timestamp,telemetry_name,telemetry_value"

// brakeFallback keys pbrake_r values so they only feed brake_bar when no
// pbrake_f value exists at the same timestamp.
const brakeFallback = "brake_bar\x00r"

type columns struct {
	ts, name, value string
	tsLower         string
}

func resolveColumns(headers []string) (columns, []string) {
	var cols columns
	match := func(header string, aliases []string) bool {
		lower := strings.ToLower(strings.TrimSpace(header))
		return lo.Contains(aliases, lower)
	}
	for _, h := range headers {
		switch {
		case cols.ts == "" && match(h, tsAliases):
			cols.ts = h
		case cols.name == "" && match(h, nameAliases):
			cols.name = h
		case cols.value == "" && match(h, valueAliases):
			cols.value = h
		}
	}
	// second chance for the vendor trio spelling
	if cols.ts == "" || cols.name == "" || cols.value == "" {
		for _, h := range headers {
			switch {
			case cols.ts == "" && match(h, []string{"timestamp", "meta_time"}):
				cols.ts = h
			case cols.name == "" && match(h, []string{"telemetry_name"}):
				cols.name = h
			case cols.value == "" && match(h, []string{"telemetry_value"}):
				cols.value = h
			}
		}
	}
	var missing []string
	if cols.ts == "" {
		missing = append(missing, "ts_ms")
	}
	if cols.name == "" {
		missing = append(missing, "name")
	}
	if cols.value == "" {
		missing = append(missing, "value")
	}
	cols.tsLower = strings.ToLower(strings.TrimSpace(cols.ts))
	return cols, missing
}

// processValue parses and validates one raw channel value. A nil value with
// outlier=false is simply absent (empty, nan, unparseable); outlier=true
// means the value parsed but violated its declared range.
func processValue(field, raw string) (value *float64, outlier bool) {
	f := parse.Float(raw)
	if f == nil {
		return nil, false
	}
	policy, ok := policies[field]
	if !ok {
		return nil, false
	}
	v := *f
	if policy.integer {
		v = float64(int(v))
	}
	if policy.clamp {
		v = min(max(v, policy.min), policy.max)
		return &v, false
	}
	if v < policy.min || v > policy.max {
		return nil, true
	}
	return &v, false
}

// Import parses a TRD long-format telemetry CSV into a normalized bundle.
//
//nolint:funlen,gocognit // pivot pipeline reads best as one pass
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

	cols, missing := resolveColumns(tbl.Headers)
	if len(missing) > 0 {
		return nil, nil, importer.NewInsufficientChannels(headerErrReason, missing)
	}

	parseIntTS := lo.Contains(integerTSNames, cols.tsLower)

	// raw values grouped per timestamp per field; a channel may repeat at one
	// timestamp, final value selection happens after the outlier check
	byTS := map[int64]map[string][]string{}
	unknown := map[string]struct{}{}
	recognized := map[string]struct{}{}

	for i := 0; i < tbl.Len(); i++ {
		tsRaw := parse.CleanString(tbl.Get(i, cols.ts))
		if tsRaw == "" {
			warnings = append(warnings, "Row missing timestamp, skipping")
			continue
		}
		var ts int64
		if parseIntTS {
			ts, err = strconv.ParseInt(tsRaw, 10, 64)
		} else {
			ts, err = parse.ISOToMS(tsRaw)
		}
		if err != nil {
			warnings = append(warnings,
				fmt.Sprintf("Invalid timestamp '%s': %v", tsRaw, err))
			err = nil
			continue
		}

		name := parse.CleanString(tbl.Get(i, cols.name))
		if name == "" {
			continue
		}
		if canonical, ok := synonyms[strings.ToLower(name)]; ok {
			name = canonical
		}
		field, ok := pivotMap[name]
		if !ok {
			unknown[name] = struct{}{}
			continue
		}
		recognized[name] = struct{}{}
		if name == "pbrake_r" {
			field = brakeFallback
		}
		if byTS[ts] == nil {
			byTS[ts] = map[string][]string{}
		}
		byTS[ts][field] = append(byTS[ts][field], tbl.Get(i, cols.value))
	}

	if len(unknown) > 0 {
		names := lo.Keys(unknown)
		sort.Strings(names)
		warnings = append(warnings,
			"Unknown telemetry names: "+strings.Join(names, ", "))
	}

	timestamps := lo.Keys(byTS)
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	var telemetry []*model.Telemetry
	for _, bucket := range importer.BucketTimestamps(timestamps) {
		winner, fields := pickBucketWinner(bucket, byTS)
		sample := assembleSample(sessionID, winner, fields)
		if sample.PopulatedFields() >= minPopulatedFields {
			telemetry = append(telemetry, sample)
		}
	}

	if len(telemetry) == 0 {
		missingChannels := lo.Filter(lo.Keys(pivotMap), func(name string, _ int) bool {
			_, seen := recognized[name]
			return !seen
		})
		sort.Strings(missingChannels)
		return nil, warnings, importer.NewInsufficientChannels(
			"no valid telemetry rows found", missingChannels)
	}

	bundle = &model.Bundle{
		Session: model.Session{
			ID:            sessionID,
			Source:        model.SourceTRDLong,
			TrackID:       "unknown",
			SchemaVersion: model.SchemaVersion,
		},
		Telemetry: telemetry,
	}
	return bundle, warnings, nil
}

// effectiveFields resolves the pbrake_r fallback: its values feed brake_bar
// only when no pbrake_f value exists at the timestamp.
func effectiveFields(raw map[string][]string) map[string][]string {
	fallback, hasFallback := raw[brakeFallback]
	if !hasFallback {
		return raw
	}
	fields := make(map[string][]string, len(raw))
	for k, v := range raw {
		if k != brakeFallback {
			fields[k] = v
		}
	}
	if len(fields["brake_bar"]) == 0 {
		fields["brake_bar"] = fallback
	}
	return fields
}

// pickBucketWinner keeps the timestamp whose fields yield the most
// at-least-one-valid-value entries; ties keep the earliest.
func pickBucketWinner(
	bucket []int64, byTS map[int64]map[string][]string,
) (int64, map[string][]string) {
	best := bucket[0]
	bestFields := effectiveFields(byTS[best])
	bestCount := -1
	for _, ts := range bucket {
		fields := effectiveFields(byTS[ts])
		count := 0
		for field, values := range fields {
			for _, raw := range values {
				if v, outlier := processValue(field, raw); v != nil && !outlier {
					count++
					break
				}
			}
		}
		if count > bestCount {
			bestCount = count
			best = ts
			bestFields = fields
		}
	}
	return best, bestFields
}

// assembleSample applies the any-bad-taints-all rule: if any raw value for a
// field is an outlier the field stays absent, otherwise the first parseable
// in-range value wins.
func assembleSample(sessionID string, ts int64, fields map[string][]string) *model.Telemetry {
	sample := &model.Telemetry{SessionID: sessionID, TsMS: ts}
	for field, values := range fields {
		tainted := false
		for _, raw := range values {
			if _, outlier := processValue(field, raw); outlier {
				tainted = true
				break
			}
		}
		if tainted {
			continue
		}
		for _, raw := range values {
			if v, _ := processValue(field, raw); v != nil {
				setField(sample, field, *v)
				break
			}
		}
	}
	return sample
}

func setField(t *model.Telemetry, field string, v float64) {
	switch field {
	case "speed_kph":
		t.SpeedKPH = &v
	case "throttle_pct":
		t.ThrottlePct = &v
	case "brake_bar":
		t.BrakeBar = &v
	case "gear":
		gear := int(v)
		t.Gear = &gear
	case "acc_long_g":
		t.AccLongG = &v
	case "acc_lat_g":
		t.AccLatG = &v
	case "steer_deg":
		t.SteerDeg = &v
	case "lat_deg":
		t.LatDeg = &v
	case "lon_deg":
		t.LonDeg = &v
	}
}
