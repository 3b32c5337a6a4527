package trdlong

import (
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/mpapenbr/trackdata-manager-go/pkg/importer/parse"
	"github.com/mpapenbr/trackdata-manager-go/pkg/importer/sniff"
)

// Report is the diagnostic view of a long-format telemetry file.
type Report struct {
	RecognizedChannels    []string `json:"recognized_channels"`
	MissingExpected       []string `json:"missing_expected"`
	UnrecognizedNames     []string `json:"unrecognized_names"`
	RowsTotal             int      `json:"rows_total"`
	TimestampCount        int      `json:"timestamps"`
	MinFieldsPerTimestamp int      `json:"min_fields_per_ts"`
}

const maxUnrecognized = 20

func allPivotChannels() []string {
	channels := lo.Keys(pivotMap)
	sort.Strings(channels)
	return channels
}

// Inspect produces read-only diagnostics for a long-format CSV. It never
// fails: undecodable or header-less input yields a report with all pivot
// channels missing and zero counts.
func Inspect(data []byte) Report {
	tbl, err := sniff.ReadTable(data)
	if err != nil || tbl.Len() == 0 {
		return Report{
			RecognizedChannels: []string{},
			MissingExpected:    allPivotChannels(),
			UnrecognizedNames:  []string{},
		}
	}
	cols, missing := resolveColumns(tbl.Headers)
	if len(missing) > 0 {
		return Report{
			RecognizedChannels: []string{},
			MissingExpected:    allPivotChannels(),
			UnrecognizedNames:  []string{},
			RowsTotal:          tbl.Len(),
		}
	}

	names := map[string]struct{}{}
	timestamps := map[int64]struct{}{}
	countsPerTS := map[int64]int{}

	for i := 0; i < tbl.Len(); i++ {
		tsRaw := parse.CleanString(tbl.Get(i, cols.ts))
		if tsRaw == "" {
			continue
		}
		// diagnostics tolerate both integer and ISO timestamps regardless of
		// the column name, unlike the strict importer
		ts, err := parse.ISOToMS(tsRaw)
		if err != nil {
			ts, err = strconv.ParseInt(tsRaw, 10, 64)
			if err != nil {
				continue
			}
		}
		timestamps[ts] = struct{}{}

		name := parse.CleanString(tbl.Get(i, cols.name))
		if name == "" {
			continue
		}
		if canonical, ok := synonyms[strings.ToLower(name)]; ok {
			name = canonical
		}
		names[name] = struct{}{}
		countsPerTS[ts]++
	}

	recognized := lo.Filter(lo.Keys(names), func(name string, _ int) bool {
		_, ok := pivotMap[name]
		return ok
	})
	sort.Strings(recognized)
	missingExpected := lo.Filter(allPivotChannels(), func(name string, _ int) bool {
		_, seen := names[name]
		return !seen
	})
	unrecognized := lo.Filter(lo.Keys(names), func(name string, _ int) bool {
		_, ok := pivotMap[name]
		return !ok
	})
	sort.Strings(unrecognized)
	if len(unrecognized) > maxUnrecognized {
		unrecognized = unrecognized[:maxUnrecognized]
	}

	minFields := 0
	if len(countsPerTS) > 0 {
		minFields = lo.Min(lo.Values(countsPerTS))
	}
	return Report{
		RecognizedChannels:    recognized,
		MissingExpected:       missingExpected,
		UnrecognizedNames:     unrecognized,
		RowsTotal:             tbl.Len(),
		TimestampCount:        len(timestamps),
		MinFieldsPerTimestamp: minFields,
	}
}
