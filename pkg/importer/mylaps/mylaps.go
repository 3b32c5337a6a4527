// Package mylaps imports MYLAPS analysis-with-sections sheets: one row per
// lap with per-section elapsed times resolved from freeform vendor headers.
package mylaps

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/mpapenbr/trackdata-manager-go/pkg/importer"
	"github.com/mpapenbr/trackdata-manager-go/pkg/importer/parse"
	"github.com/mpapenbr/trackdata-manager-go/pkg/importer/sniff"
	"github.com/mpapenbr/trackdata-manager-go/pkg/model"
)

// sectionPatterns keeps the header resolution policy as data: ordered
// (canonical, patterns) pairs tried in declared order. The \b after a digit
// cannot fall between two digits, so an IM10-style header never claims IM1.
var sectionPatterns = []struct {
	name     model.SectionName
	patterns []*regexp.Regexp
}{
	{model.SectionIM1a, compileAll(
		`\bIM\s*1A\b`, `\bIM1A(_TIME|_ELAPSED|_SEC|_S|_MS)?\b`, `\bS1\.?a\b`, `\bS1A\b`)},
	{model.SectionIM1, compileAll(
		`\bIM\s*1\b`, `\bIM1(_TIME|_ELAPSED|_SEC|_S|_MS)?\b`, `\bS1\b`)},
	{model.SectionIM2a, compileAll(
		`\bIM\s*2A\b`, `\bIM2A(_TIME|_ELAPSED|_SEC|_S|_MS)?\b`, `\bS2\.?a\b`, `\bS2A\b`)},
	{model.SectionIM2, compileAll(
		`\bIM\s*2\b`, `\bIM2(_TIME|_ELAPSED|_SEC|_S|_MS)?\b`, `\bS2\b`)},
	{model.SectionIM3a, compileAll(
		`\bIM\s*3A\b`, `\bIM3A(_TIME|_ELAPSED|_SEC|_S|_MS)?\b`, `\bS3\.?a\b`, `\bS3A\b`)},
	{model.SectionFL, compileAll(
		`\bFL\b`, `\bFINISH(_TIME|_ELAPSED|_SEC|_S|_MS)?\b`,
		`\bFINAL\s*LAP(_TIME|_ELAPSED|_SEC)?\b`, `\bFINAL_LAP\b`)},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	return lo.Map(patterns, func(p string, _ int) *regexp.Regexp {
		return regexp.MustCompile(`(?i)` + p)
	})
}

var lapNoAliases = []string{"LAP_NUMBER", "LAP", "LAPNO"}

const (
	driverNoHeader = "DRIVER_NUMBER"
	laptimeHeader  = "LAP_TIME"
)

// resolveHeaders maps vendor headers to canonical section names. A full
// match claims its canonical outright (duplicates warn and drop); a partial
// match claims only an unclaimed canonical.
func resolveHeaders(headers []string) (map[model.SectionName]string, []string) {
	var warnings []string
	claimed := map[model.SectionName]string{}

	for _, header := range headers {
		clean := strings.Trim(strings.TrimSpace(header), `"'`)
		for _, entry := range sectionPatterns {
			for _, pattern := range entry.patterns {
				loc := pattern.FindStringIndex(clean)
				if loc == nil {
					continue
				}
				full := loc[0] == 0 && loc[1] == len(clean)
				if full {
					if first, ok := claimed[entry.name]; ok {
						warnings = append(warnings, fmt.Sprintf(
							"Multiple headers match '%s': '%s' and '%s'. Using first.",
							entry.name, first, header))
					} else {
						claimed[entry.name] = header
					}
				} else if _, ok := claimed[entry.name]; !ok {
					claimed[entry.name] = header
				}
				break
			}
		}
	}

	missing := lo.FilterMap(model.SectionOrder, func(name model.SectionName, _ int) (string, bool) {
		_, ok := claimed[name]
		return string(name), !ok
	})
	if len(missing) > 0 {
		warnings = append(warnings,
			"Missing section headers: "+strings.Join(missing, ", "))
	}
	return claimed, warnings
}

func findHeader(headers []string, aliases []string) string {
	for _, alias := range aliases {
		for _, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), alias) {
				return h
			}
		}
	}
	return ""
}

// Import parses a MYLAPS lap/section sheet into a normalized bundle.
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

	lapNoHeader := findHeader(tbl.Headers, lapNoAliases)
	driverHeader := findHeader(tbl.Headers, []string{driverNoHeader})
	timeHeader := findHeader(tbl.Headers, []string{laptimeHeader})

	var missingCols []string
	if lapNoHeader == "" {
		missingCols = append(missingCols, "LAP_NUMBER")
	}
	if driverHeader == "" {
		missingCols = append(missingCols, driverNoHeader)
	}
	if timeHeader == "" {
		missingCols = append(missingCols, laptimeHeader)
	}
	if len(missingCols) > 0 {
		return nil, nil, importer.NewInsufficientChannels(
			"missing required columns: "+strings.Join(missingCols, ", "), missingCols)
	}

	sectionHeaders, headerWarnings := resolveHeaders(tbl.Headers)
	warnings = append(warnings, headerWarnings...)
	if len(sectionHeaders) == 0 {
		return nil, warnings, importer.NewInsufficientChannels(
			"no valid section headers found",
			lo.Map(model.SectionOrder, func(n model.SectionName, _ int) string {
				return string(n)
			}))
	}

	var laps []*model.Lap
	var sections []*model.Section

	for i := 0; i < tbl.Len(); i++ {
		rowNum := i + 1
		lapNoRaw := parse.CleanString(tbl.Get(i, lapNoHeader))
		if lapNoRaw == "" {
			warnings = append(warnings, fmt.Sprintf("Row %d: Missing LAP_NUMBER", rowNum))
			continue
		}
		lapNo := parse.Int(lapNoRaw)
		if lapNo == nil {
			warnings = append(warnings,
				fmt.Sprintf("Row %d: Invalid LAP_NUMBER '%s'", rowNum, lapNoRaw))
			continue
		}
		driverRaw := parse.CleanString(tbl.Get(i, driverHeader))
		driverNo := parse.Int(driverRaw)
		if driverNo == nil {
			warnings = append(warnings,
				fmt.Sprintf("Row %d: Invalid DRIVER_NUMBER '%s'", rowNum, driverRaw))
			continue
		}
		laptimeRaw := parse.CleanString(tbl.Get(i, timeHeader))
		if laptimeRaw == "" {
			warnings = append(warnings, fmt.Sprintf("Row %d: Missing LAP_TIME", rowNum))
			continue
		}
		laptimeMS, timeErr := parse.LaptimeToMS(laptimeRaw)
		if timeErr != nil {
			warnings = append(warnings,
				fmt.Sprintf("Invalid LAP_TIME '%s': %v", laptimeRaw, timeErr))
			continue
		}

		laps = append(laps, &model.Lap{
			SessionID: sessionID,
			LapNo:     *lapNo,
			Driver:    fmt.Sprintf("No.%d", *driverNo),
			LaptimeMS: laptimeMS,
		})

		lapSections, sectionWarnings := lapSectionsFromRow(
			tbl, i, sessionID, *lapNo, sectionHeaders)
		warnings = append(warnings, sectionWarnings...)
		sections = append(sections, lapSections...)
	}

	if len(laps) == 0 {
		return nil, warnings, importer.NewBadInput("no valid laps found")
	}

	bundle = &model.Bundle{
		Session: model.Session{
			ID:            sessionID,
			Source:        model.SourceMylaps,
			TrackID:       "unknown",
			SchemaVersion: model.SchemaVersion,
		},
		Laps:     laps,
		Sections: sections,
	}
	return bundle, warnings, nil
}

// lapSectionsFromRow emits the lap's sections in canonical order; each
// section's raw value is the elapsed time from lap start, its TStartMS the
// previous emitted section's TEndMS (zero-based).
func lapSectionsFromRow(
	tbl *sniff.Table, row int, sessionID string, lapNo int,
	sectionHeaders map[model.SectionName]string,
) ([]*model.Section, []string) {
	var sections []*model.Section
	var warnings []string
	var previousEndMS int64

	for _, name := range model.SectionOrder {
		header, ok := sectionHeaders[name]
		if !ok {
			warnings = append(warnings,
				fmt.Sprintf("Lap %d: Missing %s data", lapNo, name))
			continue
		}
		raw := parse.CleanString(tbl.Get(row, header))
		if raw == "" {
			warnings = append(warnings,
				fmt.Sprintf("Lap %d: Empty %s time", lapNo, name))
			continue
		}
		elapsedMS, err := parse.LaptimeToMS(raw)
		if err != nil {
			warnings = append(warnings,
				fmt.Sprintf("Lap %d: Invalid %s time '%s': %v", lapNo, name, raw, err))
			continue
		}
		sections = append(sections, &model.Section{
			SessionID: sessionID,
			LapNo:     lapNo,
			Name:      name,
			TStartMS:  previousEndMS,
			TEndMS:    elapsedMS,
			Meta:      map[string]string{"source": "mylaps"},
		})
		previousEndMS = elapsedMS
	}
	return sections, warnings
}
