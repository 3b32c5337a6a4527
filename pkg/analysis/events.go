package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"

	"github.com/mpapenbr/trackdata-manager-go/pkg/model"
)

// Kind tags the event union.
type Kind string

const (
	KindLapOutlier     Kind = "lap_outlier"
	KindSectionOutlier Kind = "section_outlier"
	KindPositionChange Kind = "position_change"
)

// kindOrder breaks ranking ties between event kinds.
var kindOrder = map[Kind]int{
	KindLapOutlier:     0,
	KindSectionOutlier: 1,
	KindPositionChange: 2,
}

// Detection thresholds and severity scales.
const (
	lapOutlierThreshold     = 2.5
	sectionOutlierThreshold = 2.8
	minSamples              = 3
	positionWindow          = 3
)

// Event is a detected anomaly. Consumers type-switch on the concrete type for
// kind-specific fields.
type Event interface {
	Kind() Kind
	Severity() float64
	LapNo() int
	Summary() string
}

// LapOutlier marks a laptime far from the driver's median.
type LapOutlier struct {
	Driver    string
	LapNo_    int
	LaptimeMS int64
	MedianMS  float64
	RobustZ   float64
}

func (e *LapOutlier) Kind() Kind        { return KindLapOutlier }
func (e *LapOutlier) Severity() float64 { return math.Min(1, e.RobustZ/4) }
func (e *LapOutlier) LapNo() int        { return e.LapNo_ }
func (e *LapOutlier) Summary() string {
	return fmt.Sprintf("Lap %d: %d ms vs median %.0f ms (robust_z=%.2f)",
		e.LapNo_, e.LaptimeMS, e.MedianMS, e.RobustZ)
}

// SectionOutlier marks a section duration far from that section's median for
// the driver.
type SectionOutlier struct {
	Driver     string
	LapNo_     int
	Section    model.SectionName
	DurationMS int64
	MedianMS   float64
	RobustZ    float64
}

func (e *SectionOutlier) Kind() Kind        { return KindSectionOutlier }
func (e *SectionOutlier) Severity() float64 { return math.Min(1, e.RobustZ/3.5) }
func (e *SectionOutlier) LapNo() int        { return e.LapNo_ }
func (e *SectionOutlier) Summary() string {
	return fmt.Sprintf("Lap %d %s: %d ms vs med %.0f ms (z=%.2f)",
		e.LapNo_, e.Section, e.DurationMS, e.MedianMS, e.RobustZ)
}

// PositionChange marks a gained or lost position between consecutive laps.
// Delta is negative when overtaking.
type PositionChange struct {
	Driver       string
	LapNo_       int
	PrevPos      int
	CurrPos      int
	Delta        int
	WindowSumAbs int
	WindowSize   int
}

func (e *PositionChange) Kind() Kind        { return KindPositionChange }
func (e *PositionChange) Severity() float64 { return math.Min(1, math.Abs(float64(e.Delta))/5) }
func (e *PositionChange) LapNo() int        { return e.LapNo_ }
func (e *PositionChange) Summary() string {
	return fmt.Sprintf("Position change %+d on lap %d", e.Delta, e.LapNo_)
}

// DetectLapOutliers scores each driver's laptimes against that driver's own
// distribution. Drivers with fewer than three valid laps are skipped.
func DetectLapOutliers(bundle *model.Bundle) []Event {
	byDriver := lo.GroupBy(
		lo.Filter(bundle.Laps, func(l *model.Lap, _ int) bool { return l.LaptimeMS > 0 }),
		func(l *model.Lap) string { return l.Driver })

	var events []Event
	for _, driver := range sortedKeys(byDriver) {
		laps := byDriver[driver]
		if len(laps) < minSamples {
			continue
		}
		times := lo.Map(laps, func(l *model.Lap, _ int) float64 { return float64(l.LaptimeMS) })
		median, mad := RobustStats(times)
		for _, lap := range laps {
			z := RobustZ(float64(lap.LaptimeMS), median, mad)
			if z < lapOutlierThreshold {
				continue
			}
			events = append(events, &LapOutlier{
				Driver:    driver,
				LapNo_:    lap.LapNo,
				LaptimeMS: lap.LaptimeMS,
				MedianMS:  median,
				RobustZ:   z,
			})
		}
	}
	return events
}

// DetectSectionOutliers scores section durations per (driver, section name)
// pair. Sections are attributed to drivers through the lap table.
func DetectSectionOutliers(bundle *model.Bundle) []Event {
	lapDriver := map[int]string{}
	for _, lap := range bundle.Laps {
		lapDriver[lap.LapNo] = lap.Driver
	}

	type groupKey struct {
		driver string
		name   model.SectionName
	}
	groups := map[groupKey][]*model.Section{}
	var order []groupKey
	for _, section := range bundle.Sections {
		if !section.Name.Valid() || section.TEndMS <= section.TStartMS {
			continue
		}
		driver, ok := lapDriver[section.LapNo]
		if !ok {
			continue
		}
		key := groupKey{driver, section.Name}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], section)
	}

	var events []Event
	for _, key := range order {
		sections := groups[key]
		if len(sections) < minSamples {
			continue
		}
		durations := lo.Map(sections, func(s *model.Section, _ int) float64 {
			return float64(s.TEndMS - s.TStartMS)
		})
		median, mad := RobustStats(durations)
		for _, section := range sections {
			duration := section.TEndMS - section.TStartMS
			z := RobustZ(float64(duration), median, mad)
			if z < sectionOutlierThreshold {
				continue
			}
			events = append(events, &SectionOutlier{
				Driver:     key.driver,
				LapNo_:     section.LapNo,
				Section:    section.Name,
				DurationMS: duration,
				MedianMS:   median,
				RobustZ:    z,
			})
		}
	}
	return events
}

// DetectPositionChanges compares positions of consecutive laps per driver and
// records a short sliding-window net movement alongside each change. Multiple
// changes for the same (driver, lap) collapse to the strongest.
//
//nolint:funlen // windowing plus dedupe reads best in one piece
func DetectPositionChanges(bundle *model.Bundle) []Event {
	byDriver := lo.GroupBy(
		lo.Filter(bundle.Laps, func(l *model.Lap, _ int) bool { return l.Position != nil }),
		func(l *model.Lap) string { return l.Driver })

	type dedupeKey struct {
		driver string
		lapNo  int
	}
	best := map[dedupeKey]*PositionChange{}
	var order []dedupeKey

	for _, driver := range sortedKeys(byDriver) {
		laps := byDriver[driver]
		if len(laps) < 2 {
			continue
		}
		sort.Slice(laps, func(i, j int) bool { return laps[i].LapNo < laps[j].LapNo })

		for i := 1; i < len(laps); i++ {
			delta := *laps[i].Position - *laps[i-1].Position
			if delta == 0 {
				continue
			}
			windowStart := max(0, i-(positionWindow-1))
			window := laps[windowStart : i+1]
			windowSum := 0
			for j := 1; j < len(window); j++ {
				windowSum += *window[j].Position - *window[j-1].Position
			}
			event := &PositionChange{
				Driver:       driver,
				LapNo_:       laps[i].LapNo,
				PrevPos:      *laps[i-1].Position,
				CurrPos:      *laps[i].Position,
				Delta:        delta,
				WindowSumAbs: abs(windowSum),
				WindowSize:   len(window),
			}
			key := dedupeKey{driver, event.LapNo_}
			current, seen := best[key]
			if !seen {
				best[key] = event
				order = append(order, key)
				continue
			}
			if event.Severity() > current.Severity() ||
				(math.Abs(event.Severity()-current.Severity()) < 1e-10 &&
					event.WindowSumAbs > current.WindowSumAbs) {
				best[key] = event
			}
		}
	}

	events := make([]Event, 0, len(best))
	for _, key := range order {
		events = append(events, best[key])
	}
	return events
}

// Detect runs all detectors over the bundle.
func Detect(bundle *model.Bundle) []Event {
	var events []Event
	events = append(events, DetectLapOutliers(bundle)...)
	events = append(events, DetectSectionOutliers(bundle)...)
	events = append(events, DetectPositionChanges(bundle)...)
	return events
}

// Top ranks all detected events by severity, then recency (higher lap first),
// then kind, deduplicates per (lap, kind) and returns at most n.
func Top(bundle *model.Bundle, n int) []Event {
	events := Detect(bundle)
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Severity() != events[j].Severity() {
			return events[i].Severity() > events[j].Severity()
		}
		if events[i].LapNo() != events[j].LapNo() {
			return events[i].LapNo() > events[j].LapNo()
		}
		return kindOrder[events[i].Kind()] < kindOrder[events[j].Kind()]
	})

	type dedupeKey struct {
		lapNo int
		kind  Kind
	}
	seen := map[dedupeKey]bool{}
	var top []Event
	for _, event := range events {
		key := dedupeKey{event.LapNo(), event.Kind()}
		if seen[key] {
			continue
		}
		seen[key] = true
		top = append(top, event)
		if len(top) >= n {
			break
		}
	}
	return top
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
