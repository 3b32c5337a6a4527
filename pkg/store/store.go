// Package store holds the per-session aggregates and merges normalized
// importer batches into them with source-precedence conflict resolution.
package store

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mpapenbr/trackdata-manager-go/log"
	"github.com/mpapenbr/trackdata-manager-go/pkg/model"
)

var ErrSessionNotFound = errors.New("session not found")

// Provenance records which source contributed a stored entity and when. It
// lives in a side table keyed by entity pointer, never on the entity itself.
type Provenance struct {
	Source       model.Source
	IngestedAtMS int64
}

// Counts reports how many entities a merge added or updated. Updated counts
// increment only when the merge actually changed stored state, so re-ingesting
// identical input reports all zeros.
type Counts struct {
	SessionsAdded    int `json:"sessions_added"`
	SessionsUpdated  int `json:"sessions_updated"`
	LapsAdded        int `json:"laps_added"`
	LapsUpdated      int `json:"laps_updated"`
	SectionsAdded    int `json:"sections_added"`
	SectionsUpdated  int `json:"sections_updated"`
	TelemetryAdded   int `json:"telemetry_added"`
	TelemetryUpdated int `json:"telemetry_updated"`
	WeatherAdded     int `json:"weather_added"`
	WeatherUpdated   int `json:"weather_updated"`
}

// Add sums the other counts into c.
func (c *Counts) Add(other Counts) {
	c.SessionsAdded += other.SessionsAdded
	c.SessionsUpdated += other.SessionsUpdated
	c.LapsAdded += other.LapsAdded
	c.LapsUpdated += other.LapsUpdated
	c.SectionsAdded += other.SectionsAdded
	c.SectionsUpdated += other.SectionsUpdated
	c.TelemetryAdded += other.TelemetryAdded
	c.TelemetryUpdated += other.TelemetryUpdated
	c.WeatherAdded += other.WeatherAdded
	c.WeatherUpdated += other.WeatherUpdated
}

type sessionState struct {
	bundle     *model.Bundle
	provenance map[any]Provenance
}

// Store is the in-memory session table. One mutex guards the whole table so
// each merge applies all-or-nothing.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
	clock    func() time.Time
	logger   *log.Logger
}

type Option func(*Store)

// WithClock overrides the provenance timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func New(opts ...Option) *Store {
	ret := &Store{
		sessions: map[string]*sessionState{},
		clock:    time.Now,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Clear empties the session table.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = map[string]*sessionState{}
}

// SessionIDs returns the known session ids, sorted.
func (s *Store) SessionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Bundle returns a deep copy of the session's aggregate.
func (s *Store) Bundle(sessionID string) (*model.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return state.bundle.Clone(), nil
}

// Merge applies one normalized batch to the session aggregate, creating the
// session on first contact. It returns per-entity counts and conflict
// warnings.
func (s *Store) Merge(
	sessionID string, batch *model.Bundle, src model.Source,
) (Counts, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counts Counts
	var warnings []string

	state, ok := s.sessions[sessionID]
	if !ok {
		session := batch.Session.Clone()
		session.ID = sessionID
		state = &sessionState{
			bundle:     &model.Bundle{Session: session},
			provenance: map[any]Provenance{},
		}
		s.sessions[sessionID] = state
		counts.SessionsAdded = 1
	} else if mergeSessionFields(&state.bundle.Session, &batch.Session) {
		counts.SessionsUpdated = 1
	}

	s.mergeLaps(state, batch.Laps, src, &counts, &warnings)
	s.mergeSections(state, batch.Sections, src, &counts, &warnings)
	s.mergeTelemetry(state, batch.Telemetry, src, &counts, &warnings)
	s.mergeWeather(state, batch.Weather, src, &counts, &warnings)

	s.logger.Debug("merged batch",
		log.String("sessionId", sessionID),
		log.String("source", string(src)),
		log.Int("warnings", len(warnings)),
		log.Any("counts", counts))
	return counts, warnings
}

func (s *Store) stamp(state *sessionState, entity any, src model.Source) {
	state.provenance[entity] = Provenance{
		Source:       src,
		IngestedAtMS: s.clock().UnixMilli(),
	}
}

func (s *Store) sourceOf(state *sessionState, entity any) model.Source {
	if prov, ok := state.provenance[entity]; ok {
		return prov.Source
	}
	return "unknown"
}

func (s *Store) mergeLaps(
	state *sessionState, laps []*model.Lap, src model.Source,
	counts *Counts, warnings *[]string,
) {
	type lapKey struct {
		lapNo  int
		driver string
	}
	index := map[lapKey]*model.Lap{}
	for _, lap := range state.bundle.Laps {
		index[lapKey{lap.LapNo, lap.Driver}] = lap
	}

	for _, incoming := range laps {
		key := lapKey{incoming.LapNo, incoming.Driver}
		stored, ok := index[key]
		if !ok {
			clone := incoming.Clone()
			state.bundle.Laps = append(state.bundle.Laps, clone)
			index[key] = clone
			s.stamp(state, clone, src)
			counts.LapsAdded++
			continue
		}
		storedSrc := s.sourceOf(state, stored)
		if rank(src, lapPrecedence) > rank(storedSrc, lapPrecedence) {
			*warnings = append(*warnings, fmt.Sprintf(
				"Lap %d driver %s: keeping data from higher precedence source %s",
				incoming.LapNo, incoming.Driver, storedSrc))
			continue
		}
		if mergeLapFields(stored, incoming) {
			counts.LapsUpdated++
		}
	}
}

func (s *Store) mergeSections(
	state *sessionState, sections []*model.Section, src model.Source,
	counts *Counts, warnings *[]string,
) {
	for _, incoming := range sections {
		var stored *model.Section
		for _, candidate := range state.bundle.Sections {
			if candidate.LapNo == incoming.LapNo &&
				candidate.Name == incoming.Name &&
				abs64(candidate.TStartMS-incoming.TStartMS) <= 10 {
				stored = candidate
				break
			}
		}
		if stored == nil {
			clone := incoming.Clone()
			state.bundle.Sections = append(state.bundle.Sections, clone)
			s.stamp(state, clone, src)
			counts.SectionsAdded++
			continue
		}
		// survey-derived boundaries beat timing boundaries
		mapOverride := incoming.Meta["source"] == "map" &&
			stored.Meta["source"] != "map"
		storedSrc := s.sourceOf(state, stored)
		if !mapOverride &&
			rank(src, sectionPrecedence) > rank(storedSrc, sectionPrecedence) {
			*warnings = append(*warnings, fmt.Sprintf(
				"Section %s lap %d: keeping data from higher precedence source %s",
				incoming.Name, incoming.LapNo, storedSrc))
			continue
		}
		if mergeSectionFields(stored, incoming) {
			counts.SectionsUpdated++
		}
	}
}

func (s *Store) mergeTelemetry(
	state *sessionState, telemetry []*model.Telemetry, src model.Source,
	counts *Counts, warnings *[]string,
) {
	for _, incoming := range telemetry {
		stored := bestTelemetryMatch(state.bundle.Telemetry, incoming)
		if stored == nil {
			clone := incoming.Clone()
			state.bundle.Telemetry = append(state.bundle.Telemetry, clone)
			s.stamp(state, clone, src)
			counts.TelemetryAdded++
			continue
		}
		storedSrc := s.sourceOf(state, stored)
		srcRank, storedRank := rank(src, telemetryPrecedence), rank(storedSrc, telemetryPrecedence)
		switch {
		case srcRank < storedRank:
			clone := incoming.Clone()
			for i, candidate := range state.bundle.Telemetry {
				if candidate == stored {
					state.bundle.Telemetry[i] = clone
					break
				}
			}
			delete(state.provenance, stored)
			s.stamp(state, clone, src)
			counts.TelemetryUpdated++
		case srcRank == storedRank:
			if mergeTelemetryFields(stored, incoming) {
				counts.TelemetryUpdated++
			}
		default:
			if conflicts := telemetryConflicts(stored, incoming); len(conflicts) > 0 {
				*warnings = append(*warnings, fmt.Sprintf(
					"Telemetry at %dms: conflicts in %s - keeping %s",
					incoming.TsMS, strings.Join(conflicts, ", "), storedSrc))
			}
		}
	}
}

func (s *Store) mergeWeather(
	state *sessionState, weather []*model.Weather, src model.Source,
	counts *Counts, warnings *[]string,
) {
	for _, incoming := range weather {
		var stored *model.Weather
		for _, candidate := range state.bundle.Weather {
			if abs64(candidate.TsMS-incoming.TsMS) <= 1 {
				stored = candidate
				break
			}
		}
		if stored == nil {
			clone := incoming.Clone()
			state.bundle.Weather = append(state.bundle.Weather, clone)
			s.stamp(state, clone, src)
			counts.WeatherAdded++
			continue
		}
		storedSrc := s.sourceOf(state, stored)
		if rank(src, weatherPrecedence) > rank(storedSrc, weatherPrecedence) {
			*warnings = append(*warnings, fmt.Sprintf(
				"Weather at %dms: keeping data from higher precedence source %s",
				incoming.TsMS, storedSrc))
			continue
		}
		if mergeWeatherFields(stored, incoming) {
			counts.WeatherUpdated++
		}
	}
}

// bestTelemetryMatch picks the stored sample within 1 ms of the incoming one,
// preferring more populated fields and then timestamp proximity.
func bestTelemetryMatch(
	stored []*model.Telemetry, incoming *model.Telemetry,
) *model.Telemetry {
	var best *model.Telemetry
	bestScore := math.MinInt
	for _, candidate := range stored {
		diff := abs64(candidate.TsMS - incoming.TsMS)
		if diff > 1 {
			continue
		}
		score := candidate.PopulatedFields()*1000 - int(diff)
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}
	return best
}

func telemetryConflicts(stored, incoming *model.Telemetry) []string {
	var conflicts []string
	for _, entry := range telemetryTolerances {
		a, b := stored.NumericChannel(entry.channel), incoming.NumericChannel(entry.channel)
		if a != nil && b != nil && math.Abs(*a-*b) > entry.tolerance {
			conflicts = append(conflicts, entry.channel)
		}
	}
	return conflicts
}

func mergeSessionFields(stored, incoming *model.Session) bool {
	changed := false
	if incoming.Track != "" && stored.Track == "" {
		stored.Track = incoming.Track
		changed = true
	}
	if incoming.TrackID != "" && (stored.TrackID == "" || stored.TrackID == "unknown") &&
		incoming.TrackID != stored.TrackID {
		stored.TrackID = incoming.TrackID
		changed = true
	}
	if incoming.TrackMapVersion != "" && stored.TrackMapVersion == "" {
		stored.TrackMapVersion = incoming.TrackMapVersion
		changed = true
	}
	if incoming.StartTS != nil && stored.StartTS == nil {
		ts := *incoming.StartTS
		stored.StartTS = &ts
		changed = true
	}
	if incoming.EndTS != nil && stored.EndTS == nil {
		ts := *incoming.EndTS
		stored.EndTS = &ts
		changed = true
	}
	return changed
}

func mergeLapFields(stored, incoming *model.Lap) bool {
	changed := false
	if incoming.StartTS != nil && stored.StartTS == nil {
		ts := *incoming.StartTS
		stored.StartTS = &ts
		changed = true
	}
	if incoming.EndTS != nil && stored.EndTS == nil {
		ts := *incoming.EndTS
		stored.EndTS = &ts
		changed = true
	}
	if incoming.Position != nil && stored.Position == nil {
		pos := *incoming.Position
		stored.Position = &pos
		changed = true
	}
	// a non-zero laptime always wins
	if incoming.LaptimeMS != 0 && incoming.LaptimeMS != stored.LaptimeMS {
		stored.LaptimeMS = incoming.LaptimeMS
		changed = true
	}
	return changed
}

func mergeSectionFields(stored, incoming *model.Section) bool {
	changed := false
	if incoming.Meta["source"] == "map" {
		if stored.TStartMS != incoming.TStartMS {
			stored.TStartMS = incoming.TStartMS
			changed = true
		}
		if stored.TEndMS != incoming.TEndMS {
			stored.TEndMS = incoming.TEndMS
			changed = true
		}
	}
	if incoming.DeltaMS != nil && stored.DeltaMS == nil {
		delta := *incoming.DeltaMS
		stored.DeltaMS = &delta
		changed = true
	}
	for key, value := range incoming.Meta {
		if stored.Meta[key] != value {
			if stored.Meta == nil {
				stored.Meta = map[string]string{}
			}
			stored.Meta[key] = value
			changed = true
		}
	}
	return changed
}

func mergeTelemetryFields(stored, incoming *model.Telemetry) bool {
	changed := false
	fill := func(dst **float64, src *float64) {
		if src != nil && *dst == nil {
			v := *src
			*dst = &v
			changed = true
		}
	}
	fill(&stored.SpeedKPH, incoming.SpeedKPH)
	fill(&stored.ThrottlePct, incoming.ThrottlePct)
	fill(&stored.BrakeBar, incoming.BrakeBar)
	fill(&stored.AccLongG, incoming.AccLongG)
	fill(&stored.AccLatG, incoming.AccLatG)
	fill(&stored.SteerDeg, incoming.SteerDeg)
	fill(&stored.LatDeg, incoming.LatDeg)
	fill(&stored.LonDeg, incoming.LonDeg)
	if incoming.Gear != nil && stored.Gear == nil {
		gear := *incoming.Gear
		stored.Gear = &gear
		changed = true
	}
	return changed
}

func mergeWeatherFields(stored, incoming *model.Weather) bool {
	changed := false
	fill := func(dst **float64, src *float64) {
		if src != nil && *dst == nil {
			v := *src
			*dst = &v
			changed = true
		}
	}
	fill(&stored.AirTempC, incoming.AirTempC)
	fill(&stored.TrackTempC, incoming.TrackTempC)
	fill(&stored.HumidityPct, incoming.HumidityPct)
	fill(&stored.PressureHPA, incoming.PressureHPA)
	fill(&stored.WindSpeed, incoming.WindSpeed)
	fill(&stored.WindDirDeg, incoming.WindDirDeg)
	if incoming.RainFlag != nil && stored.RainFlag == nil {
		flag := *incoming.RainFlag
		stored.RainFlag = &flag
		changed = true
	}
	return changed
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
