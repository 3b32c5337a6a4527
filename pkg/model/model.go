package model

import "time"

// SchemaVersion is the version of the canonical session schema.
const SchemaVersion = "0.1.2"

// Session describes one racing session. Source is fixed when the session is
// created by the first ingest and never overwritten by later merges.
type Session struct {
	ID              string     `json:"id"`
	Source          Source     `json:"source"`
	Track           string     `json:"track,omitempty"`
	TrackID         string     `json:"track_id"`
	TrackMapVersion string     `json:"track_map_version,omitempty"`
	StartTS         *time.Time `json:"start_ts,omitempty"`
	EndTS           *time.Time `json:"end_ts,omitempty"`
	SchemaVersion   string     `json:"schema_version"`
}

// Lap is uniquely identified by (LapNo, Driver) within a session.
type Lap struct {
	SessionID string     `json:"session_id"`
	LapNo     int        `json:"lap_no"`
	Driver    string     `json:"driver"`
	LaptimeMS int64      `json:"laptime_ms"`
	StartTS   *time.Time `json:"start_ts,omitempty"`
	EndTS     *time.Time `json:"end_ts,omitempty"`
	Position  *int       `json:"position,omitempty"`
}

// Section is one timing segment of a lap. TStartMS/TEndMS are elapsed
// milliseconds from lap start; within one importer batch consecutive sections
// chain (TStartMS equals the previous section's TEndMS, zero-based).
type Section struct {
	SessionID string            `json:"session_id"`
	LapNo     int               `json:"lap_no"`
	Name      SectionName       `json:"name"`
	TStartMS  int64             `json:"t_start_ms"`
	TEndMS    int64             `json:"t_end_ms"`
	DeltaMS   *int64            `json:"delta_ms,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Telemetry is one wide per-timestamp sample. All channels are optional;
// nil means absent. Samples within 1 ms of each other are the same entity.
type Telemetry struct {
	SessionID   string   `json:"session_id"`
	TsMS        int64    `json:"ts_ms"`
	SpeedKPH    *float64 `json:"speed_kph,omitempty"`
	ThrottlePct *float64 `json:"throttle_pct,omitempty"`
	BrakeBar    *float64 `json:"brake_bar,omitempty"`
	Gear        *int     `json:"gear,omitempty"`
	AccLongG    *float64 `json:"acc_long_g,omitempty"`
	AccLatG     *float64 `json:"acc_lat_g,omitempty"`
	SteerDeg    *float64 `json:"steer_deg,omitempty"`
	LatDeg      *float64 `json:"lat_deg,omitempty"`
	LonDeg      *float64 `json:"lon_deg,omitempty"`
}

// TelemetryChannels lists the numeric channel names of a Telemetry sample in
// wire vocabulary order.
var TelemetryChannels = []string{
	"speed_kph", "throttle_pct", "brake_bar", "gear",
	"acc_long_g", "acc_lat_g", "steer_deg", "lat_deg", "lon_deg",
}

// PopulatedFields counts the non-absent channels of the sample.
func (t *Telemetry) PopulatedFields() int {
	count := 0
	for _, name := range TelemetryChannels {
		if name == "gear" {
			if t.Gear != nil {
				count++
			}
			continue
		}
		if t.NumericChannel(name) != nil {
			count++
		}
	}
	return count
}

// NumericChannel returns the float channel with the given wire name, nil when
// the channel is absent or not a float channel (gear).
func (t *Telemetry) NumericChannel(name string) *float64 {
	switch name {
	case "speed_kph":
		return t.SpeedKPH
	case "throttle_pct":
		return t.ThrottlePct
	case "brake_bar":
		return t.BrakeBar
	case "acc_long_g":
		return t.AccLongG
	case "acc_lat_g":
		return t.AccLatG
	case "steer_deg":
		return t.SteerDeg
	case "lat_deg":
		return t.LatDeg
	case "lon_deg":
		return t.LonDeg
	default:
		return nil
	}
}

// Weather is one weather sample, keyed like Telemetry by (SessionID, TsMS)
// with the same 1 ms identity window.
type Weather struct {
	SessionID   string   `json:"session_id"`
	TsMS        int64    `json:"ts_ms"`
	AirTempC    *float64 `json:"air_temp_c,omitempty"`
	TrackTempC  *float64 `json:"track_temp_c,omitempty"`
	HumidityPct *float64 `json:"humidity_pct,omitempty"`
	PressureHPA *float64 `json:"pressure_hpa,omitempty"`
	WindSpeed   *float64 `json:"wind_speed,omitempty"`
	WindDirDeg  *float64 `json:"wind_dir_deg,omitempty"`
	RainFlag    *int     `json:"rain_flag,omitempty"`
}

// Bundle holds all data of one session. It acts both as the normalized batch
// produced by an importer call and as the per-session aggregate in the store.
type Bundle struct {
	Session   Session      `json:"session"`
	Laps      []*Lap       `json:"laps"`
	Sections  []*Section   `json:"sections"`
	Telemetry []*Telemetry `json:"telemetry"`
	Weather   []*Weather   `json:"weather"`
}

func (l *Lap) Clone() *Lap {
	c := *l
	c.StartTS = cloneTime(l.StartTS)
	c.EndTS = cloneTime(l.EndTS)
	c.Position = cloneInt(l.Position)
	return &c
}

func (s *Section) Clone() *Section {
	c := *s
	c.DeltaMS = cloneInt64(s.DeltaMS)
	if s.Meta != nil {
		c.Meta = make(map[string]string, len(s.Meta))
		for k, v := range s.Meta {
			c.Meta[k] = v
		}
	}
	return &c
}

func (t *Telemetry) Clone() *Telemetry {
	c := *t
	c.SpeedKPH = cloneFloat(t.SpeedKPH)
	c.ThrottlePct = cloneFloat(t.ThrottlePct)
	c.BrakeBar = cloneFloat(t.BrakeBar)
	c.Gear = cloneInt(t.Gear)
	c.AccLongG = cloneFloat(t.AccLongG)
	c.AccLatG = cloneFloat(t.AccLatG)
	c.SteerDeg = cloneFloat(t.SteerDeg)
	c.LatDeg = cloneFloat(t.LatDeg)
	c.LonDeg = cloneFloat(t.LonDeg)
	return &c
}

func (w *Weather) Clone() *Weather {
	c := *w
	c.AirTempC = cloneFloat(w.AirTempC)
	c.TrackTempC = cloneFloat(w.TrackTempC)
	c.HumidityPct = cloneFloat(w.HumidityPct)
	c.PressureHPA = cloneFloat(w.PressureHPA)
	c.WindSpeed = cloneFloat(w.WindSpeed)
	c.WindDirDeg = cloneFloat(w.WindDirDeg)
	c.RainFlag = cloneInt(w.RainFlag)
	return &c
}

func (s *Session) Clone() Session {
	c := *s
	c.StartTS = cloneTime(s.StartTS)
	c.EndTS = cloneTime(s.EndTS)
	return c
}

// Clone creates a deep copy of the bundle.
func (b *Bundle) Clone() *Bundle {
	c := &Bundle{Session: b.Session.Clone()}
	for _, l := range b.Laps {
		c.Laps = append(c.Laps, l.Clone())
	}
	for _, s := range b.Sections {
		c.Sections = append(c.Sections, s.Clone())
	}
	for _, t := range b.Telemetry {
		c.Telemetry = append(c.Telemetry, t.Clone())
	}
	for _, w := range b.Weather {
		c.Weather = append(c.Weather, w.Clone())
	}
	return c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
