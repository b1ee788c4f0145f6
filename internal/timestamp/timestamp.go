package timestamp

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotApplicable is returned when a source field is missing or failed.
var ErrNotApplicable = errors.New("timestamp not applicable")

const (
	baseYear       = 2000
	yearsPerDecade = 10
	unitsPerHour   = 36000
	unitsPerMinute = 600
	unitsPerSecond = 10
)

// Decode combines the four time fields of a message into a calendar time.
// timeUnits counts tenths of a second since midnight and offsetUnits is the
// offset to subtract, in the same units. The result carries no zone
// information; time.UTC is only used as a neutral location. Out of range
// values roll over instead of failing.
func Decode(timeUnits, offsetUnits, decade, day int64) time.Time {
	hours := timeUnits / unitsPerHour
	minutes := (timeUnits % unitsPerHour) / unitsPerMinute
	seconds := (timeUnits % unitsPerMinute) / unitsPerSecond
	offsetHours := offsetUnits / unitsPerHour
	offsetMinutes := (offsetUnits % unitsPerHour) / unitsPerMinute
	year := baseYear + int(decade)*yearsPerDecade
	return time.Date(year, time.January, 1+int(day),
		int(hours-offsetHours), int(minutes-offsetMinutes), int(seconds), 0, time.UTC)
}

// Fields names the message fields feeding Decode.
type Fields struct {
	Time   string `mapstructure:"time"`
	Offset string `mapstructure:"offset"`
	Decade string `mapstructure:"decade"`
	Day    string `mapstructure:"day"`
}

// DefaultFields matches the field names used by the archive schemas.
func DefaultFields() Fields {
	return Fields{Time: "T_TIME", Offset: "T_OFFSET", Decade: "N_DECADE", Day: "N_DAY"}
}

// Empty reports whether no field is configured.
func (f Fields) Empty() bool {
	return f == Fields{}
}

// Source gives access to decoded integer fields.
type Source interface {
	Uint(name string) (uint64, bool)
	Failed(name string) bool
}

// FromSource decodes the timestamp from src. It returns ErrNotApplicable,
// naming the first unusable field, rather than substituting defaults.
func FromSource(src Source, f Fields) (time.Time, error) {
	names := [4]string{f.Time, f.Offset, f.Decade, f.Day}
	var vals [4]int64
	for i, name := range names {
		if name == "" {
			return time.Time{}, fmt.Errorf("%w: field %d not configured", ErrNotApplicable, i)
		}
		if src.Failed(name) {
			return time.Time{}, fmt.Errorf("%w: %s failed to decode", ErrNotApplicable, name)
		}
		v, ok := src.Uint(name)
		if !ok {
			return time.Time{}, fmt.Errorf("%w: %s not decoded", ErrNotApplicable, name)
		}
		vals[i] = int64(v)
	}
	return Decode(vals[0], vals[1], vals[2], vals[3]), nil
}
