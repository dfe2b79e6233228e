package chrono

import "time"

// TimeAPI is what anything that needs the current time should depend on.
//
// note: fault injection point
type TimeAPI interface {
	Now() time.Time
}

// StandardTime reads the wall clock in a fixed location.
type StandardTime struct {
	location *time.Location
}

// NewStandardTime returns a StandardTime in `location`, nil means the machine's local time.
func NewStandardTime(location *time.Location) StandardTime {
	if location == nil {
		location = time.Local
	}
	return StandardTime{location: location}
}

func (s StandardTime) Now() time.Time {
	return time.Now().In(s.location)
}

// FixedTime always reports the same instant.
type FixedTime struct {
	At time.Time
}

func (f FixedTime) Now() time.Time {
	return f.At
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
