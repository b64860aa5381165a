package task

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// standardParser accepts the 5-field crontab format
var standardParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// secondsParser accepts the 6-field format with a leading seconds field
var secondsParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Schedule is a parsed cron schedule bound to a timezone
type Schedule struct {
	expr  string
	loc   *time.Location
	sched cron.Schedule
}

// ParseSchedule parses a 5- or 6-field cron expression. An empty
// timezone means UTC; otherwise tz must be an IANA zone name.
func ParseSchedule(expr, tz string) (*Schedule, error) {
	loc := time.UTC
	if tz != "" {
		var err error
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidCron, tz)
		}
	}

	sched, err := standardParser.Parse(expr)
	if err != nil {
		sched, err = secondsParser.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCron, expr)
		}
	}

	return &Schedule{expr: expr, loc: loc, sched: sched}, nil
}

// NextAfter returns the first scheduled instant strictly after t in the
// schedule's timezone.
func (s *Schedule) NextAfter(t time.Time) time.Time {
	return s.sched.Next(t.In(s.loc))
}

// Expression returns the raw cron expression
func (s *Schedule) Expression() string {
	return s.expr
}

// Location returns the schedule's timezone
func (s *Schedule) Location() *time.Location {
	return s.loc
}
