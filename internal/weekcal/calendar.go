// Package weekcal does week and weekday arithmetic in the single business
// timezone so every caller agrees on where a week starts and ends.
package weekcal

import (
	"fmt"
	"time"
	_ "time/tzdata"

	pkgerrors "github.com/angelmondragon/mealbox-backend/pkg/errors"
)

const DefaultTimezone = "Europe/Amsterdam"

// Calendar resolves ISO weeks and weekdays in a fixed location.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// Status is the lockdown evaluation for one subscriber at one instant.
type Status struct {
	IsAfterLockdownDay bool
	CurrentWeek        int
	Weekday            int
}

func New(tz string) (*Calendar, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return &Calendar{loc: loc, now: time.Now}, nil
}

// WithClock returns a copy of c that reads the current time from now.
func (c *Calendar) WithClock(now func() time.Time) *Calendar {
	cp := *c
	if now == nil {
		now = time.Now
	}
	cp.now = now
	return &cp
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Now returns the current instant in the calendar's location.
func (c *Calendar) Now() time.Time {
	return c.now().In(c.loc)
}

// ISOWeek returns the ISO 8601 week number of t.
func (c *Calendar) ISOWeek(t time.Time) int {
	_, week := t.In(c.loc).ISOWeek()
	return week
}

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func (c *Calendar) ISOWeekday(t time.Time) int {
	wd := int(t.In(c.loc).Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// CurrentWeek is ISOWeek(Now()).
func (c *Calendar) CurrentWeek() int {
	return c.ISOWeek(c.Now())
}

// LockdownStatus reports whether at falls after the subscriber's lockdown
// day. The lockdown day itself is still open for confirmation.
func (c *Calendar) LockdownStatus(lockdownDay *int, at time.Time) (Status, error) {
	if lockdownDay == nil || *lockdownDay == 0 {
		return Status{}, pkgerrors.New(pkgerrors.CodeNotFound, "subscriber has no lockdown day")
	}
	weekday := c.ISOWeekday(at)
	return Status{
		IsAfterLockdownDay: *lockdownDay < weekday,
		CurrentWeek:        c.ISOWeek(at),
		Weekday:            weekday,
	}, nil
}

// NextConfirmWeek does not wrap at year end; the following ISOWeek call
// decides which week is current again.
func NextConfirmWeek(week int) int {
	return week + 1
}

// DaysToNextSunday counts days from at until the coming Sunday, skipping a
// further week once the lockdown day has passed.
func (c *Calendar) DaysToNextSunday(at time.Time, afterLockdown bool) int {
	days := 7 - c.ISOWeekday(at)
	if afterLockdown {
		days += 7
	}
	return days
}

// TrialDays is the free period granted when a plan subscription starts.
// Starting on the lockdown day already pushes delivery to the next week.
func (c *Calendar) TrialDays(lockdownDay int, at time.Time) int {
	weekday := c.ISOWeekday(at)
	if lockdownDay <= weekday {
		return 14 - weekday
	}
	return 7 - weekday
}

// YesterdayOf shifts at back by one calendar day in the calendar's location.
func (c *Calendar) YesterdayOf(at time.Time) time.Time {
	return at.In(c.loc).AddDate(0, 0, -1)
}

// NextRun returns the first instant strictly after 'after' that falls on
// hour:minute in the calendar's location.
func (c *Calendar) NextRun(after time.Time, hour, minute int) time.Time {
	local := after.In(c.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, c.loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, c.loc)
	}
	return next
}
