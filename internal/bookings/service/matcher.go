package service

import (
	"fmt"
	"strings"
	"time"

	apperrors "teamup/pkg/errors"
	"teamup/pkg/model"
	"teamup/pkg/validation"
)

const dateLayout = "2006-01-02"

// Matcher decides whether a requested slot fits a coach's weekly
// availability. It holds no state beyond the calendar and the clock.
type Matcher struct {
	loc *time.Location
	now func() time.Time
}

func NewMatcher(loc *time.Location, now func() time.Time) *Matcher {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Matcher{loc: loc, now: now}
}

// SlotRequest is a booking request whose date and slot have been parsed.
type SlotRequest struct {
	Date   time.Time
	Window model.TimeWindow
}

func (r SlotRequest) Slot() string {
	return r.Window.Slot()
}

func (r SlotRequest) Weekday() string {
	return model.Weekdays[r.Date.Weekday()]
}

// DayBounds returns the half-open interval covering the requested day.
func (r SlotRequest) DayBounds() (time.Time, time.Time) {
	return r.Date, r.Date.AddDate(0, 0, 1)
}

// ActiveSlotKey identifies the slot for the uniqueness constraint on active bookings.
func (r SlotRequest) ActiveSlotKey(coachID string) string {
	return coachID + "|" + r.Date.Format(dateLayout) + "|" + r.Slot()
}

// Parse resolves the date and slot of a request. Dates before today, in the
// matcher's calendar, are rejected.
func (m *Matcher) Parse(date, slot string) (SlotRequest, error) {
	day, err := m.ParseDate(date)
	if err != nil {
		return SlotRequest{}, err
	}

	today := m.startOfDay(m.now())
	if day.Before(today) {
		return SlotRequest{}, apperrors.PastDate("Cannot book a date in the past")
	}

	window, err := ParseSlot(slot)
	if err != nil {
		return SlotRequest{}, err
	}

	return SlotRequest{Date: day, Window: window}, nil
}

// ParseDate accepts YYYY-MM-DD or RFC3339 and returns the start of that day.
func (m *Matcher) ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseInLocation(dateLayout, s, m.loc); err == nil {
		return d, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return m.startOfDay(t), nil
	}
	return time.Time{}, apperrors.InvalidInput(fmt.Sprintf("Invalid date %q, expected YYYY-MM-DD", s))
}

func (m *Matcher) startOfDay(t time.Time) time.Time {
	t = t.In(m.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, m.loc)
}

// ParseSlot splits "HH:MM-HH:MM" into a window. The start must precede the end.
func ParseSlot(s string) (model.TimeWindow, error) {
	start, end, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return model.TimeWindow{}, apperrors.InvalidInput(fmt.Sprintf("Invalid slot %q, expected HH:MM-HH:MM", s))
	}
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if !validation.IsHHMM(start) || !validation.IsHHMM(end) {
		return model.TimeWindow{}, apperrors.InvalidInput(fmt.Sprintf("Invalid slot %q, expected HH:MM-HH:MM", s))
	}
	// Zero-padded HH:MM compares correctly as a string.
	if start >= end {
		return model.TimeWindow{}, apperrors.InvalidInput(fmt.Sprintf("Slot %q must start before it ends", s))
	}
	return model.TimeWindow{StartTime: start, EndTime: end}, nil
}

// Check verifies that coach teaches sport and offers the exact window on the
// requested weekday. Partial overlaps with a window do not match.
func (m *Matcher) Check(coach *model.Coach, sport string, req SlotRequest) error {
	if !coach.Teaches(sport) {
		return apperrors.UnsupportedSport(sport)
	}

	day := req.Weekday()
	windows := coach.Availability[day]
	if len(windows) == 0 {
		return apperrors.CoachUnavailable(day)
	}

	for _, w := range windows {
		if w.StartTime == req.Window.StartTime && w.EndTime == req.Window.EndTime {
			return nil
		}
	}
	return apperrors.SlotNotOffered(req.Slot())
}

// Match runs Parse and Check for one request.
func (m *Matcher) Match(coach *model.Coach, sport, date, slot string) (SlotRequest, error) {
	req, err := m.Parse(date, slot)
	if err != nil {
		return SlotRequest{}, err
	}
	return req, m.Check(coach, sport, req)
}
