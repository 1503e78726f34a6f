package service

import (
	"testing"
	"time"
	_ "time/tzdata"

	apperrors "teamup/pkg/errors"
	"teamup/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Monday 2 March 2026, mid-morning.
var fixedNow = time.Date(2026, time.March, 2, 10, 30, 0, 0, time.UTC)

func newTestMatcher() *Matcher {
	return NewMatcher(time.UTC, func() time.Time { return fixedNow })
}

func testCoach() *model.Coach {
	return &model.Coach{
		ID:          "64b7f0c2e4b0a1a2b3c4d5e6",
		UserID:      "64b7f0c2e4b0a1a2b3c4d5e7",
		Specialties: []string{model.SportTennis, model.SportBadminton},
		Availability: model.Availability{
			"monday":    {{StartTime: "09:00", EndTime: "10:00"}, {StartTime: "17:00", EndTime: "18:00"}},
			"wednesday": {{StartTime: "06:30", EndTime: "07:30"}},
		},
		IsActive: true,
	}
}

func TestParseSlot(t *testing.T) {
	tests := []struct {
		name    string
		slot    string
		want    model.TimeWindow
		wantErr bool
	}{
		{name: "valid", slot: "09:00-10:00", want: model.TimeWindow{StartTime: "09:00", EndTime: "10:00"}},
		{name: "spaces around parts", slot: " 09:00 - 10:00 ", want: model.TimeWindow{StartTime: "09:00", EndTime: "10:00"}},
		{name: "missing separator", slot: "09:00", wantErr: true},
		{name: "bad hour", slot: "24:00-25:00", wantErr: true},
		{name: "unpadded", slot: "9:00-10:00", wantErr: true},
		{name: "start equals end", slot: "10:00-10:00", wantErr: true},
		{name: "start after end", slot: "11:00-10:00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSlot(tt.slot)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatcher_ParseDate(t *testing.T) {
	m := newTestMatcher()

	d, err := m.ParseDate("2026-03-09")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC), d)

	d, err = m.ParseDate("2026-03-09T15:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC), d)

	_, err = m.ParseDate("09/03/2026")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestMatcher_ParseDate_UsesCalendarZone(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	m := NewMatcher(kolkata, func() time.Time { return fixedNow })

	// 20:00 UTC on Sunday is already Monday in Kolkata.
	d, err := m.ParseDate("2026-03-08T20:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d.Weekday())
	assert.Equal(t, 9, d.Day())
}

func TestMatcher_Match(t *testing.T) {
	tests := []struct {
		name       string
		sport      string
		date       string
		slot       string
		wantCode   string
		wantReason string
	}{
		{name: "exact window on offered day", sport: "tennis", date: "2026-03-09", slot: "09:00-10:00"},
		{name: "today is not the past", sport: "tennis", date: "2026-03-02", slot: "17:00-18:00"},
		{name: "yesterday", sport: "tennis", date: "2026-03-01", slot: "09:00-10:00",
			wantCode: apperrors.CodeInvalidInput, wantReason: apperrors.ReasonPastDate},
		{name: "malformed slot", sport: "tennis", date: "2026-03-09", slot: "nine-ten",
			wantCode: apperrors.CodeInvalidInput},
		{name: "sport not taught", sport: "cricket", date: "2026-03-09", slot: "09:00-10:00",
			wantCode: apperrors.CodeForbidden, wantReason: apperrors.ReasonUnsupportedSport},
		{name: "day without windows", sport: "tennis", date: "2026-03-10", slot: "09:00-10:00",
			wantCode: apperrors.CodeInvalidState, wantReason: apperrors.ReasonCoachUnavailable},
		{name: "window not offered", sport: "tennis", date: "2026-03-09", slot: "10:00-11:00",
			wantCode: apperrors.CodeInvalidState, wantReason: apperrors.ReasonSlotNotOffered},
		{name: "partial overlap is not a match", sport: "tennis", date: "2026-03-09", slot: "09:30-10:00",
			wantCode: apperrors.CodeInvalidState, wantReason: apperrors.ReasonSlotNotOffered},
		{name: "wider than window", sport: "tennis", date: "2026-03-09", slot: "08:00-10:00",
			wantCode: apperrors.CodeInvalidState, wantReason: apperrors.ReasonSlotNotOffered},
	}

	m := newTestMatcher()
	coach := testCoach()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := m.Match(coach, tt.sport, tt.date, tt.slot)
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.slot, req.Slot())
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.AsAppError(err).Code)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, apperrors.AsAppError(err).Reason)
			}
		})
	}
}

func TestMatcher_UnsupportedSportIsBadRequest(t *testing.T) {
	_, err := newTestMatcher().Match(testCoach(), "swimming", "2026-03-09", "09:00-10:00")
	require.Error(t, err)
	assert.Equal(t, 400, apperrors.AsAppError(err).StatusCode())
}

func TestSlotRequest_Keys(t *testing.T) {
	req, err := newTestMatcher().Parse("2026-03-11", "06:30-07:30")
	require.NoError(t, err)

	assert.Equal(t, "wednesday", req.Weekday())
	assert.Equal(t, "c1|2026-03-11|06:30-07:30", req.ActiveSlotKey("c1"))

	start, end := req.DayBounds()
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{model.BookingPending, model.BookingConfirmed, true},
		{model.BookingPending, model.BookingCancelled, true},
		{model.BookingPending, model.BookingCompleted, false},
		{model.BookingConfirmed, model.BookingCompleted, true},
		{model.BookingConfirmed, model.BookingCancelled, true},
		{model.BookingConfirmed, model.BookingPending, false},
		{model.BookingCancelled, model.BookingPending, false},
		{model.BookingCompleted, model.BookingCancelled, false},
		{model.BookingPending, model.BookingPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}
