package service

import (
	"context"
	"errors"
	"testing"
	"time"

	bookingserrors "teamup/internal/bookings/errors"
	coacheserrors "teamup/internal/coaches/errors"
	"teamup/pkg/auth"
	"teamup/pkg/config"
	mongodb "teamup/pkg/db/mongo"
	apperrors "teamup/pkg/errors"
	"teamup/pkg/events"
	"teamup/pkg/logger"
	"teamup/pkg/model"
	"teamup/pkg/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBookingRepo struct {
	createFunc             func(ctx context.Context, booking *model.Booking) error
	findByIDFunc           func(ctx context.Context, id string) (*model.Booking, error)
	countActiveForSlotFunc func(ctx context.Context, coachID string, dayStart, dayEnd time.Time, slot string) (int64, error)
	updateStatusFunc       func(ctx context.Context, id, from, to string) (*model.Booking, error)
	setRatingFunc          func(ctx context.Context, id string, rating int, review string) (*model.Booking, error)
	findByCoachFunc        func(ctx context.Context, coachID string, limit int, offset int64) ([]*model.Booking, error)
	countByCoachFunc       func(ctx context.Context, coachID string) (int64, error)
}

func (m *mockBookingRepo) Create(ctx context.Context, booking *model.Booking) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, booking)
	}
	booking.ID = "64b7f0c2e4b0a1a2b3c4d000"
	return nil
}

func (m *mockBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepo) CountActiveForSlot(ctx context.Context, coachID string, dayStart, dayEnd time.Time, slot string) (int64, error) {
	if m.countActiveForSlotFunc != nil {
		return m.countActiveForSlotFunc(ctx, coachID, dayStart, dayEnd, slot)
	}
	return 0, nil
}

func (m *mockBookingRepo) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	return []*model.Booking{}, nil
}

func (m *mockBookingRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}

func (m *mockBookingRepo) FindByCoach(ctx context.Context, coachID string, limit int, offset int64) ([]*model.Booking, error) {
	if m.findByCoachFunc != nil {
		return m.findByCoachFunc(ctx, coachID, limit, offset)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepo) CountByCoach(ctx context.Context, coachID string) (int64, error) {
	if m.countByCoachFunc != nil {
		return m.countByCoachFunc(ctx, coachID)
	}
	return 0, nil
}

func (m *mockBookingRepo) UpdateStatus(ctx context.Context, id, from, to string) (*model.Booking, error) {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, from, to)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBookingRepo) SetRating(ctx context.Context, id string, rating int, review string) (*model.Booking, error) {
	if m.setRatingFunc != nil {
		return m.setRatingFunc(ctx, id, rating, review)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBookingRepo) RatingStats(ctx context.Context, coachID string) (float64, int, error) {
	return 0, 0, nil
}

type mockLockRepo struct {
	acquired []string
	released []string
	held     map[string]bool
}

func (m *mockLockRepo) Acquire(ctx context.Context, lock *model.SlotLock) error {
	if m.held[lock.ID] {
		return bookingserrors.ErrLockHeld
	}
	m.acquired = append(m.acquired, lock.ID)
	return nil
}

func (m *mockLockRepo) Release(ctx context.Context, lockID string) error {
	m.released = append(m.released, lockID)
	return nil
}

type mockCoachFinder struct {
	coaches map[string]*model.Coach
}

func (m *mockCoachFinder) FindByID(ctx context.Context, id string) (*model.Coach, error) {
	if c, ok := m.coaches[id]; ok {
		return c, nil
	}
	return nil, coacheserrors.ErrNotFound
}

func (m *mockCoachFinder) FindByUserID(ctx context.Context, userID string) (*model.Coach, error) {
	for _, c := range m.coaches {
		if c.UserID == userID {
			return c, nil
		}
	}
	return nil, coacheserrors.ErrNotFound
}

type fakeTx struct {
	calls int
	// retry runs a successful callback once more, as the driver does after a
	// transient commit error.
	retry bool
}

func (f *fakeTx) ExecuteTransaction(ctx context.Context, fn mongodb.TransactionFunc) error {
	f.calls++
	if err := fn(ctx); err != nil || !f.retry {
		return err
	}
	return fn(ctx)
}

type fixture struct {
	repo    *mockBookingRepo
	locks   *mockLockRepo
	tx      *fakeTx
	bus     *events.Bus
	coach   *model.Coach
	service BookingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Discard()
	cfg := &config.Config{Log: log, SlotLockTTL: 10 * time.Second}
	coach := testCoach()

	f := &fixture{
		repo:  &mockBookingRepo{},
		locks: &mockLockRepo{held: map[string]bool{}},
		tx:    &fakeTx{},
		bus:   events.NewBus(log, nil),
		coach: coach,
	}
	f.service = NewBookingService(
		f.repo,
		f.locks,
		&mockCoachFinder{coaches: map[string]*model.Coach{coach.ID: coach}},
		f.tx,
		f.bus,
		newTestMatcher(),
		validation.New(log),
		cfg,
	)
	return f
}

var (
	client     = &auth.Principal{UserID: "64b7f0c2e4b0a1a2b3c4d111", Role: model.RolePlayer}
	otherUser  = &auth.Principal{UserID: "64b7f0c2e4b0a1a2b3c4d222", Role: model.RoleUser}
	admin      = &auth.Principal{UserID: "64b7f0c2e4b0a1a2b3c4d333", Role: model.RoleAdmin}
	coachOwner = &auth.Principal{UserID: "64b7f0c2e4b0a1a2b3c4d5e7", Role: model.RoleCoach}
	otherCoach = &auth.Principal{UserID: "64b7f0c2e4b0a1a2b3c4d444", Role: model.RoleCoach}
)

func validRequest(coachID string) *model.BookingRequest {
	return &model.BookingRequest{CoachID: coachID, Sport: "Tennis", Date: "2026-03-09", Slot: "09:00-10:00"}
}

func TestCreate_Success(t *testing.T) {
	f := newFixture(t)

	var created *model.Booking
	f.repo.createFunc = func(ctx context.Context, b *model.Booking) error {
		b.ID = "64b7f0c2e4b0a1a2b3c4d000"
		created = b
		return nil
	}

	booking, err := f.service.Create(context.Background(), client, validRequest(f.coach.ID))
	require.NoError(t, err)

	assert.Same(t, created, booking)
	assert.Equal(t, client.UserID, booking.UserID)
	assert.Equal(t, "tennis", booking.Sport)
	assert.Equal(t, model.BookingPending, booking.Status)
	assert.Equal(t, f.coach.ID+"|2026-03-09|09:00-10:00", booking.ActiveSlotKey)
	assert.Equal(t, 1, f.tx.calls)

	lockID := "slot_lock_" + f.coach.ID + "_2026-03-09_09:00-10:00"
	assert.Equal(t, []string{lockID}, f.locks.acquired)
	assert.Equal(t, []string{lockID}, f.locks.released)
}

func TestCreate_RetriedTransactionInsertsFreshID(t *testing.T) {
	f := newFixture(t)
	f.tx.retry = true

	var seen []string
	f.repo.createFunc = func(ctx context.Context, b *model.Booking) error {
		seen = append(seen, b.ID)
		b.ID = "64b7f0c2e4b0a1a2b3c4d000"
		return nil
	}

	booking, err := f.service.Create(context.Background(), client, validRequest(f.coach.ID))
	require.NoError(t, err)
	assert.Equal(t, []string{"", ""}, seen)
	assert.Equal(t, "64b7f0c2e4b0a1a2b3c4d000", booking.ID)
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		modify     func(f *fixture, req *model.BookingRequest)
		wantCode   string
		wantReason string
	}{
		{
			name:     "missing coach id",
			modify:   func(f *fixture, req *model.BookingRequest) { req.CoachID = "" },
			wantCode: apperrors.CodeValidation,
		},
		{
			name:       "past date",
			modify:     func(f *fixture, req *model.BookingRequest) { req.Date = "2026-02-27" },
			wantCode:   apperrors.CodeInvalidInput,
			wantReason: apperrors.ReasonPastDate,
		},
		{
			name:     "unknown coach",
			modify:   func(f *fixture, req *model.BookingRequest) { req.CoachID = "64b7f0c2e4b0a1a2b3c4dfff" },
			wantCode: apperrors.CodeNotFound,
		},
		{
			name:     "inactive coach",
			modify:   func(f *fixture, req *model.BookingRequest) { f.coach.IsActive = false },
			wantCode: apperrors.CodeNotFound,
		},
		{
			name:       "unsupported sport",
			modify:     func(f *fixture, req *model.BookingRequest) { req.Sport = "curling" },
			wantCode:   apperrors.CodeForbidden,
			wantReason: apperrors.ReasonUnsupportedSport,
		},
		{
			name:       "slot not offered",
			modify:     func(f *fixture, req *model.BookingRequest) { req.Slot = "12:00-13:00" },
			wantCode:   apperrors.CodeInvalidState,
			wantReason: apperrors.ReasonSlotNotOffered,
		},
		{
			name: "lock held by concurrent request",
			modify: func(f *fixture, req *model.BookingRequest) {
				f.locks.held["slot_lock_"+f.coach.ID+"_2026-03-09_09:00-10:00"] = true
			},
			wantCode:   apperrors.CodeConflict,
			wantReason: apperrors.ReasonSlotTaken,
		},
		{
			name: "active booking exists",
			modify: func(f *fixture, req *model.BookingRequest) {
				f.repo.countActiveForSlotFunc = func(ctx context.Context, coachID string, dayStart, dayEnd time.Time, slot string) (int64, error) {
					return 1, nil
				}
			},
			wantCode:   apperrors.CodeConflict,
			wantReason: apperrors.ReasonSlotTaken,
		},
		{
			name: "unique index rejects insert",
			modify: func(f *fixture, req *model.BookingRequest) {
				f.repo.createFunc = func(ctx context.Context, b *model.Booking) error {
					return bookingserrors.ErrSlotTaken
				}
			},
			wantCode:   apperrors.CodeConflict,
			wantReason: apperrors.ReasonSlotTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := validRequest(f.coach.ID)
			tt.modify(f, req)

			_, err := f.service.Create(context.Background(), client, req)
			require.Error(t, err)
			appErr := apperrors.AsAppError(err)
			assert.Equal(t, tt.wantCode, appErr.Code)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, appErr.Reason)
			}
			assert.Equal(t, len(f.locks.acquired), len(f.locks.released), "every acquired lock is released")
		})
	}
}

func TestCreate_ChecksDayBounds(t *testing.T) {
	f := newFixture(t)

	var gotStart, gotEnd time.Time
	f.repo.countActiveForSlotFunc = func(ctx context.Context, coachID string, dayStart, dayEnd time.Time, slot string) (int64, error) {
		gotStart, gotEnd = dayStart, dayEnd
		assert.Equal(t, "09:00-10:00", slot)
		return 0, nil
	}

	_, err := f.service.Create(context.Background(), client, validRequest(f.coach.ID))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC), gotStart)
	assert.Equal(t, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), gotEnd)
}

func TestCreate_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Create(context.Background(), nil, validRequest(f.coach.ID))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthenticated))
}

func existingBooking(status string) *model.Booking {
	return &model.Booking{
		ID:      "64b7f0c2e4b0a1a2b3c4d000",
		UserID:  client.UserID,
		CoachID: "64b7f0c2e4b0a1a2b3c4d5e6",
		Sport:   model.SportTennis,
		Date:    time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC),
		Slot:    "09:00-10:00",
		Status:  status,
	}
}

func TestUpdateStatus(t *testing.T) {
	tests := []struct {
		name      string
		principal *auth.Principal
		current   string
		next      string
		wantCode  string
	}{
		{name: "coach confirms pending", principal: coachOwner, current: model.BookingPending, next: model.BookingConfirmed},
		{name: "coach completes confirmed", principal: coachOwner, current: model.BookingConfirmed, next: model.BookingCompleted},
		{name: "admin cancels", principal: admin, current: model.BookingConfirmed, next: model.BookingCancelled},
		{name: "other coach", principal: otherCoach, current: model.BookingPending, next: model.BookingConfirmed, wantCode: apperrors.CodeForbidden},
		{name: "client cannot update", principal: client, current: model.BookingPending, next: model.BookingConfirmed, wantCode: apperrors.CodeForbidden},
		{name: "pending straight to completed", principal: coachOwner, current: model.BookingPending, next: model.BookingCompleted, wantCode: apperrors.CodeInvalidState},
		{name: "terminal cancelled", principal: coachOwner, current: model.BookingCancelled, next: model.BookingConfirmed, wantCode: apperrors.CodeInvalidState},
		{name: "unknown status", principal: coachOwner, current: model.BookingPending, next: "archived", wantCode: apperrors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
				return existingBooking(tt.current), nil
			}
			f.repo.updateStatusFunc = func(ctx context.Context, id, from, to string) (*model.Booking, error) {
				assert.Equal(t, tt.current, from)
				b := existingBooking(to)
				return b, nil
			}

			booking, err := f.service.UpdateStatus(context.Background(), tt.principal, "64b7f0c2e4b0a1a2b3c4d000", &model.BookingStatusUpdate{Status: tt.next})
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, apperrors.AsAppError(err).Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.next, booking.Status)
		})
	}
}

func TestUpdateStatus_ConcurrentChange(t *testing.T) {
	f := newFixture(t)
	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return existingBooking(model.BookingPending), nil
	}
	f.repo.updateStatusFunc = func(ctx context.Context, id, from, to string) (*model.Booking, error) {
		return nil, bookingserrors.ErrStaleStatus
	}

	_, err := f.service.UpdateStatus(context.Background(), coachOwner, "64b7f0c2e4b0a1a2b3c4d000", &model.BookingStatusUpdate{Status: model.BookingConfirmed})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))
}

func TestRate(t *testing.T) {
	f := newFixture(t)

	booking := existingBooking(model.BookingCompleted)
	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return booking, nil
	}
	f.repo.setRatingFunc = func(ctx context.Context, id string, rating int, review string) (*model.Booking, error) {
		rated := *booking
		rated.Rating = &rating
		rated.Review = review
		return &rated, nil
	}

	var dispatched []events.BookingRatedPayload
	f.bus.Subscribe(events.BookingRated, func(ctx context.Context, evt events.Event) error {
		var p events.BookingRatedPayload
		require.NoError(t, evt.Decode(&p))
		dispatched = append(dispatched, p)
		return nil
	})

	rated, err := f.service.Rate(context.Background(), client, booking.ID, &model.BookingRating{Rating: 4, Review: "  great session "})
	require.NoError(t, err)
	require.NotNil(t, rated.Rating)
	assert.Equal(t, 4, *rated.Rating)
	assert.Equal(t, "great session", rated.Review)
	require.Len(t, dispatched, 1)
	assert.Equal(t, booking.CoachID, dispatched[0].CoachID)
	assert.Equal(t, 4, dispatched[0].Rating)
}

func TestRate_Rejections(t *testing.T) {
	four := 4
	tests := []struct {
		name      string
		principal *auth.Principal
		booking   *model.Booking
		rating    int
		wantCode  string
	}{
		{name: "not the owner", principal: otherUser, booking: existingBooking(model.BookingCompleted), rating: 5, wantCode: apperrors.CodeForbidden},
		{name: "not completed", principal: client, booking: existingBooking(model.BookingConfirmed), rating: 5, wantCode: apperrors.CodeInvalidState},
		{name: "out of range", principal: client, booking: existingBooking(model.BookingCompleted), rating: 6, wantCode: apperrors.CodeValidation},
		{
			name:      "already rated",
			principal: client,
			booking: func() *model.Booking {
				b := existingBooking(model.BookingCompleted)
				b.Rating = &four
				return b
			}(),
			rating:   5,
			wantCode: apperrors.CodeConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
				return tt.booking, nil
			}

			_, err := f.service.Rate(context.Background(), tt.principal, tt.booking.ID, &model.BookingRating{Rating: tt.rating})
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.AsAppError(err).Code)
		})
	}
}

func TestRate_SubscriberFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return existingBooking(model.BookingCompleted), nil
	}
	f.repo.setRatingFunc = func(ctx context.Context, id string, rating int, review string) (*model.Booking, error) {
		b := existingBooking(model.BookingCompleted)
		b.Rating = &rating
		return b, nil
	}
	f.bus.Subscribe(events.BookingRated, func(ctx context.Context, evt events.Event) error {
		return apperrors.Internal("coach rating update failed", errors.New("boom"))
	})

	_, err := f.service.Rate(context.Background(), client, "64b7f0c2e4b0a1a2b3c4d000", &model.BookingRating{Rating: 3})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
}

func TestGetByID_Visibility(t *testing.T) {
	tests := []struct {
		name      string
		principal *auth.Principal
		wantErr   bool
	}{
		{name: "client", principal: client},
		{name: "booked coach", principal: coachOwner},
		{name: "admin", principal: admin},
		{name: "stranger", principal: otherUser, wantErr: true},
		{name: "other coach", principal: otherCoach, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
				return existingBooking(model.BookingPending), nil
			}

			_, err := f.service.GetByID(context.Background(), tt.principal, "64b7f0c2e4b0a1a2b3c4d000")
			if tt.wantErr {
				assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGetByID_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.GetByID(context.Background(), client, "64b7f0c2e4b0a1a2b3c4d999")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestListForCoach(t *testing.T) {
	f := newFixture(t)
	f.repo.findByCoachFunc = func(ctx context.Context, coachID string, limit int, offset int64) ([]*model.Booking, error) {
		assert.Equal(t, f.coach.ID, coachID)
		return []*model.Booking{existingBooking(model.BookingPending)}, nil
	}
	f.repo.countByCoachFunc = func(ctx context.Context, coachID string) (int64, error) {
		return 1, nil
	}

	bookings, total, err := f.service.ListForCoach(context.Background(), coachOwner, "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
	assert.Equal(t, int64(1), total)

	_, _, err = f.service.ListForCoach(context.Background(), otherCoach, "", 10, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, _, err = f.service.ListForCoach(context.Background(), client, "", 10, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}
