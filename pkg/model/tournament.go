package model

import "time"

type TeamRegistration struct {
	TeamID       string    `json:"teamId" bson:"team_id"`
	Status       string    `json:"status" bson:"status"`
	RegisteredAt time.Time `json:"registeredAt" bson:"registered_at"`
}

type Tournament struct {
	ID                   string             `json:"id,omitempty" bson:"_id,omitempty"`
	Name                 string             `json:"name" bson:"name" validate:"required,min=3,max=100"`
	Description          string             `json:"description,omitempty" bson:"description,omitempty" validate:"max=1000"`
	Sport                string             `json:"sport" bson:"sport" validate:"required,sport"`
	Format               string             `json:"format" bson:"format" validate:"required,oneof=knockout league group-stage"`
	OrganizerID          string             `json:"organizerId" bson:"organizer_id"`
	StartDate            time.Time          `json:"startDate" bson:"start_date" validate:"required"`
	EndDate              time.Time          `json:"endDate" bson:"end_date" validate:"required"`
	RegistrationDeadline time.Time          `json:"registrationDeadline" bson:"registration_deadline" validate:"required"`
	MaxTeams             int                `json:"maxTeams" bson:"max_teams" validate:"required,min=2,max=64"`
	Teams                []TeamRegistration `json:"teams" bson:"teams"`
	EntryFee             Money              `json:"entryFee" bson:"entry_fee"`
	CreatedAt            time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt            time.Time          `json:"updatedAt" bson:"updated_at"`
}

func (t *Tournament) Registration(teamID string) (TeamRegistration, bool) {
	for _, r := range t.Teams {
		if r.TeamID == teamID {
			return r, true
		}
	}
	return TeamRegistration{}, false
}

type TournamentRegistrationRequest struct {
	TeamID string `json:"teamId" validate:"required,mongodb"`
}

type RegistrationStatusUpdate struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

type TournamentRequest struct {
	Name                 string    `json:"name" validate:"required,min=3,max=100"`
	Description          string    `json:"description" validate:"max=1000"`
	Sport                string    `json:"sport" validate:"required,sport"`
	Format               string    `json:"format" validate:"required,oneof=knockout league group-stage"`
	StartDate            time.Time `json:"startDate" validate:"required"`
	EndDate              time.Time `json:"endDate" validate:"required"`
	RegistrationDeadline time.Time `json:"registrationDeadline" validate:"required"`
	MaxTeams             int       `json:"maxTeams" validate:"required,min=2,max=64"`
	EntryFee             Money     `json:"entryFee" validate:"gte=0"`
}

type TournamentUpdate struct {
	Name                 *string    `json:"name" validate:"omitempty,min=3,max=100"`
	Description          *string    `json:"description" validate:"omitempty,max=1000"`
	StartDate            *time.Time `json:"startDate"`
	EndDate              *time.Time `json:"endDate"`
	RegistrationDeadline *time.Time `json:"registrationDeadline"`
	MaxTeams             *int       `json:"maxTeams" validate:"omitempty,min=2,max=64"`
	EntryFee             *Money     `json:"entryFee"`
}

// Tournament phases are derived from the schedule, not stored.
const (
	TournamentUpcoming  = "upcoming"
	TournamentOngoing   = "ongoing"
	TournamentCompleted = "completed"
)

var TournamentPhases = []string{TournamentUpcoming, TournamentOngoing, TournamentCompleted}

// TournamentFilter narrows tournament listings. Phase is evaluated at Now.
type TournamentFilter struct {
	Query string
	Sport string
	Phase string
	Now   time.Time
}
