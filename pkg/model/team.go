package model

import "time"

type TeamMember struct {
	UserID   string    `json:"userId" bson:"user_id"`
	Role     string    `json:"role" bson:"role"`
	JoinedAt time.Time `json:"joinedAt" bson:"joined_at"`
}

type Team struct {
	ID          string       `json:"id,omitempty" bson:"_id,omitempty"`
	Name        string       `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Description string       `json:"description,omitempty" bson:"description,omitempty" validate:"max=500"`
	Sport       string       `json:"sport" bson:"sport" validate:"required,sport"`
	CaptainID   string       `json:"captainId" bson:"captain_id"`
	Players     []TeamMember `json:"players" bson:"players"`
	MaxPlayers  int          `json:"maxPlayers" bson:"max_players" validate:"required,min=2,max=30"`
	IsActive    bool         `json:"isActive" bson:"is_active"`
	CreatedAt   time.Time    `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time    `json:"updatedAt" bson:"updated_at"`
}

func (t *Team) Member(userID string) (TeamMember, bool) {
	for _, p := range t.Players {
		if p.UserID == userID {
			return p, true
		}
	}
	return TeamMember{}, false
}

type TeamPlayerRequest struct {
	UserID string `json:"userId" validate:"required,mongodb"`
	Role   string `json:"role" validate:"omitempty,oneof=vice-captain player"`
}

type TeamRoleUpdate struct {
	Role string `json:"role" validate:"required,oneof=vice-captain player"`
}

type TeamRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=500"`
	Sport       string `json:"sport" validate:"required,sport"`
	MaxPlayers  int    `json:"maxPlayers" validate:"required,min=2,max=30"`
}

type TeamUpdate struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	MaxPlayers  *int    `json:"maxPlayers" validate:"omitempty,min=2,max=30"`
	IsActive    *bool   `json:"isActive"`
}

// TeamFilter narrows team listings. Query matches name and description.
type TeamFilter struct {
	Query string
	Sport string
}
