package model

import "time"

// TimeWindow is one bookable window inside a day, both ends in HH:MM.
type TimeWindow struct {
	StartTime string `json:"startTime" bson:"start_time" validate:"required,hhmm"`
	EndTime   string `json:"endTime" bson:"end_time" validate:"required,hhmm"`
}

// Slot renders the window in the "HH:MM-HH:MM" booking form.
func (w TimeWindow) Slot() string {
	return w.StartTime + "-" + w.EndTime
}

// Availability maps a lowercase weekday name to its ordered windows.
type Availability map[string][]TimeWindow

type Coach struct {
	ID             string       `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	UserID         string       `json:"userId" bson:"user_id" validate:"required,mongodb"`
	Specialties    []string     `json:"specialties" bson:"specialties" validate:"required,min=1,dive,sport"`
	Experience     int          `json:"experience" bson:"experience" validate:"min=0,max=80"`
	Certifications []string     `json:"certifications,omitempty" bson:"certifications,omitempty" validate:"omitempty,max=20,dive,min=2,max=200"`
	HourlyRate     Money        `json:"hourlyRate" bson:"hourly_rate"`
	Availability   Availability `json:"availability" bson:"availability" validate:"omitempty,dive,keys,weekday,endkeys,dive"`
	// Location is where the coach trains, indexed for nearby searches.
	Location       *GeoPoint    `json:"location,omitempty" bson:"location,omitempty"`
	Rating         float64      `json:"rating" bson:"rating"`
	TotalReviews   int          `json:"totalReviews" bson:"total_reviews"`
	IsActive       bool         `json:"isActive" bson:"is_active"`
	CreatedAt      time.Time    `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time    `json:"updatedAt" bson:"updated_at"`
}

func (c *Coach) Teaches(sport string) bool {
	for _, s := range c.Specialties {
		if s == sport {
			return true
		}
	}
	return false
}

type CoachRequest struct {
	// UserID lets an admin create a profile for another coach user.
	UserID         string       `json:"userId" validate:"omitempty,mongodb"`
	Specialties    []string     `json:"specialties" validate:"required,min=1,max=10,dive,sport"`
	Experience     int          `json:"experience" validate:"min=0,max=80"`
	Certifications []string     `json:"certifications" validate:"omitempty,max=20,dive,min=2,max=200"`
	HourlyRate     Money        `json:"hourlyRate" validate:"gte=0"`
	Availability   Availability `json:"availability" validate:"omitempty,dive,keys,weekday,endkeys,dive"`
	// Location defaults to the coach user's own location.
	Location       *GeoPoint    `json:"location" validate:"omitempty"`
}

// CoachUpdate carries the profile fields a coach may change. Nil fields are
// left as stored.
type CoachUpdate struct {
	Specialties    []string  `json:"specialties" validate:"omitempty,min=1,max=10,dive,sport"`
	Experience     *int      `json:"experience" validate:"omitempty,min=0,max=80"`
	Certifications []string  `json:"certifications" validate:"omitempty,max=20,dive,min=2,max=200"`
	HourlyRate     *Money    `json:"hourlyRate"`
	Location       *GeoPoint `json:"location" validate:"omitempty"`
	IsActive       *bool     `json:"isActive"`
}

// CoachFilter narrows a coach listing to active coaches matching every set
// field.
type CoachFilter struct {
	Specialty     string
	MinExperience int
	MaxHourlyRate *Money
}

type NearbyCoachRequest struct {
	Longitude     *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	Latitude      *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	RadiusKm      float64  `json:"radiusKm" validate:"omitempty,gt=0,lte=500"`
	Specialty     string   `json:"specialty" validate:"omitempty,sport"`
	MaxHourlyRate *Money   `json:"maxHourlyRate"`
	Limit         int      `json:"limit" validate:"omitempty,min=1,max=100"`
}

type AvailabilityUpdate struct {
	Availability Availability `json:"availability" validate:"required,dive,keys,weekday,endkeys,dive"`
}
