package model

import "time"

type Booking struct {
	ID      string    `json:"id,omitempty" bson:"_id,omitempty"`
	UserID  string    `json:"userId" bson:"user_id"`
	CoachID string    `json:"coachId" bson:"coach_id"`
	Sport   string    `json:"sport" bson:"sport"`
	Date    time.Time `json:"date" bson:"date"`
	Slot    string    `json:"slot" bson:"slot"`
	Status  string    `json:"status" bson:"status"`
	Rating  *int      `json:"rating,omitempty" bson:"rating,omitempty"`
	Review  string    `json:"review,omitempty" bson:"review,omitempty"`
	// ActiveSlotKey is set only while the booking holds its slot and is
	// unique across the collection.
	ActiveSlotKey string    `json:"-" bson:"active_slot_key,omitempty"`
	CreatedAt     time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updated_at"`
}

// HoldsSlot reports whether the booking blocks its slot for others.
func (b *Booking) HoldsSlot() bool {
	return b.Status == BookingPending || b.Status == BookingConfirmed
}

type BookingRequest struct {
	CoachID string `json:"coachId" validate:"required,mongodb"`
	Sport   string `json:"sport" validate:"required,max=50"`
	Date    string `json:"date" validate:"required"`
	Slot    string `json:"slot" validate:"required"`
}

type BookingStatusUpdate struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed cancelled completed"`
}

type BookingRating struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Review string `json:"review" validate:"max=500"`
}
