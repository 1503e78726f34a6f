package model

import "time"

type User struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name      string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Email     string    `json:"email" bson:"email" validate:"required,email"`
	Phone     string    `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,e164"`
	Role      string    `json:"role" bson:"role" validate:"required,oneof=user player coach admin seller delivery organizer"`
	Location  *GeoPoint `json:"location,omitempty" bson:"location,omitempty" validate:"omitempty"`
	IsActive  bool      `json:"isActive" bson:"is_active"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

type UserRoleUpdate struct {
	Role string `json:"role" validate:"required,oneof=user player coach admin seller delivery organizer"`
}

type UserActiveUpdate struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

type UserProvisionRequest struct {
	Name     string    `json:"name" validate:"required,min=2,max=100"`
	Email    string    `json:"email" validate:"required,email"`
	Phone    string    `json:"phone" validate:"omitempty,e164"`
	Role     string    `json:"role" validate:"omitempty,oneof=user player coach admin seller delivery organizer"`
	Location *GeoPoint `json:"location,omitempty" validate:"omitempty"`
}
