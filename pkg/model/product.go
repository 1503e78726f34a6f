package model

import "time"

type Review struct {
	ID        string    `json:"id" bson:"id"`
	UserID    string    `json:"userId" bson:"user_id"`
	Rating    int       `json:"rating" bson:"rating"`
	Comment   string    `json:"comment,omitempty" bson:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

type Product struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty"`
	Name        string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Description string    `json:"description" bson:"description" validate:"required,max=2000"`
	Price       Money     `json:"price" bson:"price" validate:"gt=0"`
	SellerID    string    `json:"sellerId" bson:"seller_id"`
	Category    string    `json:"category" bson:"category" validate:"required,oneof=equipment apparel accessories nutrition other"`
	Sport       string    `json:"sport" bson:"sport" validate:"required,oneof=cricket football basketball tennis badminton swimming all"`
	Stock       int       `json:"stock" bson:"stock" validate:"min=0"`
	Reviews     []Review  `json:"reviews" bson:"reviews"`
	Rating      float64   `json:"rating" bson:"rating"`
	NumReviews  int       `json:"numReviews" bson:"num_reviews"`
	Version     int64     `json:"version" bson:"version"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updated_at"`
}

// RecomputeRating sets Rating to the mean of the review ratings, or zero
// when there are no reviews.
func (p *Product) RecomputeRating() {
	p.NumReviews = len(p.Reviews)
	if p.NumReviews == 0 {
		p.Rating = 0
		return
	}
	sum := 0
	for _, r := range p.Reviews {
		sum += r.Rating
	}
	p.Rating = float64(sum) / float64(p.NumReviews)
}

type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=500"`
}

type ProductRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"required,max=2000"`
	Price       Money  `json:"price" validate:"gt=0"`
	Category    string `json:"category" validate:"required,oneof=equipment apparel accessories nutrition other"`
	Sport       string `json:"sport" validate:"required,oneof=cricket football basketball tennis badminton swimming all"`
	Stock       int    `json:"stock" validate:"min=0,max=1000000"`
}

// ProductUpdate carries the catalogue fields a seller may change. Nil fields
// are left as stored.
type ProductUpdate struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Price       *Money  `json:"price"`
	Category    *string `json:"category" validate:"omitempty,oneof=equipment apparel accessories nutrition other"`
	Sport       *string `json:"sport" validate:"omitempty,oneof=cricket football basketball tennis badminton swimming all"`
	Stock       *int    `json:"stock" validate:"omitempty,min=0,max=1000000"`
}

// ProductFilter narrows a catalogue listing. Zero fields match everything.
type ProductFilter struct {
	Query     string
	Category  string
	Sport     string
	SellerID  string
	MinPrice  *Money
	MaxPrice  *Money
	MinRating float64
}
