package model

import "time"

type DeliveryPartner struct {
	Name          string `json:"name" bson:"name" validate:"required,min=2,max=100"`
	ContactNumber string `json:"contactNumber" bson:"contact_number" validate:"required,e164"`
	CompanyName   string `json:"companyName" bson:"company_name" validate:"required,min=2,max=100"`
}

type DeliveryAttempt struct {
	AttemptDate time.Time `json:"attemptDate" bson:"attempt_date"`
	Status      string    `json:"status" bson:"status"`
	Notes       string    `json:"notes,omitempty" bson:"notes,omitempty"`
}

type Delivery struct {
	ID                   string            `json:"id,omitempty" bson:"_id,omitempty"`
	OrderID              string            `json:"orderId" bson:"order_id"`
	Partner              DeliveryPartner   `json:"deliveryPartner" bson:"partner"`
	TrackingNumber       string            `json:"trackingNumber" bson:"tracking_number"`
	Status               string            `json:"status" bson:"status"`
	ExpectedDeliveryDate time.Time         `json:"expectedDeliveryDate" bson:"expected_delivery_date"`
	ActualDeliveryDate   *time.Time        `json:"actualDeliveryDate,omitempty" bson:"actual_delivery_date,omitempty"`
	Attempts             []DeliveryAttempt `json:"deliveryAttempts" bson:"attempts"`
	Notes                string            `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt            time.Time         `json:"createdAt" bson:"created_at"`
	UpdatedAt            time.Time         `json:"updatedAt" bson:"updated_at"`
}

// Tracking is the public view of a delivery.
type Tracking struct {
	TrackingNumber       string            `json:"trackingNumber"`
	Status               string            `json:"status"`
	ExpectedDeliveryDate time.Time         `json:"expectedDeliveryDate"`
	ActualDeliveryDate   *time.Time        `json:"actualDeliveryDate,omitempty"`
	Attempts             []DeliveryAttempt `json:"deliveryAttempts"`
	Partner              DeliveryPartner   `json:"deliveryPartner"`
}

func (d *Delivery) Tracking() *Tracking {
	return &Tracking{
		TrackingNumber:       d.TrackingNumber,
		Status:               d.Status,
		ExpectedDeliveryDate: d.ExpectedDeliveryDate,
		ActualDeliveryDate:   d.ActualDeliveryDate,
		Attempts:             d.Attempts,
		Partner:              d.Partner,
	}
}

type DeliveryRequest struct {
	OrderID              string          `json:"orderId" validate:"required,mongodb"`
	Partner              DeliveryPartner `json:"deliveryPartner" validate:"required"`
	TrackingNumber       string          `json:"trackingNumber" validate:"omitempty,min=6,max=64"`
	ExpectedDeliveryDate time.Time       `json:"expectedDeliveryDate" validate:"required"`
	Notes                string          `json:"notes" validate:"max=500"`
}

type DeliveryTrackerUpdate struct {
	Status string `json:"status" validate:"required,oneof='Pending' 'In Transit' 'Out for Delivery' 'Delivered' 'Failed' 'Returned'"`
	Notes  string `json:"notes" validate:"max=500"`
}
