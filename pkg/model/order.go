package model

import "time"

type OrderItem struct {
	ProductID string `json:"productId" bson:"product_id"`
	Name      string `json:"name" bson:"name"`
	Quantity  int    `json:"quantity" bson:"quantity"`
	Price     Money  `json:"price" bson:"price"`
}

type ShippingAddress struct {
	Street     string `json:"street" bson:"street" validate:"required,min=2,max=200"`
	City       string `json:"city" bson:"city" validate:"required,min=2,max=100"`
	State      string `json:"state" bson:"state" validate:"required,min=2,max=100"`
	Country    string `json:"country" bson:"country" validate:"required,min=2,max=100"`
	PostalCode string `json:"postalCode" bson:"postal_code" validate:"required,min=3,max=12"`
}

type DeliveryInfo struct {
	Status          string     `json:"status" bson:"status"`
	PickedUpAt      *time.Time `json:"pickedUpAt,omitempty" bson:"picked_up_at,omitempty"`
	DeliveredAt     *time.Time `json:"deliveredAt,omitempty" bson:"delivered_at,omitempty"`
	CurrentLocation *GeoPoint  `json:"currentLocation,omitempty" bson:"current_location,omitempty"`
	Notes           string     `json:"notes,omitempty" bson:"notes,omitempty"`
}

type Order struct {
	ID               string          `json:"id,omitempty" bson:"_id,omitempty"`
	UserID           string          `json:"userId" bson:"user_id"`
	Items            []OrderItem     `json:"items" bson:"items"`
	ShippingAddress  ShippingAddress `json:"shippingAddress" bson:"shipping_address"`
	PaymentMethod    string          `json:"paymentMethod" bson:"payment_method"`
	ItemsPrice       Money           `json:"itemsPrice" bson:"items_price"`
	ShippingPrice    Money           `json:"shippingPrice" bson:"shipping_price"`
	TaxPrice         Money           `json:"taxPrice" bson:"tax_price"`
	TotalPrice       Money           `json:"totalPrice" bson:"total_price"`
	Status           string          `json:"status" bson:"status"`
	DeliveryAssigned string          `json:"deliveryAssigned,omitempty" bson:"delivery_assigned,omitempty"`
	DeliveryInfo     *DeliveryInfo   `json:"deliveryInfo,omitempty" bson:"delivery_info,omitempty"`
	CancelReason     string          `json:"cancelReason,omitempty" bson:"cancel_reason,omitempty"`
	CancelledAt      *time.Time      `json:"cancelledAt,omitempty" bson:"cancelled_at,omitempty"`
	CreatedAt        time.Time       `json:"createdAt" bson:"created_at"`
	UpdatedAt        time.Time       `json:"updatedAt" bson:"updated_at"`
}

// RecomputeTotals derives ItemsPrice from the line items and TotalPrice
// from items, shipping and tax.
func (o *Order) RecomputeTotals() {
	items := Money{}
	for _, it := range o.Items {
		items = items.Add(it.Price.Times(it.Quantity))
	}
	o.ItemsPrice = items
	o.TotalPrice = items.Add(o.ShippingPrice).Add(o.TaxPrice)
}

type OrderItemRequest struct {
	ProductID string `json:"productId" validate:"required,mongodb"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=1000"`
}

type OrderRequest struct {
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
	ShippingAddress ShippingAddress    `json:"shippingAddress" validate:"required"`
	PaymentMethod   string             `json:"paymentMethod" validate:"required,oneof=credit_card debit_card upi net_banking cod"`
	ShippingPrice   Money              `json:"shippingPrice" validate:"gte=0"`
	TaxPrice        Money              `json:"taxPrice" validate:"gte=0"`
}

type OrderEdit struct {
	ShippingAddress *ShippingAddress `json:"shippingAddress,omitempty" validate:"omitempty"`
	ShippingPrice   *Money           `json:"shippingPrice,omitempty" validate:"omitempty,gte=0"`
	TaxPrice        *Money           `json:"taxPrice,omitempty" validate:"omitempty,gte=0"`
}

type OrderCancelRequest struct {
	Reason string `json:"reason" validate:"omitempty,oneof=customer_request payment_failed out_of_stock delivery_failed other"`
}

type OrderStatusUpdate struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed shipped delivered cancelled"`
}

type AssignDeliveryRequest struct {
	DeliveryUserID string `json:"deliveryUserId" validate:"required,mongodb"`
}

type DeliveryStatusUpdate struct {
	Status   string    `json:"status" validate:"required,oneof=pending picked_up in_transit delivered failed"`
	Location *GeoPoint `json:"location,omitempty" validate:"omitempty"`
	Notes    string    `json:"notes" validate:"max=500"`
}
