package model

const (
	RoleUser      = "user"
	RolePlayer    = "player"
	RoleCoach     = "coach"
	RoleAdmin     = "admin"
	RoleSeller    = "seller"
	RoleDelivery  = "delivery"
	RoleOrganizer = "organizer"
)

// Roles lists every role a user may hold.
var Roles = []string{RoleUser, RolePlayer, RoleCoach, RoleAdmin, RoleSeller, RoleDelivery, RoleOrganizer}

const (
	SportCricket    = "cricket"
	SportFootball   = "football"
	SportBasketball = "basketball"
	SportTennis     = "tennis"
	SportBadminton  = "badminton"
	SportSwimming   = "swimming"
)

const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
	BookingCompleted = "completed"
)

const (
	OrderPending   = "pending"
	OrderConfirmed = "confirmed"
	OrderShipped   = "shipped"
	OrderDelivered = "delivered"
	OrderCancelled = "cancelled"
)

const (
	DeliveryInfoPending   = "pending"
	DeliveryInfoPickedUp  = "picked_up"
	DeliveryInfoInTransit = "in_transit"
	DeliveryInfoDelivered = "delivered"
	DeliveryInfoFailed    = "failed"
)

const (
	DeliveryPending        = "Pending"
	DeliveryInTransit      = "In Transit"
	DeliveryOutForDelivery = "Out for Delivery"
	DeliveryDelivered      = "Delivered"
	DeliveryFailed         = "Failed"
	DeliveryReturned       = "Returned"
)

const (
	CancelCustomerRequest = "customer_request"
	CancelPaymentFailed   = "payment_failed"
	CancelOutOfStock      = "out_of_stock"
	CancelDeliveryFailed  = "delivery_failed"
	CancelOther           = "other"
)

const (
	TeamRoleCaptain     = "captain"
	TeamRoleViceCaptain = "vice-captain"
	TeamRolePlayer      = "player"
)

const (
	RegistrationPending  = "pending"
	RegistrationApproved = "approved"
	RegistrationRejected = "rejected"
)

// Weekdays is indexed by time.Weekday, so Weekdays[time.Sunday] == "sunday".
var Weekdays = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// Sports lists the sports a coach may specialise in and a booking may request.
var Sports = []string{SportCricket, SportFootball, SportBasketball, SportTennis, SportBadminton, SportSwimming}

// OrderStatuses lists every order status, cancelled included.
var OrderStatuses = []string{OrderPending, OrderConfirmed, OrderShipped, OrderDelivered, OrderCancelled}

func IsOrderStatus(s string) bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// DeliveryStatuses lists every shipment status.
var DeliveryStatuses = []string{DeliveryPending, DeliveryInTransit, DeliveryOutForDelivery, DeliveryDelivered, DeliveryFailed, DeliveryReturned}

func IsDeliveryStatus(s string) bool {
	for _, v := range DeliveryStatuses {
		if v == s {
			return true
		}
	}
	return false
}
