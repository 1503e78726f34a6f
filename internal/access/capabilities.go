package access

import "teamup/pkg/model"

// Operation names a guarded action.
type Operation string

const (
	BookingCreate       Operation = "booking.create"
	BookingRead         Operation = "booking.read"
	BookingListForCoach Operation = "booking.list_for_coach"
	BookingUpdateStatus Operation = "booking.update_status"
	BookingRate         Operation = "booking.rate"

	CoachCreate         Operation = "coach.create"
	CoachUpdate         Operation = "coach.update"
	CoachUpdateSchedule Operation = "coach.update_schedule"

	OrderCreate               Operation = "order.create"
	OrderRead                 Operation = "order.read"
	OrderListForSeller        Operation = "order.list_for_seller"
	OrderListAll              Operation = "order.list_all"
	OrderEdit                 Operation = "order.edit"
	OrderCancel               Operation = "order.cancel"
	OrderUpdateStatus         Operation = "order.update_status"
	OrderAssignDelivery       Operation = "order.assign_delivery"
	OrderUpdateDeliveryStatus Operation = "order.update_delivery_status"

	DeliveryCreate       Operation = "delivery.create"
	DeliveryRead         Operation = "delivery.read"
	DeliveryList         Operation = "delivery.list"
	DeliveryUpdateStatus Operation = "delivery.update_status"

	ProductCreate Operation = "product.create"
	ProductManage Operation = "product.manage"
	ProductReview Operation = "product.review"

	TeamCreate Operation = "team.create"
	TeamManage Operation = "team.manage"

	TournamentCreate   Operation = "tournament.create"
	TournamentRegister Operation = "tournament.register"
	TournamentManage   Operation = "tournament.manage"

	UserReadSelf  Operation = "user.read_self"
	UserProvision Operation = "user.provision"
	UserManage    Operation = "user.manage"
)

// capabilities is the single place that decides which roles may attempt an
// operation. Ownership is checked afterwards by the owning service.
var capabilities = map[Operation][]string{
	BookingCreate:       model.Roles,
	BookingRead:         model.Roles,
	BookingListForCoach: {model.RoleCoach, model.RoleAdmin},
	BookingUpdateStatus: {model.RoleCoach, model.RoleAdmin},
	BookingRate:         model.Roles,

	CoachCreate:         {model.RoleCoach, model.RoleAdmin},
	CoachUpdate:         {model.RoleCoach, model.RoleAdmin},
	CoachUpdateSchedule: {model.RoleCoach, model.RoleAdmin},

	OrderCreate:               model.Roles,
	OrderRead:                 model.Roles,
	OrderListForSeller:        {model.RoleSeller, model.RoleAdmin},
	OrderListAll:              {model.RoleAdmin},
	OrderEdit:                 {model.RoleAdmin},
	OrderCancel:               model.Roles,
	OrderUpdateStatus:         {model.RoleSeller, model.RoleAdmin},
	OrderAssignDelivery:       {model.RoleDelivery, model.RoleAdmin},
	OrderUpdateDeliveryStatus: {model.RoleDelivery, model.RoleAdmin},

	DeliveryCreate:       {model.RoleAdmin},
	DeliveryRead:         model.Roles,
	DeliveryList:         {model.RoleDelivery, model.RoleAdmin},
	DeliveryUpdateStatus: {model.RoleAdmin},

	ProductCreate: {model.RoleSeller, model.RoleAdmin},
	ProductManage: {model.RoleSeller, model.RoleAdmin},
	ProductReview: model.Roles,

	TeamCreate: {model.RoleUser, model.RolePlayer, model.RoleCoach, model.RoleOrganizer, model.RoleAdmin},
	TeamManage: model.Roles,

	TournamentCreate:   {model.RoleOrganizer, model.RoleAdmin},
	TournamentRegister: model.Roles,
	TournamentManage:   {model.RoleOrganizer, model.RoleAdmin},

	UserReadSelf:  model.Roles,
	UserProvision: {model.RoleAdmin},
	UserManage:    {model.RoleAdmin},
}

// Allowed reports whether role may attempt op. Unknown operations are denied.
func Allowed(op Operation, role string) bool {
	for _, r := range capabilities[op] {
		if r == role {
			return true
		}
	}
	return false
}

// Roles returns the roles permitted for op.
func Roles(op Operation) []string {
	return append([]string(nil), capabilities[op]...)
}
