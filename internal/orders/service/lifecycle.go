package service

import "teamup/pkg/model"

// orderRank orders the forward-only order statuses. Cancelled sits outside
// the sequence and is reached only through Cancel.
var orderRank = map[string]int{
	model.OrderPending:   0,
	model.OrderConfirmed: 1,
	model.OrderShipped:   2,
	model.OrderDelivered: 3,
}

// CanAdvanceOrder reports whether an order may move from one status to another.
func CanAdvanceOrder(from, to string) bool {
	f, okFrom := orderRank[from]
	t, okTo := orderRank[to]
	return okFrom && okTo && t > f
}

var deliveryRank = map[string]int{
	model.DeliveryInfoPending:   0,
	model.DeliveryInfoPickedUp:  1,
	model.DeliveryInfoInTransit: 2,
	model.DeliveryInfoDelivered: 3,
}

func deliveryTerminal(status string) bool {
	return status == model.DeliveryInfoDelivered || status == model.DeliveryInfoFailed
}

// CanAdvanceDelivery reports whether the delivery sub-state may move from one
// status to another. Failed is reachable from any non-terminal state.
func CanAdvanceDelivery(from, to string) bool {
	if deliveryTerminal(from) {
		return false
	}
	if to == model.DeliveryInfoFailed {
		return true
	}
	f, okFrom := deliveryRank[from]
	t, okTo := deliveryRank[to]
	return okFrom && okTo && t > f
}
