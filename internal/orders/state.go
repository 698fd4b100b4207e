package orders

import "github.com/angelmondragon/porter-backend/pkg/enums"

var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:   {enums.OrderStatusInTransit, enums.OrderStatusCancelled},
	enums.OrderStatusInTransit: {enums.OrderStatusDelivered, enums.OrderStatusCancelled},
}

// CanTransition reports whether an order in from may move to to.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
