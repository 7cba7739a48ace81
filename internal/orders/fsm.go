package orders

import (
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
)

// transitions is the complete order lifecycle graph. ARCHIVED is terminal.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusInitiated: {enums.OrderStatusPaying, enums.OrderStatusExpired, enums.OrderStatusArchived},
	enums.OrderStatusPaying:    {enums.OrderStatusInitiated, enums.OrderStatusPaid, enums.OrderStatusExpired, enums.OrderStatusArchived},
	enums.OrderStatusPaid:      {enums.OrderStatusShipping, enums.OrderStatusArchived},
	enums.OrderStatusShipping:  {enums.OrderStatusDelivered, enums.OrderStatusArchived},
	enums.OrderStatusDelivered: {enums.OrderStatusArchived},
	enums.OrderStatusExpired:   {enums.OrderStatusArchived},
	enums.OrderStatusArchived:  {},
}

// requestable lists the transitions callers may ask for directly. Everything
// else is driven by baskets, the expiration sweep or archive/delete.
var requestable = map[enums.OrderStatus]enums.OrderStatus{
	enums.OrderStatusPaying:   enums.OrderStatusPaid,
	enums.OrderStatusPaid:     enums.OrderStatusShipping,
	enums.OrderStatusShipping: enums.OrderStatusDelivered,
}

// CanTransition reports whether the lifecycle graph has an edge from -> to.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanRequest reports whether from -> to may be requested through ChangeStatus.
func CanRequest(from, to enums.OrderStatus) bool {
	next, ok := requestable[from]
	return ok && next == to
}

func invalidTransition(from, to enums.OrderStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order cannot move from %s to %s", from, to).
		WithDetails(map[string]any{"from": from, "to": to})
}
