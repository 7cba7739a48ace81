package enums

// OutboxAggregateType is the aggregate_type column of outbox_events. It also
// becomes the Pub/Sub ordering scope together with the aggregate id.
type OutboxAggregateType string

const (
	AggregateOrder    OutboxAggregateType = "order"
	AggregateBasket   OutboxAggregateType = "basket"
	AggregateStockLot OutboxAggregateType = "stock_lot"
)

var aggregateTypes = []OutboxAggregateType{AggregateOrder, AggregateBasket, AggregateStockLot}

func (a OutboxAggregateType) IsValid() bool { return isOneOf(a, aggregateTypes) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parseOneOf("aggregate type", value, aggregateTypes)
}

// OutboxEventType is the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderCreated        OutboxEventType = "order_created"
	EventOrderStateChanged   OutboxEventType = "order_state_changed"
	EventOrderExpired        OutboxEventType = "order_expired"
	EventOrderArchived       OutboxEventType = "order_archived"
	EventOrderDeleted        OutboxEventType = "order_deleted"
	EventBasketAttached      OutboxEventType = "basket_attached"
	EventBasketChanged       OutboxEventType = "basket_changed"
	EventStockReplenished    OutboxEventType = "stock_replenished"
	EventStockLotDeactivated OutboxEventType = "stock_lot_deactivated"
)

var outboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStateChanged,
	EventOrderExpired,
	EventOrderArchived,
	EventOrderDeleted,
	EventBasketAttached,
	EventBasketChanged,
	EventStockReplenished,
	EventStockLotDeactivated,
}

func (e OutboxEventType) IsValid() bool { return isOneOf(e, outboxEventTypes) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parseOneOf("event type", value, outboxEventTypes)
}
