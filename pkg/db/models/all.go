package models

// All lists every persisted model in dependency order, for AutoMigrate in
// sqlite-backed dev runs and tests. Postgres schemas come from goose migrations.
func All() []any {
	return []any{
		&Customer{},
		&DeliveryZone{},
		&StockLot{},
		&SupplyEntry{},
		&Order{},
		&Basket{},
		&BasketLineItem{},
		&PaymentRecord{},
		&IncomeRecord{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
