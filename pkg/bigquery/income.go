package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
)

type rowInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
	IncomeTable() string
}

// IncomeRow is the BigQuery shape of one daily income record.
type IncomeRow struct {
	Date           string
	SupplyItems    int64
	SupplyPayments string
	WebItems       int64
	WebPayments    string
	DirectItems    int64
	DirectPayments string
	TotalIncome    string
	GeneratedAt    time.Time
}

// Save implements bigquery.ValueSaver. The insert id makes retried streams of
// the same generation deduplicate on the BigQuery side.
func (r IncomeRow) Save() (map[string]bigquery.Value, string, error) {
	return map[string]bigquery.Value{
		"date":            r.Date,
		"supply_items":    r.SupplyItems,
		"supply_payments": r.SupplyPayments,
		"web_items":       r.WebItems,
		"web_payments":    r.WebPayments,
		"direct_items":    r.DirectItems,
		"direct_payments": r.DirectPayments,
		"total_income":    r.TotalIncome,
		"generated_at":    r.GeneratedAt,
	}, fmt.Sprintf("%s@%d", r.Date, r.GeneratedAt.UnixNano()), nil
}

// IncomeRowFromRecord maps a persisted income record onto its export row.
func IncomeRowFromRecord(rec models.IncomeRecord) IncomeRow {
	return IncomeRow{
		Date:           fmt.Sprintf("%04d-%02d-%02d", rec.Year, rec.Month, rec.Day),
		SupplyItems:    rec.TotalSupply.Items,
		SupplyPayments: rec.TotalSupply.Payments.StringFixed(4),
		WebItems:       rec.WebOrderSale.Items,
		WebPayments:    rec.WebOrderSale.Payments.StringFixed(4),
		DirectItems:    rec.DirectPurchaseSale.Items,
		DirectPayments: rec.DirectPurchaseSale.Payments.StringFixed(4),
		TotalIncome:    rec.TotalIncome.StringFixed(4),
		GeneratedAt:    rec.GeneratedAt.UTC(),
	}
}

// IncomeExporter streams income records into the configured table.
type IncomeExporter struct {
	client rowInserter
}

func NewIncomeExporter(client rowInserter) (*IncomeExporter, error) {
	if client == nil {
		return nil, errClientNotInitialized
	}
	if client.IncomeTable() == "" {
		return nil, errTableNameRequired
	}
	return &IncomeExporter{client: client}, nil
}

// ExportIncome streams the records. Empty input is a no-op.
func (e *IncomeExporter) ExportIncome(ctx context.Context, records []models.IncomeRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, IncomeRowFromRecord(rec))
	}
	if err := e.client.InsertRows(ctx, e.client.IncomeTable(), rows); err != nil {
		return fmt.Errorf("export income rows: %w", err)
	}
	return nil
}
