package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestStockMetricsCountsReservationsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStockMetrics(reg)
	m.IncReservation(ReservationReserved)
	m.IncReservation(ReservationReserved)
	m.IncReservation(ReservationOutOfStock)
	m.IncReservation("")
	m.AddReleased(4)
	m.AddReleased(-1)
	m.AddSupplied(10)

	got := gather(t, reg)
	for result, want := range map[string]float64{
		ReservationReserved:   2,
		ReservationOutOfStock: 1,
		ReservationError:      1,
	} {
		if v := got.counter(t, "stock_reservations_total", "result", result); v != want {
			t.Fatalf("result %s = %v, want %v", result, v, want)
		}
	}
	if v := got.counter(t, "stock_released_units_total", "", ""); v != 4 {
		t.Fatalf("released units = %v, want 4", v)
	}
	if v := got.counter(t, "stock_supplied_units_total", "", ""); v != 10 {
		t.Fatalf("supplied units = %v, want 10", v)
	}
}

func TestStockMetricsNilSafe(t *testing.T) {
	var m *StockMetrics
	m.IncReservation(ReservationReserved)
	m.AddReleased(1)
	m.AddSupplied(1)

	NewStockMetrics(nil).IncReservation(ReservationReserved)
}
