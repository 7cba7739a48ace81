package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Reservation outcomes recorded by StockMetrics.
const (
	ReservationReserved   = "reserved"
	ReservationOutOfStock = "out_of_stock"
	ReservationNotFound   = "not_found"
	ReservationError      = "error"
)

// StockMetrics counts stock ledger activity.
type StockMetrics struct {
	reservations  *prometheus.CounterVec
	releasedUnits prometheus.Counter
	suppliedUnits prometheus.Counter
}

// NewStockMetrics registers the stock ledger metrics on the provided registerer.
func NewStockMetrics(reg prometheus.Registerer) *StockMetrics {
	if reg == nil {
		return &StockMetrics{}
	}
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservations_total",
		Help: "Stock reservation attempts by result.",
	}, []string{"result"})
	released := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_released_units_total",
		Help: "Units returned to stock by releases.",
	})
	supplied := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_supplied_units_total",
		Help: "Units added to stock by replenishments.",
	})
	reg.MustRegister(reservations, released, supplied)
	return &StockMetrics{
		reservations:  reservations,
		releasedUnits: released,
		suppliedUnits: supplied,
	}
}

// IncReservation records one reservation attempt with the given result.
func (s *StockMetrics) IncReservation(result string) {
	if s == nil || s.reservations == nil {
		return
	}
	if result == "" {
		result = ReservationError
	}
	s.reservations.WithLabelValues(result).Inc()
}

// AddReleased records units returned to stock.
func (s *StockMetrics) AddReleased(units int) {
	if s == nil || s.releasedUnits == nil || units <= 0 {
		return
	}
	s.releasedUnits.Add(float64(units))
}

// AddSupplied records units added by a replenishment.
func (s *StockMetrics) AddSupplied(units int) {
	if s == nil || s.suppliedUnits == nil || units <= 0 {
		return
	}
	s.suppliedUnits.Add(float64(units))
}
