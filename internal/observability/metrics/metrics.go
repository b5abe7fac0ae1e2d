// Package metrics exposes prometheus counters for engine operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Module provides the engine metrics collectors.
var Module = fx.Module("observability.metrics",
	fx.Provide(New),
)

type Metrics struct {
	invoicesActivated *prometheus.CounterVec
	invoicesCancelled prometheus.Counter
	paymentsApplied   *prometheus.CounterVec
	journalEntries    *prometheus.CounterVec
	stockMovements    *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		invoicesActivated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgerline",
			Name:      "invoices_activated_total",
			Help:      "Invoices that left DRAFT and applied balance and stock effects.",
		}, []string{"status"}),
		invoicesCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgerline",
			Name:      "invoices_cancelled_total",
			Help:      "Invoices cancelled, including reversals of active invoices.",
		}),
		paymentsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgerline",
			Name:      "payments_total",
			Help:      "Payment operations by action.",
		}, []string{"action"}),
		journalEntries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgerline",
			Name:      "journal_entries_total",
			Help:      "Journal entries posted by source type.",
		}, []string{"source_type"}),
		stockMovements: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgerline",
			Name:      "stock_movements_total",
			Help:      "Stock movements recorded by kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) RecordInvoiceActivated(status string) {
	if m == nil {
		return
	}
	m.invoicesActivated.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordInvoiceCancelled() {
	if m == nil {
		return
	}
	m.invoicesCancelled.Inc()
}

func (m *Metrics) RecordPayment(action string) {
	if m == nil {
		return
	}
	m.paymentsApplied.WithLabelValues(action).Inc()
}

func (m *Metrics) RecordJournalEntry(sourceType string) {
	if m == nil {
		return
	}
	m.journalEntries.WithLabelValues(sourceType).Inc()
}

func (m *Metrics) RecordStockMovement(kind string) {
	if m == nil {
		return
	}
	m.stockMovements.WithLabelValues(kind).Inc()
}
