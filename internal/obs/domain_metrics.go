package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SalesTotal counts confirmed sales by payment method.
	SalesTotal *prometheus.CounterVec
	// SalesAmount accumulates confirmed sale totals by payment method.
	SalesAmount *prometheus.CounterVec
	// StockMovementsTotal counts ledger entries by movement type.
	StockMovementsTotal *prometheus.CounterVec
	// BackupsTotal counts product snapshots by kind (auto or manual).
	BackupsTotal *prometheus.CounterVec
	// RestoresTotal counts restore attempts by result.
	RestoresTotal *prometheus.CounterVec
	// CartRejectionsTotal counts cart mutations refused by reason.
	CartRejectionsTotal *prometheus.CounterVec
	// ImportRecordsTotal counts imported records by outcome.
	ImportRecordsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers point-of-sale Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SalesTotal = newCounterVec(reg, namespace, "sales_total", "Count of confirmed sales.", "payment_method")
		SalesAmount = newCounterVec(reg, namespace, "sales_amount_total", "Sum of confirmed sale totals in currency units.", "payment_method")
		StockMovementsTotal = newCounterVec(reg, namespace, "stock_movements_total", "Count of stock ledger entries.", "type")
		BackupsTotal = newCounterVec(reg, namespace, "backups_total", "Count of product snapshots taken.", "kind")
		RestoresTotal = newCounterVec(reg, namespace, "restores_total", "Count of snapshot restore attempts.", "result")
		CartRejectionsTotal = newCounterVec(reg, namespace, "cart_rejections_total", "Count of refused cart mutations.", "reason")
		ImportRecordsTotal = newCounterVec(reg, namespace, "import_records_total", "Count of imported product records by outcome.", "result")
	})
}

func newCounterVec(reg prometheus.Registerer, namespace, name, help string, labels ...string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels)
	mustRegisterCollector(reg, vec, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			vec = v
		}
	})
	return vec
}

// CountSale records a confirmed sale. It is a no-op until metrics are registered.
func CountSale(method string, total float64) {
	if SalesTotal != nil {
		SalesTotal.WithLabelValues(method).Inc()
	}
	if SalesAmount != nil && total > 0 {
		SalesAmount.WithLabelValues(method).Add(total)
	}
}

// CountMovement records one ledger entry of the given type.
func CountMovement(kind string) {
	inc(StockMovementsTotal, kind)
}

// CountBackup records a snapshot; kind is "auto" or "manual".
func CountBackup(kind string) {
	inc(BackupsTotal, kind)
}

// CountRestore records a restore outcome.
func CountRestore(result string) {
	inc(RestoresTotal, result)
}

// CountCartRejection records a refused cart mutation.
func CountCartRejection(reason string) {
	inc(CartRejectionsTotal, reason)
}

// CountImportRecords adds n records with the given outcome.
func CountImportRecords(result string, n int) {
	if ImportRecordsTotal != nil && n > 0 {
		ImportRecordsTotal.WithLabelValues(result).Add(float64(n))
	}
}

func inc(vec *prometheus.CounterVec, label string) {
	if vec != nil {
		vec.WithLabelValues(label).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
