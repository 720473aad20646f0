package guard

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics содержит Prometheus-метрики конвейера
type Metrics struct {
	verdicts     *prometheus.CounterVec
	vetoes       *prometheus.CounterVec
	oracleErrors *prometheus.CounterVec
	spongeCells  *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// NewMetrics создаёт метрики и регистрирует их в reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockguard",
			Name:      "verdicts_total",
			Help:      "Число проверенных событий по категории и результату.",
		}, []string{"category", "verdict"}),
		vetoes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockguard",
			Name:      "vetoes_total",
			Help:      "Число запретов по категории и сработавшей проверке.",
		}, []string{"category", "check"}),
		oracleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockguard",
			Name:      "oracle_errors_total",
			Help:      "Ошибки внешних оракулов (регионы, чёрный список, сундуки).",
		}, []string{"oracle"}),
		spongeCells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockguard",
			Name:      "sponge_cells_changed_total",
			Help:      "Клетки, изменённые губками.",
		}, []string{"op"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "blockguard",
			Name:      "evaluation_duration_seconds",
			Help:      "Время проверки одного события.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		}, []string{"category"}),
	}
	reg.MustRegister(m.verdicts, m.vetoes, m.oracleErrors, m.spongeCells, m.duration)
	return m
}

func (m *Metrics) observe(c Category, v Verdict, seconds float64) {
	if m == nil {
		return
	}
	result := "allow"
	if v.Vetoed {
		result = "veto"
		m.vetoes.WithLabelValues(string(c), v.Check).Inc()
	}
	m.verdicts.WithLabelValues(string(c), result).Inc()
	m.duration.WithLabelValues(string(c)).Observe(seconds)
}

func (m *Metrics) oracleError(oracle string) {
	if m == nil {
		return
	}
	m.oracleErrors.WithLabelValues(oracle).Inc()
}

func (m *Metrics) sponge(op string, cells int) {
	if m == nil {
		return
	}
	m.spongeCells.WithLabelValues(op).Add(float64(cells))
}
