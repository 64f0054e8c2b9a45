package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "storefront"

// CartMetrics counts cart mutations by operation and whether they changed the cart.
type CartMetrics struct {
	mutations *prometheus.CounterVec
}

func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_mutations_total",
		Help:      "Cart mutations partitioned by operation and result (applied|noop).",
	}, []string{"op", "result"})
	reg.MustRegister(mutations)
	return &CartMetrics{mutations: mutations}
}

// Mutation records one cart operation.
func (c *CartMetrics) Mutation(op string, changed bool) {
	if c == nil || c.mutations == nil {
		return
	}
	result := "noop"
	if changed {
		result = "applied"
	}
	c.mutations.WithLabelValues(normalizeLabel(op), result).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
