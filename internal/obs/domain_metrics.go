package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartQuoteTotal counts pricing pipeline runs triggered by cart mutations.
	CartQuoteTotal prometheus.Counter
	// ScopeRefreshTotal counts commercial scope loads by outcome.
	ScopeRefreshTotal *prometheus.CounterVec
	// OrdersSubmittedTotal counts checkout submissions by outcome.
	OrdersSubmittedTotal *prometheus.CounterVec
	// NotifyDeliveriesTotal tracks order notification delivery outcomes.
	NotifyDeliveriesTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartQuoteTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_quote_total",
			Help:      "Number of pricing pipeline recomputations.",
		})
		ScopeRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scope_refresh_total",
			Help:      "Commercial scope loads by outcome.",
		}, []string{"result"})
		OrdersSubmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_submitted_total",
			Help:      "Checkout submissions by outcome.",
		}, []string{"result"})
		NotifyDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_deliveries_total",
			Help:      "Order notification delivery outcomes.",
		}, []string{"result"})

		mustRegisterCollector(reg, CartQuoteTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				CartQuoteTotal = v
			}
		})
		mustRegisterCollector(reg, ScopeRefreshTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ScopeRefreshTotal = v
			}
		})
		mustRegisterCollector(reg, OrdersSubmittedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrdersSubmittedTotal = v
			}
		})
		mustRegisterCollector(reg, NotifyDeliveriesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				NotifyDeliveriesTotal = v
			}
		})
	})
}

// IncCartQuote increments the quote counter when metrics are registered.
// Components call it unconditionally; without registration it is a no-op.
func IncCartQuote() {
	if CartQuoteTotal != nil {
		CartQuoteTotal.Inc()
	}
}

// IncScopeRefresh records a scope load outcome when metrics are registered.
func IncScopeRefresh(result string) {
	if ScopeRefreshTotal != nil {
		ScopeRefreshTotal.WithLabelValues(result).Inc()
	}
}

// IncOrderSubmitted records a checkout outcome when metrics are registered.
func IncOrderSubmitted(result string) {
	if OrdersSubmittedTotal != nil {
		OrdersSubmittedTotal.WithLabelValues(result).Inc()
	}
}

// IncNotifyDelivery records a notification outcome when metrics are registered.
func IncNotifyDelivery(result string) {
	if NotifyDeliveriesTotal != nil {
		NotifyDeliveriesTotal.WithLabelValues(result).Inc()
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
