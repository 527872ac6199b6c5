package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agromart"

// Cart sync outcomes, one per local line.
const (
	SyncOutcomeMerged         = "merged"
	SyncOutcomeAdded          = "added"
	SyncOutcomeSkippedMissing = "skipped_missing"
	SyncOutcomeSkippedStock   = "skipped_out_of_stock"
	SyncOutcomeSkippedInvalid = "skipped_invalid_quantity"
	SyncOutcomeFailed         = "failed"
)

// Commerce holds the business counters for carts, coupons, orders and payments.
// A nil *Commerce is valid and records nothing.
type Commerce struct {
	cartSync          *prometheus.CounterVec
	couponValidations *prometheus.CounterVec
	ordersCreated     prometheus.Counter
	orderTotals       prometheus.Histogram
	orderTransitions  *prometheus.CounterVec
	payments          *prometheus.CounterVec
}

// NewCommerce registers the commerce metrics on reg.
func NewCommerce(reg prometheus.Registerer) *Commerce {
	if reg == nil {
		return nil
	}
	c := &Commerce{
		cartSync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_sync_items_total",
			Help:      "Local cart lines processed by cart sync, by outcome.",
		}, []string{"outcome"}),
		couponValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_validations_total",
			Help:      "Coupon validation attempts, by result.",
		}, []string{"result"}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders committed at checkout.",
		}),
		orderTotals: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_total_amount",
			Help:      "Grand total of committed orders in currency units.",
			Buckets:   []float64{100, 500, 1000, 2500, 5000, 10000, 25000, 50000},
		}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_transitions_total",
			Help:      "Order status changes, by source and target status.",
		}, []string{"from", "to"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment attempts, by method and resulting status.",
		}, []string{"method", "status"}),
	}
	reg.MustRegister(c.cartSync, c.couponValidations, c.ordersCreated, c.orderTotals, c.orderTransitions, c.payments)
	return c
}

func (c *Commerce) CartSyncItem(outcome string) {
	if c == nil {
		return
	}
	c.cartSync.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (c *Commerce) CouponValidation(result string) {
	if c == nil {
		return
	}
	c.couponValidations.WithLabelValues(normalizeLabel(result)).Inc()
}

// OrderCreated counts a committed order and observes its total.
func (c *Commerce) OrderCreated(total float64) {
	if c == nil {
		return
	}
	c.ordersCreated.Inc()
	c.orderTotals.Observe(total)
}

func (c *Commerce) OrderTransition(from, to string) {
	if c == nil {
		return
	}
	c.orderTransitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (c *Commerce) Payment(method, status string) {
	if c == nil {
		return
	}
	c.payments.WithLabelValues(normalizeLabel(method), normalizeLabel(status)).Inc()
}
