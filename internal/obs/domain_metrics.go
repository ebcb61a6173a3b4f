package obs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PaymentOrderTotal counts order creation outcomes.
	PaymentOrderTotal *prometheus.CounterVec
	// PaymentVerifyTotal counts checkout verification outcomes.
	PaymentVerifyTotal *prometheus.CounterVec
	// PaymentWebhookTotal counts inbound payment webhook outcomes.
	PaymentWebhookTotal *prometheus.CounterVec
	// AuthFailuresTotal counts rejected requests by sub-cause.
	AuthFailuresTotal *prometheus.CounterVec
	// ValidationFailuresTotal counts requests rejected by input guards.
	ValidationFailuresTotal *prometheus.CounterVec
	// ReceiptEmailsTotal counts receipt email task outcomes.
	ReceiptEmailsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		counter := func(name, help string, labels ...string) *prometheus.CounterVec {
			return registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      name,
				Help:      help,
			}, labels))
		}
		PaymentOrderTotal = counter("payment_order_total", "Count of payment order creation outcomes.", "result")
		PaymentVerifyTotal = counter("payment_verify_total", "Count of payment verification outcomes.", "result")
		PaymentWebhookTotal = counter("payment_webhook_total", "Count of processed payment webhooks by event and outcome.", "event", "result")
		AuthFailuresTotal = counter("auth_failures_total", "Count of rejected authentication attempts by reason.", "reason")
		ValidationFailuresTotal = counter("validation_failures_total", "Count of requests rejected by input validation.", "guard")
		ReceiptEmailsTotal = counter("receipt_emails_total", "Count of payment receipt email outcomes.", "result")
	})
}

// registerOrReuse registers c, returning the already registered collector of
// the same type when one exists.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
	return c
}

func inc(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}

// RecordPaymentOrder counts an order creation outcome.
func RecordPaymentOrder(result string) { inc(PaymentOrderTotal, result) }

// RecordPaymentVerify counts a verification outcome.
func RecordPaymentVerify(result string) { inc(PaymentVerifyTotal, result) }

// RecordPaymentWebhook counts a webhook outcome.
func RecordPaymentWebhook(event, result string) { inc(PaymentWebhookTotal, event, result) }

// RecordAuthFailure counts a rejected authentication.
func RecordAuthFailure(reason string) { inc(AuthFailuresTotal, reason) }

// RecordValidationFailure counts a guard rejection.
func RecordValidationFailure(guard string) { inc(ValidationFailuresTotal, guard) }

// RecordReceiptEmail counts a receipt delivery outcome.
func RecordReceiptEmail(result string) { inc(ReceiptEmailsTotal, result) }
