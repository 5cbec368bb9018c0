package logs

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/responder/pkg/models"
)

// MockSource returns a fixed set of synthetic error lines. It is used for
// demos and for services without a real log backend.
type MockSource struct{}

// NewMockSource creates a mock log source.
func NewMockSource() *MockSource { return &MockSource{} }

// Name implements Source.
func (*MockSource) Name() models.LogSource { return models.LogSourceMock }

var mockTraces = []string{
	`NullPointerException: Cannot read property 'billingAddress' of undefined
    at PaymentProcessor.processPayment (src/processors/PaymentProcessor.ts:142:23)
    at PaymentProcessor.validateBilling (src/processors/PaymentProcessor.ts:98:12)
    at OrderService.checkout (src/services/OrderService.ts:89:15)
    at OrderController.handleCheckout (src/controllers/OrderController.ts:45:22)`,
	`TypeError: Cannot destructure property 'street' of 'customer.billingAddress' as it is undefined
    at formatBillingAddress (src/utils/billing.ts:23:10)
    at PaymentProcessor.processPayment (src/processors/PaymentProcessor.ts:145:18)`,
}

var mockMessages = []struct{ level, msg string }{
	{"ERROR", "Request processing failed"},
	{"ERROR", "NullPointerException: Cannot read property 'billingAddress' of undefined"},
	{"ERROR", "at PaymentProcessor.processPayment (src/processors/PaymentProcessor.ts:142:23)"},
	{"ERROR", "at OrderService.checkout (src/services/OrderService.ts:89:15)"},
	{"FATAL", "Service health check failed - downstream payment processing errors exceeding threshold"},
	{"ERROR", "Rate of 5xx responses: 45% (threshold: 5%)"},
	{"ERROR", "Affected endpoint: POST /api/v1/orders/checkout"},
	{"ERROR", "Last successful deployment: v2.3.1 (2 hours ago)"},
}

// Fetch implements Source. Timestamps are spread across the query window.
func (*MockSource) Fetch(_ context.Context, q Query) (*Result, error) {
	step := q.End.Sub(q.Start) / time.Duration(len(mockMessages)+1)
	lines := make([]string, 0, len(mockMessages))
	for i, m := range mockMessages {
		ts := q.Start.Add(step * time.Duration(i+1)).UTC().Format(time.RFC3339)
		lines = append(lines, fmt.Sprintf("[%s] %s [%s] %s", ts, m.level, q.Service, m.msg))
	}
	return buildResult(lines, mockTraces, q.MaxLines), nil
}
