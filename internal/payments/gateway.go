package payments

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agromart/agromart-backend/pkg/enums"
)

// ChargeRequest is what the gateway needs to attempt a payment.
type ChargeRequest struct {
	IntentID uuid.UUID
	OrderID  uuid.UUID
	Amount   decimal.Decimal
	Method   enums.PaymentMethod
}

// ChargeResult is the gateway's verdict. A declined charge is not an error.
type ChargeResult struct {
	Approved      bool
	Reference     string
	DeclineReason string
}

// Gateway charges online payment methods.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

const (
	declineReason = "card_declined"
	// orderClosedReason marks a charge approved after the order was cancelled.
	orderClosedReason = "order_closed"
)

// MockGateway approves a configurable share of charges.
type MockGateway struct {
	successRate float64

	mu   sync.Mutex
	rand *rand.Rand
}

// NewMockGateway returns a gateway approving charges with probability successRate.
// A nil source seeds from the runtime's random generator.
func NewMockGateway(successRate float64, src rand.Source) (*MockGateway, error) {
	if successRate < 0 || successRate > 1 {
		return nil, fmt.Errorf("success rate must be within [0, 1], got %v", successRate)
	}
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &MockGateway{successRate: successRate, rand: rand.New(src)}, nil
}

func (g *MockGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return ChargeResult{}, err
	}
	if !req.Amount.IsPositive() {
		return ChargeResult{}, fmt.Errorf("charge amount must be positive")
	}

	g.mu.Lock()
	roll := g.rand.Float64()
	g.mu.Unlock()

	if roll < g.successRate {
		return ChargeResult{Approved: true, Reference: "mock_" + uuid.NewString()}, nil
	}
	return ChargeResult{Approved: false, DeclineReason: declineReason}, nil
}
