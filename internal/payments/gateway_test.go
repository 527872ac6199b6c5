package payments

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGatewayHonoursSuccessRate(t *testing.T) {
	req := ChargeRequest{Amount: decimal.NewFromInt(436)}

	always, err := NewMockGateway(1, rand.NewPCG(1, 2))
	require.NoError(t, err)
	never, err := NewMockGateway(0, rand.NewPCG(1, 2))
	require.NoError(t, err)

	for range 20 {
		ok, err := always.Charge(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, ok.Approved)
		assert.NotEmpty(t, ok.Reference)

		declined, err := never.Charge(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, declined.Approved)
		assert.Equal(t, declineReason, declined.DeclineReason)
	}
}

func TestMockGatewayIsDeterministicForSeed(t *testing.T) {
	req := ChargeRequest{Amount: decimal.NewFromInt(100)}
	a, err := NewMockGateway(0.5, rand.NewPCG(7, 7))
	require.NoError(t, err)
	b, err := NewMockGateway(0.5, rand.NewPCG(7, 7))
	require.NoError(t, err)

	for range 50 {
		left, err := a.Charge(context.Background(), req)
		require.NoError(t, err)
		right, err := b.Charge(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, left.Approved, right.Approved)
	}
}

func TestMockGatewayValidation(t *testing.T) {
	_, err := NewMockGateway(1.5, nil)
	require.Error(t, err)

	gw, err := NewMockGateway(1, nil)
	require.NoError(t, err)
	_, err = gw.Charge(context.Background(), ChargeRequest{Amount: decimal.Zero})
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = gw.Charge(ctx, minimalCharge())
	require.Error(t, err)
}

func minimalCharge() ChargeRequest {
	return ChargeRequest{Amount: decimal.NewFromInt(1)}
}
