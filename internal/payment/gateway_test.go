package payment

import (
	"context"
	"errors"
	"testing"

	"gymdesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCard() models.PaymentInfo {
	return models.PaymentInfo{
		CardNumber:     "4242 4242 4242 4242",
		CardholderName: "Dana Kim",
	}
}

func TestSimulatedGatewayRates(t *testing.T) {
	ctx := context.Background()

	always := NewSimulatedGateway(1.0, 1)
	for i := 0; i < 20; i++ {
		ok, err := always.Charge(ctx, validCard())
		require.NoError(t, err)
		assert.True(t, ok)
	}

	never := NewSimulatedGateway(0.0, 1)
	for i := 0; i < 20; i++ {
		ok, err := never.Charge(ctx, validCard())
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestSimulatedGatewayValidation(t *testing.T) {
	ctx := context.Background()
	g := NewSimulatedGateway(1.0, 1)

	short := validCard()
	short.CardNumber = "1234"
	_, err := g.Charge(ctx, short)
	assert.Error(t, err)

	letters := validCard()
	letters.CardNumber = "4242abcd42424242"
	_, err = g.Charge(ctx, letters)
	assert.Error(t, err)

	noName := validCard()
	noName.CardholderName = ""
	_, err = g.Charge(ctx, noName)
	assert.Error(t, err)
}

func TestSimulatedGatewayContextCancelled(t *testing.T) {
	g := NewSimulatedGateway(1.0, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Charge(ctx, validCard())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStaticGateway(t *testing.T) {
	ctx := context.Background()

	ok, err := (&StaticGateway{Approve: true}).Charge(ctx, validCard())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = (&StaticGateway{Approve: false}).Charge(ctx, validCard())
	require.NoError(t, err)
	assert.False(t, ok)

	boom := errors.New("gateway offline")
	_, err = (&StaticGateway{Err: boom}).Charge(ctx, validCard())
	assert.ErrorIs(t, err, boom)
}
