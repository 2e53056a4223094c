package payment

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"gymdesk/internal/models"
)

// SimulatedGateway approves a configurable share of charges. It stands in for
// a real processor; card details are validated for shape only and never
// stored.
type SimulatedGateway struct {
	successRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulatedGateway(successRate float64, seed int64) *SimulatedGateway {
	return &SimulatedGateway{
		successRate: successRate,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (g *SimulatedGateway) Charge(ctx context.Context, info models.PaymentInfo) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := validateCard(info); err != nil {
		return false, err
	}

	g.mu.Lock()
	roll := g.rng.Float64()
	g.mu.Unlock()

	return roll < g.successRate, nil
}

func validateCard(info models.PaymentInfo) error {
	number := strings.ReplaceAll(info.CardNumber, " ", "")
	if len(number) < 12 || len(number) > 19 {
		return fmt.Errorf("invalid card number length: %d", len(number))
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return fmt.Errorf("card number contains non-digit characters")
		}
	}
	if info.CardholderName == "" {
		return fmt.Errorf("cardholder name is required")
	}
	return nil
}

// StaticGateway always returns a fixed result. Used in tests.
type StaticGateway struct {
	Approve bool
	Err     error
}

func (g *StaticGateway) Charge(ctx context.Context, info models.PaymentInfo) (bool, error) {
	if g.Err != nil {
		return false, g.Err
	}
	return g.Approve, nil
}
