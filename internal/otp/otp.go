// Package otp covers delivery-code generation and brute-force guarding.
package otp

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/hostelcart/batch-engine/internal/domain"
)

// Generator produces a fresh delivery code. The code proves physical receipt
// of an order; it is not an auth credential, so a seeded PRNG is acceptable.
type Generator func() string

// NewGenerator returns a Generator backed by intn (rand.Intn in production,
// injectable for tests).
func NewGenerator(intn func(n int) int) Generator {
	if intn == nil {
		intn = rand.Intn
	}
	return func() string {
		return fmt.Sprintf("%04d", domain.OTPMin+intn(domain.OTPMax-domain.OTPMin+1))
	}
}

// AttemptLimiter bounds how often delivery-code verification may be attempted
// per order, to keep the 4-digit space from being guessable.
type AttemptLimiter interface {
	Allow(ctx context.Context, orderID string) (bool, error)
}
