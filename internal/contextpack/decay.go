package contextpack

import (
	"fmt"
	"math"
	"strings"
)

// DefaultHalfLife is the recency half-life in chapters.
const DefaultHalfLife = 10.0

// Decay names
const (
	DecayExponential = "exponential"
	DecayHyperbolic  = "hyperbolic"
)

// DecayFunc maps a chapter distance to a recency weight in (0, 1].
type DecayFunc func(distance int) float64

// Exponential halves the weight every halfLife chapters: 2^(-d/halfLife).
func Exponential(halfLife float64) DecayFunc {
	if halfLife <= 0 {
		halfLife = DefaultHalfLife
	}
	return func(d int) float64 {
		return math.Pow(2, -float64(max(d, 0))/halfLife)
	}
}

// Hyperbolic is 1/(1+d).
func Hyperbolic() DecayFunc {
	return func(d int) float64 {
		return 1 / (1 + float64(max(d, 0)))
	}
}

// ParseDecay returns the named decay function.
func ParseDecay(name string, halfLife float64) (DecayFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DecayExponential:
		return Exponential(halfLife), nil
	case DecayHyperbolic:
		return Hyperbolic(), nil
	}
	return nil, fmt.Errorf("contextpack: unknown decay %q (want %s or %s)", name, DecayExponential, DecayHyperbolic)
}
