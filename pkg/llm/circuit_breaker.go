package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/magnetic-studio/studio-console/pkg/jsonschema"
)

// CircuitState represents the current state of the circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Threshold is the number of consecutive failed calls that trips the circuit.
	Threshold int
	// ResetAfter is how long the circuit stays open before one probe is let through.
	ResetAfter time.Duration
}

// DefaultCircuitBreakerConfig trips after 5 failures and probes after 30s.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{Threshold: 5, ResetAfter: 30 * time.Second}
}

// GuardedCaller wraps a SchemaCaller with a circuit breaker. While open,
// calls fail fast with a non-retryable ErrorTypeUnavailable.
type GuardedCaller struct {
	next SchemaCaller
	now  func() time.Time

	mu               sync.Mutex
	threshold        int
	resetAfter       time.Duration
	consecutiveFails int
	lastFailure      time.Time
	state            CircuitState
}

// NewGuardedCaller wraps next.
func NewGuardedCaller(next SchemaCaller, cfg CircuitBreakerConfig) *GuardedCaller {
	return &GuardedCaller{
		next:       next,
		now:        time.Now,
		threshold:  cfg.Threshold,
		resetAfter: cfg.ResetAfter,
		state:      CircuitClosed,
	}
}

func (g *GuardedCaller) Model() string {
	return g.next.Model()
}

func (g *GuardedCaller) CallWithSchema(ctx context.Context, outputSchema *jsonschema.Schema, prompt Prompt) (json.RawMessage, error) {
	if err := g.allow(); err != nil {
		return nil, err
	}

	out, err := g.next.CallWithSchema(ctx, outputSchema, prompt)
	if err != nil {
		// Only provider-side failures count toward tripping.
		if t := GetErrorType(err); t == ErrorTypeEndpoint || t == ErrorTypeRateLimit {
			g.recordFailure()
		} else {
			g.recordSuccess()
		}
		return nil, err
	}
	g.recordSuccess()
	return out, nil
}

func (g *GuardedCaller) allow() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case CircuitClosed:
		return nil
	case CircuitOpen:
		if g.now().Sub(g.lastFailure) > g.resetAfter {
			g.state = CircuitHalfOpen
			return nil
		}
		return NewError(ErrorTypeUnavailable,
			fmt.Sprintf("circuit breaker open: provider failed %d times", g.consecutiveFails), false, nil)
	default:
		return NewError(ErrorTypeUnavailable, "circuit breaker half-open: probe in flight", false, nil)
	}
}

func (g *GuardedCaller) recordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.consecutiveFails = 0
	g.state = CircuitClosed
}

func (g *GuardedCaller) recordFailure() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.consecutiveFails++
	g.lastFailure = g.now()
	if g.state == CircuitHalfOpen || g.consecutiveFails >= g.threshold {
		g.state = CircuitOpen
	}
}

// State returns the current state of the circuit.
func (g *GuardedCaller) State() CircuitState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}
