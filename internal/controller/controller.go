// Package controller implements the stability controller that steers the
// ZAI redemption price via a per-block redemption rate.
//
// Two modes share one update contract:
//   - PI: proportional + integral with anti-windup clamping
//   - Tick: integral-only on log scale, with a sensitivity parameter
package controller

import (
	"fmt"
	"math"

	"github.com/zai-protocol/zai-sim/internal/config"
)

// ArithmeticError is a fatal numeric failure inside the feedback law.
// It aborts the run and carries the block it occurred at.
type ArithmeticError struct {
	Block  uint64
	Reason string
}

func (e *ArithmeticError) Error() string {
	return fmt.Sprintf("controller arithmetic error at block %d: %s", e.Block, e.Reason)
}

// Controller tracks the redemption price and its per-block drift rate.
type Controller struct {
	cfg config.ControllerConfig

	redemptionPrice float64
	redemptionRate  float64
	integral        float64
	lastBlock       uint64
}

// New creates a controller at the given starting price and block.
func New(cfg config.ControllerConfig, initialRedemptionPrice float64, startBlock uint64) *Controller {
	return &Controller{
		cfg:             cfg,
		redemptionPrice: initialRedemptionPrice,
		lastBlock:       startBlock,
	}
}

// RedemptionPrice returns the current target price of ZAI in USD.
func (c *Controller) RedemptionPrice() float64 { return c.redemptionPrice }

// RedemptionRate returns the current per-block multiplicative drift.
func (c *Controller) RedemptionRate() float64 { return c.redemptionRate }

// Integral returns the accumulated integral term.
func (c *Controller) Integral() float64 { return c.integral }

// LastBlock returns the block the controller was last advanced to.
func (c *Controller) LastBlock() uint64 { return c.lastBlock }

// Step advances redemption_price to the given block using the current
// redemption rate: price *= (1 + rate)^elapsed. No-op when the block is
// not ahead of last_block.
func (c *Controller) Step(block uint64) {
	if block <= c.lastBlock {
		return
	}
	elapsed := block - c.lastBlock
	c.redemptionPrice *= powi(1.0+c.redemptionRate, elapsed)
	c.lastBlock = block
}

// Update advances the price to block, then computes the error signal from
// market_price and sets a new redemption rate. Returns the new rate.
func (c *Controller) Update(marketPrice float64, block uint64) (float64, error) {
	if math.IsNaN(marketPrice) || math.IsInf(marketPrice, 0) {
		return 0, &ArithmeticError{Block: block, Reason: fmt.Sprintf("non-finite market price %g", marketPrice)}
	}

	c.Step(block)

	if c.redemptionPrice <= 0 || math.IsNaN(c.redemptionPrice) || math.IsInf(c.redemptionPrice, 0) {
		return 0, &ArithmeticError{Block: block, Reason: fmt.Sprintf("redemption price degenerate: %g", c.redemptionPrice)}
	}

	switch c.cfg.Mode {
	case config.ControllerModeTick:
		c.updateTick(marketPrice)
	default:
		c.updatePI(marketPrice)
	}
	return c.redemptionRate, nil
}

// updatePI applies negative feedback on the relative deviation:
// when market > target, push the rate down.
func (c *Controller) updatePI(marketPrice float64) {
	deviation := (marketPrice - c.redemptionPrice) / c.redemptionPrice

	pTerm := -c.cfg.Kp * deviation

	// Anti-windup by clamping the accumulator, not by conditional
	// integration: saturated error in the same sign is discarded here.
	c.integral = clamp(c.integral-c.cfg.Ki*deviation, c.cfg.IntegralMin, c.cfg.IntegralMax)

	c.redemptionRate = clamp(pTerm+c.integral, c.cfg.MinRate, c.cfg.MaxRate)
}

// updateTick applies integral-only negative feedback on log scale.
// The integral IS the rate in this mode; its bounds coincide with the
// rate bounds.
func (c *Controller) updateTick(marketPrice float64) {
	errLog := math.Log(marketPrice / c.redemptionPrice)

	c.integral = clamp(c.integral-c.cfg.Sensitivity*errLog, c.cfg.MinRate, c.cfg.MaxRate)
	c.redemptionRate = c.integral
}

// Deviation returns (market - target) / target.
func (c *Controller) Deviation(marketPrice float64) float64 {
	return (marketPrice - c.redemptionPrice) / c.redemptionPrice
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// powi computes base^n by squaring. Deterministic and cheaper than
// math.Pow for the integer exponents the drift law needs.
func powi(base float64, n uint64) float64 {
	result := 1.0
	for n > 0 {
		if n&1 == 1 {
			result *= base
		}
		base *= base
		n >>= 1
	}
	return result
}
