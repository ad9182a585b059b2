// Package agents implements the market participants that trade against
// the AMM: arbitrageurs closing peg deviations and miners supplying
// collateral. Agents hold only their own balances and see the shared
// world through explicit read-only parameters at step time.
package agents

import (
	"math"

	"github.com/zai-protocol/zai-sim/internal/amm"
	"github.com/zai-protocol/zai-sim/internal/config"
)

// Arbitrageur is a mean-reversion trader: it sells ZAI when the AMM
// prices it above redemption and buys when below, sized by the deviation.
// The per-block capital replenishment models OTC ZAI in-flow.
type Arbitrageur struct {
	ID  uint64
	cfg config.ArbitrageurConfig

	zecBalance float64
	zaiBalance float64
}

// NewArbitrageur creates an arbitrageur with the configured balances.
func NewArbitrageur(id uint64, cfg config.ArbitrageurConfig) *Arbitrageur {
	return &Arbitrageur{
		ID:         id,
		cfg:        cfg,
		zecBalance: cfg.InitialZEC,
		zaiBalance: cfg.InitialZAI,
	}
}

// Balances returns the current (ZEC, ZAI) holdings.
func (a *Arbitrageur) Balances() (zec, zai float64) { return a.zecBalance, a.zaiBalance }

// Step observes the AMM-implied ZAI price against the redemption price
// and submits at most one swap. extZEC is the exogenous ZEC/USD price
// used to convert the pool quote into USD terms.
func (a *Arbitrageur) Step(pool *amm.Pool, extZEC, redemptionPrice float64) {
	a.zaiBalance += a.cfg.CapitalReplenishRate

	zaiUSD := extZEC / pool.Spot()
	deviation := (zaiUSD - redemptionPrice) / redemptionPrice
	if math.Abs(deviation) < a.cfg.ActThreshold {
		return
	}

	// A rejected swap (halted pool, dust input, reserves too thin) is an
	// economic outcome, not an error: the agent simply sits out the block.
	if deviation > 0 {
		// ZAI overpriced on the AMM: sell ZAI for ZEC.
		amount := math.Min(deviation*a.cfg.Gain*a.zaiBalance, a.zaiBalance)
		if out, err := pool.SwapZAIForZEC(amount); err == nil {
			a.zaiBalance -= amount
			a.zecBalance += out
		}
		return
	}

	// ZAI underpriced: buy ZAI with ZEC.
	amount := math.Min(-deviation*a.cfg.Gain*a.zecBalance, a.zecBalance)
	if out, err := pool.SwapZECForZAI(amount); err == nil {
		a.zecBalance -= amount
		a.zaiBalance += out
	}
}
