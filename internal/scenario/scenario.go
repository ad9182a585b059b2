// Package scenario composes the simulation kernel and drives it one
// block per input price. A run is a pure function of
// (config, price sequence, seed): same inputs, byte-identical metrics.
package scenario

import (
	"fmt"

	"github.com/zai-protocol/zai-sim/internal/agents"
	"github.com/zai-protocol/zai-sim/internal/amm"
	"github.com/zai-protocol/zai-sim/internal/breaker"
	"github.com/zai-protocol/zai-sim/internal/cdp"
	"github.com/zai-protocol/zai-sim/internal/config"
	"github.com/zai-protocol/zai-sim/internal/controller"
	"github.com/zai-protocol/zai-sim/internal/oracle"
	"github.com/zai-protocol/zai-sim/internal/output"
)

// Scenario owns the complete state graph of one run: controller, pool,
// vault engine, oracles, breaker, agents, and the metrics vector. All
// components are created together and die together; nothing is shared
// across runs.
type Scenario struct {
	cfg config.SimConfig

	Controller *controller.Controller
	Pool       *amm.Pool
	Engine     *cdp.Engine
	Breaker    *breaker.Breaker

	// Two windows over the same oracle type: the ZAI/USD series gates
	// the breaker, the ZEC/USD series prices vault collateral.
	ZAIOracle *oracle.TWAP
	ZECOracle *oracle.TWAP

	Miners []*agents.Miner
	Arbers []*agents.Arbitrageur

	Metrics []output.Record
}

// New validates the config and assembles a scenario with empty agent
// vectors; callers populate Miners and Arbers before Run.
func New(cfg config.SimConfig) (*Scenario, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := amm.New(cfg.AMM.InitialZEC, cfg.AMM.InitialZAI, cfg.AMM.Fee)
	if err != nil {
		return nil, err
	}

	return &Scenario{
		cfg:        cfg,
		Controller: controller.New(cfg.Controller, cfg.InitialRedemptionPrice, 0),
		Pool:       pool,
		Engine:     cdp.NewEngine(cfg.CDP),
		Breaker:    breaker.New(cfg.Breaker.DeviationThreshold, cfg.Breaker.CooldownBlocks),
		ZAIOracle:  oracle.New(cfg.CDP.TWAPWindow),
		ZECOracle:  oracle.New(cfg.CDP.TWAPWindow),
	}, nil
}

// AddDefaultAgents populates one miner and one arbitrageur from the
// config, the standard stress-suite population.
func (s *Scenario) AddDefaultAgents() {
	s.Miners = append(s.Miners, agents.NewMiner(uint64(len(s.Miners)), s.cfg.Miner))
	s.Arbers = append(s.Arbers, agents.NewArbitrageur(uint64(len(s.Arbers)), s.cfg.Arbitrageur))
}

// Run advances one block per input price, in the strict per-block order:
// controller drift, fee accrual, oracle update, breaker check, agent
// trading, liquidation pass, controller feedback on the post-trade spot,
// metrics snapshot. Only config and arithmetic errors surface; economic
// events are data.
func (s *Scenario) Run(prices []float64) error {
	s.Metrics = make([]output.Record, 0, len(prices))

	for t, ext := range prices {
		block := uint64(t + 1)

		// 1. Drift redemption price at the current rate.
		s.Controller.Step(block)

		// 2. Stability fee accrual before any trading.
		s.Engine.AccrueFees()

		// 3. Oracle update from the exogenous price and the pre-trade
		// AMM quote.
		zaiUSD := ext / s.Pool.Spot()
		s.ZECOracle.Push(ext)
		s.ZAIOracle.Push(zaiUSD)

		// 4. Breaker check. Until the window is warm the breaker cannot
		// act on TWAP and stays quiet.
		halted := false
		if s.ZAIOracle.Ready() {
			halted = s.Breaker.Check(s.ZAIOracle.Value(), s.Controller.RedemptionPrice(), block)
		}
		s.Pool.SetHalted(halted)

		// 5. Agents, ascending id, miners before arbitrageurs. Each may
		// submit at most one swap; a halted pool rejects them all.
		zecTWAP := s.ZECOracle.ValueOr(ext)
		if !halted {
			for _, m := range s.Miners {
				m.Step(block, s.Pool, s.Engine, zecTWAP, s.Controller.RedemptionPrice())
			}
			for _, a := range s.Arbers {
				a.Step(s.Pool, ext, s.Controller.RedemptionPrice())
			}
		}

		// 6. Liquidation pass against TWAP-priced collateral, suspended
		// while halted and before warmup. Keepers clear seized ZEC
		// through the pool, so big pools absorb crashes with less
		// slippage and less bad debt.
		var nLiq uint32
		var badDebtDelta float64
		if !halted && s.ZECOracle.Ready() {
			sell := func(zecAmount float64) (float64, bool) {
				out, err := s.Pool.SwapZECForZAI(zecAmount)
				if err != nil {
					return 0, false
				}
				return out, true
			}
			for _, ev := range s.Engine.LiquidationPass(s.ZECOracle.Value(), s.Controller.RedemptionPrice(), sell) {
				nLiq++
				badDebtDelta += ev.BadDebt
			}
		}

		// 7. Controller feedback on the post-trade AMM spot.
		postTrade := ext / s.Pool.Spot()
		rate, err := s.Controller.Update(postTrade, block)
		if err != nil {
			return fmt.Errorf("run aborted at block %d: %w", block, err)
		}

		// 8. Metrics snapshot.
		s.Metrics = append(s.Metrics, output.Record{
			Block:           block,
			RedemptionPrice: s.Controller.RedemptionPrice(),
			RedemptionRate:  rate,
			AMMSpotPrice:    postTrade,
			TWAP:            s.ZAIOracle.ValueOr(postTrade),
			ExternalPrice:   ext,
			TotalDebt:       s.Engine.TotalDebt(),
			TotalCollateral: s.Engine.TotalCollateral(),
			NLiquidations:   nLiq,
			BadDebtDelta:    badDebtDelta,
			BreakerActive:   halted,
		})
	}

	return nil
}

// RunStress generates the named price trajectory and runs it against the
// config with the default agent population.
func RunStress(id ID, cfg config.SimConfig, blocks int, seed int64) (*Scenario, error) {
	prices := GeneratePrices(id, blocks, seed)
	s, err := New(cfg)
	if err != nil {
		return nil, err
	}
	s.AddDefaultAgents()
	if err := s.Run(prices); err != nil {
		return nil, err
	}
	return s, nil
}
