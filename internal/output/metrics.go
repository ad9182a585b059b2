// Package output holds per-block telemetry, summary statistics, and the
// PASS / SOFT FAIL / HARD FAIL verdict machinery.
package output

import (
	"math"

	"github.com/zai-protocol/zai-sim/internal/config"
)

// Record is the per-block metrics snapshot appended at the end of every
// simulated block.
type Record struct {
	Block           uint64  `json:"block"`
	RedemptionPrice float64 `json:"redemption_price"`
	RedemptionRate  float64 `json:"redemption_rate"`
	AMMSpotPrice    float64 `json:"amm_spot_price"`
	TWAP            float64 `json:"twap"`
	ExternalPrice   float64 `json:"external_price"`
	TotalDebt       float64 `json:"total_debt"`
	TotalCollateral float64 `json:"total_collateral"`
	NLiquidations   uint32  `json:"n_liquidations"`
	BadDebtDelta    float64 `json:"bad_debt_delta"`
	BreakerActive   bool    `json:"breaker_active"`
}

// Summary aggregates a full run's metrics.
type Summary struct {
	MeanPegDeviation  float64 `json:"mean_peg_deviation"`
	MaxPegDeviation   float64 `json:"max_peg_deviation"`
	FinalPegDeviation float64 `json:"final_peg_deviation"`
	TotalLiquidations uint32  `json:"total_liquidations"`
	TotalBadDebt      float64 `json:"total_bad_debt"`
	HaltBlocks        uint64  `json:"halt_blocks"`
	BreakerTriggers   uint32  `json:"breaker_triggers"`
	Volatility        float64 `json:"volatility"`
}

// ComputeSummary reduces a metrics series to its summary statistics.
// Peg deviations are measured against each block's own redemption price;
// breaker triggers are counted as halt rising edges.
func ComputeSummary(metrics []Record) Summary {
	var s Summary
	if len(metrics) == 0 {
		return s
	}

	var sumDev, sumPrice float64
	prevHalted := false
	for _, m := range metrics {
		dev := (m.AMMSpotPrice - m.RedemptionPrice) / m.RedemptionPrice
		sumDev += dev
		if abs := math.Abs(dev); abs > s.MaxPegDeviation {
			s.MaxPegDeviation = abs
		}
		s.TotalLiquidations += m.NLiquidations
		s.TotalBadDebt += m.BadDebtDelta
		if m.BreakerActive {
			s.HaltBlocks++
			if !prevHalted {
				s.BreakerTriggers++
			}
		}
		prevHalted = m.BreakerActive
		sumPrice += m.AMMSpotPrice
	}

	n := float64(len(metrics))
	s.MeanPegDeviation = sumDev / n

	last := metrics[len(metrics)-1]
	s.FinalPegDeviation = (last.AMMSpotPrice - last.RedemptionPrice) / last.RedemptionPrice

	mean := sumPrice / n
	var variance float64
	for _, m := range metrics {
		d := m.AMMSpotPrice - mean
		variance += d * d
	}
	variance /= n
	if mean != 0 {
		s.Volatility = math.Sqrt(variance) / mean
	}

	return s
}

// Outcome is the overall run verdict.
type Outcome string

const (
	OutcomePass     Outcome = "PASS"
	OutcomeSoftFail Outcome = "SOFT FAIL"
	OutcomeHardFail Outcome = "HARD FAIL"
)

// Verdict is the evaluated outcome plus the reasons that produced it.
type Verdict struct {
	Overall Outcome  `json:"overall"`
	Reasons []string `json:"reasons,omitempty"`
}

// Evaluate applies the fixed thresholds to a run summary. The verdict is
// data, never a process status.
func Evaluate(s Summary, cfg config.VerdictConfig) Verdict {
	var hard, soft []string

	if s.TotalBadDebt > cfg.BadDebtHard {
		hard = append(hard, "bad debt exceeds hard limit")
	} else if s.TotalBadDebt > cfg.BadDebtSoft {
		soft = append(soft, "bad debt exceeds soft limit")
	}

	if s.MaxPegDeviation > cfg.MaxPegHard {
		hard = append(hard, "max peg deviation exceeds hard limit")
	} else if s.MaxPegDeviation > cfg.MaxPegSoft {
		soft = append(soft, "max peg deviation exceeds soft limit")
	}

	if s.HaltBlocks > cfg.HaltBlocksHard {
		hard = append(hard, "halt blocks exceed hard limit")
	} else if s.HaltBlocks > cfg.HaltBlocksSoft {
		soft = append(soft, "halt blocks exceed soft limit")
	}

	switch {
	case len(hard) > 0:
		return Verdict{Overall: OutcomeHardFail, Reasons: append(hard, soft...)}
	case len(soft) > 0:
		return Verdict{Overall: OutcomeSoftFail, Reasons: soft}
	default:
		return Verdict{Overall: OutcomePass}
	}
}

// ScenarioResult is the per-scenario verdict record exported by suite
// runs.
type ScenarioResult struct {
	RunID           string  `json:"run_id"`
	Name            string  `json:"name"`
	Overall         Outcome `json:"overall"`
	MeanPeg         float64 `json:"mean_peg"`
	MaxPeg          float64 `json:"max_peg"`
	Liquidations    uint32  `json:"liqs"`
	BadDebt         float64 `json:"bad_debt"`
	Volatility      float64 `json:"volatility"`
	HaltBlocks      uint64  `json:"halt_blocks"`
	BreakerTriggers uint32  `json:"breaker_triggers"`
}

// NewScenarioResult assembles the exportable row for one finished run.
func NewScenarioResult(runID, name string, v Verdict, s Summary) ScenarioResult {
	return ScenarioResult{
		RunID:           runID,
		Name:            name,
		Overall:         v.Overall,
		MeanPeg:         s.MeanPegDeviation,
		MaxPeg:          s.MaxPegDeviation,
		Liquidations:    s.TotalLiquidations,
		BadDebt:         s.TotalBadDebt,
		Volatility:      s.Volatility,
		HaltBlocks:      s.HaltBlocks,
		BreakerTriggers: s.BreakerTriggers,
	}
}
