package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zai-protocol/zai-sim/internal/config"
	"github.com/zai-protocol/zai-sim/internal/output"
)

func TestGeneratePrices(t *testing.T) {
	t.Run("DeterministicPerSeed", func(t *testing.T) {
		for _, id := range All() {
			a := GeneratePrices(id, 500, 42)
			b := GeneratePrices(id, 500, 42)
			require.Equal(t, a, b, "scenario %s must be reproducible", id)
		}
	})

	t.Run("DifferentSeedsDiffer", func(t *testing.T) {
		a := GeneratePrices(HighVolatility, 500, 1)
		b := GeneratePrices(HighVolatility, 500, 2)
		assert.NotEqual(t, a, b)
	})

	t.Run("AllPricesPositive", func(t *testing.T) {
		for _, id := range All() {
			for i, p := range GeneratePrices(id, 2000, 42) {
				require.Positive(t, p, "scenario %s price %d", id, i)
			}
		}
	})

	t.Run("FlatIsExactlyFlat", func(t *testing.T) {
		for _, p := range GeneratePrices(Flat, 100, 42) {
			require.Equal(t, 50.0, p)
		}
	})

	t.Run("ThirteenScenarios", func(t *testing.T) {
		assert.Len(t, All(), 13)
		for _, id := range All() {
			assert.True(t, id.Valid())
		}
		assert.False(t, ID("nope").Valid())
	})
}

func TestRunDeterminism(t *testing.T) {
	cfg := config.DefaultSim()

	run := func() []output.Record {
		s, err := RunStress(SustainedBear, cfg, 800, 42)
		require.NoError(t, err)
		return s.Metrics
	}

	first := run()
	second := run()
	require.Equal(t, first, second, "same config, seed and prices must be bit-identical")
}

func TestFlatMarketHoldsPeg(t *testing.T) {
	cfg := config.DefaultSim()
	s, err := RunStress(Flat, cfg, 1000, 42)
	require.NoError(t, err)
	require.Len(t, s.Metrics, 1000)

	summary := output.ComputeSummary(s.Metrics)
	verdict := output.Evaluate(summary, cfg.Verdict)

	assert.Equal(t, output.OutcomePass, verdict.Overall)
	assert.Less(t, summary.MaxPegDeviation, 0.001)
	assert.Zero(t, summary.BreakerTriggers)
	assert.Zero(t, summary.TotalBadDebt)
}

func TestControllerBoundsHoldEveryBlock(t *testing.T) {
	cfg := config.DefaultSim()
	cfg.Controller = config.DefaultTickController()

	s, err := RunStress(HighVolatility, cfg, 1500, 42)
	require.NoError(t, err)

	for _, m := range s.Metrics {
		require.GreaterOrEqual(t, m.RedemptionRate, cfg.Controller.MinRate)
		require.LessOrEqual(t, m.RedemptionRate, cfg.Controller.MaxRate)
		require.Positive(t, m.RedemptionPrice)
	}
}

func TestConservationAcrossRun(t *testing.T) {
	cfg := config.DefaultSim()
	for _, id := range []ID{SustainedBear, BlackThursday, HighVolatility} {
		s, err := RunStress(id, cfg, 1200, 42)
		require.NoError(t, err)

		want := s.Engine.CumulativeMints() - s.Engine.CumulativeBurns() - s.Engine.CumulativeBadDebt()
		assert.InDelta(t, want, s.Engine.TotalDebt(), 1e-6,
			"scenario %s: debt must equal mints - burns - write-offs", id)
	}
}

func TestNoActivityWhileHalted(t *testing.T) {
	cfg := config.DefaultSim()
	cfg.Breaker.DeviationThreshold = 0.002
	cfg.Breaker.CooldownBlocks = 50

	s, err := RunStress(BlackThursday, cfg, 1500, 42)
	require.NoError(t, err)

	for _, m := range s.Metrics {
		if m.BreakerActive {
			require.Zero(t, m.NLiquidations, "block %d: no liquidation may execute while halted", m.Block)
		}
	}
}

func TestBlockNumbersMonotonic(t *testing.T) {
	cfg := config.DefaultSim()
	s, err := RunStress(SlowBear, cfg, 300, 42)
	require.NoError(t, err)

	for i, m := range s.Metrics {
		require.Equal(t, uint64(i+1), m.Block)
		require.Equal(t, GeneratePrices(SlowBear, 300, 42)[i], m.ExternalPrice)
	}
}

func TestInvalidConfigRejectedBeforeBlockZero(t *testing.T) {
	cfg := config.DefaultSim()
	cfg.CDP.MinRatio = 1.0 // below liq_ratio
	_, err := New(cfg)
	require.Error(t, err)

	cfg = config.DefaultSim()
	cfg.AMM.InitialZEC = 0
	_, err = New(cfg)
	require.Error(t, err)
}

func TestBearMarketDrainsUnreplenishedArber(t *testing.T) {
	base := config.DefaultSim()
	base.AMM = config.AMMConfig{InitialZEC: 100_000, InitialZAI: 5_000_000, Fee: 0.003}
	base.CDP.MinRatio = 2.0
	base.CDP.TWAPWindow = 240
	base.Controller = config.DefaultTickController()
	base.Miner.SellFraction = 0

	drained, err := RunStress(SustainedBear, base, 5000, 42)
	require.NoError(t, err)

	replenished := base
	replenished.Arbitrageur.CapitalReplenishRate = 1000
	topped, err := RunStress(SustainedBear, replenished, 5000, 42)
	require.NoError(t, err)

	_, drainedZAI := drained.Arbers[0].Balances()
	_, toppedZAI := topped.Arbers[0].Balances()
	assert.Less(t, drainedZAI, toppedZAI, "replenished arber must end with more ZAI capital")
}
