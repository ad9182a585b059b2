package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zai-protocol/zai-sim/internal/config"
)

func record(block uint64, spot, redemption float64) Record {
	return Record{
		Block:           block,
		RedemptionPrice: redemption,
		AMMSpotPrice:    spot,
		ExternalPrice:   50,
	}
}

func TestComputeSummary(t *testing.T) {
	t.Run("EmptyRun", func(t *testing.T) {
		s := ComputeSummary(nil)
		assert.Zero(t, s.MeanPegDeviation)
		assert.Zero(t, s.MaxPegDeviation)
	})

	t.Run("PegDeviations", func(t *testing.T) {
		metrics := []Record{
			record(1, 1.00, 1.0),
			record(2, 1.02, 1.0),
			record(3, 0.96, 1.0),
		}
		s := ComputeSummary(metrics)
		assert.InDelta(t, (0.0+0.02-0.04)/3, s.MeanPegDeviation, 1e-12)
		assert.InDelta(t, 0.04, s.MaxPegDeviation, 1e-12, "max is over absolute deviation")
		assert.InDelta(t, -0.04, s.FinalPegDeviation, 1e-12)
	})

	t.Run("CountsEconomicEvents", func(t *testing.T) {
		metrics := []Record{
			{Block: 1, RedemptionPrice: 1, AMMSpotPrice: 1, NLiquidations: 2, BadDebtDelta: 10},
			{Block: 2, RedemptionPrice: 1, AMMSpotPrice: 1, NLiquidations: 1, BadDebtDelta: 5, BreakerActive: true},
			{Block: 3, RedemptionPrice: 1, AMMSpotPrice: 1, BreakerActive: true},
			{Block: 4, RedemptionPrice: 1, AMMSpotPrice: 1},
			{Block: 5, RedemptionPrice: 1, AMMSpotPrice: 1, BreakerActive: true},
		}
		s := ComputeSummary(metrics)
		assert.Equal(t, uint32(3), s.TotalLiquidations)
		assert.Equal(t, 15.0, s.TotalBadDebt)
		assert.Equal(t, uint64(3), s.HaltBlocks)
		assert.Equal(t, uint32(2), s.BreakerTriggers, "two rising edges")
	})

	t.Run("VolatilityIsStdevOverMean", func(t *testing.T) {
		metrics := []Record{
			record(1, 2, 1),
			record(2, 4, 1),
		}
		// mean 3, variance 1, stdev 1 -> volatility 1/3.
		s := ComputeSummary(metrics)
		assert.InDelta(t, 1.0/3.0, s.Volatility, 1e-12)
	})
}

func TestEvaluate(t *testing.T) {
	cfg := config.DefaultVerdict()

	t.Run("Pass", func(t *testing.T) {
		v := Evaluate(Summary{MaxPegDeviation: 0.005}, cfg)
		assert.Equal(t, OutcomePass, v.Overall)
		assert.Empty(t, v.Reasons)
	})

	t.Run("SoftFailOnAnyBadDebt", func(t *testing.T) {
		v := Evaluate(Summary{TotalBadDebt: 1}, cfg)
		assert.Equal(t, OutcomeSoftFail, v.Overall)
	})

	t.Run("SoftFailOnPeg", func(t *testing.T) {
		v := Evaluate(Summary{MaxPegDeviation: 0.02}, cfg)
		assert.Equal(t, OutcomeSoftFail, v.Overall)
	})

	t.Run("HardFailOnPeg", func(t *testing.T) {
		v := Evaluate(Summary{MaxPegDeviation: 0.10}, cfg)
		assert.Equal(t, OutcomeHardFail, v.Overall)
	})

	t.Run("HardFailOnBadDebt", func(t *testing.T) {
		v := Evaluate(Summary{TotalBadDebt: 50_000}, cfg)
		assert.Equal(t, OutcomeHardFail, v.Overall)
	})

	t.Run("HardFailOnHalts", func(t *testing.T) {
		v := Evaluate(Summary{HaltBlocks: 600}, cfg)
		assert.Equal(t, OutcomeHardFail, v.Overall)
	})

	t.Run("HardTrumpsSoft", func(t *testing.T) {
		v := Evaluate(Summary{TotalBadDebt: 1, MaxPegDeviation: 0.10}, cfg)
		assert.Equal(t, OutcomeHardFail, v.Overall)
		assert.NotEmpty(t, v.Reasons)
	})
}

func TestExport(t *testing.T) {
	metrics := []Record{
		record(1, 1.0, 1.0),
		record(2, 1.01, 1.0),
	}

	t.Run("CSVRoundTripShape", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "metrics.csv")
		require.NoError(t, WriteCSV(metrics, path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 3, "header plus one row per block")
		assert.True(t, strings.HasPrefix(lines[0], "block,redemption_price,"))
	})

	t.Run("CSVIsByteStable", func(t *testing.T) {
		dir := t.TempDir()
		p1 := filepath.Join(dir, "a.csv")
		p2 := filepath.Join(dir, "b.csv")
		require.NoError(t, WriteCSV(metrics, p1))
		require.NoError(t, WriteCSV(metrics, p2))

		a, err := os.ReadFile(p1)
		require.NoError(t, err)
		b, err := os.ReadFile(p2)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("JSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "metrics.json")
		require.NoError(t, WriteJSON(metrics, path))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"amm_spot_price"`)
	})

	t.Run("Results", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "results.json")
		rows := []ScenarioResult{
			NewScenarioResult("id-1", "flat", Verdict{Overall: OutcomePass}, Summary{}),
		}
		require.NoError(t, WriteResults(rows, path))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"flat"`)
		assert.Contains(t, string(data), `"PASS"`)
	})
}
