package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSimIsValid(t *testing.T) {
	cfg := DefaultSim()
	require.NoError(t, cfg.Validate())

	tick := DefaultSim()
	tick.Controller = DefaultTickController()
	require.NoError(t, tick.Validate())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SimConfig)
	}{
		{"NonPositiveRedemptionPrice", func(s *SimConfig) { s.InitialRedemptionPrice = 0 }},
		{"NonPositiveBlocks", func(s *SimConfig) { s.Blocks = 0 }},
		{"ZeroReserves", func(s *SimConfig) { s.AMM.InitialZEC = 0 }},
		{"FeeOutOfRange", func(s *SimConfig) { s.AMM.Fee = 1.0 }},
		{"MinRatioBelowLiqRatio", func(s *SimConfig) { s.CDP.MinRatio = 1.0; s.CDP.LiqRatio = 1.2 }},
		{"NonPositiveLiqRatio", func(s *SimConfig) { s.CDP.LiqRatio = 0 }},
		{"DiscountOutOfRange", func(s *SimConfig) { s.CDP.LiquidationDiscount = 1.0 }},
		{"ZeroTWAPWindow", func(s *SimConfig) { s.CDP.TWAPWindow = 0 }},
		{"InvertedRateBounds", func(s *SimConfig) { s.Controller.MinRate = 1; s.Controller.MaxRate = -1 }},
		{"InvertedIntegralBounds", func(s *SimConfig) { s.Controller.IntegralMin = 1; s.Controller.IntegralMax = -1 }},
		{"UnknownControllerMode", func(s *SimConfig) { s.Controller.Mode = "fuzzy" }},
		{"NonPositiveBreakerThreshold", func(s *SimConfig) { s.Breaker.DeviationThreshold = 0 }},
		{"NegativeArberBalance", func(s *SimConfig) { s.Arbitrageur.InitialZAI = -1 }},
		{"MinerTargetBelowMinRatio", func(s *SimConfig) { s.Miner.TargetRatio = 1.0 }},
		{"SoftAboveHardThreshold", func(s *SimConfig) { s.Verdict.MaxPegSoft = 0.2 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultSim()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "reports", cfg.Report.OutputDir)
		assert.Equal(t, ControllerModePI, cfg.Sim.Controller.Mode)
		assert.Equal(t, 1.0, cfg.Sim.InitialRedemptionPrice)
	})

	t.Run("EnvOverride", func(t *testing.T) {
		t.Setenv("ZAI_SIM_REPORT_DIR", "/tmp/zai-reports")
		t.Setenv("ZAI_SIM_LOG_LEVEL", "debug")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/zai-reports", cfg.Report.OutputDir)
		assert.Equal(t, "debug", cfg.Observability.LogLevel)
	})
}

func TestLoadProfile(t *testing.T) {
	t.Run("OverlaysScenarioConfig", func(t *testing.T) {
		profile := `
controller:
  mode: tick
  sensitivity: 1e-7
  min_rate: -1e-4
  max_rate: 1e-4
  integral_min: -1e-4
  integral_max: 1e-4
amm:
  initial_zec: 100000
  initial_zai: 5000000
  fee: 0.003
cdp:
  min_ratio: 2.0
  liq_ratio: 1.2
  liquidation_discount: 0.13
  twap_window: 240
`
		path := filepath.Join(t.TempDir(), "profile.yaml")
		require.NoError(t, os.WriteFile(path, []byte(profile), 0o644))

		cfg, err := Load()
		require.NoError(t, err)
		require.NoError(t, cfg.LoadProfile(path))

		assert.Equal(t, ControllerModeTick, cfg.Sim.Controller.Mode)
		assert.Equal(t, 5_000_000.0, cfg.Sim.AMM.InitialZAI)
		assert.Equal(t, 2.0, cfg.Sim.CDP.MinRatio)
		assert.Equal(t, 240, cfg.Sim.CDP.TWAPWindow)
		// Untouched sections keep their defaults.
		assert.Equal(t, 0.05, cfg.Sim.Breaker.DeviationThreshold)
	})

	t.Run("RejectsInvalidProfile", func(t *testing.T) {
		profile := "cdp:\n  min_ratio: 0.5\n"
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte(profile), 0o644))

		cfg, err := Load()
		require.NoError(t, err)
		assert.Error(t, cfg.LoadProfile(path))
	})

	t.Run("MissingFile", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Error(t, cfg.LoadProfile("does-not-exist.yaml"))
	})
}
