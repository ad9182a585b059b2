package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zai-protocol/zai-sim/internal/amm"
	"github.com/zai-protocol/zai-sim/internal/cdp"
	"github.com/zai-protocol/zai-sim/internal/config"
)

func newPool(t *testing.T) *amm.Pool {
	t.Helper()
	p, err := amm.New(10_000, 500_000, 0.003)
	require.NoError(t, err)
	return p
}

func arberConfig() config.ArbitrageurConfig {
	return config.ArbitrageurConfig{
		InitialZEC:           2_000,
		InitialZAI:           100_000,
		Gain:                 0.5,
		ActThreshold:         0.002,
		CapitalReplenishRate: 0,
	}
}

func TestArbitrageur(t *testing.T) {
	t.Run("SellsZAIWhenAbovePeg", func(t *testing.T) {
		pool := newPool(t)
		a := NewArbitrageur(0, arberConfig())

		// ext 50 and spot 50 put ZAI at $1.00; redemption 0.90 means
		// ZAI trades 11% above peg.
		a.Step(pool, 50, 0.90)

		zec, zai := a.Balances()
		assert.Greater(t, zec, 2_000.0, "selling ZAI must gain ZEC")
		assert.Less(t, zai, 100_000.0)
		assert.GreaterOrEqual(t, zai, 0.0)
	})

	t.Run("BuysZAIWhenBelowPeg", func(t *testing.T) {
		pool := newPool(t)
		a := NewArbitrageur(0, arberConfig())

		a.Step(pool, 50, 1.10)

		zec, zai := a.Balances()
		assert.Less(t, zec, 2_000.0, "buying ZAI must spend ZEC")
		assert.Greater(t, zai, 100_000.0)
		assert.GreaterOrEqual(t, zec, 0.0)
	})

	t.Run("SizesTradeByDeviation", func(t *testing.T) {
		small := NewArbitrageur(0, arberConfig())
		big := NewArbitrageur(1, arberConfig())

		poolA := newPool(t)
		poolB := newPool(t)
		small.Step(poolA, 50, 0.995) // ~0.5% above peg
		big.Step(poolB, 50, 0.90)    // ~11% above peg

		_, zaiSmall := small.Balances()
		_, zaiBig := big.Balances()
		assert.Greater(t, zaiSmall, zaiBig, "bigger deviation must spend more ZAI")
	})

	t.Run("HoldsInsideThreshold", func(t *testing.T) {
		pool := newPool(t)
		a := NewArbitrageur(0, arberConfig())

		a.Step(pool, 50, 1.0001)

		zec, zai := a.Balances()
		assert.Equal(t, 2_000.0, zec)
		assert.Equal(t, 100_000.0, zai)
	})

	t.Run("ReplenishesEveryBlock", func(t *testing.T) {
		cfg := arberConfig()
		cfg.CapitalReplenishRate = 1000
		cfg.ActThreshold = 10 // never trades
		a := NewArbitrageur(0, cfg)
		pool := newPool(t)

		for i := 0; i < 5; i++ {
			a.Step(pool, 50, 1.0)
		}
		_, zai := a.Balances()
		assert.Equal(t, 105_000.0, zai)
	})

	t.Run("SitsOutWhileHalted", func(t *testing.T) {
		pool := newPool(t)
		pool.SetHalted(true)
		a := NewArbitrageur(0, arberConfig())

		a.Step(pool, 50, 0.90)

		zec, zai := a.Balances()
		assert.Equal(t, 2_000.0, zec)
		assert.Equal(t, 100_000.0, zai)
	})

	t.Run("BalancesNeverNegative", func(t *testing.T) {
		cfg := arberConfig()
		cfg.InitialZAI = 10
		cfg.Gain = 100 // force full-balance trades
		a := NewArbitrageur(0, cfg)
		pool := newPool(t)

		for i := 0; i < 20; i++ {
			a.Step(pool, 50, 0.5)
			zec, zai := a.Balances()
			assert.GreaterOrEqual(t, zec, 0.0)
			assert.GreaterOrEqual(t, zai, 0.0)
		}
	})
}

func minerConfig() config.MinerConfig {
	return config.MinerConfig{
		BlockReward:  10,
		Cadence:      1,
		TargetRatio:  2.0,
		SellFraction: 0.5,
	}
}

func cdpEngine() *cdp.Engine {
	return cdp.NewEngine(config.CDPConfig{
		MinRatio:            1.5,
		LiqRatio:            1.2,
		LiquidationDiscount: 0.13,
		TWAPWindow:          48,
	})
}

func TestMiner(t *testing.T) {
	t.Run("OpensVaultAtTargetRatio", func(t *testing.T) {
		pool := newPool(t)
		engine := cdpEngine()
		m := NewMiner(0, minerConfig())

		m.Step(1, pool, engine, 50, 1.0)

		id, ok := m.VaultID()
		require.True(t, ok)
		v, err := engine.Vault(id)
		require.NoError(t, err)
		assert.Equal(t, 10.0, v.CollateralZEC)
		assert.Equal(t, 250.0, v.DebtZAI, "10 ZEC at $50 over a 2x target is 250 ZAI of debt")

		zecProceeds, zaiHeld := m.Proceeds()
		assert.Positive(t, zecProceeds, "half the minted ZAI is sold for ZEC")
		assert.Equal(t, 125.0, zaiHeld)
	})

	t.Run("DepositsAndDrawsOnSchedule", func(t *testing.T) {
		pool := newPool(t)
		engine := cdpEngine()
		m := NewMiner(0, minerConfig())

		m.Step(1, pool, engine, 50, 1.0)
		m.Step(2, pool, engine, 50, 1.0)

		id, _ := m.VaultID()
		v, err := engine.Vault(id)
		require.NoError(t, err)
		assert.Equal(t, 20.0, v.CollateralZEC)
		assert.InDelta(t, 500.0, v.DebtZAI, 1.0, "debt tracks the target ratio as collateral grows")
	})

	t.Run("RespectsCadence", func(t *testing.T) {
		cfg := minerConfig()
		cfg.Cadence = 4
		pool := newPool(t)
		engine := cdpEngine()
		m := NewMiner(0, cfg)

		for b := uint64(1); b <= 4; b++ {
			m.Step(b, pool, engine, 50, 1.0)
		}

		id, ok := m.VaultID()
		require.True(t, ok)
		v, err := engine.Vault(id)
		require.NoError(t, err)
		assert.Equal(t, 10.0, v.CollateralZEC, "only one coinbase lands in four blocks at cadence 4")
	})

	t.Run("ReopensAfterLiquidation", func(t *testing.T) {
		pool := newPool(t)
		engine := cdpEngine()
		m := NewMiner(0, minerConfig())

		m.Step(1, pool, engine, 50, 1.0)
		firstID, _ := m.VaultID()

		// Collateral price collapse liquidates the vault.
		sell := func(zec float64) (float64, bool) {
			out, err := pool.SwapZECForZAI(zec)
			return out, err == nil
		}
		events := engine.LiquidationPass(10, 1.0, sell)
		require.NotEmpty(t, events)

		m.Step(2, pool, engine, 50, 1.0)
		secondID, ok := m.VaultID()
		require.True(t, ok)

		v, err := engine.Vault(secondID)
		require.NoError(t, err)
		assert.Equal(t, cdp.VaultOpen, v.State)
		assert.Equal(t, firstID, secondID, "recycled slot comes back to the miner")
	})

	t.Run("HoldsEverythingWithZeroSellFraction", func(t *testing.T) {
		cfg := minerConfig()
		cfg.SellFraction = 0
		pool := newPool(t)
		engine := cdpEngine()
		m := NewMiner(0, cfg)

		spotBefore := pool.Spot()
		m.Step(1, pool, engine, 50, 1.0)

		assert.Equal(t, spotBefore, pool.Spot(), "no sale means no pool impact")
		zecProceeds, zaiHeld := m.Proceeds()
		assert.Zero(t, zecProceeds)
		assert.Equal(t, 250.0, zaiHeld)
	})
}
