package agents

import (
	"github.com/zai-protocol/zai-sim/internal/amm"
	"github.com/zai-protocol/zai-sim/internal/cdp"
	"github.com/zai-protocol/zai-sim/internal/config"
)

// minMintZAI suppresses dust mints so the miner does not spam the pool
// with sub-ZAI trades every block.
const minMintZAI = 1.0

// Miner produces ZEC on a fixed cadence and runs one vault at a target
// collateralization ratio: new coinbase ZEC is deposited, debt is drawn
// up to the target utilization, and the configured sell fraction of the
// minted ZAI is sold at the AMM (the rest is held).
// The rule is deterministic; correctness of the simulator depends only
// on that, not on its shape.
type Miner struct {
	ID  uint64
	cfg config.MinerConfig

	vaultID     uint64
	hasVault    bool
	pendingZEC  float64
	zaiProceeds float64
	zecProceeds float64
}

// NewMiner creates a miner with no vault and no inventory.
func NewMiner(id uint64, cfg config.MinerConfig) *Miner {
	return &Miner{ID: id, cfg: cfg}
}

// VaultID returns the miner's vault id and whether one is open.
func (m *Miner) VaultID() (uint64, bool) { return m.vaultID, m.hasVault }

// Proceeds returns the accumulated sale proceeds (ZEC) and unsold ZAI.
func (m *Miner) Proceeds() (zec, zai float64) { return m.zecProceeds, m.zaiProceeds }

// Step runs one block of the miner's schedule: accrue coinbase, deposit
// pending ZEC, draw debt toward the target ratio, and sell the configured
// fraction of the minted ZAI into the pool. Submits at most one swap per
// block.
func (m *Miner) Step(block uint64, pool *amm.Pool, engine *cdp.Engine, zecUSD, redemptionPrice float64) {
	if m.cfg.Cadence > 0 && block%m.cfg.Cadence == 0 {
		m.pendingZEC += m.cfg.BlockReward
	}

	if m.hasVault {
		// The arena recycles closed slots, so check ownership too: after a
		// liquidation our old id may already belong to someone else.
		if v, err := engine.Vault(m.vaultID); err != nil || v.State != cdp.VaultOpen || v.Owner != m.ID {
			m.hasVault = false
		}
	}

	if !m.hasVault {
		if m.pendingZEC <= 0 {
			return
		}
		debt := m.pendingZEC * zecUSD / (m.cfg.TargetRatio * redemptionPrice)
		if debt < minMintZAI {
			debt = 0
		}
		id, err := engine.Open(m.ID, m.pendingZEC, debt, zecUSD, redemptionPrice, block)
		if err != nil {
			return
		}
		m.vaultID = id
		m.hasVault = true
		m.pendingZEC = 0
		m.sell(pool, debt)
		return
	}

	if m.pendingZEC > 0 {
		if err := engine.Deposit(m.vaultID, m.pendingZEC); err == nil {
			m.pendingZEC = 0
		}
	}

	v, err := engine.Vault(m.vaultID)
	if err != nil {
		return
	}
	targetDebt := v.CollateralZEC * zecUSD / (m.cfg.TargetRatio * redemptionPrice)
	draw := targetDebt - v.DebtZAI
	if draw < minMintZAI {
		return
	}
	if err := engine.Mint(m.vaultID, draw, zecUSD, redemptionPrice); err != nil {
		return
	}
	m.sell(pool, draw)
}

// sell disposes of the configured fraction of freshly minted ZAI at the
// AMM; the remainder is held as working capital.
func (m *Miner) sell(pool *amm.Pool, mintedZAI float64) {
	if mintedZAI <= 0 {
		return
	}
	amount := mintedZAI * m.cfg.SellFraction
	held := mintedZAI - amount
	if amount > 0 {
		if out, err := pool.SwapZAIForZEC(amount); err == nil {
			m.zecProceeds += out
		} else {
			held += amount
		}
	}
	m.zaiProceeds += held
}
