// Package cdp maintains the collateralized debt positions backing ZAI.
//
// Vaults live in an indexed arena addressed by a stable integer id, with
// a free list recycling closed slots. The engine iterates and owns;
// vaults carry no back-pointers.
package cdp

import (
	"errors"
	"fmt"
	"math"

	"github.com/zai-protocol/zai-sim/internal/config"
)

var (
	// ErrBelowMinRatio rejects an open or adjustment that would leave the
	// vault under the minimum collateralization ratio.
	ErrBelowMinRatio = errors.New("cdp: collateralization below min ratio")
	// ErrVaultNotFound is returned for an unknown or recycled vault id.
	ErrVaultNotFound = errors.New("cdp: vault not found")
	// ErrVaultClosed rejects operations on a closed vault.
	ErrVaultClosed = errors.New("cdp: vault is closed")
	// ErrInvalidAmount rejects non-positive or non-finite amounts.
	ErrInvalidAmount = errors.New("cdp: amount must be positive and finite")
	// ErrInsufficientCollateral rejects withdrawing more than deposited.
	ErrInsufficientCollateral = errors.New("cdp: insufficient collateral")
	// ErrInsufficientDebt rejects burning more than owed.
	ErrInsufficientDebt = errors.New("cdp: burn exceeds outstanding debt")
)

// VaultState is the lifecycle state of a vault.
type VaultState int

const (
	VaultOpen VaultState = iota
	VaultClosed
)

// Vault is a single collateralized debt position.
type Vault struct {
	ID            uint64
	Owner         uint64
	CollateralZEC float64
	DebtZAI       float64
	CreatedBlock  uint64
	State         VaultState
}

// LiquidationEvent records one vault liquidation within a pass.
type LiquidationEvent struct {
	VaultID     uint64
	Collateral  float64
	Debt        float64
	ProceedsZAI float64
	BadDebt     float64
}

// SellCollateral converts seized ZEC collateral into ZAI on behalf of
// the liquidating keeper. ok=false means the keeper could not clear the
// collateral this block (an economic event, not an error).
type SellCollateral func(zecAmount float64) (zaiOut float64, ok bool)

// Engine owns the vault arena and the system-level debt accounting.
type Engine struct {
	cfg config.CDPConfig

	vaults   []Vault
	freeList []uint64

	totalCollateral float64
	totalDebt       float64

	// Conservation ledger: totalDebt == cumMints - cumBurns - cumBadDebt
	// at every block boundary. Stability fee accrual counts as a mint.
	cumMints   float64
	cumBurns   float64
	cumBadDebt float64

	liquidations        uint64
	liquidationFailures uint64
}

// NewEngine creates an empty vault engine.
func NewEngine(cfg config.CDPConfig) *Engine {
	return &Engine{cfg: cfg}
}

// CollateralRatio computes collateral_zec * zecUSD / (debt * redemption).
// A debt-free vault is infinitely collateralized.
func CollateralRatio(collateralZEC, debtZAI, zecUSD, redemptionPrice float64) float64 {
	if debtZAI <= 0 {
		return math.Inf(1)
	}
	return collateralZEC * zecUSD / (debtZAI * redemptionPrice)
}

// Open creates a vault with the given collateral and debt, accepted iff
// the resulting CR meets the minimum ratio at the given prices.
func (e *Engine) Open(owner uint64, collateralZEC, debtZAI, zecUSD, redemptionPrice float64, block uint64) (uint64, error) {
	if collateralZEC < 0 || debtZAI < 0 || !isFinite(collateralZEC) || !isFinite(debtZAI) {
		return 0, ErrInvalidAmount
	}
	if CollateralRatio(collateralZEC, debtZAI, zecUSD, redemptionPrice) < e.cfg.MinRatio {
		return 0, ErrBelowMinRatio
	}

	var id uint64
	if n := len(e.freeList); n > 0 {
		id = e.freeList[n-1]
		e.freeList = e.freeList[:n-1]
		e.vaults[id] = Vault{ID: id, Owner: owner, CollateralZEC: collateralZEC, DebtZAI: debtZAI, CreatedBlock: block}
	} else {
		id = uint64(len(e.vaults))
		e.vaults = append(e.vaults, Vault{ID: id, Owner: owner, CollateralZEC: collateralZEC, DebtZAI: debtZAI, CreatedBlock: block})
	}

	e.totalCollateral += collateralZEC
	e.totalDebt += debtZAI
	e.cumMints += debtZAI
	return id, nil
}

// Deposit adds collateral to an open vault.
func (e *Engine) Deposit(id uint64, amountZEC float64) error {
	v, err := e.openVault(id)
	if err != nil {
		return err
	}
	if amountZEC <= 0 || !isFinite(amountZEC) {
		return ErrInvalidAmount
	}
	v.CollateralZEC += amountZEC
	e.totalCollateral += amountZEC
	return nil
}

// Withdraw removes collateral, re-checking the minimum ratio post-op.
func (e *Engine) Withdraw(id uint64, amountZEC, zecUSD, redemptionPrice float64) error {
	v, err := e.openVault(id)
	if err != nil {
		return err
	}
	if amountZEC <= 0 || !isFinite(amountZEC) {
		return ErrInvalidAmount
	}
	if amountZEC > v.CollateralZEC {
		return ErrInsufficientCollateral
	}
	if CollateralRatio(v.CollateralZEC-amountZEC, v.DebtZAI, zecUSD, redemptionPrice) < e.cfg.MinRatio {
		return ErrBelowMinRatio
	}
	v.CollateralZEC -= amountZEC
	e.totalCollateral -= amountZEC
	if v.DebtZAI == 0 && v.CollateralZEC == 0 {
		e.close(v)
	}
	return nil
}

// Mint draws additional ZAI debt, re-checking the minimum ratio post-op.
func (e *Engine) Mint(id uint64, amountZAI, zecUSD, redemptionPrice float64) error {
	v, err := e.openVault(id)
	if err != nil {
		return err
	}
	if amountZAI <= 0 || !isFinite(amountZAI) {
		return ErrInvalidAmount
	}
	if CollateralRatio(v.CollateralZEC, v.DebtZAI+amountZAI, zecUSD, redemptionPrice) < e.cfg.MinRatio {
		return ErrBelowMinRatio
	}
	v.DebtZAI += amountZAI
	e.totalDebt += amountZAI
	e.cumMints += amountZAI
	return nil
}

// Burn repays ZAI debt. The vault closes only once both its debt and its
// collateral are zero; a debt-free vault still holding collateral stays
// open until that collateral is withdrawn.
func (e *Engine) Burn(id uint64, amountZAI float64) error {
	v, err := e.openVault(id)
	if err != nil {
		return err
	}
	if amountZAI <= 0 || !isFinite(amountZAI) {
		return ErrInvalidAmount
	}
	if amountZAI > v.DebtZAI {
		return ErrInsufficientDebt
	}
	v.DebtZAI -= amountZAI
	e.totalDebt -= amountZAI
	e.cumBurns += amountZAI
	if v.DebtZAI == 0 && v.CollateralZEC == 0 {
		e.close(v)
	}
	return nil
}

// AccrueFees applies one block of stability fee compounding to every
// open vault. The accrued interest enters the ledger as a mint.
func (e *Engine) AccrueFees() {
	fee := e.cfg.StabilityFeePerBlock
	if fee == 0 {
		return
	}
	for i := range e.vaults {
		v := &e.vaults[i]
		if v.State != VaultOpen || v.DebtZAI == 0 {
			continue
		}
		accrued := v.DebtZAI * fee
		v.DebtZAI += accrued
		e.totalDebt += accrued
		e.cumMints += accrued
	}
}

// LiquidationPass scans open vaults in ascending id order and liquidates
// every vault whose TWAP-priced CR is under the liquidation ratio.
//
// Proceeds are realized by an immediate keeper sale of the seized
// collateral through the sell callback (the scenario wires it to the
// AMM, so the sale moves spot and feeds the same block's controller
// update). The keeper keeps liquidation_discount of the sale; the rest
// burns down the debt. Any shortfall is recorded as bad debt and
// socialized; no recovery from other vaults happens in the same block.
// A sale the keeper cannot clear leaves the vault open for the next
// pass and counts as a liquidation failure. A vault is liquidated at
// most once per pass.
func (e *Engine) LiquidationPass(twapZEC, redemptionPrice float64, sell SellCollateral) []LiquidationEvent {
	var events []LiquidationEvent

	for i := range e.vaults {
		v := &e.vaults[i]
		if v.State != VaultOpen || v.DebtZAI == 0 {
			continue
		}
		if CollateralRatio(v.CollateralZEC, v.DebtZAI, twapZEC, redemptionPrice) >= e.cfg.LiqRatio {
			continue
		}

		zaiOut, ok := sell(v.CollateralZEC)
		if !ok {
			e.liquidationFailures++
			continue
		}

		proceedsZAI := zaiOut * (1 - e.cfg.LiquidationDiscount)
		burned := math.Min(v.DebtZAI, proceedsZAI)
		badDebt := v.DebtZAI - burned

		events = append(events, LiquidationEvent{
			VaultID:     v.ID,
			Collateral:  v.CollateralZEC,
			Debt:        v.DebtZAI,
			ProceedsZAI: proceedsZAI,
			BadDebt:     badDebt,
		})

		e.totalCollateral -= v.CollateralZEC
		e.totalDebt -= v.DebtZAI
		e.cumBurns += burned
		e.cumBadDebt += badDebt
		e.liquidations++

		v.CollateralZEC = 0
		v.DebtZAI = 0
		e.close(v)
	}

	return events
}

// Vault returns a copy of the vault with the given id.
func (e *Engine) Vault(id uint64) (Vault, error) {
	if id >= uint64(len(e.vaults)) {
		return Vault{}, ErrVaultNotFound
	}
	return e.vaults[id], nil
}

// TotalCollateral returns the tracked sum of collateral over open vaults.
func (e *Engine) TotalCollateral() float64 { return e.totalCollateral }

// TotalDebt returns the tracked sum of debt over open vaults.
func (e *Engine) TotalDebt() float64 { return e.totalDebt }

// CumulativeMints returns total debt ever issued, fees included.
func (e *Engine) CumulativeMints() float64 { return e.cumMints }

// CumulativeBurns returns total debt ever repaid or cleared.
func (e *Engine) CumulativeBurns() float64 { return e.cumBurns }

// CumulativeBadDebt returns total socialized shortfall.
func (e *Engine) CumulativeBadDebt() float64 { return e.cumBadDebt }

// Liquidations returns the number of vaults liquidated so far.
func (e *Engine) Liquidations() uint64 { return e.liquidations }

// LiquidationFailures returns how many liquidation attempts the keeper
// could not clear.
func (e *Engine) LiquidationFailures() uint64 { return e.liquidationFailures }

// OpenVaultCount returns the number of currently open vaults.
func (e *Engine) OpenVaultCount() int {
	n := 0
	for i := range e.vaults {
		if e.vaults[i].State == VaultOpen {
			n++
		}
	}
	return n
}

func (e *Engine) openVault(id uint64) (*Vault, error) {
	if id >= uint64(len(e.vaults)) {
		return nil, ErrVaultNotFound
	}
	v := &e.vaults[id]
	if v.State != VaultOpen {
		return nil, ErrVaultClosed
	}
	return v, nil
}

func (e *Engine) close(v *Vault) {
	v.State = VaultClosed
	e.freeList = append(e.freeList, v.ID)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// String implements fmt.Stringer for debugging snapshots.
func (v Vault) String() string {
	return fmt.Sprintf("vault{id=%d owner=%d collateral=%.4f debt=%.4f}", v.ID, v.Owner, v.CollateralZEC, v.DebtZAI)
}
