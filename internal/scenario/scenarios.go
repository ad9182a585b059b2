package scenario

import (
	"math"
	"math/rand"
)

// ID names a synthetic price trajectory. Generation is pure: the same
// (id, length, seed) always yields the same sequence.
type ID string

const (
	Flat           ID = "flat"
	SlowBull       ID = "slow_bull"
	SlowBear       ID = "slow_bear"
	SustainedBear  ID = "sustained_bear"
	BlackThursday  ID = "black_thursday"
	FlashCrash     ID = "flash_crash"
	VRecovery      ID = "v_recovery"
	DemandShock    ID = "demand_shock"
	SupplyGlut     ID = "supply_glut"
	HighVolatility ID = "high_volatility"
	Mania          ID = "mania"
	Capitulation   ID = "capitulation"
	ChoppySideways ID = "choppy_sideways"
)

// basePrice is the ZEC/USD anchor all trajectories start from. It
// matches the default pool ratio (500 000 ZAI / 10 000 ZEC = 50), so a
// fresh scenario opens exactly on peg.
const basePrice = 50.0

// All returns every scenario id in fixed suite order.
func All() []ID {
	return []ID{
		Flat, SlowBull, SlowBear, SustainedBear, BlackThursday,
		FlashCrash, VRecovery, DemandShock, SupplyGlut, HighVolatility,
		Mania, Capitulation, ChoppySideways,
	}
}

// Name returns the scenario's stable string name.
func (id ID) Name() string { return string(id) }

// Valid reports whether the id names a known trajectory.
func (id ID) Valid() bool {
	for _, known := range All() {
		if id == known {
			return true
		}
	}
	return false
}

// GeneratePrices produces n external ZEC/USD prices for the named
// trajectory. All randomness draws from a single stream seeded with
// seed; two calls with identical arguments are bit-identical.
func GeneratePrices(id ID, n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	prices := make([]float64, n)

	switch id {
	case Flat:
		for t := range prices {
			prices[t] = basePrice
		}

	case SlowBull:
		// +50% drift over the run, mild noise.
		walk(prices, rng, math.Log(1.5)/float64(n), 0.002)

	case SlowBear:
		// -30% drift over the run.
		walk(prices, rng, math.Log(0.7)/float64(n), 0.002)

	case SustainedBear:
		// Relentless decline to -70%, the arber-exhaustion trajectory.
		walk(prices, rng, math.Log(0.3)/float64(n), 0.003)

	case BlackThursday:
		// Flat, then a -45% collapse (to 55% of the level) over ~3% of
		// the run at the 40% mark, with a weak dead-cat bounce.
		crashAt := int(float64(n) * 0.4)
		crashLen := maxInt(n/33, 1)
		walk(prices, rng, 0, 0.002)
		applyCrash(prices, crashAt, crashLen, 0.45)
		applyRecovery(prices, rng, crashAt+crashLen, 0.10)

	case FlashCrash:
		// -40% single-block drop at the midpoint; 95% of the loss is
		// regained linearly over the rest of the run.
		walk(prices, rng, 0, 0.002)
		mid := n / 2
		applyCrash(prices, mid, 1, 0.40)
		applyRecovery(prices, rng, mid+1, 0.95)

	case VRecovery:
		// -50% into the midpoint, full retrace by the end.
		half := n / 2
		for t := 0; t < n; t++ {
			var level float64
			if t < half {
				level = 1 - 0.5*float64(t)/float64(half)
			} else {
				level = 0.5 + 0.5*float64(t-half)/float64(n-half)
			}
			prices[t] = basePrice * level * noise(rng, 0.002)
		}

	case DemandShock:
		// +50% ramp through the middle third, then plateau: ZAI trades
		// above peg until arbitrage capital catches up.
		third := n / 3
		for t := 0; t < n; t++ {
			level := 1.0
			switch {
			case t >= third && t < 2*third:
				level = 1 + 0.5*float64(t-third)/float64(third)
			case t >= 2*third:
				level = 1.5
			}
			prices[t] = basePrice * level * noise(rng, 0.002)
		}

	case SupplyGlut:
		// -35% step down at the first quarter, slow grind back.
		quarter := n / 4
		for t := 0; t < n; t++ {
			level := 1.0
			if t >= quarter {
				recovered := 0.10 * float64(t-quarter) / float64(n-quarter)
				level = 0.65 + recovered
			}
			prices[t] = basePrice * level * noise(rng, 0.002)
		}

	case HighVolatility:
		// Driftless walk with fat per-block moves.
		walk(prices, rng, 0, 0.02)

	case Mania:
		// Parabolic tripling, then a -50% correction in the last fifth.
		fifth := n / 5
		runUp := n - fifth
		walk(prices[:runUp], rng, math.Log(3.0)/float64(runUp), 0.006)
		tail := prices[runUp-1:]
		walk(tail, rng, math.Log(0.5)/float64(fifth), 0.01)

	case Capitulation:
		// Slow bleed accelerating into a -80% terminal flush.
		for t := 0; t < n; t++ {
			progress := float64(t) / float64(n)
			level := 1 - 0.8*progress*progress
			prices[t] = basePrice * level * noise(rng, 0.004)
		}

	case ChoppySideways:
		// Mean-reverting oscillation within ±10% of the anchor.
		period := float64(maxInt(n/8, 2))
		for t := 0; t < n; t++ {
			wave := 0.1 * math.Sin(2*math.Pi*float64(t)/period)
			prices[t] = basePrice * (1 + wave) * noise(rng, 0.003)
		}

	default:
		for t := range prices {
			prices[t] = basePrice
		}
	}

	return prices
}

// walk fills prices with a geometric random walk from basePrice (or the
// slice's existing first element when continuing a segment) with the
// given per-block log drift and volatility.
func walk(prices []float64, rng *rand.Rand, drift, sigma float64) {
	if len(prices) == 0 {
		return
	}
	p := prices[0]
	if p == 0 {
		p = basePrice
	}
	prices[0] = p
	for t := 1; t < len(prices); t++ {
		p *= math.Exp(drift + sigma*rng.NormFloat64())
		prices[t] = p
	}
}

// applyCrash multiplies the trajectory from start onward by a ramp down
// to (1 - depth) over length blocks.
func applyCrash(prices []float64, start, length int, depth float64) {
	for t := start; t < len(prices); t++ {
		progress := 1.0
		if t < start+length {
			progress = float64(t-start+1) / float64(length)
		}
		prices[t] *= 1 - depth*progress
	}
}

// applyRecovery retraces a fraction of the preceding drawdown from
// start onward, linearly over the remaining blocks.
func applyRecovery(prices []float64, rng *rand.Rand, start int, fraction float64) {
	if start >= len(prices) || start == 0 {
		return
	}
	lost := basePrice - prices[start-1]
	if lost <= 0 {
		return
	}
	remaining := len(prices) - start
	for t := start; t < len(prices); t++ {
		regain := lost * fraction * float64(t-start+1) / float64(remaining)
		prices[t] += regain * noise(rng, 0.001)
	}
}

func noise(rng *rand.Rand, sigma float64) float64 {
	return math.Exp(sigma * rng.NormFloat64())
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
