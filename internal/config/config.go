package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the simulator tools
type Config struct {
	Sim           SimConfig           `yaml:"sim"`
	Report        ReportConfig        `yaml:"report"`
	Klines        KlinesConfig        `yaml:"klines"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// SimConfig is the complete parameterization of one scenario run.
// A run is a pure function of (SimConfig, price sequence, seed).
type SimConfig struct {
	Controller             ControllerConfig  `yaml:"controller"`
	AMM                    AMMConfig         `yaml:"amm"`
	CDP                    CDPConfig         `yaml:"cdp"`
	Breaker                BreakerConfig     `yaml:"breaker"`
	Arbitrageur            ArbitrageurConfig `yaml:"arbitrageur"`
	Miner                  MinerConfig       `yaml:"miner"`
	Verdict                VerdictConfig     `yaml:"verdict"`
	InitialRedemptionPrice float64           `yaml:"initial_redemption_price"`
	Blocks                 int               `yaml:"blocks"`
	Seed                   int64             `yaml:"seed"`
}

// ControllerMode selects the feedback law.
type ControllerMode string

const (
	ControllerModePI   ControllerMode = "pi"
	ControllerModeTick ControllerMode = "tick"
)

type ControllerConfig struct {
	Mode        ControllerMode `yaml:"mode"`
	Kp          float64        `yaml:"kp"`          // PI proportional gain
	Ki          float64        `yaml:"ki"`          // PI integral gain
	Sensitivity float64        `yaml:"sensitivity"` // Tick log-scale gain
	MinRate     float64        `yaml:"min_rate"`
	MaxRate     float64        `yaml:"max_rate"`
	IntegralMin float64        `yaml:"integral_min"`
	IntegralMax float64        `yaml:"integral_max"`
}

type AMMConfig struct {
	InitialZEC float64 `yaml:"initial_zec"`
	InitialZAI float64 `yaml:"initial_zai"`
	Fee        float64 `yaml:"fee"`
}

type CDPConfig struct {
	MinRatio             float64 `yaml:"min_ratio"`
	LiqRatio             float64 `yaml:"liq_ratio"`
	LiquidationDiscount  float64 `yaml:"liquidation_discount"`
	TWAPWindow           int     `yaml:"twap_window"`
	StabilityFeePerBlock float64 `yaml:"stability_fee_per_block"`
}

type BreakerConfig struct {
	DeviationThreshold float64 `yaml:"deviation_threshold"`
	CooldownBlocks     uint64  `yaml:"cooldown_blocks"`
}

type ArbitrageurConfig struct {
	InitialZEC           float64 `yaml:"initial_zec"`
	InitialZAI           float64 `yaml:"initial_zai"`
	Gain                 float64 `yaml:"gain"`
	ActThreshold         float64 `yaml:"act_threshold"`
	CapitalReplenishRate float64 `yaml:"capital_replenish_rate"`
}

type MinerConfig struct {
	BlockReward  float64 `yaml:"block_reward"`
	Cadence      uint64  `yaml:"cadence"`
	TargetRatio  float64 `yaml:"target_ratio"`
	SellFraction float64 `yaml:"sell_fraction"`
}

// VerdictConfig fixes the PASS / SOFT FAIL / HARD FAIL thresholds.
type VerdictConfig struct {
	BadDebtSoft    float64 `yaml:"bad_debt_soft"`
	BadDebtHard    float64 `yaml:"bad_debt_hard"`
	MaxPegSoft     float64 `yaml:"max_peg_soft"`
	MaxPegHard     float64 `yaml:"max_peg_hard"`
	HaltBlocksSoft uint64  `yaml:"halt_blocks_soft"`
	HaltBlocksHard uint64  `yaml:"halt_blocks_hard"`
}

type ReportConfig struct {
	OutputDir string `yaml:"output_dir"`
	Format    string `yaml:"format"` // csv or json for per-block dumps
}

type KlinesConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Symbol      string        `yaml:"symbol"`
	Interval    string        `yaml:"interval"`
	BatchDelay  time.Duration `yaml:"batch_delay"`
	DataDir     string        `yaml:"data_dir"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

type ObservabilityConfig struct {
	ServiceName string `yaml:"service_name"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsPort int    `yaml:"metrics_port"`
}

// DefaultSim returns the baseline scenario parameterization: $500K AMM,
// 150% CR, PI controller, 1h TWAP at 75s blocks.
func DefaultSim() SimConfig {
	return SimConfig{
		Controller:             DefaultPIController(),
		AMM:                    AMMConfig{InitialZEC: 10_000, InitialZAI: 500_000, Fee: 0.003},
		CDP:                    CDPConfig{MinRatio: 1.5, LiqRatio: 1.2, LiquidationDiscount: 0.13, TWAPWindow: 48, StabilityFeePerBlock: 1e-7},
		Breaker:                BreakerConfig{DeviationThreshold: 0.05, CooldownBlocks: 240},
		Arbitrageur:            ArbitrageurConfig{InitialZEC: 2_000, InitialZAI: 100_000, Gain: 0.5, ActThreshold: 0.002, CapitalReplenishRate: 0},
		Miner:                  MinerConfig{BlockReward: 3.125, Cadence: 1, TargetRatio: 2.5, SellFraction: 0},
		Verdict:                DefaultVerdict(),
		InitialRedemptionPrice: 1.0,
		Blocks:                 1000,
		Seed:                   42,
	}
}

// DefaultPIController mirrors the production PI gains: per-block rate
// bounds of ±1e-4 at 75s blocks (420,480 blocks a year) sum to roughly
// ±42, i.e. ±4,200%, per year before compounding.
func DefaultPIController() ControllerConfig {
	return ControllerConfig{
		Mode:        ControllerModePI,
		Kp:          2e-7,
		Ki:          5e-9,
		MinRate:     -1e-4,
		MaxRate:     1e-4,
		IntegralMin: -1e-4,
		IntegralMax: 1e-4,
	}
}

// DefaultTickController is the integral-only log-scale variant. The
// integral bounds coincide with the rate bounds in this mode.
func DefaultTickController() ControllerConfig {
	return ControllerConfig{
		Mode:        ControllerModeTick,
		Sensitivity: 1e-7,
		MinRate:     -1e-4,
		MaxRate:     1e-4,
		IntegralMin: -1e-4,
		IntegralMax: 1e-4,
	}
}

func DefaultVerdict() VerdictConfig {
	return VerdictConfig{
		BadDebtSoft:    0,
		BadDebtHard:    10_000,
		MaxPegSoft:     0.01,
		MaxPegHard:     0.05,
		HaltBlocksSoft: 100,
		HaltBlocksHard: 500,
	}
}

// Load builds the tool configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Sim: DefaultSim(),
		Report: ReportConfig{
			OutputDir: getEnv("ZAI_SIM_REPORT_DIR", "reports"),
			Format:    getEnv("ZAI_SIM_REPORT_FORMAT", "csv"),
		},
		Klines: KlinesConfig{
			BaseURL:     getEnv("ZAI_SIM_KLINES_URL", "https://api.binance.com"),
			Symbol:      getEnv("ZAI_SIM_KLINES_SYMBOL", "ZECUSDT"),
			Interval:    getEnv("ZAI_SIM_KLINES_INTERVAL", "1h"),
			BatchDelay:  getDurationEnv("ZAI_SIM_KLINES_BATCH_DELAY", 250*time.Millisecond),
			DataDir:     getEnv("ZAI_SIM_KLINES_DATA_DIR", "data"),
			HTTPTimeout: getDurationEnv("ZAI_SIM_KLINES_HTTP_TIMEOUT", 30*time.Second),
		},
		Observability: ObservabilityConfig{
			ServiceName: getEnv("ZAI_SIM_SERVICE_NAME", "zai-sim"),
			LogLevel:    getEnv("ZAI_SIM_LOG_LEVEL", "info"),
			LogFormat:   getEnv("ZAI_SIM_LOG_FORMAT", "text"),
			MetricsPort: getIntEnv("ZAI_SIM_METRICS_PORT", 9090),
		},
	}

	if err := cfg.Sim.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadProfile overlays a named YAML profile onto the scenario config.
func (c *Config) LoadProfile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read profile %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c.Sim); err != nil {
		return fmt.Errorf("parse profile %s: %w", path, err)
	}
	return c.Sim.Validate()
}

// Validate rejects invalid configurations before the first block runs.
func (s *SimConfig) Validate() error {
	if s.InitialRedemptionPrice <= 0 {
		return fmt.Errorf("initial_redemption_price must be positive, got %g", s.InitialRedemptionPrice)
	}
	if s.Blocks <= 0 {
		return fmt.Errorf("blocks must be positive, got %d", s.Blocks)
	}
	if s.AMM.InitialZEC <= 0 || s.AMM.InitialZAI <= 0 {
		return fmt.Errorf("AMM initial reserves must be positive, got zec=%g zai=%g", s.AMM.InitialZEC, s.AMM.InitialZAI)
	}
	if s.AMM.Fee < 0 || s.AMM.Fee >= 1 {
		return fmt.Errorf("AMM fee must be in [0,1), got %g", s.AMM.Fee)
	}
	if s.CDP.LiqRatio <= 0 {
		return fmt.Errorf("liq_ratio must be positive, got %g", s.CDP.LiqRatio)
	}
	if s.CDP.MinRatio < s.CDP.LiqRatio {
		return fmt.Errorf("min_ratio %g must be >= liq_ratio %g", s.CDP.MinRatio, s.CDP.LiqRatio)
	}
	if s.CDP.LiquidationDiscount < 0 || s.CDP.LiquidationDiscount >= 1 {
		return fmt.Errorf("liquidation_discount must be in [0,1), got %g", s.CDP.LiquidationDiscount)
	}
	if s.CDP.TWAPWindow <= 0 {
		return fmt.Errorf("twap_window must be positive, got %d", s.CDP.TWAPWindow)
	}
	if s.Controller.MinRate > s.Controller.MaxRate {
		return fmt.Errorf("controller min_rate %g > max_rate %g", s.Controller.MinRate, s.Controller.MaxRate)
	}
	if s.Controller.IntegralMin > s.Controller.IntegralMax {
		return fmt.Errorf("controller integral_min %g > integral_max %g", s.Controller.IntegralMin, s.Controller.IntegralMax)
	}
	switch s.Controller.Mode {
	case ControllerModePI, ControllerModeTick:
	default:
		return fmt.Errorf("unknown controller mode %q", s.Controller.Mode)
	}
	if s.Breaker.DeviationThreshold <= 0 {
		return fmt.Errorf("breaker deviation_threshold must be positive, got %g", s.Breaker.DeviationThreshold)
	}
	if s.Arbitrageur.InitialZEC < 0 || s.Arbitrageur.InitialZAI < 0 || s.Arbitrageur.CapitalReplenishRate < 0 {
		return fmt.Errorf("arbitrageur balances and replenish rate must be non-negative")
	}
	if s.Miner.TargetRatio < s.CDP.MinRatio {
		return fmt.Errorf("miner target_ratio %g below min_ratio %g", s.Miner.TargetRatio, s.CDP.MinRatio)
	}
	if v := s.Verdict; v.BadDebtSoft > v.BadDebtHard || v.MaxPegSoft > v.MaxPegHard || v.HaltBlocksSoft > v.HaltBlocksHard {
		return fmt.Errorf("verdict soft thresholds must not exceed hard thresholds")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
