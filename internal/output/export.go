package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// WriteCSV dumps the per-block metrics to path with a fixed header.
func WriteCSV(metrics []Record, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"block", "redemption_price", "redemption_rate", "amm_spot_price",
		"twap", "external_price", "total_debt", "total_collateral",
		"n_liquidations", "bad_debt_delta", "breaker_active",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write metrics header: %w", err)
	}

	for _, m := range metrics {
		row := []string{
			strconv.FormatUint(m.Block, 10),
			formatF(m.RedemptionPrice),
			formatF(m.RedemptionRate),
			formatF(m.AMMSpotPrice),
			formatF(m.TWAP),
			formatF(m.ExternalPrice),
			formatF(m.TotalDebt),
			formatF(m.TotalCollateral),
			strconv.FormatUint(uint64(m.NLiquidations), 10),
			formatF(m.BadDebtDelta),
			strconv.FormatBool(m.BreakerActive),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write metrics row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// WriteJSON dumps the per-block metrics as a JSON array.
func WriteJSON(metrics []Record, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(metrics)
}

// WriteResults dumps per-scenario verdict rows as JSON.
func WriteResults(results []ScenarioResult, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// formatF renders floats with full round-trip precision so two
// identical runs produce byte-identical files.
func formatF(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
