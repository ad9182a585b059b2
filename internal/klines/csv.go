package klines

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"
)

var csvHeader = []string{"timestamp_ms", "open", "high", "low", "close", "volume"}

// SaveCSV writes candles to path, creating parent directories as needed.
func SaveCSV(klines []Kline, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, k := range klines {
		row := []string{
			strconv.FormatUint(k.TimestampMS, 10),
			k.Open.String(),
			k.High.String(),
			k.Low.String(),
			k.Close.String(),
			k.Volume.String(),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// LoadCSV reads candles back from a file written by SaveCSV.
func LoadCSV(path string) ([]Kline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// Skip the header row.
	records = records[1:]
	klines := make([]Kline, 0, len(records))
	for i, rec := range records {
		if len(rec) != len(csvHeader) {
			return nil, fmt.Errorf("csv row %d: expected %d fields, got %d", i+1, len(csvHeader), len(rec))
		}
		ts, err := strconv.ParseUint(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("csv row %d timestamp: %w", i+1, err)
		}
		k := Kline{TimestampMS: ts}
		fields := []*decimal.Decimal{&k.Open, &k.High, &k.Low, &k.Close, &k.Volume}
		for j, dst := range fields {
			d, err := decimal.NewFromString(rec[j+1])
			if err != nil {
				return nil, fmt.Errorf("csv row %d %s: %w", i+1, csvHeader[j+1], err)
			}
			*dst = d
		}
		klines = append(klines, k)
	}
	return klines, nil
}
