// Package klines ingests OHLCV candles from a Binance-compatible REST
// endpoint and persists them as CSV. The simulation kernel consumes
// only the close column, converted to a float64 price sequence.
package klines

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/zai-protocol/zai-sim/internal/config"
	"github.com/zai-protocol/zai-sim/pkg/observability"
	"golang.org/x/time/rate"
)

// batchLimit is the maximum candles per request the endpoint allows.
const batchLimit = 1000

// Kline is one OHLCV candle. Prices stay decimal at this boundary so
// CSV round-trips are exact; conversion to float64 happens only when a
// price sequence is built.
type Kline struct {
	TimestampMS uint64
	Open        decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Close       decimal.Decimal
	Volume      decimal.Decimal
}

// Fetcher pulls candles in paginated batches with client-side rate
// limiting.
type Fetcher struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	logger  *observability.Logger
}

// NewFetcher creates a fetcher against cfg.BaseURL, pacing batches at
// cfg.BatchDelay (Binance allows 1200 req/min; the default 250ms is
// conservative).
func NewFetcher(cfg config.KlinesConfig, logger *observability.Logger) *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: cfg.HTTPTimeout},
		baseURL: cfg.BaseURL,
		limiter: rate.NewLimiter(rate.Every(cfg.BatchDelay), 1),
		logger:  logger,
	}
}

// FetchBatch fetches a single batch of at most 1000 candles.
func (f *Fetcher) FetchBatch(ctx context.Context, symbol, interval string, startMS, endMS uint64) ([]Kline, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("startTime", strconv.FormatUint(startMS, 10))
	q.Set("endTime", strconv.FormatUint(endMS, 10))
	q.Set("limit", strconv.Itoa(batchLimit))

	reqURL := fmt.Sprintf("%s/api/v3/klines?%s", f.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build klines request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch klines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch klines: unexpected status %s", resp.Status)
	}

	// Binance encodes each candle as a mixed-type array:
	// [openTime, "open", "high", "low", "close", "volume", closeTime, ...]
	var raw [][]json.RawMessage
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode klines response: %w", err)
	}

	klines := make([]Kline, 0, len(raw))
	for i, row := range raw {
		if len(row) < 6 {
			return nil, fmt.Errorf("decode klines response: row %d has %d fields", i, len(row))
		}
		k, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("decode klines row %d: %w", i, err)
		}
		klines = append(klines, k)
	}
	return klines, nil
}

// FetchRange pulls the full [startMS, endMS) range, paginating with
// cursor = last timestamp + 1 and waiting on the limiter between
// batches.
func (f *Fetcher) FetchRange(ctx context.Context, symbol, interval string, startMS, endMS uint64) ([]Kline, error) {
	var all []Kline
	cursor := startMS

	for cursor < endMS {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		batch, err := f.FetchBatch(ctx, symbol, interval, cursor, endMS)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		lastTS := batch[len(batch)-1].TimestampMS
		all = append(all, batch...)
		cursor = lastTS + 1

		f.logger.Debug(ctx, "fetched kline batch", map[string]interface{}{
			"symbol": symbol,
			"count":  len(batch),
			"cursor": cursor,
		})
	}

	return all, nil
}

func parseRow(row []json.RawMessage) (Kline, error) {
	var k Kline

	var ts uint64
	if err := json.Unmarshal(row[0], &ts); err != nil {
		return k, fmt.Errorf("timestamp: %w", err)
	}
	k.TimestampMS = ts

	fields := []*decimal.Decimal{&k.Open, &k.High, &k.Low, &k.Close, &k.Volume}
	names := []string{"open", "high", "low", "close", "volume"}
	for i, dst := range fields {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return k, fmt.Errorf("%s: %w", names[i], err)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return k, fmt.Errorf("%s: %w", names[i], err)
		}
		*dst = d
	}
	return k, nil
}

// ClosePrices converts a candle series into the kernel's float64 price
// sequence, one price per block.
func ClosePrices(klines []Kline) []float64 {
	prices := make([]float64, len(klines))
	for i, k := range klines {
		prices[i] = k.Close.InexactFloat64()
	}
	return prices
}
