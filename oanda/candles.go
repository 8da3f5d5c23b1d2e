package oanda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rustyeddy/marketsim/market"
)

// candleData represents the OHLC data in the API response
type candleData struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

// apiCandle represents a single candle in the API response
type apiCandle struct {
	Complete bool       `json:"complete"`
	Volume   int        `json:"volume"`
	Time     string     `json:"time"`
	Mid      candleData `json:"mid"`
}

// candlesResponse represents the API response for candles
type candlesResponse struct {
	Instrument  string      `json:"instrument"`
	Granularity string      `json:"granularity"`
	Candles     []apiCandle `json:"candles"`
}

// FetchCandles downloads the one-minute midpoint candles covering the closed
// range. Incomplete candles are skipped, so the forming candle at the range's
// upper edge never leaks into the store.
func (c *Client) FetchCandles(instrument string, r market.TimeRange) (market.Series, error) {
	return c.GetCandles(context.Background(), instrument, r)
}

// GetCandles fetches historical candles from OANDA
func (c *Client) GetCandles(ctx context.Context, instrument string, r market.TimeRange) (market.Series, error) {
	if instrument == "" {
		return nil, fmt.Errorf("instrument is required")
	}
	if c.token == "" {
		return nil, fmt.Errorf("oanda: missing token")
	}

	params := url.Values{}
	params.Set("price", "M")
	params.Set("granularity", "M1")
	params.Set("from", r.Lower.UTC().Format(time.RFC3339))
	// The API's "to" is exclusive of the forming candle; one minute past the
	// upper bound covers the whole closed range.
	params.Set("to", r.Upper.Add(time.Minute).UTC().Format(time.RFC3339))

	apiURL := fmt.Sprintf("%s/v3/instruments/%s/candles?%s", c.baseURL, instrument, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp candlesResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	series := market.Series{}
	for _, ac := range apiResp.Candles {
		if !ac.Complete {
			continue
		}

		ts, err := time.Parse(time.RFC3339, ac.Time)
		if err != nil {
			return nil, fmt.Errorf("parse time %s: %w", ac.Time, err)
		}

		candle, err := parseCandle(ac.Mid)
		if err != nil {
			return nil, fmt.Errorf("parse candle %s: %w", ac.Time, err)
		}
		series[ts.UTC()] = candle
	}

	return series, nil
}

func parseCandle(d candleData) (market.Candle, error) {
	var out market.Candle
	for _, field := range []struct {
		s  string
		at *market.Price
	}{
		{d.O, &out.Open},
		{d.H, &out.High},
		{d.L, &out.Low},
		{d.C, &out.Close},
	} {
		f, err := strconv.ParseFloat(field.s, 64)
		if err != nil {
			return market.Candle{}, err
		}
		*field.at = market.FromFloat(f)
	}
	return out, nil
}
