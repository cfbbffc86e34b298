package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Alias1177/cryptovol/internal/dataset"
	"github.com/Alias1177/cryptovol/internal/model"
	httpClient "github.com/Alias1177/cryptovol/internal/platform/http"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public Twelve Data endpoint
const DefaultBaseURL = "https://api.twelvedata.com"

// ErrEmptyData is returned when the API answers without candles
var ErrEmptyData = errors.New("empty data returned")

// Client is the TwelveData API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new TwelveData client
type ClientOptions struct {
	APIKey          string
	BaseURL         string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetries      int
	MaxRetryTimeout time.Duration
}

// NewClient creates a new TwelveData API client
func NewClient(options ClientOptions) *Client {
	httpOpts := httpClient.ClientOptions{
		Timeout:         options.RequestTimeout,
		RequestsPerSec:  options.RequestsPerSec,
		MaxRetries:      options.MaxRetries,
		MaxRetryTimeout: options.MaxRetryTimeout,
	}

	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		apiKey:     options.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient.NewClient(httpOpts),
		logger:     log.With().Str("component", "twelvedata_client").Logger(),
	}
}

// GetCandles fetches up to count candles for symbol, oldest first.
// Candles are named after the symbol's base currency ("BTC/USD" -> "BTC").
func (c *Client) GetCandles(ctx context.Context, symbol string, interval string, count int) ([]model.Candle, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("interval", interval)
	query.Set("outputsize", strconv.Itoa(count))
	query.Set("apikey", c.apiKey)
	endpoint := c.baseURL + "/time_series?" + query.Encode()

	c.logger.Debug().Str("symbol", symbol).Str("interval", interval).Int("count", count).Msg("Fetching candles")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var data model.TwelveResponse
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Error().Err(err).Str("response", string(body)).Msg("Error parsing JSON")
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	if data.Status == "error" {
		c.logger.Error().Str("response", string(body)).Msg("Twelve Data API error")
		return nil, fmt.Errorf("twelve data API error: %s", string(body))
	}

	if len(data.Values) == 0 {
		c.logger.Warn().Str("symbol", symbol).Msg("No candles in response")
		return nil, fmt.Errorf("%s: %w", symbol, ErrEmptyData)
	}

	// Sort candles by datetime (oldest first for proper calculations)
	sort.Slice(data.Values, func(i, j int) bool {
		return data.Values[i].Datetime < data.Values[j].Datetime
	})

	name := CoinName(symbol)
	candles := make([]model.Candle, 0, len(data.Values))
	for _, v := range data.Values {
		candles = append(candles, model.NewCandle(
			name, dataset.ParseDate(v.Datetime), v.Open, v.High, v.Low, v.Close, v.Volume,
		))
	}

	c.logger.Debug().Str("symbol", symbol).Int("count", len(candles)).Msg("Fetched candles")
	return candles, nil
}

// GetHistory fetches roughly days worth of candles for every symbol
func (c *Client) GetHistory(ctx context.Context, symbols []string, interval string, days int) ([]model.Candle, error) {
	count := CandlesForDays(interval, days)

	var all []model.Candle
	for _, symbol := range symbols {
		candles, err := c.GetCandles(ctx, symbol, interval, count)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", symbol, err)
		}
		all = append(all, candles...)
	}
	return all, nil
}

// CoinName returns the base currency of a pair symbol
func CoinName(symbol string) string {
	if i := strings.Index(symbol, "/"); i > 0 {
		return symbol[:i]
	}
	return symbol
}

// CandlesForDays estimates how many candles cover the given number of days
func CandlesForDays(interval string, days int) int {
	candlesPerDay := 0

	switch interval {
	case "1min":
		candlesPerDay = 24 * 60
	case "5min":
		candlesPerDay = 24 * 12
	case "15min":
		candlesPerDay = 24 * 4
	case "30min":
		candlesPerDay = 24 * 2
	case "1h":
		candlesPerDay = 24
	case "4h":
		candlesPerDay = 6
	case "1day":
		candlesPerDay = 1
	case "1week":
		candlesPerDay = 1
		days = max(days/7, 1)
	default:
		candlesPerDay = 1
	}

	// The API caps a single request at 5000 values
	return min(int(float64(candlesPerDay)*float64(days)*1.1), 5000)
}
