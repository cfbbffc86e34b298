package model

import (
	"math"
	"time"
)

// Candle represents a single daily OHLCV observation for one coin
type Candle struct {
	Name      string    `json:"name"`
	Date      time.Time `json:"date"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	MarketCap float64   `json:"market_cap"` // NaN when the source has no market cap
}

// NewCandle returns a candle with MarketCap marked as missing
func NewCandle(name string, date time.Time, open, high, low, close, volume float64) Candle {
	return Candle{
		Name:      name,
		Date:      date,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
		MarketCap: math.NaN(),
	}
}

// TwelveResponse represents the API response from Twelve Data
type TwelveResponse struct {
	Meta struct {
		Symbol   string `json:"symbol"`
		Interval string `json:"interval"`
	} `json:"meta"`
	Values []struct {
		Datetime string  `json:"datetime"`
		Open     float64 `json:"open,string"`
		High     float64 `json:"high,string"`
		Low      float64 `json:"low,string"`
		Close    float64 `json:"close,string"`
		Volume   float64 `json:"volume,string,omitempty"`
	} `json:"values"`
	Status string `json:"status"`
}

// SplitMeta records how a dataset was divided into train and test parts
type SplitMeta struct {
	TrainSize  int `json:"train_size"`
	TestSize   int `json:"test_size"`
	SplitIndex int `json:"split_index"`
}
