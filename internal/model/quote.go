package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetQuote is one asset's state at one observation instant.
type AssetQuote struct {
	ID               int64
	Symbol           string
	Name             string
	Price            decimal.Decimal // USD
	MarketCap        float64
	Volume24h        float64
	PercentChange1h  float64
	PercentChange24h float64
	PercentChange7d  float64
	ObservedAt       time.Time
}

// VolumeToMarketCap returns the liquidity ratio, 0 when market cap is 0.
func (q AssetQuote) VolumeToMarketCap() float64 {
	if q.MarketCap <= 0 {
		return 0
	}
	return q.Volume24h / q.MarketCap
}

// Snapshot holds all quotes observed in one fetch cycle.
type Snapshot struct {
	ObservedAt time.Time
	Quotes     []AssetQuote
	Raw        []byte // unmodified response body, archived only
}

// Len returns the number of quotes, safe on a nil snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Quotes)
}

// TotalMarketCap sums market cap over the full snapshot.
func (s *Snapshot) TotalMarketCap() float64 {
	total := 0.0
	if s == nil {
		return total
	}
	for _, q := range s.Quotes {
		total += q.MarketCap
	}
	return total
}

// TotalVolume24h sums 24h volume over the full snapshot.
func (s *Snapshot) TotalVolume24h() float64 {
	total := 0.0
	if s == nil {
		return total
	}
	for _, q := range s.Quotes {
		total += q.Volume24h
	}
	return total
}
