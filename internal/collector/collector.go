package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"CryptoSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Quotes []model.AssetQuote
}

func (m *MockFetcher) Name() string { return "mock" }

// Fetch returns the configured quotes, or `limit` generated ones when none are set.
func (m *MockFetcher) Fetch(_ context.Context, limit int) (*model.Snapshot, error) {
	if limit < 1 {
		return nil, &FetchError{Err: fmt.Errorf("limit must be positive, got %d", limit)}
	}
	now := time.Now().UTC()

	quotes := m.Quotes
	if quotes == nil {
		quotes = generateMockQuotes(limit)
	}
	if len(quotes) > limit {
		quotes = quotes[:limit]
	}

	snap := &model.Snapshot{ObservedAt: now, Quotes: make([]model.AssetQuote, len(quotes))}
	for i, q := range quotes {
		q.ObservedAt = now
		snap.Quotes[i] = q
	}
	raw, err := json.Marshal(mockPayload(snap.Quotes))
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	snap.Raw = raw
	return snap, nil
}

var mockSymbols = []string{"BTC", "ETH", "USDT", "BNB", "SOL", "XRP", "USDC", "DOGE", "ADA", "TRX", "AVAX", "LINK"}

func generateMockQuotes(count int) []model.AssetQuote {
	quotes := make([]model.AssetQuote, count)
	for i := 0; i < count; i++ {
		symbol := fmt.Sprintf("MOCK%d", i+1)
		if i < len(mockSymbols) {
			symbol = mockSymbols[i]
		}
		// Decaying caps and alternating momentum give every view something to rank.
		capUSD := 1.2e12 / math.Pow(1.6, float64(i))
		sign := 1.0
		if i%3 == 1 {
			sign = -1
		}
		quotes[i] = model.AssetQuote{
			ID:               int64(i + 1),
			Symbol:           symbol,
			Name:             symbol + " Coin",
			Price:            decimal.NewFromFloat(60000 / math.Pow(2, float64(i))).Round(8),
			MarketCap:        capUSD,
			Volume24h:        capUSD * (0.02 + 0.01*float64(i%5)),
			PercentChange1h:  sign * 0.3 * float64(i%4+1),
			PercentChange24h: sign * 1.5 * float64(i%6+1),
			PercentChange7d:  sign * 2.5 * float64(i%7+1),
		}
	}
	return quotes
}

// mockPayload mirrors the listings/latest shape so archived mock files look like real ones.
func mockPayload(quotes []model.AssetQuote) map[string]any {
	data := make([]map[string]any, len(quotes))
	for i, q := range quotes {
		data[i] = map[string]any{
			"id":     q.ID,
			"name":   q.Name,
			"symbol": q.Symbol,
			"quote": map[string]any{
				"USD": map[string]any{
					"price":              q.Price,
					"market_cap":         q.MarketCap,
					"volume_24h":         q.Volume24h,
					"percent_change_1h":  q.PercentChange1h,
					"percent_change_24h": q.PercentChange24h,
					"percent_change_7d":  q.PercentChange7d,
				},
			},
		}
	}
	return map[string]any{"data": data}
}
