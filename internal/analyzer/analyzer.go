package analyzer

import (
	"math"
	"sort"

	"CryptoSentinel/internal/model"
)

// metric extracts the value an asset is ranked by.
type metric func(q model.AssetQuote) float64

func change24h(q model.AssetQuote) float64 { return q.PercentChange24h }
func marketCap(q model.AssetQuote) float64 { return q.MarketCap }
func liquidity(q model.AssetQuote) float64 { return q.VolumeToMarketCap() }

// Volatility is a single-snapshot proxy for divergence between hourly and
// day-scale momentum: |1h change - 24h change / 24|.
func Volatility(q model.AssetQuote) float64 {
	return math.Abs(q.PercentChange1h - q.PercentChange24h/24)
}

// HasConsistentTrend reports whether the 1h, 24h and 7d changes all share the same strict sign.
func HasConsistentTrend(q model.AssetQuote) bool {
	up := q.PercentChange1h > 0 && q.PercentChange24h > 0 && q.PercentChange7d > 0
	down := q.PercentChange1h < 0 && q.PercentChange24h < 0 && q.PercentChange7d < 0
	return up || down
}

// Dominance returns each asset's share of the snapshot's total market cap, in percent.
// A zero total yields zero shares.
func Dominance(snap *model.Snapshot) []float64 {
	out := make([]float64, snap.Len())
	total := snap.TotalMarketCap()
	if total <= 0 {
		return out
	}
	for i, q := range snap.Quotes {
		out[i] = q.MarketCap / total * 100
	}
	return out
}

// Analyze derives the six ranked views from one snapshot. It is deterministic:
// ties keep snapshot order.
func Analyze(snap *model.Snapshot) model.Analysis {
	result := model.Analysis{}
	if snap.Len() == 0 {
		return result
	}
	quotes := snap.Quotes

	result[model.ViewTopGainers] = rank(model.ViewTopGainers, quotes, change24h, true)
	result[model.ViewTopLosers] = rank(model.ViewTopLosers, quotes, change24h, false)
	result[model.ViewHighLiquidity] = rank(model.ViewHighLiquidity, quotes, liquidity, true)
	result[model.ViewHighVolatility] = rank(model.ViewHighVolatility, quotes, Volatility, true)

	trending := make([]model.AssetQuote, 0, len(quotes))
	for _, q := range quotes {
		if HasConsistentTrend(q) {
			trending = append(trending, q)
		}
	}
	result[model.ViewStrongTrends] = rank(model.ViewStrongTrends, trending, marketCap, true)

	shares := Dominance(snap)
	result[model.ViewMarketDominance] = rankIndexed(model.ViewMarketDominance, quotes, func(i int) float64 { return shares[i] }, true)

	return result
}

func rank(view model.View, quotes []model.AssetQuote, m metric, descending bool) model.AnalysisResult {
	return rankIndexed(view, quotes, func(i int) float64 { return m(quotes[i]) }, descending)
}

// rankIndexed orders quote indices by value and keeps the first MaxRankedEntries.
func rankIndexed(view model.View, quotes []model.AssetQuote, value func(i int) float64, desc bool) model.AnalysisResult {
	idx := make([]int, len(quotes))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		va, vb := value(idx[a]), value(idx[b])
		if desc {
			return va > vb
		}
		return va < vb
	})
	if len(idx) > model.MaxRankedEntries {
		idx = idx[:model.MaxRankedEntries]
	}

	entries := make([]model.RankedEntry, len(idx))
	for n, i := range idx {
		q := quotes[i]
		entries[n] = model.RankedEntry{
			Symbol:    q.Symbol,
			Name:      q.Name,
			Value:     value(i),
			Change24h: q.PercentChange24h,
			Change7d:  q.PercentChange7d,
		}
	}
	return model.AnalysisResult{View: view, Entries: entries}
}

// BigMovers returns assets whose 1h change exceeds threshold percent in either direction,
// in snapshot order.
func BigMovers(snap *model.Snapshot, threshold float64) []model.AssetQuote {
	var out []model.AssetQuote
	if snap == nil {
		return out
	}
	for _, q := range snap.Quotes {
		if math.Abs(q.PercentChange1h) > threshold {
			out = append(out, q)
		}
	}
	return out
}
