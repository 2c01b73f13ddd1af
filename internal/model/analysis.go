package model

// View names a ranked analysis view.
type View string

const (
	ViewTopGainers      View = "top_gainers"
	ViewTopLosers       View = "top_losers"
	ViewHighLiquidity   View = "high_liquidity"
	ViewHighVolatility  View = "high_volatility"
	ViewStrongTrends    View = "strong_trends"
	ViewMarketDominance View = "market_dominance"
)

// Views lists every view in the order they are persisted and rendered.
var Views = []View{
	ViewTopGainers,
	ViewTopLosers,
	ViewHighLiquidity,
	ViewHighVolatility,
	ViewStrongTrends,
	ViewMarketDominance,
}

// MaxRankedEntries caps the size of every view.
const MaxRankedEntries = 5

// RankedEntry is one row of a ranked view. Value is the metric the view ranks by.
type RankedEntry struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Change24h float64 `json:"percent_change_24h"`
	Change7d  float64 `json:"percent_change_7d"`
}

// AnalysisResult is a named ranked view derived from one snapshot.
type AnalysisResult struct {
	View    View
	Entries []RankedEntry
}

// Analysis maps view names to their results.
type Analysis map[View]AnalysisResult
