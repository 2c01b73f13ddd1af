package report

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"CryptoSentinel/internal/model"
)

const noData = "No data available"

// printer groups thousands the English way: 1,234,567.89.
var printer = message.NewPrinter(language.English)

// viewSection is how one analysis view is titled and how its values are printed.
type viewSection struct {
	title  string
	format func(e model.RankedEntry) string
}

var sections = map[model.View]viewSection{
	model.ViewTopGainers: {"📈 <b>Top Gainers (24h)</b>", func(e model.RankedEntry) string {
		return fmt.Sprintf("%.2f%%", e.Value)
	}},
	model.ViewTopLosers: {"📉 <b>Top Losers (24h)</b>", func(e model.RankedEntry) string {
		return fmt.Sprintf("%.2f%%", e.Value)
	}},
	model.ViewHighLiquidity: {"💧 <b>Highest Liquidity (Volume/Market Cap)</b>", func(e model.RankedEntry) string {
		return fmt.Sprintf("%.4f", e.Value)
	}},
	model.ViewHighVolatility: {"⚡ <b>Highest Volatility</b>", func(e model.RankedEntry) string {
		return fmt.Sprintf("%.4f", e.Value)
	}},
	model.ViewStrongTrends: {"🧠 <b>Consistent Trends</b>", func(e model.RankedEntry) string {
		direction := "↘️"
		if e.Change24h > 0 {
			direction = "↗️"
		}
		return fmt.Sprintf("%s 24h: %.2f%%, 7d: %.2f%%", direction, e.Change24h, e.Change7d)
	}},
	model.ViewMarketDominance: {"👑 <b>Market Dominance</b>", func(e model.RankedEntry) string {
		return fmt.Sprintf("%.2f%%", e.Value)
	}},
}

// RenderOverview summarizes the whole snapshot: totals, mean changes and breadth.
func RenderOverview(snap *model.Snapshot) string {
	if snap.Len() == 0 {
		return noData
	}

	var sum24h, sum7d float64
	positive := 0
	for _, q := range snap.Quotes {
		sum24h += q.PercentChange24h
		sum7d += q.PercentChange7d
		if q.PercentChange24h > 0 {
			positive++
		}
	}
	n := float64(snap.Len())

	var b strings.Builder
	b.WriteString(fmt.Sprintf("🌐 <b>CRYPTO MARKET OVERVIEW</b> (%s UTC)\n\n", snap.ObservedAt.UTC().Format("02-01-2006 15:04:05")))
	b.WriteString(printer.Sprintf("💰 <b>Total market cap:</b> $%.2fB\n", snap.TotalMarketCap()/1e9))
	b.WriteString(printer.Sprintf("📊 <b>24h volume:</b> $%.2fB\n", snap.TotalVolume24h()/1e9))
	b.WriteString(fmt.Sprintf("📈 <b>Avg 24h change:</b> %.2f%%\n", sum24h/n))
	b.WriteString(fmt.Sprintf("📈 <b>Avg 7d change:</b> %.2f%%\n", sum7d/n))
	b.WriteString(fmt.Sprintf("🟢 <b>Coins up:</b> %d\n", positive))
	b.WriteString(fmt.Sprintf("🔴 <b>Coins down:</b> %d\n", snap.Len()-positive))
	return b.String()
}

// RenderTopAssets lists the n largest assets by market cap.
func RenderTopAssets(snap *model.Snapshot, n int) string {
	if snap.Len() == 0 || n < 1 {
		return noData
	}

	top := make([]model.AssetQuote, len(snap.Quotes))
	copy(top, snap.Quotes)
	sort.SliceStable(top, func(i, j int) bool { return top[i].MarketCap > top[j].MarketCap })
	if len(top) > n {
		top = top[:n]
	}

	var b strings.Builder
	b.WriteString("💰 <b>TOP CRYPTOCURRENCIES BY MARKET CAP</b>\n\n")
	for _, q := range top {
		emoji := "🔴"
		if q.PercentChange24h > 0 {
			emoji = "🟢"
		}
		b.WriteString(fmt.Sprintf("%s <b>%s (%s)</b>\n", emoji, html.EscapeString(q.Name), html.EscapeString(q.Symbol)))
		b.WriteString(printer.Sprintf("   - Price: $%.2f\n", q.Price.Round(2).InexactFloat64()))
		b.WriteString(printer.Sprintf("   - Market cap: $%.0f\n", q.MarketCap))
		b.WriteString(fmt.Sprintf("   - 24h change: %.2f%%\n", q.PercentChange24h))
		b.WriteString(printer.Sprintf("   - 24h volume: $%.0f\n\n", q.Volume24h))
	}
	return b.String()
}

// RenderAnalysis prints every view present in the analysis, in canonical order.
func RenderAnalysis(analysis model.Analysis) string {
	if len(analysis) == 0 {
		return "No analysis data available"
	}

	var blocks []string
	for _, view := range model.Views {
		res, ok := analysis[view]
		if !ok {
			continue
		}
		sec := sections[view]
		var b strings.Builder
		b.WriteString(sec.title + "\n")
		for _, e := range res.Entries {
			b.WriteString(fmt.Sprintf("   - %s: %s\n", html.EscapeString(e.Symbol), sec.format(e)))
		}
		blocks = append(blocks, b.String())
	}
	return "<b>DETAILED ANALYSIS</b>\n\n" + strings.Join(blocks, "\n")
}

// RenderAlerts returns one line per big mover, or "" when there is nothing to report.
func RenderAlerts(movers []model.AssetQuote) string {
	lines := make([]string, 0, len(movers))
	for _, q := range movers {
		direction := "fallen"
		if q.PercentChange1h > 0 {
			direction = "risen"
		}
		change := q.PercentChange1h
		if change < 0 {
			change = -change
		}
		lines = append(lines, fmt.Sprintf("⚠️ <b>PRICE ALERT</b>: %s (%s) has %s %.2f%% in the last hour.",
			html.EscapeString(q.Name), html.EscapeString(q.Symbol), direction, change))
	}
	return strings.Join(lines, "\n")
}

// RenderFetchWarning is the message sent when a cycle had to be skipped.
func RenderFetchWarning(err error) string {
	return "⚠️ <b>Market data unavailable</b>\nThis cycle was skipped: " + html.EscapeString(err.Error())
}
