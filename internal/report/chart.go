package report

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"CryptoSentinel/internal/model"
)

// ErrNoChartData is returned when a snapshot has nothing to plot.
var ErrNoChartData = errors.New("no chart data")

var (
	barBlue  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	barGreen = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	barRed   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

const (
	chartWidth  = 12 * vg.Inch
	chartHeight = 10 * vg.Inch
)

var barWidth = vg.Points(18)

// RenderChart draws the 2x2 market overview and returns it as PNG bytes.
func RenderChart(snap *model.Snapshot) ([]byte, error) {
	if snap.Len() == 0 {
		return nil, ErrNoChartData
	}
	quotes := snap.Quotes

	capPlot, err := barPlot("Top 10 by Market Cap (Billions USD)",
		topBy(quotes, 10, func(q model.AssetQuote) float64 { return q.MarketCap }), billions(func(q model.AssetQuote) float64 { return q.MarketCap }))
	if err != nil {
		return nil, err
	}
	moverPlot, err := moversPlot(quotes)
	if err != nil {
		return nil, err
	}
	volPlot, err := barPlot("Top 10 by Volume (Billions USD)",
		topBy(quotes, 10, func(q model.AssetQuote) float64 { return q.Volume24h }), billions(func(q model.AssetQuote) float64 { return q.Volume24h }))
	if err != nil {
		return nil, err
	}
	liqPlot, err := barPlot("Top 10 by Liquidity (Volume/Market Cap)",
		topBy(quotes, 10, model.AssetQuote.VolumeToMarketCap), model.AssetQuote.VolumeToMarketCap)
	if err != nil {
		return nil, err
	}

	plots := [][]*plot.Plot{
		{capPlot, moverPlot},
		{volPlot, liqPlot},
	}

	img := vgimg.New(chartWidth, chartHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 2, Cols: 2,
		PadX: vg.Millimeter * 4, PadY: vg.Millimeter * 4,
		PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2,
		PadLeft: vg.Millimeter * 2, PadRight: vg.Millimeter * 2,
	}
	canvases := plot.Align(plots, tiles, dc)
	for row := range plots {
		for col := range plots[row] {
			plots[row][col].Draw(canvases[row][col])
		}
	}

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

func billions(f func(model.AssetQuote) float64) func(model.AssetQuote) float64 {
	return func(q model.AssetQuote) float64 { return f(q) / 1e9 }
}

// topBy returns up to n quotes with the largest key, ties in snapshot order.
func topBy(quotes []model.AssetQuote, n int, key func(model.AssetQuote) float64) []model.AssetQuote {
	out := make([]model.AssetQuote, len(quotes))
	copy(out, quotes)
	sort.SliceStable(out, func(i, j int) bool { return key(out[i]) > key(out[j]) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func newPlot(title, ylabel string, labels []string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = ylabel
	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Tick.Label.YAlign = text.YCenter
	p.Add(plotter.NewGrid())
	return p
}

func barPlot(title string, quotes []model.AssetQuote, value func(model.AssetQuote) float64) (*plot.Plot, error) {
	labels := make([]string, len(quotes))
	values := make(plotter.Values, len(quotes))
	for i, q := range quotes {
		labels[i] = q.Symbol
		values[i] = value(q)
	}

	p := newPlot(title, "", labels)
	bars, err := plotter.NewBarChart(values, barWidth)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", title, err)
	}
	bars.Color = barBlue
	bars.LineStyle.Width = 0
	p.Add(bars)
	return p, nil
}

// moversPlot shows the five best and five worst 24h performers, green when up and red otherwise.
func moversPlot(quotes []model.AssetQuote) (*plot.Plot, error) {
	change := func(q model.AssetQuote) float64 { return q.PercentChange24h }
	gainers := topBy(quotes, 5, change)
	losers := topBy(quotes, 5, func(q model.AssetQuote) float64 { return -change(q) })
	movers := append(gainers, losers...)

	labels := make([]string, len(movers))
	up := make(plotter.Values, len(movers))
	down := make(plotter.Values, len(movers))
	for i, q := range movers {
		labels[i] = q.Symbol
		if q.PercentChange24h > 0 {
			up[i] = q.PercentChange24h
		} else {
			down[i] = q.PercentChange24h
		}
	}

	const title = "Best and Worst Performers (24h %)"
	p := newPlot(title, "%", labels)
	for _, series := range []struct {
		values plotter.Values
		color  color.Color
	}{{up, barGreen}, {down, barRed}} {
		bars, err := plotter.NewBarChart(series.values, barWidth)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", title, err)
		}
		bars.Color = series.color
		bars.LineStyle.Width = 0
		p.Add(bars)
	}
	return p, nil
}
