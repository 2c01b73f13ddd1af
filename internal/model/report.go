package model

import "strings"

// Report is the rendered output of one cycle.
type Report struct {
	Overview  string
	TopAssets string
	Analysis  string
	Alerts    string
	Chart     []byte // PNG, nil when no chart was produced
	ChartPath string
}

// Text joins the report sections into the message body sent with the chart.
func (r *Report) Text() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{r.Overview, r.TopAssets, r.Analysis} {
		if s = strings.TrimRight(s, "\n"); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}
