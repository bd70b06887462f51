package dashboard

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	chartWidth   = 720
	chartHeight  = 240
	chartPadding = 36.0
	chartTicks   = 4
	barColor     = "#0ea5e9"
	axisColor    = "#475569"
	gridColor    = "#cbd5e1"
)

// MonthChart renders the month-to-date sales of each store as an inline SVG bar chart.
// It returns an empty fragment when there is nothing to plot.
func MonthChart(summary Summary) template.HTML {
	if len(summary.Stores) == 0 {
		return ""
	}
	maxVal := decimal.Zero
	for _, st := range summary.Stores {
		if st.MonthToDate.GreaterThan(maxVal) {
			maxVal = st.MonthToDate
		}
	}
	if !maxVal.IsPositive() {
		maxVal = decimal.NewFromInt(1)
	}

	plotW := chartWidth - 2*chartPadding
	plotH := chartHeight - 2*chartPadding
	top := maxVal.InexactFloat64()
	bottom := chartPadding + plotH
	slot := plotW / float64(len(summary.Stores))
	barW := slot * 0.6

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-labelledby="mtd-title">`, chartWidth, chartHeight)
	fmt.Fprintf(&b, `<title id="mtd-title">Archived sales, %s</title>`, template.HTMLEscapeString(summary.Month))

	for i := 0; i <= chartTicks; i++ {
		ratio := float64(i) / chartTicks
		y := bottom - ratio*plotH
		fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" stroke-dasharray="2,4"></line>`,
			chartPadding, y, chartPadding+plotW, y, gridColor)
		tick := maxVal.Mul(decimal.NewFromFloat(ratio)).Round(0)
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end">%s</text>`,
			chartPadding-6, y+4, axisColor, tick.StringFixed(0))
	}
	fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s"></line>`, chartPadding, bottom, chartPadding+plotW, bottom, axisColor)

	for i, st := range summary.Stores {
		h := 0.0
		if st.MonthToDate.IsPositive() {
			h = st.MonthToDate.InexactFloat64() / top * plotH
		}
		x := chartPadding + float64(i)*slot + (slot-barW)/2
		label := template.HTMLEscapeString(st.StoreID)
		fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s"><title>%s %s</title></rect>`,
			x, bottom-h, barW, h, barColor, label, st.MonthToDate.StringFixed(2))
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="middle">%s</text>`,
			x+barW/2, bottom+14, axisColor, label)
	}
	b.WriteString("</svg>")
	return template.HTML(b.String())
}
