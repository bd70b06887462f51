package dashboard

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMonthChartDrawsOneBarPerStore(t *testing.T) {
	out := string(MonthChart(Summary{
		Month: "October 2026",
		Stores: []StoreSummary{
			{StoreID: "190", MonthToDate: decimal.RequireFromString("1500.50")},
			{StoreID: "191", MonthToDate: decimal.Zero},
		},
	}))
	if !strings.HasPrefix(out, "<svg") {
		t.Fatalf("expected svg output, got %s", out)
	}
	if n := strings.Count(out, "<rect"); n != 2 {
		t.Fatalf("expected 2 bars, got %d", n)
	}
	if !strings.Contains(out, "190 1500.50") {
		t.Fatalf("expected bar tooltip for store 190")
	}
	if !strings.Contains(out, "October 2026") {
		t.Fatalf("expected month in title")
	}
}

func TestMonthChartEmpty(t *testing.T) {
	if out := MonthChart(Summary{}); out != "" {
		t.Fatalf("expected empty chart, got %s", out)
	}
}
